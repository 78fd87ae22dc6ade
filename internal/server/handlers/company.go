package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	companyservice "admin-portal/backend/internal/company/service"
	"admin-portal/backend/internal/server/middleware"
	"admin-portal/backend/internal/transport/cookies"
)

// CompanyHandler exposes the display-name mappings and the company rename.
type CompanyHandler struct {
	companies *companyservice.Service
	cookies   *cookies.Writer
}

func NewCompanyHandler(companies *companyservice.Service, cookieWriter *cookies.Writer) *CompanyHandler {
	return &CompanyHandler{companies: companies, cookies: cookieWriter}
}

func (h *CompanyHandler) Register(r *mux.Router) {
	r.HandleFunc("/v1/mappings", h.Mappings).Methods(http.MethodGet)
	r.HandleFunc("/v1/companies/{key}", h.Rename).Methods(http.MethodPut)
}

func (h *CompanyHandler) Mappings(w http.ResponseWriter, r *http.Request) {
	companies, modules, err := h.companies.Mappings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load mappings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"companies": companies,
		"modules":   modules,
	})
}

// Rename changes a company's display name and refreshes the cached mapping
// cookie so the client sees the new name without re-logging.
func (h *CompanyHandler) Rename(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	var payload struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	actor, _ := middleware.GetUsername(r.Context())
	renamed, err := h.companies.Rename(r.Context(), actor, key, payload.Name)
	switch {
	case errors.Is(err, companyservice.ErrNotFound):
		writeError(w, http.StatusNotFound, "company not found")
		return
	case errors.Is(err, companyservice.ErrNameTaken):
		writeError(w, http.StatusConflict, "company name already in use")
		return
	case errors.Is(err, companyservice.ErrEmptyName):
		writeError(w, http.StatusBadRequest, "company name is required")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "could not rename company")
		return
	}

	if companies, _, err := h.companies.Mappings(r.Context()); err == nil {
		if blob, err := json.Marshal(companies); err == nil {
			h.cookies.SetAccessScoped(w, cookies.CompanyMapping, cookies.EncodeBlob(string(blob)))
		}
	} else {
		log.Printf("http: refresh company mapping cookie: %v", err)
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"key":  renamed.Key,
		"name": renamed.Name,
	})
}
