package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"admin-portal/backend/internal/server/middleware"
	"admin-portal/backend/internal/transport/cookies"
	"admin-portal/backend/internal/user/domain"
	userservice "admin-portal/backend/internal/user/service"
)

// UserHandler exposes driver record management.
type UserHandler struct {
	users   *userservice.Service
	cookies *cookies.Writer
}

func NewUserHandler(users *userservice.Service, cookieWriter *cookies.Writer) *UserHandler {
	return &UserHandler{users: users, cookies: cookieWriter}
}

func (h *UserHandler) Register(r *mux.Router) {
	r.HandleFunc("/v1/users", h.List).Methods(http.MethodGet)
	r.HandleFunc("/v1/users", h.Create).Methods(http.MethodPost)
	r.HandleFunc("/v1/users/{username}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/v1/users/{username}", h.Update).Methods(http.MethodPut)
	r.HandleFunc("/v1/users/{username}", h.Delete).Methods(http.MethodDelete)
}

// userDTO is the wire shape of a driver record. The password hash never
// leaves the server.
type userDTO struct {
	Username  string   `json:"username"`
	PowerUnit *string  `json:"powerunit"`
	Companies []string `json:"companies"`
	Modules   []string `json:"modules"`
}

type userPayload struct {
	Username  string   `json:"username"`
	Password  string   `json:"password"`
	PowerUnit *string  `json:"powerunit"`
	Companies []string `json:"companies"`
	Modules   []string `json:"modules"`
}

func toDTO(u *domain.User) userDTO {
	return userDTO{
		Username:  u.Username,
		PowerUnit: u.PowerUnit,
		Companies: u.Companies,
		Modules:   u.Modules,
	}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not list users")
		return
	}
	dtos := make([]userDTO, 0, len(users))
	for i := range users {
		dtos = append(dtos, toDTO(&users[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Get(r.Context(), mux.Vars(r)["username"])
	if errors.Is(err, userservice.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load user")
		return
	}
	writeJSON(w, http.StatusOK, toDTO(u))
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload userPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.users.Create(r.Context(), userservice.Input{
		Username:  payload.Username,
		Password:  payload.Password,
		PowerUnit: payload.PowerUnit,
		Companies: payload.Companies,
		Modules:   payload.Modules,
	})
	if err != nil {
		h.writeUserError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDTO(created))
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	var payload userPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Username == "" {
		payload.Username = username
	}

	updated, err := h.users.Update(r.Context(), username, userservice.Input{
		Username:  payload.Username,
		Password:  payload.Password,
		PowerUnit: payload.PowerUnit,
		Companies: payload.Companies,
		Modules:   payload.Modules,
	})
	if err != nil {
		h.writeUserError(w, err)
		return
	}

	// An admin renaming themselves keeps their session: the username cookie
	// follows the new name immediately.
	if actor, ok := middleware.GetUsername(r.Context()); ok && actor == username && updated.Username != username {
		h.cookies.SetAccessScoped(w, cookies.Username, updated.Username)
	}
	writeJSON(w, http.StatusOK, toDTO(updated))
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.users.Delete(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		h.writeUserError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *UserHandler) writeUserError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, userservice.ErrNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, userservice.ErrUsernameTaken):
		writeError(w, http.StatusConflict, "username already exists")
	case errors.Is(err, userservice.ErrPowerUnitTaken):
		writeError(w, http.StatusConflict, "power unit already assigned")
	case errors.Is(err, userservice.ErrUserActive):
		writeError(w, http.StatusConflict, "user has an active session")
	case errors.Is(err, userservice.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "user operation failed")
	}
}
