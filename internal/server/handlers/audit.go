package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	auditrepo "admin-portal/backend/internal/audit/repository"
)

const (
	auditDefaultLimit = 50
	auditMaxLimit     = 500
)

// AuditHandler exposes the audit trail read-side: the newest events, for the
// admin screens. Writes go through the audit logger, never through HTTP.
type AuditHandler struct {
	events auditrepo.Repository
}

func NewAuditHandler(events auditrepo.Repository) *AuditHandler {
	return &AuditHandler{events: events}
}

func (h *AuditHandler) Register(r *mux.Router) {
	r.HandleFunc("/v1/audit/events", h.List).Methods(http.MethodGet)
}

type auditEventDTO struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	IP        string    `json:"ip"`
	Metadata  string    `json:"metadata"`
	CreatedAt time.Time `json:"createdAt"`
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := auditDefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n > auditMaxLimit {
			n = auditMaxLimit
		}
		limit = n
	}

	events, err := h.events.ListRecent(r.Context(), int32(limit))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load audit events")
		return
	}

	out := make([]auditEventDTO, 0, len(events))
	for _, e := range events {
		out = append(out, auditEventDTO{
			ID:        e.ID,
			Username:  e.Username,
			Action:    e.Action,
			Resource:  e.Resource,
			IP:        e.IP,
			Metadata:  e.Metadata,
			CreatedAt: e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}
