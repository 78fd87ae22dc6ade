package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	auditdomain "admin-portal/backend/internal/audit/domain"
)

type memAuditRepo struct {
	events  []*auditdomain.Event
	lastReq int32
	fail    bool
}

func (m *memAuditRepo) Create(ctx context.Context, e *auditdomain.Event) error {
	m.events = append(m.events, e)
	return nil
}

func (m *memAuditRepo) ListRecent(ctx context.Context, limit int32) ([]*auditdomain.Event, error) {
	m.lastReq = limit
	if m.fail {
		return nil, errors.New("store down")
	}
	if int(limit) < len(m.events) {
		return m.events[:limit], nil
	}
	return m.events, nil
}

func newAuditRouter(repo *memAuditRepo) *mux.Router {
	r := mux.NewRouter()
	NewAuditHandler(repo).Register(r)
	return r
}

func TestAuditList_ReturnsRecentEvents(t *testing.T) {
	repo := &memAuditRepo{events: []*auditdomain.Event{
		{ID: "e2", Username: "alice", Action: "company.rename", Resource: "company:ACME", IP: "10.0.0.1", Metadata: "Acme Freight", CreatedAt: time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)},
		{ID: "e1", Username: "alice", Action: "session.login", Resource: "session:1", IP: "10.0.0.1", CreatedAt: time.Date(2026, 1, 2, 11, 0, 0, 0, time.UTC)},
	}}
	router := newAuditRouter(repo)

	req := httptest.NewRequest(http.MethodGet, "/v1/audit/events", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if repo.lastReq != auditDefaultLimit {
		t.Fatalf("default limit = %d, want %d", repo.lastReq, auditDefaultLimit)
	}
	var body struct {
		Events []struct {
			ID     string `json:"id"`
			Action string `json:"action"`
		} `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Events) != 2 || body.Events[0].ID != "e2" || body.Events[0].Action != "company.rename" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestAuditList_LimitParam(t *testing.T) {
	repo := &memAuditRepo{}
	router := newAuditRouter(repo)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/audit/events?limit=7", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if repo.lastReq != 7 {
		t.Fatalf("limit = %d, want 7", repo.lastReq)
	}

	// Oversized limits are clamped, not rejected.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/audit/events?limit=10000", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if repo.lastReq != auditMaxLimit {
		t.Fatalf("limit = %d, want %d", repo.lastReq, auditMaxLimit)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/audit/events?limit=zero", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAuditList_StoreFailure500(t *testing.T) {
	router := newAuditRouter(&memAuditRepo{fail: true})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/audit/events", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}
