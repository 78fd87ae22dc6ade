package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"admin-portal/backend/internal/security"
	"admin-portal/backend/internal/server/middleware"
	"admin-portal/backend/internal/session/domain"
	"admin-portal/backend/internal/session/repository"
	sessionservice "admin-portal/backend/internal/session/service"
	"admin-portal/backend/internal/transport/cookies"
)

type memSessionRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*domain.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{nextID: 1, rows: map[int64]*domain.Session{}}
}

func (m *memSessionRepo) AddOrUpdate(ctx context.Context, ref domain.Ref, p repository.UpsertParams) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := ref.Existing(); ok {
		row, ok := m.rows[id]
		if !ok {
			return nil, nil
		}
		row.AccessToken = p.AccessToken
		row.RefreshToken = p.RefreshToken
		row.ExpiryTime = p.ExpiryTime
		row.LastActivity = p.LastActivity
		out := *row
		return &out, nil
	}
	id := m.nextID
	m.nextID++
	row := &domain.Session{
		ID: id, Username: p.Username,
		AccessToken: p.AccessToken, RefreshToken: p.RefreshToken,
		ExpiryTime: p.ExpiryTime, LoginTime: p.LastActivity, LastActivity: p.LastActivity,
	}
	m.rows[id] = row
	out := *row
	return &out, nil
}

func (m *memSessionRepo) GetByID(ctx context.Context, id int64) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.rows[id]; ok {
		out := *row
		return &out, nil
	}
	return nil, nil
}

func (m *memSessionRepo) GetByIdentity(ctx context.Context, username, access, refresh string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Username == username && row.AccessToken == access && row.RefreshToken == refresh {
			out := *row
			return &out, nil
		}
	}
	return nil, nil
}

func (m *memSessionRepo) DeleteByID(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return false, nil
	}
	delete(m.rows, id)
	return true, nil
}

func (m *memSessionRepo) DeleteExpired(ctx context.Context, now time.Time, idle time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, row := range m.rows {
		if row.Expired(now, idle) {
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

func (m *memSessionRepo) TouchLastActivity(ctx context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.rows[id]; ok {
		row.LastActivity = at
	}
	return nil
}

func (m *memSessionRepo) HasForUsername(ctx context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Username == username {
			return true, nil
		}
	}
	return false, nil
}

type memDirectory struct{}

func (memDirectory) Lookup(ctx context.Context, username string) (*sessionservice.UserRecord, error) {
	if username != "alice" {
		return nil, nil
	}
	return &sessionservice.UserRecord{Username: "alice", Companies: []string{"ACME"}}, nil
}

type memMappings struct{}

func (memMappings) Mappings(ctx context.Context) (map[string]string, map[string]string, error) {
	return map[string]string{"ACME": "Acme Freight"}, map[string]string{"/dispatch": "Dispatch"}, nil
}

type nopAudit struct{}

func (nopAudit) LogEvent(ctx context.Context, username, action, resource, metadata string) {}

func newTestHandler(repo *memSessionRepo) (*SessionHandler, *mux.Router) {
	svc := sessionservice.NewService(repo, memDirectory{}, memMappings{}, security.NewTestTokenProvider(), nopAudit{})
	writer := cookies.NewWriter("example.com", 15*time.Minute, 24*time.Hour)
	h := NewSessionHandler(svc, writer, "https://portal.example.com/", 30*time.Minute, true)
	r := mux.NewRouter()
	h.Register(r)
	return h, r
}

func establish(t *testing.T, router *mux.Router) map[string]*http.Cookie {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions?username=alice&company=ACME", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusFound {
		t.Fatalf("establish status = %d body=%s", rec.Code, rec.Body.String())
	}
	out := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

func TestEstablish_SetsCookieSetAndRedirects(t *testing.T) {
	_, router := newTestHandler(newMemSessionRepo())
	set := establish(t, router)

	for _, name := range []string{
		cookies.Username, cookies.Company, cookies.AccessToken,
		cookies.RefreshToken, cookies.CompanyMapping, cookies.ModuleMapping,
	} {
		if set[name] == nil || set[name].Value == "" {
			t.Errorf("cookie %s not set", name)
		}
	}
	// Mapping cookies carry JSON inside a base64url envelope, so the value as
	// written contains none of the characters http.SetCookie strips.
	raw := set[cookies.CompanyMapping].Value
	if strings.ContainsAny(raw, `", `) {
		t.Errorf("company mapping cookie value %q is not cookie-safe", raw)
	}
	blob, err := cookies.DecodeBlob(raw)
	if err != nil {
		t.Fatalf("decode company mapping cookie: %v", err)
	}
	if !strings.Contains(blob, "Acme Freight") {
		t.Errorf("company mapping blob = %q", blob)
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(blob), &m); err != nil {
		t.Fatalf("company mapping blob is not JSON: %v", err)
	}
	if m["ACME"] != "Acme Freight" {
		t.Errorf("company mapping = %v", m)
	}
}

func TestEstablish_UnknownUser404(t *testing.T) {
	_, router := newTestHandler(newMemSessionRepo())
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions?username=mallory&company=ACME", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestEstablish_MissingUsername400(t *testing.T) {
	_, router := newTestHandler(newMemSessionRepo())
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestMe_RoundTrip(t *testing.T) {
	repo := newMemSessionRepo()
	_, router := newTestHandler(repo)
	set := establish(t, router)

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/me", nil)
	for _, c := range set {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var body struct {
		User struct {
			Username string `json:"username"`
		} `json:"user"`
		SessionID int64 `json:"sessionId"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.User.Username != "alice" || body.SessionID == 0 {
		t.Fatalf("unexpected body %+v", body)
	}
}

// Each missing cookie gets its own message: the client distinguishes "not
// logged in" from "corrupted session".
func TestMe_MissingCookiePerFieldMessage(t *testing.T) {
	_, router := newTestHandler(newMemSessionRepo())

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/me", nil)
	req.AddCookie(&http.Cookie{Name: cookies.Username, Value: "alice"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), cookies.CompanyMapping) {
		t.Fatalf("error must name the missing cookie, got %s", rec.Body.String())
	}
}

func TestMe_CorruptMappingCookie400(t *testing.T) {
	repo := newMemSessionRepo()
	_, router := newTestHandler(repo)
	set := establish(t, router)

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/me", nil)
	for _, c := range set {
		v := c.Value
		if c.Name == cookies.CompanyMapping {
			v = "%%%not-an-envelope"
		}
		req.AddCookie(&http.Cookie{Name: c.Name, Value: v})
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "corrupted") {
		t.Fatalf("error must say the cookie is corrupted, got %s", rec.Body.String())
	}
}

// Stale cookies: the tokens verify but the store row is gone, so /me is 401.
func TestMe_NoStoreRow401(t *testing.T) {
	repo := newMemSessionRepo()
	_, router := newTestHandler(repo)
	set := establish(t, router)

	for id := range repo.rows {
		delete(repo.rows, id)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/me", nil)
	for _, c := range set {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestReturn_ExtendsCookies(t *testing.T) {
	repo := newMemSessionRepo()
	_, router := newTestHandler(repo)
	set := establish(t, router)

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/return/1", nil)
	for _, c := range set {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	got := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		got[c.Name] = c
	}
	if got[cookies.Return] == nil || got[cookies.Return].Value != "true" {
		t.Fatal("return marker cookie not set")
	}
	if got[cookies.AccessToken] == nil {
		t.Fatal("request cookies were not extended")
	}
}

func TestReturn_MissingCookie401(t *testing.T) {
	_, router := newTestHandler(newMemSessionRepo())
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/return/1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestReturn_VanishedRow500(t *testing.T) {
	repo := newMemSessionRepo()
	_, router := newTestHandler(repo)
	set := establish(t, router)

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/return/999", nil)
	for _, c := range set {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

type gatedRoutes struct{}

func (gatedRoutes) Public(ctx context.Context, method, path string) bool { return false }

// A token inside the rotation window reaches /me through the gate, which
// rotates the pair and records it in the store before the handler runs. The
// handler must still find the session row: it looks it up with the rotated
// pair, not the stale one from the request cookies.
func TestMe_AdmittedThroughGateWithRotation(t *testing.T) {
	repo := newMemSessionRepo()
	tokens := security.NewTokenProvider(security.TokenConfig{
		Secret:       "unit-test-signing-key-0123456789abcdef",
		Issuer:       "test-issuer",
		Audience:     "test-audience",
		AccessTTL:    2 * time.Minute, // inside the rotation window from the start
		RefreshTTL:   24 * time.Hour,
		RotateWithin: 5 * time.Minute,
	})
	svc := sessionservice.NewService(repo, memDirectory{}, memMappings{}, tokens, nopAudit{})
	writer := cookies.NewWriter("example.com", 15*time.Minute, 24*time.Hour)
	h := NewSessionHandler(svc, writer, "https://portal.example.com/", 30*time.Minute, true)
	router := mux.NewRouter()
	h.Register(router)
	stack := middleware.NewGate(tokens, writer, gatedRoutes{}, svc).Middleware(router)

	est, err := svc.Establish(context.Background(), sessionservice.EstablishInput{Username: "alice", Company: "ACME"})
	if err != nil {
		t.Fatalf("establish: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/me", nil)
	req.AddCookie(&http.Cookie{Name: cookies.Username, Value: "alice"})
	req.AddCookie(&http.Cookie{Name: cookies.AccessToken, Value: est.Tokens.AccessToken})
	req.AddCookie(&http.Cookie{Name: cookies.RefreshToken, Value: est.Tokens.RefreshToken})
	req.AddCookie(&http.Cookie{Name: cookies.CompanyMapping, Value: cookies.EncodeBlob(est.CompanyMapping)})
	req.AddCookie(&http.Cookie{Name: cookies.ModuleMapping, Value: cookies.EncodeBlob(est.ModuleMapping)})
	rec := httptest.NewRecorder()
	stack.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	rotated := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		rotated[c.Name] = c
	}
	if rotated[cookies.AccessToken] == nil || rotated[cookies.AccessToken].Value == est.Tokens.AccessToken {
		t.Fatal("gate did not rotate the access token cookie")
	}
	row, err := repo.GetByID(context.Background(), est.SessionID)
	if err != nil || row == nil {
		t.Fatalf("session row gone after rotation: %v", err)
	}
	if row.AccessToken != rotated[cookies.AccessToken].Value {
		t.Fatal("store row does not hold the rotated access token")
	}
}

// Logout is always 200 with every request cookie cleared, even when the row
// was already gone.
func TestLogout_AlwaysSucceedsAndClears(t *testing.T) {
	repo := newMemSessionRepo()
	_, router := newTestHandler(repo)
	set := establish(t, router)

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/logout/999", nil)
	for _, c := range set {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	cleared := rec.Result().Cookies()
	if len(cleared) != len(set) {
		t.Fatalf("cleared %d cookies, want %d", len(cleared), len(set))
	}
	for _, c := range cleared {
		if c.Value != "" {
			t.Fatalf("cookie %s not cleared", c.Name)
		}
	}
}
