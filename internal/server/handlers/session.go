package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"admin-portal/backend/internal/server/middleware"
	sessionservice "admin-portal/backend/internal/session/service"
	"admin-portal/backend/internal/transport/cookies"
)

// SessionHandler exposes the session lifecycle over HTTP: establish, me,
// return and logout.
type SessionHandler struct {
	sessions    *sessionservice.Service
	cookies     *cookies.Writer
	clientURL   string
	idleTimeout time.Duration
	devLogin    bool
}

func NewSessionHandler(sessions *sessionservice.Service, cookieWriter *cookies.Writer, clientURL string, idleTimeout time.Duration, devLogin bool) *SessionHandler {
	return &SessionHandler{
		sessions:    sessions,
		cookies:     cookieWriter,
		clientURL:   clientURL,
		idleTimeout: idleTimeout,
		devLogin:    devLogin,
	}
}

func (h *SessionHandler) Register(r *mux.Router) {
	r.HandleFunc("/v1/sessions", h.Establish).Methods(http.MethodPost)
	r.HandleFunc("/v1/sessions/dev-login", h.DevLogin).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/v1/sessions/me", h.Me).Methods(http.MethodGet)
	r.HandleFunc("/v1/sessions/return/{sessionId}", h.Return).Methods(http.MethodPost)
	r.HandleFunc("/v1/sessions/logout/{sessionId}", h.Logout).Methods(http.MethodPost)
}

// Establish creates a session for the identity handed over by the login app
// and redirects into the client with the full cookie set.
func (h *SessionHandler) Establish(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		username = r.FormValue("username")
	}
	company := r.URL.Query().Get("company")
	if company == "" {
		company = r.FormValue("company")
	}
	if username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	in := sessionservice.EstablishInput{Username: username, Company: company}
	if v := r.URL.Query().Get("powerunit"); v != "" {
		in.PowerUnit = &v
	}
	if v := r.URL.Query().Get("mfstdate"); v != "" {
		in.ManifestDate = &v
	}

	result, err := h.sessions.Establish(r.Context(), in)
	if errors.Is(err, sessionservice.ErrUnknownUser) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not establish session")
		return
	}

	h.cookies.SetAccessScoped(w, cookies.Username, username)
	h.cookies.SetAccessScoped(w, cookies.Company, company)
	h.cookies.SetAccessScoped(w, cookies.AccessToken, result.Tokens.AccessToken)
	h.cookies.SetRefresh(w, result.Tokens.RefreshToken)
	h.cookies.SetAccessScoped(w, cookies.CompanyMapping, cookies.EncodeBlob(result.CompanyMapping))
	h.cookies.SetAccessScoped(w, cookies.ModuleMapping, cookies.EncodeBlob(result.ModuleMapping))

	http.Redirect(w, r, fmt.Sprintf("%s?session=%d", h.clientURL, result.SessionID), http.StatusFound)
}

// DevLogin is Establish for local development, disabled outside dev builds.
func (h *SessionHandler) DevLogin(w http.ResponseWriter, r *http.Request) {
	if !h.devLogin {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	h.Establish(w, r)
}

// Me answers "who am I": it requires the full cookie set, each missing
// cookie getting its own message so the client can tell "not logged in" from
// "corrupted session", then checks the identity triple against the store.
func (h *SessionHandler) Me(w http.ResponseWriter, r *http.Request) {
	required := []string{
		cookies.Username,
		cookies.CompanyMapping,
		cookies.ModuleMapping,
		cookies.AccessToken,
		cookies.RefreshToken,
	}
	values := map[string]string{}
	for _, name := range required {
		c, err := r.Cookie(name)
		if err != nil || c.Value == "" {
			writeError(w, http.StatusBadRequest, name+" cookie is missing")
			return
		}
		values[name] = c.Value
	}

	creds := sessionservice.Credentials{
		Username:     values[cookies.Username],
		AccessToken:  values[cookies.AccessToken],
		RefreshToken: values[cookies.RefreshToken],
	}
	// When the gate rotated the pair on this request, the store row already
	// holds the replacement; the cookies we received are one step behind.
	if pair, ok := middleware.RotatedPair(r.Context()); ok {
		creds.AccessToken = pair.AccessToken
		creds.RefreshToken = pair.RefreshToken
	}

	result, err := h.sessions.Validate(r.Context(), creds)
	if errors.Is(err, sessionservice.ErrUnauthorized) {
		writeError(w, http.StatusUnauthorized, "session is not valid")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not validate session")
		return
	}

	companyMapping, err := decodeMappingCookie(values[cookies.CompanyMapping])
	if err != nil {
		writeError(w, http.StatusBadRequest, "company_mapping cookie is corrupted")
		return
	}
	moduleMapping, err := decodeMappingCookie(values[cookies.ModuleMapping])
	if err != nil {
		writeError(w, http.StatusBadRequest, "module_mapping cookie is corrupted")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user": map[string]any{
			"username":  result.User.Username,
			"powerunit": result.User.PowerUnit,
			"companies": result.User.Companies,
			"modules":   result.User.Modules,
		},
		"companyMapping": companyMapping,
		"moduleMapping":  moduleMapping,
		"sessionId":      result.SessionID,
	})
}

// Return refreshes the session row for a client coming back from a child
// module, extends every cookie and marks the return cookie. A store failure
// here is a hard 500.
func (h *SessionHandler) Return(w http.ResponseWriter, r *http.Request) {
	sessionID, err := strconv.ParseInt(mux.Vars(r)["sessionId"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "session id must be numeric")
		return
	}

	creds, ok := h.credentials(w, r)
	if !ok {
		return
	}

	if _, err := h.sessions.Extend(r.Context(), sessionID, creds); err != nil {
		writeError(w, http.StatusInternalServerError, "could not extend session")
		return
	}

	h.cookies.ExtendAll(r, w, 15*time.Minute)
	h.cookies.SetAccessScoped(w, cookies.Return, "true")
	writeJSON(w, http.StatusOK, map[string]string{"status": "extended"})
}

// Logout always looks successful from the client's side: the session row is
// deleted best effort and every cookie that arrived is cleared regardless.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID, _ := strconv.ParseInt(mux.Vars(r)["sessionId"], 10, 64)

	username := ""
	if c, err := r.Cookie(cookies.Username); err == nil {
		username = c.Value
	}

	h.sessions.Logout(r.Context(), sessionID, username, h.idleTimeout)
	h.cookies.ClearAll(r, w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// credentials pulls the identity triple from the cookies, writing a
// per-field 401 when one is missing.
func (h *SessionHandler) credentials(w http.ResponseWriter, r *http.Request) (sessionservice.Credentials, bool) {
	var creds sessionservice.Credentials
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{cookies.Username, &creds.Username},
		{cookies.AccessToken, &creds.AccessToken},
		{cookies.RefreshToken, &creds.RefreshToken},
	} {
		c, err := r.Cookie(f.name)
		if err != nil || c.Value == "" {
			writeError(w, http.StatusUnauthorized, f.name+" cookie is missing")
			return creds, false
		}
		*f.dst = c.Value
	}
	if pair, ok := middleware.RotatedPair(r.Context()); ok {
		creds.AccessToken = pair.AccessToken
		creds.RefreshToken = pair.RefreshToken
	}
	return creds, true
}

// decodeMappingCookie unwraps the base64url envelope around a mapping cookie
// and parses the JSON inside.
func decodeMappingCookie(value string) (map[string]string, error) {
	blob, err := cookies.DecodeBlob(value)
	if err != nil {
		return nil, err
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(blob), &m); err != nil {
		return nil, err
	}
	return m, nil
}
