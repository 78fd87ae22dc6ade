// Package cookies owns the portal's cookie set: names, the shared attribute
// profile and the write/extend/clear helpers the session layer uses.
package cookies

import (
	"encoding/base64"
	"net/http"
	"time"
)

// Recognized cookie names.
const (
	Username       = "username"
	Company        = "company"
	AccessToken    = "access_token"
	RefreshToken   = "refresh_token"
	CompanyMapping = "company_mapping"
	ModuleMapping  = "module_mapping"
	Return         = "return"
)

// Writer stamps cookies with the shared attribute profile: HttpOnly, Secure,
// SameSite=None, parent domain, path /. Access-linked cookies live for
// AccessTTL, the refresh token cookie for RefreshTTL.
type Writer struct {
	Domain     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	now func() time.Time
}

func NewWriter(domain string, accessTTL, refreshTTL time.Duration) *Writer {
	return &Writer{Domain: domain, AccessTTL: accessTTL, RefreshTTL: refreshTTL, now: time.Now}
}

// SetAccessScoped writes a cookie that expires with the access token.
func (w *Writer) SetAccessScoped(resp http.ResponseWriter, name, value string) {
	http.SetCookie(resp, w.build(name, value, w.now().Add(w.AccessTTL)))
}

// SetRefresh writes the refresh token cookie with its longer lifetime.
func (w *Writer) SetRefresh(resp http.ResponseWriter, value string) {
	http.SetCookie(resp, w.build(RefreshToken, value, w.now().Add(w.RefreshTTL)))
}

// ExtendAll re-writes every cookie present on the request with a new expiry
// of now+extra, preserving values. Keeps a session alive without minting new
// tokens.
func (w *Writer) ExtendAll(req *http.Request, resp http.ResponseWriter, extra time.Duration) {
	expires := w.now().Add(extra)
	for _, c := range req.Cookies() {
		http.SetCookie(resp, w.build(c.Name, c.Value, expires))
	}
}

// ClearAll expires every cookie present on the request. There is no
// allow-list on purpose: unknown or legacy cookies get purged too.
func (w *Writer) ClearAll(req *http.Request, resp http.ResponseWriter) {
	expires := w.now().Add(-time.Hour)
	for _, c := range req.Cookies() {
		cleared := w.build(c.Name, "", expires)
		cleared.MaxAge = -1
		http.SetCookie(resp, cleared)
	}
}

// EncodeBlob makes a JSON blob safe to carry as a cookie value. http.SetCookie
// strips quotes, spaces and commas from values, which would mangle raw JSON.
func EncodeBlob(blob string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(blob))
}

// DecodeBlob reverses EncodeBlob.
func DecodeBlob(value string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (w *Writer) build(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   w.Domain,
		Expires:  expires,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
}
