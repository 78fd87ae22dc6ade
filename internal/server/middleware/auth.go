package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"admin-portal/backend/internal/security"
	sessionservice "admin-portal/backend/internal/session/service"
	"admin-portal/backend/internal/transport/cookies"
)

// RoutePolicy decides whether a route is reachable without a session.
type RoutePolicy interface {
	Public(ctx context.Context, method, path string) bool
}

// RotationRecorder mirrors a silent token rotation into the session store.
type RotationRecorder interface {
	RecordRotation(ctx context.Context, old sessionservice.Credentials, pair security.TokenPair)
}

// Gate is the per-request authorization check. It extracts the access token
// (cookie first, Authorization: Bearer second — the cookie wins when both are
// present), validates it, and on a near-expiry rotation rewrites the token
// cookies before admitting the request.
type Gate struct {
	tokens   *security.TokenProvider
	cookies  *cookies.Writer
	routes   RoutePolicy
	sessions RotationRecorder
}

func NewGate(tokens *security.TokenProvider, cookieWriter *cookies.Writer, routes RoutePolicy, sessions RotationRecorder) *Gate {
	return &Gate{tokens: tokens, cookies: cookieWriter, routes: routes, sessions: sessions}
}

func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.routes.Public(r.Context(), r.Method, r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token := extractToken(r)
		if token == "" {
			reject(w, "missing access token")
			return
		}

		claimed := cookieValue(r, cookies.Username)
		v := g.tokens.Validate(token, claimed)
		if v.Outcome == security.OutcomeInvalid {
			reject(w, "invalid or expired token")
			return
		}

		ctx := WithIdentity(r.Context(), v.Username, v.Company)
		if v.Outcome == security.OutcomeValidAndRotated {
			g.cookies.SetAccessScoped(w, cookies.AccessToken, v.Rotated.AccessToken)
			g.cookies.SetRefresh(w, v.Rotated.RefreshToken)
			g.cookies.SetAccessScoped(w, cookies.Username, v.Username)
			if g.sessions != nil {
				g.sessions.RecordRotation(r.Context(), sessionservice.Credentials{
					Username:     v.Username,
					AccessToken:  token,
					RefreshToken: cookieValue(r, cookies.RefreshToken),
				}, *v.Rotated)
			}
			// The store row now holds the new pair; handlers looking the
			// session up by credentials must see it too.
			ctx = WithRotatedPair(ctx, *v.Rotated)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractToken(r *http.Request) string {
	if v := cookieValue(r, cookies.AccessToken); v != "" {
		return v
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func reject(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
