package middleware

import (
	"context"

	"admin-portal/backend/internal/security"
)

type contextKey struct{ name string }

var (
	usernameKey    = contextKey{"username"}
	companyKey     = contextKey{"company"}
	clientIPKey    = contextKey{"client_ip"}
	rotatedPairKey = contextKey{"rotated_pair"}
)

// WithIdentity returns a context carrying the admitted identity. Handlers
// read it via GetUsername and GetCompany.
func WithIdentity(ctx context.Context, username, company string) context.Context {
	ctx = context.WithValue(ctx, usernameKey, username)
	ctx = context.WithValue(ctx, companyKey, company)
	return ctx
}

// GetUsername returns the admitted username and true if the request passed
// the gate; otherwise "", false.
func GetUsername(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(usernameKey).(string)
	return v, ok
}

// GetCompany returns the company claim carried by the admitted token.
func GetCompany(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(companyKey).(string)
	return v, ok
}

// WithRotatedPair marks that the gate minted a replacement token pair while
// admitting this request. The session row already holds the new pair while
// the request cookies still carry the old one, so downstream store lookups
// must prefer it.
func WithRotatedPair(ctx context.Context, pair security.TokenPair) context.Context {
	return context.WithValue(ctx, rotatedPairKey, pair)
}

// RotatedPair returns the replacement pair minted during admission, if any.
func RotatedPair(ctx context.Context) (security.TokenPair, bool) {
	v, ok := ctx.Value(rotatedPairKey).(security.TokenPair)
	return v, ok
}

// WithClientIP stores the caller's address for audit logging.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIP returns the caller's address, or "unknown" before the logging
// middleware has run.
func ClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(clientIPKey).(string); ok {
		return v
	}
	return "unknown"
}
