package domain

import "time"

// Session is one login's durable record: the current token pair, timestamps,
// and optional task context the client asked the server to hold.
type Session struct {
	ID           int64
	Username     string
	AccessToken  string
	RefreshToken string
	// ExpiryTime is the refresh token's absolute expiry. Used by cleanup only;
	// access-token expiry is checked from the token itself.
	ExpiryTime time.Time
	// LoginTime is set at creation and never changes.
	LoginTime time.Time
	// LastActivity is advanced on every touch: validate, extend, rotate.
	LastActivity time.Time
	PowerUnit    *string // nil when the session carries no task context
	ManifestDate *string
}

// Ref identifies the target of an upsert: either a new row or an existing one.
// It replaces the id==0 sentinel the store key would otherwise be overloaded with.
type Ref struct {
	id int64
}

// NewSession is a Ref for a row that does not exist yet.
func NewSession() Ref { return Ref{} }

// ExistingSession is a Ref for the row with the given id.
func ExistingSession(id int64) Ref { return Ref{id: id} }

// Existing reports whether the ref points at an existing row, and its id.
func (r Ref) Existing() (int64, bool) { return r.id, r.id != 0 }

// Expired reports whether the session is eligible for cleanup at now: its
// refresh expiry has passed, or it has idled longer than idleTimeout.
// The two conditions are independent; either alone suffices.
func (s *Session) Expired(now time.Time, idleTimeout time.Duration) bool {
	if !s.ExpiryTime.After(now) {
		return true
	}
	return !s.LastActivity.After(now) && s.LastActivity.Before(now.Add(-idleTimeout))
}
