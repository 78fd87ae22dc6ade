// Package service implements the session lifecycle: establish, validate,
// extend and logout, orchestrating the token provider, the session store and
// the user directory.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"admin-portal/backend/internal/security"
	"admin-portal/backend/internal/session/domain"
	"admin-portal/backend/internal/session/repository"
)

var (
	// ErrUnknownUser means the identity has no record in the user directory.
	// Establishment fails closed on it.
	ErrUnknownUser = errors.New("user not found")

	// ErrUnauthorized means the presented credentials do not match a live
	// session row. The cookies are stale relative to the store.
	ErrUnauthorized = errors.New("session is not valid")

	// ErrStore means the session store could not complete a required write.
	ErrStore = errors.New("session store failure")
)

// UserRecord is the directory view of a driver the session layer needs.
type UserRecord struct {
	Username  string
	PowerUnit *string
	Companies []string
	Modules   []string
}

// UserDirectory resolves identities. Lookup returns (nil, nil) when the
// username has no record.
type UserDirectory interface {
	Lookup(ctx context.Context, username string) (*UserRecord, error)
}

// MappingSource provides the display-name mappings cached into cookies.
type MappingSource interface {
	Mappings(ctx context.Context) (companies map[string]string, modules map[string]string, err error)
}

// AuditRecorder persists security-relevant events, best effort.
type AuditRecorder interface {
	LogEvent(ctx context.Context, username, action, resource, metadata string)
}

// Credentials is the identity triple carried by the session cookies.
type Credentials struct {
	Username     string
	AccessToken  string
	RefreshToken string
}

type Service struct {
	sessions repository.SessionRepository
	users    UserDirectory
	mappings MappingSource
	tokens   *security.TokenProvider
	audit    AuditRecorder
	now      func() time.Time
}

func NewService(sessions repository.SessionRepository, users UserDirectory, mappings MappingSource, tokens *security.TokenProvider, audit AuditRecorder) *Service {
	return &Service{
		sessions: sessions,
		users:    users,
		mappings: mappings,
		tokens:   tokens,
		audit:    audit,
		now:      time.Now,
	}
}

// EstablishInput carries everything a new session needs. PowerUnit and
// ManifestDate are optional task context, stored with the session when given.
type EstablishInput struct {
	Username     string
	Company      string
	PowerUnit    *string
	ManifestDate *string
}

// EstablishResult is handed to the transport layer, which turns it into the
// identity, token and mapping cookies.
type EstablishResult struct {
	SessionID      int64
	Tokens         security.TokenPair
	CompanyMapping string
	ModuleMapping  string
}

// Establish creates a session for a known identity: resolves the user (fails
// closed with ErrUnknownUser), issues a token pair, inserts the session row
// and fetches the mapping blobs cached as cookies.
func (s *Service) Establish(ctx context.Context, in EstablishInput) (*EstablishResult, error) {
	user, err := s.users.Lookup(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUnknownUser
	}

	pair, err := s.tokens.Issue(in.Username, in.Company)
	if err != nil {
		return nil, err
	}

	powerUnit := in.PowerUnit
	if powerUnit == nil {
		powerUnit = user.PowerUnit
	}

	now := s.now()
	sess, err := s.sessions.AddOrUpdate(ctx, domain.NewSession(), repository.UpsertParams{
		Username:     in.Username,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiryTime:   pair.RefreshExpiresAt,
		LastActivity: now,
		PowerUnit:    powerUnit,
		ManifestDate: in.ManifestDate,
	})
	if err != nil {
		return nil, errors.Join(ErrStore, err)
	}
	if sess == nil {
		return nil, ErrStore
	}

	companyMapping, moduleMapping, err := s.mappingBlobs(ctx)
	if err != nil {
		return nil, err
	}

	s.audit.LogEvent(ctx, in.Username, "session.establish", "session", "")
	return &EstablishResult{
		SessionID:      sess.ID,
		Tokens:         pair,
		CompanyMapping: companyMapping,
		ModuleMapping:  moduleMapping,
	}, nil
}

// ValidateResult is the "who am I" answer for an admitted request.
type ValidateResult struct {
	User      *UserRecord
	SessionID int64
}

// Validate checks the cookie-carried identity triple against the store. A
// token that still verifies but has no matching session row is unauthorized:
// a server-side logout outpaced this request (ErrUnauthorized).
func (s *Service) Validate(ctx context.Context, creds Credentials) (*ValidateResult, error) {
	user, err := s.users.Lookup(ctx, creds.Username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUnauthorized
	}

	sess, err := s.sessions.GetByIdentity(ctx, creds.Username, creds.AccessToken, creds.RefreshToken)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrUnauthorized
	}

	if err := s.sessions.TouchLastActivity(ctx, sess.ID, s.now()); err != nil {
		log.Printf("session: touch last activity for %d: %v", sess.ID, err)
	}

	s.audit.LogEvent(ctx, creds.Username, "session.validate", "session", "")
	return &ValidateResult{User: user, SessionID: sess.ID}, nil
}

// Extend refreshes the session row for a returning client. The refresh-token
// expiry is re-derived by decoding the token; a decode failure is logged and
// falls back to the default refresh lifetime. A store failure here is fatal
// to the request.
func (s *Service) Extend(ctx context.Context, sessionID int64, creds Credentials) (*domain.Session, error) {
	expiry, err := s.tokens.RefreshExpiry(creds.RefreshToken)
	if err != nil {
		log.Printf("session: decode refresh expiry: %v", err)
		expiry = s.tokens.DefaultRefreshExpiry()
	}

	sess, err := s.sessions.AddOrUpdate(ctx, domain.ExistingSession(sessionID), repository.UpsertParams{
		Username:     creds.Username,
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		ExpiryTime:   expiry,
		LastActivity: s.now(),
	})
	if err != nil {
		return nil, errors.Join(ErrStore, err)
	}
	if sess == nil {
		return nil, ErrStore
	}

	s.audit.LogEvent(ctx, creds.Username, "session.extend", "session", "")
	return sess, nil
}

// Logout removes the session row. When delete-by-id reports nothing removed,
// the expired-session sweep runs as a fallback so garbage does not
// accumulate. Logout never fails: store errors are logged and swallowed, the
// caller clears cookies regardless.
func (s *Service) Logout(ctx context.Context, sessionID int64, username string, idleTimeout time.Duration) {
	deleted, err := s.sessions.DeleteByID(ctx, sessionID)
	if err != nil {
		log.Printf("session: delete %d: %v", sessionID, err)
	}
	if err != nil || !deleted {
		if _, sweepErr := s.sessions.DeleteExpired(ctx, s.now(), idleTimeout); sweepErr != nil {
			log.Printf("session: cleanup sweep: %v", sweepErr)
		}
	}
	s.audit.LogEvent(ctx, username, "session.logout", "session", "")
}

// RecordRotation mirrors a silent token rotation into the store so the
// session row always holds the latest pair. Best effort: the rotated cookies
// are already on their way to the client, a store miss only means the next
// Validate fails and the client re-authenticates.
func (s *Service) RecordRotation(ctx context.Context, old Credentials, pair security.TokenPair) {
	sess, err := s.sessions.GetByIdentity(ctx, old.Username, old.AccessToken, old.RefreshToken)
	if err != nil || sess == nil {
		log.Printf("session: rotation for %q matched no session row (err=%v)", old.Username, err)
		return
	}
	_, err = s.sessions.AddOrUpdate(ctx, domain.ExistingSession(sess.ID), repository.UpsertParams{
		Username:     old.Username,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiryTime:   pair.RefreshExpiresAt,
		LastActivity: s.now(),
		PowerUnit:    sess.PowerUnit,
		ManifestDate: sess.ManifestDate,
	})
	if err != nil {
		log.Printf("session: record rotation for %d: %v", sess.ID, err)
		return
	}
	s.audit.LogEvent(ctx, old.Username, "token.rotate", "session", "")
}

func (s *Service) mappingBlobs(ctx context.Context) (string, string, error) {
	companies, modules, err := s.mappings.Mappings(ctx)
	if err != nil {
		return "", "", err
	}
	companyJSON, err := json.Marshal(companies)
	if err != nil {
		return "", "", err
	}
	moduleJSON, err := json.Marshal(modules)
	if err != nil {
		return "", "", err
	}
	return string(companyJSON), string(moduleJSON), nil
}
