// Package audit records who did what through the portal. Writes are best
// effort: an unreachable audit table must never fail the request that
// triggered the event.
package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"admin-portal/backend/internal/audit/domain"
	auditrepo "admin-portal/backend/internal/audit/repository"
)

// SentinelUser is recorded for events with no resolvable identity, such as a
// logout carrying only garbage cookies.
const SentinelUser = "_anonymous"

// IPExtractor returns the client IP for the request in ctx.
type IPExtractor func(context.Context) string

// Logger persists audit events through the repository. A nil repository
// disables persistence entirely (used by cmd utilities).
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
}

// NewLogger returns a Logger writing to repo. ipExtractor may be nil; the IP
// is then recorded as "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor) *Logger {
	return &Logger{repo: repo, ipExtractor: ipExtractor}
}

// LogEvent writes one audit event. Failures are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, username, action, resource, metadata string) {
	if l.repo == nil {
		return
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		ip = l.ipExtractor(ctx)
	}
	if username == "" {
		username = SentinelUser
	}
	e := &domain.Event{
		ID:        uuid.New().String(),
		Username:  username,
		Action:    action,
		Resource:  resource,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, e); err != nil {
		log.Printf("audit: failed to log event %s/%s: %v", action, resource, err)
	}
}
