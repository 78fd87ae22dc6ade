package audit

import (
	"context"
	"errors"
	"testing"

	"admin-portal/backend/internal/audit/domain"
)

type mockAuditRepo struct {
	entries   []*domain.Event
	createErr error
}

func (m *mockAuditRepo) Create(ctx context.Context, e *domain.Event) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockAuditRepo) ListRecent(ctx context.Context, limit int32) ([]*domain.Event, error) {
	return nil, nil
}

func TestLogEvent(t *testing.T) {
	repo := &mockAuditRepo{}
	logger := NewLogger(repo, func(ctx context.Context) string { return "192.168.1.1" })

	logger.LogEvent(context.Background(), "alice", "session.establish", "session", "")

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	e := repo.entries[0]
	if e.Username != "alice" || e.Action != "session.establish" || e.Resource != "session" {
		t.Fatalf("unexpected entry %+v", e)
	}
	if e.IP != "192.168.1.1" {
		t.Fatalf("ip = %q", e.IP)
	}
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Fatal("id and created_at must be set")
	}
}

func TestLogEvent_MissingIdentityUsesSentinel(t *testing.T) {
	repo := &mockAuditRepo{}
	logger := NewLogger(repo, nil)

	logger.LogEvent(context.Background(), "", "session.logout", "session", "")

	if repo.entries[0].Username != SentinelUser {
		t.Fatalf("username = %q, want sentinel", repo.entries[0].Username)
	}
	if repo.entries[0].IP != "unknown" {
		t.Fatalf("ip = %q, want unknown without extractor", repo.entries[0].IP)
	}
}

// A failing repository must not panic or surface the error.
func TestLogEvent_RepoFailureSwallowed(t *testing.T) {
	repo := &mockAuditRepo{createErr: errors.New("table missing")}
	logger := NewLogger(repo, nil)
	logger.LogEvent(context.Background(), "alice", "user.create", "user:alice", "")
	if len(repo.entries) != 0 {
		t.Fatal("no entry expected on failure")
	}
}

func TestLogEvent_NilRepoIsNoop(t *testing.T) {
	logger := NewLogger(nil, nil)
	logger.LogEvent(context.Background(), "alice", "noop", "noop", "")
}
