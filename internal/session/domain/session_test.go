package domain

import (
	"testing"
	"time"
)

func TestExpired(t *testing.T) {
	now := time.Now()
	idle := 30 * time.Minute

	cases := []struct {
		name         string
		expiry       time.Time
		lastActivity time.Time
		want         bool
	}{
		// Expiry alone is sufficient, even with activity just now.
		{"expired despite recent activity", now.Add(-time.Second), now, true},
		{"live and active", now.Add(time.Hour), now, false},
		{"idle past timeout", now.Add(time.Hour), now.Add(-time.Hour), true},
		{"idle but within timeout", now.Add(time.Hour), now.Add(-10 * time.Minute), false},
		{"activity exactly at idle boundary", now.Add(time.Hour), now.Add(-idle), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := &Session{ExpiryTime: tc.expiry, LastActivity: tc.lastActivity}
			if got := s.Expired(now, idle); got != tc.want {
				t.Fatalf("Expired() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRef(t *testing.T) {
	if _, ok := NewSession().Existing(); ok {
		t.Fatal("NewSession ref must not report an existing id")
	}
	id, ok := ExistingSession(7).Existing()
	if !ok || id != 7 {
		t.Fatalf("ExistingSession(7) = (%d, %v)", id, ok)
	}
}
