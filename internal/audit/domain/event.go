// Package domain holds the persisted audit event record.
package domain

import "time"

// Event is one security-relevant action taken through the portal.
type Event struct {
	ID        string
	Username  string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
