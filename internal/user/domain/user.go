// Package domain holds the driver user record.
package domain

import "time"

// Limits on the assignment slots a driver record carries.
const (
	MaxCompanies = 5
	MaxModules   = 10
)

// User is a driver record: identity, optional power unit assignment, and the
// companies and modules the driver may work with. PasswordHash is stored but
// never verified here; primary login is delegated to an external system.
type User struct {
	Username     string
	PasswordHash *string
	PowerUnit    *string
	Companies    []string
	Modules      []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
