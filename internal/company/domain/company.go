// Package domain holds company and module reference records.
package domain

// Company maps a stable key to its mutable display name.
type Company struct {
	Key  string
	Name string
}

// Module maps a module URL to its display name.
type Module struct {
	URL  string
	Name string
}
