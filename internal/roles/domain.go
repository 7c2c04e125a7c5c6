// Package roles is the registry of role identities. Role membership and
// authentication live in the external identity provider; this package only
// guarantees that a role name maps to exactly one row.
package roles

import "time"

// Role represents a role identity.
type Role struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
