// Package users is a thin read adapter over the identity provider's user and
// user-role tables. It exists so the access-check endpoint can resolve a
// caller's roles; account management itself is external.
package users

import "time"

// User represents a user account.
type User struct {
	ID        int64
	Email     string
	Name      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
