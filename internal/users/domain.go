package users

import "time"

// User is an identity owned by the authentication subsystem. This core only
// reads it: existence checks for grants and denormalized audit fields.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
