package domain

import "time"

// User is a human account for the cookie-session web login variant.
type User struct {
	ID           string
	Username     string
	PasswordHash string // argon2 encoded
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
