package models

import "time"

// Identity is one registered credential. SecretHash is the bcrypt output and
// never leaves the server.
type Identity struct {
	ID          string
	Email       string
	DisplayName string
	SecretHash  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
