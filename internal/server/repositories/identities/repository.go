// Package identities is the storage port for registered identities and its
// PostgreSQL and in-memory implementations.
package identities

import (
	"context"

	"github.com/Norrels/Upframer-auth/internal/server/models"
)

// Repository is the contract the auth service depends on.
//
// FindByEmail returns common.ErrorNotFound when no identity matches.
// Create returns common.ErrorAlreadyExists when email is already taken; the
// implementation must enforce this itself, since concurrent registrations can
// both pass a lookup before either inserts.
type Repository interface {
	Create(ctx context.Context, email, displayName, secretHash string) (*models.Identity, error)
	FindByEmail(ctx context.Context, email string) (*models.Identity, error)
}
