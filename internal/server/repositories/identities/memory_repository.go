package identities

import (
	"context"
	"sync"
	"time"

	"github.com/Norrels/Upframer-auth/internal/common"
	"github.com/Norrels/Upframer-auth/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository keeps identities in a map keyed by email. It is safe for
// concurrent use and enforces email uniqueness under its lock.
type MemoryRepository struct {
	mu      sync.RWMutex
	byEmail map[string]models.Identity
	now     func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byEmail: make(map[string]models.Identity),
		now:     time.Now,
	}
}

func (r *MemoryRepository) Create(ctx context.Context, email, displayName, secretHash string) (*models.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[email]; ok {
		return nil, common.ErrorAlreadyExists
	}

	now := r.now().UTC()
	identity := models.Identity{
		ID:          uuid.NewString(),
		Email:       email,
		DisplayName: displayName,
		SecretHash:  secretHash,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.byEmail[email] = identity

	return &identity, nil
}

func (r *MemoryRepository) FindByEmail(ctx context.Context, email string) (*models.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, ok := r.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &identity, nil
}

// Len returns the number of stored identities.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byEmail)
}
