package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// DefaultHashCost is the bcrypt work factor used for stored secrets.
const DefaultHashCost = 10

// BcryptHasher hashes secrets with bcrypt. Every Hash call draws a fresh salt,
// so hashing the same secret twice gives two different strings.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher with the given cost; 0 selects DefaultHashCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost == 0 {
		cost = DefaultHashCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash fails for secrets longer than 72 bytes and for an out-of-range cost.
func (h *BcryptHasher) Hash(secret string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether secret matches hash. A malformed hash is a mismatch.
func (h *BcryptHasher) Verify(secret, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
