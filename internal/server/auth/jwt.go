// Package auth holds the credential primitives of the server: bcrypt secret
// hashing and HS256 bearer tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/Norrels/Upframer-auth/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretKeyLength is the shortest signing key NewTokenIssuer accepts.
const MinSecretKeyLength = 32

// DefaultTokenValidity is how long an issued token stays valid.
const DefaultTokenValidity = 7 * 24 * time.Hour

// Claims is the signed token body: {userId, email, jti, iat, exp}. The jti
// makes two tokens issued in the same second for the same identity differ.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenPayload is what a caller puts into a token and gets back after
// verification. ExpiresAt is set by the issuer and ignored by Issue.
type TokenPayload struct {
	SubjectID string
	Email     string
	ExpiresAt time.Time
}

// TokenIssuer signs and verifies stateless bearer tokens. It keeps no record
// of issued tokens; expiry is the only way a token stops being valid.
type TokenIssuer struct {
	secretKey []byte
	validity  time.Duration
	now       func() time.Time
}

// NewTokenIssuer fails when secretKey is shorter than MinSecretKeyLength.
// A zero validity selects DefaultTokenValidity.
func NewTokenIssuer(secretKey []byte, validity time.Duration) (*TokenIssuer, error) {
	if len(secretKey) < MinSecretKeyLength {
		return nil, fmt.Errorf("signing key must be at least %d bytes, got %d", MinSecretKeyLength, len(secretKey))
	}
	if validity == 0 {
		validity = DefaultTokenValidity
	}
	key := make([]byte, len(secretKey))
	copy(key, secretKey)
	return &TokenIssuer{secretKey: key, validity: validity, now: time.Now}, nil
}

func (i *TokenIssuer) Issue(payload TokenPayload) (string, error) {
	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: payload.SubjectID,
		Email:  payload.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.validity)),
		},
	})

	s, err := token.SignedString(i.secretKey)
	if err != nil {
		return "", fmt.Errorf("error signing token: %w", err)
	}
	return s, nil
}

// Verify returns the payload of a well-formed, correctly signed, unexpired
// HS256 token. Every failure is reported as common.ErrInvalidToken, with the
// parser's reason wrapped alongside it.
func (i *TokenIssuer) Verify(tokenString string) (*TokenPayload, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			return i.secretKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, common.ErrInvalidToken
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, errors.New("missing userId claim"))
	}

	return &TokenPayload{
		SubjectID: claims.UserID,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
