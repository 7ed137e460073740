// Package services contains server-side business logic. This file implements
// AuthService, which registers identities, logs them in and verifies the
// bearer tokens it issues.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Norrels/Upframer-auth/internal/common"
	"github.com/Norrels/Upframer-auth/internal/server/auth"
	"github.com/Norrels/Upframer-auth/internal/server/models"
	"github.com/Norrels/Upframer-auth/internal/server/repositories/identities"
)

// SecretHasher is satisfied by *auth.BcryptHasher.
type SecretHasher interface {
	Hash(secret string) (string, error)
	Verify(secret, hash string) bool
}

// TokenIssuer is satisfied by *auth.TokenIssuer.
type TokenIssuer interface {
	Issue(payload auth.TokenPayload) (string, error)
	Verify(token string) (*auth.TokenPayload, error)
}

type RegisterInput struct {
	Email       string
	DisplayName string
	Secret      string
}

type LoginInput struct {
	Email  string
	Secret string
}

// IdentityView is the caller-visible part of an identity.
type IdentityView struct {
	ID          string
	Email       string
	DisplayName string
}

type AuthResult struct {
	Identity IdentityView
	Token    string
}

// decoySecret is hashed once and compared against on login misses.
const decoySecret = "decoy-secret-for-unknown-identities"

// AuthService orchestrates registration and login.
//
// Failures are sentinel errors from package common:
//   - ErrorDuplicateEmail: Register for an email that already exists.
//   - ErrorInvalidCredentials: Login with an unknown email or a wrong secret.
//   - ErrInvalidToken: Authenticate with a bad or expired token.
//   - ErrorStore: any other store fault, with the cause wrapped.
//   - ErrorInternal: hashing or signing failed, with the cause wrapped.
//
// Emails are trimmed and lower-cased before they reach the store.
type AuthService struct {
	identities identities.Repository
	hasher     SecretHasher
	tokens     TokenIssuer

	decoyOnce sync.Once
	decoyHash string
}

func NewAuthService(repo identities.Repository, hasher SecretHasher, tokens TokenIssuer) *AuthService {
	return &AuthService{
		identities: repo,
		hasher:     hasher,
		tokens:     tokens,
	}
}

// Register creates an identity and returns it with a fresh token.
//
// The lookup is only a pre-check: a concurrent registration can slip past it,
// in which case the store's uniqueness violation is reported as
// ErrorDuplicateEmail as well.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := NormalizeEmail(in.Email)

	_, err := s.identities.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, common.ErrorDuplicateEmail
	case !errors.Is(err, common.ErrorNotFound):
		return nil, storeError(err)
	}

	secretHash, err := s.hasher.Hash(in.Secret)
	if err != nil {
		return nil, fmt.Errorf("%w: error hashing secret: %w", common.ErrorInternal, err)
	}

	identity, err := s.identities.Create(ctx, email, in.DisplayName, secretHash)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrorDuplicateEmail
		}
		return nil, storeError(err)
	}

	return s.result(identity)
}

// Login checks the secret of an existing identity and returns a fresh token.
// An unknown email and a wrong secret fail with the same error.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	identity, err := s.identities.FindByEmail(ctx, NormalizeEmail(in.Email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.Verify(in.Secret, s.decoy())
			return nil, common.ErrorInvalidCredentials
		}
		return nil, storeError(err)
	}

	if !s.hasher.Verify(in.Secret, identity.SecretHash) {
		return nil, common.ErrorInvalidCredentials
	}

	return s.result(identity)
}

// Authenticate verifies a bearer token issued by Register or Login.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*auth.TokenPayload, error) {
	payload, err := s.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, common.ErrInvalidToken) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}
	return payload, nil
}

// NormalizeEmail is the email comparison policy: case-insensitive, surrounding
// whitespace ignored.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// --- helpers below ---

func (s *AuthService) result(identity *models.Identity) (*AuthResult, error) {
	token, err := s.tokens.Issue(auth.TokenPayload{SubjectID: identity.ID, Email: identity.Email})
	if err != nil {
		return nil, fmt.Errorf("%w: error issuing token: %w", common.ErrorInternal, err)
	}

	return &AuthResult{
		Identity: IdentityView{
			ID:          identity.ID,
			Email:       identity.Email,
			DisplayName: identity.DisplayName,
		},
		Token: token,
	}, nil
}

// decoy returns a hash to compare against when the email is unknown, so a
// miss costs about as much as a wrong secret. If hashing fails the empty
// string is used; Verify then simply returns false.
func (s *AuthService) decoy() string {
	s.decoyOnce.Do(func() {
		s.decoyHash, _ = s.hasher.Hash(decoySecret)
	})
	return s.decoyHash
}

func storeError(err error) error {
	return fmt.Errorf("%w: %w", common.ErrorStore, err)
}
