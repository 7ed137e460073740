package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/Norrels/Upframer-auth/internal/common"
	"github.com/Norrels/Upframer-auth/internal/server/auth"
	"github.com/Norrels/Upframer-auth/internal/server/models"
	"github.com/Norrels/Upframer-auth/internal/server/repositories/identities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- helpers ---

var testKey = []byte("0123456789abcdef0123456789abcdef")

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

// recordingRepo wraps a repository and records the order of calls.
type recordingRepo struct {
	identities.Repository

	mu    sync.Mutex
	calls []string

	findErr   error
	createErr error
}

func (r *recordingRepo) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recordingRepo) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recordingRepo) Create(ctx context.Context, email, displayName, secretHash string) (*models.Identity, error) {
	r.record("create")
	if r.createErr != nil {
		return nil, r.createErr
	}
	return r.Repository.Create(ctx, email, displayName, secretHash)
}

func (r *recordingRepo) FindByEmail(ctx context.Context, email string) (*models.Identity, error) {
	r.record("find")
	if r.findErr != nil {
		return nil, r.findErr
	}
	return r.Repository.FindByEmail(ctx, email)
}

type fakeHasher struct {
	mu       sync.Mutex
	hashed   []string
	verified []string
	hashErr  error
}

func (h *fakeHasher) Hash(secret string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hashed = append(h.hashed, secret)
	if h.hashErr != nil {
		return "", h.hashErr
	}
	return "hashed:" + secret, nil
}

func (h *fakeHasher) Verify(secret, hash string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.verified = append(h.verified, hash)
	return hash == "hashed:"+secret
}

type fakeTokens struct {
	issueErr  error
	verifyErr error
	issued    []auth.TokenPayload
}

func (f *fakeTokens) Issue(p auth.TokenPayload) (string, error) {
	if f.issueErr != nil {
		return "", f.issueErr
	}
	f.issued = append(f.issued, p)
	return "h." + p.SubjectID + ".s", nil
}

func (f *fakeTokens) Verify(token string) (*auth.TokenPayload, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return &auth.TokenPayload{SubjectID: "u1", Email: "a@x.com"}, nil
}

func newRealService(t *testing.T) (*AuthService, *recordingRepo, *auth.TokenIssuer) {
	t.Helper()
	issuer, err := auth.NewTokenIssuer(testKey, 0)
	require.NoError(t, err)
	repo := &recordingRepo{Repository: identities.NewMemoryRepository()}
	return NewAuthService(repo, auth.NewBcryptHasher(bcrypt.MinCost), issuer), repo, issuer
}

func newFakeService() (*AuthService, *recordingRepo, *fakeHasher, *fakeTokens) {
	repo := &recordingRepo{Repository: identities.NewMemoryRepository()}
	h := &fakeHasher{}
	tk := &fakeTokens{}
	return NewAuthService(repo, h, tk), repo, h, tk
}

// --- scenarios ---

func TestRegister_EmptyStore(t *testing.T) {
	s, _, issuer := newRealService(t)

	res, err := s.Register(context.Background(), RegisterInput{Email: "a@x.com", DisplayName: "A", Secret: "pw12345678"})
	require.NoError(t, err)

	assert.Equal(t, "a@x.com", res.Identity.Email)
	assert.Equal(t, "A", res.Identity.DisplayName)
	assert.NotEmpty(t, res.Identity.ID)
	assert.Len(t, strings.Split(res.Token, "."), 3)

	payload, err := issuer.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.Identity.ID, payload.SubjectID)
	assert.Equal(t, "a@x.com", payload.Email)
}

func TestRegister_Twice(t *testing.T) {
	s, repo, _ := newRealService(t)
	ctx := context.Background()

	_, err := s.Register(ctx, RegisterInput{Email: "a@x.com", DisplayName: "A", Secret: "pw12345678"})
	require.NoError(t, err)

	_, err = s.Register(ctx, RegisterInput{Email: "a@x.com", DisplayName: "Again", Secret: "another-pw"})
	assert.ErrorIs(t, err, common.ErrorDuplicateEmail)
	assert.Equal(t, []string{"find", "create", "find"}, repo.Calls())
}

func TestLogin_AfterRegister(t *testing.T) {
	s, _, issuer := newRealService(t)
	ctx := context.Background()

	reg, err := s.Register(ctx, RegisterInput{Email: "a@x.com", DisplayName: "A", Secret: "pw12345678"})
	require.NoError(t, err)

	res, err := s.Login(ctx, LoginInput{Email: "a@x.com", Secret: "pw12345678"})
	require.NoError(t, err)

	assert.Equal(t, reg.Identity, res.Identity)
	assert.NotEqual(t, reg.Token, res.Token)
	payload, err := issuer.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.Identity.ID, payload.SubjectID)

	// the registration token stays valid on its own
	_, err = issuer.Verify(reg.Token)
	require.NoError(t, err)
}

func TestLogin_WrongSecret(t *testing.T) {
	s, _, _ := newRealService(t)
	ctx := context.Background()

	_, err := s.Register(ctx, RegisterInput{Email: "a@x.com", DisplayName: "A", Secret: "pw12345678"})
	require.NoError(t, err)

	_, err = s.Login(ctx, LoginInput{Email: "a@x.com", Secret: "wrong"})
	assert.ErrorIs(t, err, common.ErrorInvalidCredentials)
}

// --- properties ---

func TestRegister_DuplicateSkipsHashAndCreate(t *testing.T) {
	s, repo, h, tk := newFakeService()
	ctx := context.Background()

	_, err := repo.Repository.Create(ctx, "a@x.com", "A", "hashed:old")
	require.NoError(t, err)

	_, err = s.Register(ctx, RegisterInput{Email: "a@x.com", DisplayName: "B", Secret: "pw12345678"})
	require.ErrorIs(t, err, common.ErrorDuplicateEmail)

	assert.Equal(t, []string{"find"}, repo.Calls())
	assert.Empty(t, h.hashed)
	assert.Empty(t, tk.issued)
}

func TestRegister_OrderAndStoredHash(t *testing.T) {
	s, repo, h, tk := newFakeService()

	res, err := s.Register(context.Background(), RegisterInput{Email: "a@x.com", DisplayName: "A", Secret: "pw12345678"})
	require.NoError(t, err)

	assert.Equal(t, []string{"find", "create"}, repo.Calls())
	assert.Equal(t, []string{"pw12345678"}, h.hashed)

	stored, err := repo.Repository.FindByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "hashed:pw12345678", stored.SecretHash)

	require.Len(t, tk.issued, 1)
	assert.Equal(t, auth.TokenPayload{SubjectID: res.Identity.ID, Email: "a@x.com"}, tk.issued[0])
}

func TestRegister_ConflictAtInsertIsDuplicate(t *testing.T) {
	s, repo, _, _ := newFakeService()
	repo.createErr = common.ErrorAlreadyExists

	_, err := s.Register(context.Background(), RegisterInput{Email: "a@x.com", DisplayName: "A", Secret: "pw12345678"})
	assert.ErrorIs(t, err, common.ErrorDuplicateEmail)
}

func TestRegister_ConcurrentSameEmail(t *testing.T) {
	s, _, _, _ := newFakeService()

	const workers = 16
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Register(context.Background(), RegisterInput{Email: "race@x.com", DisplayName: "R", Secret: "pw12345678"})
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, common.ErrorDuplicateEmail)
	}
	assert.Equal(t, 1, ok)
}

func TestRegister_StoreFailures(t *testing.T) {
	t.Run("lookup", func(t *testing.T) {
		s, repo, h, _ := newFakeService()
		repo.findErr = errBoom{}

		_, err := s.Register(context.Background(), RegisterInput{Email: "a@x.com", DisplayName: "A", Secret: "pw12345678"})
		assert.ErrorIs(t, err, common.ErrorStore)
		assert.ErrorIs(t, err, errBoom{})
		assert.Empty(t, h.hashed)
	})

	t.Run("insert", func(t *testing.T) {
		s, repo, _, tk := newFakeService()
		repo.createErr = errBoom{}

		_, err := s.Register(context.Background(), RegisterInput{Email: "a@x.com", DisplayName: "A", Secret: "pw12345678"})
		assert.ErrorIs(t, err, common.ErrorStore)
		assert.NotErrorIs(t, err, common.ErrorDuplicateEmail)
		assert.Empty(t, tk.issued)
	})
}

func TestRegister_HashFailureIsFatal(t *testing.T) {
	s, repo, h, _ := newFakeService()
	h.hashErr = errBoom{}

	_, err := s.Register(context.Background(), RegisterInput{Email: "a@x.com", DisplayName: "A", Secret: "pw12345678"})
	assert.ErrorIs(t, err, common.ErrorInternal)
	assert.Equal(t, []string{"find"}, repo.Calls())
}

func TestRegister_IssueFailureIsFatal(t *testing.T) {
	s, _, _, tk := newFakeService()
	tk.issueErr = errBoom{}

	res, err := s.Register(context.Background(), RegisterInput{Email: "a@x.com", DisplayName: "A", Secret: "pw12345678"})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestLogin_SameErrorForMissAndMismatch(t *testing.T) {
	s, _, _ := newRealService(t)
	ctx := context.Background()

	_, err := s.Register(ctx, RegisterInput{Email: "a@x.com", DisplayName: "A", Secret: "pw12345678"})
	require.NoError(t, err)

	_, missErr := s.Login(ctx, LoginInput{Email: "nobody@x.com", Secret: "pw12345678"})
	_, wrongErr := s.Login(ctx, LoginInput{Email: "a@x.com", Secret: "wrong-secret"})

	require.Error(t, missErr)
	require.Error(t, wrongErr)
	assert.True(t, missErr == wrongErr, "errors differ: %v vs %v", missErr, wrongErr)
	assert.Equal(t, missErr.Error(), wrongErr.Error())
	assert.Equal(t, "Invalid credentials", missErr.Error())
}

func TestLogin_MissStillVerifiesAgainstDecoy(t *testing.T) {
	s, repo, h, _ := newFakeService()

	_, err := s.Login(context.Background(), LoginInput{Email: "nobody@x.com", Secret: "pw12345678"})
	require.ErrorIs(t, err, common.ErrorInvalidCredentials)

	assert.Equal(t, []string{"find"}, repo.Calls())
	assert.Equal(t, []string{"hashed:" + decoySecret}, h.verified)

	// the decoy is hashed once
	_, _ = s.Login(context.Background(), LoginInput{Email: "nobody@x.com", Secret: "x"})
	assert.Equal(t, []string{decoySecret}, h.hashed)
}

func TestLogin_LookupPrecedesVerify(t *testing.T) {
	s, repo, h, _ := newFakeService()
	ctx := context.Background()
	_, err := repo.Repository.Create(ctx, "a@x.com", "A", "hashed:pw12345678")
	require.NoError(t, err)

	_, err = s.Login(ctx, LoginInput{Email: "a@x.com", Secret: "pw12345678"})
	require.NoError(t, err)

	assert.Equal(t, []string{"find"}, repo.Calls())
	assert.Equal(t, []string{"hashed:pw12345678"}, h.verified)
}

func TestLogin_StoreFailureIsNotInvalidCredentials(t *testing.T) {
	s, repo, _, _ := newFakeService()
	repo.findErr = errors.New("connection reset")

	_, err := s.Login(context.Background(), LoginInput{Email: "a@x.com", Secret: "pw12345678"})
	assert.ErrorIs(t, err, common.ErrorStore)
	assert.NotErrorIs(t, err, common.ErrorInvalidCredentials)
}

func TestLogin_IssueFailureIsFatal(t *testing.T) {
	s, repo, _, tk := newFakeService()
	ctx := context.Background()
	_, err := repo.Repository.Create(ctx, "a@x.com", "A", "hashed:pw12345678")
	require.NoError(t, err)
	tk.issueErr = errBoom{}

	_, err = s.Login(ctx, LoginInput{Email: "a@x.com", Secret: "pw12345678"})
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestEmailPolicy_CaseInsensitive(t *testing.T) {
	s, _, _ := newRealService(t)
	ctx := context.Background()

	reg, err := s.Register(ctx, RegisterInput{Email: "  Alice@Example.COM ", DisplayName: "Alice", Secret: "pw12345678"})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", reg.Identity.Email)

	_, err = s.Register(ctx, RegisterInput{Email: "ALICE@example.com", DisplayName: "Other", Secret: "pw12345678"})
	assert.ErrorIs(t, err, common.ErrorDuplicateEmail)

	res, err := s.Login(ctx, LoginInput{Email: "alice@EXAMPLE.com", Secret: "pw12345678"})
	require.NoError(t, err)
	assert.Equal(t, reg.Identity.ID, res.Identity.ID)
}

func TestAuthenticate(t *testing.T) {
	s, _, _ := newRealService(t)
	ctx := context.Background()

	reg, err := s.Register(ctx, RegisterInput{Email: "a@x.com", DisplayName: "A", Secret: "pw12345678"})
	require.NoError(t, err)

	payload, err := s.Authenticate(ctx, reg.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.Identity.ID, payload.SubjectID)

	_, err = s.Authenticate(ctx, reg.Token+"x")
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestAuthenticate_WrapsForeignErrors(t *testing.T) {
	s, _, _, tk := newFakeService()
	tk.verifyErr = errBoom{}

	_, err := s.Authenticate(context.Background(), "whatever")
	assert.ErrorIs(t, err, common.ErrInvalidToken)
	assert.ErrorIs(t, err, errBoom{})
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@x.com", NormalizeEmail(" A@X.com\t"))
	assert.Equal(t, "", NormalizeEmail("   "))
}
