package identities

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Norrels/Upframer-auth/internal/common"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	insertQuery = `(?s)^INSERT\s+INTO\s+identities\s*\(email,\s*display_name,\s*secret_hash\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3\)\s*RETURNING\s+id,\s*created_at,\s*updated_at\s*$`
	selectQuery = `(?s)^SELECT\s+id,\s*email,\s*display_name,\s*secret_hash,\s*created_at,\s*updated_at\s+FROM\s+identities\s+WHERE\s+email\s*=\s*\$1\s*$`
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func TestCreate_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(insertQuery).
		WithArgs("a@x.com", "A", "$2a$10$hash").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("id-1", ts, ts))

	got, err := repo.Create(context.Background(), "a@x.com", "A", "$2a$10$hash")
	require.NoError(t, err)

	assert.Equal(t, "id-1", got.ID)
	assert.Equal(t, "a@x.com", got.Email)
	assert.Equal(t, "A", got.DisplayName)
	assert.Equal(t, "$2a$10$hash", got.SecretHash)
	assert.Equal(t, ts, got.CreatedAt)
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_UniqueViolation(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(insertQuery).
		WithArgs("a@x.com", "A", "h").
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "identities_email_key"})

	_, err := repo.Create(context.Background(), "a@x.com", "A", "h")
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestCreate_OtherConstraintIsDBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(insertQuery).
		WithArgs("a@x.com", "A", "h").
		WillReturnError(&pgconn.PgError{Code: pgerrcode.NotNullViolation})

	_, err := repo.Create(context.Background(), "a@x.com", "A", "h")
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrorAlreadyExists)
	assert.Regexp(t, regexp.MustCompile(`^db error: `), err.Error())
}

func TestCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(insertQuery).
		WithArgs("a@x.com", "A", "h").
		WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), "a@x.com", "A", "h")
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestFindByEmail_Found(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(selectQuery).
		WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "display_name", "secret_hash", "created_at", "updated_at"}).
			AddRow("id-1", "a@x.com", "A", "h", ts, ts.Add(time.Minute)))

	got, err := repo.FindByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "id-1", got.ID)
	assert.Equal(t, "A", got.DisplayName)
	assert.Equal(t, "h", got.SecretHash)
	assert.Equal(t, ts.Add(time.Minute), got.UpdatedAt)
}

func TestFindByEmail_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(selectQuery).
		WithArgs("ghost@x.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByEmail(context.Background(), "ghost@x.com")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestFindByEmail_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(selectQuery).
		WithArgs("a@x.com").
		WillReturnError(errors.New("db err"))

	_, err := repo.FindByEmail(context.Background(), "a@x.com")
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
	assert.NotErrorIs(t, err, common.ErrorNotFound)
}
