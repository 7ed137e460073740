package identities

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Norrels/Upframer-auth/internal/common"
	"github.com/Norrels/Upframer-auth/internal/dbx"
	"github.com/Norrels/Upframer-auth/internal/server/models"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, email, displayName, secretHash string) (*models.Identity, error) {
	query :=
		`INSERT INTO identities (email, display_name, secret_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at
		 `

	identity := &models.Identity{
		Email:       email,
		DisplayName: displayName,
		SecretHash:  secretHash,
	}

	err := r.db.QueryRowContext(ctx, query, email, displayName, secretHash).
		Scan(&identity.ID, &identity.CreatedAt, &identity.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return identity, nil
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.Identity, error) {
	query :=
		`SELECT id, email, display_name, secret_hash, created_at, updated_at FROM identities
		 WHERE email = $1
		 `

	identity := &models.Identity{}
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&identity.ID,
		&identity.Email,
		&identity.DisplayName,
		&identity.SecretHash,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return identity, nil
}
