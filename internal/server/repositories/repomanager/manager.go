package repomanager

import (
	"context"
	"database/sql"

	"github.com/Norrels/Upframer-auth/internal/dbx"
	"github.com/Norrels/Upframer-auth/internal/server/repositories/identities"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Identities(db dbx.DBTX) identities.Repository
}
