// Package server wires the auth service together: configuration, storage,
// hashing, token issuing and the HTTP API. It also handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/Norrels/Upframer-auth/internal/logging"
	"github.com/Norrels/Upframer-auth/internal/server/auth"
	"github.com/Norrels/Upframer-auth/internal/server/config"
	"github.com/Norrels/Upframer-auth/internal/server/httpapi"
	"github.com/Norrels/Upframer-auth/internal/server/repositories/identities"
	"github.com/Norrels/Upframer-auth/internal/server/repositories/repomanager"
	"github.com/Norrels/Upframer-auth/internal/server/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	authService *services.AuthService
	registry    *prometheus.Registry
}

// NewApp validates c and builds every dependency of the HTTP API. With
// postgres storage it opens the database and applies migrations first.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	return newApp(ctx, c, os.Stdout)
}

func newApp(ctx context.Context, c *config.Config, logOut io.Writer) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	logger := logging.New(c.Environment, logOut)

	app := &App{config: c, logger: logger}

	repo, err := app.initStorage(ctx)
	if err != nil {
		return nil, err
	}

	tokens, err := auth.NewTokenIssuer([]byte(c.SecretKey), c.TokenValidityDuration)
	if err != nil {
		app.closeDB(ctx)
		return nil, fmt.Errorf("token issuer init error: %w", err)
	}

	app.authService = services.NewAuthService(repo, auth.NewBcryptHasher(auth.DefaultHashCost), tokens)

	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if app.db != nil {
		app.registry.MustRegister(collectors.NewDBStatsCollector(app.db, "identities"))
	}

	return app, nil
}

func (app *App) initStorage(ctx context.Context) (identities.Repository, error) {
	if app.config.Storage == config.StorageMemory {
		app.logger.Warn(ctx, "Using in-memory storage, data is lost on restart")
		return identities.NewMemoryRepository(), nil
	}

	db, err := repomanager.OpenPostgres(ctx, app.config.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	app.logger.Debug(ctx, "Applying database migrations")
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	app.db = db
	return rm.Identities(db), nil
}

func (app *App) closeDB(ctx context.Context) {
	if app.db == nil {
		return
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "error closing db", "error", err)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewHTTPServer(app.config.EndpointAddrHTTP, app.logger, app.authService, app.registry, app.config.ShutdownTimeout)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "http server error", "error", err)
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a termination signal arrives, then
// closes the database.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "environment", app.config.Environment, "storage", app.config.Storage)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.closeDB(ctx)
	app.logger.Info(ctx, "App stopped")
}
