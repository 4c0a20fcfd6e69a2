package container

import (
	"context"
	"fmt"

	"gosobol/adapters/api"
	"gosobol/adapters/memory"
	"gosobol/adapters/postgres"
	"gosobol/adapters/sqlite"
	"gosobol/app"
	"gosobol/internal"
	"gosobol/internal/config"
	"gosobol/internal/migration"
	"gosobol/ports"

	"github.com/jmoiron/sqlx"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	DB     *sqlx.DB
	SQLite *sqlite.RunStore

	// Repositories (data access layer)
	RunRepo ports.RunRepository

	// Services
	Analysis    *app.AnalysisService
	Uncertainty *app.UncertaintyService
}

// New creates a new dependency injection container. Call exactly one of
// InitInMemory, InitWithSQLite or InitWithDatabase before use.
func New(cfg *config.Config, logger *internal.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel))
	}
	return &Container{Config: cfg, Logger: logger}, nil
}

// InitInMemory keeps runs in process memory.
func (c *Container) InitInMemory() error {
	c.RunRepo = memory.NewRunRepository()
	c.initServices()
	c.Logger.Info("container initialized with in-memory run store")
	return nil
}

// InitWithSQLite stores runs in a local SQLite file, creating it if needed.
func (c *Container) InitWithSQLite(path string) error {
	store, err := sqlite.Open(path)
	if err != nil {
		return fmt.Errorf("open run store: %w", err)
	}
	c.SQLite = store
	c.RunRepo = store
	c.initServices()
	c.Logger.Info("container initialized with SQLite run store %s", path)
	return nil
}

// InitWithDatabase migrates the schema and stores runs in PostgreSQL.
func (c *Container) InitWithDatabase(ctx context.Context, db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}
	c.DB = db

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database connection test failed: %w", err)
	}
	migrator := migration.NewRunner()
	if err := migrator.Run(ctx, db); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}

	c.RunRepo = postgres.NewRunRepository(db)
	c.initServices()
	c.Logger.Info("container initialized with database (schema %s)", migrator.Version())
	return nil
}

func (c *Container) initServices() {
	c.Analysis = app.NewAnalysisService(c.RunRepo, c.Logger)
	c.Uncertainty = app.NewUncertaintyService(c.Logger)
}

// APIServer builds the HTTP API over the container's services.
func (c *Container) APIServer() (*api.Server, error) {
	if c.Analysis == nil {
		return nil, fmt.Errorf("container not initialized")
	}
	return api.NewServer(c.Analysis, c.Uncertainty, c.RunRepo, c.Logger), nil
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	c.Logger.Sync()
	if c.SQLite != nil {
		if err := c.SQLite.Close(); err != nil {
			return err
		}
	}
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
