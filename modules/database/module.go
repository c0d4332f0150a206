// Package database provides the relational persistence module. It owns the
// process-wide connection pool: every service that touches storage receives
// the pool through the service registry, and no other component opens its
// own connection.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver

	"github.com/forgeline/keel"
)

// ModuleName is the unique identifier for the database module.
const ModuleName = "database"

// ServiceName is the registry key under which the pool service is provided.
const ServiceName = "database"

// Module errors
var (
	ErrIdleExceedsOpen = errors.New("max idle connections cannot exceed max open connections")
	ErrNotConnected    = errors.New("database not connected")
)

// Service is the capability surface the database module provides to other
// modules.
type Service interface {
	// DB returns the shared connection pool.
	DB() *sqlx.DB
	// Ping verifies connectivity within the context deadline.
	Ping(ctx context.Context) error
	// Stats returns pool statistics.
	Stats() sql.DBStats
}

// Module implements the database lifecycle: open and verify the pool on
// Init, close it on Stop. It is registered first so that shutdown in
// reverse registration order closes the pool last.
type Module struct {
	config *Config
	db     *sqlx.DB
	logger keel.Logger
}

// NewModule creates the database module.
func NewModule() *Module {
	return &Module{}
}

// Name returns the module name.
func (m *Module) Name() string {
	return ModuleName
}

// RegisterConfig registers the "database" configuration section.
func (m *Module) RegisterConfig(app keel.Application) error {
	app.RegisterConfigSection(m.Name(), keel.NewStdConfigProvider(&Config{}))
	return nil
}

// Init opens the connection pool, applies pool bounds, verifies
// connectivity, and bootstraps the schema.
func (m *Module) Init(app keel.Application) error {
	m.logger = app.Logger()

	cp, err := app.GetConfigSection(m.Name())
	if err != nil {
		return fmt.Errorf("failed to get config section '%s': %w", m.Name(), err)
	}
	m.config = cp.GetConfig().(*Config)

	db, err := sqlx.Open("postgres", m.config.URL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(m.config.MaxOpenConns)
	db.SetMaxIdleConns(m.config.MaxIdleConns)
	db.SetConnMaxLifetime(m.config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(m.config.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), m.config.PingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}
	m.db = db

	if err := m.bootstrapSchema(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to bootstrap schema: %w", err)
	}

	m.logger.Info("database connected",
		"max_open_conns", m.config.MaxOpenConns,
		"max_idle_conns", m.config.MaxIdleConns)
	return nil
}

// ProvidesServices registers the pool service.
func (m *Module) ProvidesServices() []keel.ServiceProvider {
	return []keel.ServiceProvider{
		{Name: ServiceName, Instance: Service(m)},
	}
}

// RequiresServices declares no service requirements.
func (m *Module) RequiresServices() []keel.ServiceDependency {
	return nil
}

// Stop closes the connection pool.
func (m *Module) Stop(_ context.Context) error {
	if m.db == nil {
		return nil
	}
	m.logger.Info("closing database pool")
	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// DB returns the shared connection pool.
func (m *Module) DB() *sqlx.DB {
	return m.db
}

// Ping verifies the connection is alive.
func (m *Module) Ping(ctx context.Context) error {
	if m.db == nil {
		return ErrNotConnected
	}
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// Stats returns connection pool statistics.
func (m *Module) Stats() sql.DBStats {
	if m.db == nil {
		return sql.DBStats{}
	}
	return m.db.Stats()
}
