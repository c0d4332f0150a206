// Package user manages user accounts: the CRUD API under /api/users, the
// persistence that the auth module authenticates against, and the optional
// admin account seeded from configuration on startup.
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/forgeline/keel"
	"github.com/forgeline/keel/httperr"
	"github.com/forgeline/keel/httpx"
	"github.com/forgeline/keel/modules/auth"
	"github.com/forgeline/keel/modules/database"
	"github.com/forgeline/keel/modules/router"
	"github.com/forgeline/keel/store"
)

// ModuleName is the unique identifier for the user module.
const ModuleName = "user"

// ServiceName is the registry key for the user service.
const ServiceName = "user.service"

// Module implements user management.
type Module struct {
	config    *Config
	service   *Service
	responder *httpx.Responder
	logger    keel.Logger
}

// NewModule creates the user module.
func NewModule() *Module {
	return &Module{}
}

// Name returns the module name.
func (m *Module) Name() string {
	return ModuleName
}

// Dependencies declares the modules this one builds on.
func (m *Module) Dependencies() []string {
	return []string{database.ModuleName, router.ModuleName, auth.ModuleName}
}

// RegisterConfig registers the "user" configuration section.
func (m *Module) RegisterConfig(app keel.Application) error {
	app.RegisterConfigSection(m.Name(), keel.NewStdConfigProvider(&Config{}))
	return nil
}

// Init wires the repository, attaches the routes, and seeds the configured
// admin account. Seeding failures are logged, not fatal: an unreachable
// seed must not keep an otherwise healthy service from starting.
func (m *Module) Init(app keel.Application) error {
	m.logger = app.Logger()

	cp, err := app.GetConfigSection(m.Name())
	if err != nil {
		return fmt.Errorf("failed to get config section '%s': %w", m.Name(), err)
	}
	m.config = cp.GetConfig().(*Config)

	var db database.Service
	if err := app.GetService(database.ServiceName, &db); err != nil {
		return fmt.Errorf("failed to resolve database service: %w", err)
	}
	repo := store.NewRepository[User](db.DB(), "user", store.Options{SoftDelete: true, Audit: true})
	m.service = NewService(repo)

	var rt router.Service
	if err := app.GetService(router.ServiceName, &rt); err != nil {
		return fmt.Errorf("failed to resolve router service: %w", err)
	}
	m.responder = rt.Responder()

	var tokens *auth.TokenService
	if err := app.GetService(auth.TokensServiceName, &tokens); err != nil {
		return fmt.Errorf("failed to resolve token service: %w", err)
	}

	rt.Router().Route("/api/users", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens, m.responder))

		r.Get("/{id}", rt.Wrap(m.handleGet))
		r.Patch("/{id}", rt.Wrap(m.handleUpdate))

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(m.responder, RoleAdmin))
			r.Get("/", rt.Wrap(m.handleList))
			r.Delete("/{id}", rt.Wrap(m.handleDelete))
		})
	})

	m.seedAdmin(app)
	return nil
}

// seedAdmin creates the configured admin account when it does not already
// exist.
func (m *Module) seedAdmin(app keel.Application) {
	if m.config.AdminEmail == "" || m.config.AdminPassword == "" {
		return
	}
	email := strings.ToLower(strings.TrimSpace(m.config.AdminEmail))
	ctx := context.Background()

	if _, err := m.service.GetByEmail(ctx, email); err == nil {
		return
	} else if !isNotFound(err) {
		m.logger.Warn("admin seed lookup failed", "error", err)
		return
	}

	var authCfg *auth.Config
	cost := 12
	if cp, err := app.GetConfigSection(auth.ModuleName); err == nil {
		authCfg = cp.GetConfig().(*auth.Config)
		cost = authCfg.BcryptCost
	}

	hash, err := auth.HashPassword(m.config.AdminPassword, cost)
	if err != nil {
		m.logger.Warn("admin seed hashing failed", "error", err)
		return
	}

	seeded, err := m.service.Create(ctx, User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         m.config.AdminName,
		Role:         RoleAdmin,
		PasswordHash: hash,
	})
	if err != nil {
		m.logger.Warn("admin seed failed", "error", err)
		return
	}
	m.logger.Info("admin account seeded", "user_id", seeded.ID)
}

func isNotFound(err error) bool {
	var appErr *httperr.Error
	return errors.As(err, &appErr) && appErr.Code == httperr.CodeNotFound
}

// ProvidesServices registers the user service and the identity store used
// by the auth module.
func (m *Module) ProvidesServices() []keel.ServiceProvider {
	return []keel.ServiceProvider{
		{Name: ServiceName, Instance: m.service},
		{Name: auth.IdentityStoreServiceName, Instance: auth.IdentityStore(m.service)},
	}
}

// RequiresServices declares the database, router, and token services.
func (m *Module) RequiresServices() []keel.ServiceDependency {
	return []keel.ServiceDependency{
		{Name: database.ServiceName, Required: true},
		{Name: router.ServiceName, Required: true},
		{Name: auth.TokensServiceName, Required: true},
	}
}
