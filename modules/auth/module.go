// Package auth provides registration, login, and token refresh over JWT
// access/refresh pairs, plus the middleware other modules use to guard
// their routes. Identities are persisted by the user module; auth consumes
// them through the IdentityStore service.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/forgeline/keel"
	"github.com/forgeline/keel/httpx"
	"github.com/forgeline/keel/modules/router"
)

// ModuleName is the unique identifier for the auth module.
const ModuleName = "auth"

// TokensServiceName is the registry key for the token service.
const TokensServiceName = "auth.tokens"

// IdentityStoreServiceName is the registry key under which the user module
// provides identity persistence.
const IdentityStoreServiceName = "user.identities"

// Module errors
var (
	ErrSecretTooShort    = errors.New("jwt secret must be at least 32 characters")
	ErrInvalidBcryptCost = errors.New("bcrypt cost out of range")
	ErrInvalidTokenTTL   = errors.New("token ttls must be positive")
)

// Identity is the persisted view of an authenticatable account.
type Identity struct {
	ID           string
	Email        string
	Name         string
	Role         string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IdentityStore is the persistence surface auth needs. The user module
// implements it over the users table.
type IdentityStore interface {
	CreateIdentity(ctx context.Context, identity Identity) (Identity, error)
	IdentityByEmail(ctx context.Context, email string) (Identity, error)
	IdentityByID(ctx context.Context, id string) (Identity, error)
}

// Module implements authentication.
type Module struct {
	app        keel.Application
	config     *Config
	tokens     *TokenService
	identities IdentityStore
	responder  *httpx.Responder
	logger     keel.Logger
}

// NewModule creates the auth module.
func NewModule() *Module {
	return &Module{}
}

// Name returns the module name.
func (m *Module) Name() string {
	return ModuleName
}

// Dependencies declares the router module as a hard dependency.
func (m *Module) Dependencies() []string {
	return []string{router.ModuleName}
}

// RegisterConfig registers the "auth" configuration section.
func (m *Module) RegisterConfig(app keel.Application) error {
	app.RegisterConfigSection(m.Name(), keel.NewStdConfigProvider(&Config{}))
	return nil
}

// Init builds the token service and attaches the auth routes. The identity
// store is provided by the user module, which initializes later; it is
// resolved in Start, before the server accepts connections.
func (m *Module) Init(app keel.Application) error {
	m.app = app
	m.logger = app.Logger()

	cp, err := app.GetConfigSection(m.Name())
	if err != nil {
		return fmt.Errorf("failed to get config section '%s': %w", m.Name(), err)
	}
	m.config = cp.GetConfig().(*Config)
	m.tokens = NewTokenService(m.config)

	var rt router.Service
	if err := app.GetService(router.ServiceName, &rt); err != nil {
		return fmt.Errorf("failed to resolve router service: %w", err)
	}
	m.responder = rt.Responder()

	rt.Router().Route("/api/auth", func(r chi.Router) {
		r.Post("/register", rt.Wrap(m.handleRegister))
		r.Post("/login", rt.Wrap(m.handleLogin))
		r.Post("/refresh", rt.Wrap(m.handleRefresh))

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(m.tokens, m.responder))
			r.Get("/me", rt.Wrap(m.handleMe))
		})
	})
	return nil
}

// ProvidesServices registers the token service for modules that guard
// their own routes.
func (m *Module) ProvidesServices() []keel.ServiceProvider {
	return []keel.ServiceProvider{
		{Name: TokensServiceName, Instance: m.tokens},
	}
}

// RequiresServices declares the router requirement. The identity store is
// resolved late because its provider initializes after this module.
func (m *Module) RequiresServices() []keel.ServiceDependency {
	return []keel.ServiceDependency{
		{Name: router.ServiceName, Required: true},
	}
}

// Start resolves the identity store. By start time every module has
// initialized and registered its services, so a missing store is a wiring
// defect that fails startup.
func (m *Module) Start(_ context.Context) error {
	return m.bindIdentities()
}

func (m *Module) bindIdentities() error {
	if m.identities != nil {
		return nil
	}
	if err := m.app.GetService(IdentityStoreServiceName, &m.identities); err != nil {
		return fmt.Errorf("failed to resolve identity store: %w", err)
	}
	return nil
}
