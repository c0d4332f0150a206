// Package httpserver owns the listener lifecycle. It is registered last so
// that the server starts after every feature module has attached its
// routes, and stops first on shutdown, draining in-flight requests before
// the rest of the application tears down.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/forgeline/keel"
	"github.com/forgeline/keel/modules/router"
)

// ModuleName is the unique identifier for the httpserver module.
const ModuleName = "httpserver"

// Module errors
var (
	ErrInvalidPort   = errors.New("port must be between 1 and 65535")
	ErrServerNotInit = errors.New("server not initialized")
)

// Module runs the HTTP server around the router's handler.
type Module struct {
	config  *Config
	server  *http.Server
	handler http.Handler
	logger  keel.Logger
}

// NewModule creates the httpserver module.
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

// RegisterConfig registers the "httpserver" configuration section.
func (m *Module) RegisterConfig(app keel.Application) error {
	app.RegisterConfigSection(m.Name(), keel.NewStdConfigProvider(&Config{}))
	return nil
}

// Init loads the listener configuration and resolves the router handler.
func (m *Module) Init(app keel.Application) error {
	m.logger = app.Logger()

	cp, err := app.GetConfigSection(m.Name())
	if err != nil {
		return fmt.Errorf("failed to get config section '%s': %w", m.Name(), err)
	}
	m.config = cp.GetConfig().(*Config)

	var svc router.Service
	if err := app.GetService(router.ServiceName, &svc); err != nil {
		return fmt.Errorf("failed to resolve router service: %w", err)
	}
	m.handler = svc
	return nil
}

// RequiresServices declares the router handler requirement.
func (m *Module) RequiresServices() []keel.ServiceDependency {
	return []keel.ServiceDependency{
		{Name: router.ServiceName, Required: true},
	}
}

// ProvidesServices declares no provided services.
func (m *Module) ProvidesServices() []keel.ServiceProvider {
	return nil
}

// Start binds the listener and begins serving. Binding happens
// synchronously so a port conflict fails startup instead of surfacing
// later from the serve goroutine.
func (m *Module) Start(_ context.Context) error {
	if m.handler == nil {
		return ErrServerNotInit
	}

	m.server = &http.Server{
		Addr:         m.config.Addr(),
		Handler:      m.handler,
		ReadTimeout:  m.config.ReadTimeout,
		WriteTimeout: m.config.WriteTimeout,
		IdleTimeout:  m.config.IdleTimeout,
	}

	ln, err := net.Listen("tcp", m.config.Addr())
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", m.config.Addr(), err)
	}

	go func() {
		m.logger.Info("http server listening", "addr", m.config.Addr())
		if err := m.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("http server terminated", "error", err)
		}
	}()
	return nil
}

// Stop drains in-flight requests within the shutdown timeout, then closes
// remaining connections.
func (m *Module) Stop(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	m.logger.Info("http server draining", "timeout", m.config.ShutdownTimeout.String())

	shutdownCtx, cancel := context.WithTimeout(ctx, m.config.ShutdownTimeout)
	defer cancel()

	if err := m.server.Shutdown(shutdownCtx); err != nil {
		m.logger.Warn("graceful drain incomplete, closing connections", "error", err)
		if closeErr := m.server.Close(); closeErr != nil {
			return fmt.Errorf("failed to close http server: %w", closeErr)
		}
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
