// Package router assembles the HTTP request pipeline on top of chi. Every
// request flows through a fixed middleware order: correlation id, security
// headers, CORS, body limits, compression, timeout watchdog, request
// logging, rate limiting, then the mounted feature routes, with unmatched
// requests falling through to a structured 404 and every error landing in
// the terminal responder.
package router

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/forgeline/keel"
	"github.com/forgeline/keel/httperr"
	"github.com/forgeline/keel/httpx"
)

// ModuleName is the unique identifier for the router module.
const ModuleName = "router"

// ServiceName is the registry key for the router service.
const ServiceName = "router"

// HealthPath is exempt from rate limiting and carries no auth.
const HealthPath = "/health"

// Module errors
var (
	ErrInvalidTimeout   = errors.New("request timeout must be positive")
	ErrInvalidBodyLimit = errors.New("max body bytes must be positive")
	ErrInvalidRateLimit = errors.New("rate limit max and window must be positive")
)

// HandlerFunc is an error-returning HTTP handler. Errors bubble to the
// terminal responder instead of being written ad hoc; handlers never
// catch-and-swallow.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Service is the capability surface feature modules use to attach routes
// and adapt their handlers into the pipeline.
type Service interface {
	http.Handler
	// Router exposes the underlying chi router for route registration.
	Router() chi.Router
	// Responder returns the terminal error responder.
	Responder() *httpx.Responder
	// Wrap adapts an error-returning handler: a returned error is
	// normalized and written by the terminal responder.
	Wrap(fn HandlerFunc) http.HandlerFunc
}

// Module implements the request pipeline.
type Module struct {
	config    *Config
	mux       *chi.Mux
	responder *httpx.Responder
	logger    keel.Logger
}

// NewModule creates the router module.
func NewModule() *Module {
	return &Module{}
}

// Name returns the module name.
func (m *Module) Name() string {
	return ModuleName
}

// RegisterConfig registers the "router" configuration section.
func (m *Module) RegisterConfig(app keel.Application) error {
	app.RegisterConfigSection(m.Name(), keel.NewStdConfigProvider(&Config{}))
	return nil
}

// Init assembles the middleware chain in its fixed order and installs the
// not-found and method-not-allowed fallbacks. Feature modules attach their
// routes afterwards, before the server starts accepting connections.
func (m *Module) Init(app keel.Application) error {
	m.logger = app.Logger()

	cp, err := app.GetConfigSection(m.Name())
	if err != nil {
		return fmt.Errorf("failed to get config section '%s': %w", m.Name(), err)
	}
	m.config = cp.GetConfig().(*Config)
	m.responder = httpx.NewResponder(m.logger, m.config.Production())

	mux := chi.NewRouter()
	mux.Use(middleware.RealIP)
	mux.Use(CorrelationID())
	mux.Use(SecurityHeaders(m.config.MaxBodyBytes, m.responder))
	mux.Use(CORS(&m.config.CORS))
	mux.Use(BodyLimit(m.config.MaxBodyBytes))
	mux.Use(Compression(m.config.Compression.Level))
	mux.Use(TimeoutWatchdog(m.config.RequestTimeout, m.responder))
	mux.Use(RequestLogger(m.logger))
	if m.config.Production() {
		mux.Use(RateLimit(&m.config.RateLimit, m.responder, HealthPath))
	}
	mux.Use(middleware.Recoverer)

	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		m.responder.Error(w, r, httperr.NotFound(fmt.Sprintf("route %s %s", r.Method, r.URL.Path)))
	})
	mux.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		m.responder.Error(w, r, httperr.NotFound(fmt.Sprintf("route %s %s", r.Method, r.URL.Path)))
	})

	m.mux = mux
	m.logger.Info("request pipeline assembled",
		"timeout", m.config.RequestTimeout.String(),
		"production", m.config.Production())
	return nil
}

// ProvidesServices registers the router service.
func (m *Module) ProvidesServices() []keel.ServiceProvider {
	return []keel.ServiceProvider{
		{Name: ServiceName, Instance: Service(m)},
	}
}

// RequiresServices declares no service requirements.
func (m *Module) RequiresServices() []keel.ServiceDependency {
	return nil
}

// ServeHTTP dispatches the request through the pipeline.
func (m *Module) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mux.ServeHTTP(w, r)
}

// Router exposes the underlying chi router.
func (m *Module) Router() chi.Router {
	return m.mux
}

// Responder returns the terminal error responder.
func (m *Module) Responder() *httpx.Responder {
	return m.responder
}

// Wrap adapts an error-returning handler into the pipeline.
func (m *Module) Wrap(fn HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			m.responder.Error(w, r, err)
		}
	}
}
