// Package keel provides a modular application kernel for building REST API
// backends. An application is composed of independent modules that declare
// dependencies on one another; the kernel resolves a deterministic
// initialization order, drives sequential startup, and performs best-effort
// shutdown in reverse registration order.
//
// Basic usage:
//
//	app := keel.NewStdApplication(configProvider, logger)
//	app.RegisterModule(database.NewModule())
//	app.RegisterModule(router.NewModule())
//	if err := app.Run(); err != nil {
//		log.Fatal(err)
//	}
package keel

import "context"

// Module represents a registrable component in the application.
// All modules must implement this interface to be managed by the kernel.
type Module interface {
	// Name returns the unique identifier for this module. The name is used
	// for dependency resolution, configuration section lookup, and service
	// registration. It must be unique within the application.
	//
	// Example: "database", "auth", "router"
	Name() string

	// Init initializes the module with the application context. It is called
	// after all modules have been registered and their configurations loaded,
	// in dependency order: modules that depend on others are initialized
	// after their dependencies.
	Init(app Application) error
}

// Configurable is an interface for modules that can have configuration.
// RegisterConfig is called during application initialization, before any
// module's Init, so that all configuration sections can be fed and
// validated in one pass.
type Configurable interface {
	RegisterConfig(app Application) error
}

// DependencyAware is an interface for modules that depend on other modules.
// Dependencies are resolved by exact module name. A declared dependency
// that is not registered fails initialization before any Init runs, and a
// dependency cycle fails with ErrCircularDependency.
type DependencyAware interface {
	// Dependencies returns the names of modules this module depends on,
	// in declaration order. Declaration order is preserved during
	// resolution so that initialization order is deterministic for a
	// fixed registration order.
	Dependencies() []string
}

// ServiceAware is an interface for modules that provide or consume services.
// Services enable loose coupling: a module registers functionality under a
// name, and other modules request it by name without importing the provider.
type ServiceAware interface {
	// ProvidesServices returns services to register after this module's
	// Init completes.
	ProvidesServices() []ServiceProvider

	// RequiresServices returns services that must be present in the
	// registry before this module's Init runs.
	RequiresServices() []ServiceDependency
}

// Startable is an interface for modules that perform runtime operations
// after initialization, such as opening network listeners or starting
// background goroutines. Start is called in dependency order once all
// modules have initialized. The provided context is the application
// lifecycle context; it is cancelled on shutdown.
type Startable interface {
	Start(ctx context.Context) error
}

// Stoppable is an interface for modules that need cleanup during shutdown.
// Stop is called in reverse registration order with a deadline-bound
// context. A failing Stop is logged and does not prevent the remaining
// modules from being stopped.
type Stoppable interface {
	Stop(ctx context.Context) error
}

// ServiceProvider declares a named service instance contributed by a module.
type ServiceProvider struct {
	// Name is the unique registry key for the service.
	Name string
	// Instance is the service implementation.
	Instance any
}

// ServiceDependency declares a service a module requires from the registry.
type ServiceDependency struct {
	// Name is the registry key to look up.
	Name string
	// Required indicates whether initialization must fail when the
	// service is absent. Optional dependencies are skipped silently.
	Required bool
}

// ModuleState describes where a module is in its lifecycle. Transitions are
// monotonic: Registered → Initializing → {Initialized | Failed}, and
// Initialized → ShuttingDown → Shutdown. A module is never initialized
// twice and never shut down before being initialized.
type ModuleState int

const (
	// StateRegistered is the state of a module after RegisterModule.
	StateRegistered ModuleState = iota
	// StateInitializing is set while the module's Init is running.
	StateInitializing
	// StateInitialized is set after Init returns successfully.
	StateInitialized
	// StateShuttingDown is set while the module's Stop is running.
	StateShuttingDown
	// StateShutdown is set after Stop returns, regardless of its error.
	StateShutdown
	// StateFailed is set when Init returns an error.
	StateFailed
)

// String returns a human-readable name for the state.
func (s ModuleState) String() string {
	switch s {
	case StateRegistered:
		return "registered"
	case StateInitializing:
		return "initializing"
	case StateInitialized:
		return "initialized"
	case StateShuttingDown:
		return "shutting down"
	case StateShutdown:
		return "shutdown"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
