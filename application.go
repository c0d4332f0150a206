package keel

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"reflect"
	"syscall"
	"time"
)

// DefaultShutdownTimeout bounds the shutdown drain window. Even if modules
// have not finished stopping, Stop returns once this deadline expires.
const DefaultShutdownTimeout = 30 * time.Second

// ServiceRegistry holds services keyed by name.
type ServiceRegistry map[string]any

// Application is the kernel contract handed to every module. It exposes
// configuration sections, the service registry, and the module lifecycle.
type Application interface {
	ConfigProvider() ConfigProvider
	RegisterModule(module Module) error
	RegisterConfigSection(section string, cp ConfigProvider)
	GetConfigSection(section string) (ConfigProvider, error)
	RegisterService(name string, service any) error
	GetService(name string, target any) error
	ModuleState(name string) (ModuleState, error)
	RegisterObserver(observer Observer)
	EmitEvent(event CloudEvent)
	Init() error
	Start() error
	Stop() error
	Run() error
	Logger() Logger
}

// StdApplication is the standard Application implementation. Modules are
// kept in registration order so that dependency resolution and shutdown
// are deterministic for a fixed registration sequence.
type StdApplication struct {
	cfgProvider     ConfigProvider
	cfgSections     map[string]ConfigProvider
	svcRegistry     ServiceRegistry
	modules         map[string]Module
	moduleOrder     []string // registration order
	states          map[string]ModuleState
	observers       []Observer
	logger          Logger
	ctx             context.Context
	cancel          context.CancelFunc
	shutdownTimeout time.Duration
}

// NewStdApplication creates a new application instance.
func NewStdApplication(cp ConfigProvider, logger Logger) *StdApplication {
	return &StdApplication{
		cfgProvider:     cp,
		cfgSections:     make(map[string]ConfigProvider),
		svcRegistry:     make(ServiceRegistry),
		modules:         make(map[string]Module),
		states:          make(map[string]ModuleState),
		logger:          logger,
		shutdownTimeout: DefaultShutdownTimeout,
	}
}

// SetShutdownTimeout overrides the hard deadline applied to Stop.
func (app *StdApplication) SetShutdownTimeout(d time.Duration) {
	if d > 0 {
		app.shutdownTimeout = d
	}
}

// ConfigProvider retrieves the application config provider.
func (app *StdApplication) ConfigProvider() ConfigProvider {
	return app.cfgProvider
}

// Logger returns the application logger.
func (app *StdApplication) Logger() Logger {
	return app.logger
}

// RegisterModule adds a module to the registry. Registering two modules
// with the same name is an error.
func (app *StdApplication) RegisterModule(module Module) error {
	name := module.Name()
	if _, exists := app.modules[name]; exists {
		return fmt.Errorf("%w: %s", ErrModuleAlreadyRegistered, name)
	}
	app.modules[name] = module
	app.moduleOrder = append(app.moduleOrder, name)
	app.states[name] = StateRegistered
	app.notifyObservers(NewLifecycleEvent(EventTypeModuleRegistered, name, nil))
	return nil
}

// ModuleState reports the lifecycle state of a registered module.
func (app *StdApplication) ModuleState(name string) (ModuleState, error) {
	state, exists := app.states[name]
	if !exists {
		return 0, fmt.Errorf("%w: %s", ErrModuleNotRegistered, name)
	}
	return state, nil
}

// RegisterConfigSection registers a configuration section with the application.
func (app *StdApplication) RegisterConfigSection(section string, cp ConfigProvider) {
	app.cfgSections[section] = cp
}

// GetConfigSection retrieves a configuration section by name.
func (app *StdApplication) GetConfigSection(section string) (ConfigProvider, error) {
	cp, exists := app.cfgSections[section]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrConfigSectionNotFound, section)
	}
	return cp, nil
}

// RegisterService adds a service to the registry under a unique name.
func (app *StdApplication) RegisterService(name string, service any) error {
	if _, exists := app.svcRegistry[name]; exists {
		return fmt.Errorf("%w: %s", ErrServiceAlreadyRegistered, name)
	}
	app.svcRegistry[name] = service
	app.logger.Debug("registered service", "name", name, "type", reflect.TypeOf(service))
	return nil
}

// GetService retrieves a service and assigns it to target, which must be a
// non-nil pointer. Target may be a pointer to an interface the service
// implements or to the service's concrete type.
func (app *StdApplication) GetService(name string, target any) error {
	service, exists := app.svcRegistry[name]
	if !exists {
		return fmt.Errorf("%w: %s", ErrServiceNotFound, name)
	}

	targetValue := reflect.ValueOf(target)
	if targetValue.Kind() != reflect.Ptr || targetValue.IsNil() {
		return ErrTargetNotPointer
	}

	serviceType := reflect.TypeOf(service)
	targetType := targetValue.Elem().Type()

	switch {
	case targetType.Kind() == reflect.Interface && serviceType.Implements(targetType):
		targetValue.Elem().Set(reflect.ValueOf(service))
	case serviceType.AssignableTo(targetType):
		targetValue.Elem().Set(reflect.ValueOf(service))
	case serviceType.Kind() == reflect.Ptr && serviceType.Elem().AssignableTo(targetType):
		targetValue.Elem().Set(reflect.ValueOf(service).Elem())
	default:
		return fmt.Errorf("%w: service '%s' of type %s cannot be assigned to %s",
			ErrServiceIncompatible, name, serviceType, targetType)
	}
	return nil
}

// Init loads configuration and initializes all registered modules in
// dependency order. Initialization is strictly sequential; the first
// failing module aborts the remainder. Modules initialized before the
// failure are left initialized; there is no rollback.
func (app *StdApplication) Init() error {
	// Config registration pass, in registration order.
	for _, name := range app.moduleOrder {
		configurable, ok := app.modules[name].(Configurable)
		if !ok {
			app.logger.Debug("module has no configuration section", "module", name)
			continue
		}
		if err := configurable.RegisterConfig(app); err != nil {
			return fmt.Errorf("failed to register config for module %s: %w", name, err)
		}
	}

	if err := AppConfigLoader(app); err != nil {
		return fmt.Errorf("failed to load app config: %w", err)
	}

	moduleOrder, err := app.resolveDependencies()
	if err != nil {
		return fmt.Errorf("failed to resolve dependencies: %w", err)
	}

	for _, name := range moduleOrder {
		module := app.modules[name]

		if _, ok := module.(ServiceAware); ok {
			if err = app.checkRequiredServices(module); err != nil {
				return err
			}
		}

		app.states[name] = StateInitializing
		if err = module.Init(app); err != nil {
			app.states[name] = StateFailed
			app.notifyObservers(NewLifecycleEvent(EventTypeModuleFailed, name, map[string]any{"error": err.Error()}))
			return fmt.Errorf("failed to initialize module '%s': %w", name, err)
		}
		app.states[name] = StateInitialized

		if svcAware, ok := module.(ServiceAware); ok {
			for _, svc := range svcAware.ProvidesServices() {
				if err = app.RegisterService(svc.Name, svc.Instance); err != nil {
					return fmt.Errorf("module '%s' failed to register service: %w", name, err)
				}
			}
		}

		app.notifyObservers(NewLifecycleEvent(EventTypeModuleInitialized, name, nil))
		app.logger.Info("initialized module", "module", name, "type", fmt.Sprintf("%T", module))
	}

	return nil
}

// checkRequiredServices verifies that every required service dependency of
// a module is present in the registry before its Init runs.
func (app *StdApplication) checkRequiredServices(module Module) error {
	for _, dep := range module.(ServiceAware).RequiresServices() {
		if _, found := app.svcRegistry[dep.Name]; !found && dep.Required {
			return fmt.Errorf("%w: %s for %s", ErrRequiredServiceNotFound, dep.Name, module.Name())
		}
	}
	return nil
}

// Start starts all Startable modules in dependency order.
func (app *StdApplication) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	app.ctx = ctx
	app.cancel = cancel

	moduleOrder, err := app.resolveDependencies()
	if err != nil {
		return err
	}

	for _, name := range moduleOrder {
		startable, ok := app.modules[name].(Startable)
		if !ok {
			continue
		}
		app.logger.Info("starting module", "module", name)
		if err := startable.Start(ctx); err != nil {
			return fmt.Errorf("failed to start module %s: %w", name, err)
		}
	}

	app.notifyObservers(NewLifecycleEvent(EventTypeApplicationStarted, "", nil))
	return nil
}

// Stop shuts down all Stoppable modules in reverse registration order.
// Shutdown is best-effort: a failing module is logged and the remaining
// modules are still attempted; the last error is returned. The whole pass
// is bounded by the configured shutdown timeout.
//
// Note: the order is reverse registration order, not reverse dependency
// order, so a module may be stopped before a module that depends on it if
// registration order and dependency order diverge.
func (app *StdApplication) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), app.shutdownTimeout)
	defer cancel()

	var lastErr error
	for i := len(app.moduleOrder) - 1; i >= 0; i-- {
		name := app.moduleOrder[i]
		stoppable, ok := app.modules[name].(Stoppable)
		if !ok {
			continue
		}
		if app.states[name] != StateInitialized {
			app.logger.Debug("skipping shutdown of uninitialized module", "module", name, "state", app.states[name].String())
			continue
		}
		app.states[name] = StateShuttingDown
		app.logger.Info("stopping module", "module", name)
		if err := stoppable.Stop(ctx); err != nil {
			app.logger.Error("error stopping module", "module", name, "error", err)
			lastErr = err
		}
		app.states[name] = StateShutdown
		app.notifyObservers(NewLifecycleEvent(EventTypeModuleStopped, name, nil))
	}

	if app.cancel != nil {
		app.cancel()
	}

	app.notifyObservers(NewLifecycleEvent(EventTypeApplicationStopped, "", nil))
	return lastErr
}

// Run initializes and starts the application, blocks until SIGINT or
// SIGTERM, then performs graceful shutdown.
func (app *StdApplication) Run() error {
	if err := app.Init(); err != nil {
		return err
	}
	if err := app.Start(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	app.logger.Info("received signal, shutting down", "signal", sig.String())

	return app.Stop()
}

// resolveDependencies returns module names in initialization order using a
// depth-first traversal with a temporary-mark set for cycle detection.
// The outer iteration follows registration order and the inner iteration
// follows each module's declared dependency order, so the result is
// deterministic for a fixed registration sequence. Every registered module
// appears exactly once, after all of its declared dependencies.
func (app *StdApplication) resolveDependencies() ([]string, error) {
	graph := make(map[string][]string, len(app.modules))
	for _, name := range app.moduleOrder {
		if depAware, ok := app.modules[name].(DependencyAware); ok {
			graph[name] = depAware.Dependencies()
		} else {
			graph[name] = nil
		}
	}

	result := make([]string, 0, len(app.modules))
	visited := make(map[string]bool)
	visiting := make(map[string]bool)

	var visit func(string) error
	visit = func(node string) error {
		if visiting[node] {
			return fmt.Errorf("%w: %s", ErrCircularDependency, node)
		}
		if visited[node] {
			return nil
		}
		visiting[node] = true

		for _, dep := range graph[node] {
			if _, exists := app.modules[dep]; !exists {
				return fmt.Errorf("%w: %s depends on non-existent module %s",
					ErrModuleDependencyMissing, node, dep)
			}
			if err := visit(dep); err != nil {
				return err
			}
		}

		visiting[node] = false
		visited[node] = true
		result = append(result, node)
		return nil
	}

	for _, node := range app.moduleOrder {
		if !visited[node] {
			if err := visit(node); err != nil {
				return nil, err
			}
		}
	}

	app.logger.Debug("module initialization order", "order", result)
	return result, nil
}
