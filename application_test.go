package keel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}

type testModule struct {
	name     string
	deps     []string
	requires []ServiceDependency
	provides []ServiceProvider
	initErr  error
	stopErr  error

	initCalls *[]string
	stopCalls *[]string
}

func (m *testModule) Name() string { return m.name }

func (m *testModule) Init(Application) error {
	if m.initCalls != nil {
		*m.initCalls = append(*m.initCalls, m.name)
	}
	return m.initErr
}

func (m *testModule) Dependencies() []string { return m.deps }

func (m *testModule) RequiresServices() []ServiceDependency { return m.requires }
func (m *testModule) ProvidesServices() []ServiceProvider   { return m.provides }

func (m *testModule) Stop(context.Context) error {
	if m.stopCalls != nil {
		*m.stopCalls = append(*m.stopCalls, m.name)
	}
	return m.stopErr
}

func newTestApp() *StdApplication {
	return NewStdApplication(NewStdConfigProvider(&struct{}{}), nopLogger{})
}

func TestResolveDependencyOrder(t *testing.T) {
	tests := []struct {
		name    string
		modules []*testModule
		want    []string
	}{
		{
			name: "chain registered in reverse",
			modules: []*testModule{
				{name: "C", deps: []string{"B"}},
				{name: "B", deps: []string{"A"}},
				{name: "A"},
			},
			want: []string{"A", "B", "C"},
		},
		{
			name: "independent modules keep registration order",
			modules: []*testModule{
				{name: "first"},
				{name: "second"},
				{name: "third"},
			},
			want: []string{"first", "second", "third"},
		},
		{
			name: "shared dependency initializes once",
			modules: []*testModule{
				{name: "api", deps: []string{"db"}},
				{name: "jobs", deps: []string{"db"}},
				{name: "db"},
			},
			want: []string{"db", "api", "jobs"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp()
			for _, m := range tt.modules {
				require.NoError(t, app.RegisterModule(m))
			}
			got, err := app.resolveDependencies()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveDependencyOrderIsDeterministic(t *testing.T) {
	build := func() *StdApplication {
		app := newTestApp()
		require.NoError(t, app.RegisterModule(&testModule{name: "gamma", deps: []string{"alpha", "beta"}}))
		require.NoError(t, app.RegisterModule(&testModule{name: "beta"}))
		require.NoError(t, app.RegisterModule(&testModule{name: "alpha"}))
		return app
	}

	first, err := build().resolveDependencies()
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := build().resolveDependencies()
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestResolveDependenciesCycle(t *testing.T) {
	app := newTestApp()
	require.NoError(t, app.RegisterModule(&testModule{name: "A", deps: []string{"B"}}))
	require.NoError(t, app.RegisterModule(&testModule{name: "B", deps: []string{"A"}}))

	_, err := app.resolveDependencies()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircularDependency)
}

func TestResolveDependenciesSelfCycle(t *testing.T) {
	app := newTestApp()
	require.NoError(t, app.RegisterModule(&testModule{name: "A", deps: []string{"A"}}))

	_, err := app.resolveDependencies()
	assert.ErrorIs(t, err, ErrCircularDependency)
}

func TestResolveDependenciesMissing(t *testing.T) {
	app := newTestApp()
	require.NoError(t, app.RegisterModule(&testModule{name: "A", deps: []string{"ghost"}}))

	_, err := app.resolveDependencies()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModuleDependencyMissing)
	assert.Contains(t, err.Error(), "ghost")
}

func TestRegisterModuleDuplicate(t *testing.T) {
	app := newTestApp()
	require.NoError(t, app.RegisterModule(&testModule{name: "dup"}))
	err := app.RegisterModule(&testModule{name: "dup"})
	assert.ErrorIs(t, err, ErrModuleAlreadyRegistered)
}

func TestInitRunsInDependencyOrder(t *testing.T) {
	var calls []string
	app := newTestApp()
	require.NoError(t, app.RegisterModule(&testModule{name: "C", deps: []string{"B"}, initCalls: &calls}))
	require.NoError(t, app.RegisterModule(&testModule{name: "B", deps: []string{"A"}, initCalls: &calls}))
	require.NoError(t, app.RegisterModule(&testModule{name: "A", initCalls: &calls}))

	require.NoError(t, app.Init())
	assert.Equal(t, []string{"A", "B", "C"}, calls)

	for _, name := range []string{"A", "B", "C"} {
		state, err := app.ModuleState(name)
		require.NoError(t, err)
		assert.Equal(t, StateInitialized, state)
	}
}

func TestInitFailureAbortsWithoutRollback(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	app := newTestApp()
	require.NoError(t, app.RegisterModule(&testModule{name: "A", initCalls: &calls}))
	require.NoError(t, app.RegisterModule(&testModule{name: "B", deps: []string{"A"}, initCalls: &calls, initErr: boom}))
	require.NoError(t, app.RegisterModule(&testModule{name: "C", deps: []string{"B"}, initCalls: &calls}))

	err := app.Init()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	// A stays initialized, B is failed, C never ran.
	assert.Equal(t, []string{"A", "B"}, calls)

	stateA, _ := app.ModuleState("A")
	stateB, _ := app.ModuleState("B")
	stateC, _ := app.ModuleState("C")
	assert.Equal(t, StateInitialized, stateA)
	assert.Equal(t, StateFailed, stateB)
	assert.Equal(t, StateRegistered, stateC)
}

func TestInitChecksRequiredServices(t *testing.T) {
	app := newTestApp()
	require.NoError(t, app.RegisterModule(&testModule{
		name:     "needy",
		requires: []ServiceDependency{{Name: "missing.service", Required: true}},
	}))

	err := app.Init()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequiredServiceNotFound)
}

func TestInitRegistersProvidedServices(t *testing.T) {
	app := newTestApp()
	provided := &struct{ V int }{V: 42}
	require.NoError(t, app.RegisterModule(&testModule{
		name:     "provider",
		provides: []ServiceProvider{{Name: "answer", Instance: provided}},
	}))
	require.NoError(t, app.RegisterModule(&testModule{
		name:     "consumer",
		deps:     []string{"provider"},
		requires: []ServiceDependency{{Name: "answer", Required: true}},
	}))

	require.NoError(t, app.Init())

	var got *struct{ V int }
	require.NoError(t, app.GetService("answer", &got))
	assert.Equal(t, 42, got.V)
}

func TestStopReverseRegistrationOrder(t *testing.T) {
	var stops []string
	app := newTestApp()
	require.NoError(t, app.RegisterModule(&testModule{name: "one", stopCalls: &stops}))
	require.NoError(t, app.RegisterModule(&testModule{name: "two", stopCalls: &stops}))
	require.NoError(t, app.RegisterModule(&testModule{name: "three", stopCalls: &stops}))
	require.NoError(t, app.Init())

	require.NoError(t, app.Stop())
	assert.Equal(t, []string{"three", "two", "one"}, stops)
}

func TestStopIsBestEffort(t *testing.T) {
	var stops []string
	boom := errors.New("stop failed")
	app := newTestApp()
	require.NoError(t, app.RegisterModule(&testModule{name: "one", stopCalls: &stops}))
	require.NoError(t, app.RegisterModule(&testModule{name: "two", stopCalls: &stops, stopErr: boom}))
	require.NoError(t, app.RegisterModule(&testModule{name: "three", stopCalls: &stops}))
	require.NoError(t, app.Init())

	err := app.Stop()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"three", "two", "one"}, stops)
}

func TestStopSkipsUninitializedModules(t *testing.T) {
	var stops []string
	app := newTestApp()
	require.NoError(t, app.RegisterModule(&testModule{name: "ok", stopCalls: &stops}))
	require.NoError(t, app.RegisterModule(&testModule{name: "broken", stopCalls: &stops, initErr: errors.New("boom")}))

	require.Error(t, app.Init())
	require.NoError(t, app.Stop())
	assert.Equal(t, []string{"ok"}, stops)
}

type greeter interface {
	Greet() string
}

type greeterImpl struct{}

func (greeterImpl) Greet() string { return "hello" }

func TestGetService(t *testing.T) {
	app := newTestApp()
	require.NoError(t, app.RegisterService("greeter", greeterImpl{}))

	t.Run("into interface", func(t *testing.T) {
		var g greeter
		require.NoError(t, app.GetService("greeter", &g))
		assert.Equal(t, "hello", g.Greet())
	})

	t.Run("into concrete type", func(t *testing.T) {
		var g greeterImpl
		require.NoError(t, app.GetService("greeter", &g))
		assert.Equal(t, "hello", g.Greet())
	})

	t.Run("unknown name", func(t *testing.T) {
		var g greeter
		assert.ErrorIs(t, app.GetService("nope", &g), ErrServiceNotFound)
	})

	t.Run("non-pointer target", func(t *testing.T) {
		var g greeter
		assert.ErrorIs(t, app.GetService("greeter", g), ErrTargetNotPointer)
	})

	t.Run("incompatible target", func(t *testing.T) {
		var n int
		assert.ErrorIs(t, app.GetService("greeter", &n), ErrServiceIncompatible)
	})
}

func TestRegisterServiceDuplicate(t *testing.T) {
	app := newTestApp()
	require.NoError(t, app.RegisterService("svc", 1))
	assert.ErrorIs(t, app.RegisterService("svc", 2), ErrServiceAlreadyRegistered)
}

func TestModuleStateUnknownModule(t *testing.T) {
	app := newTestApp()
	_, err := app.ModuleState("ghost")
	assert.ErrorIs(t, err, ErrModuleNotRegistered)
}

func TestObserverSeesLifecycleEvents(t *testing.T) {
	app := newTestApp()
	var types []string
	app.RegisterObserver(ObserverFunc(func(event CloudEvent) {
		types = append(types, event.Type())
	}))

	require.NoError(t, app.RegisterModule(&testModule{name: "A"}))
	require.NoError(t, app.Init())
	require.NoError(t, app.Stop())

	assert.Contains(t, types, EventTypeModuleRegistered)
	assert.Contains(t, types, EventTypeModuleInitialized)
	assert.Contains(t, types, EventTypeModuleStopped)
	assert.Contains(t, types, EventTypeApplicationStopped)
}
