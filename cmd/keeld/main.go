// Command keeld runs the keel API server: user management and JWT
// authentication over Postgres, assembled from keel modules.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/forgeline/keel"
	"github.com/forgeline/keel/feeders"
	"github.com/forgeline/keel/modules/auth"
	"github.com/forgeline/keel/modules/configwatcher"
	"github.com/forgeline/keel/modules/database"
	"github.com/forgeline/keel/modules/health"
	"github.com/forgeline/keel/modules/httpserver"
	"github.com/forgeline/keel/modules/router"
	"github.com/forgeline/keel/modules/scheduler"
	"github.com/forgeline/keel/modules/user"
)

// appConfig is the application-level configuration; modules carry their own
// sections.
type appConfig struct {
	AppName  string `yaml:"app_name" env:"APP_NAME" default:"keel"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" default:"info"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := &appConfig{}

	configFile := os.Getenv("CONFIG_FILE")
	if configFile == "" {
		configFile = "config.yaml"
	}

	// Feeder order is lowest to highest precedence: yaml file, .env file,
	// then the process environment.
	keel.ConfigFeeders = []keel.Feeder{
		feeders.NewYamlFeeder(configFile),
		feeders.NewDotEnvFeeder(".env"),
		feeders.NewEnvFeeder(),
	}

	logger := newLogger(os.Getenv("LOG_LEVEL"))
	app := keel.NewStdApplication(keel.NewStdConfigProvider(cfg), logger)

	app.RegisterObserver(lifecycleLogger(logger))

	modules := []keel.Module{
		database.NewModule(),
		router.NewModule(),
		auth.NewModule(),
		user.NewModule(),
		health.NewModule(),
		scheduler.NewModule(),
		configwatcher.NewModule(),
		httpserver.NewModule(),
	}
	for _, module := range modules {
		if err := app.RegisterModule(module); err != nil {
			return err
		}
	}

	return app.Run()
}

// lifecycleLogger surfaces lifecycle events in the log stream.
func lifecycleLogger(logger keel.Logger) keel.Observer {
	return keel.ObserverFunc(func(event keel.CloudEvent) {
		module, _ := event.Extensions()["module"].(string)
		logger.Debug("lifecycle event", "type", event.Type(), "module", module)
	})
}

// slogLogger adapts *slog.Logger to the keel.Logger interface.
type slogLogger struct {
	l *slog.Logger
}

func (s *slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s *slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }
func (s *slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s *slogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }

func newLogger(level string) keel.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return &slogLogger{l: slog.New(handler)}
}
