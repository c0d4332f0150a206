// Package scheduler runs background maintenance on a cron cadence. Its one
// job today is purging soft-deleted users whose tombstone has outlived the
// retention window.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/forgeline/keel"
	"github.com/forgeline/keel/modules/user"
)

// ModuleName is the unique identifier for the scheduler module.
const ModuleName = "scheduler"

// Module errors
var (
	ErrInvalidRetention = errors.New("retention must be positive")
)

// Config holds the maintenance cadence and retention window.
type Config struct {
	PurgeSchedule string        `yaml:"purge_schedule" env:"PURGE_SCHEDULE" default:"0 3 * * *"`
	Retention     time.Duration `yaml:"retention" env:"PURGE_RETENTION" default:"720h"`
	JobTimeout    time.Duration `yaml:"job_timeout" env:"PURGE_JOB_TIMEOUT" default:"1m"`
}

// Validate checks the retention bounds. The cron expression is validated
// when the job is scheduled.
func (c *Config) Validate() error {
	if c.Retention <= 0 || c.JobTimeout <= 0 {
		return ErrInvalidRetention
	}
	return nil
}

// Module implements scheduled maintenance.
type Module struct {
	config *Config
	cron   *cron.Cron
	users  *user.Service
	logger keel.Logger
}

// NewModule creates the scheduler module.
func NewModule() *Module {
	return &Module{}
}

// Name returns the module name.
func (m *Module) Name() string {
	return ModuleName
}

// Dependencies declares the user module as a hard dependency.
func (m *Module) Dependencies() []string {
	return []string{user.ModuleName}
}

// RegisterConfig registers the "scheduler" configuration section.
func (m *Module) RegisterConfig(app keel.Application) error {
	app.RegisterConfigSection(m.Name(), keel.NewStdConfigProvider(&Config{}))
	return nil
}

// Init schedules the purge job.
func (m *Module) Init(app keel.Application) error {
	m.logger = app.Logger()

	cp, err := app.GetConfigSection(m.Name())
	if err != nil {
		return fmt.Errorf("failed to get config section '%s': %w", m.Name(), err)
	}
	m.config = cp.GetConfig().(*Config)

	if err := app.GetService(user.ServiceName, &m.users); err != nil {
		return fmt.Errorf("failed to resolve user service: %w", err)
	}

	m.cron = cron.New()
	if _, err := m.cron.AddFunc(m.config.PurgeSchedule, m.runPurge); err != nil {
		return fmt.Errorf("invalid purge schedule %q: %w", m.config.PurgeSchedule, err)
	}
	return nil
}

// ProvidesServices declares no provided services.
func (m *Module) ProvidesServices() []keel.ServiceProvider {
	return nil
}

// RequiresServices declares the user service.
func (m *Module) RequiresServices() []keel.ServiceDependency {
	return []keel.ServiceDependency{
		{Name: user.ServiceName, Required: true},
	}
}

// Start begins the cron loop.
func (m *Module) Start(_ context.Context) error {
	m.cron.Start()
	m.logger.Info("scheduler started", "purge_schedule", m.config.PurgeSchedule)
	return nil
}

// Stop halts the cron loop and waits for a running job to finish, bounded
// by the shutdown context.
func (m *Module) Stop(ctx context.Context) error {
	stopCtx := m.cron.Stop()
	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

func (m *Module) runPurge() {
	ctx, cancel := context.WithTimeout(context.Background(), m.config.JobTimeout)
	defer cancel()

	cutoff := time.Now().UTC().Add(-m.config.Retention)
	purged, err := m.users.PurgeDeletedBefore(ctx, cutoff)
	if err != nil {
		m.logger.Error("purge job failed", "error", err)
		return
	}
	if purged > 0 {
		m.logger.Info("purged soft-deleted users", "count", purged, "cutoff", cutoff.Format(time.RFC3339))
	}
}
