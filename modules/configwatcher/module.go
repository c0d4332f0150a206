// Package configwatcher watches the configuration file and emits a
// config.changed event when it is rewritten. Observers decide what to do
// with the notification; the watcher itself never reloads anything.
package configwatcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/forgeline/keel"
)

// ModuleName is the unique identifier for the configwatcher module.
const ModuleName = "configwatcher"

// debounce collapses the bursts of write events editors and orchestrators
// produce for a single logical change.
const debounce = 500 * time.Millisecond

// Config holds the watched file path. An empty path disables the watcher.
type Config struct {
	Path string `yaml:"path" env:"CONFIG_FILE"`
}

// Module implements config file change notification.
type Module struct {
	app     keel.Application
	config  *Config
	watcher *fsnotify.Watcher
	done    chan struct{}
	logger  keel.Logger
}

// NewModule creates the configwatcher module.
func NewModule() *Module {
	return &Module{}
}

// Name returns the module name.
func (m *Module) Name() string {
	return ModuleName
}

// RegisterConfig registers the "configwatcher" configuration section.
func (m *Module) RegisterConfig(app keel.Application) error {
	app.RegisterConfigSection(m.Name(), keel.NewStdConfigProvider(&Config{}))
	return nil
}

// Init loads the watcher configuration.
func (m *Module) Init(app keel.Application) error {
	m.app = app
	m.logger = app.Logger()

	cp, err := app.GetConfigSection(m.Name())
	if err != nil {
		return fmt.Errorf("failed to get config section '%s': %w", m.Name(), err)
	}
	m.config = cp.GetConfig().(*Config)
	return nil
}

// Start begins watching the configured file. Watching the parent directory
// instead of the file itself survives the rename-and-replace pattern most
// editors and config mounts use.
func (m *Module) Start(_ context.Context) error {
	if m.config.Path == "" {
		m.logger.Debug("config watcher disabled, no path configured")
		return nil
	}
	if _, err := os.Stat(m.config.Path); err != nil {
		m.logger.Warn("config watcher disabled, file not found", "path", m.config.Path)
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(m.config.Path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", m.config.Path, err)
	}
	m.watcher = watcher
	m.done = make(chan struct{})

	go m.watch()
	m.logger.Info("config watcher started", "path", m.config.Path)
	return nil
}

func (m *Module) watch() {
	defer close(m.done)

	target, _ := filepath.Abs(m.config.Path)
	var timer *time.Timer

	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			abs, _ := filepath.Abs(event.Name)
			if abs != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				m.logger.Info("config file changed", "path", m.config.Path)
				m.app.EmitEvent(keel.NewLifecycleEvent(keel.EventTypeConfigChanged, m.Name(),
					map[string]any{"path": m.config.Path}))
			})
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("config watcher error", "error", err)
		}
	}
}

// Stop closes the watcher and waits for the watch loop to drain.
func (m *Module) Stop(ctx context.Context) error {
	if m.watcher == nil {
		return nil
	}
	if err := m.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("config watcher stop: %w", ctx.Err())
	}
}
