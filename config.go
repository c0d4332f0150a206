package keel

import (
	"fmt"
)

// ConfigProvider supplies a configuration object to the application or to a
// module. Providers are registered per section; the section name matches
// the owning module's name.
type ConfigProvider interface {
	// GetConfig returns the configuration object. The object is a pointer
	// to a struct carrying yaml/env/default/required tags.
	GetConfig() any
}

// StdConfigProvider wraps a plain configuration struct.
type StdConfigProvider struct {
	cfg any
}

// NewStdConfigProvider creates a provider around cfg, which must be a
// pointer to a struct.
func NewStdConfigProvider(cfg any) *StdConfigProvider {
	return &StdConfigProvider{cfg: cfg}
}

// GetConfig returns the wrapped configuration object.
func (p *StdConfigProvider) GetConfig() any {
	return p.cfg
}

// Feeder populates a configuration struct from some source, such as the
// process environment or a file.
type Feeder interface {
	Feed(structure any) error
}

// ComplexFeeder is a Feeder that can additionally populate a single named
// section of its source, used for per-module configuration sections.
type ComplexFeeder interface {
	Feeder
	FeedKey(key string, target any) error
}

// ConfigFeeders is the ordered list of feeders applied by AppConfigLoader.
// Later feeders override values set by earlier ones. Applications set this
// once at startup before calling Run.
var ConfigFeeders []Feeder

// AppConfigLoader feeds the application configuration and every registered
// section from ConfigFeeders, applies struct-tag defaults, and validates
// required fields and ConfigValidator implementations. It is called by
// Application.Init before any module initializes.
func AppConfigLoader(app *StdApplication) error {
	if app.cfgProvider == nil {
		return ErrConfigProviderNil
	}

	targets := []struct {
		section string
		cfg     any
	}{{"", app.cfgProvider.GetConfig()}}

	for section, provider := range app.cfgSections {
		targets = append(targets, struct {
			section string
			cfg     any
		}{section, provider.GetConfig()})
	}

	for _, target := range targets {
		if target.cfg == nil {
			return ErrConfigNil
		}
		for _, feeder := range ConfigFeeders {
			if target.section != "" {
				if complexFeeder, ok := feeder.(ComplexFeeder); ok {
					if err := complexFeeder.FeedKey(target.section, target.cfg); err != nil {
						return fmt.Errorf("config feeder failed for section %s: %w", target.section, err)
					}
					continue
				}
			}
			if err := feeder.Feed(target.cfg); err != nil {
				return fmt.Errorf("config feeder failed: %w", err)
			}
		}
		if err := ValidateConfig(target.cfg); err != nil {
			if target.section != "" {
				return fmt.Errorf("invalid config for section %s: %w", target.section, err)
			}
			return fmt.Errorf("invalid app config: %w", err)
		}
		app.logger.Debug("loaded config section", "section", target.section)
	}

	return nil
}
