package database

import (
	"time"
)

// Config holds the database connection settings. The URL is the only
// required value; pool bounds default to values safe for a small service.
type Config struct {
	URL             string        `yaml:"url" env:"DATABASE_URL" required:"true"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME" default:"30m"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" env:"DATABASE_CONN_MAX_IDLE_TIME" default:"5m"`
	PingTimeout     time.Duration `yaml:"ping_timeout" env:"DATABASE_PING_TIMEOUT" default:"5s"`
}

// Validate checks pool bound consistency.
func (c *Config) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return ErrIdleExceedsOpen
	}
	return nil
}
