package router

import (
	"time"
)

// Config holds the request pipeline settings. Environment selects hardened
// behavior: in "production" the rate limiter is active and error responses
// omit stacks and internal causes.
type Config struct {
	Environment    string            `yaml:"environment" env:"APP_ENV" default:"development"`
	RequestTimeout time.Duration     `yaml:"request_timeout" env:"REQUEST_TIMEOUT" default:"30s"`
	MaxBodyBytes   int64             `yaml:"max_body_bytes" env:"MAX_BODY_BYTES" default:"1048576"`
	Compression    CompressionConfig `yaml:"compression"`
	CORS           CORSConfig        `yaml:"cors"`
	RateLimit      RateLimitConfig   `yaml:"rate_limit"`
}

// CompressionConfig controls response compression.
type CompressionConfig struct {
	Level int `yaml:"level" env:"COMPRESSION_LEVEL" default:"5"`
}

// CORSConfig controls cross-origin policy.
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" default:"[\"*\"]"`
	AllowedMethods   []string `yaml:"allowed_methods" default:"[\"GET\",\"POST\",\"PUT\",\"PATCH\",\"DELETE\",\"OPTIONS\"]"`
	AllowedHeaders   []string `yaml:"allowed_headers" default:"[\"Origin\",\"Accept\",\"Content-Type\",\"Authorization\",\"X-Request-Id\"]"`
	AllowCredentials bool     `yaml:"allow_credentials" default:"false"`
	MaxAge           int      `yaml:"max_age" default:"300"`
}

// RateLimitConfig controls the per-caller limiter. The limiter only runs
// in production mode; the health path is always exempt.
type RateLimitConfig struct {
	Window time.Duration `yaml:"window" env:"RATE_LIMIT_WINDOW" default:"1m"`
	Max    int           `yaml:"max" env:"RATE_LIMIT_MAX" default:"100"`
}

// Validate checks pipeline bounds.
func (c *Config) Validate() error {
	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxBodyBytes <= 0 {
		return ErrInvalidBodyLimit
	}
	if c.RateLimit.Max < 1 || c.RateLimit.Window <= 0 {
		return ErrInvalidRateLimit
	}
	return nil
}

// Production reports whether the pipeline runs in hardened mode.
func (c *Config) Production() bool {
	return c.Environment == "production"
}
