package auth

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Config holds token and password hashing settings. The signing secret is
// required and must be long enough to resist brute force.
type Config struct {
	JWTSecret       string        `yaml:"jwt_secret" env:"JWT_SECRET" required:"true"`
	Issuer          string        `yaml:"issuer" env:"JWT_ISSUER" default:"keel"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_TTL" default:"15m"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" env:"REFRESH_TOKEN_TTL" default:"168h"`
	BcryptCost      int           `yaml:"bcrypt_cost" env:"BCRYPT_COST" default:"12"`
}

// minSecretLen is the floor for HS256 signing keys.
const minSecretLen = 32

// Validate checks secret strength and hashing bounds.
func (c *Config) Validate() error {
	if len(c.JWTSecret) < minSecretLen {
		return ErrSecretTooShort
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return ErrInvalidBcryptCost
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return ErrInvalidTokenTTL
	}
	return nil
}
