package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/forgeline/keel/httperr"
	"github.com/forgeline/keel/httpx"
)

// Token type discriminators embedded in claims. A refresh token is never
// accepted where an access token is expected, and vice versa.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims is the JWT payload issued for authenticated callers.
type Claims struct {
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenPair is an access/refresh token set with the access expiry exposed
// for client scheduling.
type TokenPair struct {
	AccessToken      string `json:"accessToken"`
	RefreshToken     string `json:"refreshToken"`
	AccessExpiresIn  int64  `json:"accessExpiresIn"`
	RefreshExpiresIn int64  `json:"refreshExpiresIn"`
}

// TokenService issues and verifies HS256 token pairs.
type TokenService struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenService creates a token service from the auth configuration.
func NewTokenService(cfg *Config) *TokenService {
	return &TokenService{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
	}
}

// IssuePair issues a fresh access/refresh pair for the principal.
func (ts *TokenService) IssuePair(p httpx.Principal) (TokenPair, error) {
	access, err := ts.issue(p, TokenTypeAccess, ts.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := ts.issue(p, TokenTypeRefresh, ts.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresIn:  int64(ts.accessTTL.Seconds()),
		RefreshExpiresIn: int64(ts.refreshTTL.Seconds()),
	}, nil
}

func (ts *TokenService) issue(p httpx.Principal, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email:     p.Email,
		Role:      p.Role,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   p.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ts.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

// VerifyAccess parses and verifies an access token, returning its principal.
func (ts *TokenService) VerifyAccess(token string) (httpx.Principal, error) {
	return ts.verify(token, TokenTypeAccess)
}

// VerifyRefresh parses and verifies a refresh token, returning its principal.
func (ts *TokenService) VerifyRefresh(token string) (httpx.Principal, error) {
	return ts.verify(token, TokenTypeRefresh)
}

func (ts *TokenService) verify(token, wantType string) (httpx.Principal, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) { return ts.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(ts.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return httpx.Principal{}, httperr.Normalize(err)
	}
	if claims.TokenType != wantType {
		return httpx.Principal{}, httperr.Unauthorized("invalid token")
	}
	return httpx.Principal{ID: claims.Subject, Email: claims.Email, Role: claims.Role}, nil
}
