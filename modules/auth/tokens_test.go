package auth

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeline/keel/httperr"
	"github.com/forgeline/keel/httpx"
)

func testConfig() *Config {
	return &Config{
		JWTSecret:       "0123456789abcdef0123456789abcdef",
		Issuer:          "keel-test",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
		BcryptCost:      4,
	}
}

var testPrincipal = httpx.Principal{ID: "u-1", Email: "a@b.c", Role: "user"}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var appErr *httperr.Error
	require.ErrorAs(t, err, &appErr)
	return appErr.StatusCode
}

func TestTokenRoundTrip(t *testing.T) {
	ts := NewTokenService(testConfig())

	pair, err := ts.IssuePair(testPrincipal)
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	assert.EqualValues(t, 60, pair.AccessExpiresIn)
	assert.EqualValues(t, 3600, pair.RefreshExpiresIn)

	got, err := ts.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, testPrincipal, got)

	got, err = ts.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, testPrincipal, got)
}

func TestTokenTypeConfusionRejected(t *testing.T) {
	ts := NewTokenService(testConfig())
	pair, err := ts.IssuePair(testPrincipal)
	require.NoError(t, err)

	_, err = ts.VerifyAccess(pair.RefreshToken)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))

	_, err = ts.VerifyRefresh(pair.AccessToken)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
}

func TestExpiredTokenRejected(t *testing.T) {
	cfg := testConfig()
	cfg.AccessTokenTTL = -time.Minute
	ts := NewTokenService(cfg)

	pair, err := ts.IssuePair(testPrincipal)
	require.NoError(t, err)

	_, err = ts.VerifyAccess(pair.AccessToken)
	require.Error(t, err)
	appErr := httperr.Normalize(err)
	assert.Equal(t, http.StatusUnauthorized, appErr.StatusCode)
	assert.Equal(t, "token expired", appErr.Message)
}

func TestWrongSecretRejected(t *testing.T) {
	ts := NewTokenService(testConfig())
	pair, err := ts.IssuePair(testPrincipal)
	require.NoError(t, err)

	other := testConfig()
	other.JWTSecret = "another-secret-another-secret-32"
	_, err = NewTokenService(other).VerifyAccess(pair.AccessToken)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
}

func TestWrongIssuerRejected(t *testing.T) {
	other := testConfig()
	other.Issuer = "someone-else"
	pair, err := NewTokenService(other).IssuePair(testPrincipal)
	require.NoError(t, err)

	_, err = NewTokenService(testConfig()).VerifyAccess(pair.AccessToken)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
}

func TestGarbageTokenRejected(t *testing.T) {
	ts := NewTokenService(testConfig())
	_, err := ts.VerifyAccess("not-a-jwt")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, testConfig().Validate())

	c := testConfig()
	c.JWTSecret = "short"
	assert.ErrorIs(t, c.Validate(), ErrSecretTooShort)

	c = testConfig()
	c.BcryptCost = 99
	assert.ErrorIs(t, c.Validate(), ErrInvalidBcryptCost)

	c = testConfig()
	c.RefreshTokenTTL = 0
	assert.ErrorIs(t, c.Validate(), ErrInvalidTokenTTL)
}
