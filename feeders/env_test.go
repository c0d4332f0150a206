package feeders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envTestConfig struct {
	Name    string        `env:"FEEDER_TEST_NAME"`
	Port    int           `env:"FEEDER_TEST_PORT"`
	Debug   bool          `env:"FEEDER_TEST_DEBUG"`
	Timeout time.Duration `env:"FEEDER_TEST_TIMEOUT"`
	Origins []string      `env:"FEEDER_TEST_ORIGINS"`
	NoTag   string
	Nested  struct {
		Level string `env:"FEEDER_TEST_LEVEL"`
	}
}

func TestEnvFeeder(t *testing.T) {
	t.Setenv("FEEDER_TEST_NAME", "keel")
	t.Setenv("FEEDER_TEST_PORT", "9090")
	t.Setenv("FEEDER_TEST_DEBUG", "true")
	t.Setenv("FEEDER_TEST_TIMEOUT", "1m30s")
	t.Setenv("FEEDER_TEST_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("FEEDER_TEST_LEVEL", "debug")

	cfg := &envTestConfig{NoTag: "untouched"}
	require.NoError(t, NewEnvFeeder().Feed(cfg))

	assert.Equal(t, "keel", cfg.Name)
	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Origins)
	assert.Equal(t, "untouched", cfg.NoTag)
	assert.Equal(t, "debug", cfg.Nested.Level)
}

func TestEnvFeederUnsetVariablesLeaveFields(t *testing.T) {
	cfg := &envTestConfig{Name: "preset", Port: 1234}
	require.NoError(t, NewEnvFeeder().Feed(cfg))

	assert.Equal(t, "preset", cfg.Name)
	assert.Equal(t, 1234, cfg.Port)
}

func TestEnvFeederInvalidValue(t *testing.T) {
	t.Setenv("FEEDER_TEST_PORT", "not-a-number")

	err := NewEnvFeeder().Feed(&envTestConfig{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidFieldValue)
}

func TestEnvFeederRejectsNonStructPointer(t *testing.T) {
	assert.ErrorIs(t, NewEnvFeeder().Feed(envTestConfig{}), ErrNotAStructPointer)
	assert.ErrorIs(t, NewEnvFeeder().Feed(nil), ErrNotAStructPointer)
}
