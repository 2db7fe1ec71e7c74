// internal/config/config_test.go
package config

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	cfg := &Config{}
	var got *Config
	cmd := NewCommand(cfg, "test", func(_ context.Context, c *Config) error {
		got = c
		return nil
	})
	cmd.SetArgs(append([]string{}, args...))
	err := cmd.ExecuteContext(context.Background())
	return got, err
}

func TestDefaults(t *testing.T) {
	cfg, err := execute(t)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, 10*time.Second, cfg.ContinueDelay)
	assert.Equal(t, 2*time.Minute, cfg.EmptyLobbyTTL)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, "fraud_actions", cfg.ActionQueue)
	assert.Empty(t, cfg.RedisAddr)
	assert.Empty(t, cfg.PostgresURL)
}

func TestEnvironmentAndFlags(t *testing.T) {
	t.Setenv("FRAUD_PORT", "9000")
	t.Setenv("FRAUD_CONTINUE_DELAY", "3s")
	t.Setenv("FRAUD_REDIS_ADDR", "redis:6379")
	t.Setenv("FRAUD_ALLOWED_ORIGINS", "example.com,*.example.com")

	cfg, err := execute(t)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 3*time.Second, cfg.ContinueDelay)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, []string{"example.com", "*.example.com"}, cfg.AllowedOrigins)

	cfg, err = execute(t, "--port", "7000", "--log_format", "json")
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Port, "flags win over the environment")
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestValidate(t *testing.T) {
	_, err := execute(t, "--port", "0")
	assert.ErrorContains(t, err, "invalid port")

	_, err = execute(t, "--continue-delay", "-1s")
	assert.Error(t, err)

	_, err = execute(t, "--log-level", "loud")
	assert.ErrorContains(t, err, "log level")

	_, err = execute(t, "--log-format", "xml")
	assert.ErrorContains(t, err, "log format")

	_, err = execute(t, "--message-burst", "0")
	assert.Error(t, err)

	_, err = execute(t, "extra")
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	cfg := &Config{LogLevel: "debug", LogFormat: "json"}
	logger := cfg.NewLogger()
	assert.Equal(t, logrus.DebugLevel, logger.Level)
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}

func TestHistorianCommand(t *testing.T) {
	t.Setenv("FRAUD_POSTGRES_URL", "postgres://fraud@localhost/fraud")
	t.Setenv("FRAUD_BATCH_SIZE", "50")

	var got *HistorianConfig
	cmd := NewHistorianCommand(&HistorianConfig{}, "test", func(_ context.Context, c *HistorianConfig) error {
		got = c
		return nil
	})
	cmd.SetArgs([]string{"--flush_delay", "2s"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Equal(t, "postgres://fraud@localhost/fraud", got.PostgresURL)
	assert.Equal(t, 50, got.BatchSize)
	assert.Equal(t, 2*time.Second, got.FlushDelay)
	assert.Equal(t, "localhost:6379", got.RedisAddr)

	t.Setenv("FRAUD_POSTGRES_URL", "")
	cmd = NewHistorianCommand(&HistorianConfig{}, "test", func(context.Context, *HistorianConfig) error { return nil })
	cmd.SetArgs([]string{})
	assert.ErrorContains(t, cmd.ExecuteContext(context.Background()), "--postgres-url")
}
