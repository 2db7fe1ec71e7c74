// internal/config/historian.go
package config

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// HistorianConfig holds the settings of the action log consumer. It shares
// the FRAUD_* variables of the server for the queue and both databases.
type HistorianConfig struct {
	LogLevel  string
	LogFormat string

	RedisAddr   string
	RedisDB     int
	ActionQueue string
	PostgresURL string

	BatchSize  int
	FlushDelay time.Duration
}

func (c *HistorianConfig) Validate() error {
	if c.RedisAddr == "" {
		return errors.New("--redis-addr is required")
	}
	if c.PostgresURL == "" {
		return errors.New("--postgres-url is required")
	}
	if c.BatchSize < 1 {
		return errors.New("--batch-size must be at least 1")
	}
	if c.FlushDelay <= 0 {
		return errors.New("--flush-delay must be positive")
	}
	return validateLogging(c.LogLevel, c.LogFormat)
}

func (c *HistorianConfig) NewLogger() *logrus.Logger {
	return newLogger(c.LogLevel, c.LogFormat)
}

func RegisterHistorianFlags(fs *pflag.FlagSet, cfg *HistorianConfig) {
	normalizeFlags(fs)

	fs.StringVar(&cfg.LogLevel, "log-level", "info", "log level: debug, info, warn, error (env: FRAUD_LOG_LEVEL)")
	fs.StringVar(&cfg.LogFormat, "log-format", "text", "log format: text or json (env: FRAUD_LOG_FORMAT)")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", "localhost:6379", "redis address of the action queue (env: FRAUD_REDIS_ADDR)")
	fs.IntVar(&cfg.RedisDB, "redis-db", 0, "redis database index (env: FRAUD_REDIS_DB)")
	fs.StringVar(&cfg.ActionQueue, "action-queue", "fraud_actions", "redis list to drain (env: FRAUD_ACTION_QUEUE)")
	fs.StringVar(&cfg.PostgresURL, "postgres-url", "", "postgres url receiving the actions (env: FRAUD_POSTGRES_URL)")
	fs.IntVar(&cfg.BatchSize, "batch-size", 20, "actions written per transaction (env: FRAUD_BATCH_SIZE)")
	fs.DurationVar(&cfg.FlushDelay, "flush-delay", 500*time.Millisecond, "longest wait before a partial batch is written (env: FRAUD_FLUSH_DELAY)")
}

// NewHistorianCommand builds the historian root command.
func NewHistorianCommand(cfg *HistorianConfig, version string, run func(ctx context.Context, cfg *HistorianConfig) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "fraud-historian",
		Short:   "Copies the lobby action log from Redis into PostgreSQL.",
		Args:    cobra.ExactArgs(0),
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()
	RegisterHistorianFlags(fs, cfg)
	BindEnv(fs)
	quiet(cmd, "fraud-historian")

	return cmd
}
