// internal/config/config.go
package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every flag name to form its environment variable.
const EnvPrefix = "FRAUD"

// Config holds the server settings. Every field maps to one flag and one
// FRAUD_* environment variable; flags win over the environment.
type Config struct {
	Bind      string
	Port      int
	LogLevel  string
	LogFormat string

	ContinueDelay time.Duration
	EmptyLobbyTTL time.Duration

	RedisAddr   string
	RedisDB     int
	ActionQueue string
	PostgresURL string

	CatalogFile     string
	BannedWordsFile string

	AllowedOrigins []string
	MessageRate    float64
	MessageBurst   int
	PublicURL      string
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.ContinueDelay < 0 {
		return errors.New("--continue-delay must not be negative")
	}
	if c.EmptyLobbyTTL < 0 {
		return errors.New("--empty-lobby-ttl must not be negative")
	}
	if c.RedisDB < 0 {
		return fmt.Errorf("invalid redis db: %d", c.RedisDB)
	}
	if c.MessageRate <= 0 || c.MessageBurst < 1 {
		return errors.New("--message-rate must be positive and --message-burst at least 1")
	}
	return validateLogging(c.LogLevel, c.LogFormat)
}

func validateLogging(level, format string) error {
	if _, err := logrus.ParseLevel(level); err != nil {
		return fmt.Errorf("invalid log level %q", level)
	}
	switch format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q (want text or json)", format)
	}
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

// NewLogger builds the process logger from LogLevel and LogFormat.
func (c *Config) NewLogger() *logrus.Logger {
	return newLogger(c.LogLevel, c.LogFormat)
}

func newLogger(level, format string) *logrus.Logger {
	logger := logrus.New()
	if lvl, err := logrus.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	}
	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// RegisterFlags declares every setting on fs with its default.
func RegisterFlags(fs *pflag.FlagSet, cfg *Config) {
	normalizeFlags(fs)

	fs.StringVarP(&cfg.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: FRAUD_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", 8080, "port to listen on (env: FRAUD_PORT)")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "log level: debug, info, warn, error (env: FRAUD_LOG_LEVEL)")
	fs.StringVar(&cfg.LogFormat, "log-format", "text", "log format: text or json (env: FRAUD_LOG_FORMAT)")
	fs.DurationVar(&cfg.ContinueDelay, "continue-delay", 10*time.Second, "pause between a round's result and the next round (env: FRAUD_CONTINUE_DELAY)")
	fs.DurationVar(&cfg.EmptyLobbyTTL, "empty-lobby-ttl", 2*time.Minute, "time before a lobby nobody joined is dropped (env: FRAUD_EMPTY_LOBBY_TTL)")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", "", "redis address for avatars and the action log; empty keeps both in memory or off (env: FRAUD_REDIS_ADDR)")
	fs.IntVar(&cfg.RedisDB, "redis-db", 0, "redis database index (env: FRAUD_REDIS_DB)")
	fs.StringVar(&cfg.ActionQueue, "action-queue", "fraud_actions", "redis list receiving lobby actions (env: FRAUD_ACTION_QUEUE)")
	fs.StringVar(&cfg.PostgresURL, "postgres-url", "", "postgres url for finished game results; empty disables (env: FRAUD_POSTGRES_URL)")
	fs.StringVar(&cfg.CatalogFile, "catalog-file", "", "JSON clue catalog replacing the built-in one (env: FRAUD_CATALOG_FILE)")
	fs.StringVar(&cfg.BannedWordsFile, "banned-words-file", "", "word list replacing the built-in lobby name filter (env: FRAUD_BANNED_WORDS_FILE)")
	fs.StringSliceVar(&cfg.AllowedOrigins, "allowed-origins", []string{"*"}, "websocket origin patterns (env: FRAUD_ALLOWED_ORIGINS)")
	fs.Float64Var(&cfg.MessageRate, "message-rate", 10, "inbound websocket messages per second per connection (env: FRAUD_MESSAGE_RATE)")
	fs.IntVar(&cfg.MessageBurst, "message-burst", 20, "inbound websocket message burst per connection (env: FRAUD_MESSAGE_BURST)")
	fs.StringVar(&cfg.PublicURL, "public-url", "", "base URL encoded in join QR codes; empty uses the request host (env: FRAUD_PUBLIC_URL)")
}

// BindEnv lets FRAUD_* variables provide values for flags not set on the
// command line.
func BindEnv(fs *pflag.FlagSet) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

// NewCommand builds the root command. run is called with the validated config.
func NewCommand(cfg *Config, version string, run func(ctx context.Context, cfg *Config) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "fraud",
		Short:   "Game server for The Fraud, a social deduction party game.",
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
	RegisterFlags(fs, cfg)
	BindEnv(fs)
	quiet(cmd, "fraud")

	return cmd
}

func quiet(cmd *cobra.Command, name string) {
	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate(name + " v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
}

func normalizeFlags(fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
}
