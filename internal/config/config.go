// Package config loads karma settings from an optional YAML file, an
// optional .env file and KARMA_* environment variables, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// EnvPrefix prefixes every environment override, e.g. KARMA_DATABASE_PATH.
const EnvPrefix = "KARMA"

type Config struct {
	App struct {
		Env      string
		LogLevel string `mapstructure:"log_level"`
	} `mapstructure:"app"`

	Database struct {
		Path string
	} `mapstructure:"database"`

	HTTP struct {
		Addr string
	} `mapstructure:"http"`

	GRPC struct {
		Addr string
	} `mapstructure:"grpc"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`

	// Redis backs the idempotency guard. Empty Addr keeps keys in memory.
	Redis struct {
		Addr string
		TTL  time.Duration
	} `mapstructure:"redis"`

	Ledger struct {
		RejectShortfall bool `mapstructure:"reject_shortfall"`
		MaxRetries      int  `mapstructure:"max_retries"`
	} `mapstructure:"ledger"`

	Workflow struct {
		TripCurrency   string `mapstructure:"trip_currency"`
		DefinitionsDir string `mapstructure:"definitions_dir"`
	} `mapstructure:"workflow"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.log_level", "")
	v.SetDefault("database.path", "karma.db")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("grpc.addr", ":9090")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.ttl", 24*time.Hour)
	v.SetDefault("ledger.reject_shortfall", false)
	v.SetDefault("ledger.max_retries", 3)
	v.SetDefault("workflow.trip_currency", "SYP")
	v.SetDefault("workflow.definitions_dir", "workflows")
}

// Load reads configuration. path and envFile may be empty; a missing
// envFile is not an error.
func Load(path, envFile string) (Config, error) {
	if envFile != "" {
		if err := gotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects settings the service cannot start with.
func (c Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("config: database.path is required")
	}
	if c.Ledger.MaxRetries < 1 {
		return fmt.Errorf("config: ledger.max_retries must be at least 1, got %d", c.Ledger.MaxRetries)
	}
	if c.Workflow.TripCurrency == "" {
		return errors.New("config: workflow.trip_currency is required")
	}
	return nil
}
