// Package config loads collier settings from a YAML file, COLLIER_* environment
// variables and command-line flags, in increasing order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"collier/internal/metaplex"
	"collier/internal/solana"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "COLLIER"

// Keys shared by the config file, the environment and the flags.
const (
	KeyDB               = "db"
	KeyRPC              = "rpc"
	KeyWS               = "ws"
	KeyPostgresDSN      = "postgres-dsn"
	KeyClickhouseDSN    = "clickhouse-dsn"
	KeyLogLevel         = "log-level"
	KeyLogFormat        = "log-format"
	KeyMetricsAddr      = "metrics-addr"
	KeyRateLimit        = "rate-limit"
	KeyRateBurst        = "rate-burst"
	KeyTimeout          = "timeout"
	KeyCommitment       = "commitment"
	KeyWorkers          = "workers"
	KeyExpectedCreators = "expected-creators"
)

// Config is the resolved runtime configuration.
type Config struct {
	DB               string        `mapstructure:"db"`
	RPC              string        `mapstructure:"rpc"`
	WS               string        `mapstructure:"ws"`
	PostgresDSN      string        `mapstructure:"postgres-dsn"`
	ClickhouseDSN    string        `mapstructure:"clickhouse-dsn"`
	LogLevel         string        `mapstructure:"log-level"`
	LogFormat        string        `mapstructure:"log-format"`
	MetricsAddr      string        `mapstructure:"metrics-addr"`
	RateLimit        float64       `mapstructure:"rate-limit"`
	RateBurst        int           `mapstructure:"rate-burst"`
	Timeout          time.Duration `mapstructure:"timeout"`
	Commitment       string        `mapstructure:"commitment"`
	Workers          int           `mapstructure:"workers"`
	ExpectedCreators int           `mapstructure:"expected-creators"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyDB, "collier.db")
	v.SetDefault(KeyRPC, solana.DefaultEndpointURL)
	v.SetDefault(KeyWS, "")
	v.SetDefault(KeyPostgresDSN, "")
	v.SetDefault(KeyClickhouseDSN, "")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeyMetricsAddr, "")
	v.SetDefault(KeyRateLimit, solana.DefaultRateLimit)
	v.SetDefault(KeyRateBurst, solana.DefaultRateBurst)
	v.SetDefault(KeyTimeout, solana.DefaultTimeout)
	v.SetDefault(KeyCommitment, solana.DefaultCommitment)
	v.SetDefault(KeyWorkers, 1)
	v.SetDefault(KeyExpectedCreators, 4)
}

// Load resolves the configuration. configFile may be empty.
// Flags must already be bound to v.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.RPC == "" {
		return fmt.Errorf("config: %s is required", KeyRPC)
	}
	if c.DB == "" && c.PostgresDSN == "" {
		return fmt.Errorf("config: one of %s or %s is required", KeyDB, KeyPostgresDSN)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("config: %s must be console or json, got %q", KeyLogFormat, c.LogFormat)
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		return fmt.Errorf("config: %s and %s must not be negative", KeyRateLimit, KeyRateBurst)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("config: %s must be positive", KeyTimeout)
	}
	if c.Workers < 1 {
		return fmt.Errorf("config: %s must be at least 1, got %d", KeyWorkers, c.Workers)
	}
	if c.ExpectedCreators < 1 || c.ExpectedCreators > metaplex.MaxCreators {
		return fmt.Errorf("config: %s must be within 1..%d, got %d", KeyExpectedCreators, metaplex.MaxCreators, c.ExpectedCreators)
	}
	return nil
}
