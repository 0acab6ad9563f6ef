package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fuelmap-ja/stations-cli/internal/model"
	"github.com/fuelmap-ja/stations-cli/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	Places PlacesConfig `yaml:"places" mapstructure:"places"`
	Retry  RetryConfig  `yaml:"retry" mapstructure:"retry"`
	Enrich EnrichConfig `yaml:"enrich" mapstructure:"enrich"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// PlacesConfig holds the place-search provider settings.
type PlacesConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	// Region is appended to name-only queries so results stay scoped to
	// the target market.
	Region string `yaml:"region" mapstructure:"region"`
	// MinIntervalMs is the minimum delay between consecutive outbound
	// requests, enforced globally across the run.
	MinIntervalMs int `yaml:"min_interval_ms" mapstructure:"min_interval_ms"`
	TimeoutSecs   int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// MinInterval returns the inter-request delay as a duration.
func (c PlacesConfig) MinInterval() time.Duration {
	return time.Duration(c.MinIntervalMs) * time.Millisecond
}

// Timeout returns the per-request timeout as a duration.
func (c PlacesConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// RetryConfig configures transient-failure retry behavior.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// Resilience converts the config into a resilience.RetryConfig.
func (c RetryConfig) Resilience() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	if c.MaxAttempts > 0 {
		cfg.MaxAttempts = c.MaxAttempts
	}
	if c.InitialBackoffMs > 0 {
		cfg.InitialBackoff = time.Duration(c.InitialBackoffMs) * time.Millisecond
	}
	if c.MaxBackoffMs > 0 {
		cfg.MaxBackoff = time.Duration(c.MaxBackoffMs) * time.Millisecond
	}
	if c.JitterFraction > 0 {
		cfg.JitterFraction = c.JitterFraction
	}
	return cfg
}

// EnrichConfig configures the batch orchestrator.
type EnrichConfig struct {
	ChunkSize     int          `yaml:"chunk_size" mapstructure:"chunk_size"`
	IncludePhotos bool         `yaml:"include_photos" mapstructure:"include_photos"`
	Bounds        model.Bounds `yaml:"bounds" mapstructure:"bounds"`
}

// StoreConfig configures the run/record persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("STATIONS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("places.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("places.region", "Jamaica")
	v.SetDefault("places.min_interval_ms", 1100)
	v.SetDefault("places.timeout_secs", 15)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 8000)
	v.SetDefault("retry.jitter_fraction", 0.25)
	v.SetDefault("enrich.chunk_size", 20)
	v.SetDefault("enrich.include_photos", false)
	v.SetDefault("enrich.bounds.min_lat", 17.5)
	v.SetDefault("enrich.bounds.max_lat", 18.6)
	v.SetDefault("enrich.bounds.min_lng", -78.5)
	v.SetDefault("enrich.bounds.max_lng", -76.0)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "stations.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
