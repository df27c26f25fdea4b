package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Scanner  ScannerConfig  `mapstructure:"scanner"`
	Search   SearchConfig   `mapstructure:"search"`
	Tracker  TrackerConfig  `mapstructure:"tracker"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ScannerConfig holds library scanner configuration.
type ScannerConfig struct {
	MissingGrace   time.Duration `mapstructure:"missing_grace"`   // retention for missing files
	SidecarWorkers int           `mapstructure:"sidecar_workers"` // post-scan side-effect pool size
	ScanCron       string        `mapstructure:"scan_cron"`
}

// SearchConfig holds indexer search and upgrade sweep configuration.
type SearchConfig struct {
	IndexerTimeout time.Duration `mapstructure:"indexer_timeout"`
	SweepWorkers   int           `mapstructure:"sweep_workers"`
	SweepLimit     int           `mapstructure:"sweep_limit"`
	BackoffBase    time.Duration `mapstructure:"backoff_base"`
	BackoffCap     time.Duration `mapstructure:"backoff_cap"`
	SweepCron      string        `mapstructure:"sweep_cron"`
}

// TrackerConfig holds completed-download tracker configuration.
type TrackerConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// Load reads configuration from .env, config file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	// .env is optional; environment wins either way
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.windrose")
	}

	v.SetEnvPrefix("WINDROSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "./data/windrose.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.path", "")

	v.SetDefault("scanner.missing_grace", "24h")
	v.SetDefault("scanner.sidecar_workers", 4)
	v.SetDefault("scanner.scan_cron", "0 * * * *")

	v.SetDefault("search.indexer_timeout", "30s")
	v.SetDefault("search.sweep_workers", 3)
	v.SetDefault("search.sweep_limit", 20)
	v.SetDefault("search.backoff_base", "30m")
	v.SetDefault("search.backoff_cap", "168h")
	v.SetDefault("search.sweep_cron", "15 */6 * * *")

	v.SetDefault("tracker.poll_interval", "10s")
}
