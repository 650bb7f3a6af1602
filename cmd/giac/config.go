package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Project ProjectConfig `mapstructure:"project"`
	Output  OutputConfig  `mapstructure:"output"`
	Proxy   ProxyConfig   `mapstructure:"proxy"`
	Ledger  LedgerConfig  `mapstructure:"ledger"`
	Log     LogConfig     `mapstructure:"log"`
}

// ProjectConfig overrides values of the project file.
type ProjectConfig struct {
	File string `mapstructure:"file"`
	Path string `mapstructure:"path"`
	Name string `mapstructure:"name"`
}

// OutputConfig controls where and how artifacts are written.
type OutputConfig struct {
	// Dest is the destination directory. Empty means the project path.
	Dest      string `mapstructure:"dest"`
	Manifest  string `mapstructure:"manifest"`
	EnvSample string `mapstructure:"env_sample"`

	// Memory writes to an in-memory filesystem; useful with verification only.
	Memory bool `mapstructure:"memory"`
	DryRun bool `mapstructure:"dry_run"`
}

// ProxyConfig overrides reverse proxy settings of the project file.
type ProxyConfig struct {
	Secure bool `mapstructure:"secure"`
}

// LedgerConfig holds the compile ledger configuration.
type LedgerConfig struct {
	// DSN is the SQLite database path. Empty disables the ledger.
	DSN string `mapstructure:"dsn"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// =============================================================================
// Config Loading
// =============================================================================

// Binder attaches extra sources, usually command flags, to v.
type Binder func(v *viper.Viper) error

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string, binders ...Binder) (*Config, error) {
	v := viper.New()

	v.SetDefault("project.file", "giac.yaml")
	v.SetDefault("project.path", "")
	v.SetDefault("project.name", "")
	v.SetDefault("output.dest", "")
	v.SetDefault("output.manifest", "docker-compose.yaml")
	v.SetDefault("output.env_sample", ".env.sample")
	v.SetDefault("output.memory", false)
	v.SetDefault("output.dry_run", false)
	v.SetDefault("proxy.secure", false)
	v.SetDefault("ledger.dsn", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Only a malformed file is an error; a missing one falls back to defaults
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix("GIAC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, bind := range binders {
		if err := bind(v); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
func SetupLogger(cfg *Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
