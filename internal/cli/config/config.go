package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/conduit-lang/sharedorm/internal/orm/codegen"
	"github.com/conduit-lang/sharedorm/internal/orm/migrate"
	"github.com/conduit-lang/sharedorm/pkg/orm/naming"
)

// FileName is the configuration file base name, without extension
const FileName = "sharedorm"

// EnvPrefix prefixes every environment override (SHAREDORM_DIALECT, ...)
const EnvPrefix = "SHAREDORM"

// Config represents the ormctl configuration
type Config struct {
	Dialect        string            `mapstructure:"dialect"`
	Schema         string            `mapstructure:"schema"`
	SnapshotFormat string            `mapstructure:"snapshot_format"`
	LogLevel       string            `mapstructure:"log_level"`
	Database       DatabaseConfig    `mapstructure:"database"`
	Naming         map[string]string `mapstructure:"naming"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// Load loads the configuration from sharedorm.yml or sharedorm.yaml in the
// current directory
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile loads the configuration from an explicit file. An empty path
// searches the current directory; a missing file there means defaults.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("dialect", string(codegen.Postgres))
	v.SetDefault("schema", "schema.yaml")
	v.SetDefault("snapshot_format", "")
	v.SetDefault("log_level", "warn")
	v.SetDefault("database.url", "")
	v.SetDefault("naming", map[string]string{})

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// DatabaseURL returns the connection string, preferring DATABASE_URL
func (c *Config) DatabaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	return c.Database.URL
}

// ParsedDialect returns the configured SQL dialect
func (c *Config) ParsedDialect() codegen.Dialect {
	d, _ := codegen.ParseDialect(c.Dialect)
	return d
}

// Format returns the snapshot encoding for path. An explicit
// snapshot_format wins over the file extension.
func (c *Config) Format(path string) migrate.Format {
	if c.SnapshotFormat != "" {
		f, _ := migrate.ParseFormat(c.SnapshotFormat)
		return f
	}
	return migrate.FormatFromPath(path)
}

// Convention returns the naming convention for new schemas: the default
// templates with any configured overrides applied
func (c *Config) Convention() (*naming.Convention, error) {
	if len(c.Naming) == 0 {
		return naming.Default(), nil
	}

	templates := naming.Default().Templates()
	for key, tmpl := range c.Naming {
		category, err := naming.ParseCategory(key)
		if err != nil {
			return nil, fmt.Errorf("naming.%s: %w", key, err)
		}
		templates[category] = tmpl
	}

	return naming.NewConvention(templates)
}

// Logger builds a console logger at the configured level
func (c *Config) Logger() (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}

	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.DisableStacktrace = true
	return zc.Build()
}

// FindConfigFile walks up from the working directory looking for
// sharedorm.yml or sharedorm.yaml
func FindConfigFile() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		for _, ext := range []string{".yml", ".yaml"} {
			candidate := filepath.Join(dir, FileName+ext)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s.yml found", FileName)
		}
		dir = parent
	}
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if _, err := codegen.ParseDialect(cfg.Dialect); err != nil {
		return fmt.Errorf("dialect: %w", err)
	}

	if cfg.SnapshotFormat != "" {
		if _, err := migrate.ParseFormat(cfg.SnapshotFormat); err != nil {
			return fmt.Errorf("snapshot_format: %w", err)
		}
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return fmt.Errorf("log_level must be one of debug, info, warn, error, got: %s", cfg.LogLevel)
	}

	return nil
}
