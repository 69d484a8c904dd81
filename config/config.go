// Package config loads the librarian configuration from file and
// environment using viper. Every section has working defaults so the
// service can start with an empty config file.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root configuration for one librarian instance.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Librarian LibrarianConfig `mapstructure:"librarian"`
	Scanner   ScannerConfig   `mapstructure:"scanner"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	EnableHTTPS  bool   `mapstructure:"enable_https"`
	HTTPSPort    int    `mapstructure:"https_port"`
	TLSCertFile  string `mapstructure:"tls_cert_file"`
	TLSKeyFile   string `mapstructure:"tls_key_file"`
	EnableHTTP2  bool   `mapstructure:"enable_http2"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // seconds
}

// DatabaseConfig controls the gorm connection.
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	DSN             string `mapstructure:"dsn"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // seconds
}

// LoggerConfig controls the log output.
type LoggerConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

// LibrarianConfig identifies this librarian instance. Name becomes the
// "source" recorded on every File this instance catalogs first.
type LibrarianConfig struct {
	Name string `mapstructure:"name"`
}

// ScannerConfig controls the background store scanner.
type ScannerConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Interval int      `mapstructure:"interval"` // seconds between scan rounds
	Prefixes []string `mapstructure:"prefixes"` // store path prefixes to scan
	MaxKeys  int      `mapstructure:"max_keys"` // listing page size per store
}

// Load reads librarian.yaml (working directory or /etc/librarian) plus
// LIBRARIAN_* environment overrides and returns the merged config.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("librarian")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/librarian")

	v.SetEnvPrefix("librarian")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Librarian.Name == "" {
		return nil, fmt.Errorf("librarian.name must be set: it identifies this librarian as the source of new file records")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.enable_https", false)
	v.SetDefault("server.https_port", 8443)
	v.SetDefault("server.enable_http2", true)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "librarian.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 3600)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "text")
	v.SetDefault("logger.output", "console")
	v.SetDefault("logger.file_path", "logs/librarian.log")

	v.SetDefault("scanner.enabled", false)
	v.SetDefault("scanner.interval", 300)
	v.SetDefault("scanner.prefixes", []string{""})
	v.SetDefault("scanner.max_keys", 1000)
}
