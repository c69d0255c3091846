// Package config loads service settings from an optional YAML file, a .env
// file and the process environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"bakery_ops_backend/pkg/utils"
)

type ServerConfig struct {
	Port               string        `yaml:"port"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
	GinMode            string        `yaml:"gin_mode"`
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver"` // postgres, mysql or sqlite
	DSN             string        `yaml:"dsn"`
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
	SeedUnits       bool          `yaml:"seed_units"`
	TxRetries       int           `yaml:"tx_retries"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Config is the root of the service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// Default returns the configuration used when nothing else is supplied.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:               "8080",
			CORSAllowedOrigins: []string{"http://localhost:3000"},
			ShutdownTimeout:    10 * time.Second,
			GinMode:            "release",
		},
		Database: DatabaseConfig{
			Driver:          "postgres",
			Host:            "localhost",
			Port:            "5432",
			User:            "postgres",
			Name:            "bakery_ops",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			AutoMigrate:     true,
			SeedUnits:       true,
			TxRetries:       3,
		},
		Auth:    AuthConfig{Issuer: "bakery-ops"},
		Log:     LogConfig{Level: "info"},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

// Load builds the configuration. path may be empty or point to a missing
// file, in which case only defaults and the environment apply.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = utils.Getenv("SERVER_PORT", cfg.Server.Port)
	cfg.Server.CORSAllowedOrigins = utils.GetenvList("CORS_ALLOWED_ORIGINS", cfg.Server.CORSAllowedOrigins)
	cfg.Server.GinMode = utils.Getenv("GIN_MODE", cfg.Server.GinMode)

	cfg.Database.Driver = utils.Getenv("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = utils.Getenv("DB_DSN", cfg.Database.DSN)
	cfg.Database.Host = utils.Getenv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = utils.Getenv("DB_PORT", cfg.Database.Port)
	cfg.Database.User = utils.Getenv("DB_USER", cfg.Database.User)
	cfg.Database.Password = utils.Getenv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Name = utils.Getenv("DB_NAME", cfg.Database.Name)
	cfg.Database.SSLMode = utils.Getenv("DB_SSLMODE", cfg.Database.SSLMode)
	cfg.Database.MaxOpenConns = utils.GetenvInt("DB_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = utils.GetenvInt("DB_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)
	cfg.Database.AutoMigrate = utils.GetenvBool("DB_AUTO_MIGRATE", cfg.Database.AutoMigrate)
	cfg.Database.SeedUnits = utils.GetenvBool("DB_SEED_UNITS", cfg.Database.SeedUnits)
	cfg.Database.TxRetries = utils.GetenvInt("DB_TX_RETRIES", cfg.Database.TxRetries)

	cfg.Auth.JWTSecret = utils.Getenv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.Issuer = utils.Getenv("JWT_ISSUER", cfg.Auth.Issuer)

	cfg.Log.Level = utils.Getenv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Pretty = utils.GetenvBool("LOG_PRETTY", cfg.Log.Pretty)

	cfg.Metrics.Enabled = utils.GetenvBool("METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.Path = utils.Getenv("METRICS_PATH", cfg.Metrics.Path)
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.Driver == "sqlite" && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for sqlite")
	}
	if c.Database.Driver == "mysql" && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for mysql")
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("auth.jwt_secret (JWT_SECRET) must be set")
	}
	if c.Database.TxRetries < 0 {
		return fmt.Errorf("database.tx_retries must not be negative")
	}
	if c.Server.Port == "" {
		return fmt.Errorf("server.port must be set")
	}
	return nil
}

// ConnectionString returns the DSN handed to sql.Open. For postgres it is
// assembled from the discrete fields when no DSN is configured.
func (d DatabaseConfig) ConnectionString() string {
	if d.DSN != "" {
		return d.DSN
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}
