// Package config reads process settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Rhymond/go-money"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

type Config struct {
	Port            string
	DBDriver        string // sqlite3 or postgres
	DBPath          string // sqlite file
	DatabaseURL     string // postgres dsn
	LogLevel        slog.Level
	DefaultCurrency string // ISO 4217 code used for display
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	cfg := Config{
		Port:            getenv("PORT"),
		DBDriver:        strings.ToLower(getenv("DB_DRIVER")),
		DBPath:          getenv("DB_PATH"),
		DatabaseURL:     getenv("DATABASE_URL"),
		DefaultCurrency: strings.ToUpper(getenv("DEFAULT_CURRENCY")),
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "debts.db"
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = money.USD
	}
	if money.GetCurrency(cfg.DefaultCurrency) == nil {
		return Config{}, fmt.Errorf("DEFAULT_CURRENCY %q is not a known currency", cfg.DefaultCurrency)
	}

	switch cfg.DBDriver {
	case "", "sqlite", DriverSQLite:
		cfg.DBDriver = DriverSQLite
	case "postgres", "postgresql", "pgx":
		cfg.DBDriver = DriverPostgres
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL is required when DB_DRIVER is %s", cfg.DBDriver)
		}
	default:
		return Config{}, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	switch strings.ToLower(getenv("LOG_LEVEL")) {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "warn", "warning":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		cfg.LogLevel = slog.LevelInfo
	}
	return cfg, nil
}

// Addr is the listen address for Port.
func (c Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}
