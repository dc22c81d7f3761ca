package config

import (
	"log/slog"
	"testing"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(env(nil))
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if cfg.Addr() != ":8080" || cfg.DBDriver != DriverSQLite || cfg.DBPath != "debts.db" {
		t.Errorf("Unexpected defaults: %+v", cfg)
	}
	if cfg.DefaultCurrency != "USD" || cfg.LogLevel != slog.LevelInfo {
		t.Errorf("Unexpected defaults: %+v", cfg)
	}
}

func TestLoad_Postgres(t *testing.T) {
	cfg, err := load(env(map[string]string{
		"DB_DRIVER":        "Postgres",
		"DATABASE_URL":     "postgres://localhost/debts",
		"LOG_LEVEL":        "DEBUG",
		"DEFAULT_CURRENCY": "eur",
		"PORT":             "127.0.0.1:9000",
	}))
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if cfg.DBDriver != DriverPostgres || cfg.LogLevel != slog.LevelDebug || cfg.DefaultCurrency != "EUR" {
		t.Errorf("Unexpected config: %+v", cfg)
	}
	if cfg.Addr() != "127.0.0.1:9000" {
		t.Errorf("Expected explicit host:port to be kept, got %s", cfg.Addr())
	}
}

func TestLoad_Errors(t *testing.T) {
	cases := map[string]map[string]string{
		"postgres without dsn": {"DB_DRIVER": "postgres"},
		"unknown driver":       {"DB_DRIVER": "mysql"},
		"unknown currency":     {"DEFAULT_CURRENCY": "XYZ1"},
	}
	for name, vars := range cases {
		if _, err := load(env(vars)); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}
