package database_test

import (
	"strings"
	"testing"
	"time"

	"github.com/JaimeStill/einvoice/pkg/database"
)

func TestFinalizeDefaults(t *testing.T) {
	cfg := database.Config{Name: "einvoice", User: "einvoice"}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	tests := []struct {
		name     string
		got      any
		expected any
	}{
		{"host", cfg.Host, "localhost"},
		{"port", cfg.Port, 5432},
		{"ssl_mode", cfg.SSLMode, "disable"},
		{"max_open_conns", cfg.MaxOpenConns, 25},
		{"max_idle_conns", cfg.MaxIdleConns, 5},
		{"conn_max_lifetime", cfg.ConnMaxLifetime, "15m"},
		{"conn_timeout", cfg.ConnTimeout, "5s"},
		{"statement_timeout", cfg.StatementTimeout, "30s"},
		{"application_name", cfg.ApplicationName, "einvoice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %v, want %v", tt.got, tt.expected)
			}
		})
	}

	if got := cfg.StatementTimeoutDuration(); got != 30*time.Second {
		t.Errorf("statement timeout duration: got %v, want 30s", got)
	}
}

func TestFinalizeEnvOverrides(t *testing.T) {
	t.Setenv("TEST_DB_HOST", "db.internal")
	t.Setenv("TEST_DB_PORT", "5433")
	t.Setenv("TEST_DB_NAME", "envdb")
	t.Setenv("TEST_DB_USER", "envuser")
	t.Setenv("TEST_DB_STATEMENT_TIMEOUT", "2m")

	env := &database.Env{
		Host:             "TEST_DB_HOST",
		Port:             "TEST_DB_PORT",
		Name:             "TEST_DB_NAME",
		User:             "TEST_DB_USER",
		StatementTimeout: "TEST_DB_STATEMENT_TIMEOUT",
	}

	cfg := database.Config{}
	if err := cfg.Finalize(env); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if cfg.Host != "db.internal" || cfg.Port != 5433 {
		t.Errorf("address: got %s:%d", cfg.Host, cfg.Port)
	}
	if cfg.Name != "envdb" || cfg.User != "envuser" {
		t.Errorf("credentials: got %s/%s", cfg.Name, cfg.User)
	}
	if cfg.StatementTimeout != "2m" {
		t.Errorf("statement_timeout: got %s, want 2m", cfg.StatementTimeout)
	}
}

func TestFinalizeValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     database.Config
		wantErr string
	}{
		{"missing name", database.Config{User: "u"}, "name required"},
		{"missing user", database.Config{Name: "n"}, "user required"},
		{"invalid conn_timeout", database.Config{Name: "n", User: "u", ConnTimeout: "bad"}, "invalid conn_timeout"},
		{"invalid statement_timeout", database.Config{Name: "n", User: "u", StatementTimeout: "bad"}, "invalid statement_timeout"},
		{"idle above open", database.Config{Name: "n", User: "u", MaxOpenConns: 2, MaxIdleConns: 4}, "max_idle_conns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Finalize(nil)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	base := database.Config{Host: "localhost", Port: 5432, Name: "base", ApplicationName: "einvoice"}
	overlay := database.Config{Host: "remote", ApplicationName: "einvoice-worker"}

	base.Merge(&overlay)

	if base.Host != "remote" {
		t.Errorf("host: got %s, want remote", base.Host)
	}
	if base.Port != 5432 {
		t.Errorf("port: got %d, want 5432", base.Port)
	}
	if base.Name != "base" {
		t.Errorf("name: got %s, want base", base.Name)
	}
	if base.ApplicationName != "einvoice-worker" {
		t.Errorf("application_name: got %s", base.ApplicationName)
	}
}

func TestDsn(t *testing.T) {
	cfg := database.Config{Host: "h", Port: 1, Name: "n", User: "u", Password: "p", SSLMode: "disable"}
	want := "host=h port=1 dbname=n user=u password=p sslmode=disable"
	if got := cfg.Dsn(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestURL(t *testing.T) {
	cfg := database.Config{Host: "db", Port: 5432, Name: "einvoice", User: "app", Password: "p@ss", SSLMode: "require"}
	want := "postgres://app:p%40ss@db:5432/einvoice?sslmode=require"
	if got := cfg.URL(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
