package storage_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/JaimeStill/einvoice/pkg/storage"
)

const azuriteConnString = "DefaultEndpointsProtocol=http;AccountName=devstoreaccount1;AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;BlobEndpoint=http://127.0.0.1:10000/devstoreaccount1;"

func TestNewReturnsSystem(t *testing.T) {
	cfg := &storage.Config{
		ContainerName:    "einvoice",
		ConnectionString: azuriteConnString,
	}

	sys, err := storage.New(cfg, slog.Default())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if sys == nil {
		t.Fatal("New() returned nil system")
	}
}

func TestNewInvalidConnectionString(t *testing.T) {
	cfg := &storage.Config{
		ContainerName:    "einvoice",
		ConnectionString: "not-a-connection-string",
	}

	if _, err := storage.New(cfg, slog.Default()); err == nil {
		t.Fatal("expected error for invalid connection string, got nil")
	}
}

func TestKeyValidation(t *testing.T) {
	sys, err := storage.New(&storage.Config{
		ContainerName:    "einvoice",
		ConnectionString: azuriteConnString,
	}, slog.Default())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{"empty", "", storage.ErrEmptyKey},
		{"traversal", "signatures/../secrets", storage.ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := sys.Put(ctx, tt.key, []byte("x"), "text/plain"); !errors.Is(err, tt.wantErr) {
				t.Errorf("Put: got %v, want %v", err, tt.wantErr)
			}
			if _, err := sys.Get(ctx, tt.key); !errors.Is(err, tt.wantErr) {
				t.Errorf("Get: got %v, want %v", err, tt.wantErr)
			}
			if err := sys.Delete(ctx, tt.key); !errors.Is(err, tt.wantErr) {
				t.Errorf("Delete: got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigFinalize(t *testing.T) {
	tests := []struct {
		name    string
		cfg     storage.Config
		wantErr string
	}{
		{"connection string", storage.Config{ConnectionString: azuriteConnString}, ""},
		{"service url", storage.Config{ServiceURL: "https://acct.blob.core.windows.net"}, ""},
		{"neither", storage.Config{}, "connection_string or service_url required"},
		{"bad service url", storage.Config{ServiceURL: "acct"}, "invalid service_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Finalize(nil)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if tt.cfg.ContainerName != "einvoice" {
					t.Errorf("container default: got %s", tt.cfg.ContainerName)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("got %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigEnvOverrides(t *testing.T) {
	t.Setenv("TEST_STORAGE_CONTAINER", "receipts")
	t.Setenv("TEST_STORAGE_URL", "https://acct.blob.core.windows.net")

	cfg := storage.Config{}
	err := cfg.Finalize(&storage.Env{
		ContainerName: "TEST_STORAGE_CONTAINER",
		ServiceURL:    "TEST_STORAGE_URL",
	})
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if cfg.ContainerName != "receipts" {
		t.Errorf("container: got %s", cfg.ContainerName)
	}
	if cfg.ServiceURL != "https://acct.blob.core.windows.net" {
		t.Errorf("service_url: got %s", cfg.ServiceURL)
	}
}
