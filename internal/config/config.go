// Package config loads the service configuration from TOML files, a .env file,
// and EINVOICE_ environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/einvoice/internal/batch"
	"github.com/JaimeStill/einvoice/internal/notify"
	"github.com/JaimeStill/einvoice/internal/regulator"
	"github.com/JaimeStill/einvoice/internal/signing"
	"github.com/JaimeStill/einvoice/pkg/database"
	"github.com/JaimeStill/einvoice/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"
	DotEnvFile           = ".env"

	EnvEinvoiceEnv             = "EINVOICE_ENV"
	EnvEinvoiceShutdownTimeout = "EINVOICE_SHUTDOWN_TIMEOUT"
	EnvEinvoiceVersion         = "EINVOICE_VERSION"
)

// DatabaseEnv maps the database config to EINVOICE_DB_ variables.
var DatabaseEnv = &database.Env{
	Host:             "EINVOICE_DB_HOST",
	Port:             "EINVOICE_DB_PORT",
	Name:             "EINVOICE_DB_NAME",
	User:             "EINVOICE_DB_USER",
	Password:         "EINVOICE_DB_PASSWORD",
	SSLMode:          "EINVOICE_DB_SSL_MODE",
	MaxOpenConns:     "EINVOICE_DB_MAX_OPEN_CONNS",
	MaxIdleConns:     "EINVOICE_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime:  "EINVOICE_DB_CONN_MAX_LIFETIME",
	ConnTimeout:      "EINVOICE_DB_CONN_TIMEOUT",
	StatementTimeout: "EINVOICE_DB_STATEMENT_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "EINVOICE_STORAGE_CONTAINER_NAME",
	ConnectionString: "EINVOICE_STORAGE_CONNECTION_STRING",
	ServiceURL:       "EINVOICE_STORAGE_SERVICE_URL",
}

var batchEnv = &batch.Env{
	MaxDegreeOfParallelism: "EINVOICE_BATCH_MAX_DEGREE_OF_PARALLELISM",
	MaxRetryAttempts:       "EINVOICE_BATCH_MAX_RETRY_ATTEMPTS",
	RetryDelayBase:         "EINVOICE_BATCH_RETRY_DELAY_BASE",
	ContinueOnError:        "EINVOICE_BATCH_CONTINUE_ON_ERROR",
	SubmissionChunkSize:    "EINVOICE_BATCH_SUBMISSION_CHUNK_SIZE",
	RetryRejected:          "EINVOICE_BATCH_RETRY_REJECTED",
	NotifyTimeout:          "EINVOICE_BATCH_NOTIFY_TIMEOUT",
}

var signingEnv = &signing.Env{
	BaseURL: "EINVOICE_SIGNING_BASE_URL",
	APIKey:  "EINVOICE_SIGNING_API_KEY",
	Timeout: "EINVOICE_SIGNING_TIMEOUT",
}

var regulatorEnv = &regulator.Env{
	BaseURL:      "EINVOICE_ETA_BASE_URL",
	IssuerURL:    "EINVOICE_ETA_ISSUER_URL",
	TokenURL:     "EINVOICE_ETA_TOKEN_URL",
	ClientID:     "EINVOICE_ETA_CLIENT_ID",
	ClientSecret: "EINVOICE_ETA_CLIENT_SECRET",
	Scopes:       "EINVOICE_ETA_SCOPES",
	Timeout:      "EINVOICE_ETA_TIMEOUT",
}

var notifyEnv = &notify.Env{
	Brokers:  "EINVOICE_NOTIFY_BROKERS",
	Topic:    "EINVOICE_NOTIFY_TOPIC",
	ClientID: "EINVOICE_NOTIFY_CLIENT_ID",
	Source:   "EINVOICE_NOTIFY_SOURCE",
}

// Config is the root configuration for the e-invoice service.
type Config struct {
	Server          ServerConfig     `toml:"server"`
	Database        database.Config  `toml:"database"`
	Storage         storage.Config   `toml:"storage"`
	API             APIConfig        `toml:"api"`
	Batch           batch.Config     `toml:"batch"`
	Signing         signing.Config   `toml:"signing"`
	Regulator       regulator.Config `toml:"regulator"`
	Notify          notify.Config    `toml:"notify"`
	ShutdownTimeout string           `toml:"shutdown_timeout"`
	Version         string           `toml:"version"`
}

// Env returns the EINVOICE_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvEinvoiceEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	return duration(c.ShutdownTimeout)
}

// Load reads .env into the process environment (variables already set win),
// reads the base config (if present), applies any environment overlay, and
// finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", DotEnvFile, err)
	}

	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.Finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.API.Merge(&overlay.API)
	c.Batch.Merge(&overlay.Batch)
	c.Signing.Merge(&overlay.Signing)
	c.Regulator.Merge(&overlay.Regulator)
	c.Notify.Merge(&overlay.Notify)
}

// Finalize applies defaults, environment variable overrides, and validation
// to the root config and every section.
func (c *Config) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Database.Finalize(DatabaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.Batch.Finalize(batchEnv); err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	if err := c.Signing.Finalize(signingEnv); err != nil {
		return fmt.Errorf("signing: %w", err)
	}
	if err := c.Regulator.Finalize(regulatorEnv); err != nil {
		return fmt.Errorf("regulator: %w", err)
	}
	if err := c.Notify.Finalize(notifyEnv); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvEinvoiceShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvEinvoiceVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvEinvoiceEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
