package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

const (
	EnvServerHost              = "EINVOICE_SERVER_HOST"
	EnvServerPort              = "EINVOICE_SERVER_PORT"
	EnvServerReadTimeout       = "EINVOICE_SERVER_READ_TIMEOUT"
	EnvServerReadHeaderTimeout = "EINVOICE_SERVER_READ_HEADER_TIMEOUT"
	EnvServerWriteTimeout      = "EINVOICE_SERVER_WRITE_TIMEOUT"
	EnvServerIdleTimeout       = "EINVOICE_SERVER_IDLE_TIMEOUT"
	EnvServerShutdownTimeout   = "EINVOICE_SERVER_SHUTDOWN_TIMEOUT"
)

// ServerConfig holds HTTP server parameters. WriteTimeout bounds synchronous
// batch submissions, so it should exceed the longest expected batch.
type ServerConfig struct {
	Host              string `toml:"host"`
	Port              int    `toml:"port"`
	ReadTimeout       string `toml:"read_timeout"`
	ReadHeaderTimeout string `toml:"read_header_timeout"`
	WriteTimeout      string `toml:"write_timeout"`
	IdleTimeout       string `toml:"idle_timeout"`
	ShutdownTimeout   string `toml:"shutdown_timeout"`
}

// Addr returns the host:port listen address.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ReadTimeoutDuration returns ReadTimeout as a time.Duration.
func (c *ServerConfig) ReadTimeoutDuration() time.Duration { return duration(c.ReadTimeout) }

// ReadHeaderTimeoutDuration returns ReadHeaderTimeout as a time.Duration.
func (c *ServerConfig) ReadHeaderTimeoutDuration() time.Duration {
	return duration(c.ReadHeaderTimeout)
}

// WriteTimeoutDuration returns WriteTimeout as a time.Duration.
func (c *ServerConfig) WriteTimeoutDuration() time.Duration { return duration(c.WriteTimeout) }

// IdleTimeoutDuration returns IdleTimeout as a time.Duration.
func (c *ServerConfig) IdleTimeoutDuration() time.Duration { return duration(c.IdleTimeout) }

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *ServerConfig) ShutdownTimeoutDuration() time.Duration {
	return duration(c.ShutdownTimeout)
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *ServerConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *ServerConfig) Merge(overlay *ServerConfig) {
	if overlay.Host != "" {
		c.Host = overlay.Host
	}
	if overlay.Port != 0 {
		c.Port = overlay.Port
	}
	for dst, src := range c.timeouts(overlay) {
		if *src != "" {
			*dst = *src
		}
	}
}

func (c *ServerConfig) loadDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	defaults := map[*string]string{
		&c.ReadTimeout:       "1m",
		&c.ReadHeaderTimeout: "10s",
		&c.WriteTimeout:      "15m",
		&c.IdleTimeout:       "2m",
		&c.ShutdownTimeout:   "30s",
	}
	for field, v := range defaults {
		if *field == "" {
			*field = v
		}
	}
}

func (c *ServerConfig) loadEnv() {
	if v := os.Getenv(EnvServerHost); v != "" {
		c.Host = v
	}
	if v := os.Getenv(EnvServerPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	envs := map[*string]string{
		&c.ReadTimeout:       EnvServerReadTimeout,
		&c.ReadHeaderTimeout: EnvServerReadHeaderTimeout,
		&c.WriteTimeout:      EnvServerWriteTimeout,
		&c.IdleTimeout:       EnvServerIdleTimeout,
		&c.ShutdownTimeout:   EnvServerShutdownTimeout,
	}
	for field, name := range envs {
		if v := os.Getenv(name); v != "" {
			*field = v
		}
	}
}

func (c *ServerConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	named := []struct {
		name  string
		value string
	}{
		{"read_timeout", c.ReadTimeout},
		{"read_header_timeout", c.ReadHeaderTimeout},
		{"write_timeout", c.WriteTimeout},
		{"idle_timeout", c.IdleTimeout},
		{"shutdown_timeout", c.ShutdownTimeout},
	}
	for _, t := range named {
		if _, err := time.ParseDuration(t.value); err != nil {
			return fmt.Errorf("invalid %s: %w", t.name, err)
		}
	}
	return nil
}

// timeouts pairs each duration field of c with the same field of other.
func (c *ServerConfig) timeouts(other *ServerConfig) map[*string]*string {
	return map[*string]*string{
		&c.ReadTimeout:       &other.ReadTimeout,
		&c.ReadHeaderTimeout: &other.ReadHeaderTimeout,
		&c.WriteTimeout:      &other.WriteTimeout,
		&c.IdleTimeout:       &other.IdleTimeout,
		&c.ShutdownTimeout:   &other.ShutdownTimeout,
	}
}

func duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
