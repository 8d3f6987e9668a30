package batch

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the default batch options and notification settings.
type Config struct {
	MaxDegreeOfParallelism int    `toml:"max_degree_of_parallelism"`
	MaxRetryAttempts       int    `toml:"max_retry_attempts"`
	RetryDelayBase         string `toml:"retry_delay_base"`
	ContinueOnError        *bool  `toml:"continue_on_error"`
	SubmissionChunkSize    int    `toml:"submission_chunk_size"`
	RetryRejected          *bool  `toml:"retry_rejected"`
	NotifyTimeout          string `toml:"notify_timeout"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	MaxDegreeOfParallelism string
	MaxRetryAttempts       string
	RetryDelayBase         string
	ContinueOnError        string
	SubmissionChunkSize    string
	RetryRejected          string
	NotifyTimeout          string
}

// Options returns the configured default batch options.
func (c *Config) Options() Options {
	d, _ := time.ParseDuration(c.RetryDelayBase)
	return Options{
		MaxDegreeOfParallelism: c.MaxDegreeOfParallelism,
		MaxRetryAttempts:       c.MaxRetryAttempts,
		RetryDelayBase:         d,
		ContinueOnError:        boolOr(c.ContinueOnError, true),
		SubmissionChunkSize:    c.SubmissionChunkSize,
		RetryRejected:          boolOr(c.RetryRejected, true),
	}
}

func boolOr(p *bool, fallback bool) bool {
	if p == nil {
		return fallback
	}
	return *p
}

// NotifyTimeoutDuration returns NotifyTimeout as a time.Duration.
func (c *Config) NotifyTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.NotifyTimeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.MaxDegreeOfParallelism != 0 {
		c.MaxDegreeOfParallelism = overlay.MaxDegreeOfParallelism
	}
	if overlay.MaxRetryAttempts != 0 {
		c.MaxRetryAttempts = overlay.MaxRetryAttempts
	}
	if overlay.RetryDelayBase != "" {
		c.RetryDelayBase = overlay.RetryDelayBase
	}
	if overlay.ContinueOnError != nil {
		c.ContinueOnError = overlay.ContinueOnError
	}
	if overlay.SubmissionChunkSize != 0 {
		c.SubmissionChunkSize = overlay.SubmissionChunkSize
	}
	if overlay.RetryRejected != nil {
		c.RetryRejected = overlay.RetryRejected
	}
	if overlay.NotifyTimeout != "" {
		c.NotifyTimeout = overlay.NotifyTimeout
	}
}

func (c *Config) loadDefaults() {
	d := DefaultOptions()
	if c.MaxDegreeOfParallelism == 0 {
		c.MaxDegreeOfParallelism = d.MaxDegreeOfParallelism
	}
	if c.MaxRetryAttempts == 0 {
		c.MaxRetryAttempts = d.MaxRetryAttempts
	}
	if c.RetryDelayBase == "" {
		c.RetryDelayBase = d.RetryDelayBase.String()
	}
	if c.ContinueOnError == nil {
		c.ContinueOnError = &d.ContinueOnError
	}
	if c.SubmissionChunkSize == 0 {
		c.SubmissionChunkSize = d.SubmissionChunkSize
	}
	if c.RetryRejected == nil {
		c.RetryRejected = &d.RetryRejected
	}
	if c.NotifyTimeout == "" {
		c.NotifyTimeout = "15s"
	}
}

func (c *Config) loadEnv(env *Env) {
	setInt := func(name string, field *int) {
		if name == "" {
			return
		}
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*field = n
			}
		}
	}
	setBool := func(name string, field **bool) {
		if name == "" {
			return
		}
		if v := os.Getenv(name); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*field = &b
			}
		}
	}
	setString := func(name string, field *string) {
		if name == "" {
			return
		}
		if v := os.Getenv(name); v != "" {
			*field = v
		}
	}

	setInt(env.MaxDegreeOfParallelism, &c.MaxDegreeOfParallelism)
	setInt(env.MaxRetryAttempts, &c.MaxRetryAttempts)
	setString(env.RetryDelayBase, &c.RetryDelayBase)
	setBool(env.ContinueOnError, &c.ContinueOnError)
	setInt(env.SubmissionChunkSize, &c.SubmissionChunkSize)
	setBool(env.RetryRejected, &c.RetryRejected)
	setString(env.NotifyTimeout, &c.NotifyTimeout)
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.RetryDelayBase); err != nil {
		return fmt.Errorf("invalid retry_delay_base: %w", err)
	}
	d, err := time.ParseDuration(c.NotifyTimeout)
	if err != nil {
		return fmt.Errorf("invalid notify_timeout: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("notify_timeout must be positive")
	}
	return c.Options().Validate()
}
