package openapi

import "os"

// Config holds the descriptive metadata of the generated spec.
type Config struct {
	Title       string `toml:"title"`
	Description string `toml:"description"`
}

// ConfigEnv names the environment variables that override Config fields.
type ConfigEnv struct {
	Title       string
	Description string
}

// Finalize fills empty fields with defaults, then applies env overrides.
func (c *Config) Finalize(env *ConfigEnv) error {
	if c.Title == "" {
		c.Title = "E-Invoice Submission API"
	}
	if c.Description == "" {
		c.Description = "Signs stored invoices and receipts and submits them to the Egyptian Tax Authority in bounded-parallel batches."
	}
	if env == nil {
		return nil
	}
	if v := os.Getenv(env.Title); env.Title != "" && v != "" {
		c.Title = v
	}
	if v := os.Getenv(env.Description); env.Description != "" && v != "" {
		c.Description = v
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Title != "" {
		c.Title = overlay.Title
	}
	if overlay.Description != "" {
		c.Description = overlay.Description
	}
}
