package notify

import (
	"fmt"
	"os"
	"strings"
)

// Config holds notifier settings. Kafka publishing is enabled when Brokers is set.
type Config struct {
	Brokers  string `toml:"brokers"`
	Topic    string `toml:"topic"`
	ClientID string `toml:"client_id"`
	Source   string `toml:"source"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Brokers  string
	Topic    string
	ClientID string
	Source   string
}

// BrokerList splits Brokers on commas, dropping empty entries.
func (c *Config) BrokerList() []string {
	var brokers []string
	for b := range strings.SplitSeq(c.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// KafkaEnabled reports whether any broker is configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.BrokerList()) > 0
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
	if overlay.Brokers != "" {
		c.Brokers = overlay.Brokers
	}
	if overlay.Topic != "" {
		c.Topic = overlay.Topic
	}
	if overlay.ClientID != "" {
		c.ClientID = overlay.ClientID
	}
	if overlay.Source != "" {
		c.Source = overlay.Source
	}
}

func (c *Config) loadDefaults() {
	if c.Topic == "" {
		c.Topic = "einvoice.batch.events"
	}
	if c.ClientID == "" {
		c.ClientID = "einvoice"
	}
	if c.Source == "" {
		c.Source = "/einvoice/batches"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Brokers != "" {
		if v := os.Getenv(env.Brokers); v != "" {
			c.Brokers = v
		}
	}
	if env.Topic != "" {
		if v := os.Getenv(env.Topic); v != "" {
			c.Topic = v
		}
	}
	if env.ClientID != "" {
		if v := os.Getenv(env.ClientID); v != "" {
			c.ClientID = v
		}
	}
	if env.Source != "" {
		if v := os.Getenv(env.Source); v != "" {
			c.Source = v
		}
	}
}

func (c *Config) validate() error {
	if c.KafkaEnabled() && c.Topic == "" {
		return fmt.Errorf("topic required when brokers are set")
	}
	for _, b := range c.BrokerList() {
		if !strings.Contains(b, ":") {
			return fmt.Errorf("invalid broker %q: host:port required", b)
		}
	}
	return nil
}
