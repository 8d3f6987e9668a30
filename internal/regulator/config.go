package regulator

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// Config holds ETA API endpoints and client credentials.
// When TokenURL is empty the token endpoint is discovered from IssuerURL.
type Config struct {
	BaseURL      string `toml:"base_url"`
	IssuerURL    string `toml:"issuer_url"`
	TokenURL     string `toml:"token_url"`
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	Scopes       string `toml:"scopes"`
	Timeout      string `toml:"timeout"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	BaseURL      string
	IssuerURL    string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       string
	Timeout      string
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// ScopeList splits Scopes on commas, dropping empty entries.
func (c *Config) ScopeList() []string {
	var scopes []string
	for s := range strings.SplitSeq(c.Scopes, ",") {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}
	return scopes
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
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.IssuerURL != "" {
		c.IssuerURL = overlay.IssuerURL
	}
	if overlay.TokenURL != "" {
		c.TokenURL = overlay.TokenURL
	}
	if overlay.ClientID != "" {
		c.ClientID = overlay.ClientID
	}
	if overlay.ClientSecret != "" {
		c.ClientSecret = overlay.ClientSecret
	}
	if overlay.Scopes != "" {
		c.Scopes = overlay.Scopes
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
}

func (c *Config) loadDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.preprod.invoicing.eta.gov.eg"
	}
	if c.IssuerURL == "" {
		c.IssuerURL = "https://id.preprod.eta.gov.eg"
	}
	if c.Scopes == "" {
		c.Scopes = "InvoicingAPI"
	}
	if c.Timeout == "" {
		c.Timeout = "1m"
	}
}

func (c *Config) loadEnv(env *Env) {
	set := func(name string, field *string) {
		if name == "" {
			return
		}
		if v := os.Getenv(name); v != "" {
			*field = v
		}
	}

	set(env.BaseURL, &c.BaseURL)
	set(env.IssuerURL, &c.IssuerURL)
	set(env.TokenURL, &c.TokenURL)
	set(env.ClientID, &c.ClientID)
	set(env.ClientSecret, &c.ClientSecret)
	set(env.Scopes, &c.Scopes)
	set(env.Timeout, &c.Timeout)
}

func (c *Config) validate() error {
	for name, raw := range map[string]string{"base_url": c.BaseURL, "issuer_url": c.IssuerURL} {
		if err := validateURL(raw); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	if c.TokenURL != "" {
		if err := validateURL(c.TokenURL); err != nil {
			return fmt.Errorf("invalid token_url: %w", err)
		}
	}
	if c.ClientID == "" {
		return fmt.Errorf("client_id required")
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("client_secret required")
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%q is not absolute", raw)
	}
	return nil
}
