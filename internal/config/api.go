package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/JaimeStill/einvoice/pkg/formatting"
	"github.com/JaimeStill/einvoice/pkg/openapi"
	"github.com/JaimeStill/einvoice/pkg/pagination"
)

const defaultMaxBodySize = 4 * 1024 * 1024

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "EINVOICE_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "EINVOICE_PAGINATION_MAX_PAGE_SIZE",
}

var openAPIEnv = &openapi.ConfigEnv{
	Title:       "EINVOICE_OPENAPI_TITLE",
	Description: "EINVOICE_OPENAPI_DESCRIPTION",
}

// APIConfig holds API routing, request limits, pagination, and OpenAPI settings.
type APIConfig struct {
	BasePath    string            `toml:"base_path"`
	MaxBodySize string            `toml:"max_body_size"`
	Pagination  pagination.Config `toml:"pagination"`
	OpenAPI     openapi.Config    `toml:"openapi"`
}

// MaxBodySizeBytes returns MaxBodySize as a byte count.
func (c *APIConfig) MaxBodySizeBytes() int64 {
	size, err := formatting.ParseBytes(c.MaxBodySize)
	if err != nil {
		return defaultMaxBodySize
	}
	return size
}

// Finalize applies defaults, environment variable overrides, and validation
// for the API config and its nested configs.
func (c *APIConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	if err := c.OpenAPI.Finalize(openAPIEnv); err != nil {
		return fmt.Errorf("openapi: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.MaxBodySize != "" {
		c.MaxBodySize = overlay.MaxBodySize
	}
	c.Pagination.Merge(&overlay.Pagination)
	c.OpenAPI.Merge(&overlay.OpenAPI)
}

func (c *APIConfig) loadDefaults() {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.MaxBodySize == "" {
		c.MaxBodySize = "4MB"
	}
}

func (c *APIConfig) loadEnv() {
	if v := os.Getenv("EINVOICE_API_BASE_PATH"); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv("EINVOICE_API_MAX_BODY_SIZE"); v != "" {
		c.MaxBodySize = v
	}
}

func (c *APIConfig) validate() error {
	if !strings.HasPrefix(c.BasePath, "/") || strings.Count(c.BasePath, "/") != 1 || len(c.BasePath) == 1 {
		return fmt.Errorf("invalid base_path %q: must be a single-level path such as /api", c.BasePath)
	}
	if _, err := formatting.ParseBytes(c.MaxBodySize); err != nil {
		return fmt.Errorf("invalid max_body_size: %w", err)
	}
	return nil
}
