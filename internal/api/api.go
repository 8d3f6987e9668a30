// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"fmt"
	"net/http"

	"github.com/JaimeStill/einvoice/internal/config"
	"github.com/JaimeStill/einvoice/internal/infrastructure"
	"github.com/JaimeStill/einvoice/pkg/formatting"
	"github.com/JaimeStill/einvoice/pkg/middleware"
	"github.com/JaimeStill/einvoice/pkg/module"
)

// NewModule creates the API module with all domain handlers and middleware,
// and registers the lifecycle hooks of the domain systems that need them.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, error) {
	runtime := NewRuntime(cfg, infra)

	domain, err := NewDomain(runtime)
	if err != nil {
		return nil, err
	}

	if err := domain.Start(runtime.Lifecycle); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	registerRoutes(mux, domain, runtime)

	serveSpec, err := buildSpec(&cfg.API.OpenAPI, cfg.Version, cfg.API.BasePath).Handler()
	if err != nil {
		return nil, fmt.Errorf("openapi spec: %w", err)
	}
	mux.HandleFunc("GET /openapi.json", serveSpec)

	m, err := module.New(cfg.API.BasePath, mux)
	if err != nil {
		return nil, err
	}
	m.Use(middleware.Recover(runtime.Logger))
	m.Use(middleware.Logger(runtime.Logger))
	m.Use(middleware.BodyLimit(cfg.API.MaxBodySizeBytes()))

	runtime.Logger.Info(
		"api module ready",
		"base_path", cfg.API.BasePath,
		"max_body_size", formatting.FormatBytes(cfg.API.MaxBodySizeBytes(), 0),
	)

	return m, nil
}
