package api

import (
	"github.com/JaimeStill/einvoice/internal/batch"
	"github.com/JaimeStill/einvoice/internal/config"
	"github.com/JaimeStill/einvoice/internal/infrastructure"
	"github.com/JaimeStill/einvoice/internal/notify"
	"github.com/JaimeStill/einvoice/internal/regulator"
	"github.com/JaimeStill/einvoice/internal/signing"
	"github.com/JaimeStill/einvoice/pkg/pagination"
)

// Runtime extends Infrastructure with API-specific configuration.
type Runtime struct {
	*infrastructure.Infrastructure
	Pagination pagination.Config
	Batch      batch.Config
	Signing    signing.Config
	Regulator  regulator.Config
	Notify     notify.Config
}

// NewRuntime creates an API runtime with a module-scoped logger.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	return &Runtime{
		Infrastructure: &infrastructure.Infrastructure{
			Lifecycle: infra.Lifecycle,
			Logger:    infra.Logger.With("module", "api"),
			Metrics:   infra.Metrics,
			Database:  infra.Database,
			Storage:   infra.Storage,
		},
		Pagination: cfg.API.Pagination,
		Batch:      cfg.Batch,
		Signing:    cfg.Signing,
		Regulator:  cfg.Regulator,
		Notify:     cfg.Notify,
	}
}
