package api

import (
	"net/http"

	"github.com/JaimeStill/einvoice/internal/batch"
	"github.com/JaimeStill/einvoice/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	runtime *Runtime,
) {
	receipts := newReceiptsHandler(runtime.Storage, runtime.Logger)

	routes.Register(
		mux,
		domain.Documents.Handler().Routes(),
		batch.NewHandler(
			domain.Coordinator,
			runtime.Batch.Options(),
			runtime.Logger,
		).Routes(),
		receipts.routes(),
	)
}
