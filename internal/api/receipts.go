package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/einvoice/internal/regulator"
	"github.com/JaimeStill/einvoice/pkg/handlers"
	"github.com/JaimeStill/einvoice/pkg/routes"
	"github.com/JaimeStill/einvoice/pkg/storage"
)

// receiptsHandler serves archived regulator submission receipts.
type receiptsHandler struct {
	store  storage.System
	logger *slog.Logger
}

func newReceiptsHandler(store storage.System, logger *slog.Logger) *receiptsHandler {
	return &receiptsHandler{
		store:  store,
		logger: logger.With("handler", "receipts"),
	}
}

func (h *receiptsHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "/receipts",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/{id}", Handler: h.find},
		},
	}
}

func (h *receiptsHandler) find(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errors.New("invalid document ID"))
		return
	}

	data, err := h.store.Get(r.Context(), regulator.ReceiptKey(id))
	if err != nil {
		handlers.RespondError(w, h.logger, storageStatus(err), err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func storageStatus(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrEmptyKey), errors.Is(err, storage.ErrInvalidKey):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
