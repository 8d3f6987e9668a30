package batch

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/einvoice/pkg/handlers"
	"github.com/JaimeStill/einvoice/pkg/routes"
)

var errInvalidBatchID = errors.New("invalid batch id")

// SubmitRequest is the body of a batch submission.
type SubmitRequest struct {
	BatchID     *uuid.UUID  `json:"batch_id,omitempty"`
	DocumentIDs []uuid.UUID `json:"document_ids"`
	Credential  string      `json:"credential"`
	Options     Overrides   `json:"options"`
}

// Handler provides HTTP endpoints for batch operations.
type Handler struct {
	coordinator *Coordinator
	defaults    Options
	logger      *slog.Logger
}

// NewHandler creates a Handler that submits batches with the given default options.
func NewHandler(c *Coordinator, defaults Options, logger *slog.Logger) *Handler {
	return &Handler{
		coordinator: c,
		defaults:    defaults,
		logger:      logger.With("handler", "batches"),
	}
}

// Routes returns the route group definition for batch endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/batches",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: h.Submit},
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "GET", Pattern: "/{id}", Handler: h.Status},
			{Method: "POST", Pattern: "/{id}/cancel", Handler: h.Cancel},
		},
	}
}

// Submit runs a batch to completion and returns its result. The request
// context bounds the batch: a dropped connection cancels it.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, handlers.DecodeStatus(err), err)
		return
	}

	opts, err := req.Options.Apply(h.defaults)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	batchID := uuid.New()
	if req.BatchID != nil {
		batchID = *req.BatchID
	}

	result, err := h.coordinator.SubmitWithID(r.Context(), batchID, req.DocumentIDs, req.Credential, opts)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// List returns the status of every running batch.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	handlers.RespondJSON(w, http.StatusOK, h.coordinator.Registry().List())
}

// Status returns the live status of a batch. Unknown batches report state "unknown".
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidBatchID)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, h.coordinator.Registry().Status(id))
}

// Cancel requests cancellation of a running batch.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidBatchID)
		return
	}

	if !h.coordinator.Registry().Cancel(id) {
		handlers.RespondError(w, h.logger, http.StatusNotFound, ErrBatchNotFound)
		return
	}

	handlers.RespondJSON(w, http.StatusAccepted, h.coordinator.Registry().Status(id))
}
