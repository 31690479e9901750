package handlers

import (
	"net/http"

	"github.com/Project-Sylos/Mirage/internal/api/models"
	"github.com/Project-Sylos/Mirage/internal/batch"
	"github.com/Project-Sylos/Mirage/internal/logger"
	"github.com/Project-Sylos/Mirage/sdk"
)

// DispatcherFunc returns the dispatcher that runs the sub-requests of req
type DispatcherFunc func(req *http.Request) batch.Dispatcher

// BatchHandler serves POST /v1.0/$batch
type BatchHandler struct {
	BaseHandler
	opts     batch.Options
	dispatch DispatcherFunc
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(m *sdk.Mirage, dispatch DispatcherFunc) *BatchHandler {
	cfg := m.Config().Batch
	return &BatchHandler{
		opts:     batch.Options{MaxRequests: cfg.MaxRequests, Concurrent: cfg.Concurrent},
		dispatch: dispatch,
	}
}

// Execute runs the batch. Structural errors fail the whole call with 400;
// everything else is reported per request.
func (h *BatchHandler) Execute(w http.ResponseWriter, req *http.Request) {
	var body models.BatchRequest
	if err := decodeJSON(req, &body); err != nil {
		h.sendStoreError(w, err)
		return
	}

	engine := batch.NewEngine(h.dispatch(req), h.opts)
	responses, err := engine.Execute(req.Context(), body.Requests, req.Header)
	if err != nil {
		h.sendStoreError(w, err)
		return
	}

	logger.Debug("batch completed: requests=%d", len(responses))
	h.sendJSON(w, http.StatusOK, models.BatchResponse{Responses: responses})
}
