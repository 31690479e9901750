package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Project-Sylos/Mirage/internal/api/models"
	"github.com/Project-Sylos/Mirage/internal/batch"
	"github.com/Project-Sylos/Mirage/internal/filter"
	"github.com/Project-Sylos/Mirage/internal/graph"
	"github.com/Project-Sylos/Mirage/internal/logger"
	"github.com/Project-Sylos/Mirage/internal/store"
	"github.com/Project-Sylos/Mirage/internal/upload"
)

// Graph error codes
const (
	CodeInvalidRequest        = "invalidRequest"
	CodeItemNotFound          = "itemNotFound"
	CodeNameAlreadyExists     = "nameAlreadyExists"
	CodeRangeNotSatisfiable   = "requestedRangeNotSatisfiable"
	CodeGeneralException      = "generalException"
	CodeRequestEntityTooLarge = "requestEntityTooLarge"
)

// BaseHandler provides common functionality for all API handlers
type BaseHandler struct{}

// sendJSON sends a JSON response with the given status code and data
func (h *BaseHandler) sendJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends a Graph error body
func (h *BaseHandler) sendError(w http.ResponseWriter, statusCode int, code, message string) {
	h.sendJSON(w, statusCode, models.ErrorResponse{
		Error: models.ErrorDetail{Code: code, Message: message},
	})
}

// sendCollection sends {"value": [...]}
func (h *BaseHandler) sendCollection(w http.ResponseWriter, values any) {
	h.sendJSON(w, http.StatusOK, models.Collection{Value: values})
}

// sendStoreError maps a service error to its status and Graph code
func (h *BaseHandler) sendStoreError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed: err=%v", err)
	}
	h.sendError(w, status, code, err.Error())
}

func classify(err error) (int, string) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, upload.ErrNameConflict), errors.Is(err, store.ErrConflict):
		return http.StatusConflict, CodeNameAlreadyExists
	case errors.Is(err, store.ErrNotFound), errors.Is(err, upload.ErrSessionNotFound):
		return http.StatusNotFound, CodeItemNotFound
	case errors.Is(err, upload.ErrRangeNotSatisfiable):
		return http.StatusRequestedRangeNotSatisfiable, CodeRangeNotSatisfiable
	case errors.Is(err, upload.ErrChunkTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, CodeRequestEntityTooLarge
	case errors.Is(err, filter.ErrSyntax),
		errors.Is(err, graph.ErrInvalidRequest),
		errors.Is(err, upload.ErrInvalidRequest),
		errors.Is(err, upload.ErrInvalidRange),
		errors.Is(err, upload.ErrLengthMismatch),
		errors.Is(err, batch.ErrInvalidBatch):
		return http.StatusBadRequest, CodeInvalidRequest
	}
	return http.StatusInternalServerError, CodeGeneralException
}

// decodeJSON reads a JSON body. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("%w: malformed JSON body: %v", graph.ErrInvalidRequest, err)
}
