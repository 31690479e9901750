package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Project-Sylos/Mirage/internal/api/models"
	"github.com/Project-Sylos/Mirage/internal/graph"
	"github.com/Project-Sylos/Mirage/internal/upload"
	"github.com/Project-Sylos/Mirage/sdk"
	"github.com/go-chi/chi/v5"
)

// SessionsPath is where upload session URLs point
const SessionsPath = "/upload/sessions/"

// UploadHandler serves resumable upload sessions
type UploadHandler struct {
	BaseHandler
	uploads      *upload.Service
	graph        *graph.Service
	publicURL    string
	maxChunkSize int64
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(m *sdk.Mirage) *UploadHandler {
	cfg := m.Config()
	return &UploadHandler{
		uploads:      m.Uploads(),
		graph:        m.Graph(),
		publicURL:    cfg.API.PublicURL,
		maxChunkSize: cfg.Upload.MaxChunkSize,
	}
}

// baseURL is api.public_url, or the scheme and host the client used
func (h *UploadHandler) baseURL(req *http.Request) string {
	if h.publicURL != "" {
		return h.publicURL
	}
	scheme := "http"
	if req.TLS != nil {
		scheme = "https"
	}
	if proto := req.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + req.Host
}

// sessionURL is the pre-authorized URL of session id
func (h *UploadHandler) sessionURL(req *http.Request, id string) string {
	return h.baseURL(req) + SessionsPath + id
}

func (h *UploadHandler) sendStatus(w http.ResponseWriter, status int, uploadURL string, s *upload.Status) {
	h.sendJSON(w, status, models.UploadSessionResponse{
		UploadURL:          uploadURL,
		ExpirationDateTime: s.ExpirationDateTime.UTC(),
		NextExpectedRanges: s.NextExpectedRanges,
	})
}

// CreateSession handles POST .../items/{parentId}:/{fileName}:/createUploadSession
func (h *UploadHandler) CreateSession(w http.ResponseWriter, req *http.Request) {
	addr, err := parsePathAddress(req)
	if err != nil {
		h.sendStoreError(w, err)
		return
	}
	if addr.Action != "createUploadSession" {
		h.sendError(w, http.StatusBadRequest, CodeInvalidRequest, fmt.Sprintf("unsupported action %q", addr.Action))
		return
	}

	var body models.CreateUploadSessionRequest
	if err := decodeJSON(req, &body); err != nil {
		h.sendStoreError(w, err)
		return
	}
	behavior := body.Item.ConflictBehavior
	if behavior == "" {
		behavior = conflictBehavior(req)
	}

	driveID := chi.URLParam(req, "driveId")
	parentID := addr.ParentID
	if parentID == graph.RootAlias {
		parentID = driveID
	}

	status, err := h.uploads.Create(req.Context(), upload.CreateRequest{
		DriveID:          driveID,
		ParentID:         parentID,
		FileName:         addr.FileName,
		ConflictBehavior: behavior,
	})
	if err != nil {
		h.sendStoreError(w, err)
		return
	}
	h.sendStatus(w, http.StatusOK, h.sessionURL(req, status.SessionID), status)
}

// PutChunk handles PUT /upload/sessions/{sessionId}. A pending upload
// answers 202 with the next expected ranges; the final chunk answers 201
// with the item.
func (h *UploadHandler) PutChunk(w http.ResponseWriter, req *http.Request) {
	contentRange := strings.TrimSpace(req.Header.Get("Content-Range"))
	if contentRange == "" {
		h.sendError(w, http.StatusBadRequest, CodeInvalidRequest, "Content-Range header is required")
		return
	}

	// One byte over the limit is enough for the service to reject it
	data, err := io.ReadAll(io.LimitReader(req.Body, h.maxChunkSize+1))
	if err != nil {
		h.sendStoreError(w, fmt.Errorf("failed to read chunk: %w", err))
		return
	}

	id := chi.URLParam(req, "sessionId")
	result, err := h.uploads.ReceiveChunk(req.Context(), id, contentRange, data)
	if err != nil {
		h.sendStoreError(w, err)
		return
	}
	if result.Completed() {
		h.sendItem(w, req, h.graph, http.StatusCreated, result.Item, nil)
		return
	}
	h.sendStatus(w, http.StatusAccepted, h.sessionURL(req, id), result.Status)
}

func (h *UploadHandler) GetStatus(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "sessionId")
	status, err := h.uploads.Status(req.Context(), id)
	if err != nil {
		h.sendStoreError(w, err)
		return
	}
	h.sendStatus(w, http.StatusOK, h.sessionURL(req, id), status)
}

func (h *UploadHandler) Cancel(w http.ResponseWriter, req *http.Request) {
	if err := h.uploads.Cancel(req.Context(), chi.URLParam(req, "sessionId")); err != nil {
		h.sendStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
