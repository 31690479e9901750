package handlers

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Project-Sylos/Mirage/internal/api/models"
	"github.com/Project-Sylos/Mirage/internal/graph"
	"github.com/Project-Sylos/Mirage/internal/logger"
	"github.com/Project-Sylos/Mirage/sdk"
	"github.com/go-chi/chi/v5"
)

// DriveHandler serves drives and drive items
type DriveHandler struct {
	BaseHandler
	graph         *graph.Service
	maxUploadSize int64
}

// NewDriveHandler creates a new drive handler
func NewDriveHandler(m *sdk.Mirage) *DriveHandler {
	return &DriveHandler{
		graph:         m.Graph(),
		maxUploadSize: m.Config().Upload.MaxChunkSize,
	}
}

// itemID returns the {itemId} route parameter, or "root" on root routes
func itemID(req *http.Request) string {
	if id := chi.URLParam(req, "itemId"); id != "" {
		return id
	}
	return graph.RootAlias
}

// pathAddress is a "{parentId}:/{fileName}:/{action}" item address
type pathAddress struct {
	ParentID string
	FileName string
	Action   string
}

// parsePathAddress reads the address from the catch-all route parameter
func parsePathAddress(req *http.Request) (pathAddress, error) {
	rest := chi.URLParam(req, "*")
	if req.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(rest); err == nil {
			rest = unescaped
		}
	}

	var addr pathAddress
	parentID, tail, ok := strings.Cut(rest, ":/")
	if ok {
		addr.ParentID = parentID
		addr.FileName, addr.Action, ok = strings.Cut(tail, ":/")
	}
	if !ok || addr.ParentID == "" || addr.FileName == "" || strings.Contains(addr.FileName, "/") {
		return addr, fmt.Errorf("%w: unsupported item address %q", graph.ErrInvalidRequest, rest)
	}
	return addr, nil
}

// conflictBehavior reads the behavior annotation from the query string
func conflictBehavior(req *http.Request) string {
	return req.URL.Query().Get(models.ConflictBehaviorKey)
}

func (h *DriveHandler) GetDrive(w http.ResponseWriter, req *http.Request) {
	drive, err := h.graph.GetDrive(req.Context(), chi.URLParam(req, "driveId"))
	h.sendItem(w, req, h.graph, http.StatusOK, drive, err)
}

// GetItem handles both /root and /items/{itemId}
func (h *DriveHandler) GetItem(w http.ResponseWriter, req *http.Request) {
	item, err := h.graph.GetItem(req.Context(), chi.URLParam(req, "driveId"), itemID(req))
	h.sendItem(w, req, h.graph, http.StatusOK, item, err)
}

func (h *DriveHandler) ListChildren(w http.ResponseWriter, req *http.Request) {
	children, err := h.graph.ListChildren(req.Context(), chi.URLParam(req, "driveId"), itemID(req))
	h.sendItems(w, req, h.graph, children, err)
}

// CreateFolder handles POST .../children with a folder facet
func (h *DriveHandler) CreateFolder(w http.ResponseWriter, req *http.Request) {
	var body models.CreateFolderRequest
	if err := decodeJSON(req, &body); err != nil {
		h.sendStoreError(w, err)
		return
	}
	if body.Folder == nil {
		h.sendError(w, http.StatusBadRequest, CodeInvalidRequest, "only folders can be created here; upload files with PUT .../content")
		return
	}

	behavior := body.ConflictBehavior
	if behavior == "" {
		behavior = conflictBehavior(req)
	}

	folder, err := h.graph.CreateFolder(req.Context(), chi.URLParam(req, "driveId"), itemID(req), body.Name, behavior)
	h.sendItem(w, req, h.graph, http.StatusCreated, folder, err)
}

func (h *DriveHandler) DeleteItem(w http.ResponseWriter, req *http.Request) {
	if err := h.graph.DeleteItem(req.Context(), chi.URLParam(req, "driveId"), itemID(req)); err != nil {
		h.sendStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Download streams file content
func (h *DriveHandler) Download(w http.ResponseWriter, req *http.Request) {
	r, item, err := h.graph.OpenContent(req.Context(), chi.URLParam(req, "driveId"), itemID(req))
	if err != nil {
		h.sendStoreError(w, err)
		return
	}
	defer r.Close()

	contentType := item.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(item.Size, 10))
	if item.Checksum != "" {
		w.Header().Set("ETag", strconv.Quote(item.Checksum))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, r); err != nil {
		logger.Warn("download interrupted: item=%s err=%v", item.ID, err)
	}
}

// UploadByPath handles PUT .../items/{parentId}:/{fileName}:/content
func (h *DriveHandler) UploadByPath(w http.ResponseWriter, req *http.Request) {
	addr, err := parsePathAddress(req)
	if err != nil {
		h.sendStoreError(w, err)
		return
	}
	if addr.Action != "content" {
		h.sendError(w, http.StatusBadRequest, CodeInvalidRequest, fmt.Sprintf("unsupported action %q", addr.Action))
		return
	}

	body := http.MaxBytesReader(w, req.Body, h.maxUploadSize)
	item, err := h.graph.UploadContent(req.Context(), chi.URLParam(req, "driveId"), addr.ParentID, addr.FileName, conflictBehavior(req), body)
	h.sendItem(w, req, h.graph, http.StatusCreated, item, err)
}
