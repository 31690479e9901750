package handlers

import (
	"net/http"

	"github.com/Project-Sylos/Mirage/internal/api/models"
	"github.com/Project-Sylos/Mirage/internal/graph"
	"github.com/Project-Sylos/Mirage/internal/types"
	"github.com/Project-Sylos/Mirage/sdk"
	"github.com/go-chi/chi/v5"
)

// SiteHandler serves sites, their document libraries and lists
type SiteHandler struct {
	BaseHandler
	graph *graph.Service
}

// NewSiteHandler creates a new site handler
func NewSiteHandler(m *sdk.Mirage) *SiteHandler {
	return &SiteHandler{graph: m.Graph()}
}

// sendItems renders items and applies $filter and $top
func (h *BaseHandler) sendItems(w http.ResponseWriter, req *http.Request, svc *graph.Service, items []*types.Item, err error) {
	if err != nil {
		h.sendStoreError(w, err)
		return
	}
	query, err := graph.ParseQuery(req.URL.Query())
	if err != nil {
		h.sendStoreError(w, err)
		return
	}
	resources, err := svc.RepresentAll(req.Context(), items)
	if err != nil {
		h.sendStoreError(w, err)
		return
	}
	h.sendCollection(w, query.Apply(resources))
}

// sendItem renders one item with the given status
func (h *BaseHandler) sendItem(w http.ResponseWriter, req *http.Request, svc *graph.Service, status int, item *types.Item, err error) {
	if err != nil {
		h.sendStoreError(w, err)
		return
	}
	resource, err := svc.Represent(req.Context(), item)
	if err != nil {
		h.sendStoreError(w, err)
		return
	}
	h.sendJSON(w, status, resource)
}

func (h *SiteHandler) ListSites(w http.ResponseWriter, req *http.Request) {
	sites, err := h.graph.ListSites(req.Context())
	h.sendItems(w, req, h.graph, sites, err)
}

func (h *SiteHandler) GetSite(w http.ResponseWriter, req *http.Request) {
	site, err := h.graph.GetSite(req.Context(), chi.URLParam(req, "siteId"))
	h.sendItem(w, req, h.graph, http.StatusOK, site, err)
}

func (h *SiteHandler) ListDrives(w http.ResponseWriter, req *http.Request) {
	drives, err := h.graph.SiteDrives(req.Context(), chi.URLParam(req, "siteId"))
	h.sendItems(w, req, h.graph, drives, err)
}

func (h *SiteHandler) ListLists(w http.ResponseWriter, req *http.Request) {
	lists, err := h.graph.SiteLists(req.Context(), chi.URLParam(req, "siteId"))
	h.sendItems(w, req, h.graph, lists, err)
}

func (h *SiteHandler) GetList(w http.ResponseWriter, req *http.Request) {
	list, err := h.graph.GetList(req.Context(), chi.URLParam(req, "siteId"), chi.URLParam(req, "listId"))
	h.sendItem(w, req, h.graph, http.StatusOK, list, err)
}

func (h *SiteHandler) ListItems(w http.ResponseWriter, req *http.Request) {
	items, err := h.graph.ListItems(req.Context(), chi.URLParam(req, "siteId"), chi.URLParam(req, "listId"))
	h.sendItems(w, req, h.graph, items, err)
}

func (h *SiteHandler) GetListItem(w http.ResponseWriter, req *http.Request) {
	item, err := h.graph.GetListItem(req.Context(), chi.URLParam(req, "siteId"), chi.URLParam(req, "listId"), chi.URLParam(req, "itemId"))
	h.sendItem(w, req, h.graph, http.StatusOK, item, err)
}

// CreateListItem handles POST .../items with {"fields": {...}}
func (h *SiteHandler) CreateListItem(w http.ResponseWriter, req *http.Request) {
	var body models.ListItemRequest
	if err := decodeJSON(req, &body); err != nil {
		h.sendStoreError(w, err)
		return
	}
	item, err := h.graph.CreateListItem(req.Context(), chi.URLParam(req, "siteId"), chi.URLParam(req, "listId"), body.Fields)
	h.sendItem(w, req, h.graph, http.StatusCreated, item, err)
}

// UpdateListItem handles PATCH .../items/{itemId} with {"fields": {...}}
func (h *SiteHandler) UpdateListItem(w http.ResponseWriter, req *http.Request) {
	var body models.ListItemRequest
	if err := decodeJSON(req, &body); err != nil {
		h.sendStoreError(w, err)
		return
	}
	item, err := h.graph.UpdateListItemFields(req.Context(), chi.URLParam(req, "siteId"), chi.URLParam(req, "listId"), chi.URLParam(req, "itemId"), body.Fields)
	h.sendItem(w, req, h.graph, http.StatusOK, item, err)
}

// UpdateListItemFields handles PATCH .../items/{itemId}/fields, whose body
// is the field set itself. It responds with the merged fields.
func (h *SiteHandler) UpdateListItemFields(w http.ResponseWriter, req *http.Request) {
	var fields map[string]any
	if err := decodeJSON(req, &fields); err != nil {
		h.sendStoreError(w, err)
		return
	}
	item, err := h.graph.UpdateListItemFields(req.Context(), chi.URLParam(req, "siteId"), chi.URLParam(req, "listId"), chi.URLParam(req, "itemId"), fields)
	if err != nil {
		h.sendStoreError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, item.Fields)
}

func (h *SiteHandler) DeleteListItem(w http.ResponseWriter, req *http.Request) {
	err := h.graph.DeleteListItem(req.Context(), chi.URLParam(req, "siteId"), chi.URLParam(req, "listId"), chi.URLParam(req, "itemId"))
	if err != nil {
		h.sendStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
