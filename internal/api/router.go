package api

import (
	"net/http"

	"github.com/Project-Sylos/Mirage/internal/api/handlers"
	apimiddleware "github.com/Project-Sylos/Mirage/internal/api/middleware"
	"github.com/Project-Sylos/Mirage/internal/batch"
	"github.com/Project-Sylos/Mirage/sdk"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Router represents the HTTP API router
type Router struct {
	m *sdk.Mirage
}

// NewRouter creates a new API router
func NewRouter(m *sdk.Mirage) *Router {
	return &Router{m: m}
}

// SetupRoutes configures all API routes using modular handlers
func (r *Router) SetupRoutes() *chi.Mux {
	cfg := r.m.Config()
	router := chi.NewRouter()

	// Standard middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(cfg.API.RequestTimeout))

	// Custom middleware
	router.Use(apimiddleware.RequestIDHeader)
	router.Use(apimiddleware.CORS)

	// Sub-requests of a batch run through this same router
	dispatch := func(req *http.Request) batch.Dispatcher {
		return NewDispatcher(router, req)
	}

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(r.m)
	siteHandler := handlers.NewSiteHandler(r.m)
	driveHandler := handlers.NewDriveHandler(r.m)
	uploadHandler := handlers.NewUploadHandler(r.m)
	batchHandler := handlers.NewBatchHandler(r.m, dispatch)
	systemHandler := handlers.NewSystemHandler(r.m)

	// Health check
	router.Get("/health", healthHandler.HealthCheck)

	// Graph routes
	router.Route("/v1.0", func(api chi.Router) {
		if cfg.Auth.RequireBearer {
			api.Use(apimiddleware.RequireBearer)
		}

		api.Post("/$batch", batchHandler.Execute)

		api.Route("/sites", func(sites chi.Router) {
			sites.Get("/", siteHandler.ListSites)
			sites.Route("/{siteId}", func(site chi.Router) {
				site.Get("/", siteHandler.GetSite)
				site.Get("/drives", siteHandler.ListDrives)
				site.Get("/lists", siteHandler.ListLists)
				site.Route("/lists/{listId}", func(list chi.Router) {
					list.Get("/", siteHandler.GetList)
					list.Get("/items", siteHandler.ListItems)
					list.Post("/items", siteHandler.CreateListItem)
					list.Get("/items/{itemId}", siteHandler.GetListItem)
					list.Patch("/items/{itemId}", siteHandler.UpdateListItem)
					list.Patch("/items/{itemId}/fields", siteHandler.UpdateListItemFields)
					list.Delete("/items/{itemId}", siteHandler.DeleteListItem)
				})
			})
		})

		api.Route("/drives/{driveId}", func(drive chi.Router) {
			drive.Get("/", driveHandler.GetDrive)
			drive.Get("/root", driveHandler.GetItem)
			drive.Get("/root/children", driveHandler.ListChildren)
			drive.Post("/root/children", driveHandler.CreateFolder)

			drive.Get("/items/{itemId}", driveHandler.GetItem)
			drive.Delete("/items/{itemId}", driveHandler.DeleteItem)
			drive.Get("/items/{itemId}/children", driveHandler.ListChildren)
			drive.Post("/items/{itemId}/children", driveHandler.CreateFolder)
			drive.Get("/items/{itemId}/content", driveHandler.Download)

			// {parentId}:/{fileName}:/content and :/createUploadSession
			drive.Put("/items/*", driveHandler.UploadByPath)
			drive.Post("/items/*", uploadHandler.CreateSession)
		})
	})

	// Upload session URLs are pre-authorized, as in the real service
	router.Route(handlers.SessionsPath+"{sessionId}", func(session chi.Router) {
		session.Put("/", uploadHandler.PutChunk)
		session.Get("/", uploadHandler.GetStatus)
		session.Delete("/", uploadHandler.Cancel)
	})

	// Emulator control
	router.Route("/emulator", func(emu chi.Router) {
		emu.Get("/config", systemHandler.GetConfig)
		emu.Get("/stats", systemHandler.GetStats)
		emu.Post("/reset", systemHandler.Reset)
	})

	return router
}
