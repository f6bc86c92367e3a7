// Package httpapi exposes the service over HTTP: authenticated management
// endpoints under /api, plus the download and bundle retrieval endpoints
// that browsers hit directly.
package httpapi

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/dpavlovs/filegate/internal/logging"
	"github.com/dpavlovs/filegate/internal/server/config"
	"github.com/dpavlovs/filegate/internal/server/identity"
	"github.com/dpavlovs/filegate/internal/server/services"
)

// CapabilityManageShared lets a non-admin identity manage files and folders
// in the shared space.
const CapabilityManageShared = "manage_shared"

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	provider  identity.Provider
	files     *services.FileService
	downloads *services.DownloadService
	bundles   *services.BundleService
	audit     *services.AuditService
	logger    logging.Logger
}

func NewServer(cfg *config.Config, files *services.FileService, downloads *services.DownloadService, bundles *services.BundleService, auditSvc *services.AuditService, logger logging.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		provider:  identity.ContextProvider{},
		files:     files,
		downloads: downloads,
		bundles:   bundles,
		audit:     auditSvc,
		logger:    logger.With("module", "httpapi"),
	}

	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Use(s.authenticate)

	// direct endpoints, reachable from a browser with a session token
	s.app.Get("/download", s.handleDownload)
	s.app.Get("/bundles/:filename", s.handleBundleOpen)

	api := s.app.Group("/api")

	api.Post("/tokens/action", s.handleActionToken)

	api.Post("/files", s.handleUpload)
	api.Get("/files", s.handleList)
	api.Get("/files/search", s.handleSearch)
	api.Post("/files/delete", s.handleBulkDelete)
	api.Post("/files/move", s.handleBulkMove)
	api.Post("/files/:key/encrypt", s.handleEncrypt)
	api.Post("/files/:key/decrypt", s.handleDecrypt)
	api.Put("/files/:key/exclusions", s.requireShared(s.handleSetExclusions))

	api.Get("/folders", s.handleListFolders)
	api.Post("/folders", s.handleCreateFolder)
	api.Delete("/folders/:name", s.handleDeleteFolder)

	api.Post("/bundles", s.handleBundleRequest)
	api.Get("/bundles", s.handleBundleList)

	api.Get("/audit", s.requireAdmin(s.handleAuditQuery))
	api.Get("/status", s.requireAdmin(s.handleStatus))
}

// Listen blocks serving requests until Shutdown is called.
func (s *Server) Listen() error {
	s.logger.Info(context.Background(), "http server starting", "addr", s.cfg.EndpointAddr)
	return s.app.Listen(s.cfg.EndpointAddr)
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
