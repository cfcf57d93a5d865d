// Package httpapi exposes the pipeline's service operations (spec §6) over
// HTTP. Handlers only decode requests, call into the ingestion/indexing/
// extraction/metadata packages, and encode responses — no business logic
// lives here.
package httpapi

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"docpipeline/internal/blobstore"
	"docpipeline/internal/extraction"
	"docpipeline/internal/indexing"
	"docpipeline/internal/metadata"
	"docpipeline/internal/outbox"
	"docpipeline/internal/store"
)

// Server exposes the document ingestion, indexing, and metadata-extraction
// pipeline's REST surface.
type Server struct {
	store      *store.Store
	uploads    *blobstore.LocalStore
	indexing   *indexing.Coordinator
	extraction *extraction.Coordinator
	metadata   *metadata.Manager
	notifier   *outbox.Notifier
	echo       *echo.Echo
}

// NewServer creates the HTTP API server wired to the pipeline's components.
// notifier may be nil — every Notifier method is a no-op on a nil receiver.
func NewServer(st *store.Store, uploads *blobstore.LocalStore, idx *indexing.Coordinator, ext *extraction.Coordinator, meta *metadata.Manager, notifier *outbox.Notifier) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	s := &Server{store: st, uploads: uploads, indexing: idx, extraction: ext, metadata: meta, notifier: notifier, echo: e}
	s.registerRoutes()
	return s
}

// Echo returns the underlying *echo.Echo for use with e.Start/e.StartServer.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) registerRoutes() {
	api := s.echo.Group("/api/v1")

	// Documents (C1, §4.5, §4.6)
	api.POST("/documents", s.handleUploadDocument)
	api.GET("/documents/:documentID", s.handleGetDocumentStatus)
	api.POST("/documents/:documentID/reprocess", s.handleReprocessDocument)

	// Collections (§4.4, §4.7)
	api.POST("/collections", s.handleCreateCollection)
	api.POST("/collections/:collectionID/documents", s.handleAddDocumentsToCollection)
	api.POST("/collections/:collectionID/indexing-jobs", s.handleStartIndexingJob)
	api.GET("/indexing-jobs/:jobID", s.handleGetIndexingJob)

	// Metadata configurations and groups (C10, §4.10)
	metaGroup := api.Group("/metadata")
	metaGroup.POST("/configurations", s.handleCreateMetadataConfiguration)
	metaGroup.PATCH("/configurations/:configID", s.handleUpdateMetadataConfiguration)
	metaGroup.DELETE("/configurations/:configID", s.handleDeleteMetadataConfiguration)
	metaGroup.POST("/groups", s.handleCreateMetadataGroup)
	metaGroup.PATCH("/groups/:groupID", s.handleUpdateMetadataGroup)
	metaGroup.DELETE("/groups/:groupID", s.handleDeleteMetadataGroup)
	metaGroup.POST("/groups/:groupID/configurations/:configID/reorder", s.handleReorderConfigurationInGroup)
	metaGroup.POST("/groups/:groupID/clone", s.handleCloneMetadataGroup)

	// Extraction jobs (C8/C9, §4.8, §4.9)
	api.POST("/collections/:collectionID/extraction-jobs", s.handleStartExtractionJob)
	api.GET("/extraction-jobs/:jobID", s.handleGetExtractionJob)
	api.POST("/extraction-jobs/:jobID/stop", s.handleStopExtractionJob)
	api.GET("/collections/:collectionID/extracted-metadata", s.handleListExtractedMetadata)
}
