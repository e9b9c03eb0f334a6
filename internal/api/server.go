// Package api is the HTTP surface of C15: a gin router exposing spec.md §6's
// per-document stage-processing and enrichment endpoints under
// /api/v1/documents/{id}, backed by the same internal/pipeline.Pipeline and
// internal/store.Store the CLI drives.
package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/config"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/pipeline"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/store"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/videoenrich"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/visual"
)

// Server wraps the collaborators every handler needs.
type Server struct {
	cfg         *config.EngineConfig
	store       store.Store
	pipeline    *pipeline.Pipeline
	thumbBucket ThumbnailStore
	renderer    visual.PDFRegionRenderer
	videoClient *videoenrich.Client
	logger      *slog.Logger
}

// NewServer wires a Server from the collaborators cmd/krai's buildDeps
// already assembles, plus the thumbnail bucket/renderer and an optional
// video-enrichment client (may be nil; cmd/krai's buildDeps always passes
// nil).
func NewServer(cfg *config.EngineConfig, db store.Store, pl *pipeline.Pipeline, thumbBucket ThumbnailStore, renderer visual.PDFRegionRenderer, videoClient *videoenrich.Client, logger *slog.Logger) *Server {
	return &Server{
		cfg:         cfg,
		store:       db,
		pipeline:    pl,
		thumbBucket: thumbBucket,
		renderer:    renderer,
		videoClient: videoClient,
		logger:      logger,
	}
}

// SetupRoutes registers the document-processing routes of spec.md §6.
func (s *Server) SetupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(slogLogger(s.logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "krai"})
	})

	docsHandler := newDocumentsHandler(s.store, s.pipeline, s.logger)
	media := newMediaHandler(s.store, s.thumbBucket, s.renderer, s.videoClient, s.cfg, s.logger)

	v1 := router.Group("/api/v1")
	{
		documents := v1.Group("/documents/:id")
		{
			documents.GET("/stages", docsHandler.ListStages)
			documents.GET("/stages/status", docsHandler.StageStatus)
			documents.POST("/process/stage/:stage_name", docsHandler.ProcessStage)
			documents.POST("/process/stages", docsHandler.ProcessStages)
			documents.POST("/process/video", media.ProcessVideo)
			documents.POST("/process/thumbnail", media.ProcessThumbnail)
		}
	}
	return router
}

// slogLogger is middleware.Logger's slog equivalent: one structured line per
// request, grounded on the same request/duration/status fields.
func slogLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
		)
	}
}
