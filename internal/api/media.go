package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/config"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/store"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/videoenrich"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/visual"
)

// ThumbnailStore is the narrow port ProcessThumbnail needs, mirroring
// objectstore.Bucket.PutContent's content-addressable upload so tests can
// fake it without standing up S3.
type ThumbnailStore interface {
	PutContent(ctx context.Context, content []byte, ext, contentType string) (storageURL, storagePath, fileHash string, deduped bool, err error)
}

const (
	defaultThumbnailWidth  = 300
	defaultThumbnailHeight = 400
	defaultThumbnailPage   = 0
	defaultThumbnailDPI    = 150
)

// mediaHandler covers the two external-collaborator endpoints of spec.md
// §6 that fall outside the stage pipeline proper: video enrichment and
// page-thumbnail generation.
type mediaHandler struct {
	store    store.Store
	bucket   ThumbnailStore
	renderer visual.PDFRegionRenderer
	video    *videoenrich.Client
	cfg      *config.EngineConfig
	logger   *slog.Logger
}

func newMediaHandler(st store.Store, bucket ThumbnailStore, renderer visual.PDFRegionRenderer, video *videoenrich.Client, cfg *config.EngineConfig, logger *slog.Logger) *mediaHandler {
	return &mediaHandler{store: st, bucket: bucket, renderer: renderer, video: video, cfg: cfg, logger: logger}
}

type processVideoRequest struct {
	VideoURL string `json:"video_url"`
}

// ProcessVideo handles POST /api/v1/documents/:id/process/video. Only
// Brightcove is actually enriched (videoenrich.Client.Enrich); other
// detected platforms are recorded with Metadata.CredentialsMissing set so
// a later enrichment pass can pick them up, per spec.md §4.10's
// needs_enrichment escape hatch.
func (h *mediaHandler) ProcessVideo(c *gin.Context) {
	id, ok := parseDocumentID(c)
	if !ok {
		return
	}

	if h.video == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "video enrichment service not configured"})
		return
	}

	var req processVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	platform, videoID, ok := videoenrich.DetectPlatform(req.VideoURL)
	if !ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "url is not a recognized video link"})
		return
	}

	doc, err := h.store.GetDocument(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if doc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}

	video := &engine.Video{
		Link: engine.Link{
			ID:         uuid.New(),
			DocumentID: id,
			URL:        req.VideoURL,
		},
		Platform: platform,
	}

	result, err := h.video.Enrich(c.Request.Context(), platform, videoID)
	switch {
	case errors.Is(err, videoenrich.ErrUnsupportedPlatform):
		video.Metadata = engine.VideoMetadata{NeedsEnrichment: true, CredentialsMissing: true}
	case err != nil:
		msg := err.Error()
		video.EnrichmentError = &msg
	default:
		now := time.Now()
		video.Title = &result.Title
		video.Description = &result.Description
		video.ThumbnailURL = &result.ThumbnailURL
		video.Duration = &result.Duration
		video.EnrichedAt = &now
	}

	if err := h.store.UpsertVideo(c.Request.Context(), video); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "video": video})
}

type processThumbnailRequest struct {
	Size []int `json:"size"`
	Page *int  `json:"page"`
}

// ProcessThumbnail handles POST /api/v1/documents/:id/process/thumbnail:
// it renders the requested page of the document's stored PDF to PNG via
// visual.PDFRegionRenderer (bbox nil renders the full page) and uploads it
// content-hash-keyed to the thumbnails bucket, per spec.md §6.
func (h *mediaHandler) ProcessThumbnail(c *gin.Context) {
	id, ok := parseDocumentID(c)
	if !ok {
		return
	}

	var req processThumbnailRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	width, height := defaultThumbnailWidth, defaultThumbnailHeight
	if len(req.Size) == 2 {
		width, height = req.Size[0], req.Size[1]
	}
	page := defaultThumbnailPage
	if req.Page != nil {
		page = *req.Page
	}

	doc, err := h.store.GetDocument(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if doc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}
	if doc.FilePath == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "document has no stored file path"})
		return
	}

	png, err := h.renderer.RenderRegion(c.Request.Context(), *doc.FilePath, page, nil, defaultThumbnailDPI)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": fmt.Sprintf("render thumbnail: %v", err)})
		return
	}

	thumbnailURL, _, _, _, err := h.bucket.PutContent(c.Request.Context(), png, ".png", "image/png")
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": fmt.Sprintf("store thumbnail: %v", err)})
		return
	}

	if err := h.store.SetThumbnail(c.Request.Context(), id, thumbnailURL); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"thumbnail_url": thumbnailURL,
		"size":          []int{width, height},
		"file_size":     len(png),
	})
}
