// Package storagestage is the Storage stage (C10): it drains the queue
// producer stages (SVG/image/link extraction) fill, uploads artifact bytes
// to the object store with content-hash dedup, and upserts the
// corresponding images/links/videos rows, exactly as spec.md §4.10.
package storagestage

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/objectstore"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/store"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/videoenrich"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/pkg/ptr"
)

// Enricher is the narrow port over internal/videoenrich.Client the stage
// uses for its optional inline enrichment pass.
type Enricher interface {
	Enrich(ctx context.Context, platform, videoID string) (*videoenrich.Result, error)
}

// Uploader is the narrow port over internal/objectstore.Bucket the stage
// uses to persist image bytes, content-addressed and deduped by hash.
type Uploader interface {
	PutContent(ctx context.Context, content []byte, ext, contentType string) (storageURL, storagePath, fileHash string, deduped bool, err error)
}

// Stage implements engine.Processor for the Storage stage.
type Stage struct {
	Queue   store.QueueStore
	Content store.ContentStore
	Images  Uploader

	Enricher            Enricher
	EnrichmentEnabled   bool
	EnrichmentBatchSize int

	Logger *slog.Logger
}

func NewStage(queue store.QueueStore, content store.ContentStore, images Uploader, enricher Enricher, enrichmentEnabled bool, enrichmentBatchSize int, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stage{
		Queue: queue, Content: content, Images: images,
		Enricher: enricher, EnrichmentEnabled: enrichmentEnabled, EnrichmentBatchSize: enrichmentBatchSize,
		Logger: logger,
	}
}

var _ Uploader = (*objectstore.Bucket)(nil)

func (s *Stage) Name() string             { return "storage" }
func (s *Stage) Stage() engine.Stage      { return engine.StageStorage }
func (s *Stage) RequiredInputs() []string { return nil }
func (s *Stage) Outputs() []string {
	return []string{"images_stored", "links_stored", "videos_stored", "videos_enriched"}
}

// Process drains every pending queue row for this document. A row that
// fails to store is left pending for the next run rather than failing the
// whole stage — spec.md §4.10's resumability requirement.
func (s *Stage) Process(ctx context.Context, pc *engine.ProcessingContext) (*engine.ProcessingResult, error) {
	start := time.Now()

	items, err := s.Queue.PendingItems(ctx, pc.DocumentID, engine.StageStorage.Name())
	if err != nil {
		return nil, engine.NewStageError(engine.ErrorKindTransient, err)
	}

	imagesStored, linksStored, videosStored := 0, 0, 0
	var toEnrich []*engine.Video

	for _, item := range items {
		var storeErr error
		switch item.ArtifactType {
		case engine.ArtifactImage, engine.ArtifactSVG:
			storeErr = s.storeImage(ctx, item)
			if storeErr == nil {
				imagesStored++
			}
		case engine.ArtifactLink:
			storeErr = s.storeLink(ctx, item)
			if storeErr == nil {
				linksStored++
			}
		case engine.ArtifactVideo:
			var v *engine.Video
			v, storeErr = s.storeVideo(ctx, item)
			if storeErr == nil {
				videosStored++
				if v.Metadata.NeedsEnrichment {
					toEnrich = append(toEnrich, v)
				}
			}
		default:
			storeErr = fmt.Errorf("unknown artifact_type %q", item.ArtifactType)
		}

		if storeErr != nil {
			s.Logger.Warn("storage stage item failed, leaving pending",
				slog.String("item_id", item.ID.String()), slog.String("artifact_type", string(item.ArtifactType)),
				slog.String("err", storeErr.Error()))
			continue
		}
		if err := s.Queue.CompleteItem(ctx, item.ID); err != nil {
			s.Logger.Warn("complete queue item failed", slog.String("item_id", item.ID.String()), slog.String("err", err.Error()))
		}
	}

	enriched := s.enrichBatch(ctx, toEnrich)

	return engine.Completed(s.Name(), map[string]any{
		"images_stored":   imagesStored,
		"links_stored":    linksStored,
		"videos_stored":   videosStored,
		"videos_enriched": enriched,
	}, time.Since(start)), nil
}

func (s *Stage) storeImage(ctx context.Context, item *engine.ProcessingQueueItem) error {
	p := item.Payload.Image
	if p == nil {
		return fmt.Errorf("image queue item %s missing payload", item.ID)
	}

	content, err := resolveBytes(p.Content, p.TempPath)
	if err != nil {
		return err
	}

	img := &engine.Image{
		ID:               uuid.New(),
		DocumentID:       item.DocumentID,
		Filename:         fmt.Sprintf("%s-p%d.%s", item.DocumentID, p.PageNumber, extForArtifact(item.ArtifactType)),
		PageNumber:       p.PageNumber,
		BBox:             p.BBox,
		ImageType:        engine.ImageType(p.ImageType),
		ContextCaption:   nonEmptyPtr(p.Context.ContextCaption),
		RelatedErrorCodes: p.Context.RelatedErrorCodes,
		RelatedProducts:  p.Context.RelatedProducts,
		SVGStorageURL:    nonEmptyPtr(p.SVGStorageURL),
		HasPNGDerivative: p.HasPNGDerivative,
	}

	switch {
	case len(content) > 0:
		contentType := http.DetectContentType(content)
		url, _, hash, _, err := s.Images.PutContent(ctx, content, extForContentType(contentType), contentType)
		if err != nil {
			return fmt.Errorf("upload image: %w", err)
		}
		img.StorageURL = url
		img.FileHash = hash
	case p.SVGStorageURL != "":
		// No raster derivative (PNG conversion failed or wasn't attempted):
		// the SVG itself, already uploaded by the SVG stage, is the
		// artifact of record.
		img.StorageURL = p.SVGStorageURL
		img.FileHash = fingerprintURL(p.SVGStorageURL)
	default:
		return fmt.Errorf("image queue item %s has neither content nor svg_storage_url", item.ID)
	}

	return s.Content.UpsertImage(ctx, img)
}

func (s *Stage) storeLink(ctx context.Context, item *engine.ProcessingQueueItem) error {
	p := item.Payload.Link
	if p == nil {
		return fmt.Errorf("link queue item %s missing payload", item.ID)
	}
	l := &engine.Link{
		ID:                 uuid.New(),
		DocumentID:         item.DocumentID,
		URL:                p.URL,
		PageNumber:         p.PageNumber,
		ContextDescription: nonEmptyPtr(p.Context.ContextCaption),
		RelatedErrorCodes:  p.Context.RelatedErrorCodes,
		RelatedProducts:    p.Context.RelatedProducts,
	}
	return s.Content.UpsertLink(ctx, l)
}

func (s *Stage) storeVideo(ctx context.Context, item *engine.ProcessingQueueItem) (*engine.Video, error) {
	p := item.Payload.Video
	if p == nil {
		return nil, fmt.Errorf("video queue item %s missing payload", item.ID)
	}
	platform, _, _ := videoenrich.DetectPlatform(p.URL)
	if platform == "" {
		platform = p.Platform
	}
	v := &engine.Video{
		Link: engine.Link{
			ID:                 uuid.New(),
			DocumentID:         item.DocumentID,
			URL:                p.URL,
			PageNumber:         p.PageNumber,
			ContextDescription: nonEmptyPtr(p.Context.ContextCaption),
			RelatedErrorCodes:  p.Context.RelatedErrorCodes,
			RelatedProducts:    p.Context.RelatedProducts,
		},
		Platform: platform,
		Metadata: engine.VideoMetadata{
			NeedsEnrichment:    platform == videoenrich.PlatformBrightcove,
			CredentialsMissing: platform != "" && platform != videoenrich.PlatformBrightcove,
		},
	}
	if err := s.Content.UpsertVideo(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// enrichBatch runs the optional Brightcove enrichment pass over up to
// EnrichmentBatchSize freshly-stored videos, spec.md §4.10/§6's
// ENABLE_BRIGHTCOVE_ENRICHMENT/BRIGHTCOVE_ENRICHMENT_BATCH_SIZE toggles.
// Failures are logged and recorded on the row, never fail the stage — video
// enrichment is best-effort metadata, not a correctness requirement.
func (s *Stage) enrichBatch(ctx context.Context, candidates []*engine.Video) int {
	if !s.EnrichmentEnabled || s.Enricher == nil || len(candidates) == 0 {
		return 0
	}
	limit := s.EnrichmentBatchSize
	if limit <= 0 || limit > len(candidates) {
		limit = len(candidates)
	}

	enriched := 0
	for _, v := range candidates[:limit] {
		_, videoID, _ := videoenrich.DetectPlatform(v.URL)
		result, err := s.Enricher.Enrich(ctx, v.Platform, videoID)
		if err != nil {
			v.EnrichmentError = nonEmptyPtr(err.Error())
			s.Logger.Warn("video enrichment failed", slog.String("url", v.URL), slog.String("err", err.Error()))
		} else {
			v.Title = nonEmptyPtr(result.Title)
			v.Description = nonEmptyPtr(result.Description)
			v.ThumbnailURL = nonEmptyPtr(result.ThumbnailURL)
			if result.Duration > 0 {
				v.Duration = ptr.Pointer(result.Duration)
			}
			now := time.Now()
			v.EnrichedAt = &now
			enriched++
		}
		if err := s.Content.UpsertVideo(ctx, v); err != nil {
			s.Logger.Warn("persist enriched video failed", slog.String("url", v.URL), slog.String("err", err.Error()))
		}
	}
	return enriched
}

func resolveBytes(content []byte, tempPath string) ([]byte, error) {
	if len(content) > 0 {
		return content, nil
	}
	if tempPath == "" {
		return nil, nil
	}
	b, err := os.ReadFile(tempPath)
	if err != nil {
		return nil, fmt.Errorf("read temp artifact %s: %w", tempPath, err)
	}
	return b, nil
}

func extForArtifact(at engine.ArtifactType) string {
	if at == engine.ArtifactSVG {
		return "png"
	}
	return "bin"
}

func extForContentType(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/svg+xml", "text/xml; charset=utf-8":
		return ".svg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}

// fingerprintURL derives a stable pseudo-hash for an artifact whose bytes
// were never re-uploaded here (the SVG stage already content-addressed
// them), so images still gets a non-empty file_hash to dedup on.
func fingerprintURL(url string) string {
	return "svg:" + url
}

func nonEmptyPtr(s string) *string {
	if s == "" {
		return nil
	}
	return ptr.Pointer(s)
}
