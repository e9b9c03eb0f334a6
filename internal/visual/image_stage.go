package visual

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/idempotency"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/store"
)

// ImageStage extracts raster images with per-image bbox, deduplicates
// identical bytes within a page, infers image_type, and queues each for
// the Storage stage — spec.md §4.7's image stage.
type ImageStage struct {
	Backend Backend
	Queue   store.QueueStore
}

func NewImageStage(backend Backend, queue store.QueueStore) *ImageStage {
	return &ImageStage{Backend: backend, Queue: queue}
}

func (s *ImageStage) Name() string             { return "image_stage" }
func (s *ImageStage) Stage() engine.Stage       { return engine.StageImageProcessing }
func (s *ImageStage) RequiredInputs() []string { return []string{"file_path"} }
func (s *ImageStage) Outputs() []string        { return []string{"image_count"} }

func (s *ImageStage) Process(ctx context.Context, pc *engine.ProcessingContext) (*engine.ProcessingResult, error) {
	start := time.Now()

	byPage, err := s.Backend.ExtractImages(ctx, pc.FilePath)
	if err != nil {
		return nil, engine.NewStageError(engine.ErrorKindTransient, fmt.Errorf("extract images: %w", err))
	}

	count := 0
	for page, images := range byPage {
		seen := make(map[string]struct{}, len(images))
		for _, img := range images {
			fingerprint := idempotency.FileFingerprint(img.Content)
			if _, dup := seen[fingerprint]; dup {
				continue
			}
			seen[fingerprint] = struct{}{}

			item := &engine.ProcessingQueueItem{
				ID:           uuid.New(),
				DocumentID:   pc.DocumentID,
				Stage:        engine.StageStorage.Name(),
				ArtifactType: engine.ArtifactImage,
				Status:       engine.StatusPending,
				Payload: engine.QueuePayload{
					Image: &engine.ImagePayload{
						Content:    img.Content,
						ImageType:  string(inferImageType(img.Format, img.BBox)),
						PageNumber: page,
						BBox:       img.BBox,
					},
				},
			}
			if err := s.Queue.Enqueue(ctx, item); err != nil {
				return nil, engine.NewStageError(engine.ErrorKindPermanent, fmt.Errorf("enqueue image: %w", err))
			}
			count++
		}
	}

	return engine.Completed(s.Name(), map[string]any{"image_count": count}, time.Since(start)), nil
}

// inferImageType makes a best-effort photo/diagram/screenshot call from
// format and geometry alone, since the engine has no vision model result
// to consult at extraction time: a wide strip (bbox width more than three
// times its height) is taken as a screenshot crop, any other JPEG as a
// photo, and anything else defaults to diagram. No later stage revises
// the result.
func inferImageType(format string, bbox *engine.BBox) engine.ImageType {
	format = strings.ToLower(format)
	if bbox != nil {
		width := bbox.X1 - bbox.X0
		height := bbox.Y1 - bbox.Y0
		if height > 0 && width/height > 3 {
			return engine.ImageTypeScreenshot
		}
	}
	if format == "jpeg" || format == "jpg" {
		return engine.ImageTypePhoto
	}
	return engine.ImageTypeDiagram
}
