package visual

import (
	"context"
	"time"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/contextextract"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/store"
)

// VisualEmbeddingStage is stage 6, sitting between image_processing and
// link_extraction: it folds each image/SVG the Storage queue is holding
// back into its page's surrounding text, the same contextextract.Extract
// call LinkStage makes for annotation-sourced links that carry no text
// offset of their own (link_stage.go), since a raster image likewise has
// no byte offset into the page text stream — only a page number and a
// pixel bounding box. Items with a caption already attached (idempotent
// re-run) are left untouched.
type VisualEmbeddingStage struct {
	Queue store.QueueStore
}

func NewVisualEmbeddingStage(queue store.QueueStore) *VisualEmbeddingStage {
	return &VisualEmbeddingStage{Queue: queue}
}

func (s *VisualEmbeddingStage) Name() string             { return "visual_embedding_stage" }
func (s *VisualEmbeddingStage) Stage() engine.Stage      { return engine.StageVisualEmbedding }
func (s *VisualEmbeddingStage) RequiredInputs() []string { return []string{"page_texts"} }
func (s *VisualEmbeddingStage) Outputs() []string        { return []string{"contextualized_count"} }

func (s *VisualEmbeddingStage) Process(ctx context.Context, pc *engine.ProcessingContext) (*engine.ProcessingResult, error) {
	start := time.Now()

	items, err := s.Queue.PendingItems(ctx, pc.DocumentID, engine.StageStorage.Name())
	if err != nil {
		return nil, engine.NewStageError(engine.ErrorKindTransient, err)
	}

	contextualized := 0
	for _, item := range items {
		if item.ArtifactType != engine.ArtifactImage && item.ArtifactType != engine.ArtifactSVG {
			continue
		}
		img := item.Payload.Image
		if img == nil || img.Context.ContextCaption != "" {
			continue
		}
		text := pc.PageTexts[img.PageNumber]
		img.Context = contextextract.Extract(text, 0)
		if err := s.Queue.UpdatePayload(ctx, item.ID, item.Payload); err != nil {
			return nil, engine.NewStageError(engine.ErrorKindPermanent, err)
		}
		contextualized++
	}

	return engine.Completed(s.Name(), map[string]any{"contextualized_count": contextualized}, time.Since(start)), nil
}
