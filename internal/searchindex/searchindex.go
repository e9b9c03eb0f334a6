// Package searchindex is the Search Indexing stage (C12): a pure
// finalization step that counts a document's chunks/embeddings/links/
// videos, flips search_ready, and logs an analytics row, per spec.md
// §4.12.
package searchindex

import (
	"context"
	"log/slog"
	"time"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/store"
)

// Stage implements engine.Processor for the Search Indexing stage.
type Stage struct {
	Documents  store.DocumentStore
	Content    store.ContentStore
	Analytics  store.AnalyticsStore
	Logger     *slog.Logger
}

func NewStage(documents store.DocumentStore, content store.ContentStore, analytics store.AnalyticsStore, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stage{Documents: documents, Content: content, Analytics: analytics, Logger: logger}
}

func (s *Stage) Name() string             { return "search_indexing" }
func (s *Stage) Stage() engine.Stage      { return engine.StageSearchIndexing }
func (s *Stage) RequiredInputs() []string { return nil }
func (s *Stage) Outputs() []string {
	return []string{"chunk_count", "embedding_count", "link_count", "video_count", "search_ready"}
}

func (s *Stage) Process(ctx context.Context, pc *engine.ProcessingContext) (*engine.ProcessingResult, error) {
	start := time.Now()

	chunkCount, err := s.Content.CountChunks(ctx, pc.DocumentID)
	if err != nil {
		return nil, engine.NewStageError(engine.ErrorKindTransient, err)
	}
	embeddingCount, err := s.Content.CountEmbeddings(ctx, pc.DocumentID)
	if err != nil {
		return nil, engine.NewStageError(engine.ErrorKindTransient, err)
	}
	linkCount, err := s.Content.CountLinks(ctx, pc.DocumentID)
	if err != nil {
		return nil, engine.NewStageError(engine.ErrorKindTransient, err)
	}
	videoCount, err := s.Content.CountVideos(ctx, pc.DocumentID)
	if err != nil {
		return nil, engine.NewStageError(engine.ErrorKindTransient, err)
	}

	searchReady := embeddingCount > 0
	if err := s.Documents.SetSearchReady(ctx, pc.DocumentID, searchReady); err != nil {
		return nil, engine.NewStageError(engine.ErrorKindTransient, err)
	}

	elapsed := time.Since(start)
	counts := map[string]int{
		"chunks":     chunkCount,
		"embeddings": embeddingCount,
		"links":      linkCount,
		"videos":     videoCount,
	}
	if err := s.Analytics.LogSearchAnalytics(ctx, pc.DocumentID, time.Now(), counts, elapsed.Seconds()); err != nil {
		s.Logger.Warn("log search analytics failed", slog.String("document_id", pc.DocumentID.String()), slog.String("err", err.Error()))
	}

	return engine.Completed(s.Name(), map[string]any{
		"chunk_count":     chunkCount,
		"embedding_count": embeddingCount,
		"link_count":      linkCount,
		"video_count":     videoCount,
		"search_ready":    searchReady,
	}, elapsed), nil
}
