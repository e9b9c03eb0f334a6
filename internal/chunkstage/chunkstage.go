// Package chunkstage adapts internal/chunker's Chunker into an
// engine.Processor for stage 8, chunk_preprocessing, per spec.md §4.6. The
// packing algorithm lives in internal/chunker; this package owns the stage
// boundary — reading pc.PageTexts/pc.Config, persisting the result, and
// leaving pc.Chunks populated for later stages of the same run (parts
// extraction reads it; the embedding stage reloads chunks from the store).
package chunkstage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/store"
)

// Chunker is the narrow port over *chunker.Chunker this stage depends on.
type Chunker interface {
	Chunk(documentID uuid.UUID, pageTexts map[int]string, cfg engine.ProcessingConfig) []*engine.Chunk
}

type Stage struct {
	Chunker Chunker
	Content store.ContentStore
}

func NewStage(c Chunker, content store.ContentStore) *Stage {
	return &Stage{Chunker: c, Content: content}
}

func (s *Stage) Name() string             { return "chunk_preprocessing_stage" }
func (s *Stage) Stage() engine.Stage      { return engine.StageChunkPreprocessing }
func (s *Stage) RequiredInputs() []string { return []string{"page_texts"} }
func (s *Stage) Outputs() []string        { return []string{"chunk_count"} }

func (s *Stage) Process(ctx context.Context, pc *engine.ProcessingContext) (*engine.ProcessingResult, error) {
	start := time.Now()

	if len(pc.PageTexts) == 0 {
		return nil, engine.NewStageError(engine.ErrorKindPermanent, fmt.Errorf("chunk_preprocessing: page_texts required"))
	}

	chunks := s.Chunker.Chunk(pc.DocumentID, pc.PageTexts, pc.Config)

	fresh := chunks[:0:0]
	for _, c := range chunks {
		if _, exists, err := s.Content.ChunkExistsByFingerprint(ctx, pc.DocumentID, c.Fingerprint); err != nil {
			return nil, engine.NewStageError(engine.ErrorKindTransient, fmt.Errorf("chunk_preprocessing: dedup check: %w", err))
		} else if exists {
			continue
		}
		fresh = append(fresh, c)
	}

	if len(fresh) > 0 {
		if err := s.Content.InsertChunks(ctx, fresh); err != nil {
			return nil, engine.NewStageError(engine.ErrorKindTransient, fmt.Errorf("chunk_preprocessing: insert: %w", err))
		}
	}

	pc.Chunks = chunks

	return engine.Completed(s.Name(), map[string]any{
		"chunk_count":    len(chunks),
		"inserted_count": len(fresh),
	}, time.Since(start)), nil
}
