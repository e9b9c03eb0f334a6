// Package embedding is the Embedding stage (C11): adaptive-batch
// embedding of chunks and tables into 768-d vectors persisted to
// unified_embeddings, per spec.md §4.11.
package embedding

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/config"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/retry"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/store"
	pkgsync "github.com/Kunze-Ritter/Manual2Vector-sub004/pkg/sync"
)

// Embedder is the narrow port over internal/modelserver.Client's remote
// embed(text) → float32[768] call.
type Embedder interface {
	Embed(ctx context.Context, text string) ([engine.EmbeddingDim]float32, error)
}

// source is one embeddable unit — a chunk, table, or (future) image/link
// context — reduced to the (id, type, text) triple the embed call needs.
type source struct {
	id         uuid.UUID
	sourceType engine.SourceType
	text       string
}

// Stage implements engine.Processor for the Embedding stage.
type Stage struct {
	Embedder   Embedder
	Content    store.ContentStore
	Embeddings store.EmbeddingStore

	MinBatchSize     int
	MaxBatchSize     int
	InitialBatchSize int

	Policy        retry.Policy
	RequestTimeout time.Duration
	Concurrency    int

	Logger *slog.Logger
}

func NewStage(embedder Embedder, content store.ContentStore, embeddings store.EmbeddingStore, cfg *config.EngineConfig, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.EmbeddingConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Stage{
		Embedder:         embedder,
		Content:          content,
		Embeddings:       embeddings,
		MinBatchSize:     cfg.MinEmbeddingBatchSize,
		MaxBatchSize:     cfg.MaxEmbeddingBatchSize,
		InitialBatchSize: cfg.InitialEmbeddingBatchSize,
		Policy:           retry.PolicyFor(cfg, "embedding", nil),
		RequestTimeout:   30 * time.Second,
		Concurrency:      concurrency,
		Logger:           logger,
	}
}

func (s *Stage) Name() string             { return "embedding" }
func (s *Stage) Stage() engine.Stage      { return engine.StageEmbedding }
func (s *Stage) RequiredInputs() []string { return []string{"chunks"} }
func (s *Stage) Outputs() []string        { return []string{"embeddings_inserted", "embeddings_skipped"} }

func (s *Stage) Process(ctx context.Context, pc *engine.ProcessingContext) (*engine.ProcessingResult, error) {
	start := time.Now()

	sources, err := s.gatherSources(ctx, pc.DocumentID)
	if err != nil {
		return nil, engine.NewStageError(engine.ErrorKindTransient, err)
	}

	var pending []source
	skipped := 0
	for _, src := range sources {
		exists, err := s.Embeddings.EmbeddingExists(ctx, src.id, src.sourceType)
		if err != nil {
			return nil, engine.NewStageError(engine.ErrorKindTransient, err)
		}
		if exists {
			skipped++
			continue
		}
		pending = append(pending, src)
	}

	inserted, err := s.embedAll(ctx, pc.DocumentID, pending)
	if err != nil {
		return nil, err
	}

	return engine.Completed(s.Name(), map[string]any{
		"embeddings_inserted": inserted,
		"embeddings_skipped":  skipped,
	}, time.Since(start)), nil
}

func (s *Stage) gatherSources(ctx context.Context, documentID uuid.UUID) ([]source, error) {
	chunks, err := s.Content.GetChunks(ctx, documentID)
	if err != nil {
		return nil, err
	}
	tables, err := s.Content.GetTables(ctx, documentID)
	if err != nil {
		return nil, err
	}

	out := make([]source, 0, len(chunks)+len(tables))
	for _, c := range chunks {
		out = append(out, source{id: c.ID, sourceType: engine.SourceTypeText, text: c.Text})
	}
	for _, t := range tables {
		out = append(out, source{id: t.ID, sourceType: engine.SourceTypeTable, text: t.Markdown})
	}
	return out, nil
}

// embedAll walks pending sources in adaptively-sized batches: growing the
// batch on a clean streak, halving it (down to MinBatchSize) whenever a
// batch hits a resource-limit/timeout error from the model server, per
// spec.md §4.11.
func (s *Stage) embedAll(ctx context.Context, documentID uuid.UUID, sources []source) (int, error) {
	batchSize := s.InitialBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	batchSize = clamp(batchSize, s.MinBatchSize, s.MaxBatchSize)

	limiter := pkgsync.NewLimiter(max1(s.Concurrency))
	inserted := 0
	cleanStreak := 0

	for len(sources) > 0 {
		n := batchSize
		if n > len(sources) {
			n = len(sources)
		}
		batch := sources[:n]
		sources = sources[n:]

		limiter.Acquire()
		count, resourceLimited, err := s.embedBatch(ctx, documentID, batch)
		limiter.Release()
		if err != nil {
			return inserted, engine.NewStageError(engine.ErrorKindTransient, err)
		}
		inserted += count

		if resourceLimited {
			cleanStreak = 0
			batchSize = clamp(batchSize/2, s.MinBatchSize, s.MaxBatchSize)
			s.Logger.Warn("embedding batch hit resource limit, shrinking batch size",
				slog.Int("new_batch_size", batchSize))
			continue
		}
		cleanStreak++
		if cleanStreak >= 2 {
			batchSize = clamp(batchSize*2, s.MinBatchSize, s.MaxBatchSize)
		}
	}
	return inserted, nil
}

// embedBatch embeds and inserts every source in the batch, retrying each
// request independently under the C2 hybrid policy. It reports whether any
// request in the batch failed with a resource-limit/timeout signal, so the
// caller can shrink the next batch.
func (s *Stage) embedBatch(ctx context.Context, documentID uuid.UUID, batch []source) (inserted int, resourceLimited bool, err error) {
	for _, src := range batch {
		vec, limited, err := s.embedWithRetry(ctx, src.text)
		if limited {
			resourceLimited = true
		}
		if err != nil {
			return inserted, resourceLimited, err
		}
		e := &engine.UnifiedEmbedding{
			ID:         uuid.New(),
			DocumentID: documentID,
			SourceID:   src.id,
			SourceType: src.sourceType,
			Vector:     vec,
		}
		if err := s.Embeddings.InsertEmbedding(ctx, e); err != nil {
			return inserted, resourceLimited, err
		}
		inserted++
	}
	return inserted, resourceLimited, nil
}

func (s *Stage) embedWithRetry(ctx context.Context, text string) ([engine.EmbeddingDim]float32, bool, error) {
	var lastErr error
	limited := false
	for attempt := 0; attempt <= s.Policy.MaxRetries; attempt++ {
		reqCtx, cancel := context.WithTimeout(ctx, s.requestTimeout())
		vec, err := s.Embedder.Embed(reqCtx, text)
		cancel()
		if err == nil {
			return vec, limited, nil
		}
		lastErr = err
		if isResourceLimited(err) {
			limited = true
		}
		if attempt == s.Policy.MaxRetries {
			break
		}
		select {
		case <-time.After(s.Policy.BackoffDelay(attempt)):
		case <-ctx.Done():
			return [engine.EmbeddingDim]float32{}, limited, ctx.Err()
		}
	}
	return [engine.EmbeddingDim]float32{}, limited, lastErr
}

func (s *Stage) requestTimeout() time.Duration {
	if s.RequestTimeout <= 0 {
		return 30 * time.Second
	}
	return s.RequestTimeout
}

// isResourceLimited recognizes the model server's "resource limitations"/
// timeout signal, spec.md §4.11, from the plain-error strings
// internal/modelserver.Client returns (it has no structured error type).
func isResourceLimited(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "resource") ||
		strings.Contains(msg, "429") ||
		strings.Contains(msg, "transient")
}

func clamp(v, min, max int) int {
	if min > 0 && v < min {
		v = min
	}
	if max > 0 && v > max {
		v = max
	}
	return v
}

func max1(v int) int {
	if v <= 0 {
		return 1
	}
	return v
}
