// Package search is the Multimodal Search Service (C14): unified search,
// image-by-context search, and two-stage retrieval over the embeddings
// internal/embedding wrote, per spec.md §4.14. It reads through
// store.EmbeddingStore's match_multimodal SQL RPC rather than a standalone
// vector database, per the spec's explicit framing of the DB as the vector
// store.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/store"
	pkgsync "github.com/Kunze-Ritter/Manual2Vector-sub004/pkg/sync"
)

const (
	// DefaultThreshold is the cosine-similarity cutoff spec.md §4.14 names.
	DefaultThreshold = 0.5
	// DefaultLimit bounds a single-stage search when the caller passes none.
	DefaultLimit = 10
	// DefaultTopK bounds stage 1 of two-stage retrieval.
	DefaultTopK = 5

	answerTruncateLen = 200
)

// Embedder is the narrow port over internal/modelserver's embed(text) call.
type Embedder interface {
	Embed(ctx context.Context, text string) ([engine.EmbeddingDim]float32, error)
}

// Generator is the narrow port over internal/modelserver's generate
// (prompt, context) call, used by stage 1 of two-stage retrieval.
type Generator interface {
	Generate(ctx context.Context, prompt string, contextChunks []string) (string, error)
}

// Service implements the unified/image-by-context/two-stage retrieval
// operations of spec.md §4.14.
type Service struct {
	Embedder   Embedder
	Generator  Generator
	Embeddings store.EmbeddingStore
	Documents  store.DocumentStore

	Logger *slog.Logger
}

func New(embedder Embedder, generator Generator, embeddings store.EmbeddingStore, documents store.DocumentStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{Embedder: embedder, Generator: generator, Embeddings: embeddings, Documents: documents, Logger: logger}
}

// Hit is one enriched row of a match_multimodal result.
type Hit struct {
	SourceID     uuid.UUID
	SourceType   engine.SourceType
	DocumentID   uuid.UUID
	Content      string
	Similarity   float64
	Manufacturer *string
	DocumentType string
}

// Result is the {query, results, results_by_modality, total_count,
// processing_time_ms} shape spec.md §4.14 names for unified search.
type Result struct {
	Query             string
	Results           []Hit
	ResultsByModality map[engine.SourceType][]Hit
	TotalCount        int
	ProcessingTimeMS  int64
}

// Search is the unified search operation: embed the query, call
// match_multimodal, filter by modalities, enrich with document metadata,
// and group by modality.
func (s *Service) Search(ctx context.Context, query string, modalities []engine.SourceType, threshold float64, limit int) (*Result, error) {
	start := time.Now()
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	vec, err := s.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search: embed query: %w", err)
	}
	matches, err := s.Embeddings.MatchMultimodal(ctx, vec, modalities, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("search: match_multimodal: %w", err)
	}

	docs, err := s.hydrateDocuments(ctx, matches)
	if err != nil {
		return nil, fmt.Errorf("search: hydrate document metadata: %w", err)
	}

	hits := make([]Hit, 0, len(matches))
	byModality := make(map[engine.SourceType][]Hit)
	for _, m := range matches {
		hit := Hit{
			SourceID:   m.SourceID,
			SourceType: m.SourceType,
			DocumentID: m.DocumentID,
			Content:    m.Content,
			Similarity: m.Similarity,
		}
		if doc := docs[m.DocumentID]; doc != nil {
			hit.Manufacturer = doc.Manufacturer
			hit.DocumentType = doc.DocumentType
		}
		hits = append(hits, hit)
		byModality[m.SourceType] = append(byModality[m.SourceType], hit)
	}

	return &Result{
		Query:             query,
		Results:           hits,
		ResultsByModality: byModality,
		TotalCount:        len(hits),
		ProcessingTimeMS:  time.Since(start).Milliseconds(),
	}, nil
}

// hydrateDocuments fetches every distinct document referenced by matches
// concurrently, one pkg/sync.FutureTask per document, a query-then-hydrate
// fan-out to enrich raw hits with document metadata.
func (s *Service) hydrateDocuments(ctx context.Context, matches []store.MatchResult) (map[uuid.UUID]*engine.Document, error) {
	futures := make(map[uuid.UUID]*pkgsync.FutureTask[*engine.Document])
	for _, m := range matches {
		if _, ok := futures[m.DocumentID]; ok {
			continue
		}
		docID := m.DocumentID
		future, err := pkgsync.NewFutureTaskAndRun(func(_ <-chan struct{}) (*engine.Document, error) {
			return s.Documents.GetDocument(ctx, docID)
		})
		if err != nil {
			return nil, err
		}
		futures[docID] = future
	}

	docs := make(map[uuid.UUID]*engine.Document, len(futures))
	for docID, future := range futures {
		doc, err := future.GetWithContext(ctx)
		if err != nil {
			s.Logger.Warn("search: enrich hit with document metadata failed", slog.String("document_id", docID.String()), slog.String("err", err.Error()))
			continue
		}
		docs[docID] = doc
	}
	return docs, nil
}

// SearchImagesByContext is the specialized RPC of spec.md §4.14 against
// image context embeddings: source_type image (the image's own caption
// embedding) or context (the surrounding-text embedding stored alongside
// it).
func (s *Service) SearchImagesByContext(ctx context.Context, query string, threshold float64, limit int) (*Result, error) {
	return s.Search(ctx, query, []engine.SourceType{engine.SourceTypeImage, engine.SourceTypeContext}, threshold, limit)
}

// Timing is the {stage1_ms, stage2_ms, total_ms} shape spec.md §4.14 names.
type Timing struct {
	Stage1MS int64
	Stage2MS int64
	TotalMS  int64
}

// TwoStageResult is the {answer, images, text_sources, expanded_query,
// timing} shape spec.md §4.14 names for two-stage retrieval.
type TwoStageResult struct {
	Answer        string
	Images        []Hit
	TextSources   []Hit
	ExpandedQuery string
	Timing        Timing
}

// TwoStageSearch runs text-only search, asks the LLM for a short answer
// over the top-k chunks, then re-runs image-by-context search against the
// query expanded with that answer — the documented retrieval path for
// "show me the diagram for …" questions, per spec.md §4.14.
func (s *Service) TwoStageSearch(ctx context.Context, query string, topK int) (*TwoStageResult, error) {
	totalStart := time.Now()
	if topK <= 0 {
		topK = DefaultTopK
	}

	stage1Start := time.Now()
	textResult, err := s.Search(ctx, query, []engine.SourceType{engine.SourceTypeText, engine.SourceTypeTable}, DefaultThreshold, topK)
	if err != nil {
		return nil, fmt.Errorf("two_stage: stage1 text search: %w", err)
	}
	contextChunks := make([]string, 0, len(textResult.Results))
	for _, h := range textResult.Results {
		contextChunks = append(contextChunks, h.Content)
	}
	answer, err := s.Generator.Generate(ctx, query, contextChunks)
	if err != nil {
		return nil, fmt.Errorf("two_stage: generate: %w", err)
	}
	stage1MS := time.Since(stage1Start).Milliseconds()

	expandedQuery := query + " " + truncate(answer, answerTruncateLen)

	stage2Start := time.Now()
	imageResult, err := s.SearchImagesByContext(ctx, expandedQuery, DefaultThreshold, DefaultLimit)
	if err != nil {
		return nil, fmt.Errorf("two_stage: stage2 image search: %w", err)
	}
	stage2MS := time.Since(stage2Start).Milliseconds()

	return &TwoStageResult{
		Answer:        answer,
		Images:        imageResult.Results,
		TextSources:   textResult.Results,
		ExpandedQuery: expandedQuery,
		Timing: Timing{
			Stage1MS: stage1MS,
			Stage2MS: stage2MS,
			TotalMS:  time.Since(totalStart).Milliseconds(),
		},
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
