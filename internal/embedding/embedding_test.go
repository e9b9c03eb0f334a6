package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/config"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/retry"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/store"
)

type fakeContentStore struct {
	chunks []*engine.Chunk
	tables []*engine.StructuredTable
}

func (f *fakeContentStore) InsertChunks(ctx context.Context, chunks []*engine.Chunk) error { return nil }
func (f *fakeContentStore) GetChunks(ctx context.Context, documentID uuid.UUID) ([]*engine.Chunk, error) {
	return f.chunks, nil
}
func (f *fakeContentStore) ChunkExistsByFingerprint(ctx context.Context, documentID uuid.UUID, fingerprint string) (uuid.UUID, bool, error) {
	return uuid.UUID{}, false, nil
}
func (f *fakeContentStore) InsertTable(ctx context.Context, t *engine.StructuredTable) error { return nil }
func (f *fakeContentStore) GetTables(ctx context.Context, documentID uuid.UUID) ([]*engine.StructuredTable, error) {
	return f.tables, nil
}
func (f *fakeContentStore) UpsertImage(ctx context.Context, img *engine.Image) error { return nil }
func (f *fakeContentStore) UpsertLink(ctx context.Context, l *engine.Link) error     { return nil }
func (f *fakeContentStore) UpsertVideo(ctx context.Context, v *engine.Video) error   { return nil }
func (f *fakeContentStore) CountChunks(ctx context.Context, documentID uuid.UUID) (int, error) {
	return 0, nil
}
func (f *fakeContentStore) CountEmbeddings(ctx context.Context, documentID uuid.UUID) (int, error) {
	return 0, nil
}
func (f *fakeContentStore) CountLinks(ctx context.Context, documentID uuid.UUID) (int, error) {
	return 0, nil
}
func (f *fakeContentStore) CountVideos(ctx context.Context, documentID uuid.UUID) (int, error) {
	return 0, nil
}

var _ store.ContentStore = (*fakeContentStore)(nil)

type fakeEmbeddingStore struct {
	existing  map[uuid.UUID]bool
	inserted  []*engine.UnifiedEmbedding
}

func (f *fakeEmbeddingStore) EmbeddingExists(ctx context.Context, sourceID uuid.UUID, sourceType engine.SourceType) (bool, error) {
	return f.existing[sourceID], nil
}
func (f *fakeEmbeddingStore) InsertEmbedding(ctx context.Context, e *engine.UnifiedEmbedding) error {
	f.inserted = append(f.inserted, e)
	return nil
}
func (f *fakeEmbeddingStore) MatchMultimodal(ctx context.Context, query [engine.EmbeddingDim]float32, modalities []engine.SourceType, threshold float64, limit int) ([]store.MatchResult, error) {
	return nil, nil
}

var _ store.EmbeddingStore = (*fakeEmbeddingStore)(nil)

type fakeEmbedder struct {
	failCount int
	calls     int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([engine.EmbeddingDim]float32, error) {
	f.calls++
	if f.calls <= f.failCount {
		return [engine.EmbeddingDim]float32{}, errors.New("model server returned 429 (transient)")
	}
	var v [engine.EmbeddingDim]float32
	v[0] = 1
	return v, nil
}

func testConfig() *config.EngineConfig {
	return &config.EngineConfig{
		MinEmbeddingBatchSize:     1,
		MaxEmbeddingBatchSize:     10,
		InitialEmbeddingBatchSize: 2,
		EmbeddingConcurrency:      2,
		DefaultRetry: config.RetryPolicy{
			MaxRetries: 2,
			BaseDelayS: 0,
			JitterFrac: 0,
		},
	}
}

func newStage(embedder Embedder, content store.ContentStore, embeddings store.EmbeddingStore) *Stage {
	s := NewStage(embedder, content, embeddings, testConfig(), nil)
	s.RequestTimeout = time.Second
	s.Policy = retry.Policy{MaxRetries: 2, BaseDelay: 0, JitterFrac: 0}
	return s
}

func TestProcessEmbedsChunksAndTables(t *testing.T) {
	docID := uuid.New()
	chunkID, tableID := uuid.New(), uuid.New()
	content := &fakeContentStore{
		chunks: []*engine.Chunk{{ID: chunkID, DocumentID: docID, Text: "hello world"}},
		tables: []*engine.StructuredTable{{ID: tableID, DocumentID: docID, Markdown: "| a | b |"}},
	}
	embeddings := &fakeEmbeddingStore{existing: map[uuid.UUID]bool{}}
	stage := newStage(&fakeEmbedder{}, content, embeddings)
	pc := engine.NewProcessingContext(docID)

	result, err := stage.Process(context.Background(), pc)

	require.NoError(t, err)
	assert.Equal(t, 2, result.Data["embeddings_inserted"])
	assert.Equal(t, 0, result.Data["embeddings_skipped"])
	assert.Len(t, embeddings.inserted, 2)
}

func TestProcessSkipsExistingEmbedding(t *testing.T) {
	docID := uuid.New()
	chunkID := uuid.New()
	content := &fakeContentStore{chunks: []*engine.Chunk{{ID: chunkID, DocumentID: docID, Text: "hello"}}}
	embeddings := &fakeEmbeddingStore{existing: map[uuid.UUID]bool{chunkID: true}}
	stage := newStage(&fakeEmbedder{}, content, embeddings)
	pc := engine.NewProcessingContext(docID)

	result, err := stage.Process(context.Background(), pc)

	require.NoError(t, err)
	assert.Equal(t, 0, result.Data["embeddings_inserted"])
	assert.Equal(t, 1, result.Data["embeddings_skipped"])
	assert.Empty(t, embeddings.inserted)
}

func TestProcessRetriesTransientEmbedFailure(t *testing.T) {
	docID := uuid.New()
	chunkID := uuid.New()
	content := &fakeContentStore{chunks: []*engine.Chunk{{ID: chunkID, DocumentID: docID, Text: "hello"}}}
	embeddings := &fakeEmbeddingStore{existing: map[uuid.UUID]bool{}}
	embedder := &fakeEmbedder{failCount: 1}
	stage := newStage(embedder, content, embeddings)
	pc := engine.NewProcessingContext(docID)

	result, err := stage.Process(context.Background(), pc)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Data["embeddings_inserted"])
	assert.Equal(t, 2, embedder.calls)
}

func TestEmbedAllShrinksBatchSizeOnResourceLimit(t *testing.T) {
	docID := uuid.New()
	var chunks []*engine.Chunk
	for i := 0; i < 4; i++ {
		chunks = append(chunks, &engine.Chunk{ID: uuid.New(), DocumentID: docID, Text: "x"})
	}
	content := &fakeContentStore{chunks: chunks}
	embeddings := &fakeEmbeddingStore{existing: map[uuid.UUID]bool{}}
	// Fails the very first call, forcing at least one shrink before success.
	embedder := &fakeEmbedder{failCount: 1}
	stage := newStage(embedder, content, embeddings)
	stage.InitialBatchSize = 4
	pc := engine.NewProcessingContext(docID)

	result, err := stage.Process(context.Background(), pc)

	require.NoError(t, err)
	assert.Equal(t, 4, result.Data["embeddings_inserted"])
}
