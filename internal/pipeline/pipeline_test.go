package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/processor"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/retry"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/store"
)

func retryPolicy() retry.Policy {
	return retry.Policy{MaxRetries: 0, BaseDelay: 0, JitterFrac: 0}
}

// fakeStore is a minimal in-memory store.Store, covering only what
// Coordinator.SafeProcess and Pipeline touch, in table-driven testify
// style.
type fakeStore struct {
	mu      sync.Mutex
	markers map[string]*engine.StageCompletionMarker
	status  map[string]*engine.StageStatusRow
	locks   map[int64]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		markers: make(map[string]*engine.StageCompletionMarker),
		status:  make(map[string]*engine.StageStatusRow),
		locks:   make(map[int64]bool),
	}
}

func key(documentID uuid.UUID, stage string) string { return documentID.String() + "/" + stage }

func (f *fakeStore) GetCompletionMarker(_ context.Context, documentID uuid.UUID, stage string) (*engine.StageCompletionMarker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.markers[key(documentID, stage)], nil
}
func (f *fakeStore) PutCompletionMarker(_ context.Context, m *engine.StageCompletionMarker) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markers[key(m.DocumentID, m.StageName)] = m
	return nil
}
func (f *fakeStore) DeleteCompletionMarker(_ context.Context, documentID uuid.UUID, stage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.markers, key(documentID, stage))
	return nil
}
func (f *fakeStore) GetStageStatus(_ context.Context, documentID uuid.UUID, stage string) (*engine.StageStatusRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status[key(documentID, stage)], nil
}
func (f *fakeStore) GetAllStageStatus(_ context.Context, documentID uuid.UUID) (map[string]*engine.StageStatusRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]*engine.StageStatusRow)
	prefix := documentID.String() + "/"
	for k, v := range f.status {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			out[v.StageName] = v
		}
	}
	return out, nil
}
func (f *fakeStore) PutStageStatus(_ context.Context, row *engine.StageStatusRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status[key(row.DocumentID, row.StageName)] = row
	return nil
}
func (f *fakeStore) DueStageStatus(_ context.Context, _ time.Time) (*engine.StageStatusRow, error) {
	return nil, nil
}
func (f *fakeStore) StuckStageStatus(_ context.Context, _ time.Time) ([]*engine.StageStatusRow, error) {
	return nil, nil
}

func (f *fakeStore) Enqueue(context.Context, *engine.ProcessingQueueItem) error { return nil }
func (f *fakeStore) PendingItems(context.Context, uuid.UUID, string) ([]*engine.ProcessingQueueItem, error) {
	return nil, nil
}
func (f *fakeStore) CompleteItem(context.Context, uuid.UUID) error { return nil }
func (f *fakeStore) UpdatePayload(context.Context, uuid.UUID, engine.QueuePayload) error { return nil }

func (f *fakeStore) InsertChunks(context.Context, []*engine.Chunk) error { return nil }
func (f *fakeStore) GetChunks(context.Context, uuid.UUID) ([]*engine.Chunk, error) {
	return nil, nil
}
func (f *fakeStore) ChunkExistsByFingerprint(context.Context, uuid.UUID, string) (uuid.UUID, bool, error) {
	return uuid.Nil, false, nil
}
func (f *fakeStore) InsertTable(context.Context, *engine.StructuredTable) error { return nil }
func (f *fakeStore) GetTables(context.Context, uuid.UUID) ([]*engine.StructuredTable, error) {
	return nil, nil
}
func (f *fakeStore) UpsertImage(context.Context, *engine.Image) error       { return nil }
func (f *fakeStore) UpsertLink(context.Context, *engine.Link) error        { return nil }
func (f *fakeStore) UpsertVideo(context.Context, *engine.Video) error      { return nil }
func (f *fakeStore) CountChunks(context.Context, uuid.UUID) (int, error)   { return 0, nil }
func (f *fakeStore) CountEmbeddings(context.Context, uuid.UUID) (int, error) {
	return 0, nil
}
func (f *fakeStore) CountLinks(context.Context, uuid.UUID) (int, error)  { return 0, nil }
func (f *fakeStore) CountVideos(context.Context, uuid.UUID) (int, error) { return 0, nil }

func (f *fakeStore) UpsertManufacturer(context.Context, string) (*engine.Manufacturer, error) {
	return nil, nil
}
func (f *fakeStore) CreateProductSeries(context.Context, *engine.ProductSeries) error { return nil }
func (f *fakeStore) FindProductSeries(context.Context, uuid.UUID, string, string) (*engine.ProductSeries, error) {
	return nil, nil
}
func (f *fakeStore) LinkProductToSeries(context.Context, uuid.UUID, uuid.UUID) error { return nil }
func (f *fakeStore) UpsertPart(_ context.Context, p *engine.Part) (*engine.Part, error) {
	return p, nil
}
func (f *fakeStore) InsertErrorCode(context.Context, *engine.ErrorCode) error { return nil }
func (f *fakeStore) GetErrorCodes(context.Context, uuid.UUID) ([]*engine.ErrorCode, error) {
	return nil, nil
}
func (f *fakeStore) LinkErrorCodeToPart(context.Context, *engine.ErrorCodePartLink) error { return nil }

func (f *fakeStore) EmbeddingExists(context.Context, uuid.UUID, engine.SourceType) (bool, error) {
	return false, nil
}
func (f *fakeStore) InsertEmbedding(context.Context, *engine.UnifiedEmbedding) error { return nil }
func (f *fakeStore) MatchMultimodal(context.Context, [engine.EmbeddingDim]float32, []engine.SourceType, float64, int) ([]store.MatchResult, error) {
	return nil, nil
}

func (f *fakeStore) LogSearchAnalytics(context.Context, uuid.UUID, time.Time, map[string]int, float64) error {
	return nil
}
func (f *fakeStore) LogError(_ context.Context, entry *engine.ErrorLogEntry) error { return nil }

func (f *fakeStore) AdvisoryLock(_ context.Context, k int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locks[k] {
		return false, nil
	}
	f.locks[k] = true
	return true, nil
}
func (f *fakeStore) AdvisoryUnlock(_ context.Context, k int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.locks, k)
	return nil
}

func (f *fakeStore) CreateDocument(context.Context, *engine.Document) error { return nil }
func (f *fakeStore) FindByFileHash(context.Context, string) (*engine.Document, error) {
	return nil, nil
}
func (f *fakeStore) GetDocument(context.Context, uuid.UUID) (*engine.Document, error) {
	return nil, nil
}
func (f *fakeStore) UpdateDocument(context.Context, *engine.Document) error { return nil }
func (f *fakeStore) SetSearchReady(context.Context, uuid.UUID, bool) error  { return nil }
func (f *fakeStore) SetThumbnail(context.Context, uuid.UUID, string) error  { return nil }
func (f *fakeStore) Close()                                                {}

var _ store.Store = (*fakeStore)(nil)

// fakeProcessor is a trivial engine.Processor stub whose behavior is
// controlled by the test.
type fakeProcessor struct {
	stage   engine.Stage
	fail    bool
	failErr error
}

func (p *fakeProcessor) Name() string             { return p.stage.Name() }
func (p *fakeProcessor) Stage() engine.Stage      { return p.stage }
func (p *fakeProcessor) RequiredInputs() []string { return nil }
func (p *fakeProcessor) Outputs() []string        { return nil }
func (p *fakeProcessor) Process(ctx context.Context, pc *engine.ProcessingContext) (*engine.ProcessingResult, error) {
	if p.fail {
		err := p.failErr
		if err == nil {
			err = engine.NewStageError(engine.ErrorKindPermanent, assertError("boom"))
		}
		return nil, err
	}
	return engine.Completed(p.Name(), map[string]any{"ok": true}, time.Millisecond), nil
}

type assertError string

func (e assertError) Error() string { return string(e) }

func TestRunSingleStageReturnsSuccess(t *testing.T) {
	s := newFakeStore()
	coord := processor.NewCoordinator(s, nil, nil, retryPolicy(), nil, nil)
	upload := &fakeProcessor{stage: engine.StageUpload}
	pl := New(coord, s, []engine.Processor{upload})

	result, err := pl.RunSingleStage(context.Background(), uuid.New(), "upload")

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "upload", result.Stage)
}

func TestRunSingleStageUnknownStage(t *testing.T) {
	s := newFakeStore()
	coord := processor.NewCoordinator(s, nil, nil, retryPolicy(), nil, nil)
	pl := New(coord, s, nil)

	_, err := pl.RunSingleStage(context.Background(), uuid.New(), "nonexistent")

	require.Error(t, err)
}

func TestRunStagesRunsInOrderAndReportsSummary(t *testing.T) {
	s := newFakeStore()
	coord := processor.NewCoordinator(s, nil, nil, retryPolicy(), nil, nil)
	upload := &fakeProcessor{stage: engine.StageUpload}
	text := &fakeProcessor{stage: engine.StageTextExtraction}
	pl := New(coord, s, []engine.Processor{upload, text})

	result, err := pl.RunStages(context.Background(), uuid.New(), []string{"upload", "text_extraction"}, false)

	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalStages)
	assert.Equal(t, 2, result.Successful)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 1.0, result.SuccessRate)
}

func TestRunStagesStopsOnErrorWhenRequested(t *testing.T) {
	s := newFakeStore()
	coord := processor.NewCoordinator(s, nil, nil, retryPolicy(), nil, nil)
	upload := &fakeProcessor{stage: engine.StageUpload, fail: true, failErr: engine.NewStageError(engine.ErrorKindPermanent, assertError("boom"))}
	text := &fakeProcessor{stage: engine.StageTextExtraction}
	pl := New(coord, s, []engine.Processor{upload, text})

	result, err := pl.RunStages(context.Background(), uuid.New(), []string{"upload", "text_extraction"}, true)

	require.NoError(t, err)
	assert.Equal(t, 1, len(result.StageResults))
	assert.False(t, result.StageResults[0].Success)
}

func TestRunStagesFailsUnsatisfiedDependency(t *testing.T) {
	s := newFakeStore()
	coord := processor.NewCoordinator(s, nil, nil, retryPolicy(), nil, nil)
	// embedding depends on chunk_preprocessing, which was never run.
	embed := &fakeProcessor{stage: engine.StageEmbedding}
	pl := New(coord, s, []engine.Processor{embed})

	result, err := pl.RunStages(context.Background(), uuid.New(), []string{"embedding"}, false)

	require.NoError(t, err)
	require.Len(t, result.StageResults, 1)
	assert.False(t, result.StageResults[0].Success)
	assert.NotEmpty(t, result.StageResults[0].Error)
}

func TestGetStageStatusNotFound(t *testing.T) {
	s := newFakeStore()
	coord := processor.NewCoordinator(s, nil, nil, retryPolicy(), nil, nil)
	pl := New(coord, s, nil)

	status, err := pl.GetStageStatus(context.Background(), uuid.New())

	require.NoError(t, err)
	assert.False(t, status.Found)
}

func TestSmartResumeStagesSkipsCompleted(t *testing.T) {
	s := newFakeStore()
	docID := uuid.New()
	s.status[key(docID, "upload")] = &engine.StageStatusRow{DocumentID: docID, StageName: "upload", Status: engine.StatusCompleted}
	coord := processor.NewCoordinator(s, nil, nil, retryPolicy(), nil, nil)
	pl := New(coord, s, nil)

	pending, err := pl.SmartResumeStages(context.Background(), docID)

	require.NoError(t, err)
	assert.NotContains(t, pending, "upload")
	assert.Contains(t, pending, "text_extraction")
}
