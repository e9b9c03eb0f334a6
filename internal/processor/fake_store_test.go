package processor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/store"
)

// fakeStore is a minimal in-memory store.Store used to exercise
// Coordinator.SafeProcess without a real database, in table-driven
// testify style.
type fakeStore struct {
	mu      sync.Mutex
	markers map[string]*engine.StageCompletionMarker
	status  map[string]*engine.StageStatusRow
	locks   map[int64]bool
	errors  []*engine.ErrorLogEntry
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
	return nil, nil
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
func (f *fakeStore) UpsertImage(context.Context, *engine.Image) error { return nil }
func (f *fakeStore) UpsertLink(context.Context, *engine.Link) error             { return nil }
func (f *fakeStore) UpsertVideo(context.Context, *engine.Video) error           { return nil }
func (f *fakeStore) CountChunks(context.Context, uuid.UUID) (int, error)        { return 0, nil }
func (f *fakeStore) CountEmbeddings(context.Context, uuid.UUID) (int, error)    { return 0, nil }
func (f *fakeStore) CountLinks(context.Context, uuid.UUID) (int, error)         { return 0, nil }
func (f *fakeStore) CountVideos(context.Context, uuid.UUID) (int, error)        { return 0, nil }

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
func (f *fakeStore) LogError(_ context.Context, entry *engine.ErrorLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, entry)
	return nil
}

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
