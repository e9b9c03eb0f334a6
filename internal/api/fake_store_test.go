package api

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/store"
)

// fakeStore is a minimal in-memory store.Store covering only what the
// handlers in this package touch, in table-driven testify style (mirrors
// internal/pipeline's fakeStore).
type fakeStore struct {
	mu        sync.Mutex
	documents map[uuid.UUID]*engine.Document
	videos    []*engine.Video
	status    map[string]*engine.StageStatusRow
	thumbs    map[uuid.UUID]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		documents: make(map[uuid.UUID]*engine.Document),
		status:    make(map[string]*engine.StageStatusRow),
		thumbs:    make(map[uuid.UUID]string),
	}
}

func (f *fakeStore) putDocument(d *engine.Document) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.documents[d.ID] = d
}

func (f *fakeStore) CreateDocument(context.Context, *engine.Document) error { return nil }
func (f *fakeStore) FindByFileHash(context.Context, string) (*engine.Document, error) {
	return nil, nil
}
func (f *fakeStore) GetDocument(_ context.Context, id uuid.UUID) (*engine.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.documents[id], nil
}
func (f *fakeStore) UpdateDocument(context.Context, *engine.Document) error { return nil }
func (f *fakeStore) SetSearchReady(context.Context, uuid.UUID, bool) error  { return nil }
func (f *fakeStore) SetThumbnail(_ context.Context, id uuid.UUID, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.thumbs[id] = url
	return nil
}

func (f *fakeStore) GetCompletionMarker(context.Context, uuid.UUID, string) (*engine.StageCompletionMarker, error) {
	return nil, nil
}
func (f *fakeStore) PutCompletionMarker(context.Context, *engine.StageCompletionMarker) error {
	return nil
}
func (f *fakeStore) DeleteCompletionMarker(context.Context, uuid.UUID, string) error { return nil }
func (f *fakeStore) GetStageStatus(_ context.Context, documentID uuid.UUID, stage string) (*engine.StageStatusRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status[documentID.String()+"/"+stage], nil
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
	f.status[row.DocumentID.String()+"/"+row.StageName] = row
	return nil
}
func (f *fakeStore) DueStageStatus(context.Context, time.Time) (*engine.StageStatusRow, error) {
	return nil, nil
}
func (f *fakeStore) StuckStageStatus(context.Context, time.Time) ([]*engine.StageStatusRow, error) {
	return nil, nil
}

func (f *fakeStore) Enqueue(context.Context, *engine.ProcessingQueueItem) error { return nil }
func (f *fakeStore) PendingItems(context.Context, uuid.UUID, string) ([]*engine.ProcessingQueueItem, error) {
	return nil, nil
}
func (f *fakeStore) CompleteItem(context.Context, uuid.UUID) error                      { return nil }
func (f *fakeStore) UpdatePayload(context.Context, uuid.UUID, engine.QueuePayload) error { return nil }

func (f *fakeStore) InsertChunks(context.Context, []*engine.Chunk) error { return nil }
func (f *fakeStore) GetChunks(context.Context, uuid.UUID) ([]*engine.Chunk, error) {
	return nil, nil
}
func (f *fakeStore) ChunkExistsByFingerprint(context.Context, uuid.UUID, string) (uuid.UUID, bool, error) {
	return uuid.UUID{}, false, nil
}
func (f *fakeStore) InsertTable(context.Context, *engine.StructuredTable) error { return nil }
func (f *fakeStore) GetTables(context.Context, uuid.UUID) ([]*engine.StructuredTable, error) {
	return nil, nil
}
func (f *fakeStore) UpsertImage(context.Context, *engine.Image) error { return nil }
func (f *fakeStore) UpsertLink(context.Context, *engine.Link) error   { return nil }
func (f *fakeStore) UpsertVideo(_ context.Context, v *engine.Video) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.videos = append(f.videos, v)
	return nil
}
func (f *fakeStore) CountChunks(context.Context, uuid.UUID) (int, error)     { return 0, nil }
func (f *fakeStore) CountEmbeddings(context.Context, uuid.UUID) (int, error) { return 0, nil }
func (f *fakeStore) CountLinks(context.Context, uuid.UUID) (int, error)      { return 0, nil }
func (f *fakeStore) CountVideos(context.Context, uuid.UUID) (int, error)     { return 0, nil }

func (f *fakeStore) UpsertManufacturer(context.Context, string) (*engine.Manufacturer, error) {
	return nil, nil
}
func (f *fakeStore) UpsertProduct(context.Context, *engine.Product) (*engine.Product, error) {
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
func (f *fakeStore) LinkErrorCodeToPart(context.Context, *engine.ErrorCodePartLink) error {
	return nil
}

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
func (f *fakeStore) LogError(context.Context, *engine.ErrorLogEntry) error { return nil }

func (f *fakeStore) AdvisoryLock(context.Context, int64) (bool, error) { return true, nil }
func (f *fakeStore) AdvisoryUnlock(context.Context, int64) error       { return nil }
func (f *fakeStore) Close()                                            {}

var _ store.Store = (*fakeStore)(nil)
