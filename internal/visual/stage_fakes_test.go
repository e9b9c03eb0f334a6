package visual

import (
	"context"

	"github.com/google/uuid"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/store"
)

// fakeBackend is a hand-written in-memory Backend, the pattern
// internal/processor/fake_store_test.go uses for store.Store: a narrow
// port backed by fixed maps rather than a real subprocess, since the
// toolchain never runs in this exercise.
type fakeBackend struct {
	vectors map[int][]RawVector
	images  map[int][]RawImage
	tables  map[int][]RawTable
	links   map[int][]RawLink
}

func (f *fakeBackend) Name() string { return "fake" }
func (f *fakeBackend) ExtractVectors(ctx context.Context, path string) (map[int][]RawVector, error) {
	return f.vectors, nil
}
func (f *fakeBackend) ExtractImages(ctx context.Context, path string) (map[int][]RawImage, error) {
	return f.images, nil
}
func (f *fakeBackend) ExtractTables(ctx context.Context, path string) (map[int][]RawTable, error) {
	return f.tables, nil
}
func (f *fakeBackend) ExtractLinks(ctx context.Context, path string) (map[int][]RawLink, error) {
	return f.links, nil
}

type fakeObjectStore struct {
	puts []string
}

func (f *fakeObjectStore) Put(ctx context.Context, key string, content []byte, contentType string) (string, error) {
	f.puts = append(f.puts, key)
	return "https://objects.example/" + key, nil
}

type fakeQueue struct {
	items []*engine.ProcessingQueueItem
}

func (f *fakeQueue) Enqueue(ctx context.Context, item *engine.ProcessingQueueItem) error {
	f.items = append(f.items, item)
	return nil
}
func (f *fakeQueue) PendingItems(ctx context.Context, documentID uuid.UUID, stage string) ([]*engine.ProcessingQueueItem, error) {
	return f.items, nil
}
func (f *fakeQueue) CompleteItem(ctx context.Context, id uuid.UUID) error { return nil }
func (f *fakeQueue) UpdatePayload(ctx context.Context, id uuid.UUID, payload engine.QueuePayload) error {
	for _, item := range f.items {
		if item.ID == id {
			item.Payload = payload
		}
	}
	return nil
}

var _ store.QueueStore = (*fakeQueue)(nil)

type fakeContentStore struct {
	tables []*engine.StructuredTable
}

func (f *fakeContentStore) InsertChunks(ctx context.Context, chunks []*engine.Chunk) error { return nil }
func (f *fakeContentStore) GetChunks(ctx context.Context, documentID uuid.UUID) ([]*engine.Chunk, error) {
	return nil, nil
}
func (f *fakeContentStore) ChunkExistsByFingerprint(ctx context.Context, documentID uuid.UUID, fingerprint string) (uuid.UUID, bool, error) {
	return uuid.UUID{}, false, nil
}
func (f *fakeContentStore) InsertTable(ctx context.Context, t *engine.StructuredTable) error {
	f.tables = append(f.tables, t)
	return nil
}
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
