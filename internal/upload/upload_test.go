package upload

import (
	"bytes"
	"compress/gzip"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
)

type fakeFS struct {
	files   map[string][]byte
	written map[string][]byte
}

func (f *fakeFS) ReadFile(path string) ([]byte, error) {
	data, ok := f.files[path]
	if !ok {
		return nil, assertError("no such file: " + path)
	}
	return data, nil
}
func (f *fakeFS) WriteFile(path string, data []byte) error {
	if f.written == nil {
		f.written = map[string][]byte{}
	}
	f.written[path] = data
	return nil
}

type assertError string

func (e assertError) Error() string { return string(e) }

type fakeDocuments struct {
	byHash map[string]*engine.Document
	created []*engine.Document
}

func (f *fakeDocuments) CreateDocument(ctx context.Context, doc *engine.Document) error {
	if f.byHash == nil {
		f.byHash = map[string]*engine.Document{}
	}
	f.byHash[doc.FileHash] = doc
	f.created = append(f.created, doc)
	return nil
}
func (f *fakeDocuments) FindByFileHash(ctx context.Context, fileHash string) (*engine.Document, error) {
	return f.byHash[fileHash], nil
}
func (f *fakeDocuments) GetDocument(ctx context.Context, id uuid.UUID) (*engine.Document, error) {
	return nil, nil
}
func (f *fakeDocuments) UpdateDocument(ctx context.Context, doc *engine.Document) error { return nil }
func (f *fakeDocuments) SetSearchReady(ctx context.Context, id uuid.UUID, ready bool) error {
	return nil
}
func (f *fakeDocuments) SetThumbnail(ctx context.Context, id uuid.UUID, thumbnailURL string) error {
	return nil
}

func TestProcessCreatesNewDocumentOnFirstUpload(t *testing.T) {
	fs := &fakeFS{files: map[string][]byte{"/in/manual.pdf": []byte("%PDF-1.4 fake content")}}
	docs := &fakeDocuments{}
	stage := NewStage(docs, fs)
	pc := engine.NewProcessingContext(uuid.New())
	pc.FilePath = "/in/manual.pdf"

	result, err := stage.Process(context.Background(), pc)

	require.NoError(t, err)
	assert.False(t, result.Data["deduped"].(bool))
	assert.Len(t, docs.created, 1)
	assert.Equal(t, pc.DocumentID, docs.created[0].ID)
	assert.NotEmpty(t, pc.FileHash)
}

func TestProcessDedupesByFileHash(t *testing.T) {
	content := []byte("%PDF-1.4 identical bytes")
	fs := &fakeFS{files: map[string][]byte{
		"/in/a.pdf": content,
		"/in/b.pdf": content,
	}}
	docs := &fakeDocuments{}
	stage := NewStage(docs, fs)

	pc1 := engine.NewProcessingContext(uuid.New())
	pc1.FilePath = "/in/a.pdf"
	_, err := stage.Process(context.Background(), pc1)
	require.NoError(t, err)

	pc2 := engine.NewProcessingContext(uuid.New())
	pc2.FilePath = "/in/b.pdf"
	result2, err := stage.Process(context.Background(), pc2)
	require.NoError(t, err)

	assert.True(t, result2.Data["deduped"].(bool))
	assert.Equal(t, pc1.DocumentID, pc2.DocumentID)
	assert.Len(t, docs.created, 1)
}

func TestProcessDecompressesPDFZWhenGzipped(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, _ = gw.Write([]byte("%PDF-1.4 decompressed content"))
	_ = gw.Close()

	fs := &fakeFS{files: map[string][]byte{"/in/manual.pdfz": buf.Bytes()}}
	docs := &fakeDocuments{}
	stage := NewStage(docs, fs)
	pc := engine.NewProcessingContext(uuid.New())
	pc.FilePath = "/in/manual.pdfz"

	_, err := stage.Process(context.Background(), pc)

	require.NoError(t, err)
	assert.Equal(t, "/in/manual.pdf", pc.FilePath)
	assert.Equal(t, []byte("%PDF-1.4 decompressed content"), fs.written["/in/manual.pdf"])
}

func TestProcessTreatsAlreadyPlainPDFZAsPassthrough(t *testing.T) {
	fs := &fakeFS{files: map[string][]byte{"/in/manual.pdfz": []byte("%PDF-1.4 not actually gzipped")}}
	docs := &fakeDocuments{}
	stage := NewStage(docs, fs)
	pc := engine.NewProcessingContext(uuid.New())
	pc.FilePath = "/in/manual.pdfz"

	_, err := stage.Process(context.Background(), pc)

	require.NoError(t, err)
	assert.Equal(t, "/in/manual.pdfz", pc.FilePath)
	assert.Nil(t, fs.written)
}

func TestProcessRequiresFilePath(t *testing.T) {
	stage := NewStage(&fakeDocuments{}, &fakeFS{})
	pc := engine.NewProcessingContext(uuid.New())

	_, err := stage.Process(context.Background(), pc)

	require.Error(t, err)
	assert.Equal(t, engine.ErrorKindPermanent, engine.Classify(err))
}
