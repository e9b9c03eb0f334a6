// Package upload implements stage 1, upload, per spec.md §3/§6: resolve
// the input file (transparently decompressing a `.pdfz`), fingerprint its
// content, and either attach to the existing Document that fingerprint
// already names or create a new one — the dedup rule spec.md §8's P2
// names as a testable property.
package upload

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/idempotency"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/store"
	pkgio "github.com/Kunze-Ritter/Manual2Vector-sub004/pkg/io"
)

const pdfMagic = "%PDF"

// FileSystem is the narrow port over disk I/O this stage needs, so tests
// never touch the real filesystem.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
}

type osFileSystem struct{}

func (osFileSystem) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }
func (osFileSystem) WriteFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o600)
}

func NewOSFileSystem() FileSystem { return osFileSystem{} }

type Stage struct {
	Documents store.DocumentStore
	FS        FileSystem
}

func NewStage(documents store.DocumentStore, fs FileSystem) *Stage {
	if fs == nil {
		fs = NewOSFileSystem()
	}
	return &Stage{Documents: documents, FS: fs}
}

func (s *Stage) Name() string             { return "upload_stage" }
func (s *Stage) Stage() engine.Stage      { return engine.StageUpload }
func (s *Stage) RequiredInputs() []string { return []string{"file_path"} }
func (s *Stage) Outputs() []string        { return []string{"document_id", "deduped"} }

// Process resolves pc.FilePath to a plain PDF, fingerprints it, and writes
// the authoritative document_id/file_hash/file_size back onto pc — the
// caller only needs to know a candidate id to build the ProcessingContext
// with; this stage may replace it with an existing document's id on dedup.
func (s *Stage) Process(ctx context.Context, pc *engine.ProcessingContext) (*engine.ProcessingResult, error) {
	start := time.Now()

	if pc.FilePath == "" {
		return nil, engine.NewStageError(engine.ErrorKindPermanent, fmt.Errorf("upload: file_path required"))
	}

	content, err := s.FS.ReadFile(pc.FilePath)
	if err != nil {
		return nil, engine.NewStageError(engine.ErrorKindPermanent, fmt.Errorf("upload: read %s: %w", pc.FilePath, err))
	}

	resolvedPath := pc.FilePath
	if strings.HasSuffix(strings.ToLower(pc.FilePath), ".pdfz") && !bytes.HasPrefix(content, []byte(pdfMagic)) {
		decompressed, err := gunzip(content)
		if err != nil {
			return nil, engine.NewStageError(engine.ErrorKindPermanent, fmt.Errorf("upload: decompress %s: %w", pc.FilePath, err))
		}
		content = decompressed
		resolvedPath = strings.TrimSuffix(pc.FilePath, filepath.Ext(pc.FilePath)) + ".pdf"
		if err := s.FS.WriteFile(resolvedPath, content); err != nil {
			return nil, engine.NewStageError(engine.ErrorKindPermanent, fmt.Errorf("upload: write %s: %w", resolvedPath, err))
		}
	}

	fileHash := idempotency.FileFingerprint(content)

	existing, err := s.Documents.FindByFileHash(ctx, fileHash)
	if err != nil {
		return nil, engine.NewStageError(engine.ErrorKindTransient, fmt.Errorf("upload: find_by_file_hash: %w", err))
	}

	deduped := existing != nil
	doc := existing
	if !deduped {
		doc = &engine.Document{
			ID:       uuid.New(),
			FileHash: fileHash,
			Filename: filepath.Base(resolvedPath),
			FilePath: &resolvedPath,
			Size:     int64(len(content)),
			Status:   "uploaded",
		}
		if err := s.Documents.CreateDocument(ctx, doc); err != nil {
			return nil, engine.NewStageError(engine.ErrorKindTransient, fmt.Errorf("upload: create_document: %w", err))
		}
	}

	pc.DocumentID = doc.ID
	pc.FilePath = resolvedPath
	pc.FileHash = fileHash
	pc.FileSize = doc.Size

	return engine.Completed(s.Name(), map[string]any{
		"document_id": doc.ID.String(),
		"deduped":     deduped,
	}, time.Since(start)), nil
}

// gunzip decompresses a `.pdfz` payload. Process calls it only for a
// `.pdfz` path whose content does not start with the PDF magic bytes
// (spec.md §6): an already-plain PDF saved with a `.pdfz` extension is
// passed through, and a file with any other extension is never
// decompressed.
func gunzip(content []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return pkgio.ReadAll(r)
}
