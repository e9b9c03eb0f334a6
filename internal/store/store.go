// Package store narrows the relational+vector database (spec.md §1's
// "treated as a typed data store with a handful of SQL views, tables, and
// server-side functions") to the interfaces the engine's stages actually
// need. internal/store/postgres is the concrete pgx-backed implementation;
// every stage package depends only on the interfaces here.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
)

// ErrUniqueViolation is the typed unique-constraint error every Store
// implementation returns instead of a driver-specific code/string, per
// spec.md §9's Open Question on series-detection recovery. It is an alias
// of engine.ErrUniqueViolation so callers in both packages use one
// errors.As target.
type ErrUniqueViolation = engine.ErrUniqueViolation

// DocumentStore covers Document rows and their lifecycle, spec.md §3.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *engine.Document) error
	// FindByFileHash implements the upload-dedup invariant: a second
	// upload of identical bytes returns the existing document, not a
	// new row (spec.md S1).
	FindByFileHash(ctx context.Context, fileHash string) (*engine.Document, error)
	GetDocument(ctx context.Context, id uuid.UUID) (*engine.Document, error)
	UpdateDocument(ctx context.Context, doc *engine.Document) error
	SetSearchReady(ctx context.Context, id uuid.UUID, ready bool) error
	// SetThumbnail records the object-store URL POST /process/thumbnail
	// (spec.md §6) generated for the document's first page.
	SetThumbnail(ctx context.Context, id uuid.UUID, thumbnailURL string) error
}

// StageTrackingStore covers StageCompletionMarker and StageStatus, spec.md §4.3/§4.4.
type StageTrackingStore interface {
	GetCompletionMarker(ctx context.Context, documentID uuid.UUID, stage string) (*engine.StageCompletionMarker, error)
	PutCompletionMarker(ctx context.Context, m *engine.StageCompletionMarker) error
	DeleteCompletionMarker(ctx context.Context, documentID uuid.UUID, stage string) error

	GetStageStatus(ctx context.Context, documentID uuid.UUID, stage string) (*engine.StageStatusRow, error)
	GetAllStageStatus(ctx context.Context, documentID uuid.UUID) (map[string]*engine.StageStatusRow, error)
	PutStageStatus(ctx context.Context, row *engine.StageStatusRow) error
	// DueStageStatus finds one in_progress row whose NextAttemptAt has
	// elapsed, for the background retry broker (internal/retry/broker/dbqueue).
	DueStageStatus(ctx context.Context, before time.Time) (*engine.StageStatusRow, error)
	// StuckStageStatus finds in_progress rows with no NextAttemptAt set
	// (the engine process died before scheduling a retry, so dbqueue's
	// NextAttemptAt-driven poll will never pick them back up) whose
	// StartedAt is older than the given staleness threshold. Used by the
	// periodic reconciliation sweep (internal/retry.NewReconcilerJob) to resume
	// work abandoned by a crashed engine, per spec.md §4.2.
	StuckStageStatus(ctx context.Context, olderThan time.Time) ([]*engine.StageStatusRow, error)
}

// QueueStore covers ProcessingQueueItem, spec.md §3/§4.7/§4.10.
type QueueStore interface {
	Enqueue(ctx context.Context, item *engine.ProcessingQueueItem) error
	PendingItems(ctx context.Context, documentID uuid.UUID, stage string) ([]*engine.ProcessingQueueItem, error)
	CompleteItem(ctx context.Context, id uuid.UUID) error

	// UpdatePayload rewrites a pending item's payload in place, letting a
	// stage that runs ahead of Storage (visual_embedding enriching a queued
	// image with its caption, for one) hand data forward without requeueing.
	UpdatePayload(ctx context.Context, id uuid.UUID, payload engine.QueuePayload) error
}

// ContentStore covers Chunk/Table/Image/Link/Video persistence, spec.md §3.
type ContentStore interface {
	InsertChunks(ctx context.Context, chunks []*engine.Chunk) error
	GetChunks(ctx context.Context, documentID uuid.UUID) ([]*engine.Chunk, error)
	ChunkExistsByFingerprint(ctx context.Context, documentID uuid.UUID, fingerprint string) (uuid.UUID, bool, error)

	InsertTable(ctx context.Context, t *engine.StructuredTable) error
	GetTables(ctx context.Context, documentID uuid.UUID) ([]*engine.StructuredTable, error)

	UpsertImage(ctx context.Context, img *engine.Image) error
	UpsertLink(ctx context.Context, l *engine.Link) error
	UpsertVideo(ctx context.Context, v *engine.Video) error

	CountChunks(ctx context.Context, documentID uuid.UUID) (int, error)
	CountEmbeddings(ctx context.Context, documentID uuid.UUID) (int, error)
	CountLinks(ctx context.Context, documentID uuid.UUID) (int, error)
	CountVideos(ctx context.Context, documentID uuid.UUID) (int, error)
}

// GraphStore covers the Manufacturer/ProductSeries/Product/Part/ErrorCode
// relational graph, spec.md §4.9.
type GraphStore interface {
	UpsertManufacturer(ctx context.Context, name string) (*engine.Manufacturer, error)

	// UpsertProduct persists a product discovered during classification or
	// web-verification reconciliation, keyed on (manufacturer_id, model),
	// spec.md §4.9.
	UpsertProduct(ctx context.Context, p *engine.Product) (*engine.Product, error)

	CreateProductSeries(ctx context.Context, s *engine.ProductSeries) error
	FindProductSeries(ctx context.Context, manufacturerID uuid.UUID, seriesName, modelPattern string) (*engine.ProductSeries, error)
	LinkProductToSeries(ctx context.Context, productID, seriesID uuid.UUID) error

	UpsertPart(ctx context.Context, p *engine.Part) (*engine.Part, error)
	InsertErrorCode(ctx context.Context, ec *engine.ErrorCode) error
	GetErrorCodes(ctx context.Context, documentID uuid.UUID) ([]*engine.ErrorCode, error)
	LinkErrorCodeToPart(ctx context.Context, link *engine.ErrorCodePartLink) error
}

// EmbeddingStore covers UnifiedEmbedding, spec.md §3/§4.11.
type EmbeddingStore interface {
	EmbeddingExists(ctx context.Context, sourceID uuid.UUID, sourceType engine.SourceType) (bool, error)
	InsertEmbedding(ctx context.Context, e *engine.UnifiedEmbedding) error
	// MatchMultimodal is the server-side vector RPC of spec.md §4.14,
	// implemented as a SQL function call against the vector column —
	// never a hand-rolled nearest-neighbor scan, per the Non-goal on
	// implementing a new vector index.
	MatchMultimodal(ctx context.Context, query [engine.EmbeddingDim]float32, modalities []engine.SourceType, threshold float64, limit int) ([]MatchResult, error)
}

// MatchResult is one row of the match_multimodal RPC result, spec.md §4.14.
type MatchResult struct {
	SourceID   uuid.UUID
	SourceType engine.SourceType
	DocumentID uuid.UUID
	Content    string
	Similarity float64
}

// AnalyticsStore covers search_analytics and error_log, spec.md §4.12/§7.
type AnalyticsStore interface {
	LogSearchAnalytics(ctx context.Context, documentID uuid.UUID, indexedAt time.Time, counts map[string]int, processingTimeS float64) error
	LogError(ctx context.Context, entry *engine.ErrorLogEntry) error
}

// Store is the full port the engine depends on; internal/store/postgres is
// the only implementation.
type Store interface {
	DocumentStore
	StageTrackingStore
	QueueStore
	ContentStore
	GraphStore
	EmbeddingStore
	AnalyticsStore

	// AdvisoryLock/Unlock implement the C2 per-(document,stage) mutual
	// exclusion primitive (spec.md §4.2) using Postgres advisory locks,
	// which — unlike an in-process mutex — work across engine processes.
	AdvisoryLock(ctx context.Context, key int64) (bool, error)
	AdvisoryUnlock(ctx context.Context, key int64) error

	Close()
}
