package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/pkg/kv"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/pkg/ptr"
)

// Document is the root entity created by Upload, per spec.md §3.
type Document struct {
	ID           uuid.UUID
	FileHash     string
	Filename     string
	FilePath     *string
	Size         int64
	PageCount    int
	Manufacturer *string
	Model        *string
	DocumentType string
	Language     *string
	Version      *string
	Status       string
	SearchReady  bool
	ThumbnailURL *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// WithManufacturer sets Manufacturer via pkg/ptr, the pointer-optional-field
// idiom used for nullable scalar columns.
func (d *Document) WithManufacturer(m string) *Document {
	d.Manufacturer = ptr.Pointer(m)
	return d
}

// StageCompletionMarker is the idempotency record of spec.md §3/§4.3.
type StageCompletionMarker struct {
	DocumentID  uuid.UUID
	StageName   string
	CompletedAt time.Time
	DataHash    string
	Metadata    kv.KSVA
}

// StageStatusRow materializes the pipeline state machine, spec.md §3.
type StageStatusRow struct {
	DocumentID uuid.UUID
	StageName  string
	Status     StageStatusValue
	StartedAt  *time.Time
	FinishedAt *time.Time
	Error      *string
	Progress   *float64
	// NextAttemptAt makes a pending background retry durable across engine
	// restarts: while Status==in_progress and NextAttemptAt is set, the
	// background retry supervisor resumes the same (document, stage) on
	// the next engine start instead of losing the retry, per spec.md §4.2.
	NextAttemptAt *time.Time
	RetryAttempt  int
	CorrelationID string
}

// ArtifactType enumerates ProcessingQueueItem.artifact_type, spec.md §3.
type ArtifactType string

const (
	ArtifactImage ArtifactType = "image"
	ArtifactLink  ArtifactType = "link"
	ArtifactVideo ArtifactType = "video"
	ArtifactSVG   ArtifactType = "svg"
)

// QueuePayload is the tagged-variant replacement for the source's
// dict-shaped queue payload (design note, spec.md §9): exactly one of the
// embedded payload types is non-nil, selected by ArtifactType.
type QueuePayload struct {
	Image *ImagePayload
	Link  *LinkPayload
	Video *VideoPayload
}

type ImagePayload struct {
	Content        []byte
	TempPath       string
	ImageType      string
	PageNumber     int
	BBox           *BBox
	SVGStorageURL  string
	HasPNGDerivative bool
	Context        MediaContext
}

type LinkPayload struct {
	URL        string
	PageNumber int
	Context    MediaContext
}

type VideoPayload struct {
	URL        string
	PageNumber int
	Platform   string
	Context    MediaContext
}

// ProcessingQueueItem is the Storage-stage queue row, spec.md §3.
type ProcessingQueueItem struct {
	ID           uuid.UUID
	DocumentID   uuid.UUID
	Stage        string
	ArtifactType ArtifactType
	Status       StageStatusValue
	Payload      QueuePayload
}

// ChunkType enumerates Chunk.chunk_type, spec.md §3.
type ChunkType string

const (
	ChunkTypeText            ChunkType = "text"
	ChunkTypeErrorCodeSection ChunkType = "error_code_section"
)

// ChunkMetadata is the typed-struct-with-escape-hatch replacement for the
// source's dict metadata (design note, spec.md §9).
type ChunkMetadata struct {
	SectionHierarchy []string
	SectionLevel     int
	ErrorCode        string
	PreviousChunkID  *uuid.UUID
	NextChunkID      *uuid.UUID
	Extra            kv.KSVA
}

// Chunk is produced by the Text stage, spec.md §3.
type Chunk struct {
	ID          uuid.UUID
	DocumentID  uuid.UUID
	ChunkIndex  int
	Text        string
	Fingerprint string
	PageStart   int
	PageEnd     int
	ChunkType   ChunkType
	Metadata    ChunkMetadata
}

// BBox is a normalized bounding box shared by images, SVGs and tables.
type BBox struct {
	X0, Y0, X1, Y1 float64
}

// StructuredTable is produced by the Table stage, spec.md §3.
type StructuredTable struct {
	ID          uuid.UUID
	DocumentID  uuid.UUID
	PageNumber  int
	Markdown    string
	Rows        [][]string
	Cols        int
	BBox        *BBox
	ContextText *string
}

// MediaContext is the output of the Context Extraction service, spec.md
// §4.8, embedded wherever a media element needs surrounding-text context.
type MediaContext struct {
	ContextCaption       string
	FigureReference      string
	PageHeader           string
	RelatedErrorCodes    []string
	RelatedProducts      []string
	SurroundingParagraphs []string
}

// ImageType enumerates Image.image_type, spec.md §3.
type ImageType string

const (
	ImageTypePhoto         ImageType = "photo"
	ImageTypeDiagram       ImageType = "diagram"
	ImageTypeScreenshot    ImageType = "screenshot"
	ImageTypeVectorGraphic ImageType = "vector_graphic"
)

// Image is produced by the Image/SVG stages and finalized by Storage, spec.md §3.
type Image struct {
	ID                uuid.UUID
	DocumentID        uuid.UUID
	StorageURL        string
	Filename          string
	PageNumber        int
	BBox              *BBox
	ImageType         ImageType
	FileHash          string
	ContextCaption    *string
	RelatedErrorCodes []string
	RelatedProducts   []string
	SVGStorageURL     *string
	HasPNGDerivative  bool
}

// Link is produced by the Link-extraction stage, spec.md §3.
type Link struct {
	ID                 uuid.UUID
	DocumentID         uuid.UUID
	URL                string
	PageNumber         int
	ContextDescription *string
	RelatedErrorCodes  []string
	RelatedProducts    []string
}

// VideoMetadata carries the needs_enrichment/credentials_missing escape
// hatch fields of spec.md §3.
type VideoMetadata struct {
	NeedsEnrichment    bool
	CredentialsMissing bool
	Extra              kv.KSVA
}

// Video extends Link with enrichment fields, spec.md §3.
type Video struct {
	Link
	Platform        string
	Title           *string
	Description     *string
	ThumbnailURL    *string
	Duration        *time.Duration
	EnrichmentError *string
	EnrichedAt      *time.Time
	Metadata        VideoMetadata
}

// Manufacturer is the top level of the three-level product hierarchy, spec.md §3.
type Manufacturer struct {
	ID   uuid.UUID
	Name string
}

// ProductSeries is unique by (manufacturer_id, series_name, model_pattern).
type ProductSeries struct {
	ID             uuid.UUID
	ManufacturerID uuid.UUID
	SeriesName     string
	ModelPattern   string
}

// Product references Manufacturer and optionally ProductSeries.
type Product struct {
	ID             uuid.UUID
	ManufacturerID uuid.UUID
	Model          string
	SeriesID       *uuid.UUID
}

// Severity enumerates ErrorCode.severity, spec.md §3.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ErrorCode is extracted by Metadata extraction, spec.md §3.
type ErrorCode struct {
	ID                uuid.UUID
	DocumentID        uuid.UUID
	ChunkID           *uuid.UUID
	Code              string
	Description       string
	Solution          *string
	PageNumber        int
	Confidence        float64
	Severity          Severity
	ExtractionMethod  string
	RequiresTechnician bool
	RequiresParts      bool
}

// ExtractionSource enumerates ErrorCodePartLink.extraction_source, spec.md §3/§8 S6.
type ExtractionSource string

const (
	ExtractionSourceSolutionText ExtractionSource = "solution_text"
	ExtractionSourceChunk        ExtractionSource = "chunk"
)

// ErrorCodePartLink links an ErrorCode to a Part, spec.md §3.
type ErrorCodePartLink struct {
	ErrorCodeID      uuid.UUID
	PartID           uuid.UUID
	RelevanceScore   float64
	ExtractionSource ExtractionSource
}

// PartCategory enumerates the category keyword buckets of spec.md §4.9.
type PartCategory string

const (
	PartCategoryConsumable PartCategory = "consumable"
	PartCategoryAssembly   PartCategory = "assembly"
	PartCategoryComponent  PartCategory = "component"
	PartCategoryMechanical PartCategory = "mechanical"
	PartCategoryElectrical PartCategory = "electrical"
)

// Part is unique by (part_number, manufacturer_id), spec.md §3.
type Part struct {
	ID             uuid.UUID
	PartNumber     string
	ManufacturerID uuid.UUID
	Name           *string
	Description    string
	Category       *PartCategory
}

// SourceType enumerates UnifiedEmbedding.source_type, spec.md §3.
type SourceType string

const (
	SourceTypeText    SourceType = "text"
	SourceTypeImage   SourceType = "image"
	SourceTypeTable   SourceType = "table"
	SourceTypeContext SourceType = "context"
)

// EmbeddingDim is the fixed vector width, spec.md §3/§6.
const EmbeddingDim = 768

// UnifiedEmbedding is keyed by (source_id, source_type), spec.md §3.
type UnifiedEmbedding struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	SourceID   uuid.UUID
	SourceType SourceType
	Vector     [EmbeddingDim]float32
	CreatedAt  time.Time
}
