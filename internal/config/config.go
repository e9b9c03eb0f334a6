// Package config builds the engine's EngineConfig once at startup from the
// environment, per spec.md §6 and §9's "module-level singletons become an
// explicit EngineConfig" note. Nothing in the rest of the engine re-reads
// the environment directly.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cast"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
)

// PDFEngine selects the backend used by internal/pdftext.
type PDFEngine string

const (
	PDFEnginePyMuPDFEquiv    PDFEngine = "pymupdf_equiv"
	PDFEnginePDFPlumberEquiv PDFEngine = "pdfplumber_equiv"
)

// ObjectStorage wires internal/objectstore to an S3-compatible endpoint.
type ObjectStorage struct {
	Type        string
	Endpoint    string
	AccessKey   string
	SecretKey   string
	Region      string
	UseSSL      bool
	BucketImages string
	BucketDocs   string
	BucketThumbs string
	PublicURLBase string
}

// ModelServer wires internal/modelserver.
type ModelServer struct {
	URL          string
	VisionModel  string
}

// RetryPolicy is the C2 hybrid retry defaults; per-stage overrides are
// looked up by stage name and fall back to this default.
type RetryPolicy struct {
	MaxRetries  int
	BaseDelayS  float64
	JitterFrac  float64
}

// EngineConfig is the single configuration object built at startup and
// threaded through every component's constructor.
type EngineConfig struct {
	PDFEngine PDFEngine
	EnableOCRFallback bool

	EnableHierarchicalChunking bool
	DetectErrorCodeSections    bool
	LinkChunks                 bool
	ChunkSize                  int
	ChunkOverlap               int

	EnableSVGExtraction     bool
	EnableTableExtraction   bool
	EnableContextExtraction bool
	SVGInlineStorageThresholdKB int
	DisableVisionProcessing bool

	EnableBrightcoveEnrichment  bool
	BrightcoveEnrichmentBatchSize int

	ObjectStorage ObjectStorage
	DatabaseURL   string
	ModelServer   ModelServer

	DefaultRetry RetryPolicy

	MinEmbeddingBatchSize int
	MaxEmbeddingBatchSize int
	InitialEmbeddingBatchSize int
	EmbeddingConcurrency int

	SVGConversionWorkers int
	BackgroundRetryWorkers int

	// ReconcileIntervalS/ReconcileStaleAfterS drive the periodic
	// stuck-document reconciliation sweep (internal/retry.NewReconcilerJob):
	// every ReconcileIntervalS seconds, any in_progress stage left without
	// a scheduled retry for longer than ReconcileStaleAfterS seconds (an
	// engine crash mid-stage) is resumed, per spec.md §4.2.
	ReconcileIntervalS   float64
	ReconcileStaleAfterS float64

	ClassificationMaxPages int
	MetadataMaxPages       int
}

// Load reads the environment per spec.md §6. Unknown env names are ignored;
// missing-but-required wiring (database, object storage) is deferred to
// Validate so CLI subcommands that don't need the database (e.g.
// --list-stages) still work.
func Load() *EngineConfig {
	c := &EngineConfig{
		PDFEngine:                   PDFEngine(envOr("PDF_ENGINE", string(PDFEnginePyMuPDFEquiv))),
		EnableOCRFallback:           envBool("ENABLE_OCR_FALLBACK", false),
		EnableHierarchicalChunking:  envBool("ENABLE_HIERARCHICAL_CHUNKING", true),
		DetectErrorCodeSections:     envBool("DETECT_ERROR_CODE_SECTIONS", true),
		LinkChunks:                  envBool("LINK_CHUNKS", true),
		ChunkSize:                   envInt("CHUNK_SIZE", 500),
		ChunkOverlap:                envInt("CHUNK_OVERLAP", 100),
		EnableSVGExtraction:         envBool("ENABLE_SVG_EXTRACTION", true),
		EnableTableExtraction:       envBool("ENABLE_TABLE_EXTRACTION", true),
		EnableContextExtraction:     envBool("ENABLE_CONTEXT_EXTRACTION", true),
		SVGInlineStorageThresholdKB: envInt("SVG_INLINE_STORAGE_THRESHOLD_KB", 32),
		DisableVisionProcessing:     envBool("DISABLE_VISION_PROCESSING", false),
		EnableBrightcoveEnrichment:  envBool("ENABLE_BRIGHTCOVE_ENRICHMENT", false),
		BrightcoveEnrichmentBatchSize: envInt("BRIGHTCOVE_ENRICHMENT_BATCH_SIZE", 10),

		ObjectStorage: ObjectStorage{
			Type:          envOr("OBJECT_STORAGE_TYPE", "s3"),
			Endpoint:      os.Getenv("OBJECT_STORAGE_ENDPOINT"),
			AccessKey:     os.Getenv("OBJECT_STORAGE_ACCESS_KEY"),
			SecretKey:     os.Getenv("OBJECT_STORAGE_SECRET_KEY"),
			Region:        envOr("OBJECT_STORAGE_REGION", "us-east-1"),
			UseSSL:        envBool("OBJECT_STORAGE_USE_SSL", true),
			BucketImages:  envOr("OBJECT_STORAGE_BUCKET_IMAGES", "document_images"),
			BucketDocs:    envOr("OBJECT_STORAGE_BUCKET_DOCUMENTS", "documents"),
			BucketThumbs:  envOr("OBJECT_STORAGE_BUCKET_THUMBNAILS", "thumbnails"),
			PublicURLBase: os.Getenv("OBJECT_STORAGE_PUBLIC_URL"),
		},
		DatabaseURL: os.Getenv("DATABASE_URL"),
		ModelServer: ModelServer{
			URL:         envOr("OLLAMA_URL", "http://localhost:11434"),
			VisionModel: envOr("OLLAMA_MODEL_VISION", "llava"),
		},
		DefaultRetry: RetryPolicy{
			MaxRetries: envInt("RETRY_MAX_RETRIES", 3),
			BaseDelayS: envFloat("RETRY_BASE_DELAY_S", 2),
			JitterFrac: envFloat("RETRY_JITTER_FRAC", 0.2),
		},
		MinEmbeddingBatchSize:     envInt("EMBEDDING_MIN_BATCH_SIZE", 5),
		MaxEmbeddingBatchSize:     envInt("EMBEDDING_MAX_BATCH_SIZE", 200),
		InitialEmbeddingBatchSize: envInt("EMBEDDING_INITIAL_BATCH_SIZE", 100),
		EmbeddingConcurrency:      envInt("EMBEDDING_CONCURRENCY", 4),
		SVGConversionWorkers:      envInt("SVG_CONVERSION_WORKERS", 4),
		BackgroundRetryWorkers:    envInt("BACKGROUND_RETRY_WORKERS", 8),
		ReconcileIntervalS:        envFloat("RECONCILE_INTERVAL_S", 60),
		ReconcileStaleAfterS:      envFloat("RECONCILE_STALE_AFTER_S", 600),
		ClassificationMaxPages:    envInt("CLASSIFICATION_MAX_PAGES", 5),
		MetadataMaxPages:          envInt("METADATA_MAX_PAGES", 10),
	}
	return c
}

// ToProcessingConfig narrows the flat, environment-driven EngineConfig down
// to the per-invocation fields engine.ProcessingContext.Config carries into
// every stage, per spec.md §6's environment variable list. cmd/krai builds
// its ProcessingContext from this for both upload and document-id runs;
// internal/api runs stages through the pipeline's plain RunSingleStage/
// RunStages, whose context carries a zero-valued ProcessingConfig.
func (c *EngineConfig) ToProcessingConfig() engine.ProcessingConfig {
	return engine.ProcessingConfig{
		ChunkSize:                   c.ChunkSize,
		ChunkOverlap:                c.ChunkOverlap,
		Hierarchical:                c.EnableHierarchicalChunking,
		DetectErrorCodeSections:     c.DetectErrorCodeSections,
		LinkChunks:                  c.LinkChunks,
		EnableSVGExtraction:         c.EnableSVGExtraction,
		EnableTableExtraction:       c.EnableTableExtraction,
		EnableContextExtraction:     c.EnableContextExtraction,
		SVGInlineStorageThresholdKB: c.SVGInlineStorageThresholdKB,
		DisableVisionProcessing:     c.DisableVisionProcessing,
		ClassificationMaxPages:      c.ClassificationMaxPages,
		MetadataMaxPages:            c.MetadataMaxPages,
	}
}

// Validate returns a fatal error (per spec.md §4.1's fatal ErrorKind) when
// wiring required for the pipeline to run is absent.
func (c *EngineConfig) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.ObjectStorage.Endpoint == "" {
		missing = append(missing, "OBJECT_STORAGE_ENDPOINT")
	}
	if len(missing) > 0 {
		return fmt.Errorf("engine config: missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

func envOr(name, def string) string {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	return def
}

func envBool(name string, def bool) bool {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return def
	}
	return cast.ToBool(v)
}

func envInt(name string, def int) int {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return def
	}
	return cast.ToInt(v)
}

func envFloat(name string, def float64) float64 {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return def
	}
	return cast.ToFloat64(v)
}
