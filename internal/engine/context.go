package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/pkg/kv"
)

// ProcessingConfig mirrors the chunker/SVG/table toggles of
// config.EngineConfig that a stage actually consults; it is copied into the
// context rather than handed the whole EngineConfig so a stage's declared
// inputs stay narrow and serializable.
type ProcessingConfig struct {
	ChunkSize                   int
	ChunkOverlap                int
	Hierarchical                bool
	DetectErrorCodeSections     bool
	LinkChunks                  bool
	EnableSVGExtraction         bool
	EnableTableExtraction       bool
	EnableContextExtraction     bool
	SVGInlineStorageThresholdKB int
	DisableVisionProcessing     bool
	ClassificationMaxPages      int
	MetadataMaxPages            int
}

// ProcessingContext is the mutable per-invocation carrier threaded through
// safe_process and into Processor.Process. Stages read state earlier stages
// left here and append their own, per spec.md §4.1.
type ProcessingContext struct {
	DocumentID   uuid.UUID
	FilePath     string
	FileHash     string
	DocumentType string
	FileSize     int64

	Config ProcessingConfig

	PageTexts map[int]string
	Chunks    []*Chunk

	RequestID     string
	CorrelationID string
	RetryAttempt  int
	ErrorID       string

	Extra kv.KSVA
}

func NewProcessingContext(documentID uuid.UUID) *ProcessingContext {
	return &ProcessingContext{
		DocumentID: documentID,
		Extra:      make(kv.KSVA),
	}
}

// StageStatusValue is the StageStatus.status enumeration (spec.md §3).
type StageStatusValue string

const (
	StatusPending    StageStatusValue = "pending"
	StatusInProgress StageStatusValue = "in_progress"
	StatusCompleted  StageStatusValue = "completed"
	StatusFailed     StageStatusValue = "failed"
	StatusSkipped    StageStatusValue = "skipped"
)

// ProcessingResult is the return value of both Processor.Process and
// safe_process, per spec.md §4.1.
type ProcessingResult struct {
	Success         bool
	Processor       string
	Status          StageStatusValue
	Data            map[string]any
	Metadata        map[string]any
	Error           error
	ProcessingTimeS float64
	CorrelationID   string
	Skipped         string
}

func Completed(processorName string, data map[string]any, elapsed time.Duration) *ProcessingResult {
	return &ProcessingResult{
		Success:         true,
		Processor:       processorName,
		Status:          StatusCompleted,
		Data:            data,
		ProcessingTimeS: elapsed.Seconds(),
	}
}

func Failed(processorName string, err error, elapsed time.Duration) *ProcessingResult {
	return &ProcessingResult{
		Success:         false,
		Processor:       processorName,
		Status:          StatusFailed,
		Error:           err,
		ProcessingTimeS: elapsed.Seconds(),
	}
}

func InProgress(processorName, correlationID string) *ProcessingResult {
	return &ProcessingResult{
		Success:       false,
		Processor:     processorName,
		Status:        StatusInProgress,
		CorrelationID: correlationID,
	}
}

func SkippedAlreadyProcessed(processorName string) *ProcessingResult {
	return &ProcessingResult{
		Success:   true,
		Processor: processorName,
		Status:    StatusCompleted,
		Skipped:   "already_processed",
	}
}
