package engine

import "context"

// Processor is the capability interface every stage implements. Per the
// design note in spec.md §9, this replaces a deep inheritance hierarchy: a
// Processor declares its own name/stage/contract, and safe_process
// (processor.Coordinator.SafeProcess in internal/processor) takes any
// Processor as an argument rather than being a base class method.
type Processor interface {
	Name() string
	Stage() Stage
	RequiredInputs() []string
	Outputs() []string
	Process(ctx context.Context, pc *ProcessingContext) (*ProcessingResult, error)
}

// ErrorLogEntry is the persisted shape of every failure, spec.md §7.
type ErrorLogEntry struct {
	ErrorID       string
	CorrelationID string
	Stage         string
	DocumentID    string
	Classification ErrorKind
	RetryAttempt  int
	Message       string
	Traceback     string
}
