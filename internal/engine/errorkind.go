package engine

import "errors"

// ErrorKind classifies a stage failure by propagation policy, not by Go
// type, per spec.md §4.1.
type ErrorKind int

const (
	// ErrorKindUnknown is never produced deliberately; Classify returns it
	// only for a nil error. A bare error with no StageError wrapping
	// classifies as Permanent.
	ErrorKindUnknown ErrorKind = iota
	ErrorKindTransient
	ErrorKindPermanent
	ErrorKindFatal
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindTransient:
		return "transient"
	case ErrorKindPermanent:
		return "permanent"
	case ErrorKindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// StageError carries a classified cause through the retry engine, error
// log, and HTTP/CLI surfaces. Processors that want a specific
// classification return one of these (or wrap one with fmt.Errorf's %w);
// Processors that return a bare error get ErrorKindPermanent by default,
// per the "unexpected conditions are raised" design note (spec.md §9).
type StageError struct {
	Kind ErrorKind
	Err  error
}

func (e *StageError) Error() string { return e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }

func NewStageError(kind ErrorKind, err error) *StageError {
	return &StageError{Kind: kind, Err: err}
}

func Transient(err error) error { return NewStageError(ErrorKindTransient, err) }
func Permanent(err error) error { return NewStageError(ErrorKindPermanent, err) }
func Fatal(err error) error     { return NewStageError(ErrorKindFatal, err) }

// Classify extracts the ErrorKind from err, defaulting to Permanent for an
// unclassified error — matching the "unexpected conditions are raised,
// expected conditions are encoded as result types" design note.
func Classify(err error) ErrorKind {
	if err == nil {
		return ErrorKindUnknown
	}
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ErrorKindPermanent
}

// Sentinel errors for conditions the engine expects and encodes as result
// types rather than raising, per spec.md §9.
var (
	ErrRetryInProgress  = errors.New("retry_in_progress")
	ErrAlreadyProcessed = errors.New("already_processed")
	ErrMissingInput     = errors.New("missing required input")
	ErrCancelled        = errors.New("cancelled")
)

// ErrUniqueViolation is the typed replacement for the source's
// substring-matched "23505"/"duplicate key" recovery (spec.md §9, Open
// Questions). Store adapters wrap the underlying driver error with this so
// callers use errors.As instead of matching driver-specific text.
type ErrUniqueViolation struct {
	Constraint string
	Err        error
}

func (e *ErrUniqueViolation) Error() string {
	if e.Err != nil {
		return "unique violation on " + e.Constraint + ": " + e.Err.Error()
	}
	return "unique violation on " + e.Constraint
}
func (e *ErrUniqueViolation) Unwrap() error { return e.Err }
