package retry

import (
	"time"

	"github.com/google/uuid"
)

// Task is the background-retry payload carried through core/broker, per
// spec.md §4.2's "internal queue with at-most-once delivery semantics per
// correlation_id".
type Task struct {
	DocumentID    uuid.UUID
	Stage         string
	RequestID     string
	Attempt       int
	CorrelationID string
	NotBefore     time.Time
}
