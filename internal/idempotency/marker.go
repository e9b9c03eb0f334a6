package idempotency

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/store"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/pkg/result"
)

// Checker wraps a store.StageTrackingStore with the stage-level
// idempotency decision of spec.md §4.3.
type Checker struct {
	store store.StageTrackingStore
}

func NewChecker(s store.StageTrackingStore) *Checker {
	return &Checker{store: s}
}

// Outcome is the decision CheckStage hands back to safe_process.
type Outcome int

const (
	// OutcomeRun means no marker exists — the stage must run.
	OutcomeRun Outcome = iota
	// OutcomeSkip means the marker matches the current data hash —
	// safe_process should short-circuit with SkippedAlreadyProcessed.
	OutcomeSkip
	// OutcomeStale means a marker exists but its data hash differs;
	// safe_process must delete the marker before re-running the stage.
	OutcomeStale
)

// CheckStage returns a result.Result wrapping the Outcome, using pkg/result
// for the "found vs. absent vs. errored" lookup idiom used for cache/store
// lookups.
func (c *Checker) CheckStage(ctx context.Context, pc *engine.ProcessingContext, stageName string) result.Result[Outcome] {
	marker, err := c.store.GetCompletionMarker(ctx, pc.DocumentID, stageName)
	if err != nil {
		return result.Error[Outcome](err)
	}
	if marker == nil {
		return result.Value(OutcomeRun)
	}
	currentHash := ComputeDataHash(pc)
	if marker.DataHash == currentHash {
		return result.Value(OutcomeSkip)
	}
	return result.Value(OutcomeStale)
}

// CleanupStale deletes the stale marker; the stage-specific row cleanup
// remains each stage's own responsibility, per spec.md §4.3.
func (c *Checker) CleanupStale(ctx context.Context, documentID uuid.UUID, stageName string) error {
	return c.store.DeleteCompletionMarker(ctx, documentID, stageName)
}

// MarkCompleted records successful stage completion.
func (c *Checker) MarkCompleted(ctx context.Context, pc *engine.ProcessingContext, stageName string, metadata map[string]any) error {
	return c.store.PutCompletionMarker(ctx, &engine.StageCompletionMarker{
		DocumentID:  pc.DocumentID,
		StageName:   stageName,
		CompletedAt: time.Now().UTC(),
		DataHash:    ComputeDataHash(pc),
		Metadata:    metadata,
	})
}
