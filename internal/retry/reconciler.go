package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/core/job"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/core/trigger"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/core/worker"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/store"
)

// ReconcileWorker implements core/worker.BatchWorker: on each CronTrigger
// tick it finds stage_status rows an engine process abandoned in_progress
// without ever scheduling a NextAttemptAt (a crash between SafeProcess
// marking a stage in_progress and it scheduling the retry), and reschedules
// them immediately so the dbqueue-backed Supervisor picks them back up.
// This is the durable-resume half of spec.md §4.2's "pending background
// retries... resume on the next engine start" that the NextAttemptAt-driven
// poll alone cannot cover, since a row with no NextAttemptAt never becomes
// due on its own.
type ReconcileWorker struct {
	store     store.StageTrackingStore
	staleness time.Duration
	ctx       context.Context
}

func NewReconcileWorker(s store.StageTrackingStore, staleness time.Duration) *ReconcileWorker {
	return &ReconcileWorker{store: s, staleness: staleness}
}

func (w *ReconcileWorker) Context(ctx context.Context) { w.ctx = ctx }

func (w *ReconcileWorker) Done() <-chan struct{} { return w.ctx.Done() }

func (w *ReconcileWorker) Work() {
	rows, err := w.store.StuckStageStatus(w.ctx, time.Now().UTC().Add(-w.staleness))
	if err != nil {
		slog.Error("reconcile: list stuck stage status", slog.String("err", err.Error()))
		return
	}
	for _, row := range rows {
		now := time.Now().UTC()
		row.NextAttemptAt = &now
		if err := w.store.PutStageStatus(w.ctx, row); err != nil {
			slog.Error("reconcile: reschedule stuck stage",
				slog.String("document_id", row.DocumentID.String()),
				slog.String("stage", row.StageName),
				slog.String("err", err.Error()))
			continue
		}
		slog.Info("reconcile: resumed stuck stage",
			slog.String("document_id", row.DocumentID.String()),
			slog.String("stage", row.StageName))
	}
}

// NewReconcilerJob builds the core/job.Job cmd/krai's --serve mode runs
// alongside the continuous retry Supervisor: a core/trigger.CronTrigger
// firing every interval drives a ReconcileWorker through core/job.BatchJob,
// the cron-triggered batch shape BatchJob was built for (as opposed to
// Supervisor's own continuous consume-dispatch loop).
func NewReconcilerJob(s store.StageTrackingStore, interval, staleness time.Duration) job.Job {
	return job.NewBatchJob(&job.BatchJobOptions{
		Trigger: trigger.NewCronTrigger(&trigger.CronTriggerOptions{
			Spec: fmt.Sprintf("@every %s", interval),
		}),
		Workers: []worker.BatchWorker{NewReconcileWorker(s, staleness)},
	})
}
