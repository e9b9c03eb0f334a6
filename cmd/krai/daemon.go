package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/core/job"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/pipeline"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/retry"
)

// httpServerJob adapts *http.Server into core/job.Job so krai's server mode
// can hand it to the same lynx.Lynx that owns the background retry
// supervisor, giving both one coordinated start/stop path.
type httpServerJob struct {
	srv    *http.Server
	logger *slog.Logger
}

func (j *httpServerJob) Start(context.Context) error {
	go func() {
		if err := j.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			j.logger.Error("krai http server exited", "err", err)
		}
	}()
	return nil
}

func (j *httpServerJob) Stop() error {
	return j.srv.Shutdown(context.Background())
}

// supervisorJob adapts *retry.Supervisor's ctx-scoped Start/Stop (neither of
// which returns an error) into core/job.Job.
type supervisorJob struct {
	sup *retry.Supervisor
}

func (j *supervisorJob) Start(ctx context.Context) error {
	j.sup.Start(ctx)
	return nil
}

func (j *supervisorJob) Stop() error {
	j.sup.Stop()
	return nil
}

// rerunFromPipeline builds a retry.Rerunner bound to a pipeline.Pipeline: a
// due background retry resumes with the same document id and the stage's
// existing persisted state, carrying the original RequestID's correlation
// id and retry-attempt count forward so retried attempts keep the request's
// traceability.
func rerunFromPipeline(pl *pipeline.Pipeline) retry.Rerunner {
	return func(ctx context.Context, documentID, stage string, attempt int, correlationID string) error {
		id, err := uuid.Parse(documentID)
		if err != nil {
			return fmt.Errorf("retry supervisor: invalid document id %q: %w", documentID, err)
		}
		pc := engine.NewProcessingContext(id)
		pc.RetryAttempt = attempt
		pc.CorrelationID = correlationID
		_, err = pl.RunSingleStageFrom(ctx, pc, stage)
		return err
	}
}

// newBackgroundJobs assembles the jobs krai's --serve mode runs under
// lynx.Lynx: the HTTP API, the continuous background retry supervisor
// consuming deps.retryBroker, and the periodic stuck-document
// reconciliation sweep, per spec.md §4.2's background-retry mechanism.
func newBackgroundJobs(d *deps, srv *http.Server) []job.Job {
	jobs := []job.Job{&httpServerJob{srv: srv, logger: d.logger}}
	if d.retryBroker != nil {
		sup := retry.NewSupervisor(d.retryBroker, rerunFromPipeline(d.pipeline), d.cfg.BackgroundRetryWorkers)
		jobs = append(jobs, &supervisorJob{sup: sup})
		jobs = append(jobs, retry.NewReconcilerJob(d.store,
			time.Duration(d.cfg.ReconcileIntervalS*float64(time.Second)),
			time.Duration(d.cfg.ReconcileStaleAfterS*float64(time.Second))))
	}
	return jobs
}
