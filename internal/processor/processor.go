// Package processor implements safe_process (C4) as Coordinator.SafeProcess,
// which wraps any engine.Processor with idempotency, advisory locking, the C2
// hybrid retry policy, error logging and metrics. Per spec.md §9's design
// note, this is deliberately NOT a base class: any engine.Processor can be
// passed to SafeProcess, matching the "Processor capability + non-inherited
// coordinator" guidance.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/core/broker"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/idempotency"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/retry"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/store"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/telemetry"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/pkg/safe"
)

// Coordinator owns the dependencies safe_process needs: the store (for
// markers, advisory locks, status rows, error log), the background retry
// broker, the metrics recorder, and the retry policy table. One Coordinator
// is shared by every stage invocation.
type Coordinator struct {
	Store         store.Store
	Checker       *idempotency.Checker
	Broker        broker.Broker
	Telemetry     telemetry.Recorder
	DefaultPolicy retry.Policy
	Policies      map[string]retry.Policy
	Logger        *slog.Logger
}

func NewCoordinator(s store.Store, b broker.Broker, rec telemetry.Recorder, defaultPolicy retry.Policy, policies map[string]retry.Policy, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		Store:         s,
		Checker:       idempotency.NewChecker(s),
		Broker:        b,
		Telemetry:     rec,
		DefaultPolicy: defaultPolicy,
		Policies:      policies,
		Logger:        logger,
	}
}

func (c *Coordinator) policyFor(stageName string) retry.Policy {
	if p, ok := c.Policies[stageName]; ok {
		return p
	}
	return c.DefaultPolicy
}

// SafeProcess implements the 7-step loop of spec.md §4.4.
func (c *Coordinator) SafeProcess(ctx context.Context, p engine.Processor, pc *engine.ProcessingContext) *engine.ProcessingResult {
	start := time.Now()
	stageName := p.Stage().Name()

	// Step 1: generate/propagate request_id and correlation_id.
	if pc.RequestID == "" {
		pc.RequestID = retry.NewRequestID()
	}
	pc.CorrelationID = retry.CorrelationID(pc.RequestID, stageName, pc.RetryAttempt)

	logger := c.Logger.With(
		slog.String("document_id", pc.DocumentID.String()),
		slog.String("stage", stageName),
		slog.String("correlation_id", pc.CorrelationID),
	)

	// Step 2: idempotency short-circuit.
	outcome := c.Checker.CheckStage(ctx, pc, stageName)
	if err := outcome.Error(); err != nil {
		return c.fail(ctx, p, pc, logger, engine.Transient(err), start)
	}
	switch outcome.Value() {
	case idempotency.OutcomeSkip:
		logger.Info("stage skipped, already processed")
		result := engine.SkippedAlreadyProcessed(p.Name())
		c.record(ctx, pc, stageName, start, true)
		return result
	case idempotency.OutcomeStale:
		if err := c.Checker.CleanupStale(ctx, pc.DocumentID, stageName); err != nil {
			return c.fail(ctx, p, pc, logger, engine.Transient(err), start)
		}
	}

	// Step 3: advisory lock.
	lockKey := retry.AdvisoryLockKey(pc.DocumentID.String(), stageName)
	acquired, err := c.Store.AdvisoryLock(ctx, lockKey)
	if err != nil {
		return c.fail(ctx, p, pc, logger, engine.Transient(err), start)
	}
	if !acquired {
		if pc.RetryAttempt > 0 {
			logger.Info("advisory lock contended, retry already in progress elsewhere")
			return engine.InProgress(p.Name(), pc.CorrelationID)
		}
		return c.fail(ctx, p, pc, logger, engine.Transient(fmt.Errorf("advisory lock contention on %s", stageName)), start)
	}
	locked := true
	defer func() {
		if !locked {
			return
		}
		if err := c.Store.AdvisoryUnlock(ctx, lockKey); err != nil {
			logger.Warn("advisory unlock failed", slog.String("err", err.Error()))
		}
	}()

	// Step 4: validate required inputs.
	if err := ValidateInputs(p, pc); err != nil {
		return c.fail(ctx, p, pc, logger, engine.Permanent(err), start)
	}

	// Step 5: call process, recovering from panics per pkg/safe.
	result, procErr := c.callProcess(ctx, p, pc, logger)
	if procErr == nil && result != nil && result.Success {
		if err := c.Checker.MarkCompleted(ctx, pc, stageName, result.Metadata); err != nil {
			logger.Warn("failed to persist completion marker", slog.String("err", err.Error()))
		}
		result.CorrelationID = pc.CorrelationID
		c.record(ctx, pc, stageName, start, true)
		return result
	}

	// Step 6: classify and apply the hybrid retry policy. The lock is
	// released first: a synchronous retry calls SafeProcess again, which
	// takes the lock afresh.
	locked = false
	if err := c.Store.AdvisoryUnlock(ctx, lockKey); err != nil {
		logger.Warn("advisory unlock failed", slog.String("err", err.Error()))
	}
	return c.handleFailure(ctx, p, pc, logger, procErr, start)
}

func (c *Coordinator) callProcess(ctx context.Context, p engine.Processor, pc *engine.ProcessingContext, logger *slog.Logger) (result *engine.ProcessingResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			pe := safe.NewPanicError(r, debug.Stack())
			logger.Error("stage panicked", slog.String("panic", pe.Error()))
			err = engine.Permanent(pe)
		}
	}()
	return p.Process(ctx, pc)
}

func (c *Coordinator) handleFailure(ctx context.Context, p engine.Processor, pc *engine.ProcessingContext, logger *slog.Logger, procErr error, start time.Time) *engine.ProcessingResult {
	stageName := p.Stage().Name()
	kind := engine.Classify(procErr)

	errorID := retry.NewRequestID()
	pc.ErrorID = errorID
	_ = c.Store.LogError(ctx, &engine.ErrorLogEntry{
		ErrorID:        errorID,
		CorrelationID:  pc.CorrelationID,
		Stage:          stageName,
		DocumentID:     pc.DocumentID.String(),
		Classification: kind,
		RetryAttempt:   pc.RetryAttempt,
		Message:        procErr.Error(),
	})

	if kind != engine.ErrorKindTransient {
		logger.Error("stage failed permanently", slog.String("err", procErr.Error()))
		c.record(ctx, pc, stageName, start, false)
		return c.fail(ctx, p, pc, logger, procErr, start)
	}

	policy := c.policyFor(stageName)
	if pc.RetryAttempt >= policy.MaxRetries {
		logger.Error("stage exhausted retries", slog.Int("max_retries", policy.MaxRetries))
		c.record(ctx, pc, stageName, start, false)
		return c.fail(ctx, p, pc, logger, procErr, start)
	}

	if pc.RetryAttempt == 0 {
		// Step 2 of the hybrid policy: first failure retries synchronously
		// in-process after the base delay.
		delay := policy.BackoffDelay(pc.RetryAttempt)
		logger.Warn("transient failure, retrying synchronously", slog.Duration("delay", delay))
		select {
		case <-ctx.Done():
			return c.fail(ctx, p, pc, logger, engine.NewStageError(engine.ErrorKindPermanent, ctx.Err()), start)
		case <-time.After(delay):
		}
		pc.RetryAttempt++
		return c.SafeProcess(ctx, p, pc)
	}

	// Subsequent failures escalate to a background retry and return
	// in_progress to the caller, per spec.md §4.2 step 3.
	nextAttempt := pc.RetryAttempt + 1
	correlationID := retry.CorrelationID(pc.RequestID, stageName, nextAttempt)
	notBefore := time.Now().Add(policy.BackoffDelay(pc.RetryAttempt))

	scheduled := false
	if c.Broker == nil {
		logger.Warn("no background retry broker configured, retrying synchronously")
	} else {
		task := retry.Task{
			DocumentID:    pc.DocumentID,
			Stage:         stageName,
			RequestID:     pc.RequestID,
			Attempt:       nextAttempt,
			CorrelationID: correlationID,
			NotBefore:     notBefore,
		}
		if err := retry.Schedule(ctx, c.Broker, task); err != nil {
			logger.Warn("background retry unavailable, retrying synchronously", slog.String("err", err.Error()))
		} else {
			scheduled = true
		}
	}

	if !scheduled {
		// If the retry orchestrator is unavailable, fall back to an
		// in-process synchronous retry rather than reclassifying the
		// failure as permanent, per spec.md §4.2's last paragraph.
		select {
		case <-ctx.Done():
			return c.fail(ctx, p, pc, logger, engine.NewStageError(engine.ErrorKindPermanent, ctx.Err()), start)
		case <-time.After(policy.BackoffDelay(pc.RetryAttempt)):
		}
		pc.RetryAttempt = nextAttempt
		return c.SafeProcess(ctx, p, pc)
	}

	logger.Info("scheduled background retry", slog.String("next_correlation_id", correlationID))
	result := engine.InProgress(p.Name(), correlationID)
	_ = c.Store.PutStageStatus(ctx, &engine.StageStatusRow{
		DocumentID:    pc.DocumentID,
		StageName:     stageName,
		Status:        engine.StatusInProgress,
		NextAttemptAt: &notBefore,
		RetryAttempt:  nextAttempt,
		CorrelationID: correlationID,
	})
	c.record(ctx, pc, stageName, start, false)
	return result
}

func (c *Coordinator) fail(ctx context.Context, p engine.Processor, pc *engine.ProcessingContext, logger *slog.Logger, err error, start time.Time) *engine.ProcessingResult {
	_ = ctx
	_ = logger
	result := engine.Failed(p.Name(), err, time.Since(start))
	result.CorrelationID = pc.CorrelationID
	return result
}

func (c *Coordinator) record(ctx context.Context, pc *engine.ProcessingContext, stageName string, start time.Time, success bool) {
	if c.Telemetry == nil {
		return
	}
	c.Telemetry.RecordStage(ctx, telemetry.StageMetric{
		DocumentID:     pc.DocumentID.String(),
		Stage:          stageName,
		ProcessingTime: time.Since(start),
		Success:        success,
		CorrelationID:  pc.CorrelationID,
	})
}
