package retry

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/core/broker"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/core/message"
	xsync "github.com/Kunze-Ritter/Manual2Vector-sub004/pkg/sync"
)

// Rerunner re-invokes safe_process for a due background retry. It is
// supplied by internal/pipeline at wiring time so this package never
// imports internal/processor — the dependency points the other way
// (processor enqueues onto retry, retry calls back into the pipeline),
// avoiding an import cycle between the two.
type Rerunner func(ctx context.Context, documentID, stage string, attempt int, correlationID string) error

// SupervisorWorker adapts Rerunner into core/worker.StreamWorker's
// Sleep/Work shape; Supervisor.tick below hands it each consumed message.
type SupervisorWorker struct {
	rerun Rerunner
}

func NewSupervisorWorker(rerun Rerunner) *SupervisorWorker {
	return &SupervisorWorker{rerun: rerun}
}

func (w *SupervisorWorker) Sleep() { time.Sleep(500 * time.Millisecond) }

func (w *SupervisorWorker) Work(ctx context.Context, msg *message.Msg) ([]*message.Msg, error) {
	var t Task
	if err := msg.Unmarshal(&t); err != nil {
		slog.Error("retry supervisor: malformed task", slog.String("err", err.Error()))
		return nil, nil
	}
	if d := time.Until(t.NotBefore); d > 0 {
		time.Sleep(d)
	}
	if err := w.rerun(ctx, t.DocumentID.String(), t.Stage, t.Attempt, t.CorrelationID); err != nil {
		slog.Error("retry supervisor: rerun failed",
			slog.String("document_id", t.DocumentID.String()),
			slog.String("stage", t.Stage),
			slog.String("correlation_id", t.CorrelationID),
			slog.String("err", err.Error()))
	}
	return nil, nil
}

// Supervisor owns the background retry broker + bounded dispatch, grounded
// on core/scheduler.Scheduler's limiter-bounded consume/dispatch loop.
type Supervisor struct {
	broker  broker.Broker
	worker  *SupervisorWorker
	limiter *xsync.Limiter
	cancel  context.CancelFunc
}

func NewSupervisor(b broker.Broker, rerun Rerunner, maxConcurrent int) *Supervisor {
	return &Supervisor{
		broker:  b,
		worker:  NewSupervisorWorker(rerun),
		limiter: xsync.NewLimiter(maxConcurrent),
	}
}

func (s *Supervisor) Start(ctx context.Context) {
	nctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	xsync.Go(func() { s.run(nctx) })
}

func (s *Supervisor) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	_ = s.broker.Close()
}

func (s *Supervisor) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.limiter.Acquire()
		xsync.Go(func() {
			defer s.limiter.Release()
			if err := s.tick(ctx); err != nil {
				slog.Error("retry supervisor tick", slog.String("err", err.Error()))
			}
		})
	}
}

func (s *Supervisor) tick(ctx context.Context) error {
	msg, id, err := s.broker.Consume(ctx)
	if err != nil {
		return err
	}
	if msg == nil {
		s.worker.Sleep()
		return nil
	}
	if _, err := s.worker.Work(ctx, msg); err != nil {
		return err
	}
	return s.broker.Ack(ctx, id)
}

// Schedule enqueues a background retry task, per spec.md §4.2 step 3.
func Schedule(ctx context.Context, b broker.Broker, t Task) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return b.Produce(ctx, message.New(payload))
}
