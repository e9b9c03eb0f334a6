package lynx

import (
	"context"
	"errors"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/core/job"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

type Options struct {
	Jobs []job.Job
}

type Lynx struct {
	stopChan chan os.Signal
	jobs     []job.Job
}

func New(opt *Options) *Lynx {
	return &Lynx{
		jobs:     opt.Jobs,
		stopChan: make(chan os.Signal, 1),
	}
}

// Run starts every job, blocks until a termination signal arrives, then
// stops every job in turn. It is the top-level loop for a long-running
// process (e.g. krai's --serve mode) that owns a mix of an HTTP server and
// background jobs and needs one coordinated shutdown path for both.
func (l *Lynx) Run(ctx context.Context) error {
	if err := l.start(ctx); err != nil {
		return err
	}
	l.wait()
	return l.stop()
}

func (l *Lynx) start(ctx context.Context) error {
	slog.Info("lynx starting", slog.Int("jobs", len(l.jobs)))
	errs := make([]error, 0, len(l.jobs))
	for _, j := range l.jobs {
		err := j.Start(ctx)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (l *Lynx) wait() {
	slog.Info("lynx waiting for shutdown signal")
	signal.Notify(l.stopChan, syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
	<-l.stopChan
	close(l.stopChan)
}

func (l *Lynx) stop() error {
	slog.Info("lynx stopping", slog.Int("jobs", len(l.jobs)))
	errs := make([]error, 0, len(l.jobs))
	for _, j := range l.jobs {
		err := j.Stop()
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
