package trigger

import (
	"context"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/core/worker"
)

type Trigger interface {
	AddWorkers(ctx context.Context, workers ...worker.Worker) (int, error)
}
