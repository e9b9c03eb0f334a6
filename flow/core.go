package flow

import "context"

// Node is a processing step that transforms input to output. The generic
// parameters let a stage-chain mix concrete types at the edges while the
// chain itself moves values through as any.
type Node[I any, O any] interface {
	Run(ctx context.Context, input I) (O, error)
}

// Processor adapts a plain function into a Node, the common case for a
// stage body that has no other state to carry.
type Processor[I any, O any] func(context.Context, I) (O, error)

func (p Processor[I, O]) Run(ctx context.Context, input I) (O, error) {
	return p(ctx, input)
}

// Middleware wraps a Node with additional behavior (timing, logging,
// retries) while preserving its input/output types.
type Middleware[I any, O any] func(Node[I, O]) Node[I, O]
