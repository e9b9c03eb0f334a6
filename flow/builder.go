package flow

import (
	"context"
	"errors"
)

// Builder assembles a fixed sequential chain of Node[any, any] steps, the
// shape internal/pipeline.RunStagesFrom uses to thread a single
// *engine.ProcessingContext through one stage after another: each Then call
// appends one stage, Build freezes the chain into a single runnable Node.
type Builder struct {
	nodes []Node[any, any]
	errs  []error
	built bool
}

func NewBuilder() *Builder {
	return &Builder{}
}

// Then appends node to the chain. A nil node is ignored so callers can build
// a chain conditionally without an extra branch at each call site.
func (b *Builder) Then(node Node[any, any]) *Builder {
	if b.built {
		b.recordError(errors.New("cannot modify builder: flow already built"))
		return b
	}
	if node != nil {
		b.nodes = append(b.nodes, node)
	}
	return b
}

func (b *Builder) recordError(err error) {
	if err != nil {
		b.errs = append(b.errs, err)
	}
}

func (b *Builder) validate() error {
	if len(b.errs) != 0 {
		return errors.Join(b.errs...)
	}
	if len(b.nodes) == 0 {
		return errors.New("flow must contain at least one node: current flow is empty")
	}
	return nil
}

// Build validates the accumulated chain and returns it as a single Node.
// Build can only be called once; the Builder is immutable afterward.
func (b *Builder) Build() (Node[any, any], error) {
	if b.built {
		return nil, errors.New("builder already built: Build() can only be called once")
	}
	b.built = true
	if err := b.validate(); err != nil {
		return nil, err
	}
	return chain(b.nodes), nil
}

// chain runs a fixed sequence of nodes, passing each node's output as the
// next node's input, and stops at the first error.
type chain []Node[any, any]

func (c chain) Run(ctx context.Context, input any) (any, error) {
	output := input
	for _, node := range c {
		var err error
		output, err = node.Run(ctx, output)
		if err != nil {
			return nil, err
		}
	}
	return output, nil
}
