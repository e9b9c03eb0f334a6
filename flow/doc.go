// Package flow is a small composable chain builder: a Node[I, O] transforms
// input to output, and a Builder strings a fixed sequence of Node[any, any]
// steps together into one runnable Node.
//
// internal/pipeline uses it to turn a requested stage list into a single
// chain that threads one *engine.ProcessingContext through each stage in
// order, stopping at the first error:
//
//	node, err := flow.NewBuilder().
//		Then(firstStage).
//		Then(secondStage).
//		Build()
//	if err != nil {
//		return err
//	}
//	result, err := node.Run(ctx, pc)
package flow
