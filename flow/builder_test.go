package flow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderRunsStagesInOrder(t *testing.T) {
	var order []string
	upload := Processor[any, any](func(_ context.Context, input any) (any, error) {
		order = append(order, "upload")
		return input, nil
	})
	classify := Processor[any, any](func(_ context.Context, input any) (any, error) {
		order = append(order, "classify")
		return strings.ToUpper(input.(string)), nil
	})

	node, err := NewBuilder().Then(upload).Then(classify).Build()
	require.NoError(t, err)

	result, err := node.Run(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "DOC-1", result)
	assert.Equal(t, []string{"upload", "classify"}, order)
}

func TestBuilderStopsAtFirstError(t *testing.T) {
	boom := errors.New("extraction failed")
	var ran []string
	first := Processor[any, any](func(_ context.Context, input any) (any, error) {
		ran = append(ran, "first")
		return nil, boom
	})
	second := Processor[any, any](func(_ context.Context, input any) (any, error) {
		ran = append(ran, "second")
		return input, nil
	})

	node, err := NewBuilder().Then(first).Then(second).Build()
	require.NoError(t, err)

	_, err = node.Run(context.Background(), "doc-1")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"first"}, ran)
}

func TestBuilderThenIgnoresNilNode(t *testing.T) {
	node := Processor[any, any](func(_ context.Context, input any) (any, error) { return input, nil })
	b := NewBuilder().Then(nil).Then(node)
	assert.Len(t, b.nodes, 1)
}

func TestBuilderBuildFailsWithNoStages(t *testing.T) {
	_, err := NewBuilder().Build()
	assert.Error(t, err)
}

func TestBuilderBuildOnlyOnce(t *testing.T) {
	node := Processor[any, any](func(_ context.Context, input any) (any, error) { return input, nil })
	b := NewBuilder().Then(node)

	_, err := b.Build()
	require.NoError(t, err)

	_, err = b.Build()
	assert.Error(t, err)
}
