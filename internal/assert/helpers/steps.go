package helpers

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kode4food/stepflow/pkg/api"
	"github.com/kode4food/stepflow/pkg/builder"
)

// NewMockStep creates a step routed to the MockHandler
func NewMockStep(id api.StepID) *builder.Step {
	return builder.NewStep(string(id), MockStepType).WithID(id)
}

// MockChain builds a linear graph of mock steps, each depending on the
// one before it
func MockChain(t *testing.T, ids ...api.StepID) *api.Graph {
	t.Helper()
	steps := make([]*builder.Step, len(ids))
	for i, id := range ids {
		steps[i] = NewMockStep(id)
	}
	g, err := builder.NewGraph().Chain(steps...).Build()
	require.NoError(t, err)
	return g
}

// MockGraph builds a graph of mock steps from an edge list of
// source/target pairs. Steps are declared in the order given by ids
func MockGraph(
	t *testing.T, ids []api.StepID, edges ...[2]api.StepID,
) *api.Graph {
	t.Helper()
	b := builder.NewGraph()
	for _, id := range ids {
		b = b.Add(NewMockStep(id))
	}
	for _, e := range edges {
		b = b.Connect(e[0], e[1])
	}
	g, err := b.Build()
	require.NoError(t, err)
	return g
}
