package builder

import (
	"slices"

	"github.com/kode4food/stepflow/pkg/api"
)

// Graph is an immutable builder for a step graph
type Graph struct {
	steps       []*Step
	connections []*api.Connection
}

// NewGraph creates an empty graph builder
func NewGraph() *Graph {
	return &Graph{}
}

// Add appends steps to the graph in declaration order
func (g *Graph) Add(steps ...*Step) *Graph {
	res := *g
	res.steps = append(slices.Clone(g.steps), steps...)
	return &res
}

// Connect declares that target runs after source
func (g *Graph) Connect(source, target api.StepID) *Graph {
	res := *g
	res.connections = append(slices.Clone(g.connections), &api.Connection{
		Source: source,
		Target: target,
	})
	return &res
}

// Chain adds the steps and connects each one to the next
func (g *Graph) Chain(steps ...*Step) *Graph {
	res := g.Add(steps...)
	for i := 1; i < len(steps); i++ {
		res = res.Connect(steps[i-1].ID(), steps[i].ID())
	}
	return res
}

// Build produces a validated api.Graph
func (g *Graph) Build() (*api.Graph, error) {
	res := &api.Graph{
		Steps:       make([]*api.Step, 0, len(g.steps)),
		Connections: make([]*api.Connection, 0, len(g.connections)),
	}
	for _, s := range g.steps {
		step, err := s.Build()
		if err != nil {
			return nil, err
		}
		res.Steps = append(res.Steps, step)
	}
	for _, c := range g.connections {
		conn := *c
		res.Connections = append(res.Connections, &conn)
	}
	if err := res.Validate(); err != nil {
		return nil, err
	}
	return res, nil
}
