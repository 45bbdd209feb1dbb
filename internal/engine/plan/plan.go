package plan

import (
	"errors"
	"fmt"

	"github.com/kode4food/stepflow/pkg/api"
)

var ErrCycleDetected = errors.New("cycle detected in step graph")

// Order validates the graph and returns its step IDs in a topological order
// using Kahn's algorithm. Steps that become ready at the same time run in the
// order they were discovered: initial steps in declaration order, then
// successors in connection declaration order. A graph with a cycle fails
// with ErrCycleDetected and yields no partial order
func Order(g *api.Graph) ([]api.StepID, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	inDegree := make(map[api.StepID]int, len(g.Steps))
	successors := make(map[api.StepID][]api.StepID, len(g.Steps))
	for _, s := range g.Steps {
		inDegree[s.ID] = 0
	}
	for _, c := range g.Connections {
		inDegree[c.Target]++
		successors[c.Source] = append(successors[c.Source], c.Target)
	}

	queue := make([]api.StepID, 0, len(g.Steps))
	for _, s := range g.Steps {
		if inDegree[s.ID] == 0 {
			queue = append(queue, s.ID)
		}
	}

	res := make([]api.StepID, 0, len(g.Steps))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		res = append(res, id)

		for _, next := range successors[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(res) < len(g.Steps) {
		return nil, fmt.Errorf("%w: %v", ErrCycleDetected, blocked(g, inDegree))
	}
	return res, nil
}

func blocked(g *api.Graph, inDegree map[api.StepID]int) []api.StepID {
	var res []api.StepID
	for _, s := range g.Steps {
		if inDegree[s.ID] > 0 {
			res = append(res, s.ID)
		}
	}
	return res
}
