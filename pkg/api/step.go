package api

import (
	"errors"
	"fmt"

	"github.com/kode4food/stepflow/pkg/util"
)

type (
	// StepType selects the handler that executes a step
	StepType string

	// Step is one unit of work in a workflow graph
	Step struct {
		Config Args     `json:"config,omitempty" yaml:"config,omitempty"`
		ID     StepID   `json:"id" yaml:"id"`
		Type   StepType `json:"type" yaml:"type"`
		Label  string   `json:"label,omitempty" yaml:"label,omitempty"`
	}

	// Connection declares that the target step runs after the source step
	// and may consume its output
	Connection struct {
		Source StepID `json:"source" yaml:"source"`
		Target StepID `json:"target" yaml:"target"`
	}

	// Graph is the static input to a run: a set of steps and the directed
	// connections between them
	Graph struct {
		Steps       []*Step       `json:"steps" yaml:"steps"`
		Connections []*Connection `json:"connections" yaml:"connections"`
	}
)

const (
	StepTypeTrigger   StepType = "trigger"
	StepTypeAgent     StepType = "agent"
	StepTypeCondition StepType = "condition"
	StepTypeAction    StepType = "action"
)

var (
	ErrInvalidGraph  = errors.New("invalid graph")
	ErrGraphNil      = errors.New("graph is nil")
	ErrStepNil       = errors.New("step is nil")
	ErrStepIDEmpty   = errors.New("step ID empty")
	ErrStepTypeEmpty = errors.New("step type empty")
	ErrDuplicateStep = errors.New("duplicate step ID")
	ErrConnectionNil = errors.New("connection is nil")
	ErrSelfLoop      = errors.New("connection is a self-loop")
	ErrMissingSource = errors.New("connection source not found")
	ErrMissingTarget = errors.New("connection target not found")
)

// Validate checks that a step carries the fields every handler relies on
func (s *Step) Validate() error {
	if s == nil {
		return ErrStepNil
	}
	if s.ID == "" {
		return ErrStepIDEmpty
	}
	if s.Type == "" {
		return fmt.Errorf("%w: %s", ErrStepTypeEmpty, s.ID)
	}
	return nil
}

// Validate checks the graph for structural problems: empty or duplicate step
// IDs, self-loops, and connections that reference unknown steps. Every
// returned error wraps ErrInvalidGraph
func (g *Graph) Validate() error {
	if g == nil {
		return fmt.Errorf("%w: %w", ErrInvalidGraph, ErrGraphNil)
	}
	ids := make(util.Set[StepID], len(g.Steps))
	for _, s := range g.Steps {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidGraph, err)
		}
		if ids.Contains(s.ID) {
			return fmt.Errorf("%w: %w: %s", ErrInvalidGraph, ErrDuplicateStep, s.ID)
		}
		ids.Add(s.ID)
	}

	for _, c := range g.Connections {
		if c == nil {
			return fmt.Errorf("%w: %w", ErrInvalidGraph, ErrConnectionNil)
		}
		if c.Source == c.Target {
			return fmt.Errorf("%w: %w: %s", ErrInvalidGraph, ErrSelfLoop, c.Source)
		}
		if !ids.Contains(c.Source) {
			return fmt.Errorf("%w: %w: %s", ErrInvalidGraph, ErrMissingSource, c.Source)
		}
		if !ids.Contains(c.Target) {
			return fmt.Errorf("%w: %w: %s", ErrInvalidGraph, ErrMissingTarget, c.Target)
		}
	}
	return nil
}

// Step returns the step with the given ID, if present
func (g *Graph) Step(id StepID) (*Step, bool) {
	for _, s := range g.Steps {
		if s != nil && s.ID == id {
			return s, true
		}
	}
	return nil, false
}
