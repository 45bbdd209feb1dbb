package builder

import (
	"maps"
	"regexp"
	"strings"

	"github.com/kode4food/stepflow/pkg/api"
)

// Step is an immutable builder for a single graph step
type Step struct {
	id       api.StepID
	label    string
	stepType api.StepType
	config   api.Args
}

var (
	camelCaseRegex = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	delimiterRegex = regexp.MustCompile(`[\s_]+`)
)

// NewStep creates a step builder whose ID is derived from the label
func NewStep(label string, stepType api.StepType) *Step {
	return &Step{
		id:       api.StepID(toKebabCase(label)),
		label:    label,
		stepType: stepType,
		config:   api.Args{},
	}
}

// Trigger creates a trigger step builder
func Trigger(label string) *Step {
	return NewStep(label, api.StepTypeTrigger)
}

// Agent creates an agent step builder of the given agent sub-type
func Agent(label, agentType string) *Step {
	return NewStep(label, api.StepTypeAgent).With("agent_type", agentType)
}

// Condition creates a condition step builder for the given expression
func Condition(label, expression string) *Step {
	return NewStep(label, api.StepTypeCondition).
		With("expression", expression)
}

// Action creates an action step builder of the given action sub-type
func Action(label, actionType string) *Step {
	return NewStep(label, api.StepTypeAction).With("action_type", actionType)
}

// WithID overrides the derived step ID
func (s *Step) WithID(id api.StepID) *Step {
	res := *s
	res.id = id
	return &res
}

// With sets a single configuration value
func (s *Step) With(name api.Name, value any) *Step {
	res := *s
	res.config = s.config.Set(name, value)
	return &res
}

// WithConfig merges the provided configuration values
func (s *Step) WithConfig(cfg api.Args) *Step {
	res := *s
	res.config = maps.Clone(s.config)
	if res.config == nil {
		res.config = api.Args{}
	}
	maps.Copy(res.config, cfg)
	return &res
}

// ID returns the step's identifier
func (s *Step) ID() api.StepID {
	return s.id
}

// Build produces the api.Step and validates it
func (s *Step) Build() (*api.Step, error) {
	step := &api.Step{
		ID:     s.id,
		Type:   s.stepType,
		Label:  s.label,
		Config: maps.Clone(s.config),
	}
	if err := step.Validate(); err != nil {
		return nil, err
	}
	return step, nil
}

func toKebabCase(s string) string {
	s = camelCaseRegex.ReplaceAllString(s, "${1}-${2}")
	s = delimiterRegex.ReplaceAllString(s, "-")
	return strings.Trim(strings.ToLower(s), "-")
}
