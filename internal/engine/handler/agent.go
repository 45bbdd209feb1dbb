package handler

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/kode4food/stepflow/internal/client"
	"github.com/kode4food/stepflow/pkg/api"
)

// Agent performs a unit of work selected by the agent_type setting
type Agent struct {
	deps  Dependencies
	types subtypes
}

// Agent sub-types
const (
	AgentTextGeneration = "text-generation"
	AgentDataProcessing = "data-processing"
	AgentAPICall        = "api-call"
	AgentScript         = "script"
)

var ErrUnknownAgentType = errors.New("unknown agent type")

var _ Handler = (*Agent)(nil)

// NewAgent returns an Agent with the built-in sub-types registered
func NewAgent(deps Dependencies) *Agent {
	a := &Agent{
		deps:  deps.withDefaults(),
		types: newSubtypes(ConfigAgentType, ErrUnknownAgentType),
	}
	a.Register(AgentTextGeneration, a.textGeneration)
	a.Register(AgentDataProcessing, a.dataProcessing)
	a.Register(AgentAPICall, a.apiCall)
	a.Register(AgentScript, a.script)
	return a
}

// Register adds or replaces an agent sub-type. It must be called before
// the Agent is placed in a Registry
func (a *Agent) Register(name string, fn HandlerFunc) {
	a.types.register(name, fn)
}

// Types returns the registered agent sub-types
func (a *Agent) Types() []string {
	return a.types.names()
}

func (a *Agent) Execute(
	ctx context.Context, step *api.Step, in api.Context,
) (api.Args, error) {
	return a.types.execute(ctx, step, in)
}

func (a *Agent) textGeneration(
	_ context.Context, step *api.Step, _ api.Context,
) (api.Args, error) {
	prompt := step.Config.GetString("prompt", step.Label)
	return api.Args{
		"text":   fmt.Sprintf("Generated response for: %s", prompt),
		"tokens": len(strings.Fields(prompt)),
		"model":  step.Config.GetString("model", "simulated"),
	}, nil
}

func (a *Agent) dataProcessing(
	_ context.Context, _ *api.Step, in api.Context,
) (api.Args, error) {
	sources := slices.Sorted(maps.Keys(in))
	fields := 0
	for _, out := range in {
		fields += len(out)
	}
	return api.Args{
		"processed": true,
		"sources":   sources,
		"records":   len(sources),
		"fields":    fields,
	}, nil
}

func (a *Agent) apiCall(
	ctx context.Context, step *api.Step, in api.Context,
) (api.Args, error) {
	url := step.Config.GetString("url", "")
	if url == "" {
		return api.Args{
			"status_code": http.StatusOK,
			"data":        map[string]any{},
			"simulated":   true,
		}, nil
	}

	method := strings.ToUpper(step.Config.GetString("method", http.MethodGet))
	req := &client.Request{
		Method: method,
		URL:    url,
		StepID: step.ID,
	}
	if method != http.MethodGet {
		req.Body = in
	}

	resp, err := a.deps.Client.Call(ctx, req)
	if err != nil {
		return nil, err
	}
	return api.Args{
		"status_code": resp.StatusCode,
		"data":        resp.Value(),
	}, nil
}

func (a *Agent) script(
	ctx context.Context, step *api.Step, in api.Context,
) (api.Args, error) {
	src := step.Config.GetString("script", "")
	if src == "" {
		return nil, missingConfig(step, "script")
	}
	return a.deps.Scripts.Execute(ctx, src, in, step.Config)
}
