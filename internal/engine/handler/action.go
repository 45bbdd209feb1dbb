package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/kode4food/stepflow/internal/client"
	"github.com/kode4food/stepflow/pkg/api"
	"github.com/kode4food/stepflow/pkg/log"
)

// Action performs a side-effecting operation selected by the action_type
// setting
type Action struct {
	deps  Dependencies
	types subtypes
}

// Action sub-types
const (
	ActionEmail   = "email"
	ActionWebhook = "webhook"
	ActionStore   = "store"
	ActionLog     = "log"
)

var ErrUnknownActionType = errors.New("unknown action type")

var _ Handler = (*Action)(nil)

// NewAction returns an Action with the built-in sub-types registered
func NewAction(deps Dependencies) *Action {
	a := &Action{
		deps:  deps.withDefaults(),
		types: newSubtypes(ConfigActionType, ErrUnknownActionType),
	}
	a.Register(ActionEmail, a.email)
	a.Register(ActionWebhook, a.webhook)
	a.Register(ActionStore, a.store)
	a.Register(ActionLog, a.logLine)
	return a
}

// Register adds or replaces an action sub-type. It must be called before
// the Action is placed in a Registry
func (a *Action) Register(name string, fn HandlerFunc) {
	a.types.register(name, fn)
}

// Types returns the registered action sub-types
func (a *Action) Types() []string {
	return a.types.names()
}

func (a *Action) Execute(
	ctx context.Context, step *api.Step, in api.Context,
) (api.Args, error) {
	return a.types.execute(ctx, step, in)
}

func (a *Action) email(
	ctx context.Context, step *api.Step, _ api.Context,
) (api.Args, error) {
	to := step.Config.GetString("to", "")
	if to == "" {
		return nil, missingConfig(step, "to")
	}
	subject := step.Config.GetString("subject", step.Label)
	id := uuid.NewString()

	slog.InfoContext(ctx, "Email sent",
		log.RunID(RunIDFrom(ctx)),
		log.StepID(step.ID),
		slog.String("to", to),
		slog.String("message_id", id))

	return api.Args{
		"sent":       true,
		"to":         to,
		"subject":    subject,
		"message_id": id,
	}, nil
}

func (a *Action) webhook(
	ctx context.Context, step *api.Step, in api.Context,
) (api.Args, error) {
	url := step.Config.GetString("url", "")
	if url == "" {
		return nil, missingConfig(step, "url")
	}

	resp, err := a.deps.Client.Call(ctx, &client.Request{
		URL:    url,
		StepID: step.ID,
		Body: map[string]any{
			"run_id":  RunIDFrom(ctx),
			"step_id": step.ID,
			"context": in,
		},
	})
	if err != nil {
		return nil, err
	}

	res := api.Args{
		"delivered":   true,
		"status_code": resp.StatusCode,
		"response":    resp.Value(),
	}
	if path := step.Config.GetString("response_path", ""); path != "" {
		res["result"] = resp.Get(path).Value()
	}
	return res, nil
}

func (a *Action) store(
	ctx context.Context, step *api.Step, in api.Context,
) (api.Args, error) {
	key := step.Config.GetString("key", "")
	if key == "" {
		key = fmt.Sprintf("%s/%s", RunIDFrom(ctx), step.ID)
	}

	var value any = in
	if v, ok := step.Config["value"]; ok {
		value = v
	}

	if err := a.deps.Store.Put(ctx, key, value); err != nil {
		return nil, err
	}
	return api.Args{
		"stored": true,
		"key":    key,
	}, nil
}

func (a *Action) logLine(
	ctx context.Context, step *api.Step, in api.Context,
) (api.Args, error) {
	msg := step.Config.GetString("message", step.Label)
	name := step.Config.GetString("level", "info")
	lvl, ok := log.ParseLevel(name)
	if !ok {
		return nil, invalidConfig(step, "level", name)
	}

	slog.Log(ctx, lvl, msg,
		log.RunID(RunIDFrom(ctx)),
		log.StepID(step.ID),
		slog.Any("context_keys", slices.Sorted(maps.Keys(in))))

	return api.Args{
		"logged":  true,
		"message": msg,
	}, nil
}
