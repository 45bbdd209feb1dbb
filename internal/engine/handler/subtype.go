package handler

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/kode4food/stepflow/pkg/api"
)

// subtypes dispatches a step to one of several functions selected by a
// configuration key. Registration happens before the handler is shared
type subtypes struct {
	fns     map[string]HandlerFunc
	key     api.Name
	unknown error
}

func newSubtypes(key api.Name, unknown error) subtypes {
	return subtypes{
		fns:     map[string]HandlerFunc{},
		key:     key,
		unknown: unknown,
	}
}

func (s subtypes) register(name string, fn HandlerFunc) {
	s.fns[name] = fn
}

func (s subtypes) names() []string {
	return slices.Sorted(maps.Keys(s.fns))
}

func (s subtypes) execute(
	ctx context.Context, step *api.Step, in api.Context,
) (api.Args, error) {
	name := step.Config.GetString(s.key, "")
	if name == "" {
		return nil, missingConfig(step, s.key)
	}
	fn, ok := s.fns[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", s.unknown, name)
	}
	if err := delay(ctx, step); err != nil {
		return nil, err
	}
	res, err := fn(ctx, step, in)
	if err != nil {
		return nil, err
	}
	return res.Set(s.key, name), nil
}

// delay honors the optional delay_ms setting, standing in for the
// latency of real work
func delay(ctx context.Context, step *api.Step) error {
	ms := step.Config.GetInt(ConfigDelay, 0)
	if ms <= 0 {
		return nil
	}
	t := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
