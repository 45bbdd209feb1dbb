package handler

import (
	"context"
	"time"

	"github.com/kode4food/stepflow/pkg/api"
)

// NewTrigger returns the trigger handler. It needs no upstream context
// and acknowledges with the time it fired
func NewTrigger(clock func() time.Time) Handler {
	return HandlerFunc(
		func(context.Context, *api.Step, api.Context) (api.Args, error) {
			return api.Args{
				"triggered": true,
				"timestamp": clock().UTC().Format(time.RFC3339Nano),
			}, nil
		},
	)
}
