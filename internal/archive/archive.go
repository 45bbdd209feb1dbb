package archive

import (
	"context"
	"errors"

	"github.com/kode4food/stepflow/pkg/api"
)

// Sink persists finished run snapshots
type Sink interface {
	Put(ctx context.Context, st *api.RunState) error
	Get(ctx context.Context, id api.RunID) (*api.RunState, error)
	Close() error
}

var (
	ErrNotFound     = errors.New("archived run not found")
	ErrSinkRequired = errors.New("at least one sink is required")
)

// First returns the run from the first sink that has it
func First(
	ctx context.Context, id api.RunID, sinks ...Sink,
) (*api.RunState, error) {
	for _, s := range sinks {
		st, err := s.Get(ctx, id)
		if err == nil {
			return st, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}
