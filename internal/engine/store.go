package engine

import (
	"cmp"
	"log/slog"
	"slices"

	"github.com/kode4food/stepflow/internal/util"
	"github.com/kode4food/stepflow/pkg/api"
	"github.com/kode4food/stepflow/pkg/log"
)

// Store retains the latest snapshot of each run. Retention is bounded: once
// more than the configured number of runs are held, the least recently
// updated one is dropped
type Store struct {
	runs *util.LRUCache[*api.RunState]
}

// NewStore creates a Store holding at most size runs
func NewStore(size int) *Store {
	runs := util.NewLRUCache[*api.RunState](size)
	runs.OnEvict(func(_ string, st *api.RunState) {
		slog.Debug("Run evicted from store",
			log.RunID(st.ID),
			log.Status(st.Status))
	})
	return &Store{runs: runs}
}

// Put records st as the latest snapshot of its run
func (s *Store) Put(st *api.RunState) {
	s.runs.Put(string(st.ID), st)
}

// Get returns the latest snapshot of a run
func (s *Store) Get(id api.RunID) (*api.RunState, bool) {
	return s.runs.Peek(string(id))
}

// List returns the latest snapshot of every retained run, newest first
func (s *Store) List() []*api.RunState {
	res := s.runs.Values()
	sortRuns(res)
	return res
}

// Len returns the number of retained runs
func (s *Store) Len() int {
	return s.runs.Len()
}

func sortRuns(runs []*api.RunState) {
	slices.SortFunc(runs, func(l, r *api.RunState) int {
		if c := r.StartedAt.Compare(l.StartedAt); c != 0 {
			return c
		}
		return cmp.Compare(r.ID, l.ID)
	})
}
