package engine

import (
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/kode4food/stepflow/internal/engine/runopt"
	"github.com/kode4food/stepflow/pkg/api"
	"github.com/kode4food/stepflow/pkg/log"
)

type (
	// Notifier delivers run snapshots to per-run subscribers. Callbacks are
	// invoked synchronously, in subscription order, on the goroutine that
	// produced the snapshot
	Notifier struct {
		runs map[api.RunID]*subscribers
		next uint64
		mu   sync.Mutex
	}

	// Unsubscribe stops delivery to a subscriber. It is safe to call more
	// than once
	Unsubscribe func()

	subscribers struct {
		entries []*subscription
	}

	subscription struct {
		fn      runopt.Subscriber
		id      uint64
		removed atomic.Bool
	}
)

// NewNotifier creates an empty Notifier
func NewNotifier() *Notifier {
	return &Notifier{
		runs: map[api.RunID]*subscribers{},
	}
}

// Open begins accepting subscribers for a run
func (n *Notifier) Open(id api.RunID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.runs[id]; !ok {
		n.runs[id] = &subscribers{}
	}
}

// Subscribe registers fn for a run's future snapshots. It returns false
// when the run is not open, either because it never existed or because
// its terminal snapshot has already been delivered
func (n *Notifier) Subscribe(
	id api.RunID, fn runopt.Subscriber,
) (Unsubscribe, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	subs, ok := n.runs[id]
	if !ok {
		return func() {}, false
	}

	n.next++
	sub := &subscription{id: n.next, fn: fn}
	subs.entries = append(subs.entries, sub)
	return func() {
		sub.removed.Store(true)
		n.unsubscribe(id, sub.id)
	}, true
}

// Notify delivers st to the run's subscribers. After a terminal snapshot
// the run is closed and its subscribers are released
func (n *Notifier) Notify(st *api.RunState) {
	n.mu.Lock()
	subs, ok := n.runs[st.ID]
	var entries []*subscription
	if ok {
		entries = slices.Clone(subs.entries)
		if st.Status.IsTerminal() {
			delete(n.runs, st.ID)
		}
	}
	n.mu.Unlock()

	for _, sub := range entries {
		deliver(sub, st)
	}
}

// Subscribers returns the number of subscribers registered for a run
func (n *Notifier) Subscribers(id api.RunID) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	if subs, ok := n.runs[id]; ok {
		return len(subs.entries)
	}
	return 0
}

func (n *Notifier) unsubscribe(id api.RunID, subID uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	subs, ok := n.runs[id]
	if !ok {
		return
	}
	subs.entries = slices.DeleteFunc(subs.entries, func(s *subscription) bool {
		return s.id == subID
	})
}

func deliver(sub *subscription, st *api.RunState) {
	if sub.removed.Load() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Run subscriber panicked",
				log.RunID(st.ID),
				log.Status(st.Status),
				slog.Any("panic", r))
		}
	}()
	sub.fn(st)
}
