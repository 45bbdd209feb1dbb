package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kode4food/caravan"
	"github.com/kode4food/caravan/message"
	"github.com/kode4food/caravan/topic"

	"github.com/kode4food/stepflow/pkg/api"
	"github.com/kode4food/stepflow/pkg/log"
)

// Queue writes finished runs to its sinks in the background, one run at a
// time, in the order they were enqueued
type Queue struct {
	prod        topic.Producer[*api.RunState]
	cons        topic.Consumer[*api.RunState]
	sinks       []Sink
	stop        chan struct{}
	timeout     time.Duration
	wg          sync.WaitGroup
	startOnce   sync.Once
	stopOnce    sync.Once
	cleanupOnce sync.Once
}

const (
	maxRetries     = 3
	retryDelay     = 100 * time.Millisecond
	DefaultTimeout = 10 * time.Second
)

var ErrSinkPanicked = errors.New("archive sink panicked")

// NewQueue creates a Queue that writes to every given sink
func NewQueue(sinks ...Sink) (*Queue, error) {
	if len(sinks) == 0 {
		return nil, ErrSinkRequired
	}
	queue := caravan.NewTopic[*api.RunState]()
	return &Queue{
		prod:    queue.NewProducer(),
		cons:    queue.NewConsumer(),
		sinks:   sinks,
		stop:    make(chan struct{}),
		timeout: DefaultTimeout,
	}, nil
}

// Sinks returns the sinks this queue writes to
func (q *Queue) Sinks() []Sink {
	return q.sinks
}

// Start begins archiving queued runs
func (q *Queue) Start() {
	q.startOnce.Do(func() {
		q.wg.Go(func() {
			for {
				select {
				case <-q.stop:
					return
				case st, ok := <-q.cons.Receive():
					if !ok {
						return
					}
					q.archive(st)
				}
			}
		})
	})
}

// Enqueue schedules a run for archiving
func (q *Queue) Enqueue(st *api.RunState) {
	if st == nil {
		return
	}
	message.Send(q.prod, st)
}

// Flush archives everything still queued, stops the queue, and closes
// its sinks
func (q *Queue) Flush() {
	q.stopOnce.Do(func() {
		close(q.stop)
	})
	q.wg.Wait()
	q.cleanupOnce.Do(q.flush)
}

func (q *Queue) flush() {
	for {
		select {
		case st, ok := <-q.cons.Receive():
			if !ok {
				q.close()
				return
			}
			q.archive(st)
		default:
			q.close()
			return
		}
	}
}

func (q *Queue) close() {
	q.prod.Close()
	q.cons.Close()
	for _, s := range q.sinks {
		if err := s.Close(); err != nil {
			slog.Warn("Failed to close archive sink", log.Error(err))
		}
	}
}

func (q *Queue) archive(st *api.RunState) {
	for _, s := range q.sinks {
		q.archiveTo(s, st)
	}
}

func (q *Queue) archiveTo(s Sink, st *api.RunState) {
	for attempt := range maxRetries {
		err := q.tryPut(s, st)
		if err == nil {
			slog.Debug("Run archived",
				log.RunID(st.ID),
				slog.String("sink", fmt.Sprintf("%T", s)))
			return
		}
		slog.Error("Run archive failed",
			log.RunID(st.ID),
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", maxRetries),
			log.Error(err))
		if attempt < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	slog.Error("Run archive permanently failed",
		log.RunID(st.ID))
}

func (q *Queue) tryPut(s Sink, st *api.RunState) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrSinkPanicked, r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	return s.Put(ctx, st)
}
