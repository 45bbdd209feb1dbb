package runopt

import "github.com/kode4food/stepflow/pkg/api"

type (
	// Options contains optional parameters for starting a run
	Options struct {
		RunID       api.RunID
		Subscribers []Subscriber
	}

	// Subscriber receives every snapshot of a run, starting with the first
	Subscriber func(*api.RunState)

	// Applier mutates Options during StartRun setup
	Applier func(*Options)
)

// DefaultOptions returns an Options instance with defaults applied
func DefaultOptions(apps ...Applier) *Options {
	opt := &Options{}
	ApplyOptions(opt, apps...)
	return opt
}

// ApplyOptions applies option appliers in order
func ApplyOptions(opt *Options, apps ...Applier) {
	for _, app := range apps {
		app(opt)
	}
}

// WithRunID uses the given id instead of generating one
func WithRunID(id api.RunID) Applier {
	return func(opt *Options) {
		opt.RunID = id
	}
}

// WithSubscriber registers a subscriber before the run begins, so that it
// observes every snapshot
func WithSubscriber(fn Subscriber) Applier {
	return func(opt *Options) {
		if fn != nil {
			opt.Subscribers = append(opt.Subscribers, fn)
		}
	}
}
