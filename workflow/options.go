package workflow

import "time"

// DefaultMaxIterations is the per-workflow superstep cap applied when
// Options.MaxIterations is left at its zero value.
const DefaultMaxIterations = 100

// Options configures a Runner, assembled via functional Option values
// passed to NewRunner.
type Options struct {
	MaxIterations          int
	CheckpointStore        CheckpointStore
	Observer               Observer
	Metrics                Metrics
	CostTracker            CostTracker
	MaxConcurrentExecutors int
	BackpressureTimeout    time.Duration
}

// Option mutates an in-progress Options during NewRunner construction.
type Option func(*Options) error

// WithMaxIterations overrides DefaultMaxIterations.
func WithMaxIterations(n int) Option {
	return func(o *Options) error {
		if n <= 0 {
			return newError(ErrCodeMaxIterationsExceeded, "max iterations must be positive")
		}
		o.MaxIterations = n
		return nil
	}
}

// WithCheckpointStore wires a CheckpointStore into the Runner. Runner-level
// checkpointing is independent of Builder.WithCheckpointing: either may
// supply the store; Runner's takes precedence when both are set, letting
// callers reuse one Workflow across runs with different stores.
func WithCheckpointStore(store CheckpointStore) Option {
	return func(o *Options) error {
		o.CheckpointStore = store
		return nil
	}
}

// WithObserver wires an ambient Observer that receives every Event
// alongside the caller's own Run/Resume stream.
func WithObserver(obs Observer) Option {
	return func(o *Options) error {
		o.Observer = obs
		return nil
	}
}

// WithMetrics wires an ambient Metrics sink.
func WithMetrics(m Metrics) Option {
	return func(o *Options) error {
		o.Metrics = m
		return nil
	}
}

// WithCostTracker wires an ambient CostTracker sink, consulted by
// AgentExecutor after every chat-client call.
func WithCostTracker(ct CostTracker) Option {
	return func(o *Options) error {
		o.CostTracker = ct
		return nil
	}
}

// WithMaxConcurrentExecutors bounds how many executors' handlers may run
// concurrently within one superstep. Zero (the default) means unbounded —
// every target with ready messages runs its handler concurrently via
// errgroup.
func WithMaxConcurrentExecutors(n int) Option {
	return func(o *Options) error {
		if n < 0 {
			return newError(ErrCodeMaxIterationsExceeded, "max concurrent executors must be non-negative")
		}
		o.MaxConcurrentExecutors = n
		return nil
	}
}

// WithBackpressureTimeout records d as Options.BackpressureTimeout. The
// Runner does not read this value: a handler waiting for a concurrency
// slot (see WithMaxConcurrentExecutors) always waits until one frees.
func WithBackpressureTimeout(d time.Duration) Option {
	return func(o *Options) error {
		o.BackpressureTimeout = d
		return nil
	}
}

func newOptions(opts ...Option) (Options, error) {
	o := Options{MaxIterations: DefaultMaxIterations}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return Options{}, err
		}
	}
	return o, nil
}
