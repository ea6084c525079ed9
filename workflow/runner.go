package workflow

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Runner drives a Workflow's superstep loop: each superstep steps a whole
// batch of independently-stateful Executors at once, rather than one node
// at a time over shared state, bounded by Options.MaxConcurrentExecutors
// via golang.org/x/sync/errgroup.
type Runner struct {
	wf   *Workflow
	opts Options
}

// NewRunner constructs a Runner for wf, applying opts in order. wf's own
// Builder.WithCheckpointing store is used unless an Option supplies a
// different one.
func NewRunner(wf *Workflow, opts ...Option) (*Runner, error) {
	o, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}
	if o.CheckpointStore == nil {
		o.CheckpointStore = wf.checkpointStore
	}
	return &Runner{wf: wf, opts: o}, nil
}

// RunHandle is the live handle to a Workflow run, carrying its event
// stream and providing SendResponses for request-info interrupts.
type RunHandle struct {
	RunID string

	events chan Event
	wake   chan struct{}

	mu       sync.Mutex
	finalErr error
	done     bool
	doneCh   chan struct{}

	mb *mailbox
}

// Events returns the channel of Events produced by this run, closed when
// the run completes or fails.
func (h *RunHandle) Events() <-chan Event { return h.events }

// Err returns the terminal error of the run, if any, after the Events
// channel has closed: nil on success, the same error carried by the
// WorkflowFailedEvent when the run failed, or the context's error when the
// run was cancelled. The runner never crashes the host process; handler
// errors that do not terminate the workflow appear only as
// ExecutorFailed events.
func (h *RunHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.finalErr
}

// SendResponses injects one or more request-info responses, keyed by
// request id, and wakes the runner if it is parked waiting on pending
// requests. Injecting for an unknown or already-satisfied request id
// returns an error without affecting the workflow.
func (h *RunHandle) SendResponses(responses map[string]any) error {
	for id, payload := range responses {
		if err := h.mb.InjectResponse(id, payload); err != nil {
			return err
		}
	}
	select {
	case h.wake <- struct{}{}:
	default:
	}
	return nil
}

// Run starts a new workflow run with the given input delivered to the
// start executor as its initial message, and returns immediately with a
// RunHandle streaming events.
func (r *Runner) Run(ctx context.Context, runID string, input any) *RunHandle {
	if runID == "" {
		runID = uuid.NewString()
	}
	mb := newMailbox()
	mb.Enqueue(Message{
		TargetExecutorID: r.wf.startExecutorID,
		Payload:          input,
		PayloadType:      reflect.TypeOf(input),
		TraceCtx:         ctx,
	})
	return r.start(ctx, runID, mb, 0)
}

// Resume reconstructs run state from the checkpoint identified by
// checkpointID (empty string means "latest" for runID) and continues
// execution from its recorded superstep index + 1.
func (r *Runner) Resume(ctx context.Context, runID, checkpointID string) (*RunHandle, error) {
	if r.opts.CheckpointStore == nil {
		return nil, &WorkflowCheckpointException{Code: ErrCodeCheckpointNotFound, Message: "no checkpoint store configured"}
	}
	if checkpointID == "" {
		ids, err := r.opts.CheckpointStore.List(runID)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return nil, &WorkflowCheckpointException{Code: ErrCodeCheckpointNotFound, Message: fmt.Sprintf("no checkpoints for run %q", runID)}
		}
		checkpointID = ids[len(ids)-1]
	}
	cp, err := r.opts.CheckpointStore.Load(checkpointID)
	if err != nil {
		return nil, err
	}
	if cp.SchemaVersion != CheckpointSchemaVersion {
		return nil, &WorkflowCheckpointException{Code: ErrCodeCheckpointSchema, Message: fmt.Sprintf("checkpoint schema %d != expected %d", cp.SchemaVersion, CheckpointSchemaVersion)}
	}

	mb := newMailbox()
	pending, err := decodePendingMessages(cp.PendingMessages)
	if err != nil {
		return nil, err
	}
	mb.restoreNext(pending)

	requests, err := decodePendingRequests(cp.PendingRequests)
	if err != nil {
		return nil, err
	}
	mb.restorePendingRequests(requests)

	for id, exec := range r.wf.executors {
		encoded, ok := cp.ExecutorStates[id]
		if !ok {
			continue
		}
		data, decErr := decodeBase64(encoded)
		if decErr != nil {
			return nil, &WorkflowCheckpointException{Code: ErrCodeCheckpointSchema, Message: fmt.Sprintf("decode state for %q", id), Cause: decErr}
		}
		if restoreErr := exec.RestoreState(data); restoreErr != nil {
			return nil, &WorkflowCheckpointException{Code: ErrCodeCheckpointSchema, Message: fmt.Sprintf("restore state for %q", id), Cause: restoreErr}
		}
	}

	return r.start(ctx, runID, mb, cp.SuperstepIndex+1), nil
}

func (r *Runner) start(ctx context.Context, runID string, mb *mailbox, startStep int) *RunHandle {
	h := &RunHandle{
		RunID:  runID,
		events: make(chan Event, 64),
		wake:   make(chan struct{}, 1),
		doneCh: make(chan struct{}),
		mb:     mb,
	}
	go r.loop(ctx, runID, mb, startStep, h)
	return h
}

// emit forwards e to the RunHandle's channel and the ambient Observer, if
// configured, preserving emission order (Testable Invariant 5).
func (r *Runner) emit(h *RunHandle, e Event) {
	h.events <- e
	if r.opts.Observer != nil {
		r.opts.Observer.Observe(e)
	}
}

func (r *Runner) loop(ctx context.Context, runID string, mb *mailbox, startStep int, h *RunHandle) {
	defer close(h.events)

	step := startStep
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			h.finalErr = ctx.Err()
			h.mu.Unlock()
			return
		default:
		}

		ready := mb.DrainReadyForSuperstep()
		for _, rd := range mb.TakeReadyResponses() {
			ready = append(ready, Message{
				TargetExecutorID: rd.entry.SourceExecutorID,
				Payload:          rd.payload,
				PayloadType:      reflect.TypeOf(rd.payload),
				IsResponse:       true,
				RequestID:        rd.entry.RequestID,
				TraceCtx:         ctx,
			})
		}

		if len(ready) == 0 {
			if mb.PendingRequestCount() == 0 {
				r.emit(h, Event{Kind: EventWorkflowCompleted})
				return
			}
			// Parked waiting on external input: no forced polling, just
			// block for a wake signal from SendResponses or cancellation.
			select {
			case <-h.wake:
				continue
			case <-ctx.Done():
				h.mu.Lock()
				h.finalErr = ctx.Err()
				h.mu.Unlock()
				return
			}
		}

		if step >= r.opts.MaxIterations {
			err := newError(ErrCodeMaxIterationsExceeded, fmt.Sprintf("exceeded %d supersteps without completing", r.opts.MaxIterations))
			r.emit(h, Event{Kind: EventWorkflowFailed, Error: err})
			h.mu.Lock()
			h.finalErr = err
			h.mu.Unlock()
			return
		}

		r.emit(h, Event{Kind: EventSuperStepStarted, StepIndex: step})

		fatal, fatalErr := r.runSuperstep(ctx, runID, step, mb, ready, h)

		r.emit(h, Event{Kind: EventSuperStepCompleted, StepIndex: step})

		if r.opts.CheckpointStore != nil {
			cpStart := time.Now()
			cp, err := buildCheckpoint(r.wf, mb, runID, step, mb.PeekNext())
			if err == nil {
				_, err = r.opts.CheckpointStore.Save(cp)
			}
			if r.opts.Metrics != nil {
				r.opts.Metrics.RecordCheckpointWrite(time.Since(cpStart).Milliseconds())
			}
			if err != nil {
				r.emit(h, Event{Kind: EventWorkflowFailed, Error: err})
				h.mu.Lock()
				h.finalErr = err
				h.mu.Unlock()
				return
			}
		}

		if fatal {
			r.emit(h, Event{Kind: EventWorkflowFailed, Error: fatalErr})
			h.mu.Lock()
			h.finalErr = fatalErr
			h.mu.Unlock()
			return
		}

		step++
	}
}

// runSuperstep groups ready by target executor, runs each target's
// handlers (serially per target, concurrently across targets) and merges
// their output into mb for the next step. Returns whether a fatal,
// workflow-terminating error occurred.
func (r *Runner) runSuperstep(ctx context.Context, runID string, step int, mb *mailbox, ready []Message, h *RunHandle) (bool, error) {
	byTarget := make(map[string][]Message)
	for _, m := range ready {
		byTarget[m.TargetExecutorID] = append(byTarget[m.TargetExecutorID], m)
	}

	targets := make([]string, 0, len(byTarget))
	for t := range byTarget {
		targets = append(targets, t)
	}
	sort.Strings(targets)

	if r.opts.Metrics != nil {
		r.opts.Metrics.RecordMailboxDepth(len(ready))
	}

	limit := r.opts.MaxConcurrentExecutors
	if limit <= 0 {
		limit = len(targets)
		if limit == 0 {
			limit = 1
		}
	}
	sem := make(chan struct{}, limit)

	g, _ := errgroup.WithContext(ctx)
	var mu sync.Mutex
	var fatalErr error
	fatal := false

	for _, tid := range targets {
		tid := tid
		msgs := byTarget[tid]
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			exec, ok := r.wf.executors[tid]
			if !ok {
				return nil
			}
			for _, msg := range msgs {
				isFatal, err := r.invokeHandler(ctx, runID, step, mb, exec, msg, h)
				if isFatal {
					mu.Lock()
					fatal = true
					fatalErr = err
					mu.Unlock()
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	return fatal, fatalErr
}

// invokeHandler runs one (executor, message) pair, emits its
// Invoked/Completed/Failed events, and merges its Context's buffered
// output into mb via the edgeRunner. Returns whether the error is tagged
// as a fatal, workflow-terminating error.
func (r *Runner) invokeHandler(ctx context.Context, runID string, step int, mb *mailbox, exec Executor, msg Message, h *RunHandle) (bool, error) {
	r.emit(h, Event{Kind: EventExecutorInvoked, ExecutorID: exec.ID(), MessageType: msg.PayloadType})

	rc := newContext(r.wf, mb, exec.ID(), msg.SourceExecutorID, false, r.opts.CostTracker, msg.TraceCtx)
	start := time.Now()
	err := exec.Handle(rc, msg)
	duration := time.Since(start).Milliseconds()

	if r.opts.Metrics != nil {
		r.opts.Metrics.RecordExecutorInvocation(exec.ID(), duration, err != nil)
	}

	fatal := false
	if err != nil {
		kind := FailureHandlerError
		if we, ok := err.(*WorkflowError); ok && we.Code == ErrCodeUnhandledMessageType {
			kind = FailureUnhandledMessageType
		}
		if IsTerminateWorkflow(err) {
			kind = FailureTerminateWorkflow
			fatal = true
		}
		r.emit(h, Event{Kind: EventExecutorFailed, ExecutorID: exec.ID(), Error: err, FailureKind: kind})
	} else {
		r.emit(h, Event{Kind: EventExecutorCompleted, ExecutorID: exec.ID(), DurationMS: duration})
	}

	er := &edgeRunner{wf: r.wf, mb: mb}
	for _, em := range rc.emitted {
		er.deliverEmitted(msg.TraceCtx, exec.ID(), em)
	}
	for _, out := range rc.outputs {
		r.emit(h, Event{Kind: EventWorkflowOutput, Value: out})
	}
	for _, req := range rc.requests {
		mb.addPendingRequest(req)
		r.emit(h, Event{Kind: EventRequestInfo, RequestID: req.RequestID, SourceID: req.SourceExecutorID, Payload: req.Payload, ResponseType: req.ResponseType})
	}
	for _, sub := range rc.events {
		r.emit(h, sub)
	}

	return fatal, err
}
