package workflow

import (
	"context"
	"reflect"
)

// edgeRunner evaluates a workflow's edge groups for one outgoing message
// and enqueues its deliveries into the mailbox's next superstep.
type edgeRunner struct {
	wf *Workflow
	mb *mailbox
}

// deliverEmitted routes one handler-produced emittedMessage from
// executorID, using traceCtx as the delivered Message's TraceCtx.
func (r *edgeRunner) deliverEmitted(traceCtx context.Context, executorID string, em emittedMessage) {
	if em.Target != "" {
		r.deliverExplicit(traceCtx, executorID, em)
		return
	}
	r.deliverRouted(traceCtx, executorID, em)
}

// deliverExplicit bypasses routing policy entirely and delivers directly
// to em.Target, but only if a declared edge from executorID to it exists —
// an explicit target with no corresponding edge silently drops the
// message, consistent with Single edge's "condition false" drop
// semantics.
func (r *edgeRunner) deliverExplicit(traceCtx context.Context, executorID string, em emittedMessage) {
	for _, g := range r.wf.edgeGroups {
		if !containsString(g.sources(), executorID) {
			continue
		}
		if containsString(g.targets(), em.Target) {
			r.enqueue(traceCtx, executorID, em.Target, em.Payload)
			return
		}
	}
}

// deliverRouted evaluates every edge group whose source is executorID
// against em.Payload and enqueues whatever deliveries each group's policy
// produces.
func (r *edgeRunner) deliverRouted(traceCtx context.Context, executorID string, em emittedMessage) {
	probe := Message{
		SourceExecutorID: executorID,
		Payload:          em.Payload,
		PayloadType:      reflect.TypeOf(em.Payload),
		TraceCtx:         traceCtx,
	}
	for _, g := range r.wf.edgeGroups {
		if !containsString(g.sources(), executorID) {
			continue
		}
		for _, d := range g.route(probe) {
			r.enqueue(traceCtx, executorID, d.target, d.payload)
		}
	}
}

func (r *edgeRunner) enqueue(traceCtx context.Context, source, target string, payload any) {
	r.mb.Enqueue(Message{
		SourceExecutorID: source,
		TargetExecutorID: target,
		Payload:          payload,
		PayloadType:      reflect.TypeOf(payload),
		TraceCtx:         traceCtx,
	})
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
