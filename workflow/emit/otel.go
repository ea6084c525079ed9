package emit

import (
	"context"

	"github.com/dshills/agentgraph-go/workflow"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelObserver implements workflow.Observer by creating one OpenTelemetry
// span per Event: each span is named after the event kind, tagged with
// executor/step/request attributes, and ended immediately since every
// Event represents a point in time rather than a duration already
// captured in DurationMS.
type OTelObserver struct {
	tracer trace.Tracer
}

// NewOTelObserver creates an OTelObserver backed by tracer (typically
// otel.Tracer("agentgraph-go")).
func NewOTelObserver(tracer trace.Tracer) *OTelObserver {
	return &OTelObserver{tracer: tracer}
}

// Observe implements workflow.Observer.
func (o *OTelObserver) Observe(e workflow.Event) {
	_, span := o.tracer.Start(context.Background(), string(e.Kind))
	defer span.End()

	span.SetAttributes(
		attribute.String("agentgraph.executor_id", e.ExecutorID),
		attribute.Int("agentgraph.step", e.StepIndex),
	)
	if e.DurationMS > 0 {
		span.SetAttributes(attribute.Int64("agentgraph.duration_ms", e.DurationMS))
	}
	if e.ParentExecutorID != "" {
		span.SetAttributes(attribute.String("agentgraph.parent_executor_id", e.ParentExecutorID))
	}
	if e.RequestID != "" {
		span.SetAttributes(attribute.String("agentgraph.request_id", e.RequestID))
	}
	if e.MessageType != nil {
		span.SetAttributes(attribute.String("agentgraph.message_type", e.MessageType.String()))
	}
	if e.Error != nil {
		span.SetStatus(codes.Error, e.Error.Error())
		span.RecordError(e.Error)
		if e.FailureKind != "" {
			span.SetAttributes(attribute.String("agentgraph.failure_kind", string(e.FailureKind)))
		}
	}
}
