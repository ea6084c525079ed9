// Package emit provides workflow.Observer implementations: structured
// logging, in-memory history, a no-op sink, and an OpenTelemetry tracer,
// each consuming the typed workflow.Event union rather than a single flat
// event shape.
package emit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dshills/agentgraph-go/workflow"
)

// LogObserver implements workflow.Observer by writing structured log
// output to a writer, either as human-readable key=value text or as
// JSONL.
type LogObserver struct {
	writer   io.Writer
	jsonMode bool
}

// NewLogObserver creates a LogObserver. jsonMode selects JSONL output
// over human-readable text; a nil writer defaults to os.Stdout.
func NewLogObserver(writer io.Writer, jsonMode bool) *LogObserver {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogObserver{writer: writer, jsonMode: jsonMode}
}

// Observe implements workflow.Observer.
func (l *LogObserver) Observe(e workflow.Event) {
	if l.jsonMode {
		l.observeJSON(e)
		return
	}
	l.observeText(e)
}

type logEvent struct {
	Kind        string `json:"kind"`
	ExecutorID  string `json:"executor_id,omitempty"`
	Parent      string `json:"parent_executor_id,omitempty"`
	Step        int    `json:"step,omitempty"`
	DurationMS  int64  `json:"duration_ms,omitempty"`
	Error       string `json:"error,omitempty"`
	FailureKind string `json:"failure_kind,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
}

func (l *LogObserver) observeJSON(e workflow.Event) {
	le := toLogEvent(e)
	data, err := json.Marshal(le)
	if err != nil {
		_, _ = fmt.Fprintf(l.writer, "{\"error\":%q}\n", err.Error())
		return
	}
	_, _ = fmt.Fprintf(l.writer, "%s\n", data)
}

func (l *LogObserver) observeText(e workflow.Event) {
	le := toLogEvent(e)
	_, _ = fmt.Fprintf(l.writer, "[%s] executor=%s step=%d", le.Kind, le.ExecutorID, le.Step)
	if le.DurationMS > 0 {
		_, _ = fmt.Fprintf(l.writer, " duration_ms=%d", le.DurationMS)
	}
	if le.Error != "" {
		_, _ = fmt.Fprintf(l.writer, " error=%q failure_kind=%s", le.Error, le.FailureKind)
	}
	if le.Parent != "" {
		_, _ = fmt.Fprintf(l.writer, " parent=%s", le.Parent)
	}
	_, _ = fmt.Fprint(l.writer, "\n")
}

func toLogEvent(e workflow.Event) logEvent {
	le := logEvent{
		Kind:       string(e.Kind),
		ExecutorID: e.ExecutorID,
		Parent:     e.ParentExecutorID,
		Step:       e.StepIndex,
		DurationMS: e.DurationMS,
		RequestID:  e.RequestID,
	}
	if e.Error != nil {
		le.Error = e.Error.Error()
	}
	if e.FailureKind != "" {
		le.FailureKind = string(e.FailureKind)
	}
	return le
}
