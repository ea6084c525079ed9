package emit

import "github.com/dshills/agentgraph-go/workflow"

// NullObserver implements workflow.Observer by discarding every event.
// Useful when an Observer is wired through configuration plumbing but
// observability is not wanted.
type NullObserver struct{}

// NewNullObserver creates a NullObserver.
func NewNullObserver() *NullObserver { return &NullObserver{} }

// Observe implements workflow.Observer as a no-op.
func (n *NullObserver) Observe(workflow.Event) {}
