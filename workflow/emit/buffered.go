package emit

import (
	"sync"

	"github.com/dshills/agentgraph-go/workflow"
)

// HistoryFilter narrows BufferedObserver.HistoryWithFilter results, all
// fields optional and ANDed together.
type HistoryFilter struct {
	ExecutorID string
	Kind       workflow.EventKind
}

// BufferedObserver implements workflow.Observer by storing every observed
// Event in memory. workflow.Event carries no RunID field since each Event
// is already scoped to one RunHandle's Run/Resume call, so a
// BufferedObserver is typically constructed one-per-run rather than keyed
// internally by run id.
type BufferedObserver struct {
	mu     sync.RWMutex
	events []workflow.Event
}

// NewBufferedObserver creates an empty BufferedObserver.
func NewBufferedObserver() *BufferedObserver {
	return &BufferedObserver{}
}

// Observe implements workflow.Observer.
func (b *BufferedObserver) Observe(e workflow.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

// History returns a copy of every event observed so far, in emission
// order.
func (b *BufferedObserver) History() []workflow.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]workflow.Event, len(b.events))
	copy(out, b.events)
	return out
}

// HistoryWithFilter returns a copy of events matching filter, in
// emission order.
func (b *BufferedObserver) HistoryWithFilter(filter HistoryFilter) []workflow.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []workflow.Event
	for _, e := range b.events {
		if filter.ExecutorID != "" && e.ExecutorID != filter.ExecutorID {
			continue
		}
		if filter.Kind != "" && e.Kind != filter.Kind {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Clear discards every buffered event.
func (b *BufferedObserver) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}
