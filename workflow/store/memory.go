// Package store provides workflow.CheckpointStore implementations:
// in-memory (for tests), SQLite, and MySQL, each keyed by run id and
// superstep index over one serialized workflow.WorkflowCheckpoint per
// superstep.
package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dshills/agentgraph-go/workflow"
)

// MemoryStore implements workflow.CheckpointStore by holding every
// checkpoint in memory. Data does not survive process restart; use
// SQLiteStore or MySQLStore for durability across runs.
type MemoryStore struct {
	mu          sync.RWMutex
	checkpoints map[string]*workflow.WorkflowCheckpoint
	byRun       map[string][]string // runID -> checkpoint ids, insertion order
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		checkpoints: make(map[string]*workflow.WorkflowCheckpoint),
		byRun:       make(map[string][]string),
	}
}

func checkpointID(runID string, superstepIndex int) string {
	return fmt.Sprintf("%s-%d", runID, superstepIndex)
}

// Save implements workflow.CheckpointStore.
func (s *MemoryStore) Save(c *workflow.WorkflowCheckpoint) (string, error) {
	id := checkpointID(c.RunID, c.SuperstepIndex)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.checkpoints[id]; !exists {
		s.byRun[c.RunID] = append(s.byRun[c.RunID], id)
	}
	s.checkpoints[id] = c
	return id, nil
}

// Load implements workflow.CheckpointStore.
func (s *MemoryStore) Load(checkpointID string) (*workflow.WorkflowCheckpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.checkpoints[checkpointID]
	if !ok {
		return nil, &workflow.WorkflowCheckpointException{
			Code:    workflow.ErrCodeCheckpointNotFound,
			Message: fmt.Sprintf("no checkpoint %q", checkpointID),
		}
	}
	return cp, nil
}

// List implements workflow.CheckpointStore, returning ids in ascending
// superstep order.
func (s *MemoryStore) List(runID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := append([]string(nil), s.byRun[runID]...)
	sort.Slice(ids, func(i, j int) bool {
		return s.checkpoints[ids[i]].SuperstepIndex < s.checkpoints[ids[j]].SuperstepIndex
	})
	return ids, nil
}
