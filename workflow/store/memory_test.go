package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/agentgraph-go/workflow"
)

func TestMemoryStoreSaveLoadList(t *testing.T) {
	s := NewMemoryStore()

	id0, err := s.Save(&workflow.WorkflowCheckpoint{RunID: "run-1", SuperstepIndex: 0})
	require.NoError(t, err)
	id1, err := s.Save(&workflow.WorkflowCheckpoint{RunID: "run-1", SuperstepIndex: 1})
	require.NoError(t, err)

	loaded, err := s.Load(id1)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.SuperstepIndex)

	ids, err := s.List("run-1")
	require.NoError(t, err)
	assert.Equal(t, []string{id0, id1}, ids)
}

func TestMemoryStoreLoadUnknownID(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Load("does-not-exist")
	require.Error(t, err)

	var cpErr *workflow.WorkflowCheckpointException
	require.ErrorAs(t, err, &cpErr)
	assert.Equal(t, workflow.ErrCodeCheckpointNotFound, cpErr.Code)
}

func TestMemoryStoreOverwriteKeepsSingleEntry(t *testing.T) {
	s := NewMemoryStore()
	id, err := s.Save(&workflow.WorkflowCheckpoint{RunID: "run-1", SuperstepIndex: 0})
	require.NoError(t, err)

	_, err = s.Save(&workflow.WorkflowCheckpoint{RunID: "run-1", SuperstepIndex: 0})
	require.NoError(t, err)

	ids, err := s.List("run-1")
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids)
}
