package workflow

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailboxSupersteppedDelivery(t *testing.T) {
	mb := newMailbox()

	// Nothing queued yet: draining returns empty.
	assert.Empty(t, mb.DrainReadyForSuperstep())

	// A message enqueued now lands in "next", not "ready": it only
	// becomes visible on the following drain call (Invariant 1, no
	// same-step delivery).
	mb.Enqueue(Message{TargetExecutorID: "a", Payload: 1, PayloadType: reflect.TypeOf(0)})

	first := mb.DrainReadyForSuperstep()
	require.Len(t, first, 1)
	assert.Equal(t, "a", first[0].TargetExecutorID)

	// A second drain with nothing newly enqueued returns empty.
	assert.Empty(t, mb.DrainReadyForSuperstep())
}

func TestMailboxRequestResponseCorrelation(t *testing.T) {
	mb := newMailbox()
	entry := mb.RegisterRequest("approver", "please confirm", reflect.TypeOf(true))
	assert.Equal(t, 1, mb.PendingRequestCount())

	t.Run("injecting an unknown request id fails", func(t *testing.T) {
		err := mb.InjectResponse("does-not-exist", true)
		require.Error(t, err)
		var checkpointErr *WorkflowCheckpointException
		require.ErrorAs(t, err, &checkpointErr)
		assert.Equal(t, ErrCodeUnknownRequestID, checkpointErr.Code)
	})

	t.Run("injecting a known request id satisfies it", func(t *testing.T) {
		require.NoError(t, mb.InjectResponse(entry.RequestID, true))
		assert.Equal(t, 0, mb.PendingRequestCount())

		responses := mb.TakeReadyResponses()
		require.Len(t, responses, 1)
		assert.Equal(t, entry.RequestID, responses[0].entry.RequestID)
		assert.Equal(t, true, responses[0].payload)
	})

	t.Run("a satisfied request cannot be injected again", func(t *testing.T) {
		err := mb.InjectResponse(entry.RequestID, false)
		require.Error(t, err)
	})
}

func TestMailboxSharedState(t *testing.T) {
	mb := newMailbox()
	_, ok := mb.SharedGet("missing")
	assert.False(t, ok)

	mb.SharedSet("key", "value")
	v, ok := mb.SharedGet("key")
	require.True(t, ok)
	assert.Equal(t, "value", v)
}
