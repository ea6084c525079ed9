package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOptionsDefaults(t *testing.T) {
	o, err := newOptions()
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxIterations, o.MaxIterations)
	assert.Equal(t, 0, o.MaxConcurrentExecutors)
	assert.Zero(t, o.BackpressureTimeout)
}

func TestOptionsApplyInOrder(t *testing.T) {
	o, err := newOptions(
		WithMaxIterations(5),
		WithMaxConcurrentExecutors(2),
		WithBackpressureTimeout(time.Second),
	)
	require.NoError(t, err)
	assert.Equal(t, 5, o.MaxIterations)
	assert.Equal(t, 2, o.MaxConcurrentExecutors)
	assert.Equal(t, time.Second, o.BackpressureTimeout)
}

func TestWithMaxIterationsRejectsNonPositive(t *testing.T) {
	_, err := newOptions(WithMaxIterations(0))
	require.Error(t, err)

	_, err = newOptions(WithMaxIterations(-1))
	require.Error(t, err)
}

func TestWithMaxConcurrentExecutorsRejectsNegative(t *testing.T) {
	_, err := newOptions(WithMaxConcurrentExecutors(-1))
	require.Error(t, err)

	o, err := newOptions(WithMaxConcurrentExecutors(0))
	require.NoError(t, err)
	assert.Equal(t, 0, o.MaxConcurrentExecutors)
}
