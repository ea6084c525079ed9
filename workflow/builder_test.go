package workflow

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stringExecutor(t *testing.T, id string, outputs ...reflect.Type) *FunctionExecutor {
	t.Helper()
	e, err := NewFunctionExecutor(id, func(rc *Context, in string) error { return nil }, outputs...)
	require.NoError(t, err)
	return e
}

func intExecutor(t *testing.T, id string, outputs ...reflect.Type) *FunctionExecutor {
	t.Helper()
	e, err := NewFunctionExecutor(id, func(rc *Context, in int) error { return nil }, outputs...)
	require.NoError(t, err)
	return e
}

func TestBuilderRequiresStartExecutor(t *testing.T) {
	_, err := NewBuilder().AddExecutor(stringExecutor(t, "a")).Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNoStartExecutor)
}

func TestBuilderRejectsUnreachableExecutor(t *testing.T) {
	a := stringExecutor(t, "a", reflect.TypeOf(""))
	b := stringExecutor(t, "b")
	orphan := stringExecutor(t, "orphan")

	_, err := NewBuilder().
		AddExecutor(a).AddExecutor(b).AddExecutor(orphan).
		SetStartExecutor("a").
		AddEdge("a", "b", nil).
		Build()

	require.Error(t, err)
	var connErr *GraphConnectivityError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, []string{"orphan"}, connErr.Unreachable)
}

func TestBuilderRejectsDuplicateEdge(t *testing.T) {
	a := stringExecutor(t, "a", reflect.TypeOf(""))
	b := stringExecutor(t, "b")

	_, err := NewBuilder().
		AddExecutor(a).AddExecutor(b).
		SetStartExecutor("a").
		AddEdge("a", "b", nil).
		AddEdge("a", "b", nil).
		Build()

	require.Error(t, err)
	var dupErr *EdgeDuplicationError
	require.ErrorAs(t, err, &dupErr)
}

func TestBuilderRejectsTypeIncompatibleEdge(t *testing.T) {
	a := stringExecutor(t, "a", reflect.TypeOf(""))
	b := intExecutor(t, "b")

	_, err := NewBuilder().
		AddExecutor(a).AddExecutor(b).
		SetStartExecutor("a").
		AddEdge("a", "b", nil).
		Build()

	require.Error(t, err)
	var typeErr *TypeCompatibilityError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, "a", typeErr.Source)
	assert.Equal(t, "b", typeErr.Target)
}

func TestBuilderAcceptsCompatibleSingleEdge(t *testing.T) {
	a := stringExecutor(t, "a", reflect.TypeOf(""))
	b := stringExecutor(t, "b")

	wf, err := NewBuilder().
		AddExecutor(a).AddExecutor(b).
		SetStartExecutor("a").
		AddEdge("a", "b", nil).
		Build()

	require.NoError(t, err)
	assert.Equal(t, "a", wf.startExecutorID)
}

func TestBuilderSwitchCaseRequiresCasesAndDefault(t *testing.T) {
	a := stringExecutor(t, "a", reflect.TypeOf(""))
	b := stringExecutor(t, "b")

	t.Run("no cases at all fails", func(t *testing.T) {
		_, err := NewBuilder().
			AddExecutor(a).AddExecutor(b).
			SetStartExecutor("a").
			AddSwitchCase("a", nil, "b").
			Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), ErrCodeEmptySwitchCases)
	})

	t.Run("missing default target fails", func(t *testing.T) {
		_, err := NewBuilder().
			AddExecutor(a).AddExecutor(b).
			SetStartExecutor("a").
			AddSwitchCase("a", []SwitchCaseBranch{{Target: "b", Condition: func(any) bool { return true }}}, "").
			Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), ErrCodeMissingSwitchDefault)
	})
}

func TestBuilderFanInRequiresMatchingListType(t *testing.T) {
	a := stringExecutor(t, "a", reflect.TypeOf(""))
	b := stringExecutor(t, "b", reflect.TypeOf(""))
	combine := intExecutor(t, "combine")

	builder := NewBuilder().
		AddExecutor(a).AddExecutor(b).AddExecutor(combine).
		SetStartExecutor("a").
		AddFanOut("a", FanOutTarget{Target: "b"})

	_, err := AddFanIn[string](builder, []string{"a", "b"}, "combine").Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeFanInMissingListType)
}

func TestBuilderFanInAcceptsMatchingListType(t *testing.T) {
	a := stringExecutor(t, "a", reflect.TypeOf(""))
	b := stringExecutor(t, "b", reflect.TypeOf(""))
	combine, err := NewFunctionExecutor("combine", func(rc *Context, in []string) error { return nil })
	require.NoError(t, err)

	builder := NewBuilder().
		AddExecutor(a).AddExecutor(b).AddExecutor(combine).
		SetStartExecutor("a").
		AddFanOut("a", FanOutTarget{Target: "b"})

	wf, err := AddFanIn[string](builder, []string{"b"}, "combine").Build()
	require.NoError(t, err)
	assert.NotNil(t, wf)
}
