package workflow

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

func msgFrom(source string, payload any) Message {
	return Message{SourceExecutorID: source, Payload: payload, PayloadType: reflect.TypeOf(payload)}
}

func TestSingleEdgeRoute(t *testing.T) {
	t.Run("unconditional edge always fires", func(t *testing.T) {
		e := &singleEdge{source: "a", target: "b"}
		out := e.route(msgFrom("a", "hi"))
		assert.Equal(t, []routedDelivery{{target: "b", payload: "hi"}}, out)
	})

	t.Run("condition false drops the message", func(t *testing.T) {
		e := &singleEdge{source: "a", target: "b", condition: func(p any) bool { return false }}
		out := e.route(msgFrom("a", "hi"))
		assert.Nil(t, out)
	})

	t.Run("condition true lets the message through", func(t *testing.T) {
		e := &singleEdge{source: "a", target: "b", condition: func(p any) bool { return p == "hi" }}
		out := e.route(msgFrom("a", "hi"))
		assert.Equal(t, []routedDelivery{{target: "b", payload: "hi"}}, out)
	})
}

func TestFanOutRoute(t *testing.T) {
	g := &fanOutGroup{
		source: "a",
		branches: []fanOutBranch{
			{target: "b"},
			{target: "c", condition: func(p any) bool { return p.(int) > 10 }},
		},
	}

	t.Run("every branch without a condition fires", func(t *testing.T) {
		out := g.route(msgFrom("a", 5))
		assert.Equal(t, []routedDelivery{{target: "b", payload: 5}}, out)
	})

	t.Run("conditioned branch fires when satisfied", func(t *testing.T) {
		out := g.route(msgFrom("a", 20))
		assert.ElementsMatch(t, []routedDelivery{{target: "b", payload: 20}, {target: "c", payload: 20}}, out)
	})
}

func TestFanInRoute(t *testing.T) {
	g := &fanInGroup{
		sourceList: []string{"a", "b", "c"},
		target:     "d",
		elemType:   reflect.TypeOf(0),
		buffers:    make(map[string]any),
	}

	t.Run("fires only once every declared source has contributed", func(t *testing.T) {
		assert.Nil(t, g.route(msgFrom("a", 1)))
		assert.Nil(t, g.route(msgFrom("b", 2)))
		out := g.route(msgFrom("c", 3))
		if assert.Len(t, out, 1) {
			assert.Equal(t, "d", out[0].target)
			assert.Equal(t, []int{1, 2, 3}, out[0].payload)
		}
	})

	t.Run("buffers reset after firing, ready for the next round", func(t *testing.T) {
		assert.Nil(t, g.route(msgFrom("a", 10)))
		assert.Empty(t, g.buffers["b"])
	})

	t.Run("a later contribution from an already-buffered source overwrites", func(t *testing.T) {
		g2 := &fanInGroup{sourceList: []string{"a", "b"}, target: "d", elemType: reflect.TypeOf(0), buffers: make(map[string]any)}
		g2.route(msgFrom("a", 1))
		g2.route(msgFrom("a", 99))
		out := g2.route(msgFrom("b", 2))
		if assert.Len(t, out, 1) {
			assert.Equal(t, []int{99, 2}, out[0].payload)
		}
	})
}

func TestSwitchCaseRoute(t *testing.T) {
	g := &switchCaseGroup{
		source: "a",
		cases: []switchCaseBranch{
			{target: "pos", condition: func(p any) bool { return p.(int) > 0 }},
			{target: "zero", condition: func(p any) bool { return p.(int) == 0 }},
		},
		defaultTarget: "neg",
	}

	t.Run("first matching case wins", func(t *testing.T) {
		out := g.route(msgFrom("a", 5))
		assert.Equal(t, []routedDelivery{{target: "pos", payload: 5}}, out)
	})

	t.Run("later case matches when earlier ones don't", func(t *testing.T) {
		out := g.route(msgFrom("a", 0))
		assert.Equal(t, []routedDelivery{{target: "zero", payload: 0}}, out)
	})

	t.Run("default fires when no case matches", func(t *testing.T) {
		out := g.route(msgFrom("a", -3))
		assert.Equal(t, []routedDelivery{{target: "neg", payload: -3}}, out)
	})
}
