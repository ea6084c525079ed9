package workflow

import (
	"reflect"
	"sort"
	"sync"
)

// EdgeCondition evaluates whether a message payload should traverse an
// edge. Predicates operate on the payload rather than a whole shared
// state, since edges here connect typed messages.
type EdgeCondition func(payload any) bool

// edgeGroupKind discriminates the four routing policy variants an
// EdgeGroup can implement.
type edgeGroupKind string

const (
	kindSingle     edgeGroupKind = "single"
	kindFanOut     edgeGroupKind = "fanout"
	kindFanIn      edgeGroupKind = "fanin"
	kindSwitchCase edgeGroupKind = "switchcase"
)

// EdgeGroup is a routing policy connecting one or more source executors to
// one or more target executors. Variants are constructed only through
// Builder methods (AddEdge, AddFanOut, AddFanIn, AddSwitchCase) so that
// validation can run once, at Build() time, over the complete set.
type EdgeGroup interface {
	kind() edgeGroupKind
	sources() []string
	targets() []string
	// route evaluates the group's policy for one outgoing message and
	// returns the set of (target, payload) deliveries it produces. FanIn
	// groups are stateful across calls; the others are pure functions of
	// the input message.
	route(msg Message) []routedDelivery
}

// routedDelivery is one (target, payload) pair produced by an EdgeGroup's
// routing policy, not yet wrapped back into a Message — the edgeRunner
// does that once it has the target id.
type routedDelivery struct {
	target  string
	payload any
}

// singleEdge implements the Single EdgeGroup variant.
type singleEdge struct {
	source, target string
	condition      EdgeCondition
}

func (e *singleEdge) kind() edgeGroupKind { return kindSingle }
func (e *singleEdge) sources() []string   { return []string{e.source} }
func (e *singleEdge) targets() []string   { return []string{e.target} }

func (e *singleEdge) route(msg Message) []routedDelivery {
	if e.condition != nil && !e.condition(msg.Payload) {
		return nil
	}
	return []routedDelivery{{target: e.target, payload: msg.Payload}}
}

// fanOutGroup implements the FanOut EdgeGroup variant: each target branch
// is evaluated independently; any number (including zero) may fire.
type fanOutGroup struct {
	source  string
	branches []fanOutBranch
}

type fanOutBranch struct {
	target    string
	condition EdgeCondition
}

func (g *fanOutGroup) kind() edgeGroupKind { return kindFanOut }
func (g *fanOutGroup) sources() []string   { return []string{g.source} }
func (g *fanOutGroup) targets() []string {
	out := make([]string, len(g.branches))
	for i, b := range g.branches {
		out[i] = b.target
	}
	return out
}

func (g *fanOutGroup) route(msg Message) []routedDelivery {
	var out []routedDelivery
	for _, b := range g.branches {
		if b.condition == nil || b.condition(msg.Payload) {
			out = append(out, routedDelivery{target: b.target, payload: msg.Payload})
		}
	}
	return out
}

// fanInGroup implements the FanIn EdgeGroup variant: it buffers one message
// per declared source and fires only once contributions from every
// declared source have accumulated (the all-arrived policy). ElemType is
// the element type T such that the target declares input List<T> ([]T in
// Go); contributions are aggregated in declared-source order.
type fanInGroup struct {
	sourceList []string
	target     string
	elemType   reflect.Type

	mu      sync.Mutex
	buffers map[string]any // source -> most recent contribution
}

func (g *fanInGroup) kind() edgeGroupKind { return kindFanIn }
func (g *fanInGroup) sources() []string   { return append([]string(nil), g.sourceList...) }
func (g *fanInGroup) targets() []string   { return []string{g.target} }

func (g *fanInGroup) route(msg Message) []routedDelivery {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.buffers[msg.SourceExecutorID] = msg.Payload
	if len(g.buffers) < len(g.sourceList) {
		return nil
	}
	for _, s := range g.sourceList {
		if _, ok := g.buffers[s]; !ok {
			return nil
		}
	}

	aggregated := reflect.MakeSlice(reflect.SliceOf(g.elemType), len(g.sourceList), len(g.sourceList))
	for i, s := range g.sourceList {
		aggregated.Index(i).Set(reflect.ValueOf(g.buffers[s]))
	}
	g.buffers = make(map[string]any)
	return []routedDelivery{{target: g.target, payload: aggregated.Interface()}}
}

// switchCaseGroup implements the SwitchCase EdgeGroup variant: cases are
// evaluated in declared order, first match wins; Default fires iff no
// case matched.
type switchCaseGroup struct {
	source       string
	cases        []switchCaseBranch
	defaultTarget string
}

type switchCaseBranch struct {
	target    string
	condition EdgeCondition
}

func (g *switchCaseGroup) kind() edgeGroupKind { return kindSwitchCase }
func (g *switchCaseGroup) sources() []string   { return []string{g.source} }
func (g *switchCaseGroup) targets() []string {
	out := make([]string, 0, len(g.cases)+1)
	for _, c := range g.cases {
		out = append(out, c.target)
	}
	out = append(out, g.defaultTarget)
	return out
}

func (g *switchCaseGroup) route(msg Message) []routedDelivery {
	for _, c := range g.cases {
		if c.condition(msg.Payload) {
			return []routedDelivery{{target: c.target, payload: msg.Payload}}
		}
	}
	return []routedDelivery{{target: g.defaultTarget, payload: msg.Payload}}
}

// sortedCopy returns a sorted copy of ids, for deterministic error
// messages that list multiple executor ids.
func sortedCopy(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}
