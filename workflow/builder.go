package workflow

import (
	"fmt"
	"reflect"
	"sort"
)

// Workflow is the immutable, built graph of executors and edge groups.
// It is constructed only by Builder.Build, which assembles executors and
// edges before validating and freezing the graph for Run.
type Workflow struct {
	startExecutorID string
	executors       map[string]Executor
	edgeGroups      []EdgeGroup
	checkpointStore CheckpointStore
}

// Builder assembles a Workflow. It is the only path to a runnable
// Workflow; Build runs the validator before returning.
type Builder struct {
	startExecutorID string
	executors       map[string]Executor
	edgeGroups      []EdgeGroup
	checkpointStore CheckpointStore
	err             error
}

// NewBuilder constructs an empty Builder.
func NewBuilder() *Builder {
	return &Builder{executors: make(map[string]Executor)}
}

// AddExecutor registers e under its own ID. Registering a second executor
// under an ID already in use fails Build with ErrCodeDuplicateExecutorID.
func (b *Builder) AddExecutor(e Executor) *Builder {
	if b.err != nil {
		return b
	}
	if _, exists := b.executors[e.ID()]; exists {
		b.err = newError(ErrCodeDuplicateExecutorID, fmt.Sprintf("executor id %q already registered", e.ID()))
		return b
	}
	b.executors[e.ID()] = e
	return b
}

// SetStartExecutor marks id as the workflow's entry point. id must be
// registered via AddExecutor before Build, which rejects an unregistered
// start executor.
func (b *Builder) SetStartExecutor(id string) *Builder {
	b.startExecutorID = id
	return b
}

// AddEdge adds a Single EdgeGroup from src to dst, optionally guarded by
// condition.
func (b *Builder) AddEdge(src, dst string, condition EdgeCondition) *Builder {
	if b.err != nil {
		return b
	}
	b.edgeGroups = append(b.edgeGroups, &singleEdge{source: src, target: dst, condition: condition})
	return b
}

// FanOutTarget pairs a FanOut branch target with its optional condition.
type FanOutTarget struct {
	Target    string
	Condition EdgeCondition
}

// AddFanOut adds a FanOut EdgeGroup from src to every target in dsts.
func (b *Builder) AddFanOut(src string, dsts ...FanOutTarget) *Builder {
	if b.err != nil {
		return b
	}
	branches := make([]fanOutBranch, len(dsts))
	for i, d := range dsts {
		branches[i] = fanOutBranch{target: d.Target, condition: d.Condition}
	}
	b.edgeGroups = append(b.edgeGroups, &fanOutGroup{source: src, branches: branches})
	return b
}

// addFanIn adds a FanIn EdgeGroup with declared sources srcs feeding dst.
// Because Go cannot express List<T> generically at this call site without
// a type parameter, callers use the package-level AddFanIn function, which
// captures T from its type argument and records ElemType for the
// validator's per-source type-compatibility check.
func (b *Builder) addFanIn(srcs []string, dst string, elemType reflect.Type) *Builder {
	if b.err != nil {
		return b
	}
	b.edgeGroups = append(b.edgeGroups, &fanInGroup{
		sourceList: append([]string(nil), srcs...),
		target:     dst,
		elemType:   elemType,
		buffers:    make(map[string]any),
	})
	return b
}

// AddFanIn registers a FanIn EdgeGroup whose target declares input []T,
// aggregating one contribution per source in srcs, in declared order, into
// a []T delivered to dst. T is supplied as an explicit type argument since
// Builder.AddFanIn cannot be a generic method.
func AddFanIn[T any](b *Builder, srcs []string, dst string) *Builder {
	elemType := reflect.TypeOf((*T)(nil)).Elem()
	return b.addFanIn(srcs, dst, elemType)
}

// SwitchCaseBranch pairs an ordered SwitchCase condition with its target.
type SwitchCaseBranch struct {
	Target    string
	Condition EdgeCondition
}

// AddSwitchCase adds a SwitchCase EdgeGroup from src: cases are tried in
// order, first match wins; defaultTarget fires when none match. At least
// one case is required and defaultTarget is mandatory, enforced at Build.
func (b *Builder) AddSwitchCase(src string, cases []SwitchCaseBranch, defaultTarget string) *Builder {
	if b.err != nil {
		return b
	}
	branches := make([]switchCaseBranch, len(cases))
	for i, c := range cases {
		branches[i] = switchCaseBranch{target: c.Target, condition: c.Condition}
	}
	b.edgeGroups = append(b.edgeGroups, &switchCaseGroup{source: src, cases: branches, defaultTarget: defaultTarget})
	return b
}

// WithCheckpointing configures store as the Workflow's CheckpointStore,
// enabling a checkpoint write after every superstep.
func (b *Builder) WithCheckpointing(store CheckpointStore) *Builder {
	b.checkpointStore = store
	return b
}

// Build runs the validator over the assembled graph and returns the
// immutable Workflow, or the first validation error encountered.
func (b *Builder) Build() (*Workflow, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.startExecutorID == "" {
		return nil, newError(ErrCodeNoStartExecutor, "no start executor set")
	}
	if _, ok := b.executors[b.startExecutorID]; !ok {
		return nil, newError(ErrCodeNoStartExecutor, fmt.Sprintf("start executor %q not registered", b.startExecutorID))
	}

	wf := &Workflow{
		startExecutorID: b.startExecutorID,
		executors:       b.executors,
		edgeGroups:      b.edgeGroups,
		checkpointStore: b.checkpointStore,
	}

	if err := validate(wf); err != nil {
		return nil, err
	}
	return wf, nil
}

// validate runs the graph's structural and type-compatibility checks
// against wf.
func validate(wf *Workflow) error {
	if err := validateReachability(wf); err != nil {
		return err
	}
	if err := validateEdgeDuplication(wf); err != nil {
		return err
	}
	if err := validateTypeCompatibility(wf); err != nil {
		return err
	}
	if err := validateFanIn(wf); err != nil {
		return err
	}
	if err := validateSwitchCase(wf); err != nil {
		return err
	}
	return nil
}

// validateReachability runs a BFS from the start executor over edge-group
// adjacency and fails if any registered executor is unreachable.
func validateReachability(wf *Workflow) error {
	adjacency := make(map[string][]string)
	for _, g := range wf.edgeGroups {
		for _, src := range g.sources() {
			adjacency[src] = append(adjacency[src], g.targets()...)
		}
	}

	visited := map[string]bool{wf.startExecutorID: true}
	queue := []string{wf.startExecutorID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adjacency[cur] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}

	var unreachable []string
	for id := range wf.executors {
		if !visited[id] {
			unreachable = append(unreachable, id)
		}
	}
	if len(unreachable) > 0 {
		sort.Strings(unreachable)
		return &GraphConnectivityError{Unreachable: unreachable}
	}
	return nil
}

// validateEdgeDuplication fails if two edge groups share an identical
// (source, target, kind) triple.
func validateEdgeDuplication(wf *Workflow) error {
	type triple struct{ src, dst, kind string }
	seen := make(map[triple]bool)
	for _, g := range wf.edgeGroups {
		for _, src := range g.sources() {
			for _, dst := range g.targets() {
				t := triple{src, dst, string(g.kind())}
				if seen[t] {
					return &EdgeDuplicationError{Source: src, Target: dst, Kind: string(g.kind())}
				}
				seen[t] = true
			}
		}
	}
	return nil
}

// validateTypeCompatibility fails if a source's declared output types have
// no assignment-compatible handler at the target.
// FanIn targets are checked separately by validateFanIn since their
// declared input is List<T>, not a member of InputTypes() directly.
func validateTypeCompatibility(wf *Workflow) error {
	for _, g := range wf.edgeGroups {
		if g.kind() == kindFanIn {
			continue
		}
		for _, src := range g.sources() {
			srcExec, ok := wf.executors[src]
			if !ok {
				continue
			}
			for _, dst := range g.targets() {
				dstExec, ok := wf.executors[dst]
				if !ok {
					continue
				}
				if !anyAssignable(srcExec.OutputTypes(), dstExec.InputTypes()) {
					return &TypeCompatibilityError{
						Source:        src,
						Target:        dst,
						SourceOutputs: srcExec.OutputTypes(),
						TargetInputs:  dstExec.InputTypes(),
					}
				}
			}
		}
	}
	return nil
}

// validateFanIn enforces that each FanIn target's declared element type
// must be assignable from every source's outputs.
func validateFanIn(wf *Workflow) error {
	for _, g := range wf.edgeGroups {
		fi, ok := g.(*fanInGroup)
		if !ok {
			continue
		}
		dstExec, ok := wf.executors[fi.target]
		if !ok {
			continue
		}
		sliceType := reflect.SliceOf(fi.elemType)
		if !typeIn(sliceType, dstExec.InputTypes()) {
			return newError(ErrCodeFanInMissingListType,
				fmt.Sprintf("fan-in target %q has no handler declared for %v", fi.target, sliceType))
		}
		for _, src := range fi.sourceList {
			srcExec, ok := wf.executors[src]
			if !ok {
				continue
			}
			if !anyAssignableTo(srcExec.OutputTypes(), fi.elemType) {
				return &TypeCompatibilityError{
					Source:        src,
					Target:        fi.target,
					SourceOutputs: srcExec.OutputTypes(),
					TargetInputs:  []reflect.Type{fi.elemType},
				}
			}
		}
	}
	return nil
}

// validateSwitchCase enforces that every switch-case group declares at
// least one case and a mandatory default.
func validateSwitchCase(wf *Workflow) error {
	for _, g := range wf.edgeGroups {
		sc, ok := g.(*switchCaseGroup)
		if !ok {
			continue
		}
		if len(sc.cases) == 0 {
			return newError(ErrCodeEmptySwitchCases, fmt.Sprintf("switch-case from %q has no cases", sc.source))
		}
		if sc.defaultTarget == "" {
			return newError(ErrCodeMissingSwitchDefault, fmt.Sprintf("switch-case from %q has no default target", sc.source))
		}
	}
	return nil
}

func anyAssignable(outputs, inputs []reflect.Type) bool {
	for _, o := range outputs {
		for _, i := range inputs {
			if o == i || o.AssignableTo(i) {
				return true
			}
		}
	}
	return false
}

func anyAssignableTo(outputs []reflect.Type, target reflect.Type) bool {
	for _, o := range outputs {
		if o == target || o.AssignableTo(target) {
			return true
		}
	}
	return false
}

func typeIn(t reflect.Type, list []reflect.Type) bool {
	for _, v := range list {
		if v == t {
			return true
		}
	}
	return false
}
