package workflow

import (
	"fmt"
	"reflect"
	"sync"
)

// typeRegistry maps payload type names to their reflect.Type, the
// bookkeeping needed to serialize and reconstruct the concrete type of an
// `any`-typed Message.Payload across a checkpoint round-trip. Because
// this engine's executors carry heterogeneous per-executor payloads
// rather than one fixed state type, each concrete message type opts in
// once, at package init, trading dynamic typing for explicit dispatch.
type typeRegistry struct {
	mu     sync.RWMutex
	byName map[string]reflect.Type
	byType map[reflect.Type]string
}

var globalTypeRegistry = &typeRegistry{
	byName: make(map[string]reflect.Type),
	byType: make(map[reflect.Type]string),
}

// RegisterPayloadType associates name with the type of zero (typically a
// pointer-free struct literal), enabling payloads of that type to survive
// checkpoint serialization. Registering the same name twice with a
// different type panics at init time — this is a programming error, not a
// runtime condition.
func RegisterPayloadType(name string, zero any) {
	t := reflect.TypeOf(zero)
	globalTypeRegistry.mu.Lock()
	defer globalTypeRegistry.mu.Unlock()
	if existing, ok := globalTypeRegistry.byName[name]; ok && existing != t {
		panic(fmt.Sprintf("workflow: payload type name %q already registered to %v", name, existing))
	}
	globalTypeRegistry.byName[name] = t
	globalTypeRegistry.byType[t] = name
}

func (r *typeRegistry) nameFor(t reflect.Type) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.byType[t]
	return name, ok
}

func (r *typeRegistry) typeFor(name string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[name]
	return t, ok
}

func init() {
	// Primitive kinds that commonly appear as payloads are pre-registered
	// so example workflows need not call RegisterPayloadType for them.
	RegisterPayloadType("string", "")
	RegisterPayloadType("int", int(0))
	RegisterPayloadType("float64", float64(0))
	RegisterPayloadType("bool", false)
}
