package workflow

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

type sampleRegistryPayload struct{ X int }

func TestTypeRegistryRegisterAndLookup(t *testing.T) {
	RegisterPayloadType("workflow_test.sampleRegistryPayload", sampleRegistryPayload{})

	t.Run("registered name resolves to the concrete type", func(t *testing.T) {
		typ, ok := globalTypeRegistry.typeFor("workflow_test.sampleRegistryPayload")
		assert.True(t, ok)
		assert.Equal(t, reflect.TypeOf(sampleRegistryPayload{}), typ)
	})

	t.Run("registered type resolves back to its name", func(t *testing.T) {
		name, ok := globalTypeRegistry.nameFor(reflect.TypeOf(sampleRegistryPayload{}))
		assert.True(t, ok)
		assert.Equal(t, "workflow_test.sampleRegistryPayload", name)
	})

	t.Run("re-registering the same name with the same type is a no-op", func(t *testing.T) {
		assert.NotPanics(t, func() {
			RegisterPayloadType("workflow_test.sampleRegistryPayload", sampleRegistryPayload{})
		})
	})

	t.Run("unknown name is not found", func(t *testing.T) {
		_, ok := globalTypeRegistry.typeFor("workflow_test.does-not-exist")
		assert.False(t, ok)
	})
}

func TestTypeRegistryPrimitivesPreregistered(t *testing.T) {
	for name, zero := range map[string]any{
		"string":  "",
		"int":     int(0),
		"float64": float64(0),
		"bool":    false,
	} {
		typ, ok := globalTypeRegistry.typeFor(name)
		if assert.True(t, ok, "expected %q to be preregistered", name) {
			assert.Equal(t, reflect.TypeOf(zero), typ)
		}
	}
}
