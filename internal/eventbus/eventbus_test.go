package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testKind string

const (
	kindA testKind = "a"
	kindB testKind = "b"
)

type testEvent struct{ value int }

func TestBus_DispatchesSynchronouslyInRegistrationOrder(t *testing.T) {
	bus := New[testKind, testEvent]()
	var order []int

	bus.On(kindA, func(e testEvent) { order = append(order, e.value*10+1) })
	bus.On(kindA, func(e testEvent) { order = append(order, e.value*10+2) })
	bus.On(kindB, func(e testEvent) { order = append(order, e.value*10+9) })

	bus.Emit(kindA, testEvent{value: 1})

	require.Equal(t, []int{11, 12}, order)
}

func TestBus_UnknownKindIsANoop(t *testing.T) {
	bus := New[testKind, testEvent]()
	assert.NotPanics(t, func() { bus.Emit(testKind("unregistered"), testEvent{}) })
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New[testKind, testEvent]()
	calls := 0
	unsub := bus.On(kindA, func(testEvent) { calls++ })

	bus.Emit(kindA, testEvent{})
	unsub()
	bus.Emit(kindA, testEvent{})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, bus.HandlerCount(kindA))
}

func TestBus_BlockingHandlerBlocksEmit(t *testing.T) {
	bus := New[testKind, testEvent]()
	done := false
	bus.On(kindA, func(testEvent) { done = true })
	bus.Emit(kindA, testEvent{})
	assert.True(t, done, "handler must have run before Emit returned")
}
