// Copyright 2024 The Luavm Authors
// This file is part of Luavm.

package coroutine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luavm/luavm/internal/value"
	"github.com/luavm/luavm/internal/vm"
)

// TestCoroutineRoundTripThroughCall exercises a coroutine body that itself
// makes a protected vm.Call before yielding, end to end: Resume must carry
// values across the yield boundary and report Dead only once the body
// actually returns.
func TestCoroutineRoundTripThroughCall(t *testing.T) {
	m := vm.New()
	require := require.New(t)

	double := vm.NewNativeClosure(m.Heap, "double", func(m *vm.VM, args []value.Value) ([]value.Value, error) {
		return []value.Value{value.Number(args[0].Float64() * 2)}, nil
	})

	body := vm.NewNativeClosure(m.Heap, "body", func(m *vm.VM, args []value.Value) ([]value.Value, error) {
		doubled, err := m.Call(double, args[0])
		require.NoError(err)

		yielded := Current(m).Yield(doubled)
		require.Len(yielded, 1)

		return []value.Value{value.Number(yielded[0].Float64() + 1)}, nil
	})

	co := New(m, body)
	require.Equal(Suspended, co.Status())

	ok, vals := co.Resume([]value.Value{value.Number(21)})
	require.True(ok)
	require.Equal(Suspended, co.Status())
	require.Len(vals, 1)
	require.Equal(float64(42), vals[0].Float64())

	ok, vals = co.Resume([]value.Value{value.Number(100)})
	require.True(ok)
	require.Equal(Dead, co.Status())
	require.Len(vals, 1)
	require.Equal(float64(101), vals[0].Float64())
}
