// Copyright 2024 The Luavm Authors
// This file is part of Luavm.

package coroutine

import (
	"testing"

	"github.com/luavm/luavm/internal/value"
	"github.com/luavm/luavm/internal/vm"
)

func TestResumeYieldRoundTrip(t *testing.T) {
	m := vm.New()
	fnVal := vm.NewNativeClosure(m.Heap, "body", func(m *vm.VM, args []value.Value) ([]value.Value, error) {
		co := Current(m)
		if co == nil {
			t.Fatal("Current() returned nil inside coroutine body")
		}
		got := co.Yield([]value.Value{value.Number(args[0].Float64() + 1)})
		return []value.Value{value.Number(got[0].Float64() * 10)}, nil
	})

	co := New(m, fnVal)
	if co.Status() != Suspended {
		t.Fatalf("initial status = %v, want suspended", co.Status())
	}

	ok, vals := co.Resume([]value.Value{value.Number(1)})
	if !ok || len(vals) != 1 || vals[0].Float64() != 2 {
		t.Fatalf("first resume = %v, %v", ok, vals)
	}
	if co.Status() != Suspended {
		t.Fatalf("status after yield = %v, want suspended", co.Status())
	}

	ok, vals = co.Resume([]value.Value{value.Number(5)})
	if !ok || len(vals) != 1 || vals[0].Float64() != 50 {
		t.Fatalf("second resume = %v, %v", ok, vals)
	}
	if co.Status() != Dead {
		t.Fatalf("status after return = %v, want dead", co.Status())
	}

	ok, _ = co.Resume(nil)
	if ok {
		t.Fatal("resuming a dead coroutine should fail")
	}
}

func TestWrap(t *testing.T) {
	m := vm.New()
	fnVal := vm.NewNativeClosure(m.Heap, "body", func(m *vm.VM, args []value.Value) ([]value.Value, error) {
		return []value.Value{value.Number(99)}, nil
	})
	co := New(m, fnVal)
	wrapped := Wrap(m, co)
	vals, err := wrapped(m, nil)
	if err != nil {
		t.Fatalf("wrapped() error = %v", err)
	}
	if len(vals) != 1 || vals[0].Float64() != 99 {
		t.Fatalf("wrapped() = %v, want [99]", vals)
	}
}
