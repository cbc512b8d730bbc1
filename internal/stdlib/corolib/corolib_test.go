// Copyright 2024 The Luavm Authors
// This file is part of Luavm.

package corolib

import (
	"testing"

	"github.com/luavm/luavm/internal/value"
	"github.com/luavm/luavm/internal/vm"
)

func TestCreateStatusResumeYield(t *testing.T) {
	m := vm.New()
	Register(m)
	lib := m.Globals.Get(m.Intern("coroutine"))

	body := vm.NewNativeClosure(m.Heap, "body", func(m *vm.VM, args []value.Value) ([]value.Value, error) {
		yield := callField(t, m, lib, "yield")
		yielded, err := m.Call(yield, args[0])
		if err != nil {
			return nil, err
		}
		return []value.Value{value.Number(yielded[0].Float64() + 1)}, nil
	})

	co, err := m.Call(callField(t, m, lib, "create"), body)
	if err != nil || len(co) != 1 {
		t.Fatalf("coroutine.create() = %v, %v", co, err)
	}

	status := callField(t, m, lib, "status")
	res, err := m.Call(status, co[0])
	if err != nil || string(m.Strings.Bytes(res[0])) != "suspended" {
		t.Fatalf("status before resume = %v, %v", res, err)
	}

	resume := callField(t, m, lib, "resume")
	res, err = m.Call(resume, co[0], value.Number(41))
	if err != nil {
		t.Fatalf("resume error = %v", err)
	}
	if len(res) != 2 || res[0] != value.True || res[1].Float64() != 41 {
		t.Fatalf("resume(41) = %v, want [true, 41]", res)
	}

	res, err = m.Call(resume, co[0], value.Number(1))
	if err != nil {
		t.Fatalf("second resume error = %v", err)
	}
	if len(res) != 2 || res[0] != value.True || res[1].Float64() != 2 {
		t.Fatalf("resume(1) = %v, want [true, 2]", res)
	}

	res, err = m.Call(status, co[0])
	if err != nil || string(m.Strings.Bytes(res[0])) != "dead" {
		t.Fatalf("status after completion = %v, %v", res, err)
	}
}

func TestRunningReportsCurrentCoroutine(t *testing.T) {
	m := vm.New()
	Register(m)
	lib := m.Globals.Get(m.Intern("coroutine"))
	running := callField(t, m, lib, "running")

	res, err := m.Call(running)
	if err != nil || len(res) != 1 || res[0] != value.Nil {
		t.Fatalf("running() outside any coroutine = %v, %v, want nil", res, err)
	}

	var insideSelf value.Value
	body := vm.NewNativeClosure(m.Heap, "body", func(m *vm.VM, args []value.Value) ([]value.Value, error) {
		res, err := m.Call(running)
		if err != nil {
			return nil, err
		}
		insideSelf = res[0]
		return nil, nil
	})

	create := callField(t, m, lib, "create")
	co, _ := m.Call(create, body)
	resume := callField(t, m, lib, "resume")
	if _, err := m.Call(resume, co[0]); err != nil {
		t.Fatalf("resume error = %v", err)
	}
	if insideSelf != co[0] {
		t.Fatalf("running() inside body = %v, want %v", insideSelf, co[0])
	}
}

func callField(t *testing.T, m *vm.VM, lib value.Value, name string) value.Value {
	t.Helper()
	obj := m.Heap.Lookup(lib)
	tbl, ok := obj.(interface{ Get(value.Value) value.Value })
	if !ok {
		t.Fatalf("coroutine library value is not a table")
	}
	return tbl.Get(m.Intern(name))
}
