// Copyright 2024 The Luavm Authors
// This file is part of Luavm.

package oslib

import (
	"testing"

	"github.com/luavm/luavm/internal/table"
	"github.com/luavm/luavm/internal/vm"
)

func TestClockAndGetenv(t *testing.T) {
	m := vm.New()
	Register(m)
	lib := m.Globals.Get(m.Intern("os"))
	tbl, ok := m.Heap.Lookup(lib).(*table.Table)
	if !ok {
		t.Fatalf("os is not a table value")
	}

	clock := tbl.Get(m.Intern("clock"))
	res, err := m.Call(clock)
	if err != nil || len(res) != 1 || !res[0].IsNumber() {
		t.Fatalf("os.clock() = %v, %v", res, err)
	}

	getenv := tbl.Get(m.Intern("getenv"))
	res, err = m.Call(getenv, m.Intern("DEFINITELY_UNSET_LUAVM_VAR"))
	if err != nil {
		t.Fatalf("os.getenv error = %v", err)
	}
	if len(res) != 1 || !res[0].IsNil() {
		t.Fatalf("os.getenv(unset) = %v, want nil", res)
	}
}
