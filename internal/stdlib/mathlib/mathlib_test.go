// Copyright 2024 The Luavm Authors
// This file is part of Luavm.

package mathlib

import (
	"testing"

	"github.com/luavm/luavm/internal/table"
	"github.com/luavm/luavm/internal/value"
	"github.com/luavm/luavm/internal/vm"
)

func TestFloorAndMax(t *testing.T) {
	m := vm.New()
	Register(m)
	lib := m.Globals.Get(m.Intern("math"))
	tbl, _ := m.Heap.Lookup(lib).(*table.Table)

	floor := tbl.Get(m.Intern("floor"))
	res, err := m.Call(floor, value.Number(3.7))
	if err != nil || res[0].Float64() != 3 {
		t.Fatalf("floor(3.7) = %v, %v", res, err)
	}

	maxFn := tbl.Get(m.Intern("max"))
	res, err = m.Call(maxFn, value.Number(1), value.Number(9), value.Number(4))
	if err != nil || res[0].Float64() != 9 {
		t.Fatalf("max(1,9,4) = %v, %v", res, err)
	}
}
