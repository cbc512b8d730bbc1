// Copyright 2024 The Luavm Authors
// This file is part of Luavm.

package tablelib

import (
	"testing"

	"github.com/luavm/luavm/internal/table"
	"github.com/luavm/luavm/internal/value"
	"github.com/luavm/luavm/internal/vm"
)

func field(m *vm.VM, lib value.Value, name string) value.Value {
	t, _ := m.Heap.Lookup(lib).(*table.Table)
	return t.Get(m.Intern(name))
}

func TestInsertConcatRemove(t *testing.T) {
	m := vm.New()
	Register(m)
	lib := m.Globals.Get(m.Intern("table"))

	tbl, tv := table.New(m.Heap, m.Meta)
	tbl.Set(value.Number(1), value.Number(1))
	tbl.Set(value.Number(2), value.Number(2))

	insert := field(m, lib, "insert")
	if _, err := m.Call(insert, tv, value.Number(3)); err != nil {
		t.Fatalf("insert error = %v", err)
	}
	if tbl.Length() != 3 {
		t.Fatalf("length after insert = %d, want 3", tbl.Length())
	}

	concat := field(m, lib, "concat")
	res, err := m.Call(concat, tv, m.Intern(","))
	if err != nil {
		t.Fatalf("concat error = %v", err)
	}
	if string(m.Strings.Bytes(res[0])) != "1,2,3" {
		t.Fatalf("concat = %v", res)
	}

	remove := field(m, lib, "remove")
	res, err = m.Call(remove, tv)
	if err != nil || res[0].Float64() != 3 {
		t.Fatalf("remove = %v, %v", res, err)
	}
}

func TestSort(t *testing.T) {
	m := vm.New()
	Register(m)
	lib := m.Globals.Get(m.Intern("table"))

	tbl, tv := table.New(m.Heap, m.Meta)
	tbl.Set(value.Number(1), value.Number(3))
	tbl.Set(value.Number(2), value.Number(1))
	tbl.Set(value.Number(3), value.Number(2))

	sort := field(m, lib, "sort")
	if _, err := m.Call(sort, tv); err != nil {
		t.Fatalf("sort error = %v", err)
	}
	if tbl.Get(value.Number(1)).Float64() != 1 || tbl.Get(value.Number(3)).Float64() != 3 {
		t.Fatalf("table not sorted: %v %v %v", tbl.Get(value.Number(1)), tbl.Get(value.Number(2)), tbl.Get(value.Number(3)))
	}
}
