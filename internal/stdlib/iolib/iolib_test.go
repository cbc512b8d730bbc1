// Copyright 2024 The Luavm Authors
// This file is part of Luavm.

package iolib

import (
	"testing"

	"github.com/luavm/luavm/internal/table"
	"github.com/luavm/luavm/internal/vm"
)

func TestWriteAcceptsStringsAndNumbers(t *testing.T) {
	m := vm.New()
	Register(m)
	lib := m.Globals.Get(m.Intern("io"))
	tbl, ok := m.Heap.Lookup(lib).(*table.Table)
	if !ok {
		t.Fatalf("io is not a table value")
	}
	write := tbl.Get(m.Intern("write"))
	if _, err := m.Call(write, m.Intern("hello "), m.Intern("world")); err != nil {
		t.Fatalf("io.write error = %v", err)
	}
}
