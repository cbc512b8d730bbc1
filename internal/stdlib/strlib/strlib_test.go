// Copyright 2024 The Luavm Authors
// This file is part of Luavm.

package strlib

import (
	"testing"

	"github.com/luavm/luavm/internal/value"
	"github.com/luavm/luavm/internal/vm"
)

func TestSubAndUpper(t *testing.T) {
	m := vm.New()
	Register(m)
	lib := m.Globals.Get(m.Intern("string"))

	sub := callField(t, m, lib, "sub")
	res, err := m.Call(sub, m.Intern("hello world"), value.Number(1), value.Number(5))
	if err != nil || string(m.Strings.Bytes(res[0])) != "hello" {
		t.Fatalf("sub = %v, %v", res, err)
	}

	upper := callField(t, m, lib, "upper")
	res, err = m.Call(upper, m.Intern("abc"))
	if err != nil || string(m.Strings.Bytes(res[0])) != "ABC" {
		t.Fatalf("upper = %v, %v", res, err)
	}
}

func TestFormat(t *testing.T) {
	m := vm.New()
	Register(m)
	lib := m.Globals.Get(m.Intern("string"))
	format := callField(t, m, lib, "format")
	res, err := m.Call(format, m.Intern("%d-%s"), value.Number(5), m.Intern("x"))
	if err != nil {
		t.Fatalf("format error = %v", err)
	}
	if string(m.Strings.Bytes(res[0])) != "5-x" {
		t.Fatalf("format = %v", res)
	}
}

func callField(t *testing.T, m *vm.VM, lib value.Value, name string) value.Value {
	t.Helper()
	obj := m.Heap.Lookup(lib)
	tbl, ok := obj.(interface{ Get(value.Value) value.Value })
	if !ok {
		t.Fatalf("string library value is not a table")
	}
	return tbl.Get(m.Intern(name))
}
