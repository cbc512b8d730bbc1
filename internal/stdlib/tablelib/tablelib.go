// Copyright 2024 The Luavm Authors
// This file is part of Luavm.

// Package tablelib implements the table library: insert, remove, concat,
// sort, getn, maxn.
package tablelib

import (
	"sort"
	"strconv"
	"strings"

	"github.com/luavm/luavm/internal/table"
	"github.com/luavm/luavm/internal/value"
	"github.com/luavm/luavm/internal/vm"
	"github.com/luavm/luavm/internal/vmerror"
)

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', 14, 64)
}

// Register installs the table library into m's globals.
func Register(m *vm.VM) {
	lib, libVal := table.NewSized(m.Heap, m.Meta, 0, 8)
	set := func(name string, fn vm.NativeFunc) {
		lib.Set(m.Intern(name), vm.NewNativeClosure(m.Heap, "table."+name, fn))
	}
	set("insert", biInsert)
	set("remove", biRemove)
	set("concat", biConcat)
	set("sort", biSort)
	set("getn", biGetn)
	set("maxn", biMaxn)
	m.Globals.Set(m.Intern("table"), libVal)
}

func arg(args []value.Value, i int) value.Value {
	if i < len(args) {
		return args[i]
	}
	return value.Nil
}

func tbl(m *vm.VM, v value.Value, fn string) (*table.Table, error) {
	t, ok := m.Heap.Lookup(v).(*table.Table)
	if !ok {
		return nil, vmerror.BadType("", 1, fn, "table", v.Kind().String())
	}
	return t, nil
}

func biInsert(m *vm.VM, args []value.Value) ([]value.Value, error) {
	t, err := tbl(m, arg(args, 0), "insert")
	if err != nil {
		return nil, err
	}
	if len(args) == 2 {
		t.Set(value.Number(float64(t.Length()+1)), args[1])
		return nil, nil
	}
	if len(args) >= 3 {
		pos := int64(args[1].Float64())
		t.Insert(pos, args[2])
		return nil, nil
	}
	return nil, vmerror.MissingArg("", 2, "insert", "value")
}

func biRemove(m *vm.VM, args []value.Value) ([]value.Value, error) {
	t, err := tbl(m, arg(args, 0), "remove")
	if err != nil {
		return nil, err
	}
	pos := t.Length()
	if len(args) > 1 {
		pos = int64(args[1].Float64())
	}
	if t.Length() == 0 {
		return []value.Value{value.Nil}, nil
	}
	return []value.Value{t.RemoveAt(pos)}, nil
}

func biConcat(m *vm.VM, args []value.Value) ([]value.Value, error) {
	t, err := tbl(m, arg(args, 0), "concat")
	if err != nil {
		return nil, err
	}
	sep := ""
	if len(args) > 1 && args[1].IsString() {
		sep = string(m.Strings.Bytes(args[1]))
	}
	i := int64(1)
	if len(args) > 2 {
		i = int64(args[2].Float64())
	}
	j := t.Length()
	if len(args) > 3 {
		j = int64(args[3].Float64())
	}
	var parts []string
	for ; i <= j; i++ {
		v := t.Get(value.Number(float64(i)))
		if !v.IsString() && !v.IsNumber() {
			return nil, vmerror.BadValue("", 1, "concat", "invalid value (a "+v.Kind().String()+") at index")
		}
		if v.IsString() {
			parts = append(parts, string(m.Strings.Bytes(v)))
		} else {
			parts = append(parts, formatNumber(v.Float64()))
		}
	}
	return []value.Value{m.Intern(strings.Join(parts, sep))}, nil
}

func biGetn(m *vm.VM, args []value.Value) ([]value.Value, error) {
	t, err := tbl(m, arg(args, 0), "getn")
	if err != nil {
		return nil, err
	}
	return []value.Value{value.Number(float64(t.Length()))}, nil
}

func biMaxn(m *vm.VM, args []value.Value) ([]value.Value, error) {
	t, err := tbl(m, arg(args, 0), "maxn")
	if err != nil {
		return nil, err
	}
	max := int64(0)
	k, v, ok := t.Next(value.Nil)
	for ok {
		if k.IsNumber() {
			if n := int64(k.Float64()); n > max {
				max = n
			}
		}
		k, v, ok = t.Next(k)
	}
	_ = v
	return []value.Value{value.Number(float64(max))}, nil
}

func biSort(m *vm.VM, args []value.Value) ([]value.Value, error) {
	t, err := tbl(m, arg(args, 0), "sort")
	if err != nil {
		return nil, err
	}
	n := int(t.Length())
	items := make([]value.Value, n)
	for i := 0; i < n; i++ {
		items[i] = t.Get(value.Number(float64(i + 1)))
	}
	var less func(a, b value.Value) bool
	if len(args) > 1 && args[1] != value.Nil {
		cmp := args[1]
		less = func(a, b value.Value) bool {
			res, callErr := m.Call(cmp, a, b)
			if callErr != nil {
				panic(callErr)
			}
			return len(res) > 0 && res[0].Truthy()
		}
	} else {
		less = func(a, b value.Value) bool {
			if a.IsNumber() && b.IsNumber() {
				return a.Float64() < b.Float64()
			}
			return string(m.Strings.Bytes(a)) < string(m.Strings.Bytes(b))
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
	for i, v := range items {
		t.Set(value.Number(float64(i+1)), v)
	}
	return nil, nil
}
