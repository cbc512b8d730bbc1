// Copyright 2024 The Luavm Authors
// This file is part of Luavm.
//
// Luavm is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package base installs the always-available global functions: print, type,
// tostring/tonumber, pairs/ipairs/next, raw table access, metatable access,
// and the pcall/xpcall/error/assert protected-call family.
package base

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/luavm/luavm/internal/chunk"
	"github.com/luavm/luavm/internal/table"
	"github.com/luavm/luavm/internal/value"
	"github.com/luavm/luavm/internal/vm"
	"github.com/luavm/luavm/internal/vmerror"
)

// Version is the value bound to the global _VERSION.
const Version = "Luavm 5.1"

// Register installs every base library function into m's globals table.
func Register(m *vm.VM) {
	m.Globals.Set(m.Intern("_VERSION"), m.Intern(Version))
	m.Register("print", biPrint)
	m.Register("type", biType)
	m.Register("tostring", biToString)
	m.Register("tonumber", biToNumber)
	m.Register("pairs", biPairs)
	m.Register("ipairs", biIPairs)
	m.Register("next", biNext)
	m.Register("rawget", biRawGet)
	m.Register("rawset", biRawSet)
	m.Register("rawequal", biRawEqual)
	m.Register("rawlen", biRawLen)
	m.Register("setmetatable", biSetMetatable)
	m.Register("getmetatable", biGetMetatable)
	m.Register("assert", biAssert)
	m.Register("error", biError)
	m.Register("pcall", biPCall)
	m.Register("xpcall", biXPCall)
	m.Register("select", biSelect)
	m.Register("unpack", biUnpack)
	m.Register("loadstring", biLoadString)
}

func arg(args []value.Value, i int) value.Value {
	if i < len(args) {
		return args[i]
	}
	return value.Nil
}

func toDisplayString(m *vm.VM, v value.Value) string {
	if v.IsString() {
		return string(m.Strings.Bytes(v))
	}
	if mm := metamethod(m, v, table.MetaMetatable); mm != value.Nil {
		_ = mm
	}
	switch {
	case v == value.Nil:
		return "nil"
	case v.IsBoolean():
		if v.Bool() {
			return "true"
		}
		return "false"
	case v.IsNumber():
		return formatNumber(v.Float64())
	default:
		return fmt.Sprintf("%s: 0x%08x", v.Kind(), v.Handle())
	}
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', 14, 64)
}

func metamethod(m *vm.VM, v value.Value, ev table.MetaEvent) value.Value {
	t, ok := m.Heap.Lookup(v).(*table.Table)
	if !ok {
		return value.Nil
	}
	mt := t.Metatable()
	if mt == value.Nil {
		return value.Nil
	}
	mtObj, ok := m.Heap.Lookup(mt).(*table.Table)
	if !ok {
		return value.Nil
	}
	return mtObj.GetMeta(ev)
}

func biPrint(m *vm.VM, args []value.Value) ([]value.Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		if a.IsString() {
			parts[i] = string(m.Strings.Bytes(a))
			continue
		}
		res, err := callToString(m, a)
		if err != nil {
			return nil, err
		}
		parts[i] = res
	}
	fmt.Fprintln(os.Stdout, strings.Join(parts, "\t"))
	return nil, nil
}

func callToString(m *vm.VM, v value.Value) (string, error) {
	if mm := metamethodTostring(m, v); mm != value.Nil {
		res, err := m.Call(mm, v)
		if err != nil {
			return "", err
		}
		if len(res) > 0 {
			return toDisplayString(m, res[0]), nil
		}
	}
	return toDisplayString(m, v), nil
}

func metamethodTostring(m *vm.VM, v value.Value) value.Value {
	t, ok := m.Heap.Lookup(v).(*table.Table)
	if !ok {
		return value.Nil
	}
	mt := t.Metatable()
	if mt == value.Nil {
		return value.Nil
	}
	mtObj, ok := m.Heap.Lookup(mt).(*table.Table)
	if !ok {
		return value.Nil
	}
	return mtObj.Get(m.Intern("__tostring"))
}

func biType(m *vm.VM, args []value.Value) ([]value.Value, error) {
	return []value.Value{m.Intern(arg(args, 0).Kind().String())}, nil
}

func biToString(m *vm.VM, args []value.Value) ([]value.Value, error) {
	s, err := callToString(m, arg(args, 0))
	if err != nil {
		return nil, err
	}
	return []value.Value{m.Intern(s)}, nil
}

func biToNumber(m *vm.VM, args []value.Value) ([]value.Value, error) {
	v := arg(args, 0)
	if v.IsNumber() {
		return []value.Value{v}, nil
	}
	if v.IsString() {
		base := 10
		if len(args) > 1 {
			base = int(args[1].Float64())
		}
		s := strings.TrimSpace(string(m.Strings.Bytes(v)))
		if base == 10 {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return []value.Value{value.Number(f)}, nil
			}
		} else if n, err := strconv.ParseInt(s, base, 64); err == nil {
			return []value.Value{value.Number(float64(n))}, nil
		}
	}
	return []value.Value{value.Nil}, nil
}

func biPairs(m *vm.VM, args []value.Value) ([]value.Value, error) {
	t := arg(args, 0)
	if mm := metamethod(m, t, table.MetaMetatable); mm != value.Nil {
		_ = mm
	}
	return []value.Value{vm.NewNativeClosure(m.Heap, "next", biNext), t, value.Nil}, nil
}

func biIPairs(m *vm.VM, args []value.Value) ([]value.Value, error) {
	t := arg(args, 0)
	iter := func(m *vm.VM, iargs []value.Value) ([]value.Value, error) {
		tbl, ok := m.Heap.Lookup(iargs[0]).(*table.Table)
		if !ok {
			return nil, vmerror.BadType("", 1, "ipairs iterator", "table", iargs[0].Kind().String())
		}
		i := iargs[1].Float64() + 1
		v := tbl.Get(value.Number(i))
		if v == value.Nil {
			return []value.Value{value.Nil}, nil
		}
		return []value.Value{value.Number(i), v}, nil
	}
	return []value.Value{vm.NewNativeClosure(m.Heap, "ipairs_iter", iter), t, value.Number(0)}, nil
}

func biNext(m *vm.VM, args []value.Value) ([]value.Value, error) {
	tbl, ok := m.Heap.Lookup(arg(args, 0)).(*table.Table)
	if !ok {
		return nil, vmerror.BadType("", 1, "next", "table", arg(args, 0).Kind().String())
	}
	k, v, ok := tbl.Next(arg(args, 1))
	if !ok {
		return []value.Value{value.Nil}, nil
	}
	return []value.Value{k, v}, nil
}

func biRawGet(m *vm.VM, args []value.Value) ([]value.Value, error) {
	tbl, ok := m.Heap.Lookup(arg(args, 0)).(*table.Table)
	if !ok {
		return nil, vmerror.BadType("", 1, "rawget", "table", arg(args, 0).Kind().String())
	}
	return []value.Value{tbl.Get(arg(args, 1))}, nil
}

func biRawSet(m *vm.VM, args []value.Value) ([]value.Value, error) {
	tbl, ok := m.Heap.Lookup(arg(args, 0)).(*table.Table)
	if !ok {
		return nil, vmerror.BadType("", 1, "rawset", "table", arg(args, 0).Kind().String())
	}
	tbl.Set(arg(args, 1), arg(args, 2))
	return []value.Value{args[0]}, nil
}

func biRawEqual(m *vm.VM, args []value.Value) ([]value.Value, error) {
	return []value.Value{value.Bool(arg(args, 0) == arg(args, 1))}, nil
}

func biRawLen(m *vm.VM, args []value.Value) ([]value.Value, error) {
	v := arg(args, 0)
	if v.IsString() {
		return []value.Value{value.Number(float64(len(m.Strings.Bytes(v))))}, nil
	}
	tbl, ok := m.Heap.Lookup(v).(*table.Table)
	if !ok {
		return nil, vmerror.BadType("", 1, "rawlen", "table or string", v.Kind().String())
	}
	return []value.Value{value.Number(float64(tbl.Length()))}, nil
}

func biSetMetatable(m *vm.VM, args []value.Value) ([]value.Value, error) {
	tbl, ok := m.Heap.Lookup(arg(args, 0)).(*table.Table)
	if !ok {
		return nil, vmerror.BadType("", 1, "setmetatable", "table", arg(args, 0).Kind().String())
	}
	if tbl.GetMeta(table.MetaMetatable) != value.Nil {
		return nil, vmerror.Raw("", "cannot change a protected metatable")
	}
	tbl.SetMetatable(arg(args, 1))
	return []value.Value{args[0]}, nil
}

func biGetMetatable(m *vm.VM, args []value.Value) ([]value.Value, error) {
	tbl, ok := m.Heap.Lookup(arg(args, 0)).(*table.Table)
	if !ok {
		return []value.Value{value.Nil}, nil
	}
	mt := tbl.Metatable()
	if mt == value.Nil {
		return []value.Value{value.Nil}, nil
	}
	if mtObj, ok := m.Heap.Lookup(mt).(*table.Table); ok {
		if protected := mtObj.GetMeta(table.MetaMetatable); protected != value.Nil {
			return []value.Value{protected}, nil
		}
	}
	return []value.Value{mt}, nil
}

func biAssert(m *vm.VM, args []value.Value) ([]value.Value, error) {
	v := arg(args, 0)
	if v.Truthy() {
		return args, nil
	}
	if len(args) > 1 {
		return nil, vmerror.New(vmerror.RawMessageNoPosition, toDisplayString(m, args[1]), args[1])
	}
	return nil, vmerror.Raw("", "assertion failed!")
}

func biError(m *vm.VM, args []value.Value) ([]value.Value, error) {
	v := arg(args, 0)
	level := 1.0
	if len(args) > 1 {
		level = args[1].Float64()
	}
	if v.IsString() && level != 0 {
		return nil, vmerror.New(vmerror.RawMessage, string(m.Strings.Bytes(v)), v)
	}
	return nil, vmerror.New(vmerror.RawMessageNoPosition, toDisplayString(m, v), v)
}

func biPCall(m *vm.VM, args []value.Value) (results []value.Value, err error) {
	if len(args) == 0 {
		return nil, vmerror.MissingArg("", 1, "pcall", "value")
	}
	res, callErr := m.Call(args[0], args[1:]...)
	if callErr != nil {
		ve, ok := callErr.(*vmerror.Error)
		if ok && !ve.Catchable() {
			return nil, callErr
		}
		payload := value.Nil
		if ok {
			payload = ve.Value
			if payload == value.Nil {
				payload = m.Intern(ve.Text)
			}
		} else {
			payload = m.Intern(callErr.Error())
		}
		return []value.Value{value.False, payload}, nil
	}
	return append([]value.Value{value.True}, res...), nil
}

func biXPCall(m *vm.VM, args []value.Value) ([]value.Value, error) {
	if len(args) < 2 {
		return nil, vmerror.MissingArg("", 2, "xpcall", "function")
	}
	handler := args[1]
	res, callErr := m.Call(args[0], args[2:]...)
	if callErr != nil {
		ve, ok := callErr.(*vmerror.Error)
		if ok && !ve.Catchable() {
			return nil, callErr
		}
		payload := value.Nil
		if ok {
			payload = ve.Value
			if payload == value.Nil {
				payload = m.Intern(ve.Text)
			}
		}
		handled, handlerErr := m.Call(handler, payload)
		if handlerErr != nil {
			return []value.Value{value.False, m.Intern(vmerror.ErrorInError)}, nil
		}
		return append([]value.Value{value.False}, handled...), nil
	}
	return append([]value.Value{value.True}, res...), nil
}

func biSelect(m *vm.VM, args []value.Value) ([]value.Value, error) {
	sel := arg(args, 0)
	rest := args[1:]
	if sel.IsString() && string(m.Strings.Bytes(sel)) == "#" {
		return []value.Value{value.Number(float64(len(rest)))}, nil
	}
	n := int(sel.Float64())
	if n < 0 {
		n = len(rest) + n + 1
	}
	if n < 1 || n > len(rest) {
		return nil, vmerror.BadValue("", 1, "select", "index out of range")
	}
	return rest[n-1:], nil
}

// biLoadString compiles a pre-compiled binary chunk handed to it as a
// string (the runtime has no text-source front end) and returns a callable
// closure, or nil plus an error message on a malformed chunk.
func biLoadString(m *vm.VM, args []value.Value) ([]value.Value, error) {
	v := arg(args, 0)
	if !v.IsString() {
		return nil, vmerror.BadType("", 1, "loadstring", "string", v.Kind().String())
	}
	proto, err := chunk.Load(m.Strings.Bytes(v), m.Strings.Intern)
	if err != nil {
		return []value.Value{value.Nil, m.Intern(err.Error())}, nil
	}
	return []value.Value{vm.NewScriptClosure(m.Heap, proto, nil)}, nil
}

func biUnpack(m *vm.VM, args []value.Value) ([]value.Value, error) {
	tbl, ok := m.Heap.Lookup(arg(args, 0)).(*table.Table)
	if !ok {
		return nil, vmerror.BadType("", 1, "unpack", "table", arg(args, 0).Kind().String())
	}
	i := int64(1)
	if len(args) > 1 {
		i = int64(args[1].Float64())
	}
	j := tbl.Length()
	if len(args) > 2 {
		j = int64(args[2].Float64())
	}
	var out []value.Value
	for ; i <= j; i++ {
		out = append(out, tbl.Get(value.Number(float64(i))))
	}
	return out, nil
}
