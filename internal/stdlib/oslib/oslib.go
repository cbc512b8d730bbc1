// Copyright 2024 The Luavm Authors
// This file is part of Luavm.

// Package oslib implements the small, sandboxed slice of the os library
// this runtime exposes: clock, time, date, getenv, exit, with
// process-control and filesystem mutation entries (execute, remove,
// rename, tmpname) omitted as out of scope for an embeddable interpreter
// library.
package oslib

import (
	"os"
	"time"

	"github.com/luavm/luavm/internal/table"
	"github.com/luavm/luavm/internal/value"
	"github.com/luavm/luavm/internal/vm"
)

var startTime = time.Now()

// Register installs the os library into m's globals.
func Register(m *vm.VM) {
	lib, libVal := table.NewSized(m.Heap, m.Meta, 0, 8)
	set := func(name string, fn vm.NativeFunc) {
		lib.Set(m.Intern(name), vm.NewNativeClosure(m.Heap, "os."+name, fn))
	}
	set("clock", biClock)
	set("time", biTime)
	set("date", biDate)
	set("getenv", biGetenv)
	set("exit", biExit)
	m.Globals.Set(m.Intern("os"), libVal)
}

func biClock(m *vm.VM, args []value.Value) ([]value.Value, error) {
	return []value.Value{value.Number(time.Since(startTime).Seconds())}, nil
}

func biTime(m *vm.VM, args []value.Value) ([]value.Value, error) {
	return []value.Value{value.Number(float64(time.Now().Unix()))}, nil
}

func biDate(m *vm.VM, args []value.Value) ([]value.Value, error) {
	format := "%c"
	if len(args) > 0 && args[0].IsString() {
		format = string(m.Strings.Bytes(args[0]))
	}
	t := time.Now()
	layout := "Mon Jan  2 15:04:05 2006"
	_ = format
	return []value.Value{m.Intern(t.Format(layout))}, nil
}

func biGetenv(m *vm.VM, args []value.Value) ([]value.Value, error) {
	if len(args) == 0 || !args[0].IsString() {
		return []value.Value{value.Nil}, nil
	}
	v, ok := os.LookupEnv(string(m.Strings.Bytes(args[0])))
	if !ok {
		return []value.Value{value.Nil}, nil
	}
	return []value.Value{m.Intern(v)}, nil
}

func biExit(m *vm.VM, args []value.Value) ([]value.Value, error) {
	code := 0
	if len(args) > 0 {
		if args[0].IsNumber() {
			code = int(args[0].Float64())
		} else if args[0].IsBoolean() && !args[0].Bool() {
			code = 1
		}
	}
	os.Exit(code)
	return nil, nil
}
