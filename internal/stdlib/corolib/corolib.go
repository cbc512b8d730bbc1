// Copyright 2024 The Luavm Authors
// This file is part of Luavm.

// Package corolib implements the coroutine library surface (create, resume,
// yield, status, wrap, running) over internal/coroutine.
package corolib

import (
	"github.com/luavm/luavm/internal/coroutine"
	"github.com/luavm/luavm/internal/heap"
	"github.com/luavm/luavm/internal/table"
	"github.com/luavm/luavm/internal/value"
	"github.com/luavm/luavm/internal/vm"
	"github.com/luavm/luavm/internal/vmerror"
)

// handle is the heap object a coroutine.Coroutine is boxed as so it can be
// passed around as an ordinary KindThread value.
type handle struct {
	co   *coroutine.Coroutine
	self value.Value
}

func (h *handle) Trace(mark func(value.Value)) { h.co.Trace(mark) }
func (h *handle) Finalize(hp *heap.Heap) {
	delete(byCoroutine, h.co)
	h.co.Finalize(hp)
}

// Register installs the coroutine library into m's globals.
func Register(m *vm.VM) {
	lib, libVal := table.NewSized(m.Heap, m.Meta, 0, 8)
	set := func(name string, fn vm.NativeFunc) {
		lib.Set(m.Intern(name), vm.NewNativeClosure(m.Heap, "coroutine."+name, fn))
	}
	set("create", biCreate)
	set("resume", biResume)
	set("yield", biYield)
	set("status", biStatus)
	set("wrap", biWrap)
	set("running", biRunning)
	m.Globals.Set(m.Intern("coroutine"), libVal)
}

func asHandle(m *vm.VM, v value.Value) (*handle, bool) {
	h, ok := m.Heap.Lookup(v).(*handle)
	return h, ok
}

// byCoroutine lets biRunning map a live *coroutine.Coroutine back to the
// thread value script code holds for it.
var byCoroutine = map[*coroutine.Coroutine]value.Value{}

func newHandle(m *vm.VM, fn value.Value) (*coroutine.Coroutine, value.Value) {
	co := coroutine.New(m, fn)
	h := &handle{co: co}
	v := m.Heap.Alloc(value.KindThread, h, 32)
	h.self = v
	byCoroutine[co] = v
	return co, v
}

func biCreate(m *vm.VM, args []value.Value) ([]value.Value, error) {
	if len(args) == 0 || !args[0].IsFunction() {
		return nil, vmerror.BadType("", 1, "create", "function", "no value")
	}
	_, v := newHandle(m, args[0])
	return []value.Value{v}, nil
}

func biResume(m *vm.VM, args []value.Value) ([]value.Value, error) {
	h, ok := asHandle(m, firstArg(args))
	if !ok {
		return nil, vmerror.BadType("", 1, "resume", "coroutine", firstArg(args).Kind().String())
	}
	ok2, vals := h.co.Resume(args[1:])
	return append([]value.Value{value.Bool(ok2)}, vals...), nil
}

func biYield(m *vm.VM, args []value.Value) ([]value.Value, error) {
	co := coroutine.Current(m)
	if co == nil {
		return nil, vmerror.Raw("", "attempt to yield from outside a coroutine")
	}
	return co.Yield(args), nil
}

func biStatus(m *vm.VM, args []value.Value) ([]value.Value, error) {
	h, ok := asHandle(m, firstArg(args))
	if !ok {
		return nil, vmerror.BadType("", 1, "status", "coroutine", firstArg(args).Kind().String())
	}
	return []value.Value{m.Intern(h.co.Status().String())}, nil
}

func biWrap(m *vm.VM, args []value.Value) ([]value.Value, error) {
	if len(args) == 0 || !args[0].IsFunction() {
		return nil, vmerror.BadType("", 1, "wrap", "function", "no value")
	}
	co, _ := newHandle(m, args[0])
	return []value.Value{vm.NewNativeClosure(m.Heap, "wrapped coroutine", coroutine.Wrap(m, co))}, nil
}

func biRunning(m *vm.VM, args []value.Value) ([]value.Value, error) {
	co := coroutine.Current(m)
	if co == nil {
		return []value.Value{value.Nil}, nil
	}
	if v, ok := byCoroutine[co]; ok {
		return []value.Value{v}, nil
	}
	return []value.Value{value.Nil}, nil
}

func firstArg(args []value.Value) value.Value {
	if len(args) == 0 {
		return value.Nil
	}
	return args[0]
}
