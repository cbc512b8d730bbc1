// Copyright 2024 The Luavm Authors
// This file is part of Luavm.
//
// Luavm is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Luavm is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.

// Package coroutine implements cooperative coroutines: each one runs its
// script closure on its own goroutine, with resume/yield synchronized
// through a pair of unbuffered channels carrying argument/result slices —
// the Go analogue of the reference implementation's per-coroutine native
// stack and setjmp/longjmp handoff. A real native stack per coroutine isn't
// needed in Go (goroutines already have growable stacks), but this package
// still reserves a small mmap-backed scratch region per coroutine on its
// first resume and releases it in Finalize; nothing else reads or reports
// the region.
package coroutine

import (
	"fmt"

	"github.com/edsrzf/mmap-go"

	"github.com/luavm/luavm/internal/heap"
	"github.com/luavm/luavm/internal/value"
	"github.com/luavm/luavm/internal/vm"
	"github.com/luavm/luavm/internal/vmerror"
)

// ScratchSize is the size in bytes of the mmap'd scratch region reserved
// per coroutine on first resume. A host process may lower or raise it
// (e.g. from a loaded config file) before any coroutine starts running.
var ScratchSize = 64 << 10

// Status mirrors coroutine.status()'s four-value result.
type Status int

const (
	Suspended Status = iota
	Running
	Normal
	Dead
)

func (s Status) String() string {
	switch s {
	case Suspended:
		return "suspended"
	case Running:
		return "running"
	case Normal:
		return "normal"
	default:
		return "dead"
	}
}

type resumeMsg struct {
	args []value.Value
}

type yieldMsg struct {
	values []value.Value
	err    *vmerror.Error
	done   bool
}

// Coroutine is one cooperatively scheduled thread of script execution.
type Coroutine struct {
	m      *vm.VM
	fn     value.Value
	status Status

	resumeCh chan resumeMsg
	yieldCh  chan yieldMsg

	scratch mmap.MMap
	started bool
}

// New creates a suspended coroutine that will run fn when first resumed.
func New(m *vm.VM, fn value.Value) *Coroutine {
	c := &Coroutine{
		m:        m,
		fn:       fn,
		status:   Suspended,
		resumeCh: make(chan resumeMsg),
		yieldCh:  make(chan yieldMsg),
	}
	return c
}

// Status reports the coroutine's current scheduling state.
func (c *Coroutine) Status() Status { return c.status }

// Trace implements heap.Object.
func (c *Coroutine) Trace(mark func(value.Value)) { mark(c.fn) }

// Finalize implements heap.Object; releases the scratch mapping.
func (c *Coroutine) Finalize(h *heap.Heap) {
	if c.scratch != nil {
		c.scratch.Unmap()
	}
}

// Resume transfers control to c, running it until it yields, returns, or
// raises an error. The returned bool matches coroutine.resume's leading
// success flag.
func (c *Coroutine) Resume(args []value.Value) (bool, []value.Value) {
	if c.status == Dead {
		return false, []value.Value{c.m.Intern("cannot resume dead coroutine")}
	}
	if c.status != Suspended {
		return false, []value.Value{c.m.Intern("cannot resume non-suspended coroutine")}
	}

	if !c.started {
		c.started = true
		region, err := mmap.MapRegion(nil, ScratchSize, mmap.RDWR, mmap.ANON, 0)
		if err == nil {
			c.scratch = region
		}
		go c.run()
	}

	c.status = Running
	c.resumeCh <- resumeMsg{args: args}
	out := <-c.yieldCh
	if out.done {
		c.status = Dead
	} else {
		c.status = Suspended
	}
	if out.err != nil {
		return false, []value.Value{out.err.Value}
	}
	return true, out.values
}

func (c *Coroutine) run() {
	first := <-c.resumeCh
	c.m.PushThread(c)
	defer c.m.PopThread()

	results, err := c.m.Call(c.fn, first.args...)
	if err != nil {
		if ve, ok := err.(*vmerror.Error); ok {
			c.yieldCh <- yieldMsg{err: ve, done: true}
		} else {
			c.yieldCh <- yieldMsg{err: vmerror.RawNoPosition(err.Error()), done: true}
		}
		return
	}
	c.yieldCh <- yieldMsg{values: results, done: true}
}

// Current returns the innermost coroutine running on m, or nil if the main
// thread is executing — what coroutine.yield and coroutine.running resolve
// against.
func Current(m *vm.VM) *Coroutine {
	c, _ := m.CurrentThread().(*Coroutine)
	return c
}

// Yield suspends the calling coroutine, handing values back to its resumer,
// and blocks until the next Resume. It must be called on the coroutine that
// is currently running; callers find it with Current, which returns nil on
// the main thread.
func (c *Coroutine) Yield(values []value.Value) []value.Value {
	c.yieldCh <- yieldMsg{values: values, done: false}
	next := <-c.resumeCh
	return next.args
}

// Wrap builds a native function value behaving like coroutine.wrap(fn): each
// call resumes the underlying coroutine and either returns its yielded
// values or re-raises its error.
func Wrap(m *vm.VM, co *Coroutine) vm.NativeFunc {
	return func(_ *vm.VM, args []value.Value) ([]value.Value, error) {
		ok, vals := co.Resume(args)
		if !ok {
			msg := "coroutine error"
			if len(vals) > 0 {
				msg = fmt.Sprintf("%v", vals[0])
			}
			return nil, vmerror.RawNoPosition(msg)
		}
		return vals, nil
	}
}
