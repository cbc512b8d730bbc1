// Copyright 2024 The Luavm Authors
// This file is part of Luavm.

package vm

import (
	"github.com/luavm/luavm/internal/chunk"
	"github.com/luavm/luavm/internal/heap"
	"github.com/luavm/luavm/internal/value"
)

// UpvalueCell is a single captured-variable cell. While open it aliases a
// live register slot in some still-executing frame; CLOSE (or that frame
// returning) detaches it into an owned value, matching the open/closed
// upvalue lifecycle described in the closure model.
type UpvalueCell struct {
	open   bool
	stack  []value.Value
	index  int
	closed value.Value
}

// Get reads the cell's current value.
func (u *UpvalueCell) Get() value.Value {
	if u.open {
		return u.stack[u.index]
	}
	return u.closed
}

// Set writes the cell's current value.
func (u *UpvalueCell) Set(v value.Value) {
	if u.open {
		u.stack[u.index] = v
		return
	}
	u.closed = v
}

// Close detaches the cell from its frame's register slice, freezing its
// current value so it outlives the frame.
func (u *UpvalueCell) Close() {
	if !u.open {
		return
	}
	u.closed = u.stack[u.index]
	u.open = false
	u.stack = nil
}

// NativeFunc is the signature every standard-library entry point and host
// callback implements.
type NativeFunc func(m *VM, args []value.Value) ([]value.Value, error)

// Closure is either a script closure (Proto set) or a native function
// (Native set). Both are heap-tracked function values.
type Closure struct {
	Proto     *chunk.Prototype
	Upvalues  []*UpvalueCell
	Native    NativeFunc
	Name      string // debug name, used in tracebacks for native functions
}

// Trace implements heap.Object: a closure keeps its closed-over upvalues'
// closed values alive. Open upvalues alias a frame's register slice, which
// the VM's own root hook marks directly.
func (c *Closure) Trace(mark func(value.Value)) {
	for _, uv := range c.Upvalues {
		if !uv.open {
			mark(uv.closed)
		}
	}
}

// Finalize implements heap.Object; closures own no non-GC resource.
func (c *Closure) Finalize(h *heap.Heap) {}

// NewScriptClosure allocates a closure wrapping a loaded prototype.
func NewScriptClosure(h *heap.Heap, proto *chunk.Prototype, upvalues []*UpvalueCell) value.Value {
	c := &Closure{Proto: proto, Upvalues: upvalues}
	return h.Alloc(value.KindFunction, c, 64)
}

// NewNativeClosure allocates a closure wrapping a Go function, the mechanism
// the standard library uses to install built-ins into the globals table.
func NewNativeClosure(h *heap.Heap, name string, fn NativeFunc) value.Value {
	c := &Closure{Native: fn, Name: name}
	return h.Alloc(value.KindFunction, c, 32)
}
