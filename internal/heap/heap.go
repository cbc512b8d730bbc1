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

// Package heap implements the stop-the-world mark-and-sweep collector that
// owns every object with lifetime beyond a single stack frame: tables,
// computed strings, closures, upvalue cells, and coroutines. Objects are not
// addressed by Go pointers hidden inside a NaN-boxed value.Value — they are
// addressed by a small integer handle into this heap's object table, the
// "implementer's choice" the data model explicitly allows in place of a
// 48-bit pointer payload.
package heap

import (
	"fmt"

	"github.com/luavm/luavm/internal/value"
)

// MaxRootHooks bounds the number of root-registration hooks, mirroring the
// reference collector's fixed GC_HOOKS table.
const MaxRootHooks = 50

const (
	initialLimit uint64 = 16 << 10 // 16 KiB before the first collection
	minLimit     uint64 = 4 << 10
)

// Object is implemented by every value kept on the heap. Trace must invoke
// mark on every value.Value the object directly holds a reference to;
// Finalize releases any resource that outlives simple garbage (open upvalue
// detachment, native stack unmapping, intern-store removal).
type Object interface {
	Trace(mark func(value.Value))
	Finalize(h *Heap)
}

type entry struct {
	kind   value.Kind
	obj    Object
	marked bool
	size   uint64
}

// RootHook is invoked during every collection; it must call mark on every
// root value the registering subsystem owns (globals table, running frame
// chain, each coroutine's stack, etc).
type RootHook func(mark func(value.Value))

// Heap owns every tracked object and drives mark-and-sweep collection.
type Heap struct {
	objects     map[uint32]*entry
	nextHandle  uint32
	freeHandles []uint32

	liveBytes uint64
	limit     uint64

	pauseDepth int
	collecting bool

	hooks []RootHook

	// Stats, surfaced for diagnostics (-d flag, tests).
	Collections int
}

// New creates an empty heap with the reference implementation's starting
// heap limit.
func New() *Heap {
	return NewWithLimit(initialLimit)
}

// NewWithLimit creates an empty heap whose first collection triggers at
// limit bytes of live data, letting a host process size the heap from a
// loaded configuration instead of the built-in default.
func NewWithLimit(limit uint64) *Heap {
	if limit < minLimit {
		limit = minLimit
	}
	return &Heap{
		objects: make(map[uint32]*entry),
		limit:   limit,
	}
}

// AddRootHook registers a new GC root. Panics past MaxRootHooks, matching
// the reference implementation's fixed-size hook table.
func (h *Heap) AddRootHook(hook RootHook) {
	if len(h.hooks) >= MaxRootHooks {
		panic(fmt.Sprintf("heap: too many root hooks (limit %d)", MaxRootHooks))
	}
	h.hooks = append(h.hooks, hook)
}

// Pause suspends automatic collection until a matching Unpause; pauses
// nest.
func (h *Heap) Pause() { h.pauseDepth++ }

// Unpause reverses one Pause call.
func (h *Heap) Unpause() {
	if h.pauseDepth > 0 {
		h.pauseDepth--
	}
}

// Alloc registers a new heap object of the given kind and size (in bytes,
// used only to drive the collection-trigger heuristic) and returns its
// boxed handle. A collection runs first if the heap is over its limit and
// not paused.
func (h *Heap) Alloc(kind value.Kind, obj Object, size uint64) value.Value {
	if h.liveBytes+size >= h.limit && h.pauseDepth == 0 && !h.collecting {
		h.collect(size)
	}
	handle := h.allocHandle()
	h.objects[handle] = &entry{kind: kind, obj: obj, size: size}
	h.liveBytes += size
	return value.Handle(kind, handle)
}

func (h *Heap) allocHandle() uint32 {
	if n := len(h.freeHandles); n > 0 {
		handle := h.freeHandles[n-1]
		h.freeHandles = h.freeHandles[:n-1]
		return handle
	}
	handle := h.nextHandle
	h.nextHandle++
	return handle
}

// Lookup returns the live object behind v, or nil if v is not a live heap
// handle managed by this heap.
func (h *Heap) Lookup(v value.Value) Object {
	if v.IsNumber() || v == value.Nil || v.IsBoolean() {
		return nil
	}
	e, ok := h.objects[v.Handle()]
	if !ok {
		return nil
	}
	return e.obj
}

// LiveBytes reports the heap's current accounting of live allocation size.
func (h *Heap) LiveBytes() uint64 { return h.liveBytes }

// Limit reports the current collection-trigger threshold.
func (h *Heap) Limit() uint64 { return h.limit }

// Collect runs a full stop-the-world mark-and-sweep pass unconditionally,
// regardless of the live/limit heuristic. Alloc runs the same pass when an
// allocation would take the heap over its limit.
func (h *Heap) Collect() { h.collect(0) }

// collect is Collect's body. pending is the size of an allocation that is
// about to be linked in; it counts toward the surviving total when the limit
// is resized.
func (h *Heap) collect(pending uint64) {
	if h.collecting {
		panic("heap: collector is not reentrant")
	}
	h.collecting = true
	defer func() { h.collecting = false }()

	for _, e := range h.objects {
		e.marked = false
	}

	mark := h.markValue
	for _, hook := range h.hooks {
		hook(mark)
	}

	var survivors uint64
	for handle, e := range h.objects {
		if !e.marked {
			e.obj.Finalize(h)
			delete(h.objects, handle)
			h.freeHandles = append(h.freeHandles, handle)
			continue
		}
		survivors += e.size
	}
	h.liveBytes = survivors
	h.Collections++

	switch {
	case h.liveBytes+pending >= h.limit:
		h.limit *= 2
	case h.liveBytes+pending < h.limit/2 && h.limit > minLimit:
		h.limit /= 2
		if h.limit < minLimit {
			h.limit = minLimit
		}
	}
}

func (h *Heap) markValue(v value.Value) {
	if v.IsNumber() || v == value.Nil || v.IsBoolean() {
		return
	}
	e, ok := h.objects[v.Handle()]
	if !ok || e.marked {
		return
	}
	e.marked = true
	e.obj.Trace(h.markValue)
}
