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

// Package table implements the mixed array/hash associative container:
// positive integer keys that extend the table contiguously live in a plain
// Go slice (the "array part"); everything else lives in an open-addressed
// hash part with linear probing, exactly as the reference hash table probes,
// plus the 17-slot metamethod cache described in the data model.
//
// The hash part's growth policy, and the "#" length heuristic's refusal to
// shrink on delete, are both grounded on the reference lhash implementation;
// the array part itself is this runtime's own addition (the reference table
// has none).
package table

import (
	"github.com/luavm/luavm/internal/heap"
	"github.com/luavm/luavm/internal/value"
)

const hashLoadFactorPct = 80

type hpair struct {
	used bool
	key  value.Value
	val  value.Value
}

// Table is a heap-tracked associative container.
type Table struct {
	heap *heap.Heap
	meta *MetaKeys

	array  []value.Value
	length uint32

	hashCap   uint32
	hashSize  uint32
	hashSlots []hpair

	metatable   value.Value
	metamethods *[NumMetaSlots]value.Value
}

// New allocates an empty table on h.
func New(h *heap.Heap, meta *MetaKeys) (*Table, value.Value) {
	return NewSized(h, meta, 0, 0)
}

// NewSized allocates a table pre-sized per the NEWTABLE opcode's size
// hints; hints only affect initial capacity, never correctness.
func NewSized(h *heap.Heap, meta *MetaKeys, arrayHint, hashHint int) (*Table, value.Value) {
	t := &Table{
		heap:      h,
		meta:      meta,
		metatable: value.Nil,
	}
	if arrayHint > 0 {
		t.array = make([]value.Value, 0, arrayHint)
	}
	if hashHint > 0 {
		t.hashCap = nextHashCap(uint32(hashHint))
		t.hashSlots = make([]hpair, t.hashCap)
	}
	v := h.Alloc(value.KindTable, t, 48)
	return t, v
}

func nextHashCap(hint uint32) uint32 {
	cap := uint32(8)
	for cap < hint {
		cap = cap*2 + 1
	}
	return cap
}

func asArrayIndex(key value.Value) (int64, bool) {
	if !key.IsNumber() {
		return 0, false
	}
	f := key.Float64()
	n := int64(f)
	if float64(n) != f || n < 1 {
		return 0, false
	}
	return n, true
}

// Get implements the `get` operation. A non-existent key, or the nil key,
// yields nil.
func (t *Table) Get(key value.Value) value.Value {
	if key == value.Nil {
		return value.Nil
	}
	if ev, ok := t.meta.Check(key); ok {
		if t.metamethods == nil {
			return value.Nil
		}
		return t.metamethods[ev]
	}
	if n, ok := asArrayIndex(key); ok && n <= int64(len(t.array)) {
		return t.array[n-1]
	}
	return t.getHash(key)
}

// Set implements the `set` operation, including the dual-write metamethod
// cache rule and the non-monotonic length heuristic.
func (t *Table) Set(key, val value.Value) {
	if key == value.Nil {
		panic("table: nil key")
	}
	if key.IsUpvalue() || val.IsUpvalue() {
		panic("table: upvalue cannot be used as a table key or value")
	}
	if ev, ok := t.meta.Check(key); ok {
		if t.metamethods == nil {
			fresh := [NumMetaSlots]value.Value{}
			for i := range fresh {
				fresh[i] = value.Nil
			}
			t.metamethods = &fresh
		}
		t.metamethods[ev] = val
	}

	if n, ok := asArrayIndex(key); ok && n <= int64(len(t.array))+1 {
		t.setArray(n, val)
		return
	}
	t.setHash(key, val)
}

// Remove is `set(t, k, nil)`.
func (t *Table) Remove(key value.Value) { t.Set(key, value.Nil) }

func (t *Table) setArray(n int64, val value.Value) {
	idx := int(n - 1)
	for idx >= len(t.array) {
		t.array = append(t.array, value.Nil)
	}
	wasUnset := t.array[idx] == value.Nil
	t.array[idx] = val
	if wasUnset && uint32(n) > t.length {
		t.length = uint32(n)
	}
}

func (t *Table) getHash(key value.Value) value.Value {
	idx, ok := t.findHashSlot(key)
	if !ok {
		return value.Nil
	}
	return t.hashSlots[idx].val
}

func (t *Table) findHashSlot(key value.Value) (int, bool) {
	if t.hashCap == 0 {
		return 0, false
	}
	h := key.Hash()
	for i := uint32(0); i < t.hashCap; i++ {
		idx := (h + i) % t.hashCap
		s := &t.hashSlots[idx]
		if !s.used {
			return 0, false
		}
		if s.key == key {
			return int(idx), true
		}
	}
	return 0, false
}

func (t *Table) setHash(key, val value.Value) {
	if t.hashCap == 0 {
		t.hashCap = 8
		t.hashSlots = make([]hpair, t.hashCap)
	}
	h := key.Hash()
	for i := uint32(0); ; i++ {
		idx := (h + i) % t.hashCap
		s := &t.hashSlots[idx]
		if s.used && s.key == key {
			s.val = val
			return
		}
		if !s.used {
			*s = hpair{used: true, key: key, val: val}
			t.hashSize++
			if n, ok := asArrayIndex(key); ok && uint32(n) > t.length {
				t.length = uint32(n)
			}
			if t.hashSize*100/t.hashCap > hashLoadFactorPct {
				t.growHash()
			}
			return
		}
	}
}

func (t *Table) growHash() {
	old := t.hashSlots
	t.hashCap = t.hashCap*2 + 1
	t.hashSlots = make([]hpair, t.hashCap)
	for _, s := range old {
		if !s.used {
			continue
		}
		h := s.key.Hash()
		for i := uint32(0); ; i++ {
			idx := (h + i) % t.hashCap
			if !t.hashSlots[idx].used {
				t.hashSlots[idx] = s
				break
			}
		}
	}
}

// Length implements the `#` operator: the largest integer key n ever passed
// to a `set` call, whether the value stored was nil or not, never revised
// downward on subsequent deletion. This matches the reference table length heuristic
// for sequences with holes: deleting the tail does not shrink `#t`.
func (t *Table) Length() int64 { return int64(t.length) }

// Metatable returns the table's associated metatable, or value.Nil.
func (t *Table) Metatable() value.Value { return t.metatable }

// GetMeta reads this table's own metamethod cache slot directly — used when
// this table is itself acting as another value's metatable.
func (t *Table) GetMeta(ev MetaEvent) value.Value {
	if t.metamethods == nil {
		return value.Nil
	}
	return t.metamethods[ev]
}

// SetMetatable replaces the table's metatable.
func (t *Table) SetMetatable(mt value.Value) { t.metatable = mt }

// Insert shifts elements [pos, Length()] up by one and stores v at pos,
// the array-shifting helper the table library's table.insert exposes.
func (t *Table) Insert(pos int64, v value.Value) {
	n := t.Length()
	for i := n; i >= pos; i-- {
		t.Set(value.Number(float64(i+1)), t.Get(value.Number(float64(i))))
	}
	t.Set(value.Number(float64(pos)), v)
}

// RemoveAt shifts elements (pos, Length()] down by one, returning the value
// that was at pos — table.remove's helper.
func (t *Table) RemoveAt(pos int64) value.Value {
	n := t.Length()
	v := t.Get(value.Number(float64(pos)))
	for i := pos; i < n; i++ {
		t.Set(value.Number(float64(i)), t.Get(value.Number(float64(i+1))))
	}
	if n > 0 {
		t.Set(value.Number(float64(n)), value.Nil)
	}
	return v
}

// Next supports the generic-for iteration protocol: given the previous key
// (value.Nil to start), it returns the next (key, value) pair in this
// table's iteration order — array part first, then hash part in slot order.
func (t *Table) Next(key value.Value) (value.Value, value.Value, bool) {
	arrayStart := 0
	hashStart := 0
	if key != value.Nil {
		if n, ok := asArrayIndex(key); ok && n <= int64(len(t.array)) {
			arrayStart = int(n)
		} else {
			idx, found := t.findHashSlot(key)
			if !found {
				return value.Nil, value.Nil, false
			}
			arrayStart = len(t.array)
			hashStart = idx + 1
		}
	}
	for i := arrayStart; i < len(t.array); i++ {
		if t.array[i] != value.Nil {
			return value.Number(float64(i + 1)), t.array[i], true
		}
	}
	for i := hashStart; i < int(t.hashCap); i++ {
		if t.hashSlots[i].used && t.hashSlots[i].val != value.Nil {
			return t.hashSlots[i].key, t.hashSlots[i].val, true
		}
	}
	return value.Nil, value.Nil, false
}

// Trace implements heap.Object.
func (t *Table) Trace(mark func(value.Value)) {
	if t.metatable != value.Nil {
		mark(t.metatable)
	}
	for _, v := range t.array {
		mark(v)
	}
	for _, s := range t.hashSlots {
		if s.used {
			mark(s.key)
			mark(s.val)
		}
	}
	if t.metamethods != nil {
		for _, v := range t.metamethods {
			mark(v)
		}
	}
}

// Finalize implements heap.Object; tables own no non-GC resources.
func (t *Table) Finalize(h *heap.Heap) {}
