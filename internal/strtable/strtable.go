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

// Package strtable implements the content-addressed string intern store.
// Two byte-identical strings always resolve to the same handle, so string
// equality at the value layer reduces to handle equality.
package strtable

import (
	"encoding/binary"

	"github.com/VictoriaMetrics/fastcache"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/crypto/sha3"

	"github.com/luavm/luavm/internal/heap"
	"github.com/luavm/luavm/internal/value"
)

const (
	initialCap     = 32
	loadFactorPct  = 70
	fnvOffsetBasis = 2166136261
	fnvPrime       = 16777619

	// recentCap bounds the front-line LRU of recently interned short
	// strings (chunk source names, repeatedly re-parsed -e literals).
	recentCap = 256

	// longStringThreshold is the byte length above which a string skips
	// the front LRU and instead consults the content-hash cache, since
	// long strings are typically one-off concat results rather than
	// repeated short literals.
	longStringThreshold = 64

	// longCacheBytes sizes the fastcache backing the long-string lookup.
	longCacheBytes = 1 << 20
)

// Object is the heap-tracked payload of an interned string.
type Object struct {
	table *Table
	slot  int
	Bytes []byte
	hash  uint32
}

// Trace implements heap.Object. Strings are leaves: they reference no other
// value.
func (o *Object) Trace(mark func(value.Value)) {}

// Finalize implements heap.Object, removing the string from its owning
// intern table so a future identical literal interns fresh rather than
// resolving to a dead handle.
func (o *Object) Finalize(h *heap.Heap) {
	o.table.removeSlot(o.slot)
}

type slotState uint8

const (
	slotEmpty slotState = iota
	slotUsed
	slotTombstone
)

type slot struct {
	state slotState
	hash  uint32
	v     value.Value
	obj   *Object
}

// Table is an open-addressed hash set of interned strings.
type Table struct {
	heap  *heap.Heap
	slots []slot
	size  int // used slots, including tombstones, for load-factor accounting
	live  int

	// recent fronts the canonical probe sequence with a bounded cache of
	// byte-content to handle, so a loader re-parsing the same embedded
	// chunk names (or a script re-evaluating the same -e literal) skips
	// the hash-and-probe path entirely on a hit.
	recent *lru.Cache

	// long fronts long computed strings (concat results) with a
	// content-hash keyed cache, avoiding the O(len) rolling hash and
	// probe sequence for strings unlikely to already be interned.
	long *fastcache.Cache
}

// New creates an empty intern table backed by h.
func New(h *heap.Heap) *Table {
	recent, err := lru.New(recentCap)
	if err != nil {
		panic(err) // only returns an error for a non-positive size
	}
	return &Table{
		heap:   h,
		slots:  make([]slot, initialCap),
		recent: recent,
		long:   fastcache.New(longCacheBytes),
	}
}

func rollingHash(b []byte) uint32 {
	h := uint32(fnvOffsetBasis)
	for _, c := range b {
		h ^= uint32(c)
		h *= fnvPrime
	}
	return h
}

// Intern returns the stable handle for b, allocating a new heap string only
// if no byte-identical string is already interned.
func (t *Table) Intern(b []byte) value.Value {
	if len(b) >= longStringThreshold {
		if v, ok := t.lookupLong(b); ok {
			return v
		}
	} else if v, ok := t.lookupRecent(b); ok {
		return v
	}

	h := rollingHash(b)
	if v, ok := t.find(h, b); ok {
		t.cache(b, v)
		return v
	}
	owned := make([]byte, len(b))
	copy(owned, b)
	obj := &Object{table: t, Bytes: owned, hash: h}
	v := t.heap.Alloc(value.KindString, obj, uint64(len(owned))+16)
	t.insert(h, v, obj)
	t.cache(b, v)
	return v
}

// cache records b's resolved handle in whichever front cache fits its
// length, for the next Intern call with identical content.
func (t *Table) cache(b []byte, v value.Value) {
	if len(b) >= longStringThreshold {
		sum := sha3.Sum256(b)
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], v.Handle())
		t.long.Set(sum[:], buf[:])
		return
	}
	t.recent.Add(string(b), v)
}

// lookupRecent checks the short-string LRU, verifying the candidate is
// still a live string with matching content before trusting it (entries
// outlive the object they named whenever it was collected and its handle
// reused).
func (t *Table) lookupRecent(b []byte) (value.Value, bool) {
	cached, ok := t.recent.Get(string(b))
	if !ok {
		return value.Nil, false
	}
	v, ok := cached.(value.Value)
	if !ok {
		return value.Nil, false
	}
	if obj, ok := t.heap.Lookup(v).(*Object); ok && string(obj.Bytes) == string(b) {
		return v, true
	}
	return value.Nil, false
}

// lookupLong is lookupRecent's counterpart for the content-hash cache.
func (t *Table) lookupLong(b []byte) (value.Value, bool) {
	sum := sha3.Sum256(b)
	buf, ok := t.long.HasGet(nil, sum[:])
	if !ok || len(buf) != 4 {
		return value.Nil, false
	}
	v := value.Handle(value.KindString, binary.BigEndian.Uint32(buf))
	if obj, ok := t.heap.Lookup(v).(*Object); ok && string(obj.Bytes) == string(b) {
		return v, true
	}
	return value.Nil, false
}

// Bytes returns the content behind an interned string handle. It panics if
// v does not resolve to a live string object in this table's heap.
func (t *Table) Bytes(v value.Value) []byte {
	obj, ok := t.heap.Lookup(v).(*Object)
	if !ok {
		panic("strtable: value is not a live interned string")
	}
	return obj.Bytes
}

func (t *Table) find(h uint32, b []byte) (value.Value, bool) {
	cap := uint32(len(t.slots))
	for i := uint32(0); ; i++ {
		idx := (h + i) % cap
		s := &t.slots[idx]
		if s.state == slotEmpty {
			return value.Nil, false
		}
		if s.state == slotUsed && s.hash == h && string(s.obj.Bytes) == string(b) {
			return s.v, true
		}
		if i >= cap {
			return value.Nil, false
		}
	}
}

func (t *Table) insert(h uint32, v value.Value, obj *Object) {
	cap := uint32(len(t.slots))
	for i := uint32(0); ; i++ {
		idx := (h + i) % cap
		s := &t.slots[idx]
		if s.state != slotUsed {
			obj.slot = int(idx)
			if s.state == slotEmpty {
				t.size++
			}
			*s = slot{state: slotUsed, hash: h, v: v, obj: obj}
			t.live++
			if t.size*100/len(t.slots) > loadFactorPct {
				t.grow()
			}
			return
		}
	}
}

func (t *Table) removeSlot(idx int) {
	if idx < 0 || idx >= len(t.slots) {
		return
	}
	if t.slots[idx].state == slotUsed {
		t.slots[idx] = slot{state: slotTombstone}
		t.live--
	}
}

func (t *Table) grow() {
	old := t.slots
	t.slots = make([]slot, len(old)*2+1)
	t.size = 0
	t.live = 0
	for _, s := range old {
		if s.state == slotUsed {
			t.insert(s.hash, s.v, s.obj)
		}
	}
}

// Len reports the number of live interned strings.
func (t *Table) Len() int { return t.live }
