// Copyright 2024 The Luavm Authors
// This file is part of Luavm.

package table

import (
	"testing"

	"github.com/luavm/luavm/internal/heap"
	"github.com/luavm/luavm/internal/strtable"
	"github.com/luavm/luavm/internal/value"
)

func newTestTable(t *testing.T) (*Table, value.Value, *strtable.Table) {
	h := heap.New()
	strs := strtable.New(h)
	meta := NewMetaKeys(strs.Intern)
	tbl, v := New(h, meta)
	return tbl, v, strs
}

func TestGetSetFunctional(t *testing.T) {
	tbl, _, strs := newTestTable(t)
	k := strs.Intern([]byte("x"))

	if got := tbl.Get(k); got != value.Nil {
		t.Fatalf("Get on empty table = %v, want nil", got)
	}
	tbl.Set(k, value.Number(42))
	if got := tbl.Get(k); got != value.Number(42) {
		t.Fatalf("Get() = %v, want 42", got)
	}
	tbl.Set(k, value.Nil)
	if got := tbl.Get(k); got != value.Nil {
		t.Fatalf("Get() after remove = %v, want nil", got)
	}
}

func TestLengthMonotoneOnAppend(t *testing.T) {
	tbl, _, _ := newTestTable(t)
	for i := int64(0); i < 10; i++ {
		tbl.Set(value.Number(float64(i+1)), value.Number(float64(i)))
		if tbl.Length() != i+1 {
			t.Fatalf("after %d appends, Length() = %d, want %d", i+1, tbl.Length(), i+1)
		}
	}
}

func TestLengthNonMonotoneOnDelete(t *testing.T) {
	tbl, _, _ := newTestTable(t)
	for i := int64(1); i <= 3; i++ {
		tbl.Set(value.Number(float64(i)), value.Number(float64(i*10)))
	}
	if tbl.Length() != 3 {
		t.Fatalf("Length() = %d, want 3", tbl.Length())
	}
	tbl.Set(value.Number(3), value.Nil)
	if tbl.Length() != 3 {
		t.Fatalf("Length() after delete = %d, want unchanged 3", tbl.Length())
	}
}

func TestArrayLiteral(t *testing.T) {
	tbl, _, _ := newTestTable(t)
	tbl.Set(value.Number(1), value.Number(10))
	tbl.Set(value.Number(2), value.Number(20))
	tbl.Set(value.Number(3), value.Number(30))

	if tbl.Length() != 3 {
		t.Fatalf("Length() = %d, want 3", tbl.Length())
	}
	if tbl.Get(value.Number(2)) != value.Number(20) {
		t.Fatalf("t[2] = %v, want 20", tbl.Get(value.Number(2)))
	}
}

func TestMetaSlotDualWrite(t *testing.T) {
	tbl, _, strs := newTestTable(t)
	indexKey := strs.Intern([]byte("__index"))
	fn := value.Handle(value.KindFunction, 5)

	tbl.Set(indexKey, fn)

	ev, ok := tbl.meta.Check(indexKey)
	if !ok || ev != MetaIndex {
		t.Fatalf("expected __index to resolve to MetaIndex")
	}
	if got := tbl.metamethods[MetaIndex]; got != fn {
		t.Fatalf("metamethods[MetaIndex] = %v, want %v", got, fn)
	}
	if got := tbl.Get(indexKey); got != fn {
		t.Fatalf("Get(__index) = %v, want %v (should read cache)", got, fn)
	}
}

func TestHashGrowthPreservesEntries(t *testing.T) {
	tbl, _, strs := newTestTable(t)
	keys := make([]value.Value, 0, 64)
	for i := 0; i < 64; i++ {
		k := strs.Intern([]byte{byte(i), byte(i >> 8), 'k'})
		keys = append(keys, k)
		tbl.Set(k, value.Number(float64(i)))
	}
	for i, k := range keys {
		if got := tbl.Get(k); got != value.Number(float64(i)) {
			t.Fatalf("Get(key %d) = %v, want %d", i, got, i)
		}
	}
}

func TestNextIteratesArrayThenHash(t *testing.T) {
	tbl, _, strs := newTestTable(t)
	tbl.Set(value.Number(1), value.Number(100))
	tbl.Set(value.Number(2), value.Number(200))
	hashKey := strs.Intern([]byte("extra"))
	tbl.Set(hashKey, value.Number(300))

	seen := map[value.Value]value.Value{}
	k, v, ok := tbl.Next(value.Nil)
	for ok {
		seen[k] = v
		k, v, ok = tbl.Next(k)
	}
	if len(seen) != 3 {
		t.Fatalf("iterated %d entries, want 3", len(seen))
	}
	if seen[value.Number(1)] != value.Number(100) || seen[hashKey] != value.Number(300) {
		t.Fatalf("Next() missed entries: %v", seen)
	}
}

func TestInsertRemove(t *testing.T) {
	tbl, _, _ := newTestTable(t)
	tbl.Set(value.Number(1), value.Number(1))
	tbl.Set(value.Number(2), value.Number(2))
	tbl.Set(value.Number(3), value.Number(3))

	tbl.Insert(2, value.Number(99))
	if tbl.Get(value.Number(2)) != value.Number(99) || tbl.Get(value.Number(4)) != value.Number(3) {
		t.Fatalf("Insert did not shift correctly")
	}

	removed := tbl.RemoveAt(2)
	if removed != value.Number(99) {
		t.Fatalf("RemoveAt returned %v, want 99", removed)
	}
	if tbl.Get(value.Number(2)) != value.Number(2) {
		t.Fatalf("RemoveAt did not shift down correctly")
	}
}
