// Copyright 2024 The Luavm Authors
// This file is part of Luavm.
//
// Luavm is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package value

import "testing"

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		kind Kind
		v    Value
	}{
		{"nil", KindNil, Nil},
		{"true", KindBoolean, True},
		{"false", KindBoolean, False},
		{"string-handle", KindString, Handle(KindString, 7)},
		{"table-handle", KindTable, Handle(KindTable, 0xdead)},
		{"function-handle", KindFunction, Handle(KindFunction, 1)},
		{"thread-handle", KindThread, Handle(KindThread, 42)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.v.Kind(); got != c.kind {
				t.Fatalf("Kind() = %v, want %v", got, c.kind)
			}
		})
	}
}

func TestNumberRoundTrip(t *testing.T) {
	for _, f := range []float64{0, 1, -1, 3.5, -3.5, 1e300, -1e300} {
		v := Number(f)
		if !v.IsNumber() {
			t.Fatalf("Number(%v).IsNumber() = false", f)
		}
		if got := v.Float64(); got != f {
			t.Fatalf("round trip %v -> %v", f, got)
		}
	}
}

func TestNegativeZeroNormalizes(t *testing.T) {
	pos := Number(0)
	neg := Number(negZero())
	if pos != neg {
		t.Fatalf("Number(-0) = %x, Number(+0) = %x, want equal", uint64(neg), uint64(pos))
	}
	if pos.Hash() != neg.Hash() {
		t.Fatalf("hash(-0) != hash(+0)")
	}
}

func negZero() float64 {
	return -1 * 0.0 * 1
}

func TestTruthy(t *testing.T) {
	truthy := []Value{True, Number(0), Number(1), Handle(KindString, 1), Handle(KindTable, 0)}
	for _, v := range truthy {
		if !v.Truthy() {
			t.Fatalf("%x should be truthy", uint64(v))
		}
	}
	falsy := []Value{False, Nil}
	for _, v := range falsy {
		if v.Truthy() {
			t.Fatalf("%x should be falsy", uint64(v))
		}
	}
}

func TestHashStableForEqualBits(t *testing.T) {
	a := Handle(KindTable, 99)
	b := Handle(KindTable, 99)
	if a.Hash() != b.Hash() {
		t.Fatalf("equal values hashed differently")
	}
}
