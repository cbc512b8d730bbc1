// Copyright 2024 The Luavm Authors
// This file is part of Luavm.

package vm

import (
	"testing"

	"github.com/luavm/luavm/internal/chunk"
	"github.com/luavm/luavm/internal/value"
)

func encode(op Opcode, a, b, c uint32) uint32 {
	return uint32(op) | (a << 6) | (c << 14) | (b << 23)
}

func encodeBx(op Opcode, a, bx uint32) uint32 {
	return uint32(op) | (a << 6) | (bx << 14)
}

func encodeSBx(op Opcode, a uint32, sbx int32) uint32 {
	return encodeBx(op, a, uint32(sbx+sBxBias))
}

func TestSimpleArithmeticReturn(t *testing.T) {
	// R0 = K0 (2), R1 = K1 (3), R0 = R0 + R1, return R0
	proto := &chunk.Prototype{
		Source:   "test",
		MaxStack: 4,
		Constants: []value.Value{
			value.Number(2),
			value.Number(3),
		},
		Instructions: []uint32{
			encodeBx(OpLoadK, 0, 0),
			encodeBx(OpLoadK, 1, 1),
			encode(OpAdd, 0, 0, 1),
			encode(OpReturn, 0, 2, 0),
		},
	}

	m := New()
	results, err := m.Run(proto)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 1 || results[0].Float64() != 5 {
		t.Fatalf("results = %v, want [5]", results)
	}
}

func TestGlobalRoundTrip(t *testing.T) {
	proto := &chunk.Prototype{
		Source:   "test",
		MaxStack: 2,
		Constants: []value.Value{
			value.Number(0), // placeholder, replaced below
		},
	}
	m := New()
	nameKey := m.Intern("x")
	proto.Constants[0] = nameKey
	proto.Constants = append(proto.Constants, value.Number(42))
	proto.Instructions = []uint32{
		encodeBx(OpLoadK, 0, 1),
		encodeBx(OpSetGlobal, 0, 0),
		encodeBx(OpGetGlobal, 1, 0),
		encode(OpReturn, 1, 2, 0),
	}

	results, err := m.Run(proto)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 1 || results[0].Float64() != 42 {
		t.Fatalf("results = %v, want [42]", results)
	}
	if got := m.Globals.Get(nameKey); got.Float64() != 42 {
		t.Fatalf("globals[x] = %v, want 42", got)
	}
}

func TestCallNativeFunction(t *testing.T) {
	m := New()
	m.Register("double", func(m *VM, args []value.Value) ([]value.Value, error) {
		return []value.Value{value.Number(args[0].Float64() * 2)}, nil
	})
	nameKey := m.Intern("double")

	proto := &chunk.Prototype{
		Source:   "test",
		MaxStack: 3,
		Constants: []value.Value{
			nameKey,
			value.Number(21),
		},
		Instructions: []uint32{
			encodeBx(OpGetGlobal, 0, 0),
			encodeBx(OpLoadK, 1, 1),
			encode(OpCall, 0, 2, 2),
			encode(OpReturn, 0, 2, 0),
		},
	}
	results, err := m.Run(proto)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 1 || results[0].Float64() != 42 {
		t.Fatalf("results = %v, want [42]", results)
	}
}

func TestClosureCapturesUpvalue(t *testing.T) {
	m := New()

	inner := &chunk.Prototype{
		Source:      "test",
		MaxStack:    1,
		NumUpvalues: 1,
		Instructions: []uint32{
			encode(OpGetUpval, 0, 0, 0),
			encode(OpReturn, 0, 2, 0),
		},
	}
	outer := &chunk.Prototype{
		Source:   "test",
		MaxStack: 2,
		Constants: []value.Value{
			value.Number(7),
		},
		Protos: []*chunk.Prototype{inner},
		Instructions: []uint32{
			encodeBx(OpLoadK, 0, 0),         // R0 = 7
			encodeBx(OpClosure, 1, 0),        // R1 = closure(inner)
			encode(OpMove, 0, 0, 0),          // upvalue descriptor: capture R0
			encode(OpCall, 1, 1, 2),          // call R1() -> R1
			encode(OpReturn, 1, 2, 0),
		},
	}

	results, err := m.Run(outer)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 1 || results[0].Float64() != 7 {
		t.Fatalf("results = %v, want [7]", results)
	}
}

func TestNumericForLoop(t *testing.T) {
	// sum = 0; for i=1,3 do sum = sum + i end; return sum
	// R0=sum, R1=i(init),R2=limit,R3=step,R4=loopvar
	proto := &chunk.Prototype{
		Source:   "test",
		MaxStack: 6,
		Constants: []value.Value{
			value.Number(0),
			value.Number(1),
			value.Number(3),
		},
		Instructions: []uint32{
			encodeBx(OpLoadK, 0, 0), // R0 = 0 (sum)
			encodeBx(OpLoadK, 1, 1), // R1 = 1 (init)
			encodeBx(OpLoadK, 2, 2), // R2 = 3 (limit)
			encodeBx(OpLoadK, 3, 1), // R3 = 1 (step)
			encodeSBx(OpForPrep, 1, 1),
			encode(OpAdd, 0, 0, 4), // sum = sum + R4(loopvar)
			encodeSBx(OpForLoop, 1, -2),
			encode(OpReturn, 0, 2, 0),
		},
	}
	m := New()
	results, err := m.Run(proto)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 1 || results[0].Float64() != 6 {
		t.Fatalf("results = %v, want [6] (1+2+3)", results)
	}
}
