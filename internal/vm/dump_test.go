// Copyright 2024 The Luavm Authors
// This file is part of Luavm.

package vm

import (
	"testing"

	"github.com/luavm/luavm/internal/chunk"
)

func TestDisassembleSkipsClosurePseudoInstructions(t *testing.T) {
	proto := &chunk.Prototype{
		Instructions: []uint32{
			encode(OpLoadNil, 0, 0, 0),
			encodeBx(OpClosure, 1, 0), // bx=0, references Protos[0]
			encode(OpMove, 2, 3, 0),   // pseudo-instruction for the one upvalue
			encode(OpReturn, 0, 0, 0),
		},
		DebugLines: []int32{1, 2, 2, 3},
		Protos: []*chunk.Prototype{
			{NumUpvalues: 1},
		},
	}

	rows := Disassemble(proto)
	if len(rows) != 3 {
		t.Fatalf("Disassemble() returned %d rows, want 3 (pseudo-instruction skipped): %+v", len(rows), rows)
	}
	if rows[0].Opcode != "LOADNIL" || rows[1].Opcode != "CLOSURE" || rows[2].Opcode != "RETURN" {
		t.Fatalf("unexpected opcode sequence: %v, %v, %v", rows[0].Opcode, rows[1].Opcode, rows[2].Opcode)
	}
	if rows[2].PC != 3 {
		t.Fatalf("RETURN row PC = %d, want 3 (original instruction index)", rows[2].PC)
	}
	if rows[2].Line != 3 {
		t.Fatalf("RETURN row Line = %d, want 3", rows[2].Line)
	}
}

func TestDumpConstantsNonEmpty(t *testing.T) {
	proto := &chunk.Prototype{Source: "test.lua"}
	out := DumpConstants(proto)
	if out == "" {
		t.Fatalf("DumpConstants() returned empty string")
	}
}
