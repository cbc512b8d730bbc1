// Copyright 2024 The Luavm Authors
// This file is part of Luavm.

package vm

import (
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"

	"github.com/luavm/luavm/internal/chunk"
)

// DumpRow is one decoded instruction of a disassembly, ready for a
// tabular renderer.
type DumpRow struct {
	PC      int
	Opcode  string
	A, B, C uint32
	Line    int
}

// Disassemble decodes every instruction of proto into one row per
// instruction, skipping the MOVE/GETUPVAL upvalue-descriptor pseudo-words
// CLOSURE instructions are followed by (decoding them in place would
// produce a misleading double-counted entry).
func Disassemble(proto *chunk.Prototype) []DumpRow {
	rows := make([]DumpRow, 0, len(proto.Instructions))
	skip := 0
	for pc, word := range proto.Instructions {
		if skip > 0 {
			skip--
			continue
		}
		ins := decode(word)
		line := 0
		if pc < len(proto.DebugLines) {
			line = int(proto.DebugLines[pc])
		}
		rows = append(rows, DumpRow{PC: pc, Opcode: ins.op.String(), A: ins.a, B: ins.b, C: ins.c, Line: line})
		if ins.op == OpClosure && int(ins.bx) < len(proto.Protos) {
			skip = int(proto.Protos[ins.bx].NumUpvalues)
		}
	}
	return rows
}

// DumpConstants renders proto's constant pool with go-spew, used by the
// "-d" dump flag alongside the Disassemble table.
func DumpConstants(proto *chunk.Prototype) string {
	var b strings.Builder
	fmt.Fprintf(&b, "constants for %s (%d):\n", proto.Source, len(proto.Constants))
	cfg := spew.ConfigState{Indent: "  ", DisableMethods: true}
	for i, c := range proto.Constants {
		fmt.Fprintf(&b, "  [%d] %s", i, cfg.Sdump(c))
	}
	return b.String()
}
