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

// Package vm implements the register-based interpreter: closures, upvalue
// cells, call frames, and the 38-opcode dispatch loop over a Prototype's
// instruction vector.
//
// Instruction words are 32 bits wide, laid out exactly as the reference
// instruction format this runtime's loader and bytecode share:
//
//	bits [0:6)   opcode
//	bits [6:14)  A   (8 bits)
//	bits [14:23) C   (9 bits) -- also the low 9 bits of the 18-bit payload
//	bits [23:32) B   (9 bits) -- also the high 9 bits of the 18-bit payload
//
// Instructions needing one wide signed operand (jumps, constant indices
// wider than 9 bits) instead read B and C together as an 18-bit unsigned
// payload, biased by 131071 for the signed forms (sBx).
package vm

// Opcode is the 6-bit instruction code.
type Opcode uint8

const (
	OpMove Opcode = iota
	OpLoadK
	OpLoadBool
	OpLoadNil
	OpGetUpval
	OpGetGlobal
	OpGetTable
	OpSetGlobal
	OpSetUpval
	OpSetTable
	OpNewTable
	OpSelf
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpUnm
	OpNot
	OpLen
	OpConcat
	OpJmp
	OpEq
	OpLt
	OpLe
	OpTest
	OpTestSet
	OpCall
	OpTailCall
	OpReturn
	OpForLoop
	OpForPrep
	OpTForLoop
	OpSetList
	OpClose
	OpClosure
	OpVararg

	numOpcodes
)

var opcodeNames = [numOpcodes]string{
	"MOVE", "LOADK", "LOADBOOL", "LOADNIL", "GETUPVAL", "GETGLOBAL",
	"GETTABLE", "SETGLOBAL", "SETUPVAL", "SETTABLE", "NEWTABLE", "SELF",
	"ADD", "SUB", "MUL", "DIV", "MOD", "POW", "UNM", "NOT", "LEN", "CONCAT",
	"JMP", "EQ", "LT", "LE", "TEST", "TESTSET", "CALL", "TAILCALL", "RETURN",
	"FORLOOP", "FORPREP", "TFORLOOP", "SETLIST", "CLOSE", "CLOSURE", "VARARG",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) {
		return opcodeNames[op]
	}
	return "UNKNOWN"
}

const sBxBias = 131071

// instruction is a decoded bytecode word.
type instruction struct {
	op   Opcode
	a    uint32
	b    uint32
	c    uint32
	bx   uint32 // unsigned 18-bit payload (B<<9|C)
	sBx  int32  // signed version of bx, biased by sBxBias
}

func decode(word uint32) instruction {
	op := Opcode(word & 0x3f)
	a := (word >> 6) & 0xff
	c := (word >> 14) & 0x1ff
	b := (word >> 23) & 0x1ff
	bx := (word >> 14) & 0x3ffff
	return instruction{op: op, a: a, b: b, c: c, bx: bx, sBx: int32(bx) - sBxBias}
}

// isConstant reports whether an RK-encoded 9-bit field addresses the
// constant table (bit 8 set) rather than a register.
func isConstant(rk uint32) bool { return rk&0x100 != 0 }

func constantIndex(rk uint32) int { return int(rk &^ 0x100) }
