// Copyright 2024 The Luavm Authors
// This file is part of Luavm.

// Package trace implements an opt-in opcode execution tracer reporting
// pc/opcode/operand/line for each instruction. It is never active by
// default; cmd/luago's -d flag or the LUAVM_TRACE environment variable turn
// it on.
package trace

import (
	"fmt"
	"io"
	"os"
)

var (
	enabled bool
	out     io.Writer = os.Stderr
)

func init() {
	if os.Getenv("LUAVM_TRACE") != "" {
		enabled = true
	}
}

// Enable turns tracing on or off programmatically (used by -d).
func Enable(v bool) { enabled = v }

// Enabled reports whether the interpreter should call Instruction for each
// step. Checked by the interpreter's hot loop, so it must stay cheap.
func Enabled() bool { return enabled }

// SetOutput redirects trace lines; defaults to stderr.
func SetOutput(w io.Writer) { out = w }

// Instruction logs one executed instruction: program counter, opcode
// mnemonic, its three raw operand fields, and the source line it maps to.
func Instruction(source string, pc int, opName string, a, b, c uint32, line int) {
	fmt.Fprintf(out, "%s:%d\t%04d\t%-10s a=%d b=%d c=%d\n", source, line, pc, opName, a, b, c)
}
