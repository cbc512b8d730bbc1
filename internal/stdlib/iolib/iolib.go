// Copyright 2024 The Luavm Authors
// This file is part of Luavm.

// Package iolib implements the subset of the io library relevant to an
// embeddable script interpreter: write (to stdout) and read (from stdin),
// with the file-handle object model (open/close/seek/lines on arbitrary
// paths) left unimplemented since this runtime is not a general-purpose
// scripting shell.
package iolib

import (
	"bufio"
	"fmt"
	"os"

	"github.com/luavm/luavm/internal/table"
	"github.com/luavm/luavm/internal/value"
	"github.com/luavm/luavm/internal/vm"
)

var stdinReader = bufio.NewReader(os.Stdin)

// Register installs the io library into m's globals.
func Register(m *vm.VM) {
	lib, libVal := table.NewSized(m.Heap, m.Meta, 0, 4)
	lib.Set(m.Intern("write"), vm.NewNativeClosure(m.Heap, "io.write", biWrite))
	lib.Set(m.Intern("read"), vm.NewNativeClosure(m.Heap, "io.read", biRead))
	m.Globals.Set(m.Intern("io"), libVal)
}

func biWrite(m *vm.VM, args []value.Value) ([]value.Value, error) {
	for _, a := range args {
		if a.IsString() {
			fmt.Fprint(os.Stdout, string(m.Strings.Bytes(a)))
		} else if a.IsNumber() {
			fmt.Fprintf(os.Stdout, "%v", a.Float64())
		}
	}
	return nil, nil
}

func biRead(m *vm.VM, args []value.Value) ([]value.Value, error) {
	format := "*l"
	if len(args) > 0 && args[0].IsString() {
		format = string(m.Strings.Bytes(args[0]))
	}
	switch format {
	case "*n", "n":
		var f float64
		if _, err := fmt.Fscan(stdinReader, &f); err != nil {
			return []value.Value{value.Nil}, nil
		}
		return []value.Value{value.Number(f)}, nil
	case "*a", "a":
		var sb []byte
		buf := make([]byte, 4096)
		for {
			n, err := stdinReader.Read(buf)
			sb = append(sb, buf[:n]...)
			if err != nil {
				break
			}
		}
		return []value.Value{m.Intern(string(sb))}, nil
	default:
		line, err := stdinReader.ReadString('\n')
		if err != nil && line == "" {
			return []value.Value{value.Nil}, nil
		}
		for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
			line = line[:len(line)-1]
		}
		return []value.Value{m.Intern(line)}, nil
	}
}
