// Copyright 2024 The Luavm Authors
// This file is part of Luavm.

// Package strlib implements the string library: format, rep, len, sub,
// upper, lower, byte, char, and reverse. There is no find or match.
package strlib

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/luavm/luavm/internal/table"
	"github.com/luavm/luavm/internal/value"
	"github.com/luavm/luavm/internal/vm"
	"github.com/luavm/luavm/internal/vmerror"
)

// Register installs the string library table into m's globals.
func Register(m *vm.VM) {
	lib, libVal := table.NewSized(m.Heap, m.Meta, 0, 16)
	set := func(name string, fn vm.NativeFunc) {
		lib.Set(m.Intern(name), vm.NewNativeClosure(m.Heap, "string."+name, fn))
	}
	set("len", biLen)
	set("sub", biSub)
	set("upper", biUpper)
	set("lower", biLower)
	set("rep", biRep)
	set("byte", biByte)
	set("char", biChar)
	set("format", biFormat)
	set("reverse", biReverse)

	m.Globals.Set(m.Intern("string"), libVal)
	m.StringMetatable = makeStringMetatable(m, libVal)
}

func makeStringMetatable(m *vm.VM, libVal value.Value) value.Value {
	mt, mtVal := table.New(m.Heap, m.Meta)
	mt.Set(m.Intern("__index"), libVal)
	return mtVal
}

func str(m *vm.VM, v value.Value) (string, bool) {
	if !v.IsString() {
		return "", false
	}
	return string(m.Strings.Bytes(v)), true
}

func biLen(m *vm.VM, args []value.Value) ([]value.Value, error) {
	s, ok := str(m, arg(args, 0))
	if !ok {
		return nil, vmerror.BadType("", 1, "len", "string", arg(args, 0).Kind().String())
	}
	return []value.Value{value.Number(float64(len(s)))}, nil
}

func arg(args []value.Value, i int) value.Value {
	if i < len(args) {
		return args[i]
	}
	return value.Nil
}

// normIndex implements Lua's 1-based, negative-from-end string index rule.
func normIndex(i, l int) int {
	if i >= 0 {
		return i
	}
	if -i > l {
		return 0
	}
	return l + i + 1
}

func biSub(m *vm.VM, args []value.Value) ([]value.Value, error) {
	s, ok := str(m, arg(args, 0))
	if !ok {
		return nil, vmerror.BadType("", 1, "sub", "string", arg(args, 0).Kind().String())
	}
	l := len(s)
	i := 1
	if len(args) > 1 {
		i = normIndex(int(args[1].Float64()), l)
	}
	j := l
	if len(args) > 2 {
		j = normIndex(int(args[2].Float64()), l)
	}
	if i < 1 {
		i = 1
	}
	if j > l {
		j = l
	}
	if i > j {
		return []value.Value{m.Intern("")}, nil
	}
	return []value.Value{m.Intern(s[i-1 : j])}, nil
}

func biUpper(m *vm.VM, args []value.Value) ([]value.Value, error) {
	s, ok := str(m, arg(args, 0))
	if !ok {
		return nil, vmerror.BadType("", 1, "upper", "string", arg(args, 0).Kind().String())
	}
	return []value.Value{m.Intern(strings.ToUpper(s))}, nil
}

func biLower(m *vm.VM, args []value.Value) ([]value.Value, error) {
	s, ok := str(m, arg(args, 0))
	if !ok {
		return nil, vmerror.BadType("", 1, "lower", "string", arg(args, 0).Kind().String())
	}
	return []value.Value{m.Intern(strings.ToLower(s))}, nil
}

func biRep(m *vm.VM, args []value.Value) ([]value.Value, error) {
	s, ok := str(m, arg(args, 0))
	if !ok {
		return nil, vmerror.BadType("", 1, "rep", "string", arg(args, 0).Kind().String())
	}
	n := int(arg(args, 1).Float64())
	if n <= 0 {
		return []value.Value{m.Intern("")}, nil
	}
	return []value.Value{m.Intern(strings.Repeat(s, n))}, nil
}

func biByte(m *vm.VM, args []value.Value) ([]value.Value, error) {
	s, ok := str(m, arg(args, 0))
	if !ok {
		return nil, vmerror.BadType("", 1, "byte", "string", arg(args, 0).Kind().String())
	}
	i := 1
	if len(args) > 1 {
		i = normIndex(int(args[1].Float64()), len(s))
	}
	j := i
	if len(args) > 2 {
		j = normIndex(int(args[2].Float64()), len(s))
	}
	if i < 1 {
		i = 1
	}
	if j > len(s) {
		j = len(s)
	}
	var out []value.Value
	for k := i; k <= j; k++ {
		out = append(out, value.Number(float64(s[k-1])))
	}
	return out, nil
}

func biChar(m *vm.VM, args []value.Value) ([]value.Value, error) {
	b := make([]byte, len(args))
	for i, a := range args {
		b[i] = byte(int(a.Float64()))
	}
	return []value.Value{m.Intern(string(b))}, nil
}

func biReverse(m *vm.VM, args []value.Value) ([]value.Value, error) {
	s, ok := str(m, arg(args, 0))
	if !ok {
		return nil, vmerror.BadType("", 1, "reverse", "string", arg(args, 0).Kind().String())
	}
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return []value.Value{m.Intern(string(b))}, nil
}

// biFormat implements the common subset of string.format's directives:
// %d %i %u %x %X %o %f %g %e %s %q %c %%.
func biFormat(m *vm.VM, args []value.Value) ([]value.Value, error) {
	f, ok := str(m, arg(args, 0))
	if !ok {
		return nil, vmerror.BadType("", 1, "format", "string", arg(args, 0).Kind().String())
	}
	var out strings.Builder
	argi := 1
	for i := 0; i < len(f); i++ {
		c := f[i]
		if c != '%' {
			out.WriteByte(c)
			continue
		}
		start := i
		i++
		for i < len(f) && strings.ContainsRune("-+ #0123456789.", rune(f[i])) {
			i++
		}
		if i >= len(f) {
			return nil, vmerror.BadValue("", 1, "format", "invalid format string")
		}
		verb := f[i]
		spec := f[start : i+1]
		switch verb {
		case '%':
			out.WriteByte('%')
		case 'd', 'i', 'u', 'x', 'X', 'o', 'c':
			v := argAt(args, argi)
			argi++
			goVerb := verb
			if verb == 'i' || verb == 'u' {
				goVerb = 'd'
			}
			out.WriteString(fmt.Sprintf(strings.Replace(spec, string(verb), string(goVerb), 1), int64(v.Float64())))
		case 'f', 'g', 'e', 'G', 'E':
			v := argAt(args, argi)
			argi++
			out.WriteString(fmt.Sprintf(spec, v.Float64()))
		case 's':
			v := argAt(args, argi)
			argi++
			s, _ := str(m, v)
			if !v.IsString() {
				s = fmt.Sprintf("%v", v.Float64())
			}
			out.WriteString(fmt.Sprintf(spec, s))
		case 'q':
			v := argAt(args, argi)
			argi++
			s, _ := str(m, v)
			out.WriteString(strconv.Quote(s))
		default:
			return nil, vmerror.BadValue("", 1, "format", fmt.Sprintf("invalid conversion '%%%c'", verb))
		}
	}
	return []value.Value{m.Intern(out.String())}, nil
}

func argAt(args []value.Value, i int) value.Value {
	if i < len(args) {
		return args[i]
	}
	return value.Nil
}
