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

// Package chunk implements the binary chunk loader: it turns a compiled
// chunk byte buffer into a tree of in-memory function Prototypes. Layout is
// fixed by the "5.1 chunk format" this runtime targets: a 12-byte header,
// then a nested function prototype record.
package chunk

import (
	"encoding/binary"
	"math"

	"github.com/luavm/luavm/internal/value"
	"github.com/luavm/luavm/internal/vmerror"
)

var signature = [4]byte{0x1B, 'L', 'u', 'a'}

const (
	expectedVersion      = 0x51
	expectedFormat       = 0
	expectedEndianness   = 1
	expectedIntSize      = 4
	expectedSizeTSize    = 8
	expectedInstrSize    = 4
	expectedNumberSize   = 8
	expectedIntegerFlag  = 0
	headerSize           = 12
)

// Constant tags as they appear on the wire.
const (
	tagNil    = 0
	tagBool   = 1
	tagNumber = 3
	tagString = 4
)

// Local describes one entry of a prototype's local-variable debug table.
type Local struct {
	Name           string
	StartPC, EndPC int32
}

// Prototype is the immutable, loader-produced description of a compiled
// function.
type Prototype struct {
	Source             string
	Name               string // debug name; empty means anonymous, "@..." (by convention) means the main chunk
	StartLine, EndLine int32
	NumUpvalues        uint8
	NumParams          uint8
	IsVararg           bool
	MaxStack           uint8

	Instructions []uint32
	Constants    []value.Value
	Protos       []*Prototype

	DebugLines []int32
	Locals     []Local
	UpvalNames []string
}

// Intern is the string-interning hook the loader calls for every string
// constant and the prototype's own source name, so that loaded constants
// are already canonical runtime handles.
type Intern func([]byte) value.Value

// Load parses a complete chunk buffer and returns its root prototype.
func Load(data []byte, intern Intern) (*Prototype, error) {
	r := &reader{buf: data}
	if err := r.header(); err != nil {
		return nil, err
	}
	return r.prototype(intern)
}

type reader struct {
	buf []byte
	pos int
}

func (r *reader) need(n int) error {
	if n < 0 || r.pos+n > len(r.buf) {
		return vmerror.LoaderError("chunk: truncated input at offset %d (need %d more bytes)", r.pos, n)
	}
	return nil
}

// remaining reports how many bytes are left unread, for validating a
// wire-supplied count or length before it is ever converted to an int and
// used to size a slice or index the buffer.
func (r *reader) remaining() uint64 {
	return uint64(len(r.buf) - r.pos)
}

// count reads a uint32 element count and rejects it outright if it could not
// possibly be backed by the bytes left in the buffer, so a corrupt or hostile
// count never reaches a make([]T, n) call and forces a multi-gigabyte
// allocation attempt.
func (r *reader) count(minElemSize int) (int, error) {
	n, err := r.uint32()
	if err != nil {
		return 0, err
	}
	if uint64(n)*uint64(minElemSize) > r.remaining() {
		return 0, vmerror.LoaderError("chunk: element count %d at offset %d exceeds remaining input", n, r.pos)
	}
	return int(n), nil
}

func (r *reader) byte() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) bytesN(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) int32() (int32, error) {
	b, err := r.bytesN(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (r *reader) uint32() (uint32, error) {
	b, err := r.bytesN(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) sizeT() (uint64, error) {
	b, err := r.bytesN(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *reader) float64() (float64, error) {
	b, err := r.bytesN(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

// str reads a (size_t length, bytes) pair where length includes a trailing
// NUL that must be stripped. A zero length denotes an absent (nil) string.
func (r *reader) str() ([]byte, error) {
	n, err := r.sizeT()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	if n > r.remaining() {
		return nil, vmerror.LoaderError("chunk: string length %d at offset %d exceeds remaining input", n, r.pos)
	}
	b, err := r.bytesN(int(n))
	if err != nil {
		return nil, err
	}
	if len(b) == 0 || b[len(b)-1] != 0 {
		return nil, vmerror.LoaderError("chunk: string at offset %d missing trailing NUL", r.pos-int(n))
	}
	return b[:len(b)-1], nil
}

func (r *reader) header() error {
	if err := r.need(headerSize); err != nil {
		return err
	}
	sig, _ := r.bytesN(4)
	if sig[0] != signature[0] || sig[1] != signature[1] || sig[2] != signature[2] || sig[3] != signature[3] {
		return vmerror.LoaderError("chunk: bad signature % x", sig)
	}
	fields := []struct {
		name string
		want byte
	}{
		{"version", expectedVersion},
		{"format", expectedFormat},
		{"endianness", expectedEndianness},
		{"int size", expectedIntSize},
		{"size_t size", expectedSizeTSize},
		{"instruction size", expectedInstrSize},
		{"number size", expectedNumberSize},
		{"integer flag", expectedIntegerFlag},
	}
	for _, f := range fields {
		got, err := r.byte()
		if err != nil {
			return err
		}
		if got != f.want {
			return vmerror.LoaderError("chunk: unsupported %s 0x%02x (want 0x%02x)", f.name, got, f.want)
		}
	}
	return nil
}

func (r *reader) prototype(intern Intern) (*Prototype, error) {
	srcBytes, err := r.str()
	if err != nil {
		return nil, err
	}
	p := &Prototype{Source: string(srcBytes)}

	if p.StartLine, err = r.int32(); err != nil {
		return nil, err
	}
	if p.EndLine, err = r.int32(); err != nil {
		return nil, err
	}
	if p.NumUpvalues, err = r.byte(); err != nil {
		return nil, err
	}
	if p.NumParams, err = r.byte(); err != nil {
		return nil, err
	}
	varargByte, err := r.byte()
	if err != nil {
		return nil, err
	}
	p.IsVararg = varargByte != 0
	if p.MaxStack, err = r.byte(); err != nil {
		return nil, err
	}

	nInstr, err := r.count(4)
	if err != nil {
		return nil, err
	}
	p.Instructions = make([]uint32, nInstr)
	for i := range p.Instructions {
		if p.Instructions[i], err = r.uint32(); err != nil {
			return nil, err
		}
	}

	nConst, err := r.count(1)
	if err != nil {
		return nil, err
	}
	p.Constants = make([]value.Value, nConst)
	for i := range p.Constants {
		tag, err := r.byte()
		if err != nil {
			return nil, err
		}
		switch tag {
		case tagNil:
			p.Constants[i] = value.Nil
		case tagBool:
			b, err := r.byte()
			if err != nil {
				return nil, err
			}
			p.Constants[i] = value.Bool(b != 0)
		case tagNumber:
			f, err := r.float64()
			if err != nil {
				return nil, err
			}
			p.Constants[i] = value.Number(f)
		case tagString:
			s, err := r.str()
			if err != nil {
				return nil, err
			}
			p.Constants[i] = intern(s)
		default:
			return nil, vmerror.LoaderError("chunk: unknown constant tag %d", tag)
		}
	}

	nProtos, err := r.count(1)
	if err != nil {
		return nil, err
	}
	p.Protos = make([]*Prototype, nProtos)
	for i := range p.Protos {
		if p.Protos[i], err = r.prototype(intern); err != nil {
			return nil, err
		}
	}

	nLines, err := r.count(4)
	if err != nil {
		return nil, err
	}
	p.DebugLines = make([]int32, nLines)
	for i := range p.DebugLines {
		if p.DebugLines[i], err = r.int32(); err != nil {
			return nil, err
		}
	}

	nLocals, err := r.count(16)
	if err != nil {
		return nil, err
	}
	p.Locals = make([]Local, nLocals)
	for i := range p.Locals {
		name, err := r.str()
		if err != nil {
			return nil, err
		}
		start, err := r.int32()
		if err != nil {
			return nil, err
		}
		end, err := r.int32()
		if err != nil {
			return nil, err
		}
		p.Locals[i] = Local{Name: string(name), StartPC: start, EndPC: end}
	}

	nUpvalNames, err := r.count(8)
	if err != nil {
		return nil, err
	}
	p.UpvalNames = make([]string, nUpvalNames)
	for i := range p.UpvalNames {
		name, err := r.str()
		if err != nil {
			return nil, err
		}
		p.UpvalNames[i] = string(name)
	}

	return p, nil
}
