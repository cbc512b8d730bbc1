// Copyright 2024 The Luavm Authors
// This file is part of Luavm.

package chunk

import (
	"encoding/binary"
	"testing"

	fuzz "github.com/google/gofuzz"
)

// TestLoadHeaderFuzzNeverPanics feeds a minimal valid chunk with its
// 12-byte header replaced by random bytes through Load, many times over.
// Every mutation must either be accepted or rejected with a plain error —
// never a panic — since the header is untrusted input the loader has to
// validate before any of it is trusted.
func TestLoadHeaderFuzzNeverPanics(t *testing.T) {
	base := buildMinimalChunk("fuzz.lua", []uint32{0x1})
	f := fuzz.New().NumElements(headerSize, headerSize).NilChance(0)

	for i := 0; i < 500; i++ {
		var header []byte
		f.Fuzz(&header)

		data := append([]byte(nil), base...)
		copy(data[:headerSize], header)

		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("Load panicked on mutated header %v: %v", header, r)
				}
			}()
			_, _ = Load(data, testIntern())
		}()
	}
}

// TestLoadTruncatedFuzzNeverPanics feeds random truncations of a valid
// chunk through Load, which must reject them cleanly rather than reading
// out of bounds.
func TestLoadTruncatedFuzzNeverPanics(t *testing.T) {
	base := buildMinimalChunk("fuzz.lua", []uint32{0x1, 0x2, 0x3})
	f := fuzz.New()

	for i := 0; i < 200; i++ {
		var cut uint
		f.Fuzz(&cut)
		n := int(cut) % len(base)

		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("Load panicked on truncation to %d bytes: %v", n, r)
				}
			}()
			_, _ = Load(base[:n], testIntern())
		}()
	}
}

// TestLoadFuzzedLengthFieldsNeverPanics targets the wire's length-prefixed
// fields directly: the source name's size_t length and the instruction
// count, both of which an attacker controls and neither of which can be
// trusted to fit the remaining buffer. A hostile length must come back as a
// plain error, never a slice-bounds panic or a runaway allocation.
func TestLoadFuzzedLengthFieldsNeverPanics(t *testing.T) {
	base := buildMinimalChunk("fuzz.lua", []uint32{0x1, 0x2, 0x3})
	f := fuzz.New().NilChance(0)

	// The source name's size_t length sits right after the 12-byte header.
	const sourceLenOffset = headerSize
	// The instruction count is a uint32 following the source name
	// ("fuzz.lua\x00" is 9 bytes, so its size_t length-prefix is 8 bytes)
	// plus the start line, end line, and four single-byte fields (upvalue
	// count, parameter count, vararg flag, max stack size).
	const instrCountOffset = headerSize + 8 + 9 + 4 + 4 + 1 + 1 + 1 + 1

	for i := 0; i < 300; i++ {
		var raw uint64
		f.Fuzz(&raw)

		data := append([]byte(nil), base...)
		binary.LittleEndian.PutUint64(data[sourceLenOffset:], raw)

		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("Load panicked on fuzzed source length %d: %v", raw, r)
				}
			}()
			_, _ = Load(data, testIntern())
		}()

		var rawCount uint32
		f.Fuzz(&rawCount)

		data2 := append([]byte(nil), base...)
		binary.LittleEndian.PutUint32(data2[instrCountOffset:], rawCount)

		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("Load panicked on fuzzed instruction count %d: %v", rawCount, r)
				}
			}()
			_, _ = Load(data2, testIntern())
		}()
	}
}
