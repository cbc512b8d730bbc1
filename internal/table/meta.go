// Copyright 2024 The Luavm Authors
// This file is part of Luavm.
//
// Luavm is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package table

import "github.com/luavm/luavm/internal/value"

// MetaEvent indexes the fixed set of metamethod cache slots a table carries
// alongside its main storage.
type MetaEvent int

const (
	MetaAdd MetaEvent = iota
	MetaSub
	MetaMul
	MetaDiv
	MetaMod
	MetaPow
	MetaUnm
	MetaConcat
	MetaLen
	MetaEq
	MetaLt
	MetaLe
	MetaIndex
	MetaNewIndex
	MetaCall
	MetaMetatable
	numNamedMetaEvents
)

// NumMetaSlots is the fixed width of a table's metamethod cache: the 16
// named events plus one reserved, unused slot, matching the data model's
// explicit 17-slot cache.
const NumMetaSlots = int(numNamedMetaEvents) + 1

var metaEventNames = [numNamedMetaEvents]string{
	"__add", "__sub", "__mul", "__div", "__mod", "__pow", "__unm",
	"__concat", "__len", "__eq", "__lt", "__le",
	"__index", "__newindex", "__call", "__metatable",
}

// MetaKeys holds the canonical interned string handle for each metamethod
// event name, built once per VM so that lookup is a cheap value.Value
// comparison instead of a byte-content comparison — the same optimization
// lhash_check_meta performs with its meta_strings pointer table.
type MetaKeys struct {
	names [numNamedMetaEvents]value.Value
	max   value.Value
}

// NewMetaKeys interns every event name via intern and records the largest
// resulting handle, mirroring the reference implementation's
// max_meta_string early-reject optimization.
func NewMetaKeys(intern func([]byte) value.Value) *MetaKeys {
	mk := &MetaKeys{}
	for i, name := range metaEventNames {
		v := intern([]byte(name))
		mk.names[i] = v
		if v > mk.max {
			mk.max = v
		}
	}
	return mk
}

// Check reports whether key is one of the canonical metamethod event names,
// and if so which slot it maps to.
func (mk *MetaKeys) Check(key value.Value) (MetaEvent, bool) {
	if mk == nil || !key.IsString() || key > mk.max {
		return 0, false
	}
	for i, name := range mk.names {
		if name == key {
			return MetaEvent(i), true
		}
	}
	return 0, false
}
