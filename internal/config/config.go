// Copyright 2024 The Luavm Authors
// This file is part of Luavm.
//
// Luavm is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package config loads the optional luago.toml runtime configuration file:
// heap sizing, a GC pause setting, coroutine native-stack size, and a
// metrics endpoint. Unknown or
// deprecated fields warn through internal/log rather than failing the
// decode outright.
package config

import (
	"bufio"
	"errors"
	"os"
	"reflect"

	"github.com/naoina/toml"

	"github.com/luavm/luavm/internal/log"
)

// Config holds the tunables a host process may override via luago.toml or
// CLI flags before constructing a VM.
type Config struct {
	// HeapInitialLimit is the byte threshold that triggers the VM's first
	// collection cycle, before the collector starts doubling it.
	HeapInitialLimit uint64 `toml:",omitempty"`

	// GCPause is decoded and kept here, but nothing in the runtime reads it:
	// the heap always doubles its collection threshold when survivors exceed
	// it and halves it when they fall under half of it.
	GCPause int `toml:",omitempty"`

	// CoroutineStackSize is the size in bytes of each coroutine's mmap'd
	// native scratch region.
	CoroutineStackSize int `toml:",omitempty"`

	// MetricsEndpoint, if set, exposes runtime counters over HTTP.
	MetricsEndpoint string `toml:",omitempty"`
}

// Defaults mirrors the zero-config behavior of a freshly constructed VM.
var Defaults = Config{
	HeapInitialLimit:   16 << 10,
	GCPause:            100,
	CoroutineStackSize: 64 << 10,
}

// tomlSettings keeps TOML keys identical to the Go struct field names and
// routes unknown-field decode errors through the logger instead of failing.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		log.Warn("config field is not recognized", "type", rt.String(), "field", field)
		return nil
	},
}

// Load reads and decodes a luago.toml file on top of Defaults.
func Load(path string) (Config, error) {
	cfg := Defaults
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(&cfg)
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(path + ", " + err.Error())
	}
	return cfg, err
}
