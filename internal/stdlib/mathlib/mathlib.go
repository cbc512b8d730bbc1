// Copyright 2024 The Luavm Authors
// This file is part of Luavm.

// Package mathlib implements the math library.
package mathlib

import (
	"math"
	"math/rand"

	"github.com/luavm/luavm/internal/table"
	"github.com/luavm/luavm/internal/value"
	"github.com/luavm/luavm/internal/vm"
	"github.com/luavm/luavm/internal/vmerror"
)

// Register installs the math library into m's globals.
func Register(m *vm.VM) {
	lib, libVal := table.NewSized(m.Heap, m.Meta, 0, 24)
	set := func(name string, fn vm.NativeFunc) {
		lib.Set(m.Intern(name), vm.NewNativeClosure(m.Heap, "math."+name, fn))
	}
	lib.Set(m.Intern("pi"), value.Number(math.Pi))
	lib.Set(m.Intern("huge"), value.Number(math.Inf(1)))

	unary := func(f func(float64) float64) vm.NativeFunc {
		return func(m *vm.VM, args []value.Value) ([]value.Value, error) {
			x, err := num(args, 0)
			if err != nil {
				return nil, err
			}
			return []value.Value{value.Number(f(x))}, nil
		}
	}
	set("abs", unary(math.Abs))
	set("ceil", unary(math.Ceil))
	set("floor", unary(math.Floor))
	set("sqrt", unary(math.Sqrt))
	set("sin", unary(math.Sin))
	set("cos", unary(math.Cos))
	set("tan", unary(math.Tan))
	set("exp", unary(math.Exp))
	set("log", unary(math.Log))
	set("rad", unary(func(d float64) float64 { return d * math.Pi / 180 }))
	set("deg", unary(func(r float64) float64 { return r * 180 / math.Pi }))

	set("max", biMax)
	set("min", biMin)
	set("pow", biPow)
	set("fmod", biFmod)
	set("modf", biModf)
	set("random", biRandom)
	set("randomseed", biRandomSeed)

	m.Globals.Set(m.Intern("math"), libVal)
}

func num(args []value.Value, i int) (float64, error) {
	if i >= len(args) || !args[i].IsNumber() {
		return 0, vmerror.BadType("", i+1, "math", "number", "no value")
	}
	return args[i].Float64(), nil
}

func biMax(m *vm.VM, args []value.Value) ([]value.Value, error) {
	if len(args) == 0 {
		return nil, vmerror.MissingArg("", 1, "max", "number")
	}
	best := args[0].Float64()
	for _, a := range args[1:] {
		if a.Float64() > best {
			best = a.Float64()
		}
	}
	return []value.Value{value.Number(best)}, nil
}

func biMin(m *vm.VM, args []value.Value) ([]value.Value, error) {
	if len(args) == 0 {
		return nil, vmerror.MissingArg("", 1, "min", "number")
	}
	best := args[0].Float64()
	for _, a := range args[1:] {
		if a.Float64() < best {
			best = a.Float64()
		}
	}
	return []value.Value{value.Number(best)}, nil
}

func biPow(m *vm.VM, args []value.Value) ([]value.Value, error) {
	x, err := num(args, 0)
	if err != nil {
		return nil, err
	}
	y, err := num(args, 1)
	if err != nil {
		return nil, err
	}
	return []value.Value{value.Number(math.Pow(x, y))}, nil
}

func biFmod(m *vm.VM, args []value.Value) ([]value.Value, error) {
	x, err := num(args, 0)
	if err != nil {
		return nil, err
	}
	y, err := num(args, 1)
	if err != nil {
		return nil, err
	}
	return []value.Value{value.Number(math.Mod(x, y))}, nil
}

func biModf(m *vm.VM, args []value.Value) ([]value.Value, error) {
	x, err := num(args, 0)
	if err != nil {
		return nil, err
	}
	i, f := math.Modf(x)
	return []value.Value{value.Number(i), value.Number(f)}, nil
}

func biRandom(m *vm.VM, args []value.Value) ([]value.Value, error) {
	switch len(args) {
	case 0:
		return []value.Value{value.Number(rand.Float64())}, nil
	case 1:
		n := int(args[0].Float64())
		return []value.Value{value.Number(float64(1 + rand.Intn(n)))}, nil
	default:
		lo := int(args[0].Float64())
		hi := int(args[1].Float64())
		return []value.Value{value.Number(float64(lo + rand.Intn(hi-lo+1)))}, nil
	}
}

func biRandomSeed(m *vm.VM, args []value.Value) ([]value.Value, error) {
	if len(args) > 0 {
		rand.Seed(int64(args[0].Float64()))
	}
	return nil, nil
}
