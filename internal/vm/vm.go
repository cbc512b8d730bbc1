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

package vm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/luavm/luavm/internal/chunk"
	"github.com/luavm/luavm/internal/heap"
	"github.com/luavm/luavm/internal/log"
	"github.com/luavm/luavm/internal/strtable"
	"github.com/luavm/luavm/internal/table"
	"github.com/luavm/luavm/internal/trace"
	"github.com/luavm/luavm/internal/value"
	"github.com/luavm/luavm/internal/vmerror"
)

const maxCallDepth = 200

// frame is one activation record on the call stack.
type frame struct {
	closureVal value.Value
	closure    *Closure
	registers  []value.Value
	pc         int
	varargs    []value.Value
	openUpvals map[int]*UpvalueCell
	top        int // high-water register index + 1 for an in-flight multret
	name       string
}

// VM is the single execution context shared by every coroutine: it owns the
// heap, the string intern table, the metamethod-name cache and the globals
// table. A coroutine (internal/coroutine.Coroutine) owns its own call-frame
// stack and runs on its own goroutine, but all coroutines of one script
// share exactly one VM, matching the "single VM context, not true per-thread
// globals" design decision.
type VM struct {
	Heap    *heap.Heap
	Strings *strtable.Table
	Meta    *table.MetaKeys
	Globals *table.Table
	GlobalsVal value.Value

	frames []*frame

	// StringMetatable, if set, backs string-value method calls (s:upper()).
	StringMetatable value.Value

	// threadStack tracks the chain of currently-running coroutines so a
	// native function (e.g. coroutine.yield) can find its way back to the
	// Coroutine it is running on without the vm package depending on the
	// coroutine package. Each entry is a *coroutine.Coroutine stored opaquely.
	threadStack []interface{}

	// ID distinguishes this execution context in log output when a host
	// process runs more than one VM.
	ID uuid.UUID
}

// PushThread records the coroutine now taking over execution on this VM.
func (m *VM) PushThread(c interface{}) { m.threadStack = append(m.threadStack, c) }

// PopThread removes the most recently pushed running coroutine.
func (m *VM) PopThread() {
	if n := len(m.threadStack); n > 0 {
		m.threadStack = m.threadStack[:n-1]
	}
}

// CurrentThread returns the innermost running coroutine, or nil if the main
// thread is executing.
func (m *VM) CurrentThread() interface{} {
	if n := len(m.threadStack); n > 0 {
		return m.threadStack[n-1]
	}
	return nil
}

// New builds a fresh execution context with an empty globals table and
// registers its GC root hook.
func New() *VM {
	return NewWithHeapLimit(0)
}

// NewWithHeapLimit builds a fresh execution context whose heap starts with
// the given collection-trigger limit; zero selects the built-in default.
func NewWithHeapLimit(limit uint64) *VM {
	var h *heap.Heap
	if limit == 0 {
		h = heap.New()
	} else {
		h = heap.NewWithLimit(limit)
	}
	strs := strtable.New(h)
	meta := table.NewMetaKeys(strs.Intern)
	globals, globalsVal := table.New(h, meta)

	m := &VM{
		Heap:       h,
		Strings:    strs,
		Meta:       meta,
		Globals:    globals,
		GlobalsVal: globalsVal,
		ID:         uuid.New(),
	}
	h.AddRootHook(m.markRoots)
	log.Debug("vm created", "vm_id", m.ID)
	return m
}

func (m *VM) markRoots(mark func(value.Value)) {
	mark(m.GlobalsVal)
	mark(m.StringMetatable)
	for _, f := range m.frames {
		mark(f.closureVal)
		for _, r := range f.registers {
			mark(r)
		}
		for _, v := range f.varargs {
			mark(v)
		}
	}
}

// Intern is a convenience wrapper over the VM's string table, used by the
// standard library to box Go strings.
func (m *VM) Intern(s string) value.Value { return m.Strings.Intern([]byte(s)) }

// Register installs a native function into the globals table under name.
func (m *VM) Register(name string, fn NativeFunc) {
	m.Globals.Set(m.Intern(name), NewNativeClosure(m.Heap, name, fn))
}

// Call invokes fn (a function value) with args, recovering any *vmerror.Error
// raised during execution into a returned error — the protected boundary a
// top-level script run or a library-level pcall install.
func (m *VM) Call(fn value.Value, args ...value.Value) (results []value.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(*vmerror.Error); ok {
				log.Debug("call unwound with error", "vm_id", m.ID, "kind", e.Kind, "msg", e.Error())
				err = e
				return
			}
			panic(r)
		}
	}()
	return m.call(fn, args, "?"), nil
}

func (m *VM) call(fn value.Value, args []value.Value, name string) []value.Value {
	if len(m.frames) >= maxCallDepth {
		panic(vmerror.Fatal("stack overflow"))
	}
	obj := m.Heap.Lookup(fn)
	cl, ok := obj.(*Closure)
	if !ok {
		if mm := m.metamethodOf(fn, table.MetaCall); mm != value.Nil {
			return m.call(mm, append([]value.Value{fn}, args...), name)
		}
		panic(vmerror.Raw("", fmt.Sprintf("attempt to call a %s value", fn.Kind())))
	}
	if cl.Native != nil {
		res, err := cl.Native(m, args)
		if err != nil {
			if ve, ok := err.(*vmerror.Error); ok {
				panic(ve)
			}
			panic(vmerror.Raw("", err.Error()))
		}
		return res
	}
	return m.callScript(cl, fn, args)
}

func (m *VM) callScript(cl *Closure, fnVal value.Value, args []value.Value) []value.Value {
	proto := cl.Proto
	regs := make([]value.Value, max(int(proto.MaxStack), len(proto.Instructions)))
	for i := range regs {
		regs[i] = value.Nil
	}
	np := int(proto.NumParams)
	for i := 0; i < np && i < len(args); i++ {
		regs[i] = args[i]
	}
	var varargs []value.Value
	if proto.IsVararg && len(args) > np {
		varargs = append(varargs, args[np:]...)
	}
	f := &frame{
		closureVal: fnVal,
		closure:    cl,
		registers:  regs,
		varargs:    varargs,
		openUpvals: map[int]*UpvalueCell{},
		name:       cl.Name,
	}
	m.frames = append(m.frames, f)
	defer func() {
		m.frames = m.frames[:len(m.frames)-1]
	}()
	return m.execute(f)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// upvalFor returns (creating if needed) the open upvalue cell aliasing
// register idx of frame f.
func (f *frame) upvalFor(idx int) *UpvalueCell {
	if uv, ok := f.openUpvals[idx]; ok {
		return uv
	}
	uv := &UpvalueCell{open: true, stack: f.registers, index: idx}
	f.openUpvals[idx] = uv
	return uv
}

func (f *frame) closeFrom(idx int) {
	for i, uv := range f.openUpvals {
		if i >= idx {
			uv.Close()
			delete(f.openUpvals, i)
		}
	}
}

// execute runs f's instruction stream until a RETURN, returning its results.
func (m *VM) execute(f *frame) []value.Value {
	proto := f.closure.Proto
	code := proto.Instructions
	for {
		if f.pc >= len(code) {
			return nil
		}
		ins := decode(code[f.pc])
		line := 0
		if f.pc < len(proto.DebugLines) {
			line = int(proto.DebugLines[f.pc])
		}
		f.pc++
		pos := fmt.Sprintf("%s:%d", proto.Source, line)
		if trace.Enabled() {
			trace.Instruction(proto.Source, f.pc-1, ins.op.String(), ins.a, ins.b, ins.c, line)
		}

		switch ins.op {
		case OpMove:
			f.registers[ins.a] = f.registers[ins.b]
		case OpLoadK:
			f.registers[ins.a] = proto.Constants[ins.bx]
		case OpLoadBool:
			f.registers[ins.a] = value.Bool(ins.b != 0)
			if ins.c != 0 {
				f.pc++
			}
		case OpLoadNil:
			for i := ins.a; i <= ins.b; i++ {
				f.registers[i] = value.Nil
			}
		case OpGetUpval:
			f.registers[ins.a] = f.closure.Upvalues[ins.b].Get()
		case OpSetUpval:
			f.closure.Upvalues[ins.b].Set(f.registers[ins.a])
		case OpGetGlobal:
			f.registers[ins.a] = m.Globals.Get(proto.Constants[ins.bx])
		case OpSetGlobal:
			m.Globals.Set(proto.Constants[ins.bx], f.registers[ins.a])
		case OpNewTable:
			_, v := table.New(m.Heap, m.Meta)
			f.registers[ins.a] = v
		case OpGetTable:
			t := f.registers[ins.b]
			k := m.rk(f, proto, ins.c)
			f.registers[ins.a] = m.index(t, k, pos)
		case OpSetTable:
			t := f.registers[ins.a]
			k := m.rk(f, proto, ins.b)
			v := m.rk(f, proto, ins.c)
			m.newindex(t, k, v, pos)
		case OpSelf:
			obj := f.registers[ins.b]
			f.registers[ins.a+1] = obj
			k := m.rk(f, proto, ins.c)
			f.registers[ins.a] = m.index(obj, k, pos)
		case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpPow:
			a := m.rk(f, proto, ins.b)
			b := m.rk(f, proto, ins.c)
			f.registers[ins.a] = m.arith(ins.op, a, b, pos)
		case OpUnm:
			a := f.registers[ins.b]
			if n, ok := m.toNumber(a); ok {
				f.registers[ins.a] = value.Number(-n)
			} else {
				f.registers[ins.a] = m.arithMeta(table.MetaUnm, a, a, pos)
			}
		case OpNot:
			f.registers[ins.a] = value.Bool(!f.registers[ins.b].Truthy())
		case OpLen:
			f.registers[ins.a] = m.length(f.registers[ins.b], pos)
		case OpConcat:
			f.registers[ins.a] = m.concat(f.registers[ins.b:ins.c+1], pos)
		case OpJmp:
			f.pc += int(ins.sBx)
		case OpEq:
			if m.equals(f.registers[ins.a], f.registers[ins.b]) != (ins.c != 0) {
				f.pc++
			}
		case OpLt:
			if m.less(f.registers[ins.a], f.registers[ins.b], pos) != (ins.c != 0) {
				f.pc++
			}
		case OpLe:
			if m.lessEqual(f.registers[ins.a], f.registers[ins.b], pos) != (ins.c != 0) {
				f.pc++
			}
		case OpTest:
			if f.registers[ins.a].Truthy() != (ins.c != 0) {
				f.pc++
			}
		case OpTestSet:
			if f.registers[ins.b].Truthy() == (ins.c != 0) {
				f.registers[ins.a] = f.registers[ins.b]
			} else {
				f.pc++
			}
		case OpCall:
			m.doCall(f, ins)
		case OpTailCall:
			results := m.prepCall(f, ins)
			f.closeFrom(0)
			return results
		case OpReturn:
			args := m.spread(f, int(ins.a), int(ins.b))
			f.closeFrom(0)
			return args
		case OpForPrep:
			init, _ := m.toNumber(f.registers[ins.a])
			step, _ := m.toNumber(f.registers[ins.a+2])
			f.registers[ins.a] = value.Number(init - step)
			f.pc += int(ins.sBx)
		case OpForLoop:
			m.forLoop(f, ins)
		case OpTForLoop:
			m.tForLoop(f, ins, pos)
		case OpSetList:
			m.setList(f, ins)
		case OpClose:
			f.closeFrom(int(ins.a))
		case OpClosure:
			m.makeClosure(f, proto, ins, code)
		case OpVararg:
			m.vararg(f, ins)
		default:
			panic(vmerror.Fatal("%s: invalid opcode %d at pc %d", proto.Source, ins.op, f.pc-1))
		}
	}
}

func (m *VM) rk(f *frame, proto *chunk.Prototype, rk uint32) value.Value {
	if isConstant(rk) {
		return proto.Constants[constantIndex(rk)]
	}
	return f.registers[rk]
}

// spread reads the B-1 results starting at register a, or everything up to
// f.top when b == 0 (the "multret" encoding RETURN/CALL share).
func (m *VM) spread(f *frame, a, b int) []value.Value {
	if b == 0 {
		return append([]value.Value(nil), f.registers[a:f.top]...)
	}
	return append([]value.Value(nil), f.registers[a:a+b-1]...)
}

func (m *VM) prepCall(f *frame, ins instruction) []value.Value {
	fn := f.registers[ins.a]
	nargs := int(ins.b) - 1
	var args []value.Value
	if ins.b == 0 {
		args = append([]value.Value(nil), f.registers[ins.a+1:f.top]...)
	} else {
		args = append([]value.Value(nil), f.registers[ins.a+1:ins.a+1+uint32(nargs)]...)
	}
	return m.call(fn, args, callName(f, ins.a))
}

func (m *VM) doCall(f *frame, ins instruction) {
	results := m.prepCall(f, ins)
	if ins.c == 0 {
		for i, r := range results {
			f.registers[int(ins.a)+i] = r
		}
		f.top = int(ins.a) + len(results)
		return
	}
	want := int(ins.c) - 1
	for i := 0; i < want; i++ {
		if i < len(results) {
			f.registers[int(ins.a)+i] = results[i]
		} else {
			f.registers[int(ins.a)+i] = value.Nil
		}
	}
}

func callName(f *frame, reg uint32) string {
	if f.closure.Proto == nil {
		return "?"
	}
	return fmt.Sprintf("%s:%d", f.closure.Proto.Source, reg)
}

func (m *VM) forLoop(f *frame, ins instruction) {
	idx, _ := m.toNumber(f.registers[ins.a])
	limit, _ := m.toNumber(f.registers[ins.a+1])
	step, _ := m.toNumber(f.registers[ins.a+2])

	if st := newExactForState(idx, limit, step); st.ok {
		next, overflowed := st.advance()
		if overflowed {
			return
		}
		if cont := (st.step > 0 && next <= st.limit) || (st.step <= 0 && next >= st.limit); cont {
			f.registers[ins.a] = value.Number(float64(next))
			f.registers[ins.a+3] = value.Number(float64(next))
			f.pc += int(ins.sBx)
		}
		return
	}

	idx += step
	cont := (step > 0 && idx <= limit) || (step <= 0 && idx >= limit)
	if cont {
		f.registers[ins.a] = value.Number(idx)
		f.registers[ins.a+3] = value.Number(idx)
		f.pc += int(ins.sBx)
	}
}

func (m *VM) tForLoop(f *frame, ins instruction, pos string) {
	iter := f.registers[ins.a]
	state := f.registers[ins.a+1]
	control := f.registers[ins.a+2]
	results := m.call(iter, []value.Value{state, control}, "for iterator")
	base := int(ins.a) + 3
	n := int(ins.c)
	for i := 0; i < n; i++ {
		if i < len(results) {
			f.registers[base+i] = results[i]
		} else {
			f.registers[base+i] = value.Nil
		}
	}
	if len(results) == 0 || results[0] == value.Nil {
		f.pc++ // skip the following JMP
		return
	}
	f.registers[ins.a+2] = results[0]
}

const fieldsPerFlush = 50

func (m *VM) setList(f *frame, ins instruction) {
	obj := m.Heap.Lookup(f.registers[ins.a])
	t, ok := obj.(*table.Table)
	if !ok {
		panic(vmerror.Fatal("SETLIST on a non-table register"))
	}
	n := int(ins.b)
	var items []value.Value
	if n == 0 {
		items = f.registers[ins.a+1 : f.top]
	} else {
		items = f.registers[ins.a+1 : ins.a+1+uint32(n)]
	}
	base := (int(ins.c) - 1) * fieldsPerFlush
	for i, v := range items {
		t.Set(value.Number(float64(base+i+1)), v)
	}
}

func (m *VM) makeClosure(f *frame, proto *chunk.Prototype, ins instruction, code []uint32) {
	child := proto.Protos[ins.bx]
	upvals := make([]*UpvalueCell, child.NumUpvalues)
	for i := range upvals {
		pseudo := decode(code[f.pc])
		f.pc++
		switch pseudo.op {
		case OpMove:
			upvals[i] = f.upvalFor(int(pseudo.b))
		case OpGetUpval:
			upvals[i] = f.closure.Upvalues[pseudo.b]
		default:
			panic(vmerror.Fatal("malformed CLOSURE upvalue descriptor"))
		}
	}
	f.registers[ins.a] = NewScriptClosure(m.Heap, child, upvals)
}

func (m *VM) vararg(f *frame, ins instruction) {
	n := int(ins.b) - 1
	if ins.b == 0 {
		n = len(f.varargs)
		f.top = int(ins.a) + n
	}
	for i := 0; i < n; i++ {
		if i < len(f.varargs) {
			f.registers[int(ins.a)+i] = f.varargs[i]
		} else {
			f.registers[int(ins.a)+i] = value.Nil
		}
	}
}

// --- table access with metamethod chasing ---------------------------------

const maxMetaChain = 100

func (m *VM) metamethodOf(v value.Value, ev table.MetaEvent) value.Value {
	obj := m.Heap.Lookup(v)
	t, ok := obj.(*table.Table)
	if !ok {
		return value.Nil
	}
	mt := t.Metatable()
	if mt == value.Nil {
		return value.Nil
	}
	mtObj, ok := m.Heap.Lookup(mt).(*table.Table)
	if !ok {
		return value.Nil
	}
	return mtObj.GetMeta(ev)
}

func (m *VM) index(t, k value.Value, pos string) value.Value {
	for i := 0; i < maxMetaChain; i++ {
		if obj, ok := m.Heap.Lookup(t).(*table.Table); ok {
			v := obj.Get(k)
			if v != value.Nil {
				return v
			}
			mm := m.metamethodOf(t, table.MetaIndex)
			if mm == value.Nil {
				return value.Nil
			}
			if m.Heap.Lookup(mm) != nil {
				if _, isTable := m.Heap.Lookup(mm).(*table.Table); isTable {
					t = mm
					continue
				}
			}
			res := m.call(mm, []value.Value{t, k}, "__index")
			if len(res) == 0 {
				return value.Nil
			}
			return res[0]
		}
		panic(vmerror.Raw(pos, fmt.Sprintf("attempt to index a %s value", t.Kind())))
	}
	panic(vmerror.Fatal("'__index' chain too long; possible loop"))
}

func (m *VM) newindex(t, k, v value.Value, pos string) {
	for i := 0; i < maxMetaChain; i++ {
		obj, ok := m.Heap.Lookup(t).(*table.Table)
		if !ok {
			panic(vmerror.Raw(pos, fmt.Sprintf("attempt to index a %s value", t.Kind())))
		}
		if obj.Get(k) != value.Nil {
			obj.Set(k, v)
			return
		}
		mm := m.metamethodOf(t, table.MetaNewIndex)
		if mm == value.Nil {
			obj.Set(k, v)
			return
		}
		if mmObj, isTable := m.Heap.Lookup(mm).(*table.Table); isTable {
			_ = mmObj
			t = mm
			continue
		}
		m.call(mm, []value.Value{t, k, v}, "__newindex")
		return
	}
	panic(vmerror.Fatal("'__newindex' chain too long; possible loop"))
}

func (m *VM) length(v value.Value, pos string) value.Value {
	if v.IsString() {
		return value.Number(float64(len(m.Strings.Bytes(v))))
	}
	if obj, ok := m.Heap.Lookup(v).(*table.Table); ok {
		if mm := m.metamethodOf(v, table.MetaLen); mm != value.Nil {
			res := m.call(mm, []value.Value{v}, "__len")
			if len(res) > 0 {
				return res[0]
			}
			return value.Nil
		}
		return value.Number(float64(obj.Length()))
	}
	panic(vmerror.Raw(pos, fmt.Sprintf("attempt to get length of a %s value", v.Kind())))
}

// --- arithmetic / coercion --------------------------------------------------

func (m *VM) toNumber(v value.Value) (float64, bool) {
	if v.IsNumber() {
		return v.Float64(), true
	}
	if v.IsString() {
		f, err := strconv.ParseFloat(strings.TrimSpace(string(m.Strings.Bytes(v))), 64)
		return f, err == nil
	}
	return 0, false
}

func (m *VM) toStringValue(v value.Value) string {
	switch {
	case v.IsString():
		return string(m.Strings.Bytes(v))
	case v.IsNumber():
		return formatNumber(v.Float64())
	case v == value.Nil:
		return "nil"
	case v.IsBoolean():
		if v.Bool() {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%s: 0x%08x", v.Kind(), v.Handle())
	}
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) && !strings.Contains(strconv.FormatFloat(f, 'e', -1, 64), "e+1") {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', 14, 64)
}

var arithMetaEvent = map[Opcode]table.MetaEvent{
	OpAdd: table.MetaAdd, OpSub: table.MetaSub, OpMul: table.MetaMul,
	OpDiv: table.MetaDiv, OpMod: table.MetaMod, OpPow: table.MetaPow,
}

func (m *VM) arith(op Opcode, a, b value.Value, pos string) value.Value {
	x, okx := m.toNumber(a)
	y, oky := m.toNumber(b)
	if okx && oky {
		return value.Number(applyArith(op, x, y))
	}
	return m.arithMeta(arithMetaEvent[op], a, b, pos)
}

func applyArith(op Opcode, x, y float64) float64 {
	switch op {
	case OpAdd:
		return x + y
	case OpSub:
		return x - y
	case OpMul:
		return x * y
	case OpDiv:
		return x / y
	case OpMod:
		return x - floorDiv(x, y)*y
	case OpPow:
		return pow(x, y)
	}
	return 0
}

func floorDiv(x, y float64) float64 {
	q := x / y
	return floorFloat(q)
}

func floorFloat(f float64) float64 {
	i := float64(int64(f))
	if f < 0 && i != f {
		i--
	}
	return i
}

func pow(x, y float64) float64 {
	r := 1.0
	if y == 0 {
		return 1
	}
	neg := y < 0
	if neg {
		y = -y
	}
	for y > 0 {
		r *= x
		y--
	}
	if neg {
		return 1 / r
	}
	return r
}

func (m *VM) arithMeta(ev table.MetaEvent, a, b value.Value, pos string) value.Value {
	if mm := m.metamethodOf(a, ev); mm != value.Nil {
		res := m.call(mm, []value.Value{a, b}, "arith metamethod")
		if len(res) > 0 {
			return res[0]
		}
		return value.Nil
	}
	if mm := m.metamethodOf(b, ev); mm != value.Nil {
		res := m.call(mm, []value.Value{a, b}, "arith metamethod")
		if len(res) > 0 {
			return res[0]
		}
		return value.Nil
	}
	bad := a
	if _, ok := m.toNumber(a); ok {
		bad = b
	}
	panic(vmerror.Arithmetic(pos, fmt.Sprintf("attempt to perform arithmetic on a %s value", bad.Kind())))
}

func (m *VM) concat(operands []value.Value, pos string) value.Value {
	var sb strings.Builder
	for _, v := range operands {
		if v.IsString() || v.IsNumber() {
			sb.WriteString(m.toStringValue(v))
			continue
		}
		if mm := m.metamethodOf(v, table.MetaConcat); mm != value.Nil {
			sb.WriteString(m.toStringValue(v))
			continue
		}
		panic(vmerror.Raw(pos, fmt.Sprintf("attempt to concatenate a %s value", v.Kind())))
	}
	return m.Intern(sb.String())
}

func (m *VM) equals(a, b value.Value) bool {
	if a == b {
		return true
	}
	if a.IsNumber() && b.IsNumber() {
		return a.Float64() == b.Float64()
	}
	if a.Kind() == value.KindTable && b.Kind() == value.KindTable {
		if mm := m.metamethodOf(a, table.MetaEq); mm != value.Nil {
			res := m.call(mm, []value.Value{a, b}, "__eq")
			return len(res) > 0 && res[0].Truthy()
		}
	}
	return false
}

func (m *VM) less(a, b value.Value, pos string) bool {
	if a.IsNumber() && b.IsNumber() {
		return a.Float64() < b.Float64()
	}
	if a.IsString() && b.IsString() {
		return string(m.Strings.Bytes(a)) < string(m.Strings.Bytes(b))
	}
	if mm := m.metamethodOf(a, table.MetaLt); mm != value.Nil {
		res := m.call(mm, []value.Value{a, b}, "__lt")
		return len(res) > 0 && res[0].Truthy()
	}
	panic(vmerror.Raw(pos, fmt.Sprintf("attempt to compare %s with %s", a.Kind(), b.Kind())))
}

func (m *VM) lessEqual(a, b value.Value, pos string) bool {
	if a.IsNumber() && b.IsNumber() {
		return a.Float64() <= b.Float64()
	}
	if a.IsString() && b.IsString() {
		return string(m.Strings.Bytes(a)) <= string(m.Strings.Bytes(b))
	}
	if mm := m.metamethodOf(a, table.MetaLe); mm != value.Nil {
		res := m.call(mm, []value.Value{a, b}, "__le")
		return len(res) > 0 && res[0].Truthy()
	}
	panic(vmerror.Raw(pos, fmt.Sprintf("attempt to compare %s with %s", a.Kind(), b.Kind())))
}

// Run wraps a loaded prototype in a closure and executes it as the main
// chunk, passing args as its parameters.
func (m *VM) Run(proto *chunk.Prototype, args ...value.Value) ([]value.Value, error) {
	fn := NewScriptClosure(m.Heap, proto, nil)
	return m.Call(fn, args...)
}
