// Copyright 2024 The Luavm Authors
// This file is part of Luavm.
//
// Luavm is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Command luago is the runtime's command-line entry point: it loads a
// pre-compiled chunk from a file (-c) or literal argument (-e), optionally
// dumps the root prototype's disassembly (-d), installs the standard
// library, builds the `arg` globals table from the remaining command-line
// arguments, and runs the chunk.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/urfave/cli.v1"

	"github.com/luavm/luavm/internal/chunk"
	"github.com/luavm/luavm/internal/config"
	"github.com/luavm/luavm/internal/coroutine"
	"github.com/luavm/luavm/internal/log"
	"github.com/luavm/luavm/internal/stdlib/base"
	"github.com/luavm/luavm/internal/stdlib/corolib"
	"github.com/luavm/luavm/internal/stdlib/iolib"
	"github.com/luavm/luavm/internal/stdlib/mathlib"
	"github.com/luavm/luavm/internal/stdlib/oslib"
	"github.com/luavm/luavm/internal/stdlib/strlib"
	"github.com/luavm/luavm/internal/stdlib/tablelib"
	"github.com/luavm/luavm/internal/table"
	"github.com/luavm/luavm/internal/trace"
	"github.com/luavm/luavm/internal/value"
	"github.com/luavm/luavm/internal/vm"
)

const version = "0.1.0"

var (
	chunkPathFlag = cli.StringFlag{
		Name:  "c",
		Usage: "load a pre-compiled chunk from `PATH`",
	}
	chunkTextFlag = cli.StringFlag{
		Name:  "e",
		Usage: "load a pre-compiled chunk from the literal `TEXT` argument",
	}
	dumpFlag = cli.BoolFlag{
		Name:  "d",
		Usage: "dump the loaded root prototype's disassembly before executing",
	}
	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "load runtime tunables from a TOML `FILE`",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "luago"
	app.Usage = "run a compiled chunk"
	app.Version = version
	app.Flags = []cli.Flag{chunkPathFlag, chunkTextFlag, dumpFlag, configFlag}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		code := 1
		if ec, ok := err.(cli.ExitCoder); ok {
			code = ec.ExitCode()
		}
		if msg := err.Error(); msg != "" {
			log.Crit("luago exiting", "err", msg)
		}
		os.Exit(code)
	}
}

func run(ctx *cli.Context) error {
	cfg := config.Defaults
	if path := ctx.String(configFlag.Name); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cli.NewExitError(fmt.Sprintf("luago: %v", err), 1)
		}
		cfg = loaded
	}
	coroutine.ScratchSize = cfg.CoroutineStackSize

	data, scriptName, err := resolveSource(ctx.String(chunkPathFlag.Name), ctx.String(chunkTextFlag.Name))
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("luago: %v", err), 1)
	}

	m := vm.NewWithHeapLimit(cfg.HeapInitialLimit)
	if cfg.MetricsEndpoint != "" {
		serveMetrics(m, cfg.MetricsEndpoint)
	}
	base.Register(m)
	strlib.Register(m)
	tablelib.Register(m)
	mathlib.Register(m)
	oslib.Register(m)
	iolib.Register(m)
	corolib.Register(m)

	proto, err := chunk.Load(data, m.Strings.Intern)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("luago: %v", err), 1)
	}

	if ctx.Bool(dumpFlag.Name) {
		dump(proto)
		trace.Enable(true)
	}

	setArgTable(m, scriptName, ctx.Args())

	if _, err := m.Run(proto); err != nil {
		fmt.Fprintln(os.Stderr, "luago: "+err.Error())
		return cli.NewExitError("", 1)
	}
	return nil
}

// resolveSource turns the -c/-e flag values into a raw chunk byte buffer
// and the name used for the script's arg[0] slot. Exactly one of path or
// text must be non-empty.
func resolveSource(path, text string) ([]byte, string, error) {
	switch {
	case path != "" && text != "":
		return nil, "", fmt.Errorf("-c and -e are mutually exclusive")
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", err
		}
		return data, path, nil
	case text != "":
		return []byte(text), "=(command line)", nil
	default:
		return nil, "", fmt.Errorf("one of -c or -e is required")
	}
}

// setArgTable installs the `arg` global: index 0 holds the script's own
// name, index -1 the runtime executable's name (os.Args[0]), positive
// indices the user-supplied trailing arguments. The runtime flags given
// before the script are not recorded in the table.
func setArgTable(m *vm.VM, scriptName string, rest []string) {
	tbl, tblVal := table.New(m.Heap, m.Meta)
	tbl.Set(value.Number(0), m.Intern(scriptName))
	tbl.Set(value.Number(-1), m.Intern(os.Args[0]))
	for i, a := range rest {
		tbl.Set(value.Number(float64(i+1)), m.Intern(a))
	}
	m.Globals.Set(m.Intern("arg"), tblVal)
}

// serveMetrics exposes the VM's heap stats on addr in the background; it
// never blocks startup and logs rather than failing the run if the listener
// can't bind.
func serveMetrics(m *vm.VM, addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "luavm_heap_live_bytes %d\n", m.Heap.LiveBytes())
		fmt.Fprintf(w, "luavm_heap_limit_bytes %d\n", m.Heap.Limit())
	})
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error("metrics listener exited", "addr", addr, "err", err)
		}
	}()
	log.Info("metrics endpoint listening", "addr", addr)
}

func dump(proto *chunk.Prototype) {
	fmt.Println(vm.DumpConstants(proto))

	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"PC", "OP", "A", "B", "C", "Line"})
	for _, row := range vm.Disassemble(proto) {
		tw.Append([]string{
			fmt.Sprintf("%d", row.PC),
			row.Opcode,
			fmt.Sprintf("%d", row.A),
			fmt.Sprintf("%d", row.B),
			fmt.Sprintf("%d", row.C),
			fmt.Sprintf("%d", row.Line),
		})
	}
	tw.Render()

	for _, child := range proto.Protos {
		dump(child)
	}
}
