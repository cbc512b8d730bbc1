// Copyright 2024 The Luavm Authors
// This file is part of Luavm.

// Package log provides a small leveled, contextual logger with the
// Info/Warn/Error/Crit/Debug/Trace(msg, ctx...) calling convention used
// throughout this module, built on the standard library's log package; see
// DESIGN.md for why no third-party logging dependency backs it.
package log

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

// Level orders the severities from most to least verbose filtering.
type Level int

const (
	LvlTrace Level = iota
	LvlDebug
	LvlInfo
	LvlWarn
	LvlError
	LvlCrit
)

var levelNames = map[Level]string{
	LvlTrace: "trce", LvlDebug: "dbug", LvlInfo: "info",
	LvlWarn: "warn", LvlError: "eror", LvlCrit: "crit",
}

// Logger is a minimal leveled, contextual logger.
type Logger struct {
	mu     sync.Mutex
	out    *log.Logger
	level  Level
	prefix []interface{}
}

var root = &Logger{out: log.New(os.Stderr, "", log.LstdFlags), level: LvlInfo}

// Root returns the process-wide default logger.
func Root() *Logger { return root }

// SetLevel adjusts the minimum severity Root() emits.
func SetLevel(l Level) { root.mu.Lock(); root.level = l; root.mu.Unlock() }

// New returns a child logger that always includes ctx in every message.
func (l *Logger) New(ctx ...interface{}) *Logger {
	return &Logger{out: l.out, level: l.level, prefix: append(append([]interface{}{}, l.prefix...), ctx...)}
}

func (l *Logger) log(lvl Level, msg string, ctx []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lvl < l.level {
		return
	}
	all := append(append([]interface{}{}, l.prefix...), ctx...)
	var sb strings.Builder
	sb.WriteString("[" + levelNames[lvl] + "] " + msg)
	for i := 0; i+1 < len(all); i += 2 {
		fmt.Fprintf(&sb, " %v=%v", all[i], all[i+1])
	}
	l.out.Println(sb.String())
}

func (l *Logger) Trace(msg string, ctx ...interface{}) { l.log(LvlTrace, msg, ctx) }
func (l *Logger) Debug(msg string, ctx ...interface{}) { l.log(LvlDebug, msg, ctx) }
func (l *Logger) Info(msg string, ctx ...interface{})  { l.log(LvlInfo, msg, ctx) }
func (l *Logger) Warn(msg string, ctx ...interface{})  { l.log(LvlWarn, msg, ctx) }
func (l *Logger) Error(msg string, ctx ...interface{}) { l.log(LvlError, msg, ctx) }
func (l *Logger) Crit(msg string, ctx ...interface{})  { l.log(LvlCrit, msg, ctx) }

// Package-level convenience wrappers addressing Root() implicitly.
func Trace(msg string, ctx ...interface{}) { root.Trace(msg, ctx...) }
func Debug(msg string, ctx ...interface{}) { root.Debug(msg, ctx...) }
func Info(msg string, ctx ...interface{})  { root.Info(msg, ctx...) }
func Warn(msg string, ctx ...interface{})  { root.Warn(msg, ctx...) }
func Error(msg string, ctx ...interface{}) { root.Error(msg, ctx...) }
func Crit(msg string, ctx ...interface{})  { root.Crit(msg, ctx...) }
