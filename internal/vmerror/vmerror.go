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

// Package vmerror implements the typed error model: the taxonomy of raise
// kinds, the value a protected call receives, and the positioned message
// text an uncaught error is reported with. No per-frame Lua traceback is
// built; the Traceback field holds the Go call stack captured by Fatal.
// The interpreter raises an *Error
// via panic and unwinds to the nearest recover() installed by a protected
// call, resume, or the top-level entry point — the Go analogue of the
// reference implementation's longjmp-to-catcher mechanism.
package vmerror

import (
	"fmt"

	"github.com/go-stack/stack"

	"github.com/luavm/luavm/internal/value"
)

// Kind identifies why an error was raised.
type Kind int

const (
	MissingArg Kind = iota
	BadType
	BadValueWithMessage
	RawMessage
	RawMessageNoPosition
	RuntimeArithmetic
	LoaderFormat
	Internal
)

func (k Kind) String() string {
	switch k {
	case MissingArg:
		return "missing_arg"
	case BadType:
		return "bad_type"
	case BadValueWithMessage:
		return "bad_value_with_message"
	case RawMessage:
		return "raw_message"
	case RawMessageNoPosition:
		return "raw_message_no_position"
	case RuntimeArithmetic:
		return "runtime_arithmetic"
	case LoaderFormat:
		return "loader_format"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the payload carried by a raise. Text is the fully formatted,
// human-readable message (including any file:line prefix); Value is what a
// protected call (pcall/xpcall) actually receives as its error result —
// ordinarily a boxed string of Text, but script code can raise any value via
// error(), in which case Value is that value verbatim and Text is only used
// for the uncaught top-level report.
type Error struct {
	Kind      Kind
	Value     value.Value
	Text      string
	Traceback string
}

func (e *Error) Error() string { return e.Text }

// Catchable reports whether a protected call may recover this error.
// Internal (fatal) errors must propagate past every catcher.
func (e *Error) Catchable() bool { return e.Kind != Internal }

// New constructs a raw *Error. Most call sites use one of the typed
// constructors below instead.
func New(kind Kind, text string, payload value.Value) *Error {
	return &Error{Kind: kind, Text: text, Value: payload}
}

// MissingArg builds the "bad argument #n to 'fn' (T expected, got no value)"
// message, positioned by the caller.
func MissingArg(pos string, n int, fn, expected string) *Error {
	text := fmt.Sprintf("%sbad argument #%d to '%s' (%s expected, got no value)", prefix(pos), n, fn, expected)
	return &Error{Kind: MissingArg, Text: text}
}

// BadType builds the "bad argument #n to 'fn' (T expected, got U)" message.
func BadType(pos string, n int, fn, expected, got string) *Error {
	text := fmt.Sprintf("%sbad argument #%d to '%s' (%s expected, got %s)", prefix(pos), n, fn, expected, got)
	return &Error{Kind: BadType, Text: text}
}

// BadValue builds the "bad argument #n to 'fn' (msg)" message.
func BadValue(pos string, n int, fn, msg string) *Error {
	text := fmt.Sprintf("%sbad argument #%d to '%s' (%s)", prefix(pos), n, fn, msg)
	return &Error{Kind: BadValueWithMessage, Text: text}
}

// Raw builds a positioned raw-message error — what error(msg) produces for a
// string msg at level 1.
func Raw(pos, msg string) *Error {
	return &Error{Kind: RawMessage, Text: prefix(pos) + msg}
}

// RawNoPosition builds an error whose message is used verbatim, with no
// source-position prefix — what error(msg, 0) produces, or what a raised
// non-string value's display text is.
func RawNoPosition(msg string) *Error {
	return &Error{Kind: RawMessageNoPosition, Text: msg}
}

// Arithmetic builds a runtime arithmetic-coercion failure, e.g. attempting
// to add a table to a number.
func Arithmetic(pos, msg string) *Error {
	return &Error{Kind: RuntimeArithmetic, Text: prefix(pos) + msg}
}

// LoaderError builds a chunk-loader validation failure. The script never
// starts running.
func LoaderError(format string, args ...interface{}) *Error {
	return &Error{Kind: LoaderFormat, Text: fmt.Sprintf(format, args...)}
}

// Fatal builds an internal, uncatchable error: allocation failure, GC
// reentrancy, a malformed-bytecode assertion, or any other condition the
// design mandates must not be visible to pcall/xpcall. The Go-side call
// stack is captured here, skipping this frame, since Internal errors are
// the ones most likely to be reported by a human rather than a script.
func Fatal(format string, args ...interface{}) *Error {
	return &Error{
		Kind:      Internal,
		Text:      fmt.Sprintf(format, args...),
		Traceback: fmt.Sprintf("%+v", stack.Trace().TrimBelow(stack.Caller(1))),
	}
}

func prefix(pos string) string {
	if pos == "" {
		return ""
	}
	return pos + ": "
}

// ErrorInError is the literal payload a recursive error inside an xpcall
// message handler must yield, per policy §7.
const ErrorInError = "error in error handling"
