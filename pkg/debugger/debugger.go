// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package debugger defines the primitives lkd consumes from a host debugger attached to a kernel:
// expression evaluation, memory reads, breakpoints and execution control.
// The host owns the breakpoint engine, symbol resolution and memory access; lkd only drives it.
package debugger

import (
	"context"
	"errors"
	"fmt"
)

type BreakpointID int

type Host interface {
	// Evaluate resolves an expression in the context of the current stop.
	Evaluate(ctx context.Context, expr string) (Value, error)
	ReadMemory(ctx context.Context, addr uint64, size int) ([]byte, error)
	InsertBreakpoint(ctx context.Context, loc Location) (BreakpointID, error)
	EnableBreakpoint(ctx context.Context, id BreakpointID, enable bool) error
	// ConditionBreakpoint makes the host stop at the breakpoint only if cond is true.
	// An empty cond removes the condition.
	ConditionBreakpoint(ctx context.Context, id BreakpointID, cond string) error
	// Continue resumes the debuggee and blocks until the next stop.
	Continue(ctx context.Context) (*Stop, error)
	// Interrupt stops a running debuggee; the pending Continue returns a signal stop.
	Interrupt(ctx context.Context) error
	// Terminate ends the debugging session (detaches from the target and exits the host).
	Terminate(ctx context.Context) error
	Close() error
}

type StopReason int

const (
	StopBreakpoint StopReason = iota
	StopSignal
	StopExited
	StopOther
)

func (r StopReason) String() string {
	switch r {
	case StopBreakpoint:
		return "breakpoint-hit"
	case StopSignal:
		return "signal-received"
	case StopExited:
		return "exited"
	default:
		return "other"
	}
}

type Frame struct {
	Addr uint64
	Func string
	File string
	Line int
}

func (f Frame) String() string {
	if f.File != "" {
		return fmt.Sprintf("%v (%v:%v) at %#x", f.Func, f.File, f.Line, f.Addr)
	}
	return fmt.Sprintf("%v at %#x", f.Func, f.Addr)
}

type Stop struct {
	Reason     StopReason
	Breakpoint BreakpointID
	Signal     string
	Frame      Frame
	ExitCode   int
}

var ErrTerminated = errors.New("debugging session is terminated")

// EvaluateUint64 evaluates expr and interprets the result as an integer or a pointer.
func EvaluateUint64(ctx context.Context, host Host, expr string) (uint64, error) {
	val, err := host.Evaluate(ctx, expr)
	if err != nil {
		return 0, err
	}
	return val.Uint64()
}

// Evaluator adapts a Host to the narrower interfaces used by the rest of the tool.
type Evaluator struct {
	Host Host
}

func (ev Evaluator) EvaluateUint64(ctx context.Context, expr string) (uint64, error) {
	return EvaluateUint64(ctx, ev.Host, expr)
}
