// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package debuggertest provides a scripted debugger.Host for tests.
package debuggertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/lkd/pkg/debugger"
)

// Event is one scripted stop. Values are applied to the host before the stop is reported.
type Event struct {
	// Location of the breakpoint to stop at (as passed to InsertBreakpoint, in canonical form).
	Location string
	Values   map[string]string
	Memory   map[uint64][]byte
	// Stop overrides the breakpoint stop (e.g. a signal or an exit).
	Stop *debugger.Stop
}

type Breakpoint struct {
	ID        debugger.BreakpointID
	Location  debugger.Location
	Enabled   bool
	Condition string
}

// Host evaluates expressions from a table and replays scripted events on Continue.
// Once the script is exhausted Continue reports that the debuggee exited.
type Host struct {
	mu          sync.Mutex
	values      map[string]string
	memory      map[uint64][]byte
	breakpoints []*Breakpoint
	script      []Event
	evals       []string
	continues   int
	interrupted int
	terminated  bool
	closed      bool
}

func NewHost() *Host {
	return &Host{
		values: make(map[string]string),
		memory: make(map[uint64][]byte),
	}
}

func (h *Host) Set(expr, value string) *Host {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.values[expr] = value
	return h
}

func (h *Host) Unset(expr string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.values, expr)
}

// SetMemory maps a memory region starting at addr.
func (h *Host) SetMemory(addr uint64, data []byte) *Host {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.memory[addr] = data
	return h
}

func (h *Host) Script(events ...Event) *Host {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.script = append(h.script, events...)
	return h
}

func (h *Host) Evaluate(ctx context.Context, expr string) (debugger.Value, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.evals = append(h.evals, expr)
	val, ok := h.values[expr]
	if !ok {
		return debugger.Value{}, fmt.Errorf("no symbol %q in current context", expr)
	}
	return debugger.Value{Text: val}, nil
}

// Evals returns all evaluated expressions in order.
func (h *Host) Evals() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string{}, h.evals...)
}

func (h *Host) ReadMemory(ctx context.Context, addr uint64, size int) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for base, data := range h.memory {
		if addr >= base && addr+uint64(size) <= base+uint64(len(data)) {
			off := addr - base
			return append([]byte{}, data[off:off+uint64(size)]...), nil
		}
	}
	return nil, fmt.Errorf("cannot access memory at address %#x", addr)
}

func (h *Host) InsertBreakpoint(ctx context.Context, loc debugger.Location) (debugger.BreakpointID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	bp := &Breakpoint{
		ID:       debugger.BreakpointID(len(h.breakpoints) + 1),
		Location: loc,
		Enabled:  true,
	}
	h.breakpoints = append(h.breakpoints, bp)
	return bp.ID, nil
}

func (h *Host) breakpoint(id debugger.BreakpointID) (*Breakpoint, error) {
	if id <= 0 || int(id) > len(h.breakpoints) {
		return nil, fmt.Errorf("no breakpoint number %v", id)
	}
	return h.breakpoints[id-1], nil
}

func (h *Host) EnableBreakpoint(ctx context.Context, id debugger.BreakpointID, enable bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	bp, err := h.breakpoint(id)
	if err != nil {
		return err
	}
	bp.Enabled = enable
	return nil
}

func (h *Host) ConditionBreakpoint(ctx context.Context, id debugger.BreakpointID, cond string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	bp, err := h.breakpoint(id)
	if err != nil {
		return err
	}
	bp.Condition = cond
	return nil
}

// Breakpoints returns copies of the inserted breakpoints.
func (h *Host) Breakpoints() []Breakpoint {
	h.mu.Lock()
	defer h.mu.Unlock()
	var res []Breakpoint
	for _, bp := range h.breakpoints {
		res = append(res, *bp)
	}
	return res
}

// Continue replays the next scripted event. Events at disabled breakpoints are skipped,
// the way the host would not stop there.
func (h *Host) Continue(ctx context.Context) (*debugger.Stop, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.terminated {
		return nil, debugger.ErrTerminated
	}
	h.continues++
	for len(h.script) != 0 {
		ev := h.script[0]
		h.script = h.script[1:]
		for expr, val := range ev.Values {
			h.values[expr] = val
		}
		for addr, data := range ev.Memory {
			h.memory[addr] = data
		}
		if ev.Stop != nil {
			return ev.Stop, nil
		}
		bp := h.findBreakpoint(ev.Location)
		if bp == nil {
			return nil, fmt.Errorf("scripted stop at %v without a breakpoint", ev.Location)
		}
		if !bp.Enabled {
			continue
		}
		return &debugger.Stop{
			Reason:     debugger.StopBreakpoint,
			Breakpoint: bp.ID,
			Frame:      debugger.Frame{File: bp.Location.File, Line: bp.Location.Line, Addr: bp.Location.Addr},
		}, nil
	}
	return &debugger.Stop{Reason: debugger.StopExited}, nil
}

func (h *Host) findBreakpoint(location string) *Breakpoint {
	for _, bp := range h.breakpoints {
		if bp.Location.String() == location {
			return bp
		}
	}
	return nil
}

// Continues returns the number of Continue calls.
func (h *Host) Continues() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.continues
}

func (h *Host) Interrupt(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.interrupted++
	return nil
}

func (h *Host) Terminate(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.terminated = true
	return nil
}

func (h *Host) Terminated() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.terminated
}

func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

var _ debugger.Host = (*Host)(nil)
