// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package gdbmi

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/lkd/pkg/debugger"
	"github.com/google/lkd/pkg/log"
	"github.com/google/lkd/pkg/osutil"
)

var _ debugger.Host = (*Client)(nil)

func quote(s string) string {
	return debugger.Quote(s)
}

func (c *Client) Evaluate(ctx context.Context, expr string) (debugger.Value, error) {
	rec, err := c.Exec(ctx, "-data-evaluate-expression "+quote(expr))
	if err != nil {
		return debugger.Value{}, err
	}
	return debugger.Value{Text: rec.Results.String("value")}, nil
}

func (c *Client) ReadMemory(ctx context.Context, addr uint64, size int) ([]byte, error) {
	rec, err := c.Exec(ctx, fmt.Sprintf("-data-read-memory-bytes %#x %v", addr, size))
	if err != nil {
		return nil, err
	}
	var data []byte
	for _, item := range rec.Results.List("memory") {
		block, ok := item.(Tuple)
		if !ok {
			return nil, fmt.Errorf("unexpected memory block %v", item)
		}
		chunk, err := hex.DecodeString(block.String("contents"))
		if err != nil {
			return nil, fmt.Errorf("bad memory contents at %v: %w", block.String("begin"), err)
		}
		data = append(data, chunk...)
	}
	if len(data) != size {
		return nil, fmt.Errorf("read %v bytes at %#x, want %v", len(data), addr, size)
	}
	return data, nil
}

func (c *Client) InsertBreakpoint(ctx context.Context, loc debugger.Location) (debugger.BreakpointID, error) {
	rec, err := c.Exec(ctx, "-break-insert "+loc.String())
	if err != nil {
		return 0, err
	}
	bkpt := rec.Results.Tuple("bkpt")
	id, err := strconv.Atoi(bkpt.String("number"))
	if err != nil {
		return 0, fmt.Errorf("bad breakpoint number for %v: %q", loc, bkpt.String("number"))
	}
	log.Logf(1, "breakpoint %v at %v (%v)", id, loc, bkpt.String("addr"))
	return debugger.BreakpointID(id), nil
}

func (c *Client) EnableBreakpoint(ctx context.Context, id debugger.BreakpointID, enable bool) error {
	cmd := "-break-disable"
	if enable {
		cmd = "-break-enable"
	}
	_, err := c.Exec(ctx, fmt.Sprintf("%v %v", cmd, id))
	return err
}

func (c *Client) ConditionBreakpoint(ctx context.Context, id debugger.BreakpointID, cond string) error {
	_, err := c.Exec(ctx, strings.TrimSpace(fmt.Sprintf("-break-condition %v %v", id, cond)))
	return err
}

func (c *Client) Continue(ctx context.Context) (*debugger.Stop, error) {
	c.drainStops()
	if _, err := c.Exec(ctx, "-exec-continue"); err != nil {
		return nil, err
	}
	rec, err := c.waitStop(ctx)
	if err != nil {
		return nil, err
	}
	return parseStop(rec)
}

func (c *Client) Interrupt(ctx context.Context) error {
	_, err := c.Exec(ctx, "-exec-interrupt")
	if err != nil && c.cmd != nil {
		log.Logf(1, "-exec-interrupt failed (%v), sending SIGINT to gdb", err)
		return osutil.Interrupt(c.cmd)
	}
	return err
}

// Terminate detaches from the target (the kernel keeps running) and exits gdb.
func (c *Client) Terminate(ctx context.Context) error {
	if _, err := c.Exec(ctx, "-target-detach"); err != nil {
		log.Logf(1, "failed to detach: %v", err)
	}
	c.writeMu.Lock()
	fmt.Fprintf(c.stdin, "-gdb-exit\n")
	c.writeMu.Unlock()
	select {
	case <-c.done:
	case <-time.After(10 * time.Second):
		return c.Close()
	}
	return nil
}

func parseStop(rec *Record) (*debugger.Stop, error) {
	stop := &debugger.Stop{
		Frame: parseFrame(rec.Results.Tuple("frame")),
	}
	switch reason := rec.Results.String("reason"); reason {
	case "breakpoint-hit":
		stop.Reason = debugger.StopBreakpoint
		id, err := strconv.Atoi(rec.Results.String("bkptno"))
		if err != nil {
			return nil, fmt.Errorf("bad breakpoint number in stop record: %q", rec.Results.String("bkptno"))
		}
		stop.Breakpoint = debugger.BreakpointID(id)
	case "signal-received":
		stop.Reason = debugger.StopSignal
		stop.Signal = rec.Results.String("signal-name")
	case "exited", "exited-normally", "exited-signalled":
		stop.Reason = debugger.StopExited
		if code := rec.Results.String("exit-code"); code != "" {
			// gdb prints the exit code in octal.
			n, err := strconv.ParseInt(code, 8, 32)
			if err != nil {
				return nil, fmt.Errorf("bad exit code %q", code)
			}
			stop.ExitCode = int(n)
		}
	default:
		stop.Reason = debugger.StopOther
	}
	return stop, nil
}

func parseFrame(frame Tuple) debugger.Frame {
	f := debugger.Frame{
		Func: frame.String("func"),
		File: frame.String("file"),
	}
	f.Addr, _ = strconv.ParseUint(frame.String("addr"), 0, 64)
	f.Line, _ = strconv.Atoi(frame.String("line"))
	return f
}
