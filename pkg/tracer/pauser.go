// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package tracer

import (
	"bufio"
	"context"
	"fmt"
	"io"
)

// Pauser blocks while the debuggee is paused for operator inspection.
type Pauser interface {
	Pause(ctx context.Context, reason string) error
}

// LinePauser prints the pause reason and waits for a line (Enter) on the input.
type LinePauser struct {
	out   io.Writer
	lines chan error
}

func NewLinePauser(in io.Reader, out io.Writer) *LinePauser {
	p := &LinePauser{
		out:   out,
		lines: make(chan error),
	}
	go func() {
		r := bufio.NewReader(in)
		for {
			_, err := r.ReadString('\n')
			p.lines <- err
			if err != nil {
				close(p.lines)
				return
			}
		}
	}()
	return p
}

func (p *LinePauser) Pause(ctx context.Context, reason string) error {
	fmt.Fprintf(p.out, "paused: %v\npress Enter to continue\n", reason)
	select {
	case err, ok := <-p.lines:
		if !ok || err != nil {
			return fmt.Errorf("operator input is closed")
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PauserFunc adapts a function to Pauser.
type PauserFunc func(ctx context.Context, reason string) error

func (f PauserFunc) Pause(ctx context.Context, reason string) error {
	return f(ctx, reason)
}
