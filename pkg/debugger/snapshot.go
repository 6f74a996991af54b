// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package debugger

import (
	"context"
	"fmt"
)

// DefaultContextExpr evaluates to the comm of the task running on the current CPU.
// $lx_current is provided by the kernel's scripts/gdb helpers (vmlinux-gdb.py).
const DefaultContextExpr = "$lx_current().comm"

// CommSnapshot is the execution context of one stop. The context name is evaluated on first use
// and remembered, so several triggers at the same location cost one host round trip.
type CommSnapshot struct {
	ctx  context.Context
	host Host
	expr string
	done bool
	name string
	err  error
}

func NewCommSnapshot(ctx context.Context, host Host, expr string) *CommSnapshot {
	if expr == "" {
		expr = DefaultContextExpr
	}
	return &CommSnapshot{
		ctx:  ctx,
		host: host,
		expr: expr,
	}
}

func (s *CommSnapshot) ContextName() (string, error) {
	if !s.done {
		s.done = true
		val, err := s.host.Evaluate(s.ctx, s.expr)
		if err == nil {
			s.name, err = val.CString()
		}
		if err != nil {
			s.err = fmt.Errorf("failed to evaluate %v: %w", s.expr, err)
		}
	}
	return s.name, s.err
}

// ContextCondition returns a host breakpoint condition that holds only in the given context.
func ContextCondition(expr, name string) string {
	if expr == "" {
		expr = DefaultContextExpr
	}
	return fmt.Sprintf("$_streq(%v, %v)", expr, Quote(name))
}
