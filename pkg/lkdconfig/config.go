// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package lkdconfig

import (
	"time"

	"github.com/google/lkd/pkg/scenario"
)

type Config struct {
	// Instance name (used for identification and as the status page title).
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// TCP address to serve the status page on (e.g. "localhost:50000"), empty disables it.
	HTTP string `json:"http,omitempty" yaml:"http,omitempty"`
	// Working directory for the run log and saved reports.
	Workdir string `json:"workdir,omitempty" yaml:"workdir,omitempty"`

	// Path to the gdb binary.
	GDB string `json:"gdb,omitempty" yaml:"gdb,omitempty"`
	// Kernel image with debug info.
	Vmlinux string `json:"vmlinux" yaml:"vmlinux"`
	// Remote gdb target, e.g. QEMU started with "-s" listens on "localhost:1234".
	Remote string `json:"remote" yaml:"remote"`
	// Scripts to source into gdb before connecting (scripts/gdb/vmlinux-gdb.py provides $lx_current).
	Scripts []string `json:"scripts,omitempty" yaml:"scripts,omitempty"`
	// Additional gdb console commands executed after connecting.
	InitCommands []string `json:"init_commands,omitempty" yaml:"init_commands,omitempty"`
	// Timeout for a single gdb command (e.g. "30s").
	CommandTimeout string `json:"command_timeout,omitempty" yaml:"command_timeout,omitempty"`

	// Scenario to trace (see "lkd stages").
	Scenario string `json:"scenario" yaml:"scenario"`
	// Scenario parameters overriding the scenario defaults.
	Params scenario.Overrides `json:"params,omitempty" yaml:"params,omitempty"`
	// Expression evaluating to the comm of the current task.
	ContextExpr string `json:"context_expr,omitempty" yaml:"context_expr,omitempty"`
	// Push the context check to gdb as breakpoint conditions so that gdb
	// does not report stops in foreign tasks at all.
	HostConditions bool `json:"host_conditions,omitempty" yaml:"host_conditions,omitempty"`
	// Pause the debuggee after hook errors and wait for the operator.
	// If false, the run ends with the error instead.
	PauseOnError bool `json:"pause_on_error" yaml:"pause_on_error"`
	// Number of recent stage reports kept for the status page.
	KeepReports int `json:"keep_reports,omitempty" yaml:"keep_reports,omitempty"`

	// Implementation details beyond this point. Filled after parsing.
	Timeout        time.Duration      `json:"-" yaml:"-"`
	ScenarioDesc   *scenario.Scenario `json:"-" yaml:"-"`
	ScenarioParams *scenario.Params   `json:"-" yaml:"-"`
}
