// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package lkdconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/lkd/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeVmlinux(t *testing.T) string {
	file := filepath.Join(t.TempDir(), "vmlinux")
	require.NoError(t, os.WriteFile(file, []byte("ELF"), 0644))
	return file
}

func TestLoadJSON(t *testing.T) {
	vmlinux := writeVmlinux(t)
	data := fmt.Sprintf(`{
	# QEMU started with -s.
	"vmlinux": %q,
	"remote": "localhost:1234",
	"http": "localhost:50000",
	"command_timeout": "10s",
	"scenario": "dirtypipe-ordered",
	"params": {
		"context": "exploit",
		"locations": {"splice": "*0xffffffff813e5c2d"}
	}
}`, vmlinux)
	cfg, err := LoadData([]byte(data), config.JSON)
	require.NoError(t, err)
	assert.Equal(t, vmlinux, cfg.Vmlinux)
	assert.Equal(t, "gdb", cfg.GDB)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, "dirtypipe-ordered", cfg.ScenarioDesc.Name)
	assert.Equal(t, "exploit", cfg.ScenarioParams.Context)
	assert.Equal(t, "target_file", cfg.ScenarioParams.TargetFile)
	assert.True(t, cfg.ScenarioParams.Ordered)
	assert.True(t, cfg.ScenarioParams.Terminate)
	assert.Equal(t, uint(12), cfg.ScenarioParams.PageShift)
	assert.Equal(t, "$lx_current().comm", cfg.ContextExpr)
	assert.True(t, cfg.PauseOnError)
	assert.Empty(t, cfg.ReportsFile())
}

func TestLoadYAML(t *testing.T) {
	vmlinux := writeVmlinux(t)
	workdir := filepath.Join(t.TempDir(), "work")
	data := fmt.Sprintf(`
vmlinux: %v
remote: localhost:1235
workdir: %v
host_conditions: true
params:
  target_file: passwd
  stages: [open, splice]
  pause_after: ["5"]
`, vmlinux, workdir)
	cfg, err := LoadData([]byte(data), config.YAML)
	require.NoError(t, err)
	assert.Equal(t, "localhost:1235", cfg.Remote)
	assert.True(t, cfg.HostConditions)
	assert.Equal(t, "dirtypipe", cfg.ScenarioDesc.Name)
	assert.Equal(t, "passwd", cfg.ScenarioParams.TargetFile)
	assert.Equal(t, []string{"open", "splice"}, cfg.ScenarioParams.Stages)
	assert.Equal(t, []string{"5"}, cfg.ScenarioParams.PauseAfter)
	assert.Equal(t, filepath.Join(workdir, "reports.txt"), cfg.ReportsFile())
	assert.DirExists(t, workdir)
}

func TestExplicitOverrides(t *testing.T) {
	vmlinux := writeVmlinux(t)
	data := fmt.Sprintf(`
vmlinux: %v
scenario: dirtypipe-ordered
pause_on_error: false
params:
  ordered: false
  terminate: false
  page_shift: 0
`, vmlinux)
	cfg, err := LoadData([]byte(data), config.YAML)
	require.NoError(t, err)
	assert.False(t, cfg.ScenarioParams.Ordered)
	assert.False(t, cfg.ScenarioParams.Terminate)
	assert.Equal(t, uint(0), cfg.ScenarioParams.PageShift)
	assert.False(t, cfg.PauseOnError)
}

func TestSaveConfig(t *testing.T) {
	vmlinux := writeVmlinux(t)
	workdir := t.TempDir()
	data := fmt.Sprintf(`{
	"vmlinux": %q,
	"workdir": %q,
	"scenario": "dirtypipe-ordered",
	"pause_on_error": false,
	"params": {"terminate": false, "context": "exploit"}
}`, vmlinux, workdir)
	cfg, err := LoadData([]byte(data), config.JSON)
	require.NoError(t, err)
	require.NoError(t, cfg.SaveConfig())
	saved, err := LoadFile(filepath.Join(workdir, "lkd.cfg"))
	require.NoError(t, err)
	assert.Equal(t, cfg.ScenarioParams, saved.ScenarioParams)
	assert.False(t, saved.PauseOnError)
	assert.False(t, saved.ScenarioParams.Terminate)
	assert.Equal(t, "exploit", saved.ScenarioParams.Context)

	cfg.Workdir = ""
	assert.NoError(t, cfg.SaveConfig())
}

func TestLoadFile(t *testing.T) {
	vmlinux := writeVmlinux(t)
	file := filepath.Join(t.TempDir(), "lkd.cfg")
	require.NoError(t, os.WriteFile(file, []byte(fmt.Sprintf(`{"vmlinux": %q}`, vmlinux)), 0644))
	cfg, err := LoadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "localhost:1234", cfg.Remote)
	assert.Equal(t, time.Minute, cfg.Timeout)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.cfg"))
	assert.Error(t, err)
}

func TestLoadErrors(t *testing.T) {
	vmlinux := writeVmlinux(t)
	tests := []struct {
		data string
		err  string
	}{
		{`{}`, "vmlinux is empty"},
		{`{"vmlinux": "/nonexistent/vmlinux"}`, "/nonexistent/vmlinux does not exist"},
		{fmt.Sprintf(`{"vmlinux": %q, "foo": 1}`, vmlinux), "unknown field"},
		{fmt.Sprintf(`{"vmlinux": %q, "remote": ""}`, vmlinux), "remote is empty"},
		{fmt.Sprintf(`{"vmlinux": %q, "command_timeout": "soon"}`, vmlinux), "command_timeout"},
		{fmt.Sprintf(`{"vmlinux": %q, "command_timeout": "-1s"}`, vmlinux), "command_timeout"},
		{fmt.Sprintf(`{"vmlinux": %q, "scenario": "nosuch"}`, vmlinux), "unknown scenario"},
		{fmt.Sprintf(`{"vmlinux": %q, "keep_reports": -1}`, vmlinux), "keep_reports"},
		{fmt.Sprintf(`{"vmlinux": %q, "params": {"page_shift": 64}}`, vmlinux), "page_shift"},
		{fmt.Sprintf(`{"vmlinux": %q, "params": {"locations": {"open": "fs/open.c"}}}`, vmlinux),
			"params.locations[open]"},
		{fmt.Sprintf(`{"vmlinux": %q, "scripts": ["/nonexistent/vmlinux-gdb.py"]}`, vmlinux), "scripts"},
	}
	for i, test := range tests {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			_, err := LoadData([]byte(test.data), config.JSON)
			assert.ErrorContains(t, err, test.err)
		})
	}
}
