// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package lkdconfig

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/lkd/pkg/config"
	"github.com/google/lkd/pkg/debugger"
	"github.com/google/lkd/pkg/osutil"
	"github.com/google/lkd/pkg/scenario"
)

func LoadData(data []byte, format config.Format) (*Config, error) {
	cfg, err := LoadPartialData(data, format)
	if err != nil {
		return nil, err
	}
	if err := Complete(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadFile(filename string) (*Config, error) {
	cfg, err := LoadPartialFile(filename)
	if err != nil {
		return nil, err
	}
	if err := Complete(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadPartialData(data []byte, format config.Format) (*Config, error) {
	cfg := defaultValues()
	if err := config.LoadData(data, format, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadPartialFile(filename string) (*Config, error) {
	cfg := defaultValues()
	if err := config.LoadFile(filename, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultValues() *Config {
	return &Config{
		Name:           "lkd",
		GDB:            "gdb",
		Remote:         "localhost:1234",
		CommandTimeout: "1m",
		Scenario:       "dirtypipe",
		ContextExpr:    debugger.DefaultContextExpr,
		PauseOnError:   true,
		KeepReports:    50,
	}
}

func Complete(cfg *Config) error {
	if cfg.Vmlinux == "" {
		return fmt.Errorf("config param vmlinux is empty")
	}
	if err := osutil.IsAccessible(cfg.Vmlinux); err != nil {
		return fmt.Errorf("bad config param vmlinux: %w", err)
	}
	cfg.Vmlinux = osutil.Abs(cfg.Vmlinux)
	for i, script := range cfg.Scripts {
		if err := osutil.IsAccessible(script); err != nil {
			return fmt.Errorf("bad config param scripts: %w", err)
		}
		cfg.Scripts[i] = osutil.Abs(script)
	}
	if cfg.Workdir != "" {
		cfg.Workdir = osutil.Abs(cfg.Workdir)
		if err := osutil.MkdirAll(cfg.Workdir); err != nil {
			return fmt.Errorf("failed to create workdir: %w", err)
		}
	}
	return completeTracing(cfg)
}

// completeTracing checks the parts of the config that do not touch the file system.
func completeTracing(cfg *Config) error {
	if cfg.Remote == "" {
		return fmt.Errorf("config param remote is empty")
	}
	timeout, err := time.ParseDuration(cfg.CommandTimeout)
	if err != nil || timeout <= 0 {
		return fmt.Errorf("bad config param command_timeout: %q", cfg.CommandTimeout)
	}
	cfg.Timeout = timeout
	if cfg.KeepReports < 0 {
		return fmt.Errorf("bad config param keep_reports: %v", cfg.KeepReports)
	}
	sc, err := scenario.Lookup(cfg.Scenario)
	if err != nil {
		return fmt.Errorf("bad config param scenario: %w", err)
	}
	cfg.ScenarioDesc = sc
	cfg.ScenarioParams = sc.Params(&cfg.Params)
	if cfg.ScenarioParams.Context == "" {
		return fmt.Errorf("config param params.context is empty")
	}
	if cfg.ScenarioParams.PageShift >= 64 {
		return fmt.Errorf("bad config param params.page_shift: %v", cfg.ScenarioParams.PageShift)
	}
	for stage, loc := range cfg.ScenarioParams.Locations {
		if _, err := debugger.ParseLocation(loc); err != nil {
			return fmt.Errorf("bad config param params.locations[%v]: %w", stage, err)
		}
	}
	return nil
}

// SaveConfig stores the loaded config in the workdir next to the reports it produces.
func (cfg *Config) SaveConfig() error {
	if cfg.Workdir == "" {
		return nil
	}
	return config.SaveFile(filepath.Join(cfg.Workdir, "lkd.cfg"), cfg)
}

// ReportsFile is where the tracer saves the printed stage reports.
func (cfg *Config) ReportsFile() string {
	if cfg.Workdir == "" {
		return ""
	}
	return filepath.Join(cfg.Workdir, "reports.txt")
}
