// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/lkd/pkg/debugger/gdbmi"
	"github.com/google/lkd/pkg/lkdconfig"
	"github.com/google/lkd/pkg/log"
	"github.com/google/lkd/pkg/osutil"
	"github.com/google/lkd/pkg/stage"
	"github.com/google/lkd/pkg/stat"
	"github.com/google/lkd/pkg/tool"
	"github.com/google/lkd/pkg/tracer"
	"github.com/prometheus/client_golang/prometheus"
)

func cmdTrace(args []string) error {
	fs := flag.NewFlagSet("trace", flag.ExitOnError)
	flagConfig := fs.String("config", "", "configuration file")
	flagNoPause := fs.Bool("nopause", false, "never wait for the operator, resume immediately")
	if err := tool.ParseFlags(fs, args); err != nil {
		return err
	}
	cfg, err := lkdconfig.LoadFile(*flagConfig)
	if err != nil {
		return err
	}
	if err := cfg.SaveConfig(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	log.EnableLogCaching(1000, 1<<20)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	shutdown := make(chan struct{})
	osutil.HandleInterrupts(shutdown)
	go func() {
		<-shutdown
		cancel()
	}()

	client, err := gdbmi.Start(ctx, gdbConfig(cfg))
	if err != nil {
		return err
	}
	defer client.Close()

	var out io.Writer = os.Stdout
	if file := cfg.ReportsFile(); file != "" {
		f, err := os.Create(file)
		if err != nil {
			return fmt.Errorf("failed to create reports file: %w", err)
		}
		defer f.Close()
		out = io.MultiWriter(os.Stdout, f)
	}
	printer := stage.NewPrinter(out, cfg.KeepReports)
	stats := stat.NewSet(prometheus.DefaultRegisterer)
	opts := tracer.Options{
		ContextExpr:    cfg.ContextExpr,
		HostConditions: cfg.HostConditions,
		PauseOnError:   cfg.PauseOnError,
		Stats:          stats,
	}
	if !*flagNoPause {
		opts.Pauser = tracer.NewLinePauser(os.Stdin, os.Stdout)
	}
	tr, err := tracer.New(client, cfg.ScenarioDesc, cfg.ScenarioParams, printer, opts)
	if err != nil {
		return err
	}
	if cfg.HTTP != "" {
		serv := &tracer.HTTPServer{
			Addr:    cfg.HTTP,
			Name:    cfg.Name,
			Tracer:  tr,
			Printer: printer,
			Stats:   stats,
		}
		go func() {
			if err := serv.Serve(ctx); err != nil {
				log.Errorf("http server failed: %v", err)
			}
		}()
	}
	if err := tr.Run(ctx); err != nil {
		return err
	}
	for _, st := range stats.Collect(stat.Console) {
		log.Logf(0, "%v: %v", st.Name, st.Value)
	}
	return nil
}

func gdbConfig(cfg *lkdconfig.Config) *gdbmi.Config {
	return &gdbmi.Config{
		Binary:       cfg.GDB,
		Vmlinux:      cfg.Vmlinux,
		Remote:       cfg.Remote,
		Scripts:      cfg.Scripts,
		InitCommands: cfg.InitCommands,
		Timeout:      cfg.Timeout,
	}
}
