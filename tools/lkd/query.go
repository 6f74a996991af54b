// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/lkd/pkg/debugger"
	"github.com/google/lkd/pkg/debugger/gdbmi"
	"github.com/google/lkd/pkg/kstruct"
	"github.com/google/lkd/pkg/lkdconfig"
	"github.com/google/lkd/pkg/log"
	"github.com/google/lkd/pkg/tool"
)

type query func(ctx context.Context, host debugger.Host, cfg *lkdconfig.Config, expr string, w io.Writer) error

// cmdQuery connects to the stopped kernel, answers one question about expr and detaches.
func cmdQuery(q query, args []string) error {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	flagConfig := fs.String("config", "", "configuration file")
	if err := tool.ParseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("want exactly one expression argument")
	}
	cfg, err := lkdconfig.LoadFile(*flagConfig)
	if err != nil {
		return err
	}
	ctx := context.Background()
	client, err := gdbmi.Start(ctx, gdbConfig(cfg))
	if err != nil {
		return err
	}
	defer client.Close()
	qerr := q(ctx, client, cfg, fs.Arg(0), os.Stdout)
	if err := client.Terminate(ctx); err != nil {
		log.Logf(0, "failed to detach: %v", err)
	}
	return qerr
}

func queryPageAddress(ctx context.Context, host debugger.Host, cfg *lkdconfig.Config, expr string, w io.Writer) error {
	addr, err := kstruct.PageAddress(ctx, host, expr, cfg.ScenarioParams.PageShift)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%#x\n", addr)
	return nil
}

func queryPageData(ctx context.Context, host debugger.Host, cfg *lkdconfig.Config, expr string, w io.Writer) error {
	head, tail, err := kstruct.PageData(ctx, host, expr, cfg.ScenarioParams.PageShift, kstruct.PageDataLen)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%v\n", kstruct.FormatPageData(head, tail))
	return nil
}

func queryFileName(ctx context.Context, host debugger.Host, cfg *lkdconfig.Config, expr string, w io.Writer) error {
	name, err := kstruct.FileName(ctx, host, expr)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%v\n", name)
	return nil
}

func queryFilePath(ctx context.Context, host debugger.Host, cfg *lkdconfig.Config, expr string, w io.Writer) error {
	path, err := kstruct.FilePath(ctx, host, expr)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%v\n", path)
	return nil
}
