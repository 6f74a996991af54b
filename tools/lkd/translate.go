// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package main

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/google/lkd/pkg/kaddr"
	"github.com/google/lkd/pkg/scenario"
	"github.com/google/lkd/pkg/tool"
)

func cmdTranslate(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("translate", flag.ContinueOnError)
	var base, size, offset tool.Uint64Flag
	size = 64
	fs.Var(&base, "base", "page descriptor table base (vmemmap_base)")
	fs.Var(&size, "size", "descriptor size (sizeof(struct page))")
	fs.Var(&offset, "offset", "linear map base (page_offset_base)")
	shift := fs.Uint("shift", kaddr.DefaultPageShift, "page shift")
	if err := tool.ParseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("want struct page addresses to translate")
	}
	table, err := kaddr.NewTable(uint64(base), uint64(size), uint64(offset), *shift)
	if err != nil {
		return err
	}
	for _, arg := range fs.Args() {
		addr, err := tool.ParseUint64(arg)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%#x -> %#x (page %v)\n", addr, table.Translate(addr), table.Index(addr))
	}
	return nil
}

func cmdStages(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("stages", flag.ContinueOnError)
	if err := tool.ParseFlags(fs, args); err != nil {
		return err
	}
	for _, name := range scenario.Names() {
		sc, err := scenario.Lookup(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%v: %v\n", sc.Name, sc.Description)
		tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
		for _, st := range sc.Stages {
			fmt.Fprintf(tw, "\t%v\t%v\treports %v\n", st.Name, st.Location, strings.Join(st.Reports, ", "))
		}
		tw.Flush()
		fmt.Fprintf(w, "\n")
	}
	return nil
}
