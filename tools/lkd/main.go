// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// lkd traces a kernel exploitation technique stage by stage through gdb attached to the kernel.
//
//	lkd trace -config lkd.cfg
//	lkd translate -base 0xffffea0000000000 -size 64 -offset 0xffff888000000000 0xffffea0000129b00
//	lkd page-address -config lkd.cfg 'pipe->bufs[0].page'
//	lkd stages
package main

import (
	"fmt"
	"os"

	"github.com/google/lkd/pkg/tool"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	var err error
	args := os.Args[2:]
	switch os.Args[1] {
	case "trace":
		err = cmdTrace(args)
	case "translate":
		err = cmdTranslate(args, os.Stdout)
	case "page-address":
		err = cmdQuery(queryPageAddress, args)
	case "page-data":
		err = cmdQuery(queryPageData, args)
	case "file-name":
		err = cmdQuery(queryFileName, args)
	case "file-path":
		err = cmdQuery(queryFilePath, args)
	case "stages":
		err = cmdStages(args, os.Stdout)
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %v\n", os.Args[1])
		usage()
		os.Exit(1)
	}
	if err != nil {
		tool.Fail(err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: lkd command [flags] [args]

commands:
  trace -config lkd.cfg                  trace the configured scenario
  translate -base -size -offset ADDR     translate a struct page address to its linear-map address
  page-address -config lkd.cfg EXPR      linear-map address of the page EXPR points to
  page-data -config lkd.cfg EXPR         first and last bytes of the page EXPR points to
  file-name -config lkd.cfg EXPR         name of the struct file EXPR points to
  file-path -config lkd.cfg EXPR         path of the struct file EXPR points to
  stages                                 list built-in scenarios
`)
}
