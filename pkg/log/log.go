// Copyright 2016 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package log provides functionality similar to standard log package with some extensions:
//   - verbosity levels shared by all packages of the tool
//   - ability to cache recent output in memory (served on the tracer status page)
package log

import (
	"bytes"
	"flag"
	"fmt"
	golog "log"
	"sync"
	"sync/atomic"
	"time"
)

var (
	flagV       = flag.Int("vv", 0, "verbosity")
	verbosity   atomic.Int64
	prependTime = true // for testing

	mu    sync.Mutex
	cache *ring
)

type ring struct {
	entries []string
	pos     int
	mem     int
	maxMem  int
}

// SetVerbosity overrides the -vv flag (used when verbosity comes from a config file).
func SetVerbosity(v int) {
	verbosity.Store(int64(v))
}

func level() int {
	if v := int(verbosity.Load()); v != 0 {
		return v
	}
	return *flagV
}

// V reports whether messages at the given verbosity are printed.
func V(v int) bool {
	return v <= level()
}

// EnableLogCaching enables in memory caching of log output.
// Caches up to maxLines, but no more than maxMem bytes.
// Cached output can later be queried with CachedLogOutput.
func EnableLogCaching(maxLines, maxMem int) {
	mu.Lock()
	defer mu.Unlock()
	if cache != nil {
		Fatalf("log caching is already enabled")
	}
	if maxLines < 1 || maxMem < 1 {
		panic("invalid maxLines/maxMem")
	}
	cache = &ring{
		entries: make([]string, maxLines),
		maxMem:  maxMem,
	}
}

// CachedLogOutput returns cached log output, oldest line first.
func CachedLogOutput() string {
	mu.Lock()
	defer mu.Unlock()
	if cache == nil {
		return ""
	}
	buf := new(bytes.Buffer)
	for i := range cache.entries {
		pos := (cache.pos + i) % len(cache.entries)
		if cache.entries[pos] == "" {
			continue
		}
		buf.WriteString(cache.entries[pos])
		buf.WriteByte('\n')
	}
	return buf.String()
}

func (r *ring) add(line string) {
	r.mem -= len(r.entries[r.pos])
	r.entries[r.pos] = line
	r.mem += len(line)
	r.pos = (r.pos + 1) % len(r.entries)
	for i := 0; i < len(r.entries)-1 && r.mem > r.maxMem; i++ {
		pos := (r.pos + i) % len(r.entries)
		r.mem -= len(r.entries[pos])
		r.entries[pos] = ""
	}
	if r.mem < 0 {
		panic("log cache size underflow")
	}
}

func Logf(v int, msg string, args ...any) {
	mu.Lock()
	if cache != nil && v <= 1 {
		timeStr := ""
		if prependTime {
			timeStr = time.Now().Format("2006/01/02 15:04:05 ")
		}
		cache.add(timeStr + fmt.Sprintf(msg, args...))
	}
	mu.Unlock()

	if V(v) {
		golog.Printf(msg, args...)
	}
}

// Errorf logs at the highest priority and marks the line as an error.
func Errorf(msg string, args ...any) {
	Logf(0, "ERROR: "+msg, args...)
}

func Fatalf(msg string, args ...any) {
	golog.Fatalf(msg, args...)
}
