// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package debugger

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Location is a breakpoint location: a source line (fs/pipe.c:597), a function (pipe_write)
// or a raw instruction address (*0xffffffff813e5c2d).
type Location struct {
	File string
	Line int
	Func string
	Addr uint64
}

var (
	fileLineRe = regexp.MustCompile(`^([A-Za-z0-9_./+-]+):([0-9]+)$`)
	funcRe     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)
)

func ParseLocation(text string) (Location, error) {
	text = strings.TrimSpace(text)
	if addr, ok := strings.CutPrefix(text, "*"); ok {
		val, err := strconv.ParseUint(strings.TrimSpace(addr), 0, 64)
		if err != nil {
			return Location{}, fmt.Errorf("bad address location %q: %w", text, err)
		}
		if val == 0 {
			return Location{}, fmt.Errorf("bad address location %q: zero address", text)
		}
		return Location{Addr: val}, nil
	}
	if m := fileLineRe.FindStringSubmatch(text); m != nil {
		line, err := strconv.Atoi(m[2])
		if err != nil || line <= 0 {
			return Location{}, fmt.Errorf("bad line in location %q", text)
		}
		return Location{File: m[1], Line: line}, nil
	}
	if funcRe.MatchString(text) {
		return Location{Func: text}, nil
	}
	return Location{}, fmt.Errorf("bad location %q: want file:line, function or *address", text)
}

func (loc Location) IsAddress() bool {
	return loc.Addr != 0
}

// String returns the location in the host debugger syntax; it is also the canonical trigger key.
func (loc Location) String() string {
	switch {
	case loc.Addr != 0:
		return fmt.Sprintf("*%#x", loc.Addr)
	case loc.File != "":
		return fmt.Sprintf("%v:%v", loc.File, loc.Line)
	default:
		return loc.Func
	}
}
