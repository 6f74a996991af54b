// Copyright 2020 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package tool

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/lkd/pkg/log"
)

// ParseFlags parses subcommand flags. Every subcommand accepts -vv like the main flag set does.
func ParseFlags(set *flag.FlagSet, args []string) error {
	verbosity := set.Int("vv", 0, "verbosity")
	if err := set.Parse(args); err != nil {
		return err
	}
	if *verbosity != 0 {
		log.SetVerbosity(*verbosity)
	}
	return nil
}

// Uint64Flag is a flag holding a kernel address or size.
// It accepts decimal, 0x-prefixed hex and values with ` or _ group separators (0xffff8880_00000000).
type Uint64Flag uint64

func (v *Uint64Flag) String() string {
	return fmt.Sprintf("%#x", uint64(*v))
}

func (v *Uint64Flag) Set(value string) error {
	res, err := ParseUint64(value)
	if err != nil {
		return err
	}
	*v = Uint64Flag(res)
	return nil
}

func ParseUint64(value string) (uint64, error) {
	value = strings.NewReplacer("`", "", "_", "").Replace(strings.TrimSpace(value))
	res, err := strconv.ParseUint(value, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("bad number %q: %w", value, err)
	}
	return res, nil
}
