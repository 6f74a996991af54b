// Copyright 2020 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package tool

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUint64(t *testing.T) {
	tests := []struct {
		in  string
		out uint64
		err bool
	}{
		{"0", 0, false},
		{"4096", 4096, false},
		{"0x1000", 0x1000, false},
		{"0xffff8880_00000000", 0xffff888000000000, false},
		{"0xffff8880`00000000", 0xffff888000000000, false},
		{" 64 ", 64, false},
		{"-1", 0, true},
		{"page", 0, true},
	}
	for _, test := range tests {
		got, err := ParseUint64(test.in)
		if test.err {
			assert.Error(t, err, test.in)
			continue
		}
		require.NoError(t, err, test.in)
		assert.Equal(t, test.out, got, test.in)
	}
}

func TestUint64Flag(t *testing.T) {
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	var base Uint64Flag
	set.Var(&base, "base", "table base")
	require.NoError(t, ParseFlags(set, []string{"-base", "0xffffea0000000000", "arg"}))
	assert.Equal(t, Uint64Flag(0xffffea0000000000), base)
	assert.Equal(t, "0xffffea0000000000", base.String())
	assert.Equal(t, []string{"arg"}, set.Args())
}
