// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslate(t *testing.T) {
	out := new(bytes.Buffer)
	err := cmdTranslate([]string{
		"-base", "0xffffea0000000000",
		"-offset", "0xffff_8880_0000_0000",
		"0xffffea0000129b00", "0xffffea0000000040",
	}, out)
	require.NoError(t, err)
	assert.Equal(t, "0xffffea0000129b00 -> 0xffff888004a6c000 (page 19052)\n"+
		"0xffffea0000000040 -> 0xffff888000001000 (page 1)\n", out.String())

	assert.Error(t, cmdTranslate([]string{"-size", "0", "0x1000"}, out))
	assert.Error(t, cmdTranslate([]string{"-base", "0x1000"}, out))
	assert.Error(t, cmdTranslate([]string{"nonsense"}, out))
}

func TestStages(t *testing.T) {
	out := new(bytes.Buffer)
	require.NoError(t, cmdStages(nil, out))
	assert.Contains(t, out.String(), "dirtypipe: ")
	assert.Contains(t, out.String(), "dirtypipe-ordered: ")
	assert.Regexp(t, `pipe-write\s+fs/pipe.c:597\s+reports 3.1, 3.2, 7`, out.String())
}
