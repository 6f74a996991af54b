// Copyright 2017 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package osutil

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAccessible(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	assert.Error(t, IsAccessible(file))
	require.NoError(t, WriteFile(file, []byte("data")))
	assert.NoError(t, IsAccessible(file))
	assert.True(t, IsExist(file))
}

func TestProcessError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}
	cmd := Command("/bin/sh", "-c", "exit 3")
	err := ProcessError(cmd, cmd.Run(), []byte("some output"))
	var verr *VerboseError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, 3, verr.ExitCode)
	assert.Contains(t, verr.Error(), "some output")
	assert.NoError(t, ProcessError(exec.Command("true"), nil, nil))
}

func TestAbs(t *testing.T) {
	assert.Equal(t, "", Abs(""))
	assert.Equal(t, "/boot/vmlinux", Abs("/boot/vmlinux"))
	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "vmlinux"), Abs("vmlinux"))
}
