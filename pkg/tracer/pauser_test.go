// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package tracer

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLinePauser(t *testing.T) {
	out := new(bytes.Buffer)
	p := NewLinePauser(strings.NewReader("\n"), out)
	assert.NoError(t, p.Pause(context.Background(), "stage report at fs/pipe.c:597"))
	assert.Equal(t, "paused: stage report at fs/pipe.c:597\npress Enter to continue\n", out.String())
	assert.Error(t, p.Pause(context.Background(), "again"))
	assert.Error(t, p.Pause(context.Background(), "and again"))
}

func TestLinePauserCancel(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	p := NewLinePauser(r, io.Discard)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Pause(ctx, "waiting"), context.DeadlineExceeded)
}
