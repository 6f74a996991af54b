// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package gdbmi

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/lkd/pkg/debugger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGDB answers MI commands with canned output lines.
// The handler gets the command without its token and returns lines to print;
// "^" at the start of a line is prefixed with the command token.
type fakeGDB struct {
	mu       sync.Mutex
	commands []string
	handler  func(cmd string) []string
}

func (f *fakeGDB) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.commands...)
}

func startFake(t *testing.T, handler func(cmd string) []string) (*Client, *fakeGDB) {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	fake := &fakeGDB{handler: handler}
	c := newClient(&Config{Timeout: 10 * time.Second}, inW)
	c.run(outR, nil, new(tailWriter), func() error { return nil })
	go func() {
		defer outW.Close()
		s := bufio.NewScanner(inR)
		for s.Scan() {
			line := s.Text()
			pos := 0
			for pos < len(line) && line[pos] >= '0' && line[pos] <= '9' {
				pos++
			}
			token, cmd := line[:pos], line[pos:]
			fake.mu.Lock()
			fake.commands = append(fake.commands, cmd)
			fake.mu.Unlock()
			if cmd == "-gdb-exit" {
				fmt.Fprintf(outW, "%v^exit\n", token)
				return
			}
			for _, out := range fake.handler(cmd) {
				if strings.HasPrefix(out, "^") {
					out = token + out
				}
				fmt.Fprintf(outW, "%v\n", out)
			}
			fmt.Fprintf(outW, "(gdb) \n")
		}
	}()
	t.Cleanup(func() { c.Close() })
	return c, fake
}

const stopAtOpen = `*stopped,reason="breakpoint-hit",disp="keep",bkptno="1",` +
	`frame={addr="0xffffffff813e5c2d",func="do_sys_openat2",args=[],` +
	`file="fs/open.c",fullname="/src/fs/open.c",line="1220"},thread-id="1",stopped-threads="all"`

func TestExec(t *testing.T) {
	c, fake := startFake(t, func(cmd string) []string {
		switch cmd {
		case `-data-evaluate-expression "$lx_current().comm"`:
			return []string{`~"console noise\n"`, `^done,value="\"poc\\000\\000\""`}
		case `-data-evaluate-expression "sizeof(struct page)"`:
			return []string{`^done,value="64"`}
		default:
			return []string{`^error,msg="Undefined MI command"`}
		}
	})
	ctx := context.Background()
	val, err := c.Evaluate(ctx, "$lx_current().comm")
	require.NoError(t, err)
	comm, err := val.CString()
	require.NoError(t, err)
	assert.Equal(t, "poc", comm)

	size, err := debugger.EvaluateUint64(ctx, c, "sizeof(struct page)")
	require.NoError(t, err)
	assert.Equal(t, uint64(64), size)

	_, err = c.Exec(ctx, "-foo")
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, "-foo", cmdErr.Command)
	assert.Equal(t, "Undefined MI command", cmdErr.Msg)

	assert.Equal(t, []string{
		`-data-evaluate-expression "$lx_current().comm"`,
		`-data-evaluate-expression "sizeof(struct page)"`,
		`-foo`,
	}, fake.Commands())
}

func TestConcurrentExec(t *testing.T) {
	c, _ := startFake(t, func(cmd string) []string {
		expr := strings.TrimPrefix(cmd, "-data-evaluate-expression ")
		return []string{fmt.Sprintf(`^done,value=%v`, expr)}
	})
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			val, err := c.Evaluate(context.Background(), fmt.Sprint(i))
			if assert.NoError(t, err) {
				assert.Equal(t, fmt.Sprint(i), val.Text)
			}
		}()
	}
	wg.Wait()
}

func TestSetup(t *testing.T) {
	c, fake := startFake(t, func(cmd string) []string {
		if strings.HasPrefix(cmd, "-target-select") {
			return []string{`*stopped,frame={addr="0xffffffff81000000",func="default_idle"}`, `^connected`}
		}
		return []string{`^done`}
	})
	c.cfg.Remote = "localhost:1234"
	c.cfg.Scripts = []string{"vmlinux-gdb.py"}
	c.cfg.InitCommands = []string{"lx-symbols"}
	require.NoError(t, c.setup(context.Background()))
	assert.Equal(t, []string{
		"-gdb-set pagination off",
		"-gdb-set confirm off",
		"-gdb-set width 0",
		"-gdb-set mi-async on",
		"-gdb-set print repeats unlimited",
		"-gdb-set print elements unlimited",
		"-gdb-set print null-stop on",
		`-interpreter-exec console "source vmlinux-gdb.py"`,
		"-target-select remote localhost:1234",
		`-interpreter-exec console "lx-symbols"`,
	}, fake.Commands())
}

func TestBreakpoints(t *testing.T) {
	c, fake := startFake(t, func(cmd string) []string {
		if strings.HasPrefix(cmd, "-break-insert") {
			return []string{`^done,bkpt={number="3",type="breakpoint",addr="0xffffffff813e5c2d",file="fs/open.c",line="1220"}`}
		}
		return []string{`^done`}
	})
	ctx := context.Background()
	id, err := c.InsertBreakpoint(ctx, debugger.Location{File: "fs/open.c", Line: 1220})
	require.NoError(t, err)
	assert.Equal(t, debugger.BreakpointID(3), id)
	require.NoError(t, c.EnableBreakpoint(ctx, id, false))
	require.NoError(t, c.EnableBreakpoint(ctx, id, true))
	require.NoError(t, c.ConditionBreakpoint(ctx, id, `$_streq($lx_current().comm, "poc")`))
	require.NoError(t, c.ConditionBreakpoint(ctx, id, ""))
	assert.Equal(t, []string{
		"-break-insert fs/open.c:1220",
		"-break-disable 3",
		"-break-enable 3",
		`-break-condition 3 $_streq($lx_current().comm, "poc")`,
		"-break-condition 3",
	}, fake.Commands())
}

func TestReadMemory(t *testing.T) {
	c, _ := startFake(t, func(cmd string) []string {
		switch cmd {
		case "-data-read-memory-bytes 0xffff888004a6c000 6":
			return []string{`^done,memory=[{begin="0xffff888004a6c000",offset="0x0",end="0xffff888004a6c004",contents="41414141"},` +
				`{begin="0xffff888004a6c004",offset="0x0",end="0xffff888004a6c006",contents="0a00"}]`}
		case "-data-read-memory-bytes 0x10 4":
			return []string{`^done,memory=[{begin="0x10",offset="0x0",end="0x12",contents="0000"}]`}
		default:
			return []string{`^error,msg="Cannot access memory at address 0x0"`}
		}
	})
	ctx := context.Background()
	data, err := c.ReadMemory(ctx, 0xffff888004a6c000, 6)
	require.NoError(t, err)
	assert.Equal(t, []byte("AAAA\n\x00"), data)

	_, err = c.ReadMemory(ctx, 0x10, 4)
	assert.ErrorContains(t, err, "read 2 bytes")

	_, err = c.ReadMemory(ctx, 0, 4)
	assert.ErrorContains(t, err, "Cannot access memory")
}

func TestContinue(t *testing.T) {
	c, _ := startFake(t, func(cmd string) []string {
		switch cmd {
		case "-exec-continue":
			return []string{`^running`, `*running,thread-id="all"`, stopAtOpen}
		case "-stale":
			return []string{`*stopped,reason="signal-received",signal-name="SIGINT"`, `^done`}
		}
		return []string{`^done`}
	})
	ctx := context.Background()
	// A stop reported outside of Continue must not be mistaken for the next one.
	_, err := c.Exec(ctx, "-stale")
	require.NoError(t, err)

	stop, err := c.Continue(ctx)
	require.NoError(t, err)
	assert.Equal(t, &debugger.Stop{
		Reason:     debugger.StopBreakpoint,
		Breakpoint: 1,
		Frame: debugger.Frame{
			Addr: 0xffffffff813e5c2d,
			Func: "do_sys_openat2",
			File: "fs/open.c",
			Line: 1220,
		},
	}, stop)
}

func TestParseStop(t *testing.T) {
	tests := []struct {
		line string
		want *debugger.Stop
	}{
		{
			line: `*stopped,reason="signal-received",signal-name="SIGINT",frame={addr="0xffffffff81f0e2ab",func="default_idle"}`,
			want: &debugger.Stop{
				Reason: debugger.StopSignal,
				Signal: "SIGINT",
				Frame:  debugger.Frame{Addr: 0xffffffff81f0e2ab, Func: "default_idle"},
			},
		},
		{
			line: `*stopped,reason="exited",exit-code="011"`,
			want: &debugger.Stop{Reason: debugger.StopExited, ExitCode: 9},
		},
		{
			line: `*stopped,reason="exited-normally"`,
			want: &debugger.Stop{Reason: debugger.StopExited},
		},
		{
			line: `*stopped,reason="end-stepping-range"`,
			want: &debugger.Stop{Reason: debugger.StopOther},
		},
	}
	for _, test := range tests {
		rec, err := Parse(test.line)
		require.NoError(t, err)
		stop, err := parseStop(rec)
		require.NoError(t, err)
		assert.Equal(t, test.want, stop, test.line)
	}
}

func TestExecTimeout(t *testing.T) {
	c, _ := startFake(t, func(cmd string) []string {
		return nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Exec(ctx, "-never-answered")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTerminate(t *testing.T) {
	c, fake := startFake(t, func(cmd string) []string {
		return []string{`^done`}
	})
	ctx := context.Background()
	require.NoError(t, c.Terminate(ctx))
	assert.Equal(t, []string{"-target-detach", "-gdb-exit"}, fake.Commands())

	_, err := c.Exec(ctx, "-data-evaluate-expression 1")
	assert.True(t, errors.Is(err, errExited), "got %v", err)
}
