// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package gdbmi drives gdb through its machine interface (GDB/MI) and implements debugger.Host on top of it.
package gdbmi

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/google/lkd/pkg/log"
	"github.com/google/lkd/pkg/osutil"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	// gdb binary.
	Binary string
	// Kernel image with debug info, passed to gdb as the program.
	Vmlinux string
	// Remote target (e.g. QEMU gdbstub "localhost:1234"); empty means the caller connects by InitCommands.
	Remote string
	// Scripts sourced before connecting (e.g. scripts/gdb/vmlinux-gdb.py for $lx_current).
	Scripts []string
	// Console commands executed after connecting.
	InitCommands []string
	// Timeout for a single command (Continue waits for the next stop without a timeout).
	Timeout time.Duration
}

// CommandError is a ^error response.
type CommandError struct {
	Command string
	Msg     string
}

func (err *CommandError) Error() string {
	return fmt.Sprintf("%v: %v", err.Command, err.Msg)
}

var errExited = errors.New("gdb exited")

type Client struct {
	cfg     *Config
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	writeMu sync.Mutex

	mu        sync.Mutex
	nextToken int
	pending   map[int]chan *Record

	stops chan *Record
	done  chan struct{}
	err   error
}

// Start runs gdb and prepares the session: disables paging and confirmations,
// sources helper scripts and connects to the remote target.
func Start(ctx context.Context, cfg *Config) (*Client, error) {
	bin := cfg.Binary
	if bin == "" {
		bin = "gdb"
	}
	args := []string{"--nx", "--quiet", "--interpreter=mi3"}
	if cfg.Vmlinux != "" {
		args = append(args, cfg.Vmlinux)
	}
	cmd := osutil.Command(bin, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %v: %w", bin, err)
	}
	log.Logf(1, "started %v %q (pid %v)", bin, args, cmd.Process.Pid)
	tail := new(tailWriter)
	c := newClient(cfg, stdin)
	c.cmd = cmd
	c.run(stdout, stderr, tail, func() error {
		return osutil.ProcessError(cmd, cmd.Wait(), tail.Bytes())
	})
	if err := c.setup(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func newClient(cfg *Config, stdin io.WriteCloser) *Client {
	return &Client{
		cfg:     cfg,
		stdin:   stdin,
		pending: make(map[int]chan *Record),
		stops:   make(chan *Record, 64),
		done:    make(chan struct{}),
	}
}

// run starts the output readers. wait is called once both readers reached EOF.
func (c *Client) run(stdout, stderr io.Reader, tail *tailWriter, wait func() error) {
	eg := new(errgroup.Group)
	eg.Go(func() error {
		return c.readLoop(stdout)
	})
	if stderr != nil {
		eg.Go(func() error {
			s := bufio.NewScanner(stderr)
			for s.Scan() {
				log.Logf(1, "gdb: %s", s.Text())
				tail.Write(append(s.Bytes(), '\n'))
			}
			return nil
		})
	}
	go func() {
		err := eg.Wait()
		if werr := wait(); werr != nil {
			err = werr
		}
		c.err = err
		c.mu.Lock()
		c.pending = nil
		c.mu.Unlock()
		close(c.done)
	}()
}

func (c *Client) setup(ctx context.Context) error {
	for _, cmd := range []string{
		"-gdb-set pagination off",
		"-gdb-set confirm off",
		"-gdb-set width 0",
		"-gdb-set mi-async on",
		"-gdb-set print repeats unlimited",
		"-gdb-set print elements unlimited",
		"-gdb-set print null-stop on",
	} {
		if _, err := c.Exec(ctx, cmd); err != nil {
			return err
		}
	}
	for _, script := range c.cfg.Scripts {
		if err := c.Console(ctx, "source "+script); err != nil {
			return fmt.Errorf("failed to source %v: %w", script, err)
		}
	}
	if c.cfg.Remote != "" {
		if _, err := c.Exec(ctx, "-target-select remote "+c.cfg.Remote); err != nil {
			return fmt.Errorf("failed to connect to %v: %w", c.cfg.Remote, err)
		}
	}
	for _, cmd := range c.cfg.InitCommands {
		if err := c.Console(ctx, cmd); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) readLoop(r io.Reader) error {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64<<10), 64<<20)
	for s.Scan() {
		line := s.Text()
		if line == "" {
			continue
		}
		rec, err := Parse(line)
		if err != nil {
			log.Logf(0, "gdbmi: %v", err)
			continue
		}
		c.dispatch(rec, line)
	}
	if err := s.Err(); err != nil {
		return err
	}
	return errExited
}

func (c *Client) dispatch(rec *Record, line string) {
	switch rec.Kind {
	case KindResult:
		c.mu.Lock()
		ch := c.pending[rec.Token]
		delete(c.pending, rec.Token)
		c.mu.Unlock()
		if ch == nil {
			log.Logf(2, "gdbmi: unexpected result: %v", line)
			return
		}
		ch <- rec
	case KindExec:
		log.Logf(3, "gdbmi: %v", line)
		if rec.Class == "stopped" {
			c.stops <- rec
		}
	case KindConsole, KindTarget:
		log.Logf(1, "gdb: %s", trimNewline(rec.Text))
	case KindLog:
		log.Logf(2, "gdb log: %s", trimNewline(rec.Text))
	case KindNotify, KindStatus:
		log.Logf(3, "gdbmi: %v", line)
	}
}

func trimNewline(s string) string {
	for len(s) > 0 && s[len(s)-1] == '\n' {
		s = s[:len(s)-1]
	}
	return s
}

// Exec sends an MI command and waits for its result record.
// ^error results are returned as *CommandError.
func (c *Client) Exec(ctx context.Context, command string) (*Record, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	ch := make(chan *Record, 1)
	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return nil, c.exitErr()
	}
	c.nextToken++
	token := c.nextToken
	c.pending[token] = ch
	c.mu.Unlock()

	log.Logf(3, "gdbmi: <- %v%v", token, command)
	c.writeMu.Lock()
	_, err := fmt.Fprintf(c.stdin, "%v%v\n", token, command)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(token)
		return nil, fmt.Errorf("failed to send %v: %w", command, err)
	}
	select {
	case rec := <-ch:
		if rec.Class == "error" {
			return nil, &CommandError{Command: command, Msg: rec.Results.String("msg")}
		}
		return rec, nil
	case <-ctx.Done():
		c.forget(token)
		return nil, fmt.Errorf("%v: %w", command, ctx.Err())
	case <-c.done:
		return nil, c.exitErr()
	}
}

// Console runs a CLI command through the MI console interpreter.
func (c *Client) Console(ctx context.Context, command string) error {
	_, err := c.Exec(ctx, "-interpreter-exec console "+quote(command))
	return err
}

func (c *Client) forget(token int) {
	c.mu.Lock()
	if c.pending != nil {
		delete(c.pending, token)
	}
	c.mu.Unlock()
}

func (c *Client) exitErr() error {
	<-c.done
	if c.err == nil || errors.Is(c.err, errExited) {
		return errExited
	}
	return fmt.Errorf("%w: %w", errExited, c.err)
}

// drainStops drops stop records that nobody waited for (e.g. the one reported on connect).
func (c *Client) drainStops() {
	for {
		select {
		case rec := <-c.stops:
			log.Logf(2, "gdbmi: dropping stale stop %v", rec.Results.String("reason"))
		default:
			return
		}
	}
}

// waitStop waits for the next *stopped record.
func (c *Client) waitStop(ctx context.Context) (*Record, error) {
	select {
	case rec := <-c.stops:
		return rec, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, c.exitErr()
	}
}

func (c *Client) Close() error {
	if c.cmd != nil {
		osutil.Kill(c.cmd)
	}
	c.stdin.Close()
	<-c.done
	return nil
}

// tailWriter keeps the last few KB of gdb stderr for error reports.
type tailWriter struct {
	mu  sync.Mutex
	buf []byte
}

const tailSize = 4 << 10

func (w *tailWriter) Write(data []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, data...)
	if len(w.buf) > tailSize {
		w.buf = w.buf[len(w.buf)-tailSize:]
	}
	return len(data), nil
}

func (w *tailWriter) Bytes() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]byte{}, w.buf...)
}
