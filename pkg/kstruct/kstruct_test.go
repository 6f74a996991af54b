// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package kstruct

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/lkd/pkg/debugger"
	"github.com/google/lkd/pkg/debugger/debuggertest"
	"github.com/google/lkd/pkg/kaddr"
	"github.com/google/lkd/pkg/stage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	taskAddr   uint64 = 0xffff888003a1c000
	fileAddr   uint64 = 0xffff888004b2e300
	bufAddr    uint64 = 0xffff888004a51000
	pageAddr   uint64 = 0xffffea0000129b00
	pageVirt          = 0xffff888004a6c000
	dentryAddr uint64 = 0xffff888004d5c0c0
	tmpAddr    uint64 = 0xffff888004d5c180
	rootAddr   uint64 = 0xffff888004d5c240
)

func field(kind *Kind, addr uint64, name string) string {
	return fmt.Sprintf("((%v *)%#x)->%v", kind.Type, addr, name)
}

func testHost() *debuggertest.Host {
	page := make([]byte, 4096)
	copy(page, "AAAAAAAAAAAAAAAAAAAAAAAA")
	copy(page[4096-3:], "end")
	return debuggertest.NewHost().
		Set(kaddr.ExprTableBase, "0xffffea0000000000").
		Set(kaddr.ExprRecordSize, "64").
		Set(kaddr.ExprLinearOffset, "0xffff888000000000").
		Set(field(TaskKind, taskAddr, "pid"), "93").
		Set(field(TaskKind, taskAddr, "comm"), `"poc", '\000' <repeats 12 times>`).
		Set("f", fmt.Sprintf("(struct file *) %#x", fileAddr)).
		Set("nullfile", "0x0").
		Set(field(FileKind, fileAddr, "f_path.dentry"), fmt.Sprintf("(struct dentry *) %#x", dentryAddr)).
		Set(field(FileKind, fileAddr, "f_path.dentry->d_name.name"),
			fmt.Sprintf(`%#x "target_file"`, dentryAddr+0x38)).
		Set(field(DentryKind, dentryAddr, "d_name.name"), `0xffff888004d5c0f8 "target_file"`).
		Set(field(DentryKind, dentryAddr, "d_parent"), fmt.Sprintf("(struct dentry *) %#x", tmpAddr)).
		Set(field(DentryKind, tmpAddr, "d_name.name"), `0xffff888004d5c1b8 "tmp"`).
		Set(field(DentryKind, tmpAddr, "d_parent"), fmt.Sprintf("(struct dentry *) %#x", rootAddr)).
		Set(field(DentryKind, rootAddr, "d_name.name"), `0xffff888004d5c278 "/"`).
		Set(field(DentryKind, rootAddr, "d_parent"), fmt.Sprintf("(struct dentry *) %#x", rootAddr)).
		Set(field(PipeBufferKind, bufAddr, "page"), fmt.Sprintf("(struct page *) %#x", pageAddr)).
		Set(field(PipeBufferKind, bufAddr, "offset"), "0").
		Set(field(PipeBufferKind, bufAddr, "len"), "8").
		Set(field(PipeBufferKind, bufAddr, "ops"), "0xffffffff82a1b2c0 <anon_pipe_buf_ops>").
		Set(field(PipeBufferKind, bufAddr, "flags"), "18").
		Set("buf->page", fmt.Sprintf("(struct page *) %#x", pageAddr)).
		SetMemory(pageVirt, page)
}

func TestUndeclaredField(t *testing.T) {
	v := NewView(testHost(), TaskKind, taskAddr)
	_, err := v.Field(context.Background(), "mm")
	assert.ErrorIs(t, err, ErrUndeclaredField)
	_, err = NewView(testHost(), PageKind, pageAddr).Field(context.Background(), "flags")
	assert.ErrorIs(t, err, ErrUndeclaredField)
}

func TestFieldError(t *testing.T) {
	v := NewView(testHost(), PipeKind, 0xffff888004a50000)
	_, err := v.Field(context.Background(), "head")
	assert.ErrorContains(t, err, "struct pipe_inode_info at 0xffff888004a50000: head")
}

func TestTaskSection(t *testing.T) {
	sec, err := NewTask(testHost(), taskAddr).Section(context.Background())
	require.NoError(t, err)
	want := &stage.Section{
		Header: "struct task_struct at 0xffff888003a1c000",
		Fields: []stage.Field{
			{Name: "pid", Value: "93"},
			{Name: "comm", Value: `"poc", '\000' <repeats 12 times>`},
		},
	}
	if diff := cmp.Diff(want, sec); diff != "" {
		t.Fatal(diff)
	}
}

func TestPipeBuffer(t *testing.T) {
	ctx := context.Background()
	buf := NewPipeBuffer(testHost(), bufAddr)
	n, err := buf.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), n)
	page, err := buf.Page(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(pageAddr), page)

	sec, err := buf.Section(ctx)
	require.NoError(t, err)
	want := &stage.Section{
		Header: "struct pipe_buffer at 0xffff888004a51000",
		Fields: []stage.Field{
			{Name: "page", Value: "(struct page *) 0xffffea0000129b00"},
			{Name: "offset", Value: "0"},
			{Name: "len", Value: "8"},
			{Name: "ops", Value: "0xffffffff82a1b2c0 <anon_pipe_buf_ops>"},
			{Name: "flags", Value: "PIPE_BUF_FLAG_ATOMIC | PIPE_BUF_FLAG_CAN_MERGE"},
		},
	}
	if diff := cmp.Diff(want, sec); diff != "" {
		t.Fatal(diff)
	}
}

func TestFormatPipeBufFlags(t *testing.T) {
	tests := map[uint64]string{
		0:    "0",
		0x10: "PIPE_BUF_FLAG_CAN_MERGE",
		0x3f: "PIPE_BUF_FLAG_LRU | PIPE_BUF_FLAG_ATOMIC | PIPE_BUF_FLAG_GIFT | " +
			"PIPE_BUF_FLAG_PACKET | PIPE_BUF_FLAG_CAN_MERGE | PIPE_BUF_FLAG_WHOLE",
		0x41: "PIPE_BUF_FLAG_LRU | 0x40",
		0x80: "0x80",
	}
	for flags, want := range tests {
		assert.Equal(t, want, FormatPipeBufFlags(flags), "flags %#x", flags)
	}
}

func TestFile(t *testing.T) {
	ctx := context.Background()
	host := testHost()
	f := NewFile(host, fileAddr)
	name, err := f.Name(ctx)
	require.NoError(t, err)
	assert.Equal(t, "target_file", name)
	path, err := f.Path(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/target_file", path)

	sec, err := f.Section(ctx)
	require.NoError(t, err)
	assert.Equal(t, "struct file at 0xffff888004b2e300\n> filename: target_file\n",
		sectionText(sec))

	_, err = f.Mapping(ctx)
	assert.Error(t, err)
}

func TestPage(t *testing.T) {
	ctx := context.Background()
	host := testHost()
	table, err := kaddr.Load(ctx, debugger.Evaluator{Host: host}, kaddr.DefaultPageShift)
	require.NoError(t, err)
	page := NewPage(host, table, pageAddr)
	assert.Equal(t, uint64(pageVirt), page.Virtual())

	head, tail, err := page.Data(ctx, PageDataLen)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{'A'}, 20), head)
	assert.Equal(t, append(make([]byte, 17), "end"...), tail)

	sec, err := page.Section(ctx)
	require.NoError(t, err)
	assert.Equal(t, "struct page at 0xffffea0000129b00\n"+
		"> virtual: 0xffff888004a6c000\n"+
		`> data: "AAAAAAAAAAAAAAAAAAAA"[...]"\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00end"`+"\n",
		sectionText(sec))

	_, _, err = NewPage(host, table, pageAddr+64).Data(ctx, PageDataLen)
	assert.ErrorContains(t, err, "0xffff888004a6d000")
	_, _, err = page.Data(ctx, -1)
	assert.Error(t, err)
}

func TestSmallPageData(t *testing.T) {
	ctx := context.Background()
	const (
		base   = 0xffffea0000000000
		offset = 0xffff888000000000
	)
	table, err := kaddr.NewTable(base, 64, offset, 3)
	require.NoError(t, err)
	host := debuggertest.NewHost().SetMemory(offset+2*8, []byte("abcdefgh"))
	page := NewPage(host, table, base+2*64)
	assert.Equal(t, uint64(offset+2*8), page.Virtual())
	head, tail, err := page.Data(ctx, PageDataLen)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcdefgh"), head)
	assert.Equal(t, []byte("abcdefgh"), tail)
}

func TestHelpers(t *testing.T) {
	ctx := context.Background()
	host := testHost()
	addr, err := PageAddress(ctx, host, "buf->page", kaddr.DefaultPageShift)
	require.NoError(t, err)
	assert.Equal(t, uint64(pageVirt), addr)

	head, _, err := PageData(ctx, host, "buf->page", kaddr.DefaultPageShift, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte("AAAA"), head)

	name, err := FileName(ctx, host, "f")
	require.NoError(t, err)
	assert.Equal(t, "target_file", name)

	path, err := FilePath(ctx, host, "f")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/target_file", path)

	_, err = FileName(ctx, host, "nullfile")
	assert.ErrorIs(t, err, debugger.ErrNullPointer)
	_, err = PageAddress(ctx, host, "nosuchvar", kaddr.DefaultPageShift)
	assert.Error(t, err)
}

func TestSections(t *testing.T) {
	ctx := context.Background()
	host := testHost()
	secs, err := Sections(ctx, NewTask(host, taskAddr), NewFile(host, fileAddr))
	require.NoError(t, err)
	require.Len(t, secs, 2)
	assert.Equal(t, "struct file at 0xffff888004b2e300", secs[1].Header)

	_, err = Sections(ctx, NewTask(host, taskAddr), NewPipe(host, 0x1000))
	assert.Error(t, err)
}

func sectionText(sec *stage.Section) string {
	r := &stage.Report{Sections: []*stage.Section{sec}}
	text := r.String()
	// Drop the separator, the empty label and the trailing blank line.
	text = text[75+3:]
	return text[:len(text)-1]
}
