// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package kstruct

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/lkd/pkg/debugger"
	"github.com/google/lkd/pkg/kaddr"
	"github.com/google/lkd/pkg/stage"
)

type Task struct{ *View }

func NewTask(host debugger.Host, addr uint64) *Task {
	return &Task{NewView(host, TaskKind, addr)}
}

func (t *Task) Section(ctx context.Context) (*stage.Section, error) {
	return t.section(ctx, "pid", "comm")
}

type Pipe struct{ *View }

func NewPipe(host debugger.Host, addr uint64) *Pipe {
	return &Pipe{NewView(host, PipeKind, addr)}
}

// Bufs returns the address of the pipe buffer ring.
func (p *Pipe) Bufs(ctx context.Context) (uint64, error) {
	return p.Pointer(ctx, "bufs")
}

func (p *Pipe) Section(ctx context.Context) (*stage.Section, error) {
	return p.section(ctx, "head", "tail", "ring_size", "bufs")
}

const (
	PipeBufFlagLRU      = 0x01
	PipeBufFlagAtomic   = 0x02
	PipeBufFlagGift     = 0x04
	PipeBufFlagPacket   = 0x08
	PipeBufFlagCanMerge = 0x10
	PipeBufFlagWhole    = 0x20
)

var pipeBufFlags = []struct {
	bit  uint64
	name string
}{
	{PipeBufFlagLRU, "PIPE_BUF_FLAG_LRU"},
	{PipeBufFlagAtomic, "PIPE_BUF_FLAG_ATOMIC"},
	{PipeBufFlagGift, "PIPE_BUF_FLAG_GIFT"},
	{PipeBufFlagPacket, "PIPE_BUF_FLAG_PACKET"},
	{PipeBufFlagCanMerge, "PIPE_BUF_FLAG_CAN_MERGE"},
	{PipeBufFlagWhole, "PIPE_BUF_FLAG_WHOLE"},
}

// FormatPipeBufFlags renders pipe_buffer.flags as "PIPE_BUF_FLAG_X | PIPE_BUF_FLAG_Y".
// Unknown bits are appended in hex, no flags at all render as "0".
func FormatPipeBufFlags(flags uint64) string {
	var names []string
	for _, f := range pipeBufFlags {
		if flags&f.bit != 0 {
			names = append(names, f.name)
			flags &^= f.bit
		}
	}
	if flags != 0 {
		names = append(names, fmt.Sprintf("%#x", flags))
	}
	if len(names) == 0 {
		return "0"
	}
	return strings.Join(names, " | ")
}

type PipeBuffer struct{ *View }

func NewPipeBuffer(host debugger.Host, addr uint64) *PipeBuffer {
	return &PipeBuffer{NewView(host, PipeBufferKind, addr)}
}

func (b *PipeBuffer) Len(ctx context.Context) (uint64, error) {
	return b.Uint64(ctx, "len")
}

func (b *PipeBuffer) Flags(ctx context.Context) (uint64, error) {
	return b.Uint64(ctx, "flags")
}

// Page returns the address of the struct page backing the buffer.
func (b *PipeBuffer) Page(ctx context.Context) (uint64, error) {
	return b.Pointer(ctx, "page")
}

func (b *PipeBuffer) Section(ctx context.Context) (*stage.Section, error) {
	sec, err := b.section(ctx, "page", "offset", "len", "ops")
	if err != nil {
		return nil, err
	}
	flags, err := b.Flags(ctx)
	if err != nil {
		return nil, err
	}
	sec.Add("flags", FormatPipeBufFlags(flags))
	return sec, nil
}

type File struct{ *View }

func NewFile(host debugger.Host, addr uint64) *File {
	return &File{NewView(host, FileKind, addr)}
}

func (f *File) Name(ctx context.Context) (string, error) {
	val, err := f.Field(ctx, "f_path.dentry->d_name.name")
	if err != nil {
		return "", err
	}
	return val.CString()
}

// Path walks the dentry chain up to the root of the file's mount.
func (f *File) Path(ctx context.Context) (string, error) {
	addr, err := f.Pointer(ctx, "f_path.dentry")
	if err != nil {
		return "", err
	}
	var elems []string
	for depth := 0; ; depth++ {
		if depth == maxPathDepth {
			return "", fmt.Errorf("dentry chain of %v is too deep", f)
		}
		d := NewView(f.host, DentryKind, addr)
		parent, err := d.Pointer(ctx, "d_parent")
		if err != nil {
			return "", err
		}
		if parent == addr {
			break
		}
		val, err := d.Field(ctx, "d_name.name")
		if err != nil {
			return "", err
		}
		name, err := val.CString()
		if err != nil {
			return "", err
		}
		elems = append(elems, name)
		addr = parent
	}
	var path strings.Builder
	for i := len(elems) - 1; i >= 0; i-- {
		path.WriteString("/")
		path.WriteString(elems[i])
	}
	if path.Len() == 0 {
		return "/", nil
	}
	return path.String(), nil
}

const maxPathDepth = 256

// Mapping returns the address of the file's page-cache address_space.
func (f *File) Mapping(ctx context.Context) (uint64, error) {
	return f.Pointer(ctx, "f_mapping")
}

// PrivateData returns file->private_data (the pipe_inode_info for pipe files).
func (f *File) PrivateData(ctx context.Context) (uint64, error) {
	return f.Pointer(ctx, "private_data")
}

func (f *File) Section(ctx context.Context) (*stage.Section, error) {
	name, err := f.Name(ctx)
	if err != nil {
		return nil, err
	}
	return stage.NewSection(f.kind.Type, f.addr).AddRaw("filename", name), nil
}

type AddressSpace struct{ *View }

func NewAddressSpace(host debugger.Host, addr uint64) *AddressSpace {
	return &AddressSpace{NewView(host, AddressSpaceKind, addr)}
}

// Head returns i_pages.xa_head: for a single-page file it is the struct page of the page-cache page.
func (m *AddressSpace) Head(ctx context.Context) (uint64, error) {
	return m.Pointer(ctx, "i_pages.xa_head")
}

func (m *AddressSpace) Section(ctx context.Context) (*stage.Section, error) {
	return m.section(ctx, "i_pages.xa_head")
}

// PageDataLen is the number of bytes shown from the beginning and from the end of a page.
const PageDataLen = 20

type Page struct {
	*View
	table *kaddr.Table
}

func NewPage(host debugger.Host, table *kaddr.Table, addr uint64) *Page {
	return &Page{
		View:  NewView(host, PageKind, addr),
		table: table,
	}
}

// Virtual returns the linear-map address of the page contents.
func (p *Page) Virtual() uint64 {
	return p.table.Translate(p.addr)
}

// Data reads n bytes from the beginning and n bytes from the end of the page.
// n is capped at the page size.
func (p *Page) Data(ctx context.Context, n int) (head, tail []byte, err error) {
	if n < 0 {
		return nil, nil, fmt.Errorf("bad page data length %v", n)
	}
	if size := p.table.PageSize(); uint64(n) > size {
		n = int(size)
	}
	virt := p.Virtual()
	head, err = p.host.ReadMemory(ctx, virt, n)
	if err != nil {
		return nil, nil, fmt.Errorf("page data at %#x: %w", virt, err)
	}
	tailAddr := virt + p.table.PageSize() - uint64(n)
	tail, err = p.host.ReadMemory(ctx, tailAddr, n)
	if err != nil {
		return nil, nil, fmt.Errorf("page data at %#x: %w", tailAddr, err)
	}
	return head, tail, nil
}

func (p *Page) Section(ctx context.Context) (*stage.Section, error) {
	head, tail, err := p.Data(ctx, PageDataLen)
	if err != nil {
		return nil, err
	}
	return stage.NewSection(p.kind.Type, p.addr).
		AddRaw("virtual", fmt.Sprintf("%#x", p.Virtual())).
		AddRaw("data", FormatPageData(head, tail)), nil
}

func FormatPageData(head, tail []byte) string {
	return fmt.Sprintf("%q[...]%q", head, tail)
}

// Sectioner is implemented by all typed views.
type Sectioner interface {
	Section(ctx context.Context) (*stage.Section, error)
}

// Sections renders views in order and stops on the first failure.
func Sections(ctx context.Context, views ...Sectioner) ([]*stage.Section, error) {
	var res []*stage.Section
	for _, v := range views {
		sec, err := v.Section(ctx)
		if err != nil {
			return nil, err
		}
		res = append(res, sec)
	}
	return res, nil
}
