// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package kstruct provides read-only views of kernel structs living in the debuggee.
// Fields are read through the host debugger on every access; views never cache kernel state.
package kstruct

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/lkd/pkg/debugger"
	"github.com/google/lkd/pkg/stage"
)

// Kind describes a kernel struct type and the fields lkd is allowed to read from it.
type Kind struct {
	Type   string
	Fields []string
}

var (
	TaskKind = &Kind{
		Type:   "struct task_struct",
		Fields: []string{"pid", "comm"},
	}
	PipeKind = &Kind{
		Type:   "struct pipe_inode_info",
		Fields: []string{"head", "tail", "ring_size", "bufs"},
	}
	PipeBufferKind = &Kind{
		Type:   "struct pipe_buffer",
		Fields: []string{"page", "offset", "len", "ops", "flags"},
	}
	FileKind = &Kind{
		Type:   "struct file",
		Fields: []string{"f_path.dentry", "f_path.dentry->d_name.name", "f_mapping", "private_data"},
	}
	DentryKind = &Kind{
		Type:   "struct dentry",
		Fields: []string{"d_name.name", "d_parent"},
	}
	AddressSpaceKind = &Kind{
		Type:   "struct address_space",
		Fields: []string{"i_pages.xa_head"},
	}
	PageKind = &Kind{
		Type: "struct page",
	}
)

var ErrUndeclaredField = errors.New("field is not declared for the struct kind")

// StructView is the capability to read fields of one struct instance.
type StructView interface {
	Kind() *Kind
	Addr() uint64
	Field(ctx context.Context, name string) (debugger.Value, error)
}

// View is a StructView reading fields with host expressions of the form ((struct X *)ADDR)->field.
type View struct {
	host debugger.Host
	kind *Kind
	addr uint64
}

func NewView(host debugger.Host, kind *Kind, addr uint64) *View {
	return &View{
		host: host,
		kind: kind,
		addr: addr,
	}
}

// ViewAt evaluates a pointer expression and returns a view of the struct it points to.
func ViewAt(ctx context.Context, host debugger.Host, kind *Kind, expr string) (*View, error) {
	val, err := host.Evaluate(ctx, expr)
	if err != nil {
		return nil, err
	}
	addr, err := val.Pointer()
	if err != nil {
		return nil, fmt.Errorf("%v (%v): %w", expr, kind.Type, err)
	}
	return NewView(host, kind, addr), nil
}

func (v *View) Kind() *Kind  { return v.kind }
func (v *View) Addr() uint64 { return v.addr }

func (v *View) Expr() string {
	return fmt.Sprintf("((%v *)%#x)", v.kind.Type, v.addr)
}

func (v *View) Field(ctx context.Context, name string) (debugger.Value, error) {
	if !slices.Contains(v.kind.Fields, name) {
		return debugger.Value{}, fmt.Errorf("%v.%v: %w", v.kind.Type, name, ErrUndeclaredField)
	}
	val, err := v.host.Evaluate(ctx, v.Expr()+"->"+name)
	if err != nil {
		return debugger.Value{}, fmt.Errorf("%v at %#x: %v: %w", v.kind.Type, v.addr, name, err)
	}
	return val, nil
}

func (v *View) Uint64(ctx context.Context, name string) (uint64, error) {
	val, err := v.Field(ctx, name)
	if err != nil {
		return 0, err
	}
	return val.Uint64()
}

func (v *View) Pointer(ctx context.Context, name string) (uint64, error) {
	val, err := v.Field(ctx, name)
	if err != nil {
		return 0, err
	}
	n, err := val.Pointer()
	if err != nil {
		return 0, fmt.Errorf("%v at %#x: %v: %w", v.kind.Type, v.addr, name, err)
	}
	return n, nil
}

func (v *View) String() string {
	return fmt.Sprintf("%v at %#x", v.kind.Type, v.addr)
}

// section renders the named fields as host-formatted values.
func (v *View) section(ctx context.Context, fields ...string) (*stage.Section, error) {
	sec := stage.NewSection(v.kind.Type, v.addr)
	for _, name := range fields {
		val, err := v.Field(ctx, name)
		if err != nil {
			return nil, err
		}
		sec.Add(name, val.Text)
	}
	return sec, nil
}
