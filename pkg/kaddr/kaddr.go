// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package kaddr translates page descriptor addresses into the virtual addresses of the memory they describe.
//
// The kernel keeps one struct page per physical page in a virtually contiguous array (vmemmap).
// The page frame number is the index of the descriptor in that array, and the direct mapping
// maps the frame at page_offset_base + (pfn << PAGE_SHIFT). This is page_address() for
// x86_64 kernels without highmem.
package kaddr

import (
	"context"
	"fmt"
)

const DefaultPageShift = 12

// Table describes the location of the descriptor array and the linear mapping.
// It is immutable once created.
type Table struct {
	Base         uint64
	RecordSize   uint64
	LinearOffset uint64
	PageShift    uint
}

func NewTable(base, recordSize, linearOffset uint64, pageShift uint) (*Table, error) {
	if recordSize == 0 {
		return nil, fmt.Errorf("descriptor record size must be positive")
	}
	if pageShift >= 64 {
		return nil, fmt.Errorf("page shift %v is out of range", pageShift)
	}
	return &Table{
		Base:         base,
		RecordSize:   recordSize,
		LinearOffset: linearOffset,
		PageShift:    pageShift,
	}, nil
}

// Translate returns the virtual address of the memory described by the descriptor at descriptorAddress.
// descriptorAddress must lie within the table at a record boundary; other inputs produce
// a meaningless address and are not reported.
func Translate(tableBase, recordSize, linearOffset uint64, pageShift uint, descriptorAddress uint64) uint64 {
	index := (descriptorAddress - tableBase) / recordSize
	return index<<pageShift + linearOffset
}

func (t *Table) Translate(descriptorAddress uint64) uint64 {
	return Translate(t.Base, t.RecordSize, t.LinearOffset, t.PageShift, descriptorAddress)
}

// Index returns the descriptor index (page frame number) of descriptorAddress.
func (t *Table) Index(descriptorAddress uint64) uint64 {
	return (descriptorAddress - t.Base) / t.RecordSize
}

func (t *Table) PageSize() uint64 {
	return 1 << t.PageShift
}

func (t *Table) String() string {
	return fmt.Sprintf("vmemmap=%#x sizeof(page)=%v page_offset=%#x shift=%v",
		t.Base, t.RecordSize, t.LinearOffset, t.PageShift)
}

// Evaluator resolves an expression in the context of the current stop to an integer.
type Evaluator interface {
	EvaluateUint64(ctx context.Context, expr string) (uint64, error)
}

// Expressions used to read the table parameters from the kernel.
const (
	ExprTableBase    = "vmemmap_base"
	ExprRecordSize   = "sizeof(struct page)"
	ExprLinearOffset = "page_offset_base"
)

// Load reads the table parameters from the debugged kernel.
func Load(ctx context.Context, ev Evaluator, pageShift uint) (*Table, error) {
	var vals [3]uint64
	for i, expr := range []string{ExprTableBase, ExprRecordSize, ExprLinearOffset} {
		val, err := ev.EvaluateUint64(ctx, expr)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate %v: %w", expr, err)
		}
		vals[i] = val
	}
	return NewTable(vals[0], vals[1], vals[2], pageShift)
}
