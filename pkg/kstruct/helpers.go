// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package kstruct

import (
	"context"

	"github.com/google/lkd/pkg/debugger"
	"github.com/google/lkd/pkg/kaddr"
)

// The helpers below evaluate a pointer expression in the current stop and answer one question about it.
// They back the one-shot CLI queries.

// PageAddress returns the linear-map address of the page described by a struct page pointer expression.
func PageAddress(ctx context.Context, host debugger.Host, pageExpr string, pageShift uint) (uint64, error) {
	page, err := loadPage(ctx, host, pageExpr, pageShift)
	if err != nil {
		return 0, err
	}
	return page.Virtual(), nil
}

// PageData returns the first and the last n bytes of the page.
func PageData(ctx context.Context, host debugger.Host, pageExpr string, pageShift uint, n int) (head, tail []byte, err error) {
	page, err := loadPage(ctx, host, pageExpr, pageShift)
	if err != nil {
		return nil, nil, err
	}
	return page.Data(ctx, n)
}

func FileName(ctx context.Context, host debugger.Host, fileExpr string) (string, error) {
	v, err := ViewAt(ctx, host, FileKind, fileExpr)
	if err != nil {
		return "", err
	}
	return (&File{v}).Name(ctx)
}

func FilePath(ctx context.Context, host debugger.Host, fileExpr string) (string, error) {
	v, err := ViewAt(ctx, host, FileKind, fileExpr)
	if err != nil {
		return "", err
	}
	return (&File{v}).Path(ctx)
}

func loadPage(ctx context.Context, host debugger.Host, pageExpr string, pageShift uint) (*Page, error) {
	table, err := kaddr.Load(ctx, debugger.Evaluator{Host: host}, pageShift)
	if err != nil {
		return nil, err
	}
	v, err := ViewAt(ctx, host, PageKind, pageExpr)
	if err != nil {
		return nil, err
	}
	return &Page{View: v, table: table}, nil
}
