// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package scenario

import (
	"fmt"

	"github.com/google/lkd/pkg/kstruct"
)

// Pipe buffer lengths the exploit produces at pipe_write:
// the first short write, the completely filled buffer and the final write into the page cache.
const (
	initWriteLen  = 8
	fullWriteLen  = 4096
	cacheWriteLen = 18
)

func init() {
	Register(&Scenario{
		Name:        "dirtypipe",
		Description: "pipe buffer page-cache corruption (CVE-2022-0847), every stage armed from the start",
		Stages:      dirtyPipeStages(),
		Defaults: Params{
			Context:    "poc",
			TargetFile: "target_file",
			FinalStage: "7",
		},
	})
	Register(&Scenario{
		Name:        "dirtypipe-ordered",
		Description: "same stages armed one after another, the session ends after the page-cache write",
		Stages:      dirtyPipeStages(),
		Defaults: Params{
			Context:    "poc",
			TargetFile: "target_file",
			Ordered:    true,
			Terminate:  true,
			FinalStage: "7",
		},
	})
}

func dirtyPipeStages() []*Stage {
	return []*Stage{
		{
			Name:     "open",
			Location: "fs/open.c:1220",
			Reports:  []string{"1"},
			Hook:     openHook,
		},
		{
			Name:     "pipe-fcntl",
			Location: "fs/pipe.c:1401",
			Reports:  []string{"2"},
			Hook:     pipeFcntlHook,
		},
		{
			Name:     "pipe-write",
			Location: "fs/pipe.c:597",
			Reports:  []string{"3.1", "3.2", "7"},
			Hook:     pipeWriteHook,
		},
		{
			Name:     "pipe-read",
			Location: "fs/pipe.c:393",
			Reports:  []string{"4"},
			Hook:     pipeReadHook,
		},
		{
			Name:     "splice",
			Location: "fs/splice.c:1106",
			Reports:  []string{"5"},
			Hook:     spliceHook,
		},
	}
}

// openHook runs in do_sys_openat2 after the file has been opened (local f).
// It captures the task, the file, its mapping and the page-cache page if the file is the target.
func openHook(sess *Session) (bool, error) {
	v, err := kstruct.ViewAt(sess.Ctx, sess.Host, kstruct.FileKind, "f")
	if err != nil {
		return true, err
	}
	file := &kstruct.File{View: v}
	name, err := file.Name(sess.Ctx)
	if err != nil {
		return true, err
	}
	if name != sess.Params.TargetFile {
		return false, nil
	}
	tv, err := kstruct.ViewAt(sess.Ctx, sess.Host, kstruct.TaskKind, sess.Params.TaskExpr)
	if err != nil {
		return true, err
	}
	mapping, err := file.Mapping(sess.Ctx)
	if err != nil {
		return true, err
	}
	fmap := kstruct.NewAddressSpace(sess.Host, mapping)
	head, err := fmap.Head(sess.Ctx)
	if err != nil {
		return true, fmt.Errorf("page cache of %v: %w", name, err)
	}
	page, err := sess.NewPage(head)
	if err != nil {
		return true, err
	}
	sess.Task = &kstruct.Task{View: tv}
	sess.File = file
	sess.Mapping = fmap
	sess.Page = page
	return sess.Report("open", "1", "open the target file", sess.Task, sess.File, sess.Mapping, sess.Page)
}

// pipeFcntlHook runs in pipe_fcntl (local file is the pipe file) and captures the pipe and its first buffer.
func pipeFcntlHook(sess *Session) (bool, error) {
	v, err := kstruct.ViewAt(sess.Ctx, sess.Host, kstruct.FileKind, "file")
	if err != nil {
		return true, err
	}
	pipeAddr, err := (&kstruct.File{View: v}).PrivateData(sess.Ctx)
	if err != nil {
		return true, err
	}
	pipe := kstruct.NewPipe(sess.Host, pipeAddr)
	bufs, err := pipe.Bufs(sess.Ctx)
	if err != nil {
		return true, err
	}
	sess.Pipe = pipe
	sess.Buf = kstruct.NewPipeBuffer(sess.Host, bufs)
	return sess.Report("pipe-fcntl", "2", "create pipe", sess.Pipe, sess.Buf)
}

// pipeWriteHook runs in pipe_write and reports the buffer states the exploit goes through.
func pipeWriteHook(sess *Session) (bool, error) {
	if err := needRef(sess.Pipe != nil && sess.Buf != nil, "pipe", "pipe-fcntl"); err != nil {
		return true, err
	}
	n, err := sess.Buf.Len(sess.Ctx)
	if err != nil {
		return true, err
	}
	var id, title string
	var views []kstruct.Sectioner
	switch n {
	case initWriteLen:
		id, title = "3.1", "init pipe buffer with write"
	case fullWriteLen:
		id, title = "3.2", "filled pipe buffer"
	case cacheWriteLen:
		if err := needRef(sess.Mapping != nil, "file mapping", "open"); err != nil {
			return true, err
		}
		id, title = "7", "writing into page cache"
		views = append(views, sess.Mapping)
	default:
		return false, nil
	}
	pageAddr, err := sess.Buf.Page(sess.Ctx)
	if err != nil {
		return true, err
	}
	page, err := sess.NewPage(pageAddr)
	if err != nil {
		return true, err
	}
	views = append(views, sess.Pipe, sess.Buf, page)
	return sess.Report("pipe-write", id, title, views...)
}

// pipeReadHook runs in pipe_read and reports the buffer once it has been drained.
func pipeReadHook(sess *Session) (bool, error) {
	if err := needRef(sess.Pipe != nil && sess.Buf != nil, "pipe", "pipe-fcntl"); err != nil {
		return true, err
	}
	n, err := sess.Buf.Len(sess.Ctx)
	if err != nil {
		return true, err
	}
	if n != 0 {
		return false, nil
	}
	return sess.Report("pipe-read", "4", "release drained pipe buffer", sess.Pipe, sess.Buf)
}

// spliceHook runs in splice_file_to_pipe when the target file page is spliced into the pipe.
func spliceHook(sess *Session) (bool, error) {
	if err := needRef(sess.Pipe != nil && sess.Buf != nil, "pipe", "pipe-fcntl"); err != nil {
		return true, err
	}
	if err := needRef(sess.Mapping != nil && sess.Page != nil, "target file", "open"); err != nil {
		return true, err
	}
	page, err := sess.NewPage(sess.Page.Addr())
	if err != nil {
		return true, err
	}
	return sess.Report("splice", "5", "splicing file to pipe", sess.Pipe, sess.Buf, sess.Mapping, page)
}
