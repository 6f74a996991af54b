// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package stage formats stage reports: snapshots of selected kernel struct fields
// printed when traced execution passes a checkpoint.
package stage

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"
)

const separatorWidth = 75

var separator = bytes.Repeat([]byte{'-'}, separatorWidth)

type Field struct {
	Name  string
	Value string
	// Raw fields are printed without quoting the name (e.g. derived values like filename).
	Raw bool
}

type Section struct {
	// Header is "struct X at 0xADDR".
	Header string
	Fields []Field
}

func NewSection(typ string, addr uint64) *Section {
	return &Section{Header: fmt.Sprintf("%v at %#x", typ, addr)}
}

func (s *Section) Add(name, value string) *Section {
	s.Fields = append(s.Fields, Field{Name: name, Value: value})
	return s
}

func (s *Section) AddRaw(name, value string) *Section {
	s.Fields = append(s.Fields, Field{Name: name, Value: value, Raw: true})
	return s
}

type Report struct {
	Label    string
	Trigger  string
	Time     time.Time
	Sections []*Section
}

func NewReport(trigger, label string) *Report {
	return &Report{
		Label:   label,
		Trigger: trigger,
		Time:    time.Now(),
	}
}

func (r *Report) Add(sections ...*Section) {
	r.Sections = append(r.Sections, sections...)
}

func (r *Report) WriteTo(w io.Writer) (int64, error) {
	buf := new(bytes.Buffer)
	buf.Write(separator)
	fmt.Fprintf(buf, "\n%v\n\n", r.Label)
	for _, sec := range r.Sections {
		fmt.Fprintf(buf, "%v\n", sec.Header)
		for _, f := range sec.Fields {
			if f.Raw {
				fmt.Fprintf(buf, "> %v: %v\n", f.Name, f.Value)
			} else {
				fmt.Fprintf(buf, "> '%v': %v\n", f.Name, f.Value)
			}
		}
		buf.WriteByte('\n')
	}
	return buf.WriteTo(w)
}

func (r *Report) String() string {
	buf := new(bytes.Buffer)
	r.WriteTo(buf)
	return buf.String()
}

// Printer writes reports and remembers the last few of them.
type Printer struct {
	mu     sync.Mutex
	w      io.Writer
	recent []*Report
	keep   int
	total  int
}

func NewPrinter(w io.Writer, keep int) *Printer {
	return &Printer{
		w:    w,
		keep: keep,
	}
}

func (p *Printer) Print(r *Report) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total++
	if p.keep > 0 {
		p.recent = append(p.recent, r)
		if len(p.recent) > p.keep {
			p.recent = append(p.recent[:0:0], p.recent[len(p.recent)-p.keep:]...)
		}
	}
	_, err := r.WriteTo(p.w)
	return err
}

// Recent returns the remembered reports, oldest first.
func (p *Printer) Recent() []*Report {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Report{}, p.recent...)
}

// Total returns the number of printed reports.
func (p *Printer) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}
