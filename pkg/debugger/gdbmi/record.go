// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package gdbmi

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/lkd/pkg/debugger"
)

type Kind int

const (
	KindResult  Kind = iota // ^done, ^running, ^connected, ^error, ^exit
	KindExec                // *stopped, *running
	KindStatus              // +download
	KindNotify              // =breakpoint-modified, =thread-group-started, ...
	KindConsole             // ~"text"
	KindTarget              // @"text"
	KindLog                 // &"text"
	KindPrompt              // (gdb)
)

var kindPrefix = map[byte]Kind{
	'^': KindResult,
	'*': KindExec,
	'+': KindStatus,
	'=': KindNotify,
	'~': KindConsole,
	'@': KindTarget,
	'&': KindLog,
}

type Record struct {
	Kind    Kind
	Token   int // -1 if the record has no token
	Class   string
	Results Tuple
	Text    string // stream records
}

// Value is one of string, Tuple or List.
type Value any

type Result struct {
	Name  string
	Value Value
}

type Tuple []Result

// List items are Values or, for result lists (body=[bkpt={...},bkpt={...}]), Results.
type List []any

func (t Tuple) Get(name string) Value {
	for _, res := range t {
		if res.Name == name {
			return res.Value
		}
	}
	return nil
}

func (t Tuple) String(name string) string {
	s, _ := t.Get(name).(string)
	return s
}

func (t Tuple) Tuple(name string) Tuple {
	v, _ := t.Get(name).(Tuple)
	return v
}

func (t Tuple) List(name string) List {
	v, _ := t.Get(name).(List)
	return v
}

// Parse parses one line of MI output.
func Parse(line string) (*Record, error) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "(gdb)" {
		return &Record{Kind: KindPrompt, Token: -1}, nil
	}
	p := &parser{s: line}
	rec := &Record{Token: -1}
	start := p.pos
	for p.pos < len(p.s) && p.s[p.pos] >= '0' && p.s[p.pos] <= '9' {
		p.pos++
	}
	if p.pos != start {
		tok, err := strconv.Atoi(p.s[start:p.pos])
		if err != nil {
			return nil, fmt.Errorf("bad token in %q", line)
		}
		rec.Token = tok
	}
	if p.pos == len(p.s) {
		return nil, fmt.Errorf("truncated record %q", line)
	}
	kind, ok := kindPrefix[p.s[p.pos]]
	if !ok {
		return nil, fmt.Errorf("unknown record type in %q", line)
	}
	p.pos++
	rec.Kind = kind
	switch kind {
	case KindConsole, KindTarget, KindLog:
		text, err := p.cstring()
		if err != nil {
			return nil, fmt.Errorf("bad stream record %q: %w", line, err)
		}
		rec.Text = text
		return rec, nil
	}
	rec.Class = p.word()
	if rec.Class == "" {
		return nil, fmt.Errorf("no record class in %q", line)
	}
	for p.pos < len(p.s) {
		if err := p.expect(','); err != nil {
			return nil, fmt.Errorf("bad record %q: %w", line, err)
		}
		res, err := p.result()
		if err != nil {
			return nil, fmt.Errorf("bad record %q: %w", line, err)
		}
		rec.Results = append(rec.Results, res)
	}
	return rec, nil
}

type parser struct {
	s   string
	pos int
}

func (p *parser) expect(ch byte) error {
	if p.pos >= len(p.s) || p.s[p.pos] != ch {
		return fmt.Errorf("expected %q at offset %v", ch, p.pos)
	}
	p.pos++
	return nil
}

func (p *parser) word() string {
	start := p.pos
	for p.pos < len(p.s) {
		ch := p.s[p.pos]
		if ch == ',' || ch == '=' || ch == '{' || ch == '}' || ch == '[' || ch == ']' || ch == '"' {
			break
		}
		p.pos++
	}
	return p.s[start:p.pos]
}

func (p *parser) cstring() (string, error) {
	str, rest, err := debugger.Unquote(p.s[p.pos:])
	if err != nil {
		return "", err
	}
	p.pos = len(p.s) - len(rest)
	return str, nil
}

func (p *parser) result() (Result, error) {
	name := p.word()
	if name == "" {
		return Result{}, fmt.Errorf("expected result name at offset %v", p.pos)
	}
	if err := p.expect('='); err != nil {
		return Result{}, err
	}
	val, err := p.value()
	if err != nil {
		return Result{}, err
	}
	return Result{name, val}, nil
}

func (p *parser) value() (Value, error) {
	if p.pos >= len(p.s) {
		return nil, fmt.Errorf("unexpected end of record")
	}
	switch p.s[p.pos] {
	case '"':
		return p.cstring()
	case '{':
		p.pos++
		tuple := Tuple{}
		if p.pos < len(p.s) && p.s[p.pos] == '}' {
			p.pos++
			return tuple, nil
		}
		for {
			res, err := p.result()
			if err != nil {
				return nil, err
			}
			tuple = append(tuple, res)
			if p.pos < len(p.s) && p.s[p.pos] == ',' {
				p.pos++
				continue
			}
			return tuple, p.expect('}')
		}
	case '[':
		p.pos++
		list := List{}
		if p.pos < len(p.s) && p.s[p.pos] == ']' {
			p.pos++
			return list, nil
		}
		for {
			if p.pos >= len(p.s) {
				return nil, fmt.Errorf("unexpected end of list")
			}
			var item any
			var err error
			if ch := p.s[p.pos]; ch == '"' || ch == '{' || ch == '[' {
				item, err = p.value()
			} else {
				item, err = p.result()
			}
			if err != nil {
				return nil, err
			}
			list = append(list, item)
			if p.pos < len(p.s) && p.s[p.pos] == ',' {
				p.pos++
				continue
			}
			return list, p.expect(']')
		}
	default:
		return nil, fmt.Errorf("unexpected %q at offset %v", p.s[p.pos], p.pos)
	}
}
