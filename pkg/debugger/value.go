// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package debugger

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Value is a value as rendered by the host debugger, e.g.:
//
//	4096
//	(struct pipe_buffer *) 0xffff888004a51000
//	0xffffffff82a1b2c0 <anon_pipe_buf_ops>
//	"poc", '\000' <repeats 12 times>
//	0xffff888004d5c0b8 "target_file"
type Value struct {
	Text string
}

func (v Value) String() string {
	return v.Text
}

var ErrNullPointer = errors.New("null pointer")

// Uint64 interprets the value as an integer or a pointer. Negative integers are returned in two's complement.
func (v Value) Uint64() (uint64, error) {
	s := stripCast(strings.TrimSpace(v.Text))
	switch s {
	case "true":
		return 1, nil
	case "false":
		return 0, nil
	}
	if strings.HasPrefix(s, "<error:") {
		return 0, fmt.Errorf("%v", strings.TrimSuffix(strings.TrimPrefix(s, "<error: "), ">"))
	}
	tok, _, _ := strings.Cut(s, " ")
	if strings.HasPrefix(tok, "-") {
		n, err := strconv.ParseInt(tok, 0, 64)
		if err != nil {
			return 0, fmt.Errorf("value %q is not an integer", v.Text)
		}
		return uint64(n), nil
	}
	n, err := strconv.ParseUint(tok, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("value %q is not an integer", v.Text)
	}
	return n, nil
}

// Pointer is like Uint64, but fails on NULL.
func (v Value) Pointer() (uint64, error) {
	n, err := v.Uint64()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrNullPointer
	}
	return n, nil
}

// CString extracts a NUL-terminated string from a rendered char array or char pointer.
// The host may split the rendering into segments: "ab", 'c' <repeats 11 times>, "d".
func (v Value) CString() (string, error) {
	s := strings.TrimSpace(v.Text)
	pos := strings.IndexAny(s, `"'`)
	if pos == -1 {
		return "", fmt.Errorf("value %q is not a string", v.Text)
	}
	var buf strings.Builder
	for rest := s[pos:]; ; {
		var seg string
		var err error
		switch rest[0] {
		case '"':
			seg, rest, err = Unquote(rest)
		case '\'':
			seg, rest, err = unquoteRepeat(rest)
		default:
			err = fmt.Errorf("unexpected %q", rest)
		}
		if err != nil {
			return "", fmt.Errorf("value %q: %w", v.Text, err)
		}
		buf.WriteString(seg)
		rest = strings.TrimSpace(rest)
		if rest == "" {
			break
		}
		// A trailing "..." means the host truncated the string.
		next, ok := strings.CutPrefix(rest, ",")
		if next = strings.TrimSpace(next); !ok || next == "" {
			return "", fmt.Errorf("value %q: unexpected %q", v.Text, rest)
		}
		rest = next
	}
	str := buf.String()
	if nul := strings.IndexByte(str, 0); nul != -1 {
		str = str[:nul]
	}
	return str, nil
}

// unquoteRepeat parses a char literal with an optional repeat count: 'x' <repeats 12 times>.
func unquoteRepeat(s string) (string, string, error) {
	end := 1
	for end < len(s) && s[end] != '\'' {
		if s[end] == '\\' {
			end++
		}
		end++
	}
	if end >= len(s) {
		return "", s, fmt.Errorf("unterminated char literal")
	}
	body := s[1:end]
	if body == `"` {
		body = `\"`
	}
	ch, tail, err := Unquote(`"` + body + `"`)
	if err != nil || tail != "" || len(ch) != 1 {
		return "", s, fmt.Errorf("bad char literal %q", s[:end+1])
	}
	rest := strings.TrimSpace(s[end+1:])
	count := 1
	if strings.HasPrefix(rest, "<repeats ") {
		gt := strings.IndexByte(rest, '>')
		if gt == -1 {
			return "", s, fmt.Errorf("unterminated repeat count")
		}
		n, err := strconv.Atoi(strings.TrimSuffix(rest[len("<repeats "):gt], " times"))
		if err != nil || n <= 0 {
			return "", s, fmt.Errorf("bad repeat count %q", rest[:gt+1])
		}
		count = n
		rest = rest[gt+1:]
	}
	return strings.Repeat(ch, count), rest, nil
}

// stripCast removes a leading "(type) " that the host prints in front of pointers.
func stripCast(s string) string {
	if !strings.HasPrefix(s, "(") {
		return s
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[i+1:])
			}
		}
	}
	return s
}

// Unquote parses a C string literal at the beginning of s (which must start with a double quote)
// and returns its contents and the rest of s after the closing quote.
// It understands the escapes the host uses: \n \t \\ \" and friends, \xHH and octal \NNN.
func Unquote(s string) (string, string, error) {
	if s == "" || s[0] != '"' {
		return "", s, fmt.Errorf("string does not start with a quote")
	}
	var buf strings.Builder
	for i := 1; i < len(s); i++ {
		ch := s[i]
		if ch == '"' {
			return buf.String(), s[i+1:], nil
		}
		if ch != '\\' {
			buf.WriteByte(ch)
			continue
		}
		i++
		if i == len(s) {
			break
		}
		switch esc := s[i]; esc {
		case 'n':
			buf.WriteByte('\n')
		case 't':
			buf.WriteByte('\t')
		case 'r':
			buf.WriteByte('\r')
		case 'a':
			buf.WriteByte('\a')
		case 'b':
			buf.WriteByte('\b')
		case 'f':
			buf.WriteByte('\f')
		case 'v':
			buf.WriteByte('\v')
		case 'e':
			buf.WriteByte(0x1b)
		case 'x':
			end := i + 1
			for end < len(s) && end < i+3 && isHex(s[end]) {
				end++
			}
			if end == i+1 {
				return "", s, fmt.Errorf("bad \\x escape")
			}
			n, _ := strconv.ParseUint(s[i+1:end], 16, 8)
			buf.WriteByte(byte(n))
			i = end - 1
		case '0', '1', '2', '3', '4', '5', '6', '7':
			end := i
			for end < len(s) && end < i+3 && s[end] >= '0' && s[end] <= '7' {
				end++
			}
			n, err := strconv.ParseUint(s[i:end], 8, 8)
			if err != nil {
				return "", s, fmt.Errorf("bad octal escape %q", s[i:end])
			}
			buf.WriteByte(byte(n))
			i = end - 1
		default:
			// \\ \" \' and unknown escapes stand for the character itself.
			buf.WriteByte(esc)
		}
	}
	return "", s, fmt.Errorf("unterminated string")
}

func isHex(ch byte) bool {
	return ch >= '0' && ch <= '9' || ch >= 'a' && ch <= 'f' || ch >= 'A' && ch <= 'F'
}

// Quote renders s as a C string literal acceptable in host expressions and commands.
func Quote(s string) string {
	var buf strings.Builder
	buf.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; {
		case ch == '"' || ch == '\\':
			buf.WriteByte('\\')
			buf.WriteByte(ch)
		case ch == '\n':
			buf.WriteString(`\n`)
		case ch == '\t':
			buf.WriteString(`\t`)
		case ch < 0x20 || ch >= 0x7f:
			fmt.Fprintf(&buf, "\\%03o", ch)
		default:
			buf.WriteByte(ch)
		}
	}
	buf.WriteByte('"')
	return buf.String()
}
