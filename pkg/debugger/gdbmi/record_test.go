// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package gdbmi

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line string
		want *Record
	}{
		{
			line: `(gdb) `,
			want: &Record{Kind: KindPrompt, Token: -1},
		},
		{
			line: `12^done,value="0xffff888004a6c000"`,
			want: &Record{Kind: KindResult, Token: 12, Class: "done", Results: Tuple{
				{"value", "0xffff888004a6c000"},
			}},
		},
		{
			line: `^running`,
			want: &Record{Kind: KindResult, Token: -1, Class: "running"},
		},
		{
			line: `3^error,msg="No symbol \"foo\" in current context."`,
			want: &Record{Kind: KindResult, Token: 3, Class: "error", Results: Tuple{
				{"msg", `No symbol "foo" in current context.`},
			}},
		},
		{
			line: `~"Reading symbols from vmlinux...\n"`,
			want: &Record{Kind: KindConsole, Token: -1, Text: "Reading symbols from vmlinux...\n"},
		},
		{
			line: `&"warning: tab\there\n"`,
			want: &Record{Kind: KindLog, Token: -1, Text: "warning: tab\there\n"},
		},
		{
			line: `*stopped,reason="breakpoint-hit",bkptno="2",frame={addr="0xffffffff813e5c2d",` +
				`func="do_sys_open",args=[{name="dfd",value="-100"}],file="fs/open.c",line="1220"},thread-id="1"`,
			want: &Record{Kind: KindExec, Token: -1, Class: "stopped", Results: Tuple{
				{"reason", "breakpoint-hit"},
				{"bkptno", "2"},
				{"frame", Tuple{
					{"addr", "0xffffffff813e5c2d"},
					{"func", "do_sys_open"},
					{"args", List{Tuple{{"name", "dfd"}, {"value", "-100"}}}},
					{"file", "fs/open.c"},
					{"line", "1220"},
				}},
				{"thread-id", "1"},
			}},
		},
		{
			line: `7^done,memory=[{begin="0x1000",offset="0x0",end="0x1004",contents="deadbeef"}]`,
			want: &Record{Kind: KindResult, Token: 7, Class: "done", Results: Tuple{
				{"memory", List{Tuple{
					{"begin", "0x1000"},
					{"offset", "0x0"},
					{"end", "0x1004"},
					{"contents", "deadbeef"},
				}}},
			}},
		},
		{
			line: `=breakpoint-modified,bkpt={number="1",times="3"}`,
			want: &Record{Kind: KindNotify, Token: -1, Class: "breakpoint-modified", Results: Tuple{
				{"bkpt", Tuple{{"number", "1"}, {"times", "3"}}},
			}},
		},
		{
			line: `^done,BreakpointTable={body=[bkpt={number="1"},bkpt={number="2"}],hdr=[]}`,
			want: &Record{Kind: KindResult, Token: -1, Class: "done", Results: Tuple{
				{"BreakpointTable", Tuple{
					{"body", List{
						Result{"bkpt", Tuple{{"number", "1"}}},
						Result{"bkpt", Tuple{{"number", "2"}}},
					}},
					{"hdr", List{}},
				}},
			}},
		},
		{
			line: `^done,empty={}`,
			want: &Record{Kind: KindResult, Token: -1, Class: "done", Results: Tuple{
				{"empty", Tuple{}},
			}},
		},
	}
	for _, test := range tests {
		t.Run(test.line, func(t *testing.T) {
			rec, err := Parse(test.line)
			require.NoError(t, err)
			if diff := cmp.Diff(test.want, rec); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, line := range []string{
		`12`,
		`!done`,
		`^`,
		`^done,`,
		`^done,value`,
		`^done,value="unterminated`,
		`^done,list=[1`,
		`^done,tuple={a="b"`,
		`~not-a-string`,
	} {
		_, err := Parse(line)
		assert.Error(t, err, "line: %q", line)
	}
}

func TestTupleAccessors(t *testing.T) {
	rec, err := Parse(`^done,bkpt={number="4",addr="0xffffffff81234567"},list=["a","b"]`)
	require.NoError(t, err)
	assert.Equal(t, "4", rec.Results.Tuple("bkpt").String("number"))
	assert.Equal(t, List{"a", "b"}, rec.Results.List("list"))
	assert.Empty(t, rec.Results.String("bkpt"))
	assert.Nil(t, rec.Results.Tuple("missing"))
	assert.Nil(t, rec.Results.Get("missing"))
}
