// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package debugger

import (
	"context"
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// MaxInstLen is the longest x86 instruction.
const MaxInstLen = 15

// Disassemble decodes one x86_64 instruction at addr and returns it in AT&T syntax with its length.
func Disassemble(code []byte, addr uint64) (string, int, error) {
	inst, err := x86asm.Decode(code, 64)
	if err != nil {
		return "", 0, fmt.Errorf("failed to decode instruction at %#x: %w", addr, err)
	}
	return x86asm.GNUSyntax(inst, addr, nil), inst.Len, nil
}

// DescribeAddress reads and decodes the instruction at a raw address location.
// The decoded text shows whether a hand-placed address is an instruction boundary.
func DescribeAddress(ctx context.Context, host Host, addr uint64) (string, error) {
	code, err := host.ReadMemory(ctx, addr, MaxInstLen)
	if err != nil {
		return "", err
	}
	text, _, err := Disassemble(code, addr)
	return text, err
}
