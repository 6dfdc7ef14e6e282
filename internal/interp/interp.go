// Package interp is the tree-walking reference oracle: it executes IR
// directly over a tape with no machine-code generation at all. It is the
// --use-interpreter fallback and the reference semantics for the JIT.
package interp

import (
	"io"

	"github.com/xyproto/bfjit/internal/diag"
	"github.com/xyproto/bfjit/internal/ir"
	"github.com/xyproto/bfjit/internal/runtime"
)

// Tape is the cell-width-agnostic interface the interpreter mutates; Tape8,
// Tape16, and Tape32 in the engine package implement it.
type Tape interface {
	Len() int
	Get(i int) int64
	Set(i int, v int64)
}

// Run interprets prog against tape, reading from in and writing to out
// under the given EOF policy. The data pointer starts at cell 0. It
// returns the final data pointer, mirroring the position the JIT would
// leave r11 in on return.
func Run(prog []ir.Instruction, tape Tape, policy runtime.EOFPolicy, in io.ByteReader, out io.ByteWriter, flush func() error) (int, error) {
	openClose, closeOpen, err := buildJumpTable(prog)
	if err != nil {
		return 0, err
	}

	n := int64(tape.Len())
	dp := 0

	for i := 0; i < len(prog); i++ {
		ins := prog[i]
		switch ins.Op {
		case ir.Add:
			tape.Set(dp, tape.Get(dp)+ins.A)
		case ir.Const:
			tape.Set(dp, ins.A)
		case ir.Adp:
			dp = int(wrap(int64(dp)+ins.A, n))
		case ir.Mul:
			dst := int(wrap(int64(dp)+ins.A, n))
			tape.Set(dst, tape.Get(dst)+ins.B*tape.Get(dp))
		case ir.Out:
			if err := out.WriteByte(byte(tape.Get(dp))); err != nil {
				return dp, err
			}
			if flush != nil {
				if err := flush(); err != nil {
					return dp, err
				}
			}
		case ir.In:
			b, err := readByte(in, policy, byte(tape.Get(dp)))
			if err != nil {
				return dp, err
			}
			tape.Set(dp, int64(b))
		case ir.Loop:
			if tape.Get(dp) == 0 {
				i = openClose[i]
			}
		case ir.EndLoop:
			i = closeOpen[i] - 1
		case ir.Invalid:
			return dp, diag.Internalf("Invalid opcode reached interpreter at instruction %d", i)
		default:
			return dp, diag.Internalf("unhandled opcode %v at instruction %d", ins.Op, i)
		}
	}
	return dp, nil
}

// readByte implements the three EOF policies for the single-byte reader
// contract shared with the generated runtime stubs (spec §4.A).
func readByte(in io.ByteReader, policy runtime.EOFPolicy, current byte) (byte, error) {
	b, err := in.ReadByte()
	if err == nil {
		return b, nil
	}
	if err != io.EOF {
		return 0, err
	}
	switch policy {
	case runtime.EOFReturn0:
		return 0, nil
	case runtime.EOFReturn255:
		return 255, nil
	case runtime.EOFDontModify:
		return current, nil
	default:
		return 0, diag.Internalf("unknown EOF policy %v", policy)
	}
}

// wrap reduces v modulo n into [0, n). n is assumed positive.
func wrap(v, n int64) int64 {
	v %= n
	if v < 0 {
		v += n
	}
	return v
}

// buildJumpTable pre-scans prog once to build a dense open<->close index
// map, per spec §4.F, so Loop/EndLoop execution is an O(1) jump rather than
// a re-scan.
func buildJumpTable(prog []ir.Instruction) (openClose, closeOpen map[int]int, err error) {
	openClose = make(map[int]int)
	closeOpen = make(map[int]int)
	var stack []int
	for i, ins := range prog {
		switch ins.Op {
		case ir.Loop:
			stack = append(stack, i)
		case ir.EndLoop:
			if len(stack) == 0 {
				return nil, nil, diag.Internalf("unmatched EndLoop reached interpreter at instruction %d", i)
			}
			open := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			openClose[open] = i
			closeOpen[i] = open
		}
	}
	if len(stack) != 0 {
		return nil, nil, diag.Internalf("unmatched Loop reached interpreter (%d still open)", len(stack))
	}
	return openClose, closeOpen, nil
}
