// Package ir defines the tagged instruction record that sits between the
// Brainfuck parser and everything downstream of it: the optimizer, the
// interpreter, and the code generator all operate on []Instruction.
package ir

import "fmt"

// OpCode is the discriminant of an Instruction.
type OpCode int

const (
	Add OpCode = iota
	Const
	Adp
	Mul
	In
	Out
	Loop
	EndLoop
	Invalid
)

func (op OpCode) String() string {
	switch op {
	case Add:
		return "Add"
	case Const:
		return "Const"
	case Adp:
		return "Adp"
	case Mul:
		return "Mul"
	case In:
		return "In"
	case Out:
		return "Out"
	case Loop:
		return "Loop"
	case EndLoop:
		return "EndLoop"
	case Invalid:
		return "Invalid"
	default:
		return "Unknown"
	}
}

// Instruction is a tagged record with up to three integer operands. Only A
// and sometimes B are used by any given opcode; C is reserved for future
// use and is always zero in this implementation.
type Instruction struct {
	Op      OpCode
	A, B, C int64
}

func (ins Instruction) String() string {
	switch ins.Op {
	case Add, Adp, Const:
		return fmt.Sprintf("%s(%d)", ins.Op, ins.A)
	case Mul:
		return fmt.Sprintf("Mul(%d,%d)", ins.A, ins.B)
	case Loop, EndLoop:
		return fmt.Sprintf("%s(#%d)", ins.Op, ins.A)
	default:
		return ins.Op.String()
	}
}

// CellWidth is the bit width of a single tape cell.
type CellWidth int

const (
	Width8  CellWidth = 8
	Width16 CellWidth = 16
	Width32 CellWidth = 32
)

// Valid reports whether w is one of the three supported cell widths.
func (w CellWidth) Valid() bool {
	return w == Width8 || w == Width16 || w == Width32
}

// Bytes returns the width in bytes (1, 2, or 4).
func (w CellWidth) Bytes() int {
	return int(w) / 8
}
