// Package x86 is a minimal x86-64 instruction assembler: a set of
// mnemonic-named functions, each returning the raw bytes for one
// instruction. It implements only the forms the code generator and runtime
// stubs actually need (spec §4.G), following the teacher repo's pattern of
// one small emitter per mnemonic (add.go, mov.go, cmp.go, ...) rather than
// a general-purpose assembler or external dependency — no library in the
// example pack targets raw x86-64 encoding without also pulling in a full
// multi-architecture backend (ARM64/RISC-V) this project has no use for.
package x86

// Reg is a 64-bit general-purpose register, encoded exactly as the x86-64
// ModRM/SIB "reg" field expects: 0-7 for rax..rdi, 8-15 for r8..r15 (the
// latter requiring a REX prefix bit to address).
type Reg uint8

const (
	RAX Reg = 0
	RCX Reg = 1
	RDX Reg = 2
	RBX Reg = 3
	RSP Reg = 4
	RBP Reg = 5
	RSI Reg = 6
	RDI Reg = 7
	R8  Reg = 8
	R9  Reg = 9
	R10 Reg = 10
	R11 Reg = 11
	R12 Reg = 12
	R13 Reg = 13
	R14 Reg = 14
	R15 Reg = 15
)

// low3 is the 3-bit field stored directly in ModRM/SIB/opcode+reg bytes;
// the 4th bit (whether the register is r8-r15) goes into the REX prefix.
func (r Reg) low3() byte { return byte(r) & 0x7 }

// ext reports whether r needs a REX extension bit set (r8-r15).
func (r Reg) ext() bool { return byte(r)&0x8 != 0 }
