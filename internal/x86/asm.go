package x86

// This file implements exactly the instruction forms spec §4.G names,
// following the teacher's one-function-per-mnemonic style (add.go, mov.go,
// cmp.go, jmp.go, ...) collapsed onto the single architecture and the
// single fixed register assignment this project uses — no general operand
// encoder, no register allocator: every function here emits one
// register-form instruction for caller-chosen registers; the tape-cell
// memory-operand forms [base + index*scale] live in mem.go.

// PushReg emits PUSH r64.
func PushReg(r Reg) []byte {
	if r.ext() {
		return []byte{rex(false, false, false, true), 0x50 + r.low3()}
	}
	return []byte{0x50 + r.low3()}
}

// PopReg emits POP r64.
func PopReg(r Reg) []byte {
	if r.ext() {
		return []byte{rex(false, false, false, true), 0x58 + r.low3()}
	}
	return []byte{0x58 + r.low3()}
}

// MovImm64 emits MOV r64, imm64 — used in the prelude to bake the tape
// base address and the two runtime-routine addresses into r10/r13/r14, and
// the wrap constant into r15.
func MovImm64(dst Reg, imm uint64) []byte {
	out := []byte{rex(true, false, false, dst.ext()), 0xB8 + dst.low3()}
	return append(out, le64(imm)...)
}

// MovImm32ToReg emits MOV r32, imm32 (zero-extends into the full 64-bit
// register, which is fine: this project never relies on the upper 32 bits
// of a scratch register across this call).
func MovImm32ToReg(dst Reg, imm int32) []byte {
	out := []byte{}
	if dst.ext() {
		out = append(out, rex(false, false, false, true))
	}
	out = append(out, 0xB8+dst.low3())
	return append(out, le32(imm)...)
}

// AddImm32ToReg emits ADD r32, imm32 (register-direct form, used by Adp to
// add its already cell-tape-normalized displacement into r11d).
func AddImm32ToReg(dst Reg, imm int32) []byte {
	out := []byte{rex(false, false, false, dst.ext()), 0x81, modrm(3, 0, dst.low3())}
	return append(out, le32(imm)...)
}

// IncReg32 emits INC r32 — the special case for Adp(1) and Mul offset 1.
func IncReg32(dst Reg) []byte {
	return []byte{rex(false, false, false, dst.ext()), 0xFF, modrm(3, 0, dst.low3())}
}

// MovReg32 emits MOV r32, r32 (dst <- src).
func MovReg32(dst, src Reg) []byte {
	return []byte{rex(false, src.ext(), false, dst.ext()), 0x89, modrm(3, src.low3(), dst.low3())}
}

// MovReg64 emits MOV r64, r64 (dst <- src) — needed wherever a full pointer
// width value crosses registers, such as handing a stack address to a
// syscall argument register.
func MovReg64(dst, src Reg) []byte {
	return []byte{rex(true, src.ext(), false, dst.ext()), 0x89, modrm(3, src.low3(), dst.low3())}
}

// AddImm64ToReg emits ADD r64, imm32 (sign-extended) — stack pointer
// arithmetic needs the REX.W form since the 32-bit form would zero the
// upper half of rsp.
func AddImm64ToReg(dst Reg, imm int32) []byte {
	out := []byte{rex(true, false, false, dst.ext()), 0x81, modrm(3, 0, dst.low3())}
	return append(out, le32(imm)...)
}

// SubImm64FromReg emits SUB r64, imm32 (sign-extended).
func SubImm64FromReg(dst Reg, imm int32) []byte {
	out := []byte{rex(true, false, false, dst.ext()), 0x81, modrm(3, 5, dst.low3())}
	return append(out, le32(imm)...)
}

// AndReg32 emits AND dst32, src32 (the power-of-two wrap mask).
func AndReg32(dst, src Reg) []byte {
	return []byte{rex(false, src.ext(), false, dst.ext()), 0x21, modrm(3, src.low3(), dst.low3())}
}

// XorReg32 emits XOR dst32, src32 — used as `xor r11d, r11d` in the
// prelude to start the cell index at 0.
func XorReg32(dst, src Reg) []byte {
	return []byte{rex(false, src.ext(), false, dst.ext()), 0x31, modrm(3, src.low3(), dst.low3())}
}

// CmpReg32 emits CMP dst32, src32 (computes dst - src, sets flags).
func CmpReg32(dst, src Reg) []byte {
	return []byte{rex(false, src.ext(), false, dst.ext()), 0x39, modrm(3, src.low3(), dst.low3())}
}

// CmovGE32 emits CMOVGE dst32, src32 (dst <- src iff the prior CMP found
// dst >= src; signed, which is what spec means by cmovge here since every
// quantity involved is a small non-negative index, and N never exceeds
// int32 range).
func CmovGE32(dst, src Reg) []byte {
	return []byte{rex(false, dst.ext(), false, src.ext()), 0x0F, 0x4D, modrm(3, dst.low3(), src.low3())}
}

// SubReg32 emits SUB dst32, src32 — the final step of the branchless wrap.
func SubReg32(dst, src Reg) []byte {
	return []byte{rex(false, src.ext(), false, dst.ext()), 0x29, modrm(3, src.low3(), dst.low3())}
}

// NegReg32 emits NEG r32.
func NegReg32(dst Reg) []byte {
	return []byte{rex(false, false, false, dst.ext()), 0xF7, modrm(3, 3, dst.low3())}
}

// Imul32 emits the two-operand IMUL dst32, src32 (dst <- dst * src).
func Imul32(dst, src Reg) []byte {
	return []byte{rex(false, dst.ext(), false, src.ext()), 0x0F, 0xAF, modrm(3, dst.low3(), src.low3())}
}

// CallReg emits CALL r/m64 (indirect call through a register), the
// instruction Out/In use to transfer control to a baked-in runtime-routine
// address held in r13/r14.
func CallReg(r Reg) []byte {
	if r.ext() {
		return []byte{rex(false, false, false, true), 0xFF, modrm(3, 2, r.low3())}
	}
	return []byte{0xFF, modrm(3, 2, r.low3())}
}

// TestReg32 emits TEST r32, r32 (r & r, sets ZF iff r == 0).
func TestReg32(r Reg) []byte {
	return []byte{rex(false, r.ext(), false, r.ext()), 0x85, modrm(3, r.low3(), r.low3())}
}

// Ret emits RET.
func Ret() []byte { return []byte{0xC3} }

// Syscall emits SYSCALL.
func Syscall() []byte { return []byte{0x0F, 0x05} }

// Jz emits a near conditional jump on ZF (six bytes total: 0F 84 + rel32),
// matching the size spec §4.G calls out explicitly for the forward-patched
// loop-entry test.
func Jz(rel int32) []byte {
	return append([]byte{0x0F, 0x84}, le32(rel)...)
}

// Js emits a near conditional jump on SF (six bytes total: 0F 88 + rel32),
// used alongside Jz to treat a negative syscall return (an error, not a
// clean EOF) the same as a zero return.
func Js(rel int32) []byte {
	return append([]byte{0x0F, 0x88}, le32(rel)...)
}

// Jmp emits a near unconditional jump (five bytes total: E9 + rel32),
// matching spec §4.G's backward loop-close jump.
func Jmp(rel int32) []byte {
	return append([]byte{0xE9}, le32(rel)...)
}
