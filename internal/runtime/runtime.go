// Package runtime assembles the small machine-code routines the code
// generator calls out to for byte I/O (spec §4.A). These are not Go
// functions: crossing from JIT-emitted code back into Go's own calling
// convention would tie the generated code to Go's internal ABI, which is
// unstable across releases and is not how the teacher repo's own
// generated code talks to the outside world (see print_syscall.go,
// exitf_syscall.go) — it emits raw read(2)/write(2) syscalls directly.
// These routines follow the same approach: each is a self-contained
// machine-code blob, written into the executable buffer once per program
// and called through a register-held address (r13 for output, r14 for
// input), exactly as spec §2's register table names them.
//
// Both routines honor spec §4.A's fixed signature — one integer argument
// in edi, one integer return value in eax — so the generated call sites
// need not know which variant is installed. Neither names r10-r15, which
// hold the engine's persistent state across the call, but the SYSCALL
// both execute overwrites r11 (and rcx), so the code generator saves
// r10/r11 itself around every call site (spec §4.G).
package runtime

import "github.com/xyproto/bfjit/internal/x86"

// EOFPolicy selects what the input routine does when read(2) returns no
// data, per spec §4.A / §9.
type EOFPolicy int

const (
	EOFReturn0 EOFPolicy = iota
	EOFReturn255
	EOFDontModify
)

func (p EOFPolicy) String() string {
	switch p {
	case EOFReturn0:
		return "return0"
	case EOFReturn255:
		return "return255"
	case EOFDontModify:
		return "dont-modify"
	default:
		return "unknown"
	}
}

// stackBuf addresses the one-byte scratch buffer each routine carves out
// of its own stack frame: [rsp + rsp*1], which the SIB encoding collapses
// to plain [rsp] since index=rsp signals "no index".
var stackBuf = x86.Mem{Base: x86.RSP, Index: x86.RSP, Scale: 1}

// patchRel32 writes target's little-endian rel32 displacement, computed
// relative to the end of the jump instruction at jumpEnd, into buf at
// jumpEnd-4 (the four bytes just emitted as a placeholder).
func patchRel32(buf []byte, jumpEnd, target int) {
	rel := int32(target - jumpEnd)
	buf[jumpEnd-4] = byte(rel)
	buf[jumpEnd-3] = byte(rel >> 8)
	buf[jumpEnd-2] = byte(rel >> 16)
	buf[jumpEnd-1] = byte(rel >> 24)
}

// EmitInputRoutine assembles the input routine (spec's In opcode target):
// it performs a single-byte read(2) from fd 0 and resolves EOF per
// policy. Entry: edi = current cell value, used only by EOFDontModify.
// edi is pushed before the syscall (which needs edi for the fd argument)
// and popped back for the EOF branch, rather than read through a
// displaced stack address, so every memory operand here stays a plain
// [rsp] — the one addressing form internal/x86/mem.go already encodes.
func EmitInputRoutine(policy EOFPolicy) []byte {
	var buf []byte
	emit := func(b []byte) { buf = append(buf, b...) }

	emit(x86.PushReg(x86.RDI)) // save current cell value
	emit(x86.SubImm64FromReg(x86.RSP, 8))
	emit(x86.MovImm32ToReg(x86.RAX, 0)) // SYS_read
	emit(x86.MovImm32ToReg(x86.RDI, 0)) // fd 0
	emit(x86.MovReg64(x86.RSI, x86.RSP))
	emit(x86.MovImm32ToReg(x86.RDX, 1))
	emit(x86.Syscall())

	emit(x86.TestReg32(x86.RAX))
	jzEOF := len(buf) + len(x86.Jz(0))
	emit(x86.Jz(0)) // patched below: a clean EOF (read returned 0)
	jsEOF := len(buf) + len(x86.Js(0))
	emit(x86.Js(0)) // patched below: a syscall error (negative return, e.g. EINTR)

	// Success: the byte just read is sitting in the stack buffer.
	emit(x86.LoadCellZX(1, x86.RAX, stackBuf))
	emit(x86.AddImm64ToReg(x86.RSP, 8))
	emit(x86.PopReg(x86.RDI))
	emit(x86.Ret())

	eofStart := len(buf)
	emit(x86.AddImm64ToReg(x86.RSP, 8))
	emit(x86.PopReg(x86.RDI)) // edi = original current-cell value
	switch policy {
	case EOFReturn0:
		emit(x86.MovImm32ToReg(x86.RAX, 0))
	case EOFReturn255:
		emit(x86.MovImm32ToReg(x86.RAX, 255))
	case EOFDontModify:
		emit(x86.MovReg32(x86.RAX, x86.RDI))
	}
	emit(x86.Ret())

	patchRel32(buf, jzEOF, eofStart)
	patchRel32(buf, jsEOF, eofStart)
	return buf
}

// EmitOutputRoutine assembles the output routine (spec's Out opcode
// target): it performs a single-byte write(2) to fd 1. Entry: edi = byte
// to write. flush exists to keep -n/--no-flush's two named routines
// distinct at the API level; both compile to the same bytes here since a
// raw write(2) has no userspace buffer to flush in the first place.
func EmitOutputRoutine(flush bool) []byte {
	var buf []byte
	emit := func(b []byte) { buf = append(buf, b...) }

	emit(x86.SubImm64FromReg(x86.RSP, 8))
	emit(x86.StoreCell(1, stackBuf, x86.RDI)) // save arg before edi is reused below
	emit(x86.MovImm32ToReg(x86.RAX, 1))       // SYS_write
	emit(x86.MovImm32ToReg(x86.RDI, 1))       // fd 1
	emit(x86.MovReg64(x86.RSI, x86.RSP))
	emit(x86.MovImm32ToReg(x86.RDX, 1))
	emit(x86.Syscall())
	emit(x86.AddImm64ToReg(x86.RSP, 8))
	emit(x86.Ret())
	return buf
}
