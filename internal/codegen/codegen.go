// Package codegen translates an optimized IR program directly into x86-64
// machine code, using internal/x86's mnemonic emitters and internal/execbuf
// to hold and eventually execute the result. It owns the one code-layout
// decision spec §4.G leaves to the generator: the fixed register
// assignment (r10 tape base, r11 cell index, r13/r14 runtime routine
// addresses, r15 wrap constant, rax/rcx/rdx scratch; r12 is saved and
// restored but otherwise unused) and the loop-bracket jump-patching
// scheme.
//
// Generate is the only entry point. Everything else here is a private
// per-opcode emission helper, mirroring the one-pass, no-register-allocator
// style of the teacher's own code generator (codegen.go): every
// instruction either has a fixed home or is computed and consumed
// immediately.
package codegen

import (
	"fmt"

	"github.com/xyproto/bfjit/internal/diag"
	"github.com/xyproto/bfjit/internal/execbuf"
	"github.com/xyproto/bfjit/internal/ir"
	"github.com/xyproto/bfjit/internal/runtime"
	"github.com/xyproto/bfjit/internal/x86"
)

// gen carries the sticky first error across a sequence of emit calls, the
// same shape as bytes.Buffer/bufio.Writer's own error handling, so the
// per-opcode emitters below read as a flat list of instructions rather
// than an if-err chain per byte slice.
type gen struct {
	buf *execbuf.Buffer
	err error
}

func (g *gen) emit(code []byte) int {
	if g.err != nil {
		return -1
	}
	off, err := g.buf.Append(code)
	if err != nil {
		g.err = err
		return -1
	}
	return off
}

func (g *gen) patch32(offset int, v int32) {
	if g.err != nil {
		return
	}
	g.err = g.buf.PatchInt32(offset, v)
}

func (g *gen) patch64(offset int, v uint64) {
	if g.err != nil {
		return
	}
	g.err = g.buf.PatchUint64(offset, v)
}

// Symbol is one named, sized span of emitted code, for the optional perf
// symbol-map side channel (spec §6). Generate always collects these; it
// costs a slice append per instruction and the caller is free to ignore
// the result when -g/--gen-syms wasn't requested.
type Symbol struct {
	Offset int
	Size   int
	Label  string
}

// loopSite records what a Loop instruction needs once its matching
// EndLoop is reached: where to jump back to, and where to patch the
// forward skip-past-the-loop displacement.
type loopSite struct {
	checkStart    int // offset of the condition test, the backward jump target
	jzRel32Offset int // offset of the Jz instruction's 4-byte rel32 field
}

// Generate assembles prog into a fresh executable buffer targeting a tape
// of n cells of width starting at tapeAddr, wired to the given EOF policy
// and output-flush mode. The returned buffer is already executable; the
// caller enters it with Buffer.Enter.
func Generate(prog []ir.Instruction, tapeAddr uintptr, n int64, width ir.CellWidth, policy runtime.EOFPolicy, flush bool) (*execbuf.Buffer, []Symbol, error) {
	buf, err := execbuf.New()
	if err != nil {
		return nil, nil, err
	}
	g := &gen{buf: buf}
	var syms []Symbol

	// Buffer.Enter starts at offset 0, so the buffer opens with a jump over
	// the runtime routines to the prelude.
	entryJmp := g.emit(x86.Jmp(0))

	inputOff, err := buf.Append(runtime.EmitInputRoutine(policy))
	if err != nil {
		buf.Close()
		return nil, nil, err
	}
	outputOff, err := buf.Append(runtime.EmitOutputRoutine(flush))
	if err != nil {
		buf.Close()
		return nil, nil, err
	}

	preludeStart := buf.CurrentOffset()
	g.patch32(entryJmp+1, int32(preludeStart-(entryJmp+5)))
	outAddrPatch, inAddrPatch := g.prelude(tapeAddr, n)
	syms = append(syms, Symbol{Offset: preludeStart, Size: buf.CurrentOffset() - preludeStart, Label: "jit_prelude"})

	g.body(prog, width, n, &syms)

	epilogueStart := buf.CurrentOffset()
	g.epilogue()
	syms = append(syms, Symbol{Offset: epilogueStart, Size: buf.CurrentOffset() - epilogueStart, Label: "jit_epilogue"})

	if g.err != nil {
		buf.Close()
		return nil, nil, g.err
	}

	// The runtime-routine addresses aren't fixed until the buffer is done
	// growing (a grow remaps the whole region), so they're baked in last.
	g.patch64(outAddrPatch, uint64(buf.AddressAt(outputOff)))
	g.patch64(inAddrPatch, uint64(buf.AddressAt(inputOff)))
	if g.err != nil {
		buf.Close()
		return nil, nil, g.err
	}

	if err := buf.MakeExecutable(); err != nil {
		buf.Close()
		return nil, nil, err
	}
	return buf, syms, nil
}

// prelude pushes the callee-saved scratch registers, loads the fixed tape
// base and wrap constant, and reserves two placeholder MovImm64 sites for
// the runtime-routine addresses, returning the offset of each site's
// immediate field for Generate to patch once they're known.
func (g *gen) prelude(tapeAddr uintptr, n int64) (outAddrPatch, inAddrPatch int) {
	g.emit(x86.PushReg(x86.R12))
	g.emit(x86.PushReg(x86.R13))
	g.emit(x86.PushReg(x86.R14))
	g.emit(x86.PushReg(x86.R15))

	g.emit(x86.MovImm64(x86.R10, uint64(tapeAddr)))
	g.emit(x86.XorReg32(x86.R11, x86.R11))

	outSite := g.emit(x86.MovImm64(x86.R13, 0))
	outAddrPatch = outSite + 2
	inSite := g.emit(x86.MovImm64(x86.R14, 0))
	inAddrPatch = inSite + 2

	g.emit(x86.MovImm64(x86.R15, uint64(wrapConstant(n))))
	return outAddrPatch, inAddrPatch
}

func (g *gen) epilogue() {
	g.emit(x86.PopReg(x86.R15))
	g.emit(x86.PopReg(x86.R14))
	g.emit(x86.PopReg(x86.R13))
	g.emit(x86.PopReg(x86.R12))
	g.emit(x86.Ret())
}

// body walks prog once, emitting straight-line code and threading loop
// bookkeeping through loopSites, keyed by the label the parser already
// assigned each bracket pair (spec's IR guarantees Loop/EndLoop share a
// label, so no explicit nesting stack is needed here).
func (g *gen) body(prog []ir.Instruction, width ir.CellWidth, n int64, syms *[]Symbol) {
	wb := width.Bytes()
	cell := x86.Mem{Base: x86.R10, Index: x86.R11, Scale: wb}
	loopSites := make(map[int64]loopSite)

	for idx, ins := range prog {
		start := g.buf.CurrentOffset()
		switch ins.Op {
		case ir.Add:
			g.emit(x86.AddImmToCell(wb, cell, ins.A))
		case ir.Const:
			g.emit(x86.MovImmToCell(wb, cell, ins.A))
		case ir.Adp:
			g.emitAdp(ins.A, n)
		case ir.Mul:
			g.emitMul(ins.A, ins.B, n, wb, cell)
		case ir.Out:
			g.emitOut(cell)
		case ir.In:
			g.emitIn(wb, cell)
		case ir.Loop:
			g.emitLoopOpen(wb, ins.A, cell, loopSites)
		case ir.EndLoop:
			g.emitLoopClose(ins.A, loopSites)
		case ir.Invalid:
			if g.err == nil {
				g.err = diag.Internalf("Invalid opcode reached code generator at instruction %d", idx)
			}
		default:
			if g.err == nil {
				g.err = diag.Internalf("unhandled opcode %v at instruction %d", ins.Op, idx)
			}
		}
		if size := g.buf.CurrentOffset() - start; size > 0 {
			*syms = append(*syms, Symbol{
				Offset: start,
				Size:   size,
				Label:  fmt.Sprintf("JIT OP: #%d %s %d %d %d", idx, ins.Op, ins.A, ins.B, ins.C),
			})
		}
	}
}

// emitAdp normalizes the displacement modulo the tape length at compile
// time (k is always a literal here), special-cases the common Adp(1) as a
// single INC, and otherwise wraps r11d back into [0, n) with the
// power-of-two AND mask or the branchless cmp/cmovge/sub sequence.
func (g *gen) emitAdp(k, n int64) {
	norm := wrapMod(k, n)
	if norm == 0 {
		return
	}
	if norm == 1 {
		g.emit(x86.IncReg32(x86.R11))
	} else {
		g.emit(x86.AddImm32ToReg(x86.R11, int32(norm)))
	}
	g.emitWrap(x86.R11, x86.RAX, n)
}

// emitWrap reduces reg (already known to be non-negative) back into
// [0, n) in place, using scratch as throwaway working space for the
// non-power-of-two branchless form.
func (g *gen) emitWrap(reg, scratch x86.Reg, n int64) {
	if isPow2(n) {
		g.emit(x86.AndReg32(reg, x86.R15))
		return
	}
	g.emit(x86.MovReg32(scratch, reg))
	g.emit(x86.SubReg32(scratch, x86.R15))
	g.emit(x86.CmpReg32(reg, x86.R15))
	g.emit(x86.CmovGE32(reg, scratch))
}

// emitMul computes the remote cell's index into ecx (same normalize-then-
// wrap scheme as Adp, applied to r11+offset without disturbing r11
// itself), multiplies the current cell by factor into eax, and folds the
// result into the remote cell with a single read-modify-write add.
func (g *gen) emitMul(offset, factor, n int64, wb int, cell x86.Mem) {
	norm := wrapMod(offset, n)
	g.emit(x86.MovReg32(x86.RCX, x86.R11))
	if norm == 1 {
		g.emit(x86.IncReg32(x86.RCX))
		g.emitWrap(x86.RCX, x86.RDX, n)
	} else if norm != 0 {
		g.emit(x86.AddImm32ToReg(x86.RCX, int32(norm)))
		g.emitWrap(x86.RCX, x86.RDX, n)
	}
	remote := x86.Mem{Base: x86.R10, Index: x86.RCX, Scale: wb}

	g.emit(x86.LoadCellZX(wb, x86.RAX, cell))
	switch factor {
	case 1:
		// eax already holds the value to add.
	case -1:
		g.emit(x86.NegReg32(x86.RAX))
	default:
		g.emit(x86.MovImm32ToReg(x86.RDX, int32(factor)))
		g.emit(x86.Imul32(x86.RAX, x86.RDX))
	}
	g.emit(x86.AddRegToCellCombine(wb, remote, x86.RAX))
}

// emitOut zero-extends the current cell into edi and calls through r13,
// saving r10/r11/rbp around the call per spec §4.G; the save of r11 is
// required, since the routine's SYSCALL (runtime.EmitOutputRoutine)
// overwrites r11.
func (g *gen) emitOut(cell x86.Mem) {
	g.emit(x86.LoadCellZX(1, x86.RDI, cell))
	g.emit(x86.PushReg(x86.R10))
	g.emit(x86.PushReg(x86.R11))
	g.emit(x86.PushReg(x86.RBP))
	g.emit(x86.CallReg(x86.R13))
	g.emit(x86.PopReg(x86.RBP))
	g.emit(x86.PopReg(x86.R11))
	g.emit(x86.PopReg(x86.R10))
}

// emitIn zero-extends the current cell into edi (consulted only by the
// don't-modify EOF policy; always the cell's low byte regardless of cell
// width, matching emitOut's identical load), calls through r14, and stores
// the full-width returned byte back into the current cell — width wb, so a
// 16/32-bit cell's upper bytes are zeroed rather than left stale, matching
// Tape16/Tape32.Set's whole-cell replacement.
func (g *gen) emitIn(wb int, cell x86.Mem) {
	g.emit(x86.LoadCellZX(1, x86.RDI, cell))
	g.emit(x86.PushReg(x86.R10))
	g.emit(x86.PushReg(x86.R11))
	g.emit(x86.PushReg(x86.RBP))
	g.emit(x86.CallReg(x86.R14))
	g.emit(x86.PopReg(x86.RBP))
	g.emit(x86.PopReg(x86.R11))
	g.emit(x86.PopReg(x86.R10))
	g.emit(x86.StoreCell(wb, cell, x86.RAX))
}

// emitLoopOpen emits the condition test ("is the current cell zero?") and
// a placeholder six-byte Jz, recording both the address to jump back to
// and the offset of the rel32 field emitLoopClose must patch. The test
// loads the full-width cell (wb), not just its low byte, so a 16/32-bit
// cell holding e.g. 256 isn't misread as zero.
func (g *gen) emitLoopOpen(wb int, label int64, cell x86.Mem, sites map[int64]loopSite) {
	checkStart := g.buf.CurrentOffset()
	g.emit(x86.LoadCellZX(wb, x86.RAX, cell))
	g.emit(x86.TestReg32(x86.RAX))
	jzStart := g.emit(x86.Jz(0))
	sites[label] = loopSite{checkStart: checkStart, jzRel32Offset: jzStart + 2}
}

// emitLoopClose emits the five-byte backward Jmp to the matching loop's
// condition test, then patches that loop's Jz to land just past this Jmp.
func (g *gen) emitLoopClose(label int64, sites map[int64]loopSite) {
	site, ok := sites[label]
	if !ok {
		if g.err == nil {
			g.err = diag.Internalf("EndLoop(#%d) with no matching Loop in code generator", label)
		}
		return
	}
	delete(sites, label)

	jmpStart := g.buf.CurrentOffset()
	g.emit(x86.Jmp(0))
	jmpEnd := jmpStart + 5
	g.patch32(jmpStart+1, int32(site.checkStart-jmpEnd))

	loopEnd := g.buf.CurrentOffset()
	jzEnd := site.jzRel32Offset + 4
	g.patch32(site.jzRel32Offset, int32(loopEnd-jzEnd))
}

// wrapMod reduces k modulo n into [0, n); n is assumed positive.
func wrapMod(k, n int64) int64 {
	k %= n
	if k < 0 {
		k += n
	}
	return k
}

func isPow2(n int64) bool {
	return n > 0 && n&(n-1) == 0
}

// wrapConstant returns what r15 holds for a tape of n cells: n-1 for a
// power-of-two tape (so AND can do the reduction), n itself otherwise (so
// the branchless cmp/cmovge/sub form has a threshold to compare against).
func wrapConstant(n int64) int64 {
	if isPow2(n) {
		return n - 1
	}
	return n
}
