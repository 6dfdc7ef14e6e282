// Package optimize implements the fixed pipeline of peephole and
// loop-level rewrites applied to Brainfuck IR before interpretation or code
// generation: fold, dead-code elimination, and multiply-loop rewriting, run
// to a fixed point.
//
// The outer loop structure mirrors the teacher's own "pass returns
// sawChange, re-run until none report a change" idiom (optimizer.go); the
// design notes (spec §9) call out a historical bug where the fold pass
// always returned false regardless of whether it coalesced anything, which
// stalls the fixed point early. Optimize avoids that bug by name.
package optimize

import "github.com/xyproto/bfjit/internal/ir"

// Optimize runs fold, dce, and the multiply-loop rewrite in a loop until a
// full round reports no change, and returns the reduced program. prog is
// consumed; the optimizer is free to mutate and compact it in place.
func Optimize(prog []ir.Instruction) []ir.Instruction {
	for {
		changed := false

		if foldPass(prog) {
			changed = true
		}
		prog, _ = dcePass(prog)

		if rewrote := multiplyLoopPass(prog); rewrote {
			changed = true
		}
		prog, _ = dcePass(prog)

		if !changed {
			return prog
		}
	}
}

// foldPass scans left to right; while successive instructions share an
// opcode and that opcode is foldable (Add or Adp), the run's first element
// accumulates the operand and the rest are marked Invalid. Returns true if
// it coalesced anything or zeroed an operand, so the outer fixed point
// knows to re-run DCE and the multiply pass.
func foldPass(prog []ir.Instruction) bool {
	changed := false
	i := 0
	for i < len(prog) {
		op := prog[i].Op
		if op != ir.Add && op != ir.Adp {
			i++
			continue
		}
		j := i + 1
		for j < len(prog) && prog[j].Op == op {
			prog[i].A += prog[j].A
			prog[j].Op = ir.Invalid
			j++
			changed = true
		}
		i = j
	}
	return changed
}

// dcePass is a two-pointer compaction that drops Invalid instructions and
// Add(0)/Adp(0), preserving order. It reports whether it dropped anything,
// though callers of Optimize do not currently need that signal separately
// from foldPass/multiplyLoopPass's own change tracking.
func dcePass(prog []ir.Instruction) ([]ir.Instruction, bool) {
	changed := false
	write := 0
	for read := 0; read < len(prog); read++ {
		ins := prog[read]
		if ins.Op == ir.Invalid {
			changed = true
			continue
		}
		if (ins.Op == ir.Add || ins.Op == ir.Adp) && ins.A == 0 {
			changed = true
			continue
		}
		prog[write] = ins
		write++
	}
	return prog[:write], changed
}
