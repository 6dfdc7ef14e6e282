package optimize

import (
	"sort"

	"github.com/xyproto/bfjit/internal/ir"
)

// loopSpan is the [start, end] index pair for a Loop/EndLoop pair, found by
// a single forward scan using a stack to handle arbitrary nesting.
type loopSpan struct {
	start, end int
}

func findLoopSpans(prog []ir.Instruction) map[int64]loopSpan {
	spans := make(map[int64]loopSpan)
	var stack []struct {
		label int64
		start int
	}
	for i, ins := range prog {
		switch ins.Op {
		case ir.Loop:
			stack = append(stack, struct {
				label int64
				start int
			}{ins.A, i})
		case ir.EndLoop:
			if len(stack) == 0 {
				continue // malformed input should have been rejected by the parser
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			spans[top.label] = loopSpan{start: top.start, end: i}
		}
	}
	return spans
}

// multiplyLoopPass rewrites qualifying copy-loops — straight-line Add/Adp
// bodies with zero net pointer displacement and a net origin delta of
// exactly +1 or -1 — into a sequence of Mul instructions plus a terminating
// Const(0) at the origin. It rewrites in place, overwriting
// [start, end] and filling any leftover tail with Invalid for the next DCE
// pass to clean up. A loop whose body contains a nested loop is never
// rewritten: after the inner loop's own rewrite (if any) its body holds
// Mul/Const instead, which disqualify it just the same.
func multiplyLoopPass(prog []ir.Instruction) bool {
	changed := false
	spans := findLoopSpans(prog)

	for i := 0; i < len(prog); i++ {
		if prog[i].Op != ir.Loop {
			continue
		}
		span, ok := spans[prog[i].A]
		if !ok || span.start != i {
			continue
		}
		deltas, netDisplacement, netOrigin, ok := analyzeCopyLoop(prog[span.start+1 : span.end])
		if !ok || netDisplacement != 0 || (netOrigin != 1 && netOrigin != -1) {
			continue
		}
		sign := -netOrigin // s in spec: s = -sumAtOrigin
		rewriteCopyLoop(prog, span.start, span.end, deltas, sign)
		changed = true
	}
	return changed
}

// analyzeCopyLoop returns, for a loop body containing only Add/Adp, the
// per-offset net Add contribution (excluding offset 0, which is handled
// separately as the loop-controlling cell), the net data-pointer
// displacement over the body, and the net Add applied at offset 0 (the
// origin). ok is false if the body contains anything other than Add/Adp.
func analyzeCopyLoop(body []ir.Instruction) (deltas map[int64]int64, netDisplacement, netOrigin int64, ok bool) {
	deltas = make(map[int64]int64)
	var offset int64
	for _, ins := range body {
		switch ins.Op {
		case ir.Add:
			if offset == 0 {
				netOrigin += ins.A
			} else {
				deltas[offset] += ins.A
			}
		case ir.Adp:
			offset += ins.A
		default:
			return nil, 0, 0, false
		}
	}
	return deltas, offset, netOrigin, true
}

// rewriteCopyLoop overwrites prog[start:end+1] (the Loop through EndLoop,
// inclusive) with: one Mul per nonzero remote delta, a Const(0) at the
// origin, and Invalid padding out to end.
func rewriteCopyLoop(prog []ir.Instruction, start, end int, deltas map[int64]int64, sign int64) {
	pos := start
	// Deterministic order keeps generated code (and any symbol-map/hex
	// dump of it) stable across runs for identical source.
	offsets := make([]int64, 0, len(deltas))
	for k := range deltas {
		offsets = append(offsets, k)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })

	for _, k := range offsets {
		d := deltas[k]
		if d == 0 {
			continue
		}
		prog[pos] = ir.Instruction{Op: ir.Mul, A: k, B: d * sign}
		pos++
	}
	prog[pos] = ir.Instruction{Op: ir.Const, A: 0}
	pos++
	for ; pos <= end; pos++ {
		prog[pos] = ir.Instruction{Op: ir.Invalid}
	}
}

