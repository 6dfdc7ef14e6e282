package interp

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xyproto/bfjit/internal/ir"
	"github.com/xyproto/bfjit/internal/optimize"
	"github.com/xyproto/bfjit/internal/runtime"
)

// sliceTape is a minimal int64-per-cell Tape, standing in for the engine
// package's width-specific tapes so this package can be tested without an
// import cycle.
type sliceTape []int64

func (t sliceTape) Len() int            { return len(t) }
func (t sliceTape) Get(i int) int64     { return t[i] }
func (t sliceTape) Set(i int, v int64)  { t[i] = v }

func newTape(n int) sliceTape { return make(sliceTape, n) }

func runSource(t *testing.T, src string, in string, policy runtime.EOFPolicy) string {
	t.Helper()
	prog, err := ir.Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", src, err)
	}
	prog = optimize.Optimize(prog)

	tape := newTape(30000)
	var out bytes.Buffer
	reader := strings.NewReader(in)
	if _, err := Run(prog, tape, policy, reader, &out, nil); err != nil {
		t.Fatalf("Run(%q) error: %v", src, err)
	}
	return out.String()
}

func TestCopyLoopPreservesOutput(t *testing.T) {
	got := runSource(t, "++>+++<[->+<]>.", "", runtime.EOFReturn0)
	if want := "\x05"; got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

func TestSimpleIOEchoesInput(t *testing.T) {
	got := runSource(t, ",.,.,.", "abc", runtime.EOFReturn0)
	if want := "abc"; got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

func TestEOFReturn0(t *testing.T) {
	got := runSource(t, ",.", "", runtime.EOFReturn0)
	if want := "\x00"; got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

func TestEOFReturn255(t *testing.T) {
	got := runSource(t, ",.", "", runtime.EOFReturn255)
	if want := "\xff"; got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

func TestEOFDontModify(t *testing.T) {
	got := runSource(t, "+++,.", "", runtime.EOFDontModify)
	if want := "\x03"; got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

func TestLoopSkippedWhenCellZero(t *testing.T) {
	got := runSource(t, "[.]+.", "", runtime.EOFReturn0)
	if want := "\x01"; got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

func TestClassicCopyLoopReducesToFive(t *testing.T) {
	// "++>+++<[->+<]>." from spec §8's scenario table: cell 0 holds 2,
	// cell 1 holds 3; the loop moves cell 0's value into cell 1, leaving
	// cell 1 at 5 once the pointer returns there.
	prog, err := ir.Parse([]byte("++>+++<[->+<]>"))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	prog = optimize.Optimize(prog)
	tape := newTape(10)
	dp, err := Run(prog, tape, runtime.EOFReturn0, strings.NewReader(""), &bytes.Buffer{}, nil)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if dp != 1 {
		t.Fatalf("data pointer = %d, want 1", dp)
	}
	if tape[1] != 5 {
		t.Fatalf("cell 1 = %d, want 5", tape[1])
	}
	if tape[0] != 0 {
		t.Fatalf("cell 0 = %d, want 0", tape[0])
	}
}

func TestBoundedLoopTerminates(t *testing.T) {
	got := runSource(t, "+++++[-]>+.", "", runtime.EOFReturn0)
	if want := "\x01"; got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

func TestMulAppliesFactorAtRemoteOffset(t *testing.T) {
	prog := []ir.Instruction{
		{Op: ir.Const, A: 4},
		{Op: ir.Mul, A: 2, B: 3},
	}
	tape := newTape(5)
	if _, err := Run(prog, tape, runtime.EOFReturn0, strings.NewReader(""), &bytes.Buffer{}, nil); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if tape[2] != 12 {
		t.Fatalf("cell 2 = %d, want 12 (4*3)", tape[2])
	}
	if tape[0] != 4 {
		t.Fatalf("cell 0 = %d, want unchanged 4", tape[0])
	}
}

func TestAdpWrapsAroundTapeBounds(t *testing.T) {
	prog := []ir.Instruction{
		{Op: ir.Adp, A: -1},
		{Op: ir.Const, A: 9},
	}
	tape := newTape(10)
	dp, err := Run(prog, tape, runtime.EOFReturn0, strings.NewReader(""), &bytes.Buffer{}, nil)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if dp != 9 {
		t.Fatalf("data pointer = %d, want 9 (wrapped from -1)", dp)
	}
	if tape[9] != 9 {
		t.Fatalf("cell 9 = %d, want 9", tape[9])
	}
}

func TestFlushCallbackInvokedOnOutput(t *testing.T) {
	prog, err := ir.Parse([]byte("+."))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	tape := newTape(1)
	var out bytes.Buffer
	flushes := 0
	flush := func() error { flushes++; return nil }
	if _, err := Run(prog, tape, runtime.EOFReturn0, strings.NewReader(""), &out, flush); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if flushes != 1 {
		t.Fatalf("flush called %d times, want 1", flushes)
	}
}
