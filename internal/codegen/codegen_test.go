package codegen

import (
	"os"
	"testing"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/xyproto/bfjit/internal/ir"
	"github.com/xyproto/bfjit/internal/runtime"
)

func TestIsPow2(t *testing.T) {
	cases := map[int64]bool{
		1: true, 2: true, 4: true, 1024: true, 32768: true,
		0: false, 3: false, 5: false, 30000: false, -4: false,
	}
	for n, want := range cases {
		if got := isPow2(n); got != want {
			t.Errorf("isPow2(%d) = %v, want %v", n, got, want)
		}
	}
}

func TestWrapMod(t *testing.T) {
	cases := []struct{ k, n, want int64 }{
		{5, 10, 5},
		{-1, 10, 9},
		{10, 10, 0},
		{-10, 10, 0},
		{-25, 10, 5},
		{0, 10, 0},
	}
	for _, c := range cases {
		if got := wrapMod(c.k, c.n); got != c.want {
			t.Errorf("wrapMod(%d,%d) = %d, want %d", c.k, c.n, got, c.want)
		}
	}
}

func TestWrapConstant(t *testing.T) {
	if got := wrapConstant(32768); got != 32767 {
		t.Errorf("wrapConstant(32768) = %d, want 32767 (power of two)", got)
	}
	if got := wrapConstant(30000); got != 30000 {
		t.Errorf("wrapConstant(30000) = %d, want 30000 (non power of two, §9 open question #3)", got)
	}
	if got := wrapConstant(1); got != 0 {
		t.Errorf("wrapConstant(1) = %d, want 0", got)
	}
}

// keepTape holds each test tape in a package-level variable so the tape is
// heap-allocated: generated code keeps the tape's raw address, and a
// stack-allocated slice can be moved by stack growth after Generate has
// baked that address in.
var keepTape []uint16

// TestLoopConditionExaminesFullWidthCellAtWidth16 drives Generate+Enter
// directly (no engine.Tape, to avoid an import cycle): a 16-bit cell set to
// 256 (0x0100) has a zero low byte, so a loop-entry test that only loads
// the cell's low byte would wrongly see "zero" and skip the loop body
// entirely. The loop here runs exactly once if the full-width cell is
// examined, zeroing the cell; it runs zero times (leaving 256) if the bug
// is present.
func TestLoopConditionExaminesFullWidthCellAtWidth16(t *testing.T) {
	tape := make([]uint16, 4)
	keepTape = tape
	addr := uintptr(unsafe.Pointer(&tape[0]))

	prog := []ir.Instruction{
		{Op: ir.Const, A: 256},
		{Op: ir.Loop, A: 0},
		{Op: ir.Const, A: 0},
		{Op: ir.EndLoop, A: 0},
	}
	buf, _, err := Generate(prog, addr, int64(len(tape)), ir.Width16, runtime.EOFReturn0, true)
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	defer buf.Close()
	if err := buf.Enter(); err != nil {
		t.Fatalf("Enter error: %v", err)
	}
	if tape[0] != 0 {
		t.Fatalf("cell 0 = %d, want 0: the loop body must run once since 256 != 0 at width 16", tape[0])
	}
}

// TestInStoresFullWidthCellAtWidth16 seeds a 16-bit cell with a nonzero
// upper byte, then runs a single In against a real pipe redirected onto
// fd 0 (the generated routine talks to fd 0 directly, bypassing Go's
// io.Reader entirely). If In only stores the returned byte's low 8 bits,
// the seed's stale upper byte survives; if it stores the full cell width,
// the upper byte is correctly zeroed.
func TestInStoresFullWidthCellAtWidth16(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe error: %v", err)
	}
	defer r.Close()
	if _, err := w.Write([]byte{5}); err != nil {
		t.Fatalf("write to pipe error: %v", err)
	}
	w.Close()

	origStdin, err := unix.Dup(0)
	if err != nil {
		t.Fatalf("dup(0) error: %v", err)
	}
	defer func() {
		unix.Dup2(origStdin, 0)
		unix.Close(origStdin)
	}()
	if err := unix.Dup2(int(r.Fd()), 0); err != nil {
		t.Fatalf("dup2 error: %v", err)
	}

	tape := make([]uint16, 2)
	keepTape = tape
	addr := uintptr(unsafe.Pointer(&tape[0]))
	prog := []ir.Instruction{
		{Op: ir.Const, A: 0x1234},
		{Op: ir.In},
	}
	buf, _, err := Generate(prog, addr, int64(len(tape)), ir.Width16, runtime.EOFReturn0, true)
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	defer buf.Close()
	if err := buf.Enter(); err != nil {
		t.Fatalf("Enter error: %v", err)
	}
	if tape[0] != 5 {
		t.Fatalf("cell 0 = %#x, want 0x5: the 0x1234 seed's upper byte must be zeroed by In at width 16", tape[0])
	}
}
