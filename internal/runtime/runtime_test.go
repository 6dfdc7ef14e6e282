package runtime

import (
	"bytes"
	"testing"

	"github.com/xyproto/bfjit/internal/x86"
)

func TestEOFPolicyString(t *testing.T) {
	cases := map[EOFPolicy]string{
		EOFReturn0:    "return0",
		EOFReturn255:  "return255",
		EOFDontModify: "dont-modify",
		EOFPolicy(99): "unknown",
	}
	for p, want := range cases {
		if got := p.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", p, got, want)
		}
	}
}

func TestEmitOutputRoutineStartsWithStackReservation(t *testing.T) {
	got := EmitOutputRoutine(true)
	if len(got) == 0 {
		t.Fatal("EmitOutputRoutine returned no bytes")
	}
	want := x86.SubImm64FromReg(x86.RSP, 8)
	if !bytes.HasPrefix(got, want) {
		t.Fatalf("EmitOutputRoutine does not start with `sub rsp, 8`: % x", got[:len(want)])
	}
	if last := got[len(got)-1]; last != 0xC3 {
		t.Fatalf("EmitOutputRoutine does not end with RET: last byte % x", last)
	}
}

func TestEmitOutputRoutineFlushVariantsAreIdentical(t *testing.T) {
	// Both named routines compile to the same bytes: a raw write(2) has no
	// userspace buffer to flush; -n/--no-flush only decides which of the
	// two named variants codegen.Generate asks for.
	flushing := EmitOutputRoutine(true)
	nonFlushing := EmitOutputRoutine(false)
	if !bytes.Equal(flushing, nonFlushing) {
		t.Fatalf("EmitOutputRoutine(true) != EmitOutputRoutine(false):\n% x\n% x", flushing, nonFlushing)
	}
}

func TestEmitInputRoutineEndsWithRet(t *testing.T) {
	for _, policy := range []EOFPolicy{EOFReturn0, EOFReturn255, EOFDontModify} {
		got := EmitInputRoutine(policy)
		if len(got) == 0 {
			t.Fatalf("EmitInputRoutine(%v) returned no bytes", policy)
		}
		if last := got[len(got)-1]; last != 0xC3 {
			t.Fatalf("EmitInputRoutine(%v) does not end with RET: last byte % x", policy, last)
		}
	}
}

func TestEmitInputRoutineVariesByPolicy(t *testing.T) {
	r0 := EmitInputRoutine(EOFReturn0)
	r255 := EmitInputRoutine(EOFReturn255)
	rDontModify := EmitInputRoutine(EOFDontModify)
	if bytes.Equal(r0, r255) {
		t.Fatal("EOFReturn0 and EOFReturn255 produced identical routines")
	}
	if bytes.Equal(r0, rDontModify) {
		t.Fatal("EOFReturn0 and EOFDontModify produced identical routines")
	}
	// The two routines diverge only in their EOF tail; the success path
	// (up through the two conditional jumps) must be byte-identical.
	jzLen := len(x86.Jz(0))
	jsLen := len(x86.Js(0))
	prefixLen := len(x86.PushReg(x86.RDI)) + len(x86.SubImm64FromReg(x86.RSP, 8)) +
		len(x86.MovImm32ToReg(x86.RAX, 0)) + len(x86.MovImm32ToReg(x86.RDI, 0)) +
		len(x86.MovReg64(x86.RSI, x86.RSP)) + len(x86.MovImm32ToReg(x86.RDX, 1)) +
		len(x86.Syscall()) + len(x86.TestReg32(x86.RAX)) + jzLen + jsLen
	if !bytes.Equal(r0[:prefixLen], r255[:prefixLen]) {
		t.Fatalf("success-path prefix differs between policies:\n% x\n% x", r0[:prefixLen], r255[:prefixLen])
	}
}

func TestPatchRel32ComputesDisplacementFromJumpEnd(t *testing.T) {
	buf := make([]byte, 10)
	patchRel32(buf, 8, 20)
	got := int32(uint32(buf[4]) | uint32(buf[5])<<8 | uint32(buf[6])<<16 | uint32(buf[7])<<24)
	if got != 12 {
		t.Fatalf("patched rel32 = %d, want 12 (20-8)", got)
	}
}
