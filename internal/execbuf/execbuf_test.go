package execbuf

import (
	"bytes"
	"testing"
)

func TestAppendReturnsSequentialOffsets(t *testing.T) {
	buf, err := New()
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer buf.Close()

	off1, err := buf.Append([]byte{0xC3})
	if err != nil {
		t.Fatalf("Append error: %v", err)
	}
	if off1 != 0 {
		t.Fatalf("first Append offset = %d, want 0", off1)
	}
	off2, err := buf.Append([]byte{0x90, 0x90})
	if err != nil {
		t.Fatalf("Append error: %v", err)
	}
	if off2 != 1 {
		t.Fatalf("second Append offset = %d, want 1", off2)
	}
	if got := buf.CurrentOffset(); got != 3 {
		t.Fatalf("CurrentOffset() = %d, want 3", got)
	}
}

// TestGrowthPreservesContent covers testable property #8: growing the
// mapping (forcing at least one doubling) must not corrupt bytes already
// written, and the buffer must still be a valid RW mapping afterward.
func TestGrowthPreservesContent(t *testing.T) {
	buf, err := New()
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer buf.Close()

	first := bytes.Repeat([]byte{0xAB}, 100)
	if _, err := buf.Append(first); err != nil {
		t.Fatalf("Append error: %v", err)
	}

	// Force at least one grow past initialCapacity.
	big := bytes.Repeat([]byte{0xCD}, initialCapacity*2)
	if _, err := buf.Append(big); err != nil {
		t.Fatalf("Append (large) error: %v", err)
	}

	got := buf.Bytes()
	if !bytes.Equal(got[:100], first) {
		t.Fatal("bytes written before growth were corrupted by the grow")
	}
	if !bytes.Equal(got[100:100+len(big)], big) {
		t.Fatal("bytes written triggering the growth are wrong")
	}
}

func TestPatchInt32RoundTrip(t *testing.T) {
	buf, err := New()
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer buf.Close()

	off, err := buf.Append([]byte{0, 0, 0, 0})
	if err != nil {
		t.Fatalf("Append error: %v", err)
	}
	if err := buf.PatchInt32(off, -42); err != nil {
		t.Fatalf("PatchInt32 error: %v", err)
	}
	got := int32(uint32(buf.Bytes()[off]) | uint32(buf.Bytes()[off+1])<<8 |
		uint32(buf.Bytes()[off+2])<<16 | uint32(buf.Bytes()[off+3])<<24)
	if got != -42 {
		t.Fatalf("patched value = %d, want -42", got)
	}
}

func TestPatchUint64RoundTrip(t *testing.T) {
	buf, err := New()
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer buf.Close()

	off, err := buf.Append(make([]byte, 8))
	if err != nil {
		t.Fatalf("Append error: %v", err)
	}
	want := uint64(0x0102030405060708)
	if err := buf.PatchUint64(off, want); err != nil {
		t.Fatalf("PatchUint64 error: %v", err)
	}
	var got uint64
	for i := 0; i < 8; i++ {
		got |= uint64(buf.Bytes()[off+i]) << (8 * uint(i))
	}
	if got != want {
		t.Fatalf("patched value = %#x, want %#x", got, want)
	}
}

func TestPatchOutOfRangeFails(t *testing.T) {
	buf, err := New()
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer buf.Close()

	if err := buf.PatchInt32(0, 1); err == nil {
		t.Fatal("expected an error patching past the end of an empty buffer")
	}
}

func TestAppendAfterMakeExecutableFails(t *testing.T) {
	buf, err := New()
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer buf.Close()

	if _, err := buf.Append([]byte{0xC3}); err != nil {
		t.Fatalf("Append error: %v", err)
	}
	if err := buf.MakeExecutable(); err != nil {
		t.Fatalf("MakeExecutable error: %v", err)
	}
	if _, err := buf.Append([]byte{0x90}); err == nil {
		t.Fatal("expected Append to fail after MakeExecutable")
	}
}

func TestEnterBeforeMakeExecutableFails(t *testing.T) {
	buf, err := New()
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer buf.Close()

	if _, err := buf.Append([]byte{0xC3}); err != nil {
		t.Fatalf("Append error: %v", err)
	}
	if err := buf.Enter(); err == nil {
		t.Fatal("expected Enter to fail before MakeExecutable")
	}
}

func TestEnterRunsGeneratedRet(t *testing.T) {
	buf, err := New()
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer buf.Close()

	if _, err := buf.Append([]byte{0xC3}); err != nil { // bare RET
		t.Fatalf("Append error: %v", err)
	}
	if err := buf.MakeExecutable(); err != nil {
		t.Fatalf("MakeExecutable error: %v", err)
	}
	if err := buf.Enter(); err != nil {
		t.Fatalf("Enter error: %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	buf, err := New()
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := buf.Close(); err != nil {
		t.Fatalf("first Close error: %v", err)
	}
	if err := buf.Close(); err != nil {
		t.Fatalf("second Close error: %v", err)
	}
}
