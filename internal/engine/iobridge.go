package engine

import (
	"bufio"
	"io"
	"unsafe"
)

// toByteReader adapts an arbitrary io.Reader to the io.ByteReader the
// interpreter consumes, matching the single-byte read(2) the JIT's own
// runtime stubs perform.
func toByteReader(r io.Reader) io.ByteReader {
	if br, ok := r.(io.ByteReader); ok {
		return br
	}
	return bufio.NewReader(r)
}

// toByteWriter adapts w to io.ByteWriter via a buffered writer. The
// buffer is harmless on the JIT path: generated code never writes through
// it at all, talking to fd 1 with its own write(2) syscall instead (spec
// §4.A); this adapter exists for the interpreter oracle and for tests.
func toByteWriter(w io.Writer) *bufio.Writer {
	return bufio.NewWriter(w)
}

// flushFunc returns the flush callback interp.Run invokes after each Out,
// or nil when -n/--no-flush suppresses the per-byte flush. Either way the
// buffer is drained once by Run's own deferred flush before returning.
func flushFunc(w io.Writer, noFlush bool) func() error {
	if noFlush {
		return nil
	}
	bw, ok := w.(*bufio.Writer)
	if !ok {
		return nil
	}
	return bw.Flush
}

// unsafeBytesOf reinterprets a tape's native-width cell slice as a raw
// byte slice for the code generator to bake a base address out of. The
// layout is exactly what a SIB-addressed load/store of the matching width
// expects: native-endian, tightly packed, no padding.
func unsafeBytesOf[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	size := int(unsafe.Sizeof(zero))
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*size)
}

// tapeBaseAddress returns the address of a tape's cell 0, the value the
// code generator's prelude bakes into r10.
func tapeBaseAddress(t Tape) uintptr {
	b := t.Bytes()
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
