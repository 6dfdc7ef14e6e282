// Package execbuf manages an anonymous mmap'd region that code is
// assembled into and then executed from, following the allocate/fill/
// protect/enter pattern of the teacher repo's own hot-reload code page
// (hotreload_unix.go's CodePage) but without its per-symbol table: this
// JIT emits one program into one buffer and enters it once.
//
// The buffer starts writable (PROT_READ|PROT_WRITE) and is flipped to
// executable (PROT_READ|PROT_EXEC) only once assembly is finished, never
// holding W and X simultaneously.
package execbuf

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/xyproto/bfjit/internal/diag"
)

const initialCapacity = 4096

// Buffer owns one anonymous executable mapping. It is grown by doubling
// and addressed by offset rather than by pointer, since a grow unmaps the
// old region and any previously taken Go pointer into it would dangle.
type Buffer struct {
	mem        []byte // len == used bytes, cap tracks the mmap'd region
	executable bool
}

// New allocates a fresh read/write mapping of at least initialCapacity
// bytes.
func New() (*Buffer, error) {
	mem, err := mmapRW(initialCapacity)
	if err != nil {
		return nil, err
	}
	return &Buffer{mem: mem[:0]}, nil
}

func mmapRW(size int) ([]byte, error) {
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, diag.Resourcef("mmap %d bytes failed: %v", size, err)
	}
	return mem, nil
}

// grow ensures at least n more bytes are available, doubling the mapping
// until they fit and copying the existing bytes across.
func (b *Buffer) grow(n int) error {
	if len(b.mem)+n <= cap(b.mem) {
		return nil
	}
	if b.executable {
		return diag.Internalf("execbuf: cannot grow a buffer already marked executable")
	}
	newCap := cap(b.mem)
	if newCap == 0 {
		newCap = initialCapacity
	}
	for newCap < len(b.mem)+n {
		newCap *= 2
	}
	next, err := mmapRW(newCap)
	if err != nil {
		return err
	}
	copy(next, b.mem)
	next = next[:len(b.mem)]
	if err := unix.Munmap(b.mem[:cap(b.mem)]); err != nil {
		return diag.Resourcef("munmap during grow failed: %v", err)
	}
	b.mem = next
	return nil
}

// Append writes code to the end of the buffer, growing it if necessary,
// and returns the offset it was written at.
func (b *Buffer) Append(code []byte) (int, error) {
	if b.executable {
		return 0, diag.Internalf("execbuf: write to a buffer already marked executable")
	}
	if err := b.grow(len(code)); err != nil {
		return 0, err
	}
	offset := len(b.mem)
	b.mem = append(b.mem, code...)
	return offset, nil
}

// CurrentOffset is the offset the next Append would land at.
func (b *Buffer) CurrentOffset() int {
	return len(b.mem)
}

// PatchInt32 overwrites the little-endian int32 at offset — used to back-
// patch a loop's forward jump once its matching close-bracket's address is
// known.
func (b *Buffer) PatchInt32(offset int, v int32) error {
	if offset < 0 || offset+4 > len(b.mem) {
		return diag.Internalf("execbuf: patch offset %d out of range (len %d)", offset, len(b.mem))
	}
	u := uint32(v)
	b.mem[offset] = byte(u)
	b.mem[offset+1] = byte(u >> 8)
	b.mem[offset+2] = byte(u >> 16)
	b.mem[offset+3] = byte(u >> 24)
	return nil
}

// PatchUint64 overwrites the little-endian uint64 at offset — used to bake
// the runtime-routine addresses into the prelude's MovImm64 instructions
// after the buffer's final address is known (those addresses aren't fixed
// until the buffer stops growing).
func (b *Buffer) PatchUint64(offset int, v uint64) error {
	if offset < 0 || offset+8 > len(b.mem) {
		return diag.Internalf("execbuf: patch offset %d out of range (len %d)", offset, len(b.mem))
	}
	for i := 0; i < 8; i++ {
		b.mem[offset+i] = byte(v >> (8 * uint(i)))
	}
	return nil
}

// Bytes returns the written prefix of the buffer for read-only inspection
// (hex dumps, symbol maps). Valid before or after MakeExecutable; the
// caller must not retain it across a subsequent Append, which may grow
// and remap the underlying mapping.
func (b *Buffer) Bytes() []byte {
	return b.mem
}

// AddressAt returns the runtime address backing a given offset, valid
// only once the buffer is no longer going to be grown (no further Append
// follows; always the case after MakeExecutable).
func (b *Buffer) AddressAt(offset int) uintptr {
	return uintptr(unsafe.Pointer(&b.mem[:cap(b.mem)][offset]))
}

// MakeExecutable flips the mapping's protection from RW to RX. No further
// Append or Patch calls are permitted afterward.
func (b *Buffer) MakeExecutable() error {
	if b.executable {
		return nil
	}
	full := b.mem[:cap(b.mem)]
	if err := unix.Mprotect(full, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return diag.Resourcef("mprotect RX failed: %v", err)
	}
	b.executable = true
	return nil
}

// Enter jumps into the code at offset 0 and blocks until it returns. The
// buffer must already be executable. The program is expected to return
// normally (a bare RET), not to call exit(2) — spec §4.H's engine harness
// relies on that to keep the host Go runtime alive.
func (b *Buffer) Enter() error {
	if !b.executable {
		return diag.Internalf("execbuf: Enter called before MakeExecutable")
	}
	// A Go func value points at a word holding the code address, so the
	// code address needs one extra level of indirection.
	code := b.AddressAt(0)
	codePtr := unsafe.Pointer(&code)
	fn := *(*func())(unsafe.Pointer(&codePtr))
	fn()
	return nil
}

// Close releases the mapping. The Buffer must not be used afterward.
func (b *Buffer) Close() error {
	if b.mem == nil {
		return nil
	}
	full := b.mem[:cap(b.mem)]
	b.mem = nil
	if err := unix.Munmap(full); err != nil {
		return diag.Resourcef("munmap failed: %v", err)
	}
	return nil
}
