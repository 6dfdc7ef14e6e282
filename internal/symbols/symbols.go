// Package symbols writes the optional perf-style symbol map (spec §6): a
// side channel that lets `perf report`/`perf annotate` resolve addresses
// inside the JIT-generated region back to opcode-level labels. The
// `symbolMap` vector in original_source's code_generator.cc records one
// (offset, instruction) pair per post-optimization IR entry plus two
// sentinels for the prelude/epilogue span, then walks consecutive pairs
// to print exactly the three label shapes spec §6 names; this package
// keeps that numbering (see internal/codegen.Symbol, built from the same
// IR slice the generator walks).
package symbols

import (
	"fmt"
	"os"
	"strings"

	"github.com/xyproto/bfjit/internal/diag"
)

// Entry is one named, sized span of generated code, relative to the
// executable buffer's base address.
type Entry struct {
	Offset int
	Size   int
	Label  string
}

// Path returns the well-known symbol-map path perf scans for a given pid.
func Path(pid int) string {
	return fmt.Sprintf("/tmp/perf-%d.map", pid)
}

// format renders entries as absolute addresses (baseAddr+Offset) against
// the fixed perf map line format: "<hex-address> <decimal-size> <label>".
func format(baseAddr uintptr, entries []Entry) string {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%x %d %s\n", baseAddr+uintptr(e.Offset), e.Size, e.Label)
	}
	return b.String()
}

// Write renders entries and writes them to Path(pid), returning the path
// written.
func Write(pid int, baseAddr uintptr, entries []Entry) (string, error) {
	path := Path(pid)
	if err := os.WriteFile(path, []byte(format(baseAddr, entries)), 0o644); err != nil {
		return "", diag.Resourcef("writing symbol map %s failed: %v", path, err)
	}
	return path, nil
}
