// Package engine orchestrates the pipeline spec §4.H names: parse, run
// the optimizer to a fixed point, then either interpret or compile and
// enter the result. It owns the two pieces of state that outlive any
// single subsystem call — the tape and, on the JIT path, the executable
// buffer — mirroring the teacher's own top-level CompileC67WithOptions
// (cli.go), which likewise owns the source, the target, and the output
// artifact across the same three pipeline stages.
package engine

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/xyproto/bfjit/internal/codegen"
	"github.com/xyproto/bfjit/internal/diag"
	"github.com/xyproto/bfjit/internal/interp"
	"github.com/xyproto/bfjit/internal/ir"
	"github.com/xyproto/bfjit/internal/optimize"
	"github.com/xyproto/bfjit/internal/runtime"
	"github.com/xyproto/bfjit/internal/symbols"
)

// Options mirrors the CLI surface (spec §6) one-to-one; cmd/bfjit/main.go
// is responsible for flag parsing and defaulting, not this package.
type Options struct {
	MemSize        int64
	CellWidth      ir.CellWidth
	EOFPolicy      runtime.EOFPolicy
	NoFlush        bool
	DumpCode       bool
	GenSyms        bool
	UseInterpreter bool
	DryRun         bool
	DumpMem        bool
	Verbose        bool
}

// Result carries everything a caller might want to report after Run
// returns: the final data pointer (set on the interpreter path only), the
// generated code (set only when DumpCode is on the JIT path), and the tape
// for an optional dump.
type Result struct {
	DataPointer int
	Code        []byte
	SymbolsPath string
	Tape        Tape
}

// Tape is the cell-width-agnostic storage the interpreter and the code
// generator's baked-in base address both target.
type Tape interface {
	interp.Tape
	// Bytes exposes the raw backing storage so the code generator can
	// bake its address into the prelude; its element width matches the
	// tape's CellWidth.
	Bytes() []byte
}

// Tape8 is a Tape of 8-bit cells.
type Tape8 []uint8

func (t Tape8) Len() int          { return len(t) }
func (t Tape8) Get(i int) int64   { return int64(t[i]) }
func (t Tape8) Set(i int, v int64) { t[i] = uint8(v) }
func (t Tape8) Bytes() []byte     { return t }

// Tape16 is a Tape of 16-bit cells.
type Tape16 []uint16

func (t Tape16) Len() int        { return len(t) }
func (t Tape16) Get(i int) int64 { return int64(t[i]) }
func (t Tape16) Set(i int, v int64) {
	t[i] = uint16(v)
}
func (t Tape16) Bytes() []byte {
	return unsafeBytesOf(t)
}

// Tape32 is a Tape of 32-bit cells.
type Tape32 []uint32

func (t Tape32) Len() int        { return len(t) }
func (t Tape32) Get(i int) int64 { return int64(t[i]) }
func (t Tape32) Set(i int, v int64) {
	t[i] = uint32(v)
}
func (t Tape32) Bytes() []byte {
	return unsafeBytesOf(t)
}

// NewTape allocates a zero-initialized tape of n cells at the given
// width.
func NewTape(width ir.CellWidth, n int64) (Tape, error) {
	if n <= 0 {
		return nil, diag.Syntax(diag.Location{}, "tape length must be positive, got %d", n)
	}
	switch width {
	case ir.Width8:
		return make(Tape8, n), nil
	case ir.Width16:
		return make(Tape16, n), nil
	case ir.Width32:
		return make(Tape32, n), nil
	default:
		return nil, diag.Internalf("unsupported cell width %d", width)
	}
}

// Run executes the full pipeline over sources (already read into memory,
// one entry per positional source argument, concatenated in order by the
// parser) and returns the outcome described in opts.
func Run(names []string, sources [][]byte, opts Options, stdin io.Reader, stdout io.Writer) (*Result, error) {
	verbose := opts.Verbose

	parseStart := time.Now()
	p := ir.NewParser()
	for i, src := range sources {
		name := ""
		if i < len(names) {
			name = names[i]
		}
		if err := p.ParseFile(name, src); err != nil {
			return nil, err
		}
	}
	prog, err := p.Finish()
	if err != nil {
		return nil, err
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "bfjit: parsed %d instructions in %s\n", len(prog), time.Since(parseStart))
	}

	optStart := time.Now()
	prog = optimize.Optimize(prog)
	if verbose {
		fmt.Fprintf(os.Stderr, "bfjit: optimized to %d instructions in %s\n", len(prog), time.Since(optStart))
	}

	tape, err := NewTape(opts.CellWidth, opts.MemSize)
	if err != nil {
		return nil, err
	}

	in := toByteReader(stdin)
	out := toByteWriter(stdout)
	defer out.Flush()
	flusher := flushFunc(out, opts.NoFlush)

	if opts.UseInterpreter {
		runStart := time.Now()
		dp, err := interp.Run(prog, tape, opts.EOFPolicy, in, out, flusher)
		if err != nil {
			return nil, err
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "bfjit: interpreted in %s\n", time.Since(runStart))
		}
		return &Result{DataPointer: dp, Tape: tape}, nil
	}

	genStart := time.Now()
	tapeAddr := tapeBaseAddress(tape)
	buf, syms, err := codegen.Generate(prog, tapeAddr, opts.MemSize, opts.CellWidth, opts.EOFPolicy, !opts.NoFlush)
	if err != nil {
		return nil, err
	}
	defer buf.Close()
	if verbose {
		fmt.Fprintf(os.Stderr, "bfjit: generated %d bytes of code in %s\n", len(buf.Bytes()), time.Since(genStart))
	}

	result := &Result{Tape: tape}
	if opts.DumpCode {
		result.Code = append([]byte(nil), buf.Bytes()...)
	}
	if opts.GenSyms {
		base := buf.AddressAt(0)
		entries := make([]symbols.Entry, len(syms))
		for i, s := range syms {
			entries[i] = symbols.Entry{Offset: s.Offset, Size: s.Size, Label: s.Label}
		}
		path, err := symbols.Write(os.Getpid(), base, entries)
		if err != nil {
			return nil, err
		}
		result.SymbolsPath = path
	}

	if opts.DryRun {
		return result, nil
	}

	enterStart := time.Now()
	// in/out/flusher aren't passed to Enter: generated code talks to the
	// file descriptors directly via the runtime stubs' raw syscalls, not
	// through these Go io.Reader/io.Writer values. They exist so the
	// interpreter path above can share Run's signature.
	_ = in
	_ = out
	_ = flusher
	if err := buf.Enter(); err != nil {
		return nil, err
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "bfjit: ran generated code in %s\n", time.Since(enterStart))
	}
	return result, nil
}
