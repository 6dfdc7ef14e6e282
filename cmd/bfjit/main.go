// Command bfjit is a JIT-compiling interpreter for Brainfuck (spec §6).
// It parses its positional arguments as source files (concatenated in
// order), runs the fixed optimizer pipeline, and either interprets the
// result or compiles it to x86-64 machine code and enters it directly.
//
// Flag parsing follows the teacher's own plain `flag`-based style
// (main.go declares a separate Bool/String var per short and long form of
// a flag, then ORs them together after Parse, rather than pulling in
// cobra/viper); numeric and string defaults may be lowered by environment
// variables via github.com/xyproto/env/v2 before flag parsing applies its
// own defaults beneath them, the layering that dependency exists for in
// the teacher's go.mod.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/xyproto/env/v2"

	"github.com/xyproto/bfjit/internal/diag"
	"github.com/xyproto/bfjit/internal/engine"
	"github.com/xyproto/bfjit/internal/ir"
	"github.com/xyproto/bfjit/internal/runtime"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "bfjit: %s\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("bfjit", flag.ContinueOnError)
	fs.Usage = func() { printUsage(fs) }

	defMemSize := int64(env.Int("BFJIT_MEM_SIZE", 32768))
	defCellWidth := env.Int("BFJIT_CELL_WIDTH", 8)
	defEOF := env.Str("BFJIT_EOF_BEHAVIOUR", "return-0")
	defNoFlush := env.Bool("BFJIT_NO_FLUSH")

	memSize := fs.Int64("m", defMemSize, "number of memory cells")
	memSizeLong := fs.Int64("mem-size", defMemSize, "number of memory cells")
	cellWidth := fs.Int("w", defCellWidth, "width of cell in bits (8, 16, or 32)")
	cellWidthLong := fs.Int("cell-bit-width", defCellWidth, "width of cell in bits (8, 16, or 32)")
	eofBehaviour := fs.String("e", defEOF, "behaviour on eof (return-0, return-255, dont-modify)")
	eofBehaviourLong := fs.String("eof-behaviour", defEOF, "behaviour on eof (return-0, return-255, dont-modify)")
	noFlush := fs.Bool("n", defNoFlush, "don't flush after each character")
	noFlushLong := fs.Bool("no-flush", defNoFlush, "don't flush after each character")
	dumpCode := fs.Bool("d", false, "dump the generated machine code")
	dumpCodeLong := fs.Bool("dump-code", false, "dump the generated machine code")
	genSyms := fs.Bool("g", false, "generate jit symbol maps for debugging purposes")
	genSymsLong := fs.Bool("gen-syms", false, "generate jit symbol maps for debugging purposes")
	verbose := fs.Bool("v", false, "print more information")
	verboseLong := fs.Bool("verbose", false, "print more information")
	useInterpreter := fs.Bool("use-interpreter", false, "don't jit the IR, just interpret it")
	dryRun := fs.Bool("dry-run", false, "compile the code, but don't run it")
	dumpMem := fs.Bool("dump-mem", false, "dump the first 32 cells of memory after termination")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil
		}
		return err
	}

	fileNames := fs.Args()
	if len(fileNames) == 0 {
		fs.Usage()
		return diag.Syntax(diag.Location{}, "no source files specified")
	}

	width, err := parseCellWidth(orInt(*cellWidth, *cellWidthLong, defCellWidth))
	if err != nil {
		return err
	}
	policy, err := parseEOFBehaviour(orString(*eofBehaviour, *eofBehaviourLong, defEOF))
	if err != nil {
		return err
	}

	sources := make([][]byte, len(fileNames))
	for i, name := range fileNames {
		content, err := os.ReadFile(name)
		if err != nil {
			return diag.Syntax(diag.Location{File: name}, "failed to open file: %v", err)
		}
		sources[i] = content
	}

	opts := engine.Options{
		MemSize:        orInt64(*memSize, *memSizeLong, defMemSize),
		CellWidth:      width,
		EOFPolicy:      policy,
		NoFlush:        *noFlush || *noFlushLong,
		DumpCode:       *dumpCode || *dumpCodeLong,
		GenSyms:        *genSyms || *genSymsLong,
		UseInterpreter: *useInterpreter,
		DryRun:         *dryRun,
		DumpMem:        *dumpMem,
		Verbose:        *verbose || *verboseLong,
	}

	result, err := engine.Run(fileNames, sources, opts, os.Stdin, os.Stdout)
	if err != nil {
		return err
	}

	if opts.DumpCode {
		fmt.Printf("Instructions : %s\n", hexDump(result.Code))
	}
	if opts.GenSyms {
		fmt.Fprintf(os.Stderr, "bfjit: wrote symbol map to %s\n", result.SymbolsPath)
	}
	if opts.DumpMem {
		printMemDump(result.Tape)
	}
	return nil
}

// orInt/orInt64/orString pick whichever of a flag's short/long forms
// differs from the shared default, preferring the short form when both
// were explicitly set — the same "prefer short form if both given" rule
// the teacher's main.go applies to -o/--output.
func orInt(short, long, def int) int {
	if short != def {
		return short
	}
	return long
}

func orInt64(short, long, def int64) int64 {
	if short != def {
		return short
	}
	return long
}

func orString(short, long, def string) string {
	if short != def {
		return short
	}
	return long
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, "Usage: bfjit [OPTIONS] [input files]\n\nJIT-compiling interpreter for brainfuck\n\nOptions:\n")
	fs.PrintDefaults()
}

func parseCellWidth(bits int) (ir.CellWidth, error) {
	w := ir.CellWidth(bits)
	if !w.Valid() {
		return 0, diag.Syntax(diag.Location{}, "invalid cell width %d: must be 8, 16, or 32", bits)
	}
	return w, nil
}

func parseEOFBehaviour(s string) (runtime.EOFPolicy, error) {
	switch s {
	case "return-0":
		return runtime.EOFReturn0, nil
	case "return-255":
		return runtime.EOFReturn255, nil
	case "dont-modify":
		return runtime.EOFDontModify, nil
	default:
		return 0, diag.Syntax(diag.Location{}, "invalid eof-behaviour %q: must be one of return-0, return-255, dont-modify", s)
	}
}

func hexDump(code []byte) string {
	var b []byte
	for _, by := range code {
		b = append(b, hexDigit(by>>4), hexDigit(by&0xf), ' ')
	}
	if len(b) > 0 {
		b = b[:len(b)-1]
	}
	return string(b)
}

func hexDigit(n byte) byte {
	if n < 10 {
		return '0' + n
	}
	return 'a' + n - 10
}

func printMemDump(tape engine.Tape) {
	fmt.Print("Mem: ")
	n := tape.Len()
	if n > 32 {
		n = 32
	}
	for i := 0; i < n; i++ {
		fmt.Printf("%d ", tape.Get(i))
	}
	fmt.Println()
}
