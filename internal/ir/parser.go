package ir

import "github.com/xyproto/bfjit/internal/diag"

// Parser turns Brainfuck source text into a flat []Instruction. It is
// character-directed and one-to-one: every recognized byte produces exactly
// one instruction, and every other byte is skipped as a comment. A single
// Parser may consume several concatenated source files before a final call
// to Finish asserts that every loop opened has been closed.
type Parser struct {
	prog      []Instruction
	openStack []int64 // labels of currently open loops, innermost last
	nextLabel int64
	done      bool
}

// NewParser returns a Parser ready to accept one or more source buffers.
func NewParser() *Parser {
	return &Parser{}
}

// ParseFile appends the instructions produced by scanning src to the
// parser's running program. It may be called multiple times, once per
// positional source-file argument, before Finish. Calling it after Finish
// is an internal-consistency error: the parser was reused post-compile.
func (p *Parser) ParseFile(name string, src []byte) error {
	if p.done {
		return diag.Internalf("parser reused after Finish (file %q)", name)
	}
	for _, ch := range src {
		switch ch {
		case '+':
			p.prog = append(p.prog, Instruction{Op: Add, A: 1})
		case '-':
			p.prog = append(p.prog, Instruction{Op: Add, A: -1})
		case '>':
			p.prog = append(p.prog, Instruction{Op: Adp, A: 1})
		case '<':
			p.prog = append(p.prog, Instruction{Op: Adp, A: -1})
		case '.':
			p.prog = append(p.prog, Instruction{Op: Out})
		case ',':
			p.prog = append(p.prog, Instruction{Op: In})
		case '[':
			label := p.nextLabel
			p.nextLabel++
			p.openStack = append(p.openStack, label)
			p.prog = append(p.prog, Instruction{Op: Loop, A: label})
		case ']':
			if len(p.openStack) == 0 {
				return diag.Syntax(diag.Location{File: name, Offset: len(p.prog)}, "unmatched ']'")
			}
			label := p.openStack[len(p.openStack)-1]
			p.openStack = p.openStack[:len(p.openStack)-1]
			p.prog = append(p.prog, Instruction{Op: EndLoop, A: label})
		default:
			// not one of the eight canonical characters: a comment byte
		}
	}
	return nil
}

// Finish asserts that every '[' has been matched by a ']' across all
// sources fed to ParseFile, and returns the assembled program. After
// Finish the Parser must not be reused.
func (p *Parser) Finish() ([]Instruction, error) {
	if p.done {
		return nil, diag.Internalf("Finish called twice on the same parser")
	}
	p.done = true
	if len(p.openStack) != 0 {
		return nil, diag.Syntax(diag.Location{Offset: len(p.prog)}, "unmatched '[' (%d still open)", len(p.openStack))
	}
	return p.prog, nil
}

// Parse is a convenience wrapper for the common case of a single source
// buffer with no file name.
func Parse(src []byte) ([]Instruction, error) {
	p := NewParser()
	if err := p.ParseFile("", src); err != nil {
		return nil, err
	}
	return p.Finish()
}

// Print renders a program back to canonical Brainfuck source text. It is
// used by the round-trip test (testable property #1): for IR produced
// directly from the eight canonical characters (before optimization),
// Print(Parse(src)) reproduces src modulo ignored bytes.
func Print(prog []Instruction) []byte {
	var out []byte
	for _, ins := range prog {
		switch ins.Op {
		case Add:
			n := ins.A
			ch := byte('+')
			if n < 0 {
				ch = '-'
				n = -n
			}
			for i := int64(0); i < n; i++ {
				out = append(out, ch)
			}
		case Adp:
			n := ins.A
			ch := byte('>')
			if n < 0 {
				ch = '<'
				n = -n
			}
			for i := int64(0); i < n; i++ {
				out = append(out, ch)
			}
		case Out:
			out = append(out, '.')
		case In:
			out = append(out, ',')
		case Loop:
			out = append(out, '[')
		case EndLoop:
			out = append(out, ']')
		}
	}
	return out
}
