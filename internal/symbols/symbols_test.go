package symbols

import "testing"

func TestFormat(t *testing.T) {
	entries := []Entry{
		{Offset: 0, Size: 16, Label: "jit_prelude"},
		{Offset: 16, Size: 5, Label: "JIT OP: #0 Const 0 0 0"},
		{Offset: 21, Size: 4, Label: "jit_epilogue"},
	}
	got := format(0x1000, entries)
	want := "1000 16 jit_prelude\n" +
		"1010 5 JIT OP: #0 Const 0 0 0\n" +
		"1015 4 jit_epilogue\n"
	if got != want {
		t.Fatalf("format() =\n%q\nwant\n%q", got, want)
	}
}

func TestPath(t *testing.T) {
	if got, want := Path(42), "/tmp/perf-42.map"; got != want {
		t.Fatalf("Path(42) = %q, want %q", got, want)
	}
}
