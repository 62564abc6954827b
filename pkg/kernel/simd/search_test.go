package simd

import (
	"bytes"
	"testing"
)

func TestFindByteMatchesScalarScan(t *testing.T) {
	cases := []struct {
		s []byte
		b byte
	}{
		{[]byte("hello world"), 'w'},
		{[]byte(""), 'x'},
		{bytes.Repeat([]byte{'a'}, 200), 'a'},
		{bytes.Repeat([]byte{'a'}, 200), 'z'},
	}
	for _, c := range cases {
		want := bytes.IndexByte(c.s, c.b)
		if got := FindByte(c.s, c.b); got != want {
			t.Fatalf("FindByte(%q, %q) got %d want %d", c.s, c.b, got, want)
		}
	}
}

func TestCountByte(t *testing.T) {
	s := bytes.Repeat([]byte("ab"), 100)
	if got, want := CountByte(s, 'a'), 100; got != want {
		t.Fatalf("CountByte got %d want %d", got, want)
	}
}

func TestContainsByte(t *testing.T) {
	if !ContainsByte([]byte("needle"), 'e') {
		t.Fatalf("expected ContainsByte to find 'e'")
	}
	if ContainsByte([]byte("needle"), 'z') {
		t.Fatalf("ContainsByte found a byte that isn't present")
	}
}

func TestRFindByte(t *testing.T) {
	if got, want := RFindByte([]byte("abcabc"), 'a'), 3; got != want {
		t.Fatalf("RFindByte got %d want %d", got, want)
	}
}
