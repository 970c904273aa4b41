package errs

import (
	"fmt"
	"io"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	err := New(Config, "damping must be in [0.5, 1.0] for %s, got %v", "affprop", 0.3)
	want := "damping must be in [0.5, 1.0] for affprop, got 0.3"
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
	if !Is(err, Config) {
		t.Fatalf("expected a config error")
	}
	if Is(err, Extract) {
		t.Fatalf("did not expect an extract error")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(Extract, nil, "reading") != nil {
		t.Fatalf("wrapping nil should give nil")
	}

	err := Wrap(Extract, io.ErrUnexpectedEOF, "reading %s", "in.bam")
	if err.Error() != "reading in.bam: unexpected EOF" {
		t.Fatalf("unexpected message %q", err.Error())
	}

	outer := fmt.Errorf("run: %w", err)
	e, ok := As(outer)
	if !ok || e.Kind != Extract {
		t.Fatalf("expected to find the extract error in the chain")
	}
	if e.Unwrap() != io.ErrUnexpectedEOF {
		t.Fatalf("the wrapped error was lost")
	}
}

func TestKindString(t *testing.T) {
	tests := map[Kind]string{
		Config:     "config",
		Extract:    "extract",
		Kmer:       "kmer",
		Clustering: "clustering",
		Kind(9):    "kind(9)",
	}
	for kind, want := range tests {
		if kind.String() != want {
			t.Errorf("got %s, want %s", kind.String(), want)
		}
	}
}
