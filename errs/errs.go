// Package errs holds the error family returned by every ampclust stage.
//
// Errors of this family are the ones the command line reports as a single
// "ERROR: ..." line. Anything else coming out of the pipeline is a bug or a
// library failure and is printed as is.
package errs

import (
	"errors"
	"fmt"
)

// The kind of failure, used by callers that want to react differently to
// configuration problems and extraction problems
type Kind int

const (
	// Invalid flags, params files, regions or an empty read set
	Config Kind = iota
	// Reading BAM, FASTQ, FASTA or index files
	Extract
	// Feature extraction
	Kmer
	// Failures coming from a clustering algorithm
	Clustering
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "config"
	case Extract:
		return "extract"
	case Kmer:
		return "kmer"
	case Clustering:
		return "clustering"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	if e.Msg == "" {
		return e.Err.Error()
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an error of the given kind with a formatted message
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and a message to err. A nil err stays nil.
func Wrap(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// As returns the first *Error in the chain of err
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is reports whether err is part of the family and of the given kind
func Is(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}
