package kmer

import "strings"

// A sequence ready for k-mer counting
type NormalizedSequence struct {
	// The sequence after homopolymer collapse
	Seq string

	// Length of the minimizer each k-window is represented by, 0 for raw k-mers
	Minimizer int
}

// Collapse truncates every run of the same base longer than level to exactly
// level bases. Level 0 returns the sequence unchanged.
func Collapse(seq string, level int) string {
	if level <= 0 || len(seq) == 0 {
		return seq
	}

	var collapsed strings.Builder
	collapsed.Grow(len(seq))
	run := 0
	for i := 0; i < len(seq); i++ {
		if i > 0 && seq[i] == seq[i-1] {
			run++
		} else {
			run = 1
		}
		if run <= level {
			collapsed.WriteByte(seq[i])
		}
	}
	return collapsed.String()
}

// Normalize collapses homopolymers and then sets up minimizer grouping.
// The order is fixed: minimizers are always taken on the collapsed sequence.
func Normalize(seq string, level int, minimizer int) NormalizedSequence {
	if minimizer < 0 {
		minimizer = 0
	}
	return NormalizedSequence{
		Seq:       Collapse(seq, level),
		Minimizer: minimizer,
	}
}

// Count counts the sequence with windows of size k
func (n NormalizedSequence) Count(k int) KmerCount {
	if n.Minimizer > 0 {
		return CountMinimizers(n.Seq, k, n.Minimizer)
	}
	return CountKmers(n.Seq, k)
}

// TrimEnds drops i bases from both ends of a sequence
func TrimEnds(seq string, i int) string {
	if i <= 0 {
		return seq
	}
	if len(seq) <= 2*i {
		return ""
	}
	return seq[i : len(seq)-i]
}
