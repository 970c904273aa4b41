package kmer

import (
	"math"

	"github.com/biogo/hts/sam"
)

// A struct representing one read handed to the feature builder
// Reads are never modified after they have been extracted
type Read struct {
	// The name of the read, unique within a run
	// Extracted reads carry the window in their name: <name>/<start>_<stop>
	ID string

	// The bases of the read, uppercase A, C, G, T or N
	Seq string

	// The per-base probability of a correct call, in [0,1]
	Qual []float64

	// The read quality as reported by the sequencer (the rq tag of CCS reads)
	// Zero when the tag is absent
	RQ float64

	// The alignment flags of the record the read came from
	Flags sam.Flags
}

// Quality returns the read level quality used by the minimum quality filter.
// The rq tag wins over per-base qualities; a read without any quality
// information is treated as perfect.
func (r Read) Quality() float64 {
	if r.RQ > 0 {
		return r.RQ
	}
	if len(r.Qual) == 0 {
		return 1
	}
	sum := 0.0
	for _, q := range r.Qual {
		sum += q
	}
	return sum / float64(len(r.Qual))
}

// PhredToProb converts a Phred score to the probability the base call is correct
func PhredToProb(q byte) float64 {
	return 1 - math.Pow(10, -float64(q)/10)
}

// PhredSliceToProb converts a slice of Phred scores
func PhredSliceToProb(quals []byte) []float64 {
	probs := make([]float64, len(quals))
	for i, q := range quals {
		probs[i] = PhredToProb(q)
	}
	return probs
}
