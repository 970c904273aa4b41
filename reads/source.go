// Package reads loads the reads to cluster from BAM or FASTQ files and
// applies the read level filters: alignment flags, whitelist, flank
// extraction, flank presence and minimum quality.
package reads

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nvnieuwk/ampclust/errs"
	"github.com/nvnieuwk/ampclust/kmer"
)

// Secondary and supplementary alignments are never clustered
const AlignFilter = 0x900

// Source yields the reads that pass all filters, in file order
type Source interface {
	Reads() ([]kmer.Read, Stats, error)
}

// Read counts per filter
type Stats struct {
	// Records seen in the input
	Total int

	// Secondary or supplementary alignments
	Secondary int

	// Records outside the target region
	OutsideRegion int

	// Reads missing from the whitelist
	NotWhitelisted int

	// Reads where only one flank anchored
	OneSided int

	// Reads where no flank anchored
	PoorAlignment int

	// Reads not containing both flank sequences
	MissingFlanks int

	// Reads below the minimum quality
	LowQuality int

	// Reads with a name that was already used, only the first is kept
	Duplicates int

	// Reads handed to the feature builder
	Passed int
}

// String prints one line per non-zero filter count
func (s Stats) String() string {
	lines := []string{fmt.Sprintf("%d reads in input", s.Total)}
	for _, c := range []struct {
		n    int
		what string
	}{
		{s.Secondary, "secondary or supplementary alignments"},
		{s.OutsideRegion, "reads outside the region"},
		{s.NotWhitelisted, "reads not in the whitelist"},
		{s.OneSided, "reads with one flank (One Sided)"},
		{s.PoorAlignment, "reads without flanks (Poor/no Alignment)"},
		{s.MissingFlanks, "reads missing a flank sequence"},
		{s.LowQuality, "reads below the minimum quality"},
		{s.Duplicates, "reads with a duplicate name"},
	} {
		if c.n > 0 {
			lines = append(lines, fmt.Sprintf("\t%d %s removed", c.n, c.what))
		}
	}
	lines = append(lines, fmt.Sprintf("%d reads passed filtering", s.Passed))
	return strings.Join(lines, "\n")
}

// The read level filters shared by all sources
type Filter struct {
	// Reads with a lower Quality() are removed
	MinQV float64

	// Only reads named in the list are kept, nil keeps all
	Whitelist Whitelist

	// Replaces every read by the part between the target flanks, may be nil
	Extractor Extractor

	// Keeps only reads containing both flank sequences, may be nil
	Flanks Extractor

	// Names of the reads passed so far, duplicates are only removed when set
	seen map[string]struct{}
}

// pass returns a copy of the filter for one pass over an input that drops
// reads named like an earlier one
func (f Filter) pass() *Filter {
	f.seen = map[string]struct{}{}
	return &f
}

// Apply runs the filters on one read and records why it was dropped
func (f *Filter) Apply(read kmer.Read, stats *Stats) (kmer.Read, bool) {
	if !f.Whitelist.Contains(read.ID) {
		stats.NotWhitelisted++
		return read, false
	}

	if f.Extractor != nil {
		start, stop, sub, err := f.Extractor.Extract(read.Seq)
		if err != nil {
			f.count(err, stats)
			return read, false
		}
		read = window(read, start, stop, sub)
	}

	if f.Flanks != nil {
		if _, _, _, err := f.Flanks.Extract(read.Seq); err != nil {
			stats.MissingFlanks++
			return read, false
		}
	}

	if read.Quality() < f.MinQV {
		stats.LowQuality++
		return read, false
	}

	if f.seen != nil {
		if _, dup := f.seen[read.ID]; dup {
			stats.Duplicates++
			return read, false
		}
		f.seen[read.ID] = struct{}{}
	}

	stats.Passed++
	return read, true
}

func (f *Filter) count(err error, stats *Stats) {
	switch {
	case errors.Is(err, ErrOneSided):
		stats.OneSided++
	default:
		stats.PoorAlignment++
	}
}

// window cuts a read down to [start, stop) and names it <name>/<start>_<stop>
func window(read kmer.Read, start int, stop int, sub string) kmer.Read {
	out := kmer.Read{
		ID:    fmt.Sprintf("%s/%d_%d", read.ID, start, stop),
		Seq:   sub,
		RQ:    0,
		Flags: read.Flags,
	}
	if len(read.Qual) >= stop {
		out.Qual = make([]float64, stop-start)
		copy(out.Qual, read.Qual[start:stop])
		if sub != read.Seq[start:stop] {
			for i, j := 0, len(out.Qual)-1; i < j; i, j = i+1, j-1 {
				out.Qual[i], out.Qual[j] = out.Qual[j], out.Qual[i]
			}
		}
	} else {
		out.RQ = read.RQ
	}
	return out
}

// RecordName strips the extraction window from the identifier of a read
// that went through an Extractor
func RecordName(id string) string {
	i := strings.LastIndexByte(id, '/')
	if i < 0 {
		return id
	}
	span := id[i+1:]
	j := strings.IndexByte(span, '_')
	if j <= 0 || j == len(span)-1 || strings.Trim(span, "0123456789_") != "" || strings.Count(span, "_") != 1 {
		return id
	}
	return id[:i]
}

// Open picks the source for a file by its extension
func Open(path string, region *Region, filter Filter) (Source, error) {
	lower := strings.TrimSuffix(strings.ToLower(path), ".gz")
	switch {
	case strings.HasSuffix(lower, ".bam"):
		return &BamSource{Path: path, Region: region, Filter: filter}, nil
	case strings.HasSuffix(lower, ".fastq"), strings.HasSuffix(lower, ".fq"),
		strings.HasSuffix(lower, ".fasta"), strings.HasSuffix(lower, ".fa"):
		if region != nil {
			return nil, errs.New(errs.Config, "a region can only be used with BAM input, got %s", path)
		}
		return &FastqSource{Path: path, Filter: filter}, nil
	}
	return nil, errs.New(errs.Config, "unknown input format of %s, expected .bam, .fastq, .fq, .fasta or .fa", path)
}
