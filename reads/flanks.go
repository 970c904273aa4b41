package reads

import (
	"errors"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/biogo/hts/fai"
	"github.com/nvnieuwk/ampclust/errs"
	pkgerrors "github.com/pkg/errors"
	"github.com/shenwei356/bio/seqio/fastx"
)

// Reasons a read yields no sub-sequence. They are counted, never fatal.
var (
	ErrOneSided      = errors.New("One Sided")
	ErrPoorAlignment = errors.New("Poor/no Alignment")
)

// Extractor finds the part of a read between two flanking sequences.
// start and stop are 0-based half-open positions in seq; sub is seq[start:stop],
// reverse complemented when the read comes from the reverse strand.
type Extractor interface {
	Extract(seq string) (start int, stop int, sub string, err error)
}

// Defaults of the flank anchoring
const (
	DefaultFlankSize = 100
	DefaultSeedSize  = 15
	DefaultMinSeeds  = 3
	DefaultBand      = 10
)

// Anchors a pair of flanks on reads with exact seed matches
type FlankExtractor struct {
	// The sequence left of the target, as on the forward strand
	Left string

	// The sequence right of the target, as on the forward strand
	Right string

	// Seeds shared with a read needed before a flank is anchored
	MinSeeds int

	// Diagonals further from the best one than this are not part of the anchor
	Band int

	seed  int
	index [4]seedIndex
}

type seedIndex map[string][]int

type anchor struct {
	start, end int
	seeds      int
	reverse    bool
}

// NewFlankExtractor indexes both flanks and their reverse complements
func NewFlankExtractor(left string, right string) (*FlankExtractor, error) {
	left = strings.ToUpper(left)
	right = strings.ToUpper(right)
	if left == "" || right == "" {
		return nil, errs.New(errs.Config, "both flanks must be non-empty")
	}

	seed := min(DefaultSeedSize, len(left), len(right))
	f := &FlankExtractor{
		Left:     left,
		Right:    right,
		MinSeeds: min(DefaultMinSeeds, len(left)-seed+1, len(right)-seed+1),
		Band:     DefaultBand,
		seed:     seed,
	}
	for i, flank := range []string{left, ReverseComplement(left), right, ReverseComplement(right)} {
		f.index[i] = newSeedIndex(flank, seed)
	}
	return f, nil
}

func newSeedIndex(seq string, k int) seedIndex {
	idx := seedIndex{}
	for i := 0; i <= len(seq)-k; i++ {
		idx[seq[i:i+k]] = append(idx[seq[i:i+k]], i)
	}
	return idx
}

// Extract anchors both flanks and returns the sequence between the inner ends
func (f *FlankExtractor) Extract(seq string) (int, int, string, error) {
	seq = strings.ToUpper(seq)
	left, leftOk := f.best(seq, 0)
	right, rightOk := f.best(seq, 2)

	switch {
	case leftOk && rightOk:
	case leftOk || rightOk:
		return 0, 0, "", ErrOneSided
	default:
		return 0, 0, "", ErrPoorAlignment
	}
	if left.reverse != right.reverse {
		return 0, 0, "", ErrPoorAlignment
	}

	pos := []int{left.start, left.end, right.start, right.end}
	sort.Ints(pos)
	start, stop := pos[1], pos[2]
	sub := seq[start:stop]
	if left.reverse {
		sub = ReverseComplement(sub)
	}
	return start, stop, sub, nil
}

// best anchors the flank at offset in the index table in either orientation
func (f *FlankExtractor) best(seq string, offset int) (anchor, bool) {
	forward, fok := f.anchor(seq, f.index[offset])
	reverse, rok := f.anchor(seq, f.index[offset+1])
	reverse.reverse = true
	switch {
	case fok && (!rok || forward.seeds >= reverse.seeds):
		return forward, true
	case rok:
		return reverse, true
	}
	return anchor{}, false
}

// anchor finds the most supported diagonal of exact seed matches between the
// read and one flank and returns the span of the read it covers
func (f *FlankExtractor) anchor(seq string, idx seedIndex) (anchor, bool) {
	type match struct{ query, diagonal int }
	var matches []match
	diagonals := map[int]int{}
	for i := 0; i <= len(seq)-f.seed; i++ {
		for _, pos := range idx[seq[i:i+f.seed]] {
			d := i - pos
			matches = append(matches, match{i, d})
			diagonals[d]++
		}
	}
	if len(matches) == 0 {
		return anchor{}, false
	}

	bestDiagonal, bestCount := 0, 0
	for d, count := range diagonals {
		if count > bestCount || (count == bestCount && d < bestDiagonal) {
			bestDiagonal, bestCount = d, count
		}
	}

	a := anchor{start: len(seq), end: 0}
	for _, m := range matches {
		if abs(m.diagonal-bestDiagonal) > f.Band {
			continue
		}
		a.seeds++
		a.start = min(a.start, m.query)
		a.end = max(a.end, m.query+f.seed)
	}
	return a, a.seeds >= f.MinSeeds
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// ReverseComplement returns the reverse complement of a DNA sequence, unknown bases become N
func ReverseComplement(seq string) string {
	var rc strings.Builder
	rc.Grow(len(seq))
	for i := len(seq) - 1; i >= 0; i-- {
		switch seq[i] {
		case 'A', 'a':
			rc.WriteByte('T')
		case 'C', 'c':
			rc.WriteByte('G')
		case 'G', 'g':
			rc.WriteByte('C')
		case 'T', 't':
			rc.WriteByte('A')
		case '-':
			rc.WriteByte('-')
		default:
			rc.WriteByte('N')
		}
	}
	return rc.String()
}

// FlanksFromReference fetches flankSize bases on both sides of region from an
// indexed FASTA file. Without a .fai next to the file the index is built in memory.
func FlanksFromReference(reference string, region Region, flankSize int) (*FlankExtractor, error) {
	if flankSize <= 0 {
		return nil, errs.New(errs.Config, "flank size must be positive, got %d", flankSize)
	}

	file, err := os.Open(reference)
	if err != nil {
		return nil, errs.Wrap(errs.Config, pkgerrors.Wrap(err, reference), "cannot open reference")
	}
	defer file.Close()

	index, err := readFai(reference, file)
	if err != nil {
		return nil, errs.Wrap(errs.Extract, err, "cannot index reference")
	}
	record, ok := index[region.Chrom]
	if !ok {
		return nil, errs.New(errs.Config, "contig %s of region %s is not in %s", region.Chrom, region, reference)
	}

	ref := fai.NewFile(file, index)
	// 0-based half-open: the region is [Start-1, Stop)
	left, err := fetch(ref, region.Chrom, max(0, region.Start-1-flankSize), region.Start-1)
	if err != nil {
		return nil, errs.Wrap(errs.Extract, pkgerrors.Wrapf(err, "%s left flank", region), "cannot fetch flank")
	}
	right, err := fetch(ref, region.Chrom, min(record.Length, region.Stop), min(record.Length, region.Stop+flankSize))
	if err != nil {
		return nil, errs.Wrap(errs.Extract, pkgerrors.Wrapf(err, "%s right flank", region), "cannot fetch flank")
	}
	return NewFlankExtractor(left, right)
}

func readFai(reference string, file io.ReadSeeker) (fai.Index, error) {
	faiFile, err := os.Open(reference + ".fai")
	if err == nil {
		defer faiFile.Close()
		index, err := fai.ReadFrom(faiFile)
		return index, pkgerrors.Wrap(err, reference+".fai")
	}
	index, err := fai.NewIndex(file)
	if err != nil {
		return nil, pkgerrors.Wrap(err, reference)
	}
	_, err = file.Seek(0, io.SeekStart)
	return index, pkgerrors.Wrap(err, reference)
}

func fetch(ref *fai.File, chrom string, start int, end int) (string, error) {
	if end <= start {
		return "", nil
	}
	seq, err := ref.SeqRange(chrom, start, end)
	if err != nil {
		return "", err
	}
	b, err := io.ReadAll(seq)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(string(b)), nil
}

// FlanksFromFasta reads the left and right flank from the first two records of a FASTA file
func FlanksFromFasta(file string) (*FlankExtractor, error) {
	reader, err := fastx.NewDefaultReader(file)
	if err != nil {
		return nil, errs.Wrap(errs.Config, pkgerrors.Wrap(err, file), "cannot open flanks")
	}
	defer reader.Close()

	var flanks []string
	for len(flanks) < 2 {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errs.Wrap(errs.Extract, pkgerrors.Wrap(err, file), "cannot read flanks")
		}
		flanks = append(flanks, string(record.Seq.Seq))
	}
	if len(flanks) < 2 {
		return nil, errs.New(errs.Config, "%s must contain two flank sequences, found %d", file, len(flanks))
	}
	return NewFlankExtractor(flanks[0], flanks[1])
}
