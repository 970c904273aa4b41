package kmer

import (
	"sort"

	"github.com/nvnieuwk/ampclust/errs"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Supported row normalisations
const (
	NormNone = ""
	NormL1   = "l1"
	NormL2   = "l2"
)

// Supported dimensionality reductions
const (
	ReducePCA     = "pca"
	ReduceFeatAgg = "featagg"
)

// The options of the feature matrix builder
type Options struct {
	// Size of the counting window
	K int

	// Maximum homopolymer length kept, 0 disables collapsing
	HPCollapse int

	// Minimizer length, 0 counts raw k-mers
	Minimizer int

	// Bases ignored at both ends of every read
	IgnoreEnds int

	// Columns present in a smaller fraction of the reads are dropped
	TrimLow float64

	// Columns present in a larger fraction of the reads are dropped
	TrimHigh float64

	// Columns with a Simpson dominance index above this value are dropped, 0 disables
	Simpson float64

	// Row normalisation: NormNone, NormL1 or NormL2
	Norm string

	// Reduction method: ReducePCA or ReduceFeatAgg
	Reduction string

	// Number of components to reduce to, 0 keeps the full matrix
	Components int
}

// DefaultOptions mirrors the command line defaults
var DefaultOptions = Options{
	K:          11,
	HPCollapse: 1,
	TrimLow:    0,
	TrimHigh:   1,
	Norm:       NormL1,
	Reduction:  ReducePCA,
	Components: 2,
}

// TrimFromSymmetric derives both trim bounds from a single value
func TrimFromSymmetric(trim float64) (low float64, high float64) {
	return trim, 1 - trim
}

// Validate checks the options before any read is counted
func (o Options) Validate() error {
	if o.K <= 0 {
		return errs.New(errs.Config, "kmer size must be positive, got %d", o.K)
	}
	if o.Minimizer < 0 || o.Minimizer > o.K {
		return errs.New(errs.Config, "minimizer length must be in [0, %d] for k=%d, got %d", o.K, o.K, o.Minimizer)
	}
	if o.HPCollapse < 0 {
		return errs.New(errs.Config, "homopolymer collapse level must not be negative, got %d", o.HPCollapse)
	}
	if o.IgnoreEnds < 0 {
		return errs.New(errs.Config, "ignoreEnds must not be negative, got %d", o.IgnoreEnds)
	}
	if o.TrimLow < 0 || o.TrimHigh > 1 || o.TrimLow > o.TrimHigh {
		return errs.New(errs.Config, "trim bounds must satisfy 0 <= low <= high <= 1, got [%v, %v]", o.TrimLow, o.TrimHigh)
	}
	if o.Simpson < 0 || o.Simpson > 1 {
		return errs.New(errs.Config, "simpson dominance must be in [0, 1], got %v", o.Simpson)
	}
	switch o.Norm {
	case NormNone, NormL1, NormL2:
	default:
		return errs.New(errs.Config, "unknown normalization '%s', must be one of: l1, l2, none", o.Norm)
	}
	if o.Components < 0 {
		return errs.New(errs.Config, "components must not be negative, got %d", o.Components)
	}
	if o.Components > 0 && o.Reduction != ReducePCA && o.Reduction != ReduceFeatAgg {
		return errs.New(errs.Config, "unknown reduction '%s', must be one of: pca, featagg", o.Reduction)
	}
	return nil
}

// The read by feature matrix handed to the clustering models
// The matrix is read-only once Build has returned it
type FeatureMatrix struct {
	// Read identifiers in row order
	Reads []string

	// Column names: k-mers, or component names after reduction
	Columns []string

	// The values, one row per read
	Data *mat.Dense
}

// Len returns the number of reads in the matrix
func (m *FeatureMatrix) Len() int { return len(m.Reads) }

// Row returns a view of the values of row i
func (m *FeatureMatrix) Row(i int) []float64 { return m.Data.RawRowView(i) }

// Points returns views of all rows, the input format of the cluster package
func (m *FeatureMatrix) Points() [][]float64 {
	points := make([][]float64, m.Len())
	for i := range points {
		points[i] = m.Row(i)
	}
	return points
}

// Build counts the k-mers of every read and turns them into a feature matrix.
// Rows keep the order of reads. An empty read set is a configuration error.
func Build(reads []Read, opts Options) (*FeatureMatrix, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(reads) == 0 {
		return nil, errs.New(errs.Config, "no reads passed filtering, nothing to cluster")
	}

	ids := make([]string, len(reads))
	counts := make([]KmerCount, len(reads))
	seen := make(map[string]struct{}, len(reads))
	for i, read := range reads {
		if _, dup := seen[read.ID]; dup {
			return nil, errs.New(errs.Kmer, "read %s is present more than once", read.ID)
		}
		seen[read.ID] = struct{}{}
		ids[i] = read.ID
		counts[i] = Normalize(TrimEnds(read.Seq, opts.IgnoreEnds), opts.HPCollapse, opts.Minimizer).Count(opts.K)
	}

	columns := TrimColumns(counts, Union(counts), opts.TrimLow, opts.TrimHigh)
	if opts.Simpson > 0 {
		columns = DominanceFilter(counts, columns, opts.Simpson)
	}
	if len(columns) == 0 {
		return nil, errs.New(errs.Config, "no k-mers left after trimming [%v, %v] and dominance filter %v", opts.TrimLow, opts.TrimHigh, opts.Simpson)
	}

	data := mat.NewDense(len(reads), len(columns), nil)
	for i, count := range counts {
		row := data.RawRowView(i)
		for j, kmer := range columns {
			row[j] = float64(count[kmer])
		}
	}
	NormalizeRows(data, opts.Norm)

	matrix := &FeatureMatrix{Reads: ids, Columns: columns, Data: data}
	if opts.Components > 0 {
		return reduce(matrix, opts.Reduction, opts.Components)
	}
	return matrix, nil
}

// Union returns all k-mers seen in counts, sorted
func Union(counts []KmerCount) []string {
	all := map[string]struct{}{}
	for _, count := range counts {
		for kmer := range count {
			all[kmer] = struct{}{}
		}
	}
	columns := make([]string, 0, len(all))
	for kmer := range all {
		columns = append(columns, kmer)
	}
	sort.Strings(columns)
	return columns
}

// TrimColumns keeps the columns present in a fraction of the reads within [low, high]
func TrimColumns(counts []KmerCount, columns []string, low float64, high float64) []string {
	if len(counts) == 0 {
		return nil
	}
	kept := make([]string, 0, len(columns))
	total := float64(len(counts))
	for _, kmer := range columns {
		present := 0
		for _, count := range counts {
			if count[kmer] > 0 {
				present++
			}
		}
		frac := float64(present) / total
		if frac < low || frac > high {
			continue
		}
		kept = append(kept, kmer)
	}
	return kept
}

// Simpson returns the Simpson dominance index of a count distribution
func Simpson(values []float64) float64 {
	total := floats.Sum(values)
	if total == 0 {
		return 0
	}
	index := 0.0
	for _, v := range values {
		p := v / total
		index += p * p
	}
	return index
}

// DominanceFilter drops columns where a few reads hold most of the counts
func DominanceFilter(counts []KmerCount, columns []string, max float64) []string {
	kept := make([]string, 0, len(columns))
	values := make([]float64, len(counts))
	for _, kmer := range columns {
		for i, count := range counts {
			values[i] = float64(count[kmer])
		}
		if Simpson(values) > max {
			continue
		}
		kept = append(kept, kmer)
	}
	return kept
}

// NormalizeRows scales every non-zero row to unit L1 or L2 norm in place
func NormalizeRows(data *mat.Dense, norm string) {
	var l float64
	switch norm {
	case NormL1:
		l = 1
	case NormL2:
		l = 2
	default:
		return
	}
	rows, _ := data.Dims()
	for i := 0; i < rows; i++ {
		row := data.RawRowView(i)
		if n := floats.Norm(row, l); n > 0 {
			floats.Scale(1/n, row)
		}
	}
}
