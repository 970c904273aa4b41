package kmer

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/nvnieuwk/ampclust/errs"
	"gonum.org/v1/gonum/floats"
)

func testReads() []Read {
	return []Read{
		{ID: "read1", Seq: "ACGTACGTTGCA"},
		{ID: "read2", Seq: "ACGTACGTTGCC"},
		{ID: "read3", Seq: "TTGACCATGGCA"},
		{ID: "read4", Seq: "TTGACCATGGCT"},
	}
}

func TestCollapse(t *testing.T) {
	tests := []struct {
		seq   string
		level int
		want  string
	}{
		{"AAAACGT", 1, "ACGT"},
		{"AAAACCGGGT", 2, "AACCGGT"},
		{"AAAACGT", 0, "AAAACGT"},
		{"", 1, ""},
		{"ACGT", 3, "ACGT"},
	}
	for _, test := range tests {
		got := Collapse(test.seq, test.level)
		if got != test.want {
			t.Errorf("Collapse(%q, %d) = %q, want %q", test.seq, test.level, got, test.want)
		}
		if again := Collapse(got, test.level); again != got {
			t.Errorf("Collapse is not idempotent on %q: %q", got, again)
		}
	}
}

func TestCollapseRunBound(t *testing.T) {
	seq := "GGGGGGATTTTTCCCAAAAAAAAT"
	for level := 1; level <= 4; level++ {
		collapsed := Collapse(seq, level)
		if strings.Contains(collapsed, strings.Repeat("A", level+1)) ||
			strings.Contains(collapsed, strings.Repeat("G", level+1)) ||
			strings.Contains(collapsed, strings.Repeat("T", level+1)) {
			t.Errorf("level %d left a longer run in %q", level, collapsed)
		}
	}
}

func TestNormalizeAndCount(t *testing.T) {
	n := Normalize("AAAACGT", 1, 0)
	if n.Seq != "ACGT" {
		t.Fatalf("normalized to %q, want ACGT", n.Seq)
	}
	want := KmerCount{"ACG": 1, "CGT": 1}
	if got := n.Count(3); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestCountKmers(t *testing.T) {
	seq := "ACGTACGTAC"
	for k := 1; k <= len(seq); k++ {
		if total := CountKmers(seq, k).Total(); total != len(seq)-k+1 {
			t.Errorf("k=%d counted %d windows, want %d", k, total, len(seq)-k+1)
		}
	}

	short := CountKmers("ACG", 5)
	if short == nil || len(short) != 0 {
		t.Fatalf("a short sequence should give an empty count, got %v", short)
	}
}

func TestCountMinimizers(t *testing.T) {
	got := CountMinimizers("ACGTACGT", 5, 2)
	if want := (KmerCount{"AC": 4}); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if total := CountMinimizers("TTGACCATGGCA", 6, 3).Total(); total != 7 {
		t.Fatalf("every window should give one minimizer, got %d", total)
	}
	if got := CountMinimizers("ACGTA", 3, 0); !reflect.DeepEqual(got, CountKmers("ACGTA", 3)) {
		t.Fatalf("minimizer 0 should count raw k-mers")
	}
}

func TestTrimEnds(t *testing.T) {
	if got := TrimEnds("ACGTAC", 2); got != "GT" {
		t.Errorf("got %q, want GT", got)
	}
	if got := TrimEnds("ACGT", 2); got != "" {
		t.Errorf("got %q, want an empty sequence", got)
	}
	if got := TrimEnds("ACGT", 0); got != "ACGT" {
		t.Errorf("got %q, want ACGT", got)
	}
}

func TestQuality(t *testing.T) {
	if q := (Read{RQ: 0.99, Qual: []float64{0.5}}).Quality(); q != 0.99 {
		t.Errorf("the rq tag should win, got %v", q)
	}
	if q := (Read{Qual: []float64{0.9, 0.7}}).Quality(); math.Abs(q-0.8) > 1e-12 {
		t.Errorf("got %v, want the mean 0.8", q)
	}
	if q := (Read{}).Quality(); q != 1 {
		t.Errorf("a read without qualities should be perfect, got %v", q)
	}

	probs := PhredSliceToProb([]byte{0, 10, 20, 30})
	want := []float64{0, 0.9, 0.99, 0.999}
	if !floats.EqualApprox(probs, want, 1e-12) {
		t.Errorf("got %v, want %v", probs, want)
	}
}

func TestValidate(t *testing.T) {
	bad := []func(*Options){
		func(o *Options) { o.K = 0 },
		func(o *Options) { o.Minimizer = 12 },
		func(o *Options) { o.HPCollapse = -1 },
		func(o *Options) { o.IgnoreEnds = -1 },
		func(o *Options) { o.TrimLow, o.TrimHigh = 0.8, 0.2 },
		func(o *Options) { o.TrimHigh = 1.5 },
		func(o *Options) { o.Simpson = 2 },
		func(o *Options) { o.Norm = "l3" },
		func(o *Options) { o.Reduction = "tsne" },
		func(o *Options) { o.Components = -1 },
	}
	for i, change := range bad {
		opts := DefaultOptions
		change(&opts)
		if err := opts.Validate(); !errs.Is(err, errs.Config) {
			t.Errorf("case %d: expected a config error, got %v", i, err)
		}
	}
	if err := DefaultOptions.Validate(); err != nil {
		t.Fatalf("the defaults should be valid: %v", err)
	}
}

func TestTrimFromSymmetric(t *testing.T) {
	low, high := TrimFromSymmetric(0.1)
	if low != 0.1 || high != 0.9 {
		t.Fatalf("got [%v, %v]", low, high)
	}
}

func TestTrimColumns(t *testing.T) {
	counts := []KmerCount{
		{"AC": 1, "CG": 2},
		{"AC": 1},
		{"AC": 3, "GT": 1},
		{"AC": 1, "CG": 1},
	}
	columns := Union(counts)
	if !reflect.DeepEqual(columns, []string{"AC", "CG", "GT"}) {
		t.Fatalf("unexpected union %v", columns)
	}
	if got := TrimColumns(counts, columns, 0, 1); !reflect.DeepEqual(got, columns) {
		t.Errorf("[0, 1] should keep everything, got %v", got)
	}
	if got := TrimColumns(counts, columns, 0.3, 0.9); !reflect.DeepEqual(got, []string{"CG"}) {
		t.Errorf("got %v, want [CG]", got)
	}

	// Narrower bounds never keep more columns
	wide := TrimColumns(counts, columns, 0.2, 1)
	narrow := TrimColumns(counts, columns, 0.3, 0.8)
	for _, kmer := range narrow {
		found := false
		for _, w := range wide {
			found = found || w == kmer
		}
		if !found {
			t.Errorf("%s kept by the narrow bounds but not by the wide ones", kmer)
		}
	}
}

func TestSimpson(t *testing.T) {
	if got := Simpson([]float64{1, 1}); got != 0.5 {
		t.Errorf("got %v, want 0.5", got)
	}
	if got := Simpson([]float64{4, 0, 0}); got != 1 {
		t.Errorf("got %v, want 1", got)
	}
	if got := Simpson([]float64{0, 0}); got != 0 {
		t.Errorf("got %v, want 0", got)
	}

	counts := []KmerCount{{"AC": 1, "GT": 5}, {"AC": 1}, {"AC": 1}}
	if got := DominanceFilter(counts, []string{"AC", "GT"}, 0.6); !reflect.DeepEqual(got, []string{"AC"}) {
		t.Errorf("got %v, want [AC]", got)
	}
}

func TestBuildScenario(t *testing.T) {
	opts := Options{K: 3, HPCollapse: 1, TrimHigh: 1}
	m, err := Build([]Read{{ID: "r", Seq: "AAAACGT"}}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(m.Columns, []string{"ACG", "CGT"}) {
		t.Fatalf("unexpected columns %v", m.Columns)
	}
	if !reflect.DeepEqual(m.Row(0), []float64{1, 1}) {
		t.Fatalf("unexpected row %v", m.Row(0))
	}
}

func TestBuildNormalize(t *testing.T) {
	for _, norm := range []string{NormL1, NormL2} {
		opts := Options{K: 3, HPCollapse: 1, TrimHigh: 1, Norm: norm}
		m, err := Build(testReads(), opts)
		if err != nil {
			t.Fatal(err)
		}
		l := 1.0
		if norm == NormL2 {
			l = 2
		}
		for i := 0; i < m.Len(); i++ {
			if n := floats.Norm(m.Row(i), l); math.Abs(n-1) > 1e-9 {
				t.Errorf("%s: row %d has norm %v", norm, i, n)
			}
		}
	}
}

func TestBuildIgnoreEnds(t *testing.T) {
	opts := Options{K: 2, TrimHigh: 1, IgnoreEnds: 2}
	m, err := Build([]Read{{ID: "r", Seq: "TTACGTT"}}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(m.Columns, []string{"AC", "CG"}) {
		t.Fatalf("unexpected columns %v", m.Columns)
	}
}

func TestBuildErrors(t *testing.T) {
	if _, err := Build(nil, DefaultOptions); !errs.Is(err, errs.Config) {
		t.Errorf("zero reads should be a config error, got %v", err)
	}

	dup := []Read{{ID: "a", Seq: "ACGTACGTACGTA"}, {ID: "a", Seq: "ACGTACGTACGTA"}}
	if _, err := Build(dup, DefaultOptions); !errs.Is(err, errs.Kmer) {
		t.Errorf("duplicate reads should be a k-mer error, got %v", err)
	}

	disjoint := []Read{{ID: "a", Seq: "AAAA"}, {ID: "b", Seq: "CCCC"}}
	opts := Options{K: 2, TrimLow: 1, TrimHigh: 1}
	if _, err := Build(disjoint, opts); !errs.Is(err, errs.Config) {
		t.Errorf("trimming every column should be a config error, got %v", err)
	}

	opts = DefaultOptions
	opts.K = 3
	opts.Components = 10
	if _, err := Build(testReads(), opts); !errs.Is(err, errs.Config) {
		t.Errorf("too many components should be a config error, got %v", err)
	}
}

func TestBuildReduce(t *testing.T) {
	for _, test := range []struct {
		method string
		want   []string
	}{
		{ReducePCA, []string{"PC1", "PC2"}},
		{ReduceFeatAgg, []string{"FA1", "FA2"}},
	} {
		opts := DefaultOptions
		opts.K = 3
		opts.Reduction = test.method
		m, err := Build(testReads(), opts)
		if err != nil {
			t.Fatalf("%s: %v", test.method, err)
		}
		rows, cols := m.Data.Dims()
		if rows != 4 || cols != 2 {
			t.Fatalf("%s: got a %dx%d matrix", test.method, rows, cols)
		}
		if !reflect.DeepEqual(m.Columns, test.want) {
			t.Fatalf("%s: got columns %v", test.method, m.Columns)
		}
		if !reflect.DeepEqual(m.Reads, []string{"read1", "read2", "read3", "read4"}) {
			t.Fatalf("%s: row order changed: %v", test.method, m.Reads)
		}
	}
}

func TestPCASeparates(t *testing.T) {
	opts := DefaultOptions
	opts.K = 3
	opts.Components = 1
	m, err := Build(testReads(), opts)
	if err != nil {
		t.Fatal(err)
	}
	// The first component splits the two pairs of similar reads
	a, b := m.Row(0)[0], m.Row(2)[0]
	if math.Abs(a-m.Row(1)[0]) > math.Abs(a-b) || math.Abs(b-m.Row(3)[0]) > math.Abs(a-b) {
		t.Fatalf("first component does not separate the pairs: %v %v", m.Row(0), m.Row(2))
	}
}
