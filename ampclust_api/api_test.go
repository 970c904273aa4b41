package ampclust_api

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"github.com/nvnieuwk/ampclust/errs"
	"github.com/nvnieuwk/ampclust/kmer"
	"github.com/nvnieuwk/ampclust/models"
	"github.com/nvnieuwk/ampclust/report"
	cli "github.com/urfave/cli/v2"
)

func testFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "njobs"},
		&cli.IntFlag{Name: "kmer", Value: 11},
		&cli.IntFlag{Name: "minimizer"},
		&cli.IntFlag{Name: "hpCollapse", Value: 1},
		&cli.BoolFlag{Name: "noHPcollapse", Aliases: []string{"H"}},
		&cli.StringFlag{Name: "model", Value: "dbscan"},
		&cli.StringFlag{Name: "agg", Value: "pca"},
		&cli.IntFlag{Name: "components", Value: 2},
		&cli.Float64Flag{Name: "eps"},
		&cli.IntFlag{Name: "minReads", Value: 5},
		&cli.StringFlag{Name: "normalize", Value: "l1"},
		&cli.IntFlag{Name: "ignoreEnds"},
		&cli.Float64Flag{Name: "trim"},
		&cli.Float64Flag{Name: "trimLow"},
		&cli.Float64Flag{Name: "trimHigh", Value: 1},
		&cli.StringFlag{Name: "params"},
		&cli.StringFlag{Name: "region"},
		&cli.StringFlag{Name: "extractReference"},
		&cli.IntFlag{Name: "flankSize", Value: 100},
		&cli.Float64Flag{Name: "minQV", Value: 0.99},
		&cli.StringFlag{Name: "prefix", Value: "./clustered"},
	}
}

func readConfig(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	var (
		config *Config
		err    error
	)
	app := &cli.App{
		Name:  "ampclust",
		Flags: testFlags(),
		Action: func(Cctx *cli.Context) error {
			config, err = ReadConfig(Cctx)
			return nil
		},
	}
	if runErr := app.Run(append([]string{"ampclust"}, args...)); runErr != nil {
		t.Fatal(runErr)
	}
	return config, err
}

func TestReadConfigDefaults(t *testing.T) {
	config, err := readConfig(t, "reads.bam")
	if err != nil {
		t.Fatal(err)
	}
	if config.Input != "reads.bam" || config.Model != "dbscan" || config.NJobs != nil || config.Region != nil {
		t.Fatalf("unexpected config %+v", config)
	}
	if config.Kmer != kmer.DefaultOptions {
		t.Fatalf("got %+v, want %+v", config.Kmer, kmer.DefaultOptions)
	}
	// The default minReads overrides min_samples
	if config.Resolved["eps"] != 0.01 || config.Resolved["min_samples"] != 5 {
		t.Fatalf("unexpected parameters %v", config.Resolved)
	}
}

func TestReadConfigFlags(t *testing.T) {
	config, err := readConfig(t, "-H", "--normalize", "none", "--trim", "0.1", "--njobs", "4", "--region", "chr1:10-20", "reads.bam")
	if err != nil {
		t.Fatal(err)
	}
	if config.Kmer.HPCollapse != 0 || config.Kmer.Norm != kmer.NormNone {
		t.Fatalf("unexpected kmer options %+v", config.Kmer)
	}
	if config.Kmer.TrimLow != 0.1 || config.Kmer.TrimHigh != 0.9 {
		t.Fatalf("unexpected trim bounds [%v, %v]", config.Kmer.TrimLow, config.Kmer.TrimHigh)
	}
	if config.NJobs == nil || *config.NJobs != 4 || config.Resolved["n_jobs"] != 4 {
		t.Fatalf("njobs was not forwarded: %v", config.Resolved)
	}
	if config.Region == nil || config.Region.Chrom != "chr1" || config.Region.Start != 10 {
		t.Fatalf("unexpected region %+v", config.Region)
	}

	config, err = readConfig(t, "--trim", "0.1", "--trimHigh", "0.95", "reads.bam")
	if err != nil {
		t.Fatal(err)
	}
	if config.Kmer.TrimLow != 0.1 || config.Kmer.TrimHigh != 0.95 {
		t.Fatalf("explicit bounds should win, got [%v, %v]", config.Kmer.TrimLow, config.Kmer.TrimHigh)
	}
}

func TestReadConfigErrors(t *testing.T) {
	tests := [][]string{
		{},
		{"--model", "affprop", "--eps", "0.3", "reads.bam"},
		{"--model", "hdbscan", "reads.bam"},
		{"--extractReference", "ref.fa", "reads.bam"},
		{"--region", "chr1", "reads.bam"},
		{"--minQV", "2", "reads.bam"},
		{"--kmer", "0", "reads.bam"},
		{"--params", "missing.json", "reads.bam"},
	}
	for _, args := range tests {
		if _, err := readConfig(t, args...); !errs.Is(err, errs.Config) {
			t.Errorf("%v: expected a config error, got %v", args, err)
		}
	}

	_, err := readConfig(t, "--model", "affprop", "--eps", "0.3", "reads.bam")
	if !strings.Contains(err.Error(), "damping") {
		t.Errorf("the damping error should say so: %v", err)
	}
}

// Model parameters that can never work are rejected before the input is opened
func TestReadConfigModelParams(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		model  string
		params string
		want   string
	}{
		{"dbscan", "{\"bogus_key\": 1, \"metric\": \"nosuchmetric\"}", "bogus_key"},
		{"dbscan", "metric: nosuchmetric\n", "nosuchmetric"},
		{"optics", "xi: 1.5\n", "xi"},
		{"aggcluster", "linkage: median\n", "median"},
		{"kmeans", "n_clusters: two\n", "n_clusters"},
	}
	for i, test := range tests {
		path := filepath.Join(dir, fmt.Sprintf("params%d.yaml", i))
		if err := os.WriteFile(path, []byte(test.params), 0o644); err != nil {
			t.Fatal(err)
		}
		missing := filepath.Join(dir, "missing.fq")
		_, err := readConfig(t, "--model", test.model, "--params", path, missing)
		if !errs.Is(err, errs.Config) {
			t.Errorf("%s %s: expected a config error, got %v", test.model, test.params, err)
			continue
		}
		if !strings.Contains(err.Error(), test.want) {
			t.Errorf("%s: the error should mention %s: %v", test.model, test.want, err)
		}
	}
}

func TestReadConfigParams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	if err := os.WriteFile(path, []byte("eps: 0.05\nmetric: manhattan\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	config, err := readConfig(t, "--params", path, "reads.bam")
	if err != nil {
		t.Fatal(err)
	}
	if config.Resolved["eps"] != 0.05 || config.Resolved["metric"] != "manhattan" {
		t.Fatalf("the params file was not applied: %v", config.Resolved)
	}

	config, err = readConfig(t, "--params", path, "--eps", "0.2", "reads.bam")
	if err != nil {
		t.Fatal(err)
	}
	if config.Resolved["eps"] != 0.2 {
		t.Fatalf("the command line should win: %v", config.Resolved)
	}
}

func TestReadParams(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	params, err := ReadParams(write("params.json", `{"n_clusters": 3, "tol": 0.5, "random_state": null, "linkage": "average"}`))
	if err != nil {
		t.Fatal(err)
	}
	if params["n_clusters"] != 3 || params["tol"] != 0.5 || params["linkage"] != "average" {
		t.Fatalf("unexpected params %v", params)
	}
	if v, ok := params["random_state"]; !ok || v != nil {
		t.Fatalf("null should be kept as nil, got %v", params)
	}

	for _, bad := range []string{`{"a": {"b": 1}}`, "a:\n  - 1\n  - 2\n", "[1, 2]", "{"} {
		if _, err := ReadParams(write("bad.yaml", bad)); !errs.Is(err, errs.Config) {
			t.Errorf("%q: expected a config error, got %v", bad, err)
		}
	}
}

func randomSeq(seed int64, n int) string {
	r := rand.New(rand.NewSource(seed))
	b := make([]byte, n)
	for i := range b {
		b[i] = "ACGT"[r.Intn(4)]
	}
	return string(b)
}

func testConfig(t *testing.T, input string, prefix string) *Config {
	t.Helper()
	config := &Config{
		Input:    input,
		Kmer:     kmer.DefaultOptions,
		Model:    "dbscan",
		MinReads: 5,
		MinQV:    0.99,
		Prefix:   prefix,
	}
	resolved, err := models.Resolve(config.Model, config.Overrides(), nil)
	if err != nil {
		t.Fatal(err)
	}
	config.Resolved = resolved
	return config
}

func writeFastq(t *testing.T, path string, qual byte, seqs ...string) {
	t.Helper()
	var b strings.Builder
	for i, seq := range seqs {
		fmt.Fprintf(&b, "@read%d\n%s\n+\n%s\n", i, seq, strings.Repeat(string(qual), len(seq)))
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
}

func twoAlleles() []string {
	a, b := randomSeq(1, 60), randomSeq(2, 60)
	var seqs []string
	for i := 0; i < 6; i++ {
		seqs = append(seqs, a)
	}
	for i := 0; i < 6; i++ {
		seqs = append(seqs, b)
	}
	return seqs
}

func TestExecuteFastq(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "reads.fastq")
	writeFastq(t, input, 'I', twoAlleles()...)

	config := testConfig(t, input, filepath.Join(dir, "out"))
	config.PlotReads = true
	result, err := Execute(config)
	if err != nil {
		t.Fatal(err)
	}
	if result.Stats.Passed != 12 || len(result.Labels) != 12 {
		t.Fatalf("unexpected result %+v", result.Stats)
	}
	for i, l := range result.Labels {
		if want := i / 6; l != want {
			t.Fatalf("read %d got label %d, want %d: %v", i, l, want, result.Labels)
		}
	}

	content, err := os.ReadFile(config.Prefix + ".clusters.txt")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(content), ">cluster0_numreads6\nread0\n") || !strings.Contains(string(content), ">cluster1_numreads6\nread6\n") {
		t.Fatalf("unexpected cluster report:\n%s", content)
	}
	if _, err := os.Stat(config.Prefix + ".clusters.png"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(report.TaggedPath(config.Prefix)); err == nil {
		t.Fatalf("FASTQ input should not give a BAM")
	}
}

func TestExecuteTestPlot(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "reads.fastq")
	writeFastq(t, input, 'I', twoAlleles()...)

	config := testConfig(t, input, filepath.Join(dir, "out"))
	config.TestPlot = true
	result, err := Execute(config)
	if err != nil {
		t.Fatal(err)
	}
	if result.Labels != nil || len(result.Outputs) != 1 {
		t.Fatalf("a test plot run should not cluster: %+v", result)
	}
	if _, err := os.Stat(config.Prefix + ".eps_estimator.png"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(config.Prefix + ".clusters.txt"); err == nil {
		t.Fatalf("a test plot run should not write clusters")
	}
}

func TestExecuteNoReads(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "reads.fastq")
	writeFastq(t, input, '+', randomSeq(1, 60), randomSeq(2, 60))

	config := testConfig(t, input, filepath.Join(dir, "out"))
	result, err := Execute(config)
	if !errs.Is(err, errs.Config) || !strings.Contains(err.Error(), "no reads passed filtering") {
		t.Fatalf("expected the empty input error, got %v", err)
	}
	if result != nil {
		t.Fatalf("no result expected")
	}
	if _, err := os.Stat(config.Prefix + ".clusters.txt"); err == nil {
		t.Fatalf("no clusters should be written")
	}
}

func writeBam(t *testing.T, path string, seqs []string) {
	t.Helper()
	ref, err := sam.NewReference("chr1", "", "", 1000, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	header, err := sam.NewHeader(nil, []*sam.Reference{ref})
	if err != nil {
		t.Fatal(err)
	}
	file, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	bw, err := bam.NewWriter(file, header, 1)
	if err != nil {
		t.Fatal(err)
	}
	rq, err := sam.NewAux(sam.NewTag("rq"), float32(0.999))
	if err != nil {
		t.Fatal(err)
	}
	for i, seq := range seqs {
		cigar := []sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, len(seq))}
		rec, err := sam.NewRecord(fmt.Sprintf("read%d", i), ref, nil, 100, -1, 0, 60, cigar, []byte(seq), nil, []sam.Aux{rq})
		if err != nil {
			t.Fatal(err)
		}
		if err := bw.Write(rec); err != nil {
			t.Fatal(err)
		}
	}
	if err := bw.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestExecuteBam(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "reads.bam")
	// The last read is alone and ends up as noise
	writeBam(t, input, append(twoAlleles(), randomSeq(3, 60)))

	config := testConfig(t, input, filepath.Join(dir, "out"))
	config.SplitBam = true
	result, err := Execute(config)
	if err != nil {
		t.Fatal(err)
	}
	if result.Assignment["read12"] != -1 {
		t.Fatalf("the single read should be noise: %v", result.Labels)
	}

	want := []string{
		config.Prefix + ".clusters.txt",
		report.TaggedPath(config.Prefix),
		report.SplitPath(config.Prefix, 0),
		report.SplitPath(config.Prefix, 1),
	}
	if strings.Join(result.Outputs, ",") != strings.Join(want, ",") {
		t.Fatalf("got outputs %v, want %v", result.Outputs, want)
	}
	for _, path := range want {
		if _, err := os.Stat(path); err != nil {
			t.Fatal(err)
		}
	}
}
