package ampclust_api

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/nvnieuwk/ampclust/errs"
	"github.com/nvnieuwk/ampclust/kmer"
	"github.com/nvnieuwk/ampclust/models"
	"github.com/nvnieuwk/ampclust/reads"
	"github.com/pkg/errors"
	cli "github.com/urfave/cli/v2"
	"gopkg.in/yaml.v2"
)

// Valid values of the choice flags
var (
	ValidAggregations   = []string{kmer.ReducePCA, kmer.ReduceFeatAgg}
	ValidNormalizations = []string{kmer.NormL1, kmer.NormL2, "none"}
)

// Read the command line, cast it to its struct and validate it.
// Every configuration problem is reported here, before any read is touched.
func ReadConfig(Cctx *cli.Context) (*Config, error) {
	config := &Config{
		Input:     Cctx.Args().First(),
		Model:     Cctx.String("model"),
		Eps:       Cctx.Float64("eps"),
		MinReads:  Cctx.Int("minReads"),
		Reference: Cctx.String("extractReference"),
		FlankSize: Cctx.Int("flankSize"),
		MinQV:     Cctx.Float64("minQV"),
		Whitelist: Cctx.String("whitelist"),
		Flanks:    Cctx.String("flanks"),
		Prefix:    Cctx.String("prefix"),
		SplitBam:  Cctx.Bool("splitBam"),
		NoBam:     Cctx.Bool("noBam"),
		Drop:      Cctx.Bool("drop"),
		TestPlot:  Cctx.Bool("testPlot"),
		PlotReads: Cctx.Bool("plotReads"),
		Kmer: kmer.Options{
			K:          Cctx.Int("kmer"),
			HPCollapse: Cctx.Int("hpCollapse"),
			Minimizer:  Cctx.Int("minimizer"),
			IgnoreEnds: Cctx.Int("ignoreEnds"),
			TrimLow:    Cctx.Float64("trimLow"),
			TrimHigh:   Cctx.Float64("trimHigh"),
			Simpson:    Cctx.Float64("simpsonDominance"),
			Norm:       Cctx.String("normalize"),
			Reduction:  Cctx.String("agg"),
			Components: Cctx.Int("components"),
		},
	}
	if config.Input == "" {
		return nil, errs.New(errs.Config, "no input BAM or FASTQ file given")
	}
	if Cctx.IsSet("njobs") {
		njobs := Cctx.Int("njobs")
		config.NJobs = &njobs
	}
	if Cctx.Bool("noHPcollapse") {
		config.Kmer.HPCollapse = 0
	}
	if region := Cctx.String("region"); region != "" {
		parsed, err := reads.ParseRegion(region)
		if err != nil {
			return nil, err
		}
		config.Region = &parsed
	}
	if paramsFile := Cctx.String("params"); paramsFile != "" {
		params, err := ReadParams(paramsFile)
		if err != nil {
			return nil, err
		}
		config.Params = params
	}

	config.defineMissing(Cctx.Float64("trim"), Cctx.IsSet("trimLow"), Cctx.IsSet("trimHigh"))
	if err := config.validate(); err != nil {
		return nil, err
	}

	resolved, err := models.Resolve(config.Model, config.Overrides(), config.Params)
	if err != nil {
		return nil, err
	}
	if err := models.Check(config.Model, resolved); err != nil {
		return nil, err
	}
	config.Resolved = resolved
	return config, nil
}

// Define all derived and missing values
func (config *Config) defineMissing(trim float64, lowSet bool, highSet bool) {
	// A symmetric trim fills the bounds that were not given explicitly
	if trim > 0 {
		low, high := kmer.TrimFromSymmetric(trim)
		if !lowSet {
			config.Kmer.TrimLow = low
		}
		if !highSet {
			config.Kmer.TrimHigh = high
		}
	}
	if !highSet && trim <= 0 && config.Kmer.TrimHigh == 0 {
		config.Kmer.TrimHigh = 1
	}
	if config.Kmer.Norm == "none" {
		config.Kmer.Norm = kmer.NormNone
	}
	if config.Model == "" {
		config.Model = models.DefaultModel
	}
	if config.FlankSize == 0 {
		config.FlankSize = reads.DefaultFlankSize
	}
	if config.Prefix == "" {
		config.Prefix = "./clustered"
	}
}

func (config *Config) validate() error {
	if _, err := models.Lookup(config.Model); err != nil {
		return err
	}
	if config.Kmer.Components > 0 && !slices.Contains(ValidAggregations, config.Kmer.Reduction) {
		return errs.New(errs.Config, "invalid aggregation '%s', must be one of: %s", config.Kmer.Reduction, strings.Join(ValidAggregations, ", "))
	}
	if err := config.Kmer.Validate(); err != nil {
		return err
	}
	if config.MinReads < 1 {
		return errs.New(errs.Config, "minReads must be at least 1, got %d", config.MinReads)
	}
	if config.MinQV < 0 || config.MinQV > 1 {
		return errs.New(errs.Config, "minQV must be in [0, 1], got %v", config.MinQV)
	}
	if config.Reference != "" && config.Region == nil {
		return errs.New(errs.Config, "--extractReference needs a --region to extract")
	}
	if config.FlankSize < 0 {
		return errs.New(errs.Config, "flankSize must be positive, got %d", config.FlankSize)
	}
	return nil
}

// ReadParams reads a flat mapping of native model parameters from a YAML or
// JSON file. Nested mappings and lists are rejected.
func ReadParams(file string) (map[string]any, error) {
	paramsFile, err := os.ReadFile(file)
	if err != nil {
		return nil, errs.Wrap(errs.Config, errors.Wrap(err, file), "failed to open the params file")
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(paramsFile, &raw); err != nil {
		return nil, errs.Wrap(errs.Config, errors.Wrap(err, file), "failed to parse the params file")
	}

	params := make(map[string]any, len(raw))
	for key, value := range raw {
		switch value.(type) {
		case map[interface{}]interface{}, []interface{}:
			return nil, errs.New(errs.Config, "params file %s must be a flat mapping, '%s' is %s", file, key, describe(value))
		}
		params[key] = value
	}
	return params, nil
}

func describe(value any) string {
	if _, ok := value.([]interface{}); ok {
		return "a list"
	}
	return fmt.Sprintf("a mapping with %d keys", len(value.(map[interface{}]interface{})))
}
