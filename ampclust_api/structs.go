package ampclust_api

import (
	"github.com/nvnieuwk/ampclust/kmer"
	"github.com/nvnieuwk/ampclust/models"
	"github.com/nvnieuwk/ampclust/reads"
)

// The struct representing one clustering run, built from the command line
type Config struct {
	// The input BAM or FASTQ file
	Input string

	// Parallel jobs for the models that support it, nil when not given
	NJobs *int

	// The options of the feature matrix builder
	// HPCollapse is 0 when --noHPcollapse is given and Norm is "" for 'none'
	Kmer kmer.Options

	// The name of the clustering model
	Model string

	// The eps value, 0 when not given
	// It is renamed per model (eps, max_eps, tol, distance_threshold, damping, bandwidth)
	Eps float64

	// Minimum reads to be a cluster
	MinReads int

	// The native model parameters read from the params file, nil without --params
	// Keys are the native names of the selected model
	Params map[string]any

	// The resolved parameters of the model, filled by ReadConfig
	Resolved models.Params

	// Only reads overlapping the region are used, nil for all reads
	Region *reads.Region

	// The indexed FASTA reference to extract the region with, empty to use full reads
	Reference string

	// Bases fetched on each side of the region when extracting
	FlankSize int

	// Minimum read quality in [0,1]
	MinQV float64

	// The whitelist file, empty for all reads
	Whitelist string

	// The FASTA file with both flanking or primer sequences, empty for no filter
	Flanks string

	// The prefix of all output files
	Prefix string

	// Write a BAM per cluster
	SplitBam bool

	// Do not write the HP tagged BAM
	NoBam bool

	// Leave reads without a cluster out of the output BAM
	Drop bool

	// Only plot the distance to the minReads-th neighbour and stop
	TestPlot bool

	// Plot the first two axes of the feature matrix by cluster
	PlotReads bool
}

// Overrides returns the command line values of the model parameters
func (config *Config) Overrides() models.Overrides {
	overrides := models.Overrides{
		models.UserEps:       config.Eps,
		models.UserMinReads:  config.MinReads,
		models.UserNormalize: config.Kmer.Norm,
	}
	if config.NJobs != nil {
		overrides[models.UserNJobs] = *config.NJobs
	}
	return overrides
}
