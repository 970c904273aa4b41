package ampclust_api

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/nvnieuwk/ampclust/cluster"
	"github.com/nvnieuwk/ampclust/figures"
	"github.com/nvnieuwk/ampclust/kmer"
	"github.com/nvnieuwk/ampclust/models"
	"github.com/nvnieuwk/ampclust/reads"
	"github.com/nvnieuwk/ampclust/report"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// The outcome of a run
type Result struct {
	// The read counts of every filter
	Stats reads.Stats

	// The feature matrix the model was fitted on
	Matrix *kmer.FeatureMatrix

	// The cluster label of every row of Matrix, nil for a test plot run
	Labels []int

	// The cluster label of every read
	Assignment models.Assignment

	// The files that were written
	Outputs []string
}

// Execute loads and filters the reads, builds the feature matrix, clusters it
// and writes the outputs
func Execute(config *Config) (*Result, error) {
	logger := log.New(os.Stderr, "", 0)
	result := &Result{}

	source, err := openSource(config)
	if err != nil {
		return nil, err
	}
	readSet, stats, err := source.Reads()
	result.Stats = stats
	if err != nil {
		return nil, err
	}
	logger.Println(stats)

	matrix, err := kmer.Build(readSet, config.Kmer)
	if err != nil {
		return nil, err
	}
	result.Matrix = matrix

	if config.TestPlot {
		logger.Println("Plotting distance to m-neighbors")
		path := config.Prefix + ".eps_estimator.png"
		if err := figures.PlotEPS(matrix, config.MinReads, epsMetric(config.Kmer.Norm), path); err != nil {
			return nil, err
		}
		result.Outputs = append(result.Outputs, path)
		return result, nil
	}

	model, err := models.New(config.Model, config.Resolved, config.MinReads)
	if err != nil {
		return nil, err
	}
	name := cases.Title(language.English, cases.Compact).String(strings.ToLower(config.Model))
	logger.Printf("Clustering %d reads with %s\n%s", matrix.Len(), name, model.Params)

	assignment, labels, err := model.Fit(matrix)
	if err != nil {
		return nil, err
	}
	result.Labels = labels
	result.Assignment = assignment

	sizes, noise := report.Summary(labels)
	counts := make([]string, len(sizes))
	for i, s := range sizes {
		counts[i] = fmt.Sprint(s.Size)
	}
	logger.Printf("Writing clusters with nreads %s", strings.Join(counts, ","))
	if noise > 0 {
		logger.Printf("%d reads identified as noise", noise)
	}
	clustersPath := config.Prefix + ".clusters.txt"
	if err := report.WriteClusters(clustersPath, matrix.Reads, labels); err != nil {
		return nil, err
	}
	result.Outputs = append(result.Outputs, clustersPath)

	if _, isBam := source.(*reads.BamSource); isBam && !config.NoBam {
		logger.Println("Adding HP tag to bam")
		out := report.TaggedPath(config.Prefix)
		tagStats, err := report.TagBam(config.Input, out, assignment, report.TagOptions{
			Drop:      config.Drop,
			Split:     config.SplitBam,
			Prefix:    config.Prefix,
			Extracted: config.Reference != "",
		})
		if err != nil {
			return nil, err
		}
		logger.Printf("Tagged %d of %d records, %d dropped", tagStats.Tagged, tagStats.Total, tagStats.Dropped)
		result.Outputs = append(result.Outputs, out)
		for _, size := range sizes {
			if path, ok := tagStats.Split[size.Label]; ok {
				result.Outputs = append(result.Outputs, path)
			}
		}
	}

	if config.PlotReads {
		path := config.Prefix + ".clusters.png"
		if err := figures.PlotReads(matrix, labels, path); err != nil {
			return nil, err
		}
		result.Outputs = append(result.Outputs, path)
	}

	return result, nil
}

// openSource sets up the read filters and picks the reader for the input
func openSource(config *Config) (reads.Source, error) {
	filter := reads.Filter{MinQV: config.MinQV}

	if config.Whitelist != "" {
		whitelist, err := reads.ReadWhitelist(config.Whitelist)
		if err != nil {
			return nil, err
		}
		filter.Whitelist = whitelist
	}
	if config.Reference != "" {
		extractor, err := reads.FlanksFromReference(config.Reference, *config.Region, config.FlankSize)
		if err != nil {
			return nil, err
		}
		filter.Extractor = extractor
	}
	if config.Flanks != "" {
		flanks, err := reads.FlanksFromFasta(config.Flanks)
		if err != nil {
			return nil, err
		}
		filter.Flanks = flanks
	}

	return reads.Open(config.Input, config.Region, filter)
}

// epsMetric is the distance the eps estimator uses for a row normalisation
func epsMetric(norm string) cluster.Metric {
	if norm == kmer.NormL1 {
		return cluster.Manhattan
	}
	return cluster.Euclidean
}
