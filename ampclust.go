package main

import (
	"log"
	"os"
	"slices"
	"strings"

	"github.com/nvnieuwk/ampclust/ampclust_api"
	"github.com/nvnieuwk/ampclust/errs"
	"github.com/nvnieuwk/ampclust/kmer"
	"github.com/nvnieuwk/ampclust/models"
	"github.com/nvnieuwk/ampclust/reads"
	cli "github.com/urfave/cli/v2"
)

func choice(flag string, valid []string) func(*cli.Context, string) error {
	return func(c *cli.Context, input string) error {
		if slices.Contains(valid, input) {
			return nil
		}
		return errs.New(errs.Config, "invalid %s '%s', must be one of: %s", flag, input, strings.Join(valid, ", "))
	}
}

func main() {
	app := &cli.App{
		Name:            "ampclust",
		Usage:           "Cluster amplicon reads by k-mer composition",
		UsageText:       "ampclust [options] <input BAM or FASTQ>",
		HideHelpCommand: true,
		Version:         "0.1.0dev",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "njobs",
				Aliases: []string{"j"},
				Usage:   "Parallel jobs (only for some models), -1 uses all CPUs. Default 1",
			},
			&cli.IntFlag{
				Name:     "kmer",
				Aliases:  []string{"k"},
				Usage:    "Kmer size for clustering",
				Value:    kmer.DefaultOptions.K,
				Category: "kmers",
			},
			&cli.IntFlag{
				Name:     "minimizer",
				Aliases:  []string{"z"},
				Usage:    "Group kmers by minimizer of length z, 0 for no minimizer",
				Category: "kmers",
			},
			&cli.IntFlag{
				Name:     "hpCollapse",
				Usage:    "Truncate homopolymers to this many bases, 0 to keep them",
				Value:    kmer.DefaultOptions.HPCollapse,
				Category: "kmers",
			},
			&cli.BoolFlag{
				Name:     "noHPcollapse",
				Aliases:  []string{"H"},
				Usage:    "Do not compress homopolymers",
				Category: "kmers",
			},
			&cli.StringFlag{
				Name:     "model",
				Aliases:  []string{"M"},
				Usage:    "Clustering model. Must be one of: " + strings.Join(models.Names(), ", "),
				Value:    models.DefaultModel,
				Category: "cluster",
				Action:   choice("model", models.Names()),
			},
			&cli.StringFlag{
				Name:     "agg",
				Aliases:  []string{"a"},
				Usage:    "Feature reduction method. Must be one of: " + strings.Join(ampclust_api.ValidAggregations, ", "),
				Value:    kmer.ReducePCA,
				Category: "cluster",
				Action:   choice("aggregation", ampclust_api.ValidAggregations),
			},
			&cli.IntFlag{
				Name:     "components",
				Aliases:  []string{"c"},
				Usage:    "Use the first c components of PCA/FeatAgg for clustering, 0 for no reduction",
				Value:    kmer.DefaultOptions.Components,
				Category: "cluster",
			},
			&cli.Float64Flag{
				Name:     "eps",
				Aliases:  []string{"e"},
				Usage:    "Cluster tolerance, renamed per model (eps, max_eps, tol, distance_threshold, damping, bandwidth)",
				Category: "cluster",
			},
			&cli.IntFlag{
				Name:     "minReads",
				Aliases:  []string{"m"},
				Usage:    "Minimum reads to be a cluster",
				Value:    5,
				Category: "cluster",
			},
			&cli.StringFlag{
				Name:     "normalize",
				Aliases:  []string{"n"},
				Usage:    "Normalization of kmer counts. Must be one of: " + strings.Join(ampclust_api.ValidNormalizations, ", "),
				Value:    kmer.NormL1,
				Category: "cluster",
				Action:   choice("normalization", ampclust_api.ValidNormalizations),
			},
			&cli.IntFlag{
				Name:     "ignoreEnds",
				Aliases:  []string{"i"},
				Usage:    "Ignore i bases at the ends of amplicons for clustering",
				Category: "cluster",
			},
			&cli.Float64Flag{
				Name:     "trim",
				Usage:    "Drop kmers present in less than trim or more than 1-trim of the reads",
				Category: "cluster",
			},
			&cli.Float64Flag{
				Name:     "trimLow",
				Usage:    "Drop kmers present in less than this fraction of the reads",
				Category: "cluster",
			},
			&cli.Float64Flag{
				Name:     "trimHigh",
				Usage:    "Drop kmers present in more than this fraction of the reads",
				Value:    1,
				Category: "cluster",
			},
			&cli.StringFlag{
				Name:     "params",
				Aliases:  []string{"P"},
				Usage:    "JSON or YAML file of parameters for the model. Order of precedence: command line > params file > defaults",
				Category: "cluster",
			},
			&cli.StringFlag{
				Name:     "region",
				Aliases:  []string{"r"},
				Usage:    "Target region for selection of reads, format '[chr]:[start]-[stop]'. Example '4:3076604-3076660'",
				Category: "filter",
			},
			&cli.StringFlag{
				Name:     "extractReference",
				Usage:    "Extract the sequence between the flanks of the region with this FASTA reference for kmer counting",
				Category: "filter",
			},
			&cli.IntFlag{
				Name:     "flankSize",
				Usage:    "Bases on either side of the region used as flanks with --extractReference",
				Value:    reads.DefaultFlankSize,
				Category: "filter",
			},
			&cli.Float64Flag{
				Name:     "minQV",
				Aliases:  []string{"q"},
				Usage:    "Minimum quality [0-1] to use for clustering",
				Value:    0.99,
				Category: "filter",
			},
			&cli.Float64Flag{
				Name:     "simpsonDominance",
				Aliases:  []string{"s"},
				Usage:    "Remove kmers with a Simpson dominance above s, 0 for no filter",
				Category: "filter",
			},
			&cli.StringFlag{
				Name:     "whitelist",
				Aliases:  []string{"w"},
				Usage:    "Whitelist of read names to cluster",
				Category: "filter",
			},
			&cli.StringFlag{
				Name:     "flanks",
				Aliases:  []string{"f"},
				Usage:    "FASTA of flanking/primer sequences. Reads not containing both are filtered",
				Category: "filter",
			},
			&cli.StringFlag{
				Name:     "prefix",
				Aliases:  []string{"p"},
				Usage:    "Output prefix",
				Value:    "./clustered",
				Category: "output",
			},
			&cli.BoolFlag{
				Name:     "splitBam",
				Aliases:  []string{"S"},
				Usage:    "Also write one BAM per cluster (noise and unclustered reads dropped)",
				Category: "output",
			},
			&cli.BoolFlag{
				Name:     "noBam",
				Aliases:  []string{"x"},
				Usage:    "Do not export an HP tagged BAM of the clustered reads",
				Category: "output",
			},
			&cli.BoolFlag{
				Name:     "drop",
				Aliases:  []string{"d"},
				Usage:    "Drop reads without a cluster from the output BAM",
				Category: "output",
			},
			&cli.BoolFlag{
				Name:     "testPlot",
				Aliases:  []string{"t"},
				Usage:    "Plot reads vs the distance to the nearest m-neighbors without clustering",
				Category: "output",
			},
			&cli.BoolFlag{
				Name:     "plotReads",
				Aliases:  []string{"g"},
				Usage:    "Plot the first 2 axes of the feature matrix for each read",
				Category: "output",
			},
		},
		Action: func(Cctx *cli.Context) error {
			config, err := ampclust_api.ReadConfig(Cctx)
			if err != nil {
				return err
			}
			_, err = ampclust_api.Execute(config)
			return err
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger := log.New(os.Stderr, "", 0)
		if e, ok := errs.As(err); ok {
			logger.Fatalf("ERROR: %s", e)
		}
		logger.Fatal(err)
	}
}
