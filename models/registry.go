package models

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/nvnieuwk/ampclust/cluster"
	"github.com/nvnieuwk/ampclust/errs"
)

// The family of a clustering algorithm
type Kind int

const (
	Density Kind = iota
	Agglomerative
	AffinityPropagation
	MeanShift
	Centroid
)

func (k Kind) String() string {
	switch k {
	case Density:
		return "density"
	case Agglomerative:
		return "agglomerative"
	case AffinityPropagation:
		return "affinity-propagation"
	case MeanShift:
		return "mean-shift"
	case Centroid:
		return "centroid"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// User facing parameter names accepted from the command line
const (
	UserEps       = "eps"
	UserMinReads  = "minReads"
	UserNJobs     = "njobs"
	UserNormalize = "normalize"
)

// One entry of the dispatch table of clustering models
type Spec struct {
	// The name used on the command line
	Name string

	// The family of the algorithm
	Kind Kind

	// Default native parameters, copied for every resolution and never modified
	Defaults Params

	// User facing parameter name to native parameter name
	Rename map[string]string

	// Checks the resolved parameters, may be nil
	Validate func(Params) error

	// The algorithm has no minimum cluster size of its own; clusters smaller
	// than minReads are relabelled as noise after fitting
	NeedsNoiseRelabel bool

	// Creates the algorithm from resolved parameters
	Build func(Params) (cluster.Clusterer, error)
}

// Registry holds every supported model by name
var Registry = map[string]Spec{
	"dbscan": {
		Name: "dbscan",
		Kind: Density,
		Defaults: Params{
			"eps":         0.01,
			"min_samples": 3,
			"metric":      "euclidean",
		},
		Rename: map[string]string{
			UserEps:      "eps",
			UserMinReads: "min_samples",
			UserNJobs:    "n_jobs",
		},
		Build: buildDBSCAN,
	},
	"optics": {
		Name: "optics",
		Kind: Density,
		Defaults: Params{
			"max_eps":     math.Inf(1),
			"min_samples": 3,
			"n_jobs":      1,
			"metric":      "l2",
			"xi":          0.1,
		},
		Rename: map[string]string{
			UserEps:       "max_eps",
			UserMinReads:  "min_samples",
			UserNJobs:     "n_jobs",
			UserNormalize: "metric",
		},
		Build: buildOPTICS,
	},
	"kmeans": {
		Name: "kmeans",
		Kind: Centroid,
		Defaults: Params{
			"n_clusters":   2,
			"max_iter":     300,
			"tol":          1e-4,
			"random_state": nil,
			"n_jobs":       1,
		},
		Rename: map[string]string{
			UserEps:   "tol",
			UserNJobs: "n_jobs",
		},
		Build: buildKMeans,
	},
	"aggcluster": {
		Name: "aggcluster",
		Kind: Agglomerative,
		Defaults: Params{
			"affinity":           "euclidean",
			"compute_full_tree":  true,
			"distance_threshold": 0.01,
			"n_clusters":         nil,
			"linkage":            "ward",
		},
		Rename: map[string]string{
			UserEps: "distance_threshold",
		},
		NeedsNoiseRelabel: true,
		Build:             buildAgglomerative,
	},
	"affprop": {
		Name: "affprop",
		Kind: AffinityPropagation,
		Defaults: Params{
			"damping": 0.5,
		},
		Rename: map[string]string{
			UserEps: "damping",
		},
		Validate:          validateDamping,
		NeedsNoiseRelabel: true,
		Build:             buildAffinityPropagation,
	},
	"meanshift": {
		Name: "meanshift",
		Kind: MeanShift,
		Defaults: Params{
			"bandwidth":    nil,
			"bin_seeding":  true,
			"min_bin_freq": 3,
			"cluster_all":  false,
			"n_jobs":       2,
		},
		Rename: map[string]string{
			UserEps:      "bandwidth",
			UserMinReads: "min_bin_freq",
			UserNJobs:    "n_jobs",
		},
		Build: buildMeanShift,
	},
}

// The model used when none is given
const DefaultModel = "dbscan"

// Names returns the registered model names, sorted
func Names() []string {
	names := make([]string, 0, len(Registry))
	for name := range Registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the spec of a model
func Lookup(name string) (Spec, error) {
	spec, ok := Registry[name]
	if !ok {
		return Spec{}, errs.New(errs.Config, "unknown model '%s', must be one of: %s", name, strings.Join(Names(), ", "))
	}
	return spec, nil
}

func validateDamping(p Params) error {
	damping, err := p.Float("damping")
	if err != nil {
		return err
	}
	if damping < 0.5 || damping > 1 {
		return errs.New(errs.Config, "damping (-e) must be in [0.5, 1.0] for affprop, got %v", damping)
	}
	return nil
}

func buildDBSCAN(p Params) (cluster.Clusterer, error) {
	if err := p.check("dbscan", "eps", "min_samples", "metric", "n_jobs"); err != nil {
		return nil, err
	}
	d := &cluster.DBSCAN{}
	var err error
	if d.Eps, err = p.Float("eps"); err != nil {
		return nil, err
	}
	if d.MinSamples, err = p.Int("min_samples"); err != nil {
		return nil, err
	}
	if d.NJobs, err = p.Int("n_jobs"); err != nil {
		return nil, err
	}
	if d.Metric, err = metric(p, "metric"); err != nil {
		return nil, err
	}
	return d, nil
}

func buildOPTICS(p Params) (cluster.Clusterer, error) {
	if err := p.check("optics", "max_eps", "min_samples", "n_jobs", "metric", "xi", "min_cluster_size"); err != nil {
		return nil, err
	}
	o := &cluster.OPTICS{}
	var err error
	if o.MaxEps, err = p.Float("max_eps"); err != nil {
		return nil, err
	}
	if o.MinSamples, err = p.Int("min_samples"); err != nil {
		return nil, err
	}
	if o.NJobs, err = p.Int("n_jobs"); err != nil {
		return nil, err
	}
	if o.Xi, err = p.Float("xi"); err != nil {
		return nil, err
	}
	if o.MinClusterSize, err = p.Int("min_cluster_size"); err != nil {
		return nil, err
	}
	if o.Metric, err = metric(p, "metric"); err != nil {
		return nil, err
	}
	return o, nil
}

func buildKMeans(p Params) (cluster.Clusterer, error) {
	if err := p.check("kmeans", "n_clusters", "max_iter", "tol", "random_state", "n_jobs", "n_init"); err != nil {
		return nil, err
	}
	k := &cluster.KMeans{NInit: 10}
	var err error
	if k.NClusters, err = p.Int("n_clusters"); err != nil {
		return nil, err
	}
	if k.MaxIter, err = p.Int("max_iter"); err != nil {
		return nil, err
	}
	if k.Tol, err = p.Float("tol"); err != nil {
		return nil, err
	}
	if k.NJobs, err = p.Int("n_jobs"); err != nil {
		return nil, err
	}
	if nInit, err := p.OptionalInt("n_init"); err != nil {
		return nil, err
	} else if nInit != nil {
		k.NInit = *nInit
	}
	seed, err := p.OptionalInt("random_state")
	if err != nil {
		return nil, err
	}
	if seed != nil {
		s := int64(*seed)
		k.Seed = &s
	}
	return k, nil
}

func buildAgglomerative(p Params) (cluster.Clusterer, error) {
	if err := p.check("aggcluster", "affinity", "metric", "compute_full_tree", "distance_threshold", "n_clusters", "linkage"); err != nil {
		return nil, err
	}
	a := &cluster.Agglomerative{}
	var err error
	if a.DistanceThreshold, err = p.Float("distance_threshold"); err != nil {
		return nil, err
	}
	if a.NClusters, err = p.Int("n_clusters"); err != nil {
		return nil, err
	}
	// The full tree is always built, the flag is accepted for compatibility
	if _, err = p.Bool("compute_full_tree"); err != nil {
		return nil, err
	}
	key := "affinity"
	if _, ok := p["metric"]; ok {
		key = "metric"
	}
	if a.Metric, err = metric(p, key); err != nil {
		return nil, err
	}
	linkage, err := p.Str("linkage")
	if err != nil {
		return nil, err
	}
	if a.Linkage, err = cluster.ParseLinkage(linkage); err != nil {
		return nil, err
	}
	return a, nil
}

func buildAffinityPropagation(p Params) (cluster.Clusterer, error) {
	if err := p.check("affprop", "damping", "max_iter", "convergence_iter", "preference"); err != nil {
		return nil, err
	}
	ap := &cluster.AffinityPropagation{}
	var err error
	if ap.Damping, err = p.Float("damping"); err != nil {
		return nil, err
	}
	if ap.MaxIter, err = p.Int("max_iter"); err != nil {
		return nil, err
	}
	if ap.ConvergenceIter, err = p.Int("convergence_iter"); err != nil {
		return nil, err
	}
	if ap.Preference, err = p.OptionalFloat("preference"); err != nil {
		return nil, err
	}
	return ap, nil
}

func buildMeanShift(p Params) (cluster.Clusterer, error) {
	if err := p.check("meanshift", "bandwidth", "bin_seeding", "min_bin_freq", "cluster_all", "n_jobs", "max_iter"); err != nil {
		return nil, err
	}
	ms := &cluster.MeanShift{}
	var err error
	if ms.Bandwidth, err = p.Float("bandwidth"); err != nil {
		return nil, err
	}
	if ms.BinSeeding, err = p.Bool("bin_seeding"); err != nil {
		return nil, err
	}
	if ms.MinBinFreq, err = p.Int("min_bin_freq"); err != nil {
		return nil, err
	}
	if ms.ClusterAll, err = p.Bool("cluster_all"); err != nil {
		return nil, err
	}
	if ms.NJobs, err = p.Int("n_jobs"); err != nil {
		return nil, err
	}
	if ms.MaxIter, err = p.Int("max_iter"); err != nil {
		return nil, err
	}
	return ms, nil
}

func metric(p Params, key string) (cluster.Metric, error) {
	name, err := p.Str(key)
	if err != nil {
		return "", err
	}
	return cluster.ParseMetric(name)
}
