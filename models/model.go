package models

import (
	"github.com/nvnieuwk/ampclust/cluster"
	"github.com/nvnieuwk/ampclust/errs"
	"github.com/nvnieuwk/ampclust/kmer"
)

// Read identifier to cluster label, cluster.Noise for unclustered reads
type Assignment map[string]int

// The lifecycle of a model
type State int

const (
	Unconfigured State = iota
	Configured
	Fitted
)

func (s State) String() string {
	switch s {
	case Configured:
		return "configured"
	case Fitted:
		return "fitted"
	}
	return "unconfigured"
}

// A parameterised clustering model that can be fitted once
type Model struct {
	Spec     Spec
	Params   Params
	MinReads int

	algorithm cluster.Clusterer
	state     State
}

// New creates a model from resolved parameters
func New(name string, params Params, minReads int) (*Model, error) {
	spec, algorithm, err := build(name, params)
	if err != nil {
		return nil, err
	}
	return &Model{
		Spec:      spec,
		Params:    params,
		MinReads:  minReads,
		algorithm: algorithm,
		state:     Configured,
	}, nil
}

// Check reports every problem with the resolved parameters of a model
// that can be found without data: unknown keys, wrong types, bad metric or
// linkage names and out of range values
func Check(name string, params Params) error {
	_, _, err := build(name, params)
	return err
}

func build(name string, params Params) (Spec, cluster.Clusterer, error) {
	spec, err := Lookup(name)
	if err != nil {
		return Spec{}, nil, err
	}
	algorithm, err := spec.Build(params)
	if err == nil {
		err = algorithm.Check()
	}
	if err != nil {
		return Spec{}, nil, errs.Wrap(errs.Config, err, "cannot configure %s", name)
	}
	return spec, algorithm, nil
}

// Configure resolves the parameters of a model and creates it
func Configure(name string, cli Overrides, file map[string]any, minReads int) (*Model, error) {
	params, err := Resolve(name, cli, file)
	if err != nil {
		return nil, err
	}
	return New(name, params, minReads)
}

// State returns where the model is in its lifecycle
func (m *Model) State() State {
	if m == nil {
		return Unconfigured
	}
	return m.state
}

// Fit clusters the rows of x. Labels are returned in row order and as an
// assignment keyed by read identifier. A model can only be fitted once.
func (m *Model) Fit(x *kmer.FeatureMatrix) (Assignment, []int, error) {
	switch m.State() {
	case Unconfigured:
		return nil, nil, errs.New(errs.Config, "model is not configured")
	case Fitted:
		return nil, nil, errs.New(errs.Config, "model %s has already been fitted", m.Spec.Name)
	}
	if x == nil || x.Len() == 0 {
		return nil, nil, errs.New(errs.Config, "no reads passed filtering, nothing to cluster")
	}

	labels, err := m.algorithm.Fit(x.Points())
	if err != nil {
		return nil, nil, errs.Wrap(errs.Clustering, err, "%s failed", m.Spec.Name)
	}
	m.state = Fitted
	if m.Spec.NeedsNoiseRelabel {
		labels = RelabelSmall(labels, m.MinReads)
	}

	assignment := make(Assignment, len(labels))
	for i, label := range labels {
		assignment[x.Reads[i]] = label
	}
	return assignment, labels, nil
}

// RelabelSmall returns a copy of labels where every cluster with fewer than
// minReads members is noise. Applying it twice changes nothing.
func RelabelSmall(labels []int, minReads int) []int {
	sizes := map[int]int{}
	for _, l := range labels {
		sizes[l]++
	}
	out := make([]int, len(labels))
	for i, l := range labels {
		if l != cluster.Noise && sizes[l] < minReads {
			out[i] = cluster.Noise
			continue
		}
		out[i] = l
	}
	return out
}
