// Package cluster implements the distance based clustering algorithms the
// models package exposes: DBSCAN, OPTICS, k-means, agglomerative clustering,
// affinity propagation and mean shift.
//
// Every algorithm takes the points as rows of a [][]float64, which are never
// modified, and returns one label per row. Label Noise marks rows that were
// not assigned to any cluster.
package cluster

import (
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// The label of points that do not belong to any cluster
const Noise = -1

// A clustering algorithm
type Clusterer interface {
	// Check validates the parameters that do not depend on the data
	Check() error

	Fit(x [][]float64) ([]int, error)
}

// The distance used between two points
type Metric string

const (
	Euclidean Metric = "euclidean"
	Manhattan Metric = "manhattan"
	Chebyshev Metric = "chebyshev"
	Cosine    Metric = "cosine"
)

// ParseMetric accepts the metric names and their common aliases
func ParseMetric(name string) (Metric, error) {
	switch name {
	case "euclidean", "l2", "":
		return Euclidean, nil
	case "manhattan", "l1", "cityblock":
		return Manhattan, nil
	case "chebyshev", "infinity":
		return Chebyshev, nil
	case "cosine":
		return Cosine, nil
	}
	return "", fmt.Errorf("unknown metric '%s'", name)
}

// Distance returns the distance between a and b
func (m Metric) Distance(a []float64, b []float64) float64 {
	switch m {
	case Manhattan:
		return floats.Distance(a, b, 1)
	case Chebyshev:
		return floats.Distance(a, b, math.Inf(1))
	case Cosine:
		na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
		if na == 0 || nb == 0 {
			return 1
		}
		return 1 - floats.Dot(a, b)/(na*nb)
	}
	return floats.Distance(a, b, 2)
}

func checkPoints(x [][]float64) error {
	if len(x) == 0 {
		return fmt.Errorf("no points to cluster")
	}
	dim := len(x[0])
	for i, p := range x {
		if len(p) != dim {
			return fmt.Errorf("point %d has %d dimensions, expected %d", i, len(p), dim)
		}
	}
	return nil
}

// workers turns an n_jobs value into a number of goroutines
// -1 uses every CPU, anything below 1 runs single threaded
func workers(njobs int) int {
	if njobs == -1 {
		return runtime.NumCPU()
	}
	if njobs < 1 {
		return 1
	}
	return njobs
}

// parallel calls fn for every index in [0, n) using at most njobs goroutines
func parallel(n int, njobs int, fn func(i int)) {
	w := workers(njobs)
	if w == 1 || n < 2 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(w)
	chunk := (n + w - 1) / w
	for start := 0; start < n; start += chunk {
		start, end := start, min(start+chunk, n)
		g.Go(func() error {
			for i := start; i < end; i++ {
				fn(i)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// radius returns the indices of all points within eps of p, p itself included
func radius(x [][]float64, p []float64, eps float64, metric Metric) []int {
	var neighbours []int
	for j, q := range x {
		if metric.Distance(p, q) <= eps {
			neighbours = append(neighbours, j)
		}
	}
	return neighbours
}

// relabel renumbers labels to 0..n-1 in order of first appearance, keeping Noise
func relabel(labels []int) []int {
	ids := map[int]int{}
	out := make([]int, len(labels))
	for i, l := range labels {
		if l == Noise {
			out[i] = Noise
			continue
		}
		id, ok := ids[l]
		if !ok {
			id = len(ids)
			ids[l] = id
		}
		out[i] = id
	}
	return out
}
