package cluster

import (
	"fmt"
	"math"
	"sort"
)

// The way the distance between two clusters is derived from their members
type Linkage string

const (
	Ward     Linkage = "ward"
	Complete Linkage = "complete"
	Average  Linkage = "average"
	Single   Linkage = "single"
)

// ParseLinkage checks a linkage name
func ParseLinkage(name string) (Linkage, error) {
	switch Linkage(name) {
	case Ward, Complete, Average, Single:
		return Linkage(name), nil
	case "":
		return Ward, nil
	}
	return "", fmt.Errorf("unknown linkage '%s'", name)
}

// Bottom up hierarchical clustering. The tree is cut either into NClusters
// clusters or at DistanceThreshold; exactly one of both must be set.
type Agglomerative struct {
	NClusters         int
	DistanceThreshold float64
	Linkage           Linkage
	Metric            Metric
}

// A single merge of the hierarchy
type Merge struct {
	A, B   int
	Height float64
}

func (a *Agglomerative) Check() error {
	if (a.NClusters > 0) == (a.DistanceThreshold > 0) {
		return fmt.Errorf("exactly one of n_clusters and distance_threshold has to be set")
	}
	if a.linkage() == Ward && a.Metric != Euclidean && a.Metric != "" {
		return fmt.Errorf("ward linkage only works with euclidean distances, got %s", a.Metric)
	}
	return nil
}

func (a *Agglomerative) linkage() Linkage {
	if a.Linkage == "" {
		return Ward
	}
	return a.Linkage
}

func (a *Agglomerative) Fit(x [][]float64) ([]int, error) {
	if err := a.Check(); err != nil {
		return nil, err
	}
	if err := checkPoints(x); err != nil {
		return nil, err
	}
	if a.NClusters > len(x) {
		return nil, fmt.Errorf("n_clusters must be in [1, %d], got %d", len(x), a.NClusters)
	}
	linkage := a.linkage()

	merges := Tree(x, linkage, a.Metric)
	var apply int
	if a.NClusters > 0 {
		apply = len(x) - a.NClusters
	} else {
		apply = sort.Search(len(merges), func(i int) bool { return merges[i].Height >= a.DistanceThreshold })
	}

	parent := make([]int, len(x))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	for _, m := range merges[:apply] {
		parent[find(m.B)] = find(m.A)
	}

	labels := make([]int, len(x))
	for i := range labels {
		labels[i] = find(i)
	}
	return relabel(labels), nil
}

// Tree builds the full hierarchy with the nearest neighbour chain algorithm.
// Merges are returned sorted by height; A and B are point indices, one from
// each of the two merged clusters.
func Tree(x [][]float64, linkage Linkage, metric Metric) []Merge {
	n := len(x)
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
		for j := 0; j < i; j++ {
			d := metric.Distance(x[i], x[j])
			dist[i][j], dist[j][i] = d, d
		}
	}
	size := make([]float64, n)
	active := make([]bool, n)
	for i := range size {
		size[i] = 1
		active[i] = true
	}

	merges := make([]Merge, 0, n)
	chain := make([]int, 0, n)
	for len(merges) < n-1 {
		if len(chain) == 0 {
			for i := range active {
				if active[i] {
					chain = append(chain, i)
					break
				}
			}
		}
		a := chain[len(chain)-1]
		b, d := -1, math.Inf(1)
		if len(chain) > 1 {
			b = chain[len(chain)-2]
			d = dist[a][b]
		}
		for j := range active {
			if active[j] && j != a && dist[a][j] < d {
				b, d = j, dist[a][j]
			}
		}

		if len(chain) > 1 && b == chain[len(chain)-2] {
			chain = chain[:len(chain)-2]
			merges = append(merges, Merge{A: a, B: b, Height: d})
			for k := range active {
				if !active[k] || k == a || k == b {
					continue
				}
				nd := update(linkage, dist[a][k], dist[b][k], d, size[a], size[b], size[k])
				dist[a][k], dist[k][a] = nd, nd
			}
			size[a] += size[b]
			active[b] = false
			continue
		}
		chain = append(chain, b)
	}

	sort.SliceStable(merges, func(i, j int) bool { return merges[i].Height < merges[j].Height })
	return merges
}

// update is the Lance-Williams formula: the distance from k to the union of a and b
func update(linkage Linkage, dak, dbk, dab, na, nb, nk float64) float64 {
	switch linkage {
	case Single:
		return math.Min(dak, dbk)
	case Complete:
		return math.Max(dak, dbk)
	case Average:
		return (na*dak + nb*dbk) / (na + nb)
	}
	sq := ((na+nk)*dak*dak + (nb+nk)*dbk*dbk - nk*dab*dab) / (na + nb + nk)
	return math.Sqrt(math.Max(sq, 0))
}
