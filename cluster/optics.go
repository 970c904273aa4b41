package cluster

import (
	"fmt"
	"math"
	"sort"
)

// Ordering points to identify the clustering structure, with clusters
// extracted from the reachability plot by the xi steep area method
type OPTICS struct {
	MaxEps     float64
	MinSamples int
	Xi         float64
	Metric     Metric
	NJobs      int

	// Minimum number of points in an extracted cluster, MinSamples when 0
	MinClusterSize int
}

// The result of the ordering step
type Reachability struct {
	Ordering     []int
	Reachability []float64
	CoreDistance []float64
	Predecessor  []int
}

func (o *OPTICS) Check() error {
	if o.Xi <= 0 || o.Xi >= 1 {
		return fmt.Errorf("xi must be in (0, 1), got %v", o.Xi)
	}
	if o.MinSamples < 1 {
		return fmt.Errorf("min_samples must be at least 1, got %d", o.MinSamples)
	}
	if o.MinClusterSize < 0 {
		return fmt.Errorf("min_cluster_size must not be negative, got %d", o.MinClusterSize)
	}
	return nil
}

func (o *OPTICS) Fit(x [][]float64) ([]int, error) {
	if err := o.Check(); err != nil {
		return nil, err
	}
	r, err := o.Order(x)
	if err != nil {
		return nil, err
	}
	minCluster := o.MinClusterSize
	if minCluster <= 0 {
		minCluster = o.MinSamples
	}
	clusters := xiClusters(r, o.Xi, o.MinSamples, minCluster)
	return xiLabels(r.Ordering, clusters), nil
}

// Order computes the OPTICS ordering and reachability distances
func (o *OPTICS) Order(x [][]float64) (*Reachability, error) {
	if err := checkPoints(x); err != nil {
		return nil, err
	}
	n := len(x)
	if o.MinSamples < 1 || o.MinSamples > n {
		return nil, fmt.Errorf("min_samples must be in [1, %d], got %d", n, o.MinSamples)
	}
	maxEps := o.MaxEps
	if maxEps <= 0 {
		maxEps = math.Inf(1)
	}

	dist := make([][]float64, n)
	core := make([]float64, n)
	parallel(n, o.NJobs, func(i int) {
		row := make([]float64, n)
		for j := range x {
			row[j] = o.Metric.Distance(x[i], x[j])
		}
		dist[i] = row
		sorted := append([]float64(nil), row...)
		sort.Float64s(sorted)
		core[i] = sorted[o.MinSamples-1]
		if core[i] > maxEps {
			core[i] = math.Inf(1)
		}
	})

	reach := make([]float64, n)
	pred := make([]int, n)
	for i := range reach {
		reach[i] = math.Inf(1)
		pred[i] = -1
	}
	processed := make([]bool, n)
	ordering := make([]int, 0, n)
	for len(ordering) < n {
		point := -1
		for i := 0; i < n; i++ {
			if processed[i] {
				continue
			}
			if point == -1 || reach[i] < reach[point] {
				point = i
			}
		}
		processed[point] = true
		ordering = append(ordering, point)
		if math.IsInf(core[point], 1) {
			continue
		}
		for j := 0; j < n; j++ {
			if processed[j] || dist[point][j] > maxEps {
				continue
			}
			candidate := math.Max(core[point], dist[point][j])
			if candidate < reach[j] {
				reach[j] = candidate
				pred[j] = point
			}
		}
	}

	return &Reachability{Ordering: ordering, Reachability: reach, CoreDistance: core, Predecessor: pred}, nil
}

type steepDownArea struct {
	start, end int
	mib        float64
}

// xiClusters returns clusters as [start, end] ranges over the ordering
func xiClusters(r *Reachability, xi float64, minSamples int, minClusterSize int) [][2]int {
	n := len(r.Ordering)
	plot := make([]float64, n+1)
	predPlot := make([]int, n)
	for i, p := range r.Ordering {
		plot[i] = r.Reachability[p]
		predPlot[i] = r.Predecessor[p]
	}
	plot[n] = math.Inf(1)

	xiComplement := 1 - xi
	steepUp := make([]bool, n)
	steepDown := make([]bool, n)
	up := make([]bool, n)
	down := make([]bool, n)
	for i := 0; i < n; i++ {
		ratio := plot[i] / plot[i+1]
		steepUp[i] = ratio <= xiComplement
		steepDown[i] = ratio >= 1/xiComplement
		down[i] = ratio > 1
		up[i] = ratio < 1
	}

	var (
		sdas     []*steepDownArea
		clusters [][2]int
		index    int
		mib      float64
	)
	for steep := 0; steep < n; steep++ {
		if !steepUp[steep] && !steepDown[steep] {
			continue
		}
		if steep < index {
			continue
		}
		for _, v := range plot[index : steep+1] {
			mib = math.Max(mib, v)
		}

		if steepDown[steep] {
			sdas = filterSteepDownAreas(sdas, mib, xiComplement, plot)
			end := extendRegion(steepDown, up, steep, minSamples)
			sdas = append(sdas, &steepDownArea{start: steep, end: end})
			index = end + 1
			mib = plot[index]
			continue
		}

		sdas = filterSteepDownAreas(sdas, mib, xiComplement, plot)
		upStart := steep
		upEnd := extendRegion(steepUp, down, upStart, minSamples)
		index = upEnd + 1
		mib = plot[index]

		var found [][2]int
		for _, d := range sdas {
			cStart, cEnd := d.start, upEnd
			if plot[cEnd+1]*xiComplement < d.mib {
				continue
			}
			dMax := plot[d.start]
			if dMax*xiComplement >= plot[cEnd+1] {
				for cStart < d.end && plot[cStart+1] > plot[cEnd+1] {
					cStart++
				}
			} else if plot[cEnd+1]*xiComplement >= dMax {
				for cEnd > upStart && plot[cEnd-1] > dMax {
					cEnd--
				}
			}
			var ok bool
			cStart, cEnd, ok = correctPredecessor(plot, predPlot, r.Ordering, cStart, cEnd)
			if !ok {
				continue
			}
			if cEnd-cStart+1 < minClusterSize || cStart > d.end || cEnd < upStart {
				continue
			}
			found = append(found, [2]int{cStart, cEnd})
		}
		for i := len(found) - 1; i >= 0; i-- {
			clusters = append(clusters, found[i])
		}
	}
	return clusters
}

func filterSteepDownAreas(sdas []*steepDownArea, mib float64, xiComplement float64, plot []float64) []*steepDownArea {
	if math.IsInf(mib, 1) {
		return nil
	}
	var kept []*steepDownArea
	for _, d := range sdas {
		if mib <= plot[d.start]*xiComplement {
			d.mib = math.Max(d.mib, mib)
			kept = append(kept, d)
		}
	}
	return kept
}

// extendRegion grows a steep region. It stops at the first point going the
// opposite way or after more than minSamples consecutive non steep points.
func extendRegion(steep []bool, opposite []bool, start int, minSamples int) int {
	flat := 0
	end := start
	for i := start; i < len(steep); i++ {
		switch {
		case steep[i]:
			flat = 0
			end = i
		case !opposite[i]:
			flat++
			if flat > minSamples {
				return end
			}
		default:
			return end
		}
	}
	return end
}

func correctPredecessor(plot []float64, predPlot []int, ordering []int, s int, e int) (int, int, bool) {
	for s < e {
		if plot[s] > plot[e] {
			return s, e, true
		}
		pe := predPlot[e]
		for i := s; i < e; i++ {
			if pe == ordering[i] {
				return s, e, true
			}
		}
		e--
	}
	return 0, 0, false
}

func xiLabels(ordering []int, clusters [][2]int) []int {
	ordered := make([]int, len(ordering))
	for i := range ordered {
		ordered[i] = Noise
	}
	label := 0
	for _, c := range clusters {
		free := true
		for _, l := range ordered[c[0] : c[1]+1] {
			if l != Noise {
				free = false
				break
			}
		}
		if !free {
			continue
		}
		for i := c[0]; i <= c[1]; i++ {
			ordered[i] = label
		}
		label++
	}

	labels := make([]int, len(ordering))
	for i, p := range ordering {
		labels[p] = ordered[i]
	}
	return labels
}
