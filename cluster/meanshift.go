package cluster

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Mean shift with a flat kernel. Centers within Bandwidth of a denser center
// are merged into it.
type MeanShift struct {
	// Kernel radius, estimated from the data when 0
	Bandwidth float64

	// Start from the points of a grid of size Bandwidth instead of every point
	BinSeeding bool

	// Minimum number of points in a grid bin for it to become a seed
	MinBinFreq int

	// Assign every point to its nearest center instead of labelling far points Noise
	ClusterAll bool

	MaxIter int
	NJobs   int
}

func (ms *MeanShift) Check() error {
	if ms.Bandwidth < 0 {
		return fmt.Errorf("bandwidth must not be negative, got %v", ms.Bandwidth)
	}
	if ms.MinBinFreq < 0 {
		return fmt.Errorf("min_bin_freq must not be negative, got %d", ms.MinBinFreq)
	}
	return nil
}

func (ms *MeanShift) Fit(x [][]float64) ([]int, error) {
	if err := ms.Check(); err != nil {
		return nil, err
	}
	if err := checkPoints(x); err != nil {
		return nil, err
	}
	maxIter := ms.MaxIter
	if maxIter <= 0 {
		maxIter = 300
	}
	bandwidth := ms.Bandwidth
	if bandwidth <= 0 {
		bandwidth = EstimateBandwidth(x, 0.3)
		if bandwidth <= 0 {
			return nil, fmt.Errorf("estimated bandwidth is zero, all points are identical")
		}
	}

	seeds := x
	if ms.BinSeeding {
		seeds = binSeeds(x, bandwidth, ms.MinBinFreq)
	}
	if len(seeds) == 0 {
		return nil, fmt.Errorf("no grid bin holds at least %d points with bandwidth %v", ms.MinBinFreq, bandwidth)
	}

	type mode struct {
		center    []float64
		intensity int
	}
	modes := make([]mode, len(seeds))
	parallel(len(seeds), ms.NJobs, func(i int) {
		center, n := shiftSeed(x, seeds[i], bandwidth, maxIter)
		modes[i] = mode{center: center, intensity: n}
	})

	// Identical modes collapse to one entry
	unique := map[string]mode{}
	for _, m := range modes {
		if m.intensity == 0 {
			continue
		}
		unique[key(m.center)] = m
	}
	if len(unique) == 0 {
		return nil, fmt.Errorf("no point was within bandwidth %v of any seed", bandwidth)
	}
	sorted := make([]mode, 0, len(unique))
	for _, m := range unique {
		sorted = append(sorted, m)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].intensity != sorted[j].intensity {
			return sorted[i].intensity > sorted[j].intensity
		}
		return lexicalGreater(sorted[i].center, sorted[j].center)
	})

	keep := make([]bool, len(sorted))
	for i := range keep {
		keep[i] = true
	}
	var centers [][]float64
	for i, m := range sorted {
		if !keep[i] {
			continue
		}
		centers = append(centers, m.center)
		for j := i + 1; j < len(sorted); j++ {
			if Euclidean.Distance(m.center, sorted[j].center) <= bandwidth {
				keep[j] = false
			}
		}
	}

	labels := make([]int, len(x))
	parallel(len(x), ms.NJobs, func(i int) {
		label, dist := nearest(x[i], centers)
		if !ms.ClusterAll && math.Sqrt(dist) > bandwidth {
			label = Noise
		}
		labels[i] = label
	})
	return labels, nil
}

func shiftSeed(x [][]float64, seed []float64, bandwidth float64, maxIter int) ([]float64, int) {
	stop := 1e-3 * bandwidth
	mean := append([]float64(nil), seed...)
	within := 0
	for iter := 0; ; iter++ {
		members := radius(x, mean, bandwidth, Euclidean)
		if len(members) == 0 {
			break
		}
		within = len(members)
		next := make([]float64, len(mean))
		for _, m := range members {
			floats.Add(next, x[m])
		}
		floats.Scale(1/float64(len(members)), next)
		shift := floats.Distance(next, mean, 2)
		mean = next
		if shift <= stop || iter == maxIter {
			break
		}
	}
	return mean, within
}

// EstimateBandwidth averages the distance of every point to its
// quantile*n nearest neighbour, the point itself counted as the first
func EstimateBandwidth(x [][]float64, quantile float64) float64 {
	k := int(float64(len(x)) * quantile)
	if k < 1 {
		k = 1
	}
	total := 0.0
	dists := make([]float64, len(x))
	for _, p := range x {
		for j, q := range x {
			dists[j] = Euclidean.Distance(p, q)
		}
		sort.Float64s(dists)
		total += dists[k-1]
	}
	return total / float64(len(x))
}

func binSeeds(x [][]float64, binSize float64, minBinFreq int) [][]float64 {
	counts := map[string]int{}
	coords := map[string][]float64{}
	for _, p := range x {
		bin := make([]float64, len(p))
		for j, v := range p {
			bin[j] = math.Round(v / binSize)
		}
		k := key(bin)
		counts[k]++
		coords[k] = bin
	}

	var seeds [][]float64
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if counts[k] < minBinFreq {
			continue
		}
		seed := append([]float64(nil), coords[k]...)
		floats.Scale(binSize, seed)
		seeds = append(seeds, seed)
	}
	if len(seeds) == len(x) {
		return x
	}
	return seeds
}

func key(p []float64) string {
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

func lexicalGreater(a []float64, b []float64) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return false
}
