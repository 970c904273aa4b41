package cluster

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Affinity propagation on negative squared euclidean similarities.
// When the exemplars do not settle within MaxIter iterations every point is
// labelled Noise and Converged is false after Fit.
type AffinityPropagation struct {
	Damping         float64
	MaxIter         int
	ConvergenceIter int

	// Self similarity of every point, the median similarity when nil
	Preference *float64

	// Set by Fit
	Converged bool
}

func (ap *AffinityPropagation) Check() error {
	if ap.Damping < 0.5 || ap.Damping >= 1 {
		return fmt.Errorf("damping must be in [0.5, 1), got %v", ap.Damping)
	}
	return nil
}

func (ap *AffinityPropagation) Fit(x [][]float64) ([]int, error) {
	if err := ap.Check(); err != nil {
		return nil, err
	}
	if err := checkPoints(x); err != nil {
		return nil, err
	}
	maxIter := ap.MaxIter
	if maxIter <= 0 {
		maxIter = 200
	}
	convIter := ap.ConvergenceIter
	if convIter <= 0 {
		convIter = 15
	}

	ap.Converged = false
	n := len(x)
	if n == 1 {
		ap.Converged = true
		return []int{0}, nil
	}

	s := make([][]float64, n)
	var offDiagonal []float64
	for i := range s {
		s[i] = make([]float64, n)
		for j := range s[i] {
			d := Euclidean.Distance(x[i], x[j])
			s[i][j] = -d * d
			if i != j {
				offDiagonal = append(offDiagonal, s[i][j])
			}
		}
	}
	preference := median(offDiagonal)
	if ap.Preference != nil {
		preference = *ap.Preference
	}
	for i := range s {
		s[i][i] = preference
	}

	// Remove degeneracies with a little noise, a fixed seed keeps runs reproducible
	rng := rand.New(rand.NewSource(0))
	for i := range s {
		for j := range s[i] {
			s[i][j] += (2.220446049250313e-16*s[i][j] + math.SmallestNonzeroFloat64*100) * rng.NormFloat64()
		}
	}

	r := square(n)
	a := square(n)
	history := make([][]bool, convIter)
	for i := range history {
		history[i] = make([]bool, n)
	}
	exemplar := make([]bool, n)

	for iter := 0; iter < maxIter; iter++ {
		// responsibilities
		for i := 0; i < n; i++ {
			first, second := math.Inf(-1), math.Inf(-1)
			firstIdx := -1
			for k := 0; k < n; k++ {
				v := a[i][k] + s[i][k]
				if v > first {
					second = first
					first, firstIdx = v, k
				} else if v > second {
					second = v
				}
			}
			for k := 0; k < n; k++ {
				competitor := first
				if k == firstIdx {
					competitor = second
				}
				r[i][k] = ap.Damping*r[i][k] + (1-ap.Damping)*(s[i][k]-competitor)
			}
		}

		// availabilities
		for k := 0; k < n; k++ {
			sum := 0.0
			for i := 0; i < n; i++ {
				if i == k {
					sum += r[k][k]
				} else {
					sum += math.Max(r[i][k], 0)
				}
			}
			for i := 0; i < n; i++ {
				var v float64
				if i == k {
					v = sum - r[k][k]
				} else {
					v = math.Min(sum-math.Max(r[i][k], 0), 0)
				}
				a[i][k] = ap.Damping*a[i][k] + (1-ap.Damping)*v
			}
		}

		count := 0
		for k := 0; k < n; k++ {
			exemplar[k] = a[k][k]+r[k][k] > 0
			if exemplar[k] {
				count++
			}
		}
		copy(history[iter%convIter], exemplar)

		if iter >= convIter {
			converged := true
			for k := 0; k < n; k++ {
				seen := 0
				for _, h := range history {
					if h[k] {
						seen++
					}
				}
				if seen != 0 && seen != convIter {
					converged = false
					break
				}
			}
			if converged && count > 0 {
				ap.Converged = true
				break
			}
		}
	}

	var centers []int
	for k, e := range exemplar {
		if e {
			centers = append(centers, k)
		}
	}
	labels := make([]int, n)
	if !ap.Converged || len(centers) == 0 {
		for i := range labels {
			labels[i] = Noise
		}
		return labels, nil
	}

	assignExemplars(s, centers, labels)
	// Refine every exemplar to the member with the highest summed similarity
	for c := range centers {
		var members []int
		for i, l := range labels {
			if l == c {
				members = append(members, i)
			}
		}
		best, bestSum := centers[c], math.Inf(-1)
		for _, j := range members {
			sum := 0.0
			for _, i := range members {
				sum += s[i][j]
			}
			if sum > bestSum {
				best, bestSum = j, sum
			}
		}
		centers[c] = best
	}
	assignExemplars(s, centers, labels)

	// Number clusters by exemplar index
	exemplars := make([]int, n)
	for i, l := range labels {
		exemplars[i] = centers[l]
	}
	unique := append([]int(nil), centers...)
	sort.Ints(unique)
	for i, e := range exemplars {
		labels[i] = sort.SearchInts(unique, e)
	}
	return labels, nil
}

func assignExemplars(s [][]float64, centers []int, labels []int) {
	for i := range labels {
		best, bestSim := 0, math.Inf(-1)
		for c, k := range centers {
			if s[i][k] > bestSim {
				best, bestSim = c, s[i][k]
			}
		}
		labels[i] = best
	}
	for c, k := range centers {
		labels[k] = c
	}
}

func square(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	return m
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
