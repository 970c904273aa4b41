package cluster

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Lloyd's k-means with k-means++ seeding. The best of NInit runs by inertia is kept.
type KMeans struct {
	NClusters int
	MaxIter   int
	Tol       float64
	NInit     int
	NJobs     int

	// Seed of the random generator, a time based seed is used when nil
	Seed *int64
}

func (k *KMeans) Check() error {
	if k.NClusters < 1 {
		return fmt.Errorf("n_clusters must be at least 1, got %d", k.NClusters)
	}
	if k.Tol < 0 {
		return fmt.Errorf("tol must not be negative, got %v", k.Tol)
	}
	return nil
}

func (k *KMeans) Fit(x [][]float64) ([]int, error) {
	if err := k.Check(); err != nil {
		return nil, err
	}
	if err := checkPoints(x); err != nil {
		return nil, err
	}
	if k.NClusters < 1 || k.NClusters > len(x) {
		return nil, fmt.Errorf("n_clusters must be in [1, %d], got %d", len(x), k.NClusters)
	}
	maxIter := k.MaxIter
	if maxIter <= 0 {
		maxIter = 300
	}
	nInit := k.NInit
	if nInit <= 0 {
		nInit = 1
	}
	seed := time.Now().UnixNano()
	if k.Seed != nil {
		seed = *k.Seed
	}
	rng := rand.New(rand.NewSource(seed))
	tol := k.Tol * meanVariance(x)

	var (
		best        []int
		bestInertia = math.Inf(1)
	)
	for run := 0; run < nInit; run++ {
		centers := kmeansPlusPlus(x, k.NClusters, rng)
		labels, inertia := k.lloyd(x, centers, maxIter, tol)
		if inertia < bestInertia {
			best, bestInertia = labels, inertia
		}
	}
	return best, nil
}

func (k *KMeans) lloyd(x [][]float64, centers [][]float64, maxIter int, tol float64) ([]int, float64) {
	labels := make([]int, len(x))
	dists := make([]float64, len(x))
	assign := func() {
		parallel(len(x), k.NJobs, func(i int) {
			labels[i], dists[i] = nearest(x[i], centers)
		})
	}

	dim := len(x[0])
	for iter := 0; iter < maxIter; iter++ {
		assign()
		sums := make([][]float64, len(centers))
		sizes := make([]float64, len(centers))
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, l := range labels {
			floats.Add(sums[l], x[i])
			sizes[l]++
		}
		shift := 0.0
		for c := range centers {
			if sizes[c] == 0 {
				continue
			}
			floats.Scale(1/sizes[c], sums[c])
			d := floats.Distance(sums[c], centers[c], 2)
			shift += d * d
			centers[c] = sums[c]
		}
		if shift <= tol {
			break
		}
	}
	assign()

	inertia := 0.0
	for _, d := range dists {
		inertia += d
	}
	return labels, inertia
}

// nearest returns the closest center and the squared distance to it
func nearest(p []float64, centers [][]float64) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for c, center := range centers {
		d := floats.Distance(p, center, 2)
		if d*d < bestDist {
			best, bestDist = c, d*d
		}
	}
	return best, bestDist
}

func kmeansPlusPlus(x [][]float64, n int, rng *rand.Rand) [][]float64 {
	centers := make([][]float64, 0, n)
	centers = append(centers, append([]float64(nil), x[rng.Intn(len(x))]...))

	weights := make([]float64, len(x))
	for len(centers) < n {
		for i, p := range x {
			_, weights[i] = nearest(p, centers)
		}
		total := floats.Sum(weights)
		pick := rng.Intn(len(x))
		if total > 0 {
			target := rng.Float64() * total
			for i, w := range weights {
				target -= w
				if target <= 0 && w > 0 {
					pick = i
					break
				}
			}
		}
		centers = append(centers, append([]float64(nil), x[pick]...))
	}
	return centers
}

// meanVariance is the mean of the per dimension variances, used to scale the tolerance
func meanVariance(x [][]float64) float64 {
	dim := len(x[0])
	column := make([]float64, len(x))
	total := 0.0
	for j := 0; j < dim; j++ {
		for i, p := range x {
			column[i] = p[j]
		}
		if len(x) > 1 {
			total += stat.Variance(column, nil)
		}
	}
	return total / float64(dim)
}
