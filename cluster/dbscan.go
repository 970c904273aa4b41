package cluster

import "fmt"

// Density based clustering: points with at least MinSamples neighbours within
// Eps (themselves included) are core points and grow clusters
type DBSCAN struct {
	Eps        float64
	MinSamples int
	Metric     Metric
	NJobs      int
}

func (d *DBSCAN) Check() error {
	if d.Eps <= 0 {
		return fmt.Errorf("eps must be positive, got %v", d.Eps)
	}
	if d.MinSamples < 1 {
		return fmt.Errorf("min_samples must be at least 1, got %d", d.MinSamples)
	}
	return nil
}

func (d *DBSCAN) Fit(x [][]float64) ([]int, error) {
	if err := d.Check(); err != nil {
		return nil, err
	}
	if err := checkPoints(x); err != nil {
		return nil, err
	}

	neighbours := make([][]int, len(x))
	parallel(len(x), d.NJobs, func(i int) {
		neighbours[i] = radius(x, x[i], d.Eps, d.Metric)
	})

	labels := make([]int, len(x))
	for i := range labels {
		labels[i] = Noise
	}
	core := func(i int) bool { return len(neighbours[i]) >= d.MinSamples }

	label := 0
	for i := range x {
		if labels[i] != Noise || !core(i) {
			continue
		}
		labels[i] = label
		stack := []int{i}
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, q := range neighbours[p] {
				if labels[q] != Noise {
					continue
				}
				labels[q] = label
				if core(q) {
					stack = append(stack, q)
				}
			}
		}
		label++
	}
	return labels, nil
}
