// Package figures draws the optional diagnostic plots of a run.
package figures

import (
	"fmt"
	"image/color"
	"sort"

	"github.com/nvnieuwk/ampclust/cluster"
	"github.com/nvnieuwk/ampclust/errs"
	"github.com/nvnieuwk/ampclust/kmer"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// KDistances returns, sorted, the distance of every point to its m-th nearest
// point, the point itself counted as the first
func KDistances(points [][]float64, m int, metric cluster.Metric) []float64 {
	n := len(points)
	if n == 0 {
		return nil
	}
	m = max(1, min(m, n))

	out := make([]float64, n)
	d := make([]float64, n)
	for i, p := range points {
		for j, q := range points {
			d[j] = metric.Distance(p, q)
		}
		sort.Float64s(d)
		out[i] = d[m-1]
	}
	sort.Float64s(out)
	return out
}

// PlotEPS saves the sorted distances to the minReads-th neighbour. The knee
// of the curve is a good eps for the density models.
func PlotEPS(m *kmer.FeatureMatrix, minReads int, metric cluster.Metric, path string) error {
	distances := KDistances(m.Points(), minReads, metric)
	if len(distances) == 0 {
		return errs.New(errs.Config, "no reads to plot")
	}

	p := plot.New()
	p.Title.Text = "Optimal EPS = point of max curvature"
	p.X.Label.Text = "Reads"
	p.Y.Label.Text = "EPS"
	p.Add(plotter.NewGrid())

	points := make(plotter.XYs, len(distances))
	for i, d := range distances {
		points[i].X = float64(i)
		points[i].Y = d
	}
	line, err := plotter.NewLine(points)
	if err != nil {
		return errs.Wrap(errs.Extract, err, "cannot plot eps estimator")
	}
	line.LineStyle.Color = color.RGBA{R: 50, G: 100, B: 200, A: 255}
	line.LineStyle.Width = vg.Points(2)
	p.Add(line)

	return save(p, path)
}

// PlotReads saves a scatter plot of the first two columns of m, one colour per cluster
func PlotReads(m *kmer.FeatureMatrix, labels []int, path string) error {
	if m.Len() == 0 || len(labels) != m.Len() {
		return errs.New(errs.Config, "cannot plot %d labels for %d reads", len(labels), m.Len())
	}

	p := plot.New()
	p.Title.Text = "Reads by cluster"
	p.X.Label.Text = m.Columns[0]
	if len(m.Columns) > 1 {
		p.Y.Label.Text = m.Columns[1]
	}
	p.Add(plotter.NewGrid())

	groups := map[int]plotter.XYs{}
	for i, l := range labels {
		row := m.Row(i)
		xy := plotter.XY{X: row[0]}
		if len(row) > 1 {
			xy.Y = row[1]
		}
		groups[l] = append(groups[l], xy)
	}
	order := make([]int, 0, len(groups))
	for l := range groups {
		order = append(order, l)
	}
	sort.Ints(order)

	for i, l := range order {
		scatter, err := plotter.NewScatter(groups[l])
		if err != nil {
			return errs.Wrap(errs.Extract, err, "cannot plot reads")
		}
		scatter.GlyphStyle.Color = plotutil.Color(i)
		scatter.GlyphStyle.Shape = plotutil.Shape(i)
		if l == cluster.Noise {
			scatter.GlyphStyle.Color = color.Gray{Y: 160}
		}
		p.Add(scatter)
		p.Legend.Add(legend(l, len(groups[l])), scatter)
	}
	p.Legend.Top = true

	return save(p, path)
}

func legend(label int, size int) string {
	if label == cluster.Noise {
		return fmt.Sprintf("noise (%d)", size)
	}
	return fmt.Sprintf("cluster %d (%d)", label, size)
}

func save(p *plot.Plot, path string) error {
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errs.Wrap(errs.Extract, errors.Wrap(err, path), "cannot save figure")
	}
	return nil
}
