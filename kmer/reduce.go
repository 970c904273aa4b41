package kmer

import (
	"fmt"

	"github.com/nvnieuwk/ampclust/cluster"
	"github.com/nvnieuwk/ampclust/errs"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func reduce(m *FeatureMatrix, method string, components int) (*FeatureMatrix, error) {
	var (
		data   *mat.Dense
		prefix string
		err    error
	)
	switch method {
	case ReducePCA:
		data, err = pca(m.Data, components)
		prefix = "PC"
	case ReduceFeatAgg:
		data, err = featureAgglomeration(m.Data, components)
		prefix = "FA"
	default:
		err = errs.New(errs.Config, "unknown reduction '%s', must be one of: pca, featagg", method)
	}
	if err != nil {
		return nil, err
	}

	columns := make([]string, components)
	for i := range columns {
		columns[i] = fmt.Sprintf("%s%d", prefix, i+1)
	}
	return &FeatureMatrix{Reads: m.Reads, Columns: columns, Data: data}, nil
}

// pca projects the centred rows on the first components principal axes
func pca(x *mat.Dense, components int) (*mat.Dense, error) {
	rows, cols := x.Dims()
	if components > min(rows, cols) {
		return nil, errs.New(errs.Config, "cannot reduce %d reads by %d k-mers to %d PCA components, at most %d are available", rows, cols, components, min(rows, cols))
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return nil, errs.New(errs.Kmer, "principal component analysis failed on a %dx%d matrix", rows, cols)
	}
	var vectors mat.Dense
	pc.VectorsTo(&vectors)

	centred := mat.DenseCopyOf(x)
	column := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(column, j, x)
		mean := stat.Mean(column, nil)
		for i := 0; i < rows; i++ {
			centred.Set(i, j, centred.At(i, j)-mean)
		}
	}

	projected := mat.NewDense(rows, components, nil)
	projected.Mul(centred, vectors.Slice(0, cols, 0, components))
	return projected, nil
}

// featureAgglomeration merges similar k-mer columns with Ward linkage into
// components groups and replaces every group by the mean of its columns.
func featureAgglomeration(x *mat.Dense, components int) (*mat.Dense, error) {
	rows, cols := x.Dims()
	if components > cols {
		return nil, errs.New(errs.Config, "cannot agglomerate %d k-mers into %d features", cols, components)
	}

	features := make([][]float64, cols)
	for j := range features {
		features[j] = mat.Col(nil, j, x)
	}
	agg := &cluster.Agglomerative{
		NClusters: components,
		Linkage:   cluster.Ward,
		Metric:    cluster.Euclidean,
	}
	labels, err := agg.Fit(features)
	if err != nil {
		return nil, errs.Wrap(errs.Kmer, err, "feature agglomeration")
	}

	pooled := mat.NewDense(rows, components, nil)
	sizes := make([]float64, components)
	for j, label := range labels {
		sizes[label]++
		for i := 0; i < rows; i++ {
			pooled.Set(i, label, pooled.At(i, label)+x.At(i, j))
		}
	}
	for i := 0; i < rows; i++ {
		row := pooled.RawRowView(i)
		for g := range row {
			row[g] /= sizes[g]
		}
	}
	return pooled, nil
}
