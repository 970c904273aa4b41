// Package report writes the results of a clustering run: the cluster report
// and the HP tagged or split BAM files.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nvnieuwk/ampclust/cluster"
	"github.com/nvnieuwk/ampclust/errs"
	"github.com/pkg/errors"
	"github.com/shenwei356/xopen"
)

// The number of reads of one cluster
type ClusterSize struct {
	Label int
	Size  int
}

// Summary returns the clusters ordered by descending size, ties by label,
// and the number of noise reads
func Summary(labels []int) ([]ClusterSize, int) {
	sizes := map[int]int{}
	noise := 0
	for _, l := range labels {
		if l == cluster.Noise {
			noise++
			continue
		}
		sizes[l]++
	}

	clusters := make([]ClusterSize, 0, len(sizes))
	for label, size := range sizes {
		clusters = append(clusters, ClusterSize{Label: label, Size: size})
	}
	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].Size != clusters[j].Size {
			return clusters[i].Size > clusters[j].Size
		}
		return clusters[i].Label < clusters[j].Label
	})
	return clusters, noise
}

// Name returns the header of a cluster in the report
func Name(label int, size int) string {
	if label == cluster.Noise {
		return fmt.Sprintf("Noise_numreads%d", size)
	}
	return fmt.Sprintf("cluster%d_numreads%d", label, size)
}

// WriteClusters writes one '>' header per label followed by the names of its
// reads. Labels are written in ascending order, noise first.
// Files ending in .gz are gzipped.
func WriteClusters(path string, reads []string, labels []int) error {
	if len(reads) != len(labels) {
		return errs.New(errs.Clustering, "%d reads but %d labels", len(reads), len(labels))
	}

	members := map[int][]string{}
	for i, l := range labels {
		members[l] = append(members[l], reads[i])
	}
	order := make([]int, 0, len(members))
	for l := range members {
		order = append(order, l)
	}
	sort.Ints(order)

	outfh, err := xopen.Wopen(path)
	if err != nil {
		return errs.Wrap(errs.Extract, errors.Wrap(err, path), "cannot create cluster report")
	}
	for _, l := range order {
		if _, err := fmt.Fprintf(outfh, ">%s\n%s\n", Name(l, len(members[l])), strings.Join(members[l], "\n")); err != nil {
			outfh.Close()
			return errs.Wrap(errs.Extract, errors.Wrap(err, path), "cannot write cluster report")
		}
	}
	return errs.Wrap(errs.Extract, errors.Wrap(outfh.Close(), path), "cannot write cluster report")
}
