package reads

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nvnieuwk/ampclust/errs"
)

// A target region in 1-based inclusive coordinates
type Region struct {
	// The name of the reference sequence
	Chrom string

	// The first base of the region
	Start int

	// The last base of the region
	Stop int
}

var regionRegex = regexp.MustCompile(`^(.*):(\d+)-(\d+)$`)

// ParseRegion parses a region in the '[chr]:[start]-[stop]' format
func ParseRegion(region string) (Region, error) {
	matches := regionRegex.FindStringSubmatch(strings.TrimSpace(region))
	if len(matches) == 0 || strings.TrimSpace(matches[1]) == "" {
		return Region{}, errs.New(errs.Config, "invalid region format %s. Correct '[chr]:[start]-[stop]'", region)
	}
	start, err := strconv.Atoi(matches[2])
	if err != nil {
		return Region{}, errs.Wrap(errs.Config, err, "invalid region start in %s", region)
	}
	stop, err := strconv.Atoi(matches[3])
	if err != nil {
		return Region{}, errs.Wrap(errs.Config, err, "invalid region stop in %s", region)
	}
	if start < 1 || stop < start {
		return Region{}, errs.New(errs.Config, "invalid region %s, start must be at least 1 and not after stop", region)
	}
	return Region{Chrom: strings.TrimSpace(matches[1]), Start: start, Stop: stop}, nil
}

func (r Region) String() string {
	return fmt.Sprintf("%s:%d-%d", r.Chrom, r.Start, r.Stop)
}

// Overlaps reports whether the 0-based half-open interval [beg, end) on chrom
// shares at least one base with the region
func (r Region) Overlaps(chrom string, beg int, end int) bool {
	return chrom == r.Chrom && beg < r.Stop && end > r.Start-1
}
