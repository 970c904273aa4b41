package kmer

// K-mer frequencies of a single read
type KmerCount map[string]int

// Total returns the number of windows that were counted
func (c KmerCount) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// CountKmers slides a window of size k over seq with stride 1.
// A sequence shorter than k gives an empty count.
func CountKmers(seq string, k int) KmerCount {
	counts := KmerCount{}
	if k <= 0 {
		return counts
	}
	for i := 0; i <= len(seq)-k; i++ {
		counts[seq[i:i+k]]++
	}
	return counts
}

// CountMinimizers slides a window of size k over seq and counts the
// lexicographically smallest substring of length z of every window.
// Every window contributes exactly one count, like CountKmers.
func CountMinimizers(seq string, k int, z int) KmerCount {
	if z <= 0 || z >= k {
		return CountKmers(seq, k)
	}
	counts := KmerCount{}
	for i := 0; i <= len(seq)-k; i++ {
		counts[minimizer(seq[i:i+k], z)]++
	}
	return counts
}

func minimizer(window string, z int) string {
	best := window[:z]
	for j := 1; j <= len(window)-z; j++ {
		if candidate := window[j : j+z]; candidate < best {
			best = candidate
		}
	}
	return best
}
