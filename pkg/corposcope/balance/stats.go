package balance

import (
	"math"
	"sort"
)

// entropy returns the Shannon entropy (base 2) of a count distribution.
// An empty or single-key distribution has entropy 0.
func entropy(counts map[string]int) float64 {
	total := 0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return 0
	}
	h := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(total)
		h -= p * math.Log2(p)
	}
	return h
}

// gini returns the Gini coefficient of a count distribution: 0 for a
// perfectly even spread, approaching 1 as one key takes everything.
func gini(counts map[string]int) float64 {
	if len(counts) == 0 {
		return 0
	}
	values := make([]float64, 0, len(counts))
	for _, c := range counts {
		values = append(values, float64(c))
	}
	sort.Float64s(values)

	n := float64(len(values))
	var cum, cumSum float64
	for _, v := range values {
		cum += v
		cumSum += cum
	}
	if cum == 0 {
		return 0
	}
	return (n + 1 - 2*cumSum/cum) / n
}

// dominanceRatio returns the ratio of the largest count to the second
// largest. A distribution with fewer than two nonzero keys is infinitely
// dominated.
func dominanceRatio(counts map[string]int) float64 {
	first, second := 0, 0
	for _, c := range counts {
		if c >= first {
			first, second = c, first
		} else if c > second {
			second = c
		}
	}
	if second == 0 {
		return math.Inf(1)
	}
	return float64(first) / float64(second)
}

// percentile returns the p-th percentile (0..100) of values using
// nearest-rank on a sorted copy.
func percentile(values []int, p float64) int {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}

// stddev returns the population standard deviation around a known mean.
func stddev(values []int, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		d := float64(v) - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

// median returns the middle value of ints, averaging the two middle
// values for even lengths.
func median(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return float64(sorted[mid])
	}
	return float64(sorted[mid-1]+sorted[mid]) / 2
}
