package balance

import (
	"math"
	"testing"
)

func TestEntropy(t *testing.T) {
	tests := []struct {
		name   string
		counts map[string]int
		want   float64
	}{
		{"empty", map[string]int{}, 0},
		{"single domain", map[string]int{"a": 100}, 0},
		{"two even", map[string]int{"a": 50, "b": 50}, 1},
		{"eight even", map[string]int{
			"a": 10, "b": 10, "c": 10, "d": 10,
			"e": 10, "f": 10, "g": 10, "h": 10,
		}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := entropy(tt.counts); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("entropy = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGini(t *testing.T) {
	even := map[string]int{"a": 5, "b": 5, "c": 5, "d": 5}
	if got := gini(even); math.Abs(got) > 1e-9 {
		t.Errorf("gini of even distribution = %v, want 0", got)
	}

	skewed := map[string]int{
		"a": 0, "b": 0, "c": 0, "d": 0, "e": 0,
		"f": 0, "g": 0, "h": 0, "i": 0, "j": 100,
	}
	if got := gini(skewed); math.Abs(got-0.9) > 1e-9 {
		t.Errorf("gini of single-holder distribution = %v, want 0.9", got)
	}

	if got := gini(map[string]int{}); got != 0 {
		t.Errorf("gini of empty = %v, want 0", got)
	}
}

func TestDominanceRatio(t *testing.T) {
	if got := dominanceRatio(map[string]int{"a": 100}); !math.IsInf(got, 1) {
		t.Errorf("single-domain dominance = %v, want +Inf", got)
	}
	if got := dominanceRatio(map[string]int{"a": 100, "b": 20}); got != 5 {
		t.Errorf("dominance = %v, want 5", got)
	}
	if got := dominanceRatio(map[string]int{"a": 30, "b": 30}); got != 1 {
		t.Errorf("even dominance = %v, want 1", got)
	}
}

func TestPercentileAndMedian(t *testing.T) {
	values := []int{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	if got := percentile(values, 25); got != 30 {
		t.Errorf("q25 = %d, want 30", got)
	}
	if got := percentile(values, 75); got != 80 {
		t.Errorf("q75 = %d, want 80", got)
	}
	if got := median(values); got != 55 {
		t.Errorf("median = %v, want 55", got)
	}
	if got := median([]int{1, 2, 3}); got != 2 {
		t.Errorf("odd median = %v, want 2", got)
	}
	if got := percentile(nil, 75); got != 0 {
		t.Errorf("empty percentile = %d, want 0", got)
	}
}

func TestStdDev(t *testing.T) {
	values := []int{2, 4, 4, 4, 5, 5, 7, 9}
	if got := stddev(values, 5); math.Abs(got-2) > 1e-9 {
		t.Errorf("stddev = %v, want 2", got)
	}
	if got := stddev(nil, 0); got != 0 {
		t.Errorf("empty stddev = %v, want 0", got)
	}
}
