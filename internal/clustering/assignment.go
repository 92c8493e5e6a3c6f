package clustering

import (
	"sort"
)

// Assignment is the raw output of a Clusterer: one label per input vector (-1 for noise)
// and a parallel confidence in [0,1].
type Assignment struct {
	Labels     []int
	Confidence []float64
	// Degraded is set when the result came from a fallback algorithm that cannot detect noise.
	Degraded bool
	// Epsilon is the neighborhood radius used by density clustering.
	Epsilon float64
}

// Groups returns the member indices of every cluster, ordered by cluster label.
// Members are in ascending input order.
func (a Assignment) Groups() [][]int {
	k := countClusters(a.Labels)
	groups := make([][]int, k)

	for i, l := range a.Labels {
		if l >= 0 {
			groups[l] = append(groups[l], i)
		}
	}

	return groups
}

// NoiseCount returns the number of points assigned to no cluster.
func (a Assignment) NoiseCount() int {
	n := 0

	for _, l := range a.Labels {
		if l < 0 {
			n++
		}
	}

	return n
}

func countClusters(labels []int) int {
	k := 0

	for _, l := range labels {
		if l+1 > k {
			k = l + 1
		}
	}

	return k
}

// relabel turns clusters smaller than minSize into noise and renumbers the rest
// by size descending, ties broken by the smallest member index.
func relabel(labels []int, minSize int) []int {
	members := make(map[int][]int)
	for i, l := range labels {
		if l >= 0 {
			members[l] = append(members[l], i)
		}
	}

	type group struct {
		label int
		idx   []int
	}

	groups := make([]group, 0, len(members))

	for l, idx := range members {
		if len(idx) >= minSize {
			groups = append(groups, group{label: l, idx: idx})
		}
	}

	sort.Slice(groups, func(i, j int) bool {
		if len(groups[i].idx) != len(groups[j].idx) {
			return len(groups[i].idx) > len(groups[j].idx)
		}

		return groups[i].idx[0] < groups[j].idx[0]
	})

	out := make([]int, len(labels))
	for i := range out {
		out[i] = noise
	}

	for newLabel, g := range groups {
		for _, i := range g.idx {
			out[i] = newLabel
		}
	}

	return out
}

// kthSmallest returns the k-th smallest value (1-based) of xs. xs is reordered.
func kthSmallest(xs []float64, k int) float64 {
	if len(xs) == 0 || k < 1 {
		return 0
	}

	sort.Float64s(xs)

	return xs[k-1]
}
