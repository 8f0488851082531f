package domain

import (
	"math"
	"math/rand"
	"sort"
)

// Isolation forest over single-feature samples. Each value is isolated by
// recursive random splits; anomalous values sit in sparse regions and are
// isolated in fewer splits, giving them shorter average path lengths and
// higher scores. The forest is deterministic for a fixed seed.
const (
	forestTrees         = 100
	forestSubsampleSize = 256
)

type isoNode struct {
	split float64
	left  *isoNode
	right *isoNode
	size  int // external node: number of samples that landed here
}

// isolationForestFlags scores values with an isolation forest and flags the
// highest-scoring points. The contamination fraction sets the decision
// boundary: with k = ceil(contamination*n), a point is flagged when its score
// strictly exceeds the (k+1)-th highest score. The strict comparison means a
// series whose scores are all equal (constant data) flags nothing.
func isolationForestFlags(values []float64, contamination float64, seed int64) []bool {
	n := len(values)
	flags := make([]bool, n)
	if n < 2 {
		return flags
	}

	scores := isolationScores(values, seed)

	k := int(math.Ceil(contamination * float64(n)))
	if k >= n {
		k = n - 1
	}
	ordered := append([]float64(nil), scores...)
	sort.Sort(sort.Reverse(sort.Float64Slice(ordered)))
	boundary := ordered[k]

	for i, s := range scores {
		flags[i] = s > boundary
	}
	return flags
}

// isolationScores returns the anomaly score s(x) = 2^(-E[h(x)]/c(m)) for each
// value, where h is the path length and c(m) the average unsuccessful-search
// path length of a binary search tree of the subsample size m.
func isolationScores(values []float64, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))

	sampleSize := forestSubsampleSize
	if len(values) < sampleSize {
		sampleSize = len(values)
	}
	maxDepth := int(math.Ceil(math.Log2(float64(sampleSize))))

	trees := make([]*isoNode, forestTrees)
	for t := range trees {
		sample := subsample(values, sampleSize, rng)
		trees[t] = buildIsoTree(sample, 0, maxDepth, rng)
	}

	norm := avgPathLength(sampleSize)
	scores := make([]float64, len(values))
	for i, v := range values {
		var total float64
		for _, tree := range trees {
			total += pathLength(tree, v, 0)
		}
		mean := total / float64(len(trees))
		scores[i] = math.Pow(2, -mean/norm)
	}
	return scores
}

// subsample draws size values without replacement.
func subsample(values []float64, size int, rng *rand.Rand) []float64 {
	if size >= len(values) {
		return values
	}
	idx := rng.Perm(len(values))[:size]
	out := make([]float64, size)
	for i, j := range idx {
		out[i] = values[j]
	}
	return out
}

func buildIsoTree(values []float64, depth, maxDepth int, rng *rand.Rand) *isoNode {
	lo, hi := minMax(values)
	if len(values) <= 1 || depth >= maxDepth || lo == hi {
		return &isoNode{size: len(values)}
	}

	split := lo + rng.Float64()*(hi-lo)
	var left, right []float64
	for _, v := range values {
		if v < split {
			left = append(left, v)
		} else {
			right = append(right, v)
		}
	}
	// A degenerate split isolates nothing; close the branch here.
	if len(left) == 0 || len(right) == 0 {
		return &isoNode{size: len(values)}
	}

	return &isoNode{
		split: split,
		left:  buildIsoTree(left, depth+1, maxDepth, rng),
		right: buildIsoTree(right, depth+1, maxDepth, rng),
	}
}

func pathLength(node *isoNode, v float64, depth int) float64 {
	if node.left == nil {
		return float64(depth) + avgPathLength(node.size)
	}
	if v < node.split {
		return pathLength(node.left, v, depth+1)
	}
	return pathLength(node.right, v, depth+1)
}

// avgPathLength is c(n), the average path length of an unsuccessful search in
// a binary search tree of n nodes, used both to normalize scores and to
// credit unresolved external nodes.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	const eulerMascheroni = 0.5772156649
	h := math.Log(float64(n-1)) + eulerMascheroni
	return 2*h - 2*float64(n-1)/float64(n)
}

func minMax(values []float64) (float64, float64) {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
