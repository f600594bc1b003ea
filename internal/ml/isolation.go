package ml

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/i474232898/weather-regime/internal/common"
)

const eulerGamma = 0.5772156649015329

// IsolationConfig controls isolation forest fitting.
type IsolationConfig struct {
	Trees      int
	SampleSize int
	// Contamination is the largest share of the training data that may be
	// flagged; only scores clearly apart from the bulk are flagged within it.
	Contamination float64
	Seed          int64
}

// DefaultIsolationConfig returns 100 trees, 256-point samples, 10% contamination, seed 42.
func DefaultIsolationConfig() IsolationConfig {
	return IsolationConfig{Trees: 100, SampleSize: 256, Contamination: 0.1, Seed: 42}
}

// ITreeNode is one node of an isolation tree. Leaves have nil children.
type ITreeNode struct {
	Feature int        `json:"f,omitempty"`
	Split   float64    `json:"s,omitempty"`
	Size    int        `json:"n,omitempty"`
	Left    *ITreeNode `json:"l,omitempty"`
	Right   *ITreeNode `json:"r,omitempty"`
}

// IsolationForest is a fitted ensemble of isolation trees.
type IsolationForest struct {
	Dim        int          `json:"dim"`
	SampleSize int          `json:"sample_size"`
	Threshold  float64      `json:"threshold"`
	Trees      []*ITreeNode `json:"trees"`
}

// FitIsolationForest grows the ensemble on x and sets the anomaly threshold.
// The threshold is the (1-contamination) percentile of the training scores,
// raised to the middle of the widest gap among the top contamination*n
// scores. A batch with one clear outlier therefore flags only that row.
func FitIsolationForest(x [][]float64, cfg IsolationConfig) (*IsolationForest, error) {
	dim, err := checkMatrix(x)
	if err != nil {
		return nil, err
	}
	if cfg.Contamination <= 0 || cfg.Contamination >= 0.5 {
		return nil, fmt.Errorf("contamination must be in (0, 0.5), got %v", cfg.Contamination)
	}
	if cfg.Trees <= 0 {
		cfg.Trees = 100
	}
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = 256
	}

	psi := cfg.SampleSize
	if psi > len(x) {
		psi = len(x)
	}
	limit := int(math.Ceil(math.Log2(math.Max(float64(psi), 2))))

	rng := rand.New(rand.NewSource(cfg.Seed))
	f := &IsolationForest{Dim: dim, SampleSize: psi, Trees: make([]*ITreeNode, cfg.Trees)}
	for t := range f.Trees {
		perm := rng.Perm(len(x))[:psi]
		sample := make([][]float64, psi)
		for i, idx := range perm {
			sample[i] = x[idx]
		}
		f.Trees[t] = growTree(sample, 0, limit, rng)
	}

	scores := make([]float64, len(x))
	for i, row := range x {
		scores[i] = f.score(row)
	}
	sort.Float64s(scores)
	f.Threshold = math.Max(
		common.Percentile(scores, 100*(1-cfg.Contamination)),
		separationCut(scores, int(math.Ceil(cfg.Contamination*float64(len(scores))-1e-9))),
	)

	return f, nil
}

// Score returns the anomaly score of v in (0, 1]; higher is more anomalous.
func (f *IsolationForest) Score(v []float64) (float64, error) {
	if f == nil || len(f.Trees) == 0 {
		return 0, ErrNotFitted
	}
	if len(v) != f.Dim {
		return 0, fmt.Errorf("%w: expected %d features, got %d", ErrDimensionMismatch, f.Dim, len(v))
	}
	return f.score(v), nil
}

// Predict returns -1 when v scores above the threshold and +1 otherwise.
func (f *IsolationForest) Predict(v []float64) (int, error) {
	s, err := f.Score(v)
	if err != nil {
		return 0, err
	}
	return f.Decide(s), nil
}

// Decide maps a score to -1 (anomalous) or +1 (normal).
func (f *IsolationForest) Decide(score float64) int {
	if score > f.Threshold {
		return -1
	}
	return 1
}

// Validate checks a loaded forest for internal consistency.
func (f *IsolationForest) Validate(dim int) error {
	if len(f.Trees) == 0 {
		return ErrNotFitted
	}
	if f.Dim != dim {
		return fmt.Errorf("isolation forest: %w: fitted on %d features, expected %d", ErrDimensionMismatch, f.Dim, dim)
	}
	return nil
}

func (f *IsolationForest) score(v []float64) float64 {
	var total float64
	for _, t := range f.Trees {
		total += pathLength(t, v, 0)
	}
	mean := total / float64(len(f.Trees))
	return math.Pow(2, -mean/averagePathLength(f.SampleSize))
}

// separationCut returns the midpoint of the widest gap between consecutive
// scores among the top k of sorted, counting the gap below the lowest of them.
// Equal gaps resolve to the higher one. It returns -Inf when there is no gap.
func separationCut(sorted []float64, k int) float64 {
	n := len(sorted)
	if k > n-1 {
		k = n - 1
	}
	cut, widest := math.Inf(-1), 0.0
	for i := n - k; i < n; i++ {
		if gap := sorted[i] - sorted[i-1]; gap > 0 && gap >= widest {
			cut, widest = sorted[i-1]+gap/2, gap
		}
	}
	return cut
}

func growTree(x [][]float64, depth, limit int, rng *rand.Rand) *ITreeNode {
	if depth >= limit || len(x) <= 1 {
		return &ITreeNode{Size: len(x)}
	}

	dim := len(x[0])
	var candidates []int
	mins := make([]float64, dim)
	maxs := make([]float64, dim)
	for j := 0; j < dim; j++ {
		mins[j], maxs[j] = math.Inf(1), math.Inf(-1)
		for _, row := range x {
			mins[j] = math.Min(mins[j], row[j])
			maxs[j] = math.Max(maxs[j], row[j])
		}
		if maxs[j] > mins[j] {
			candidates = append(candidates, j)
		}
	}
	if len(candidates) == 0 {
		// All remaining points are identical.
		return &ITreeNode{Size: len(x)}
	}

	feature := candidates[rng.Intn(len(candidates))]
	split := mins[feature] + rng.Float64()*(maxs[feature]-mins[feature])

	var left, right [][]float64
	for _, row := range x {
		if row[feature] < split {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}

	return &ITreeNode{
		Feature: feature,
		Split:   split,
		Left:    growTree(left, depth+1, limit, rng),
		Right:   growTree(right, depth+1, limit, rng),
	}
}

func pathLength(n *ITreeNode, v []float64, depth int) float64 {
	for n.Left != nil {
		if v[n.Feature] < n.Split {
			n = n.Left
		} else {
			n = n.Right
		}
		depth++
	}
	return float64(depth) + averagePathLength(n.Size)
}

// averagePathLength is c(n), the mean path length of an unsuccessful BST search.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	default:
		fn := float64(n)
		return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
	}
}
