package ml

import (
	"fmt"
	"math"
	"math/rand"
)

// KMeansConfig controls k-means fitting.
type KMeansConfig struct {
	K       int
	Seed    int64
	MaxIter int
}

// DefaultKMeansConfig returns the reference configuration: 3 clusters, seed 42.
func DefaultKMeansConfig() KMeansConfig {
	return KMeansConfig{K: 3, Seed: 42, MaxIter: 300}
}

// KMeans is a fitted set of centroids.
type KMeans struct {
	Centroids  [][]float64 `json:"centroids"`
	Iterations int         `json:"iterations"`
	Inertia    float64     `json:"inertia"`
}

// FitKMeans partitions x into cfg.K clusters. Centroids are seeded with
// k-means++ from cfg.Seed, so identical input always yields identical ids.
// The loop stops when no point changes cluster or after cfg.MaxIter rounds.
func FitKMeans(x [][]float64, cfg KMeansConfig) (*KMeans, error) {
	if _, err := checkMatrix(x); err != nil {
		return nil, err
	}
	if cfg.K <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", cfg.K)
	}
	if len(x) < cfg.K {
		return nil, fmt.Errorf("%w: %d points for %d clusters", ErrInsufficientData, len(x), cfg.K)
	}
	if cfg.MaxIter <= 0 {
		cfg.MaxIter = 300
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	centroids := seedPlusPlus(x, cfg.K, rng)

	assign := make([]int, len(x))
	for i := range assign {
		assign[i] = -1
	}

	iter := 0
	for iter < cfg.MaxIter {
		iter++
		changed := false
		for i, p := range x {
			c, _ := nearest(centroids, p)
			if c != assign[i] {
				assign[i] = c
				changed = true
			}
		}
		if !changed {
			break
		}
		centroids = recompute(x, assign, centroids)
	}

	var inertia float64
	for i, p := range x {
		inertia += squaredDistance(p, centroids[assign[i]])
	}

	return &KMeans{Centroids: centroids, Iterations: iter, Inertia: inertia}, nil
}

// Predict returns the id of the centroid nearest to v.
func (m *KMeans) Predict(v []float64) (int, error) {
	if m == nil || len(m.Centroids) == 0 {
		return 0, ErrNotFitted
	}
	if len(v) != len(m.Centroids[0]) {
		return 0, fmt.Errorf("%w: expected %d features, got %d", ErrDimensionMismatch, len(m.Centroids[0]), len(v))
	}
	c, _ := nearest(m.Centroids, v)
	return c, nil
}

// K returns the number of clusters.
func (m *KMeans) K() int {
	return len(m.Centroids)
}

// Validate checks a loaded model for internal consistency.
func (m *KMeans) Validate(dim int) error {
	if len(m.Centroids) == 0 {
		return ErrNotFitted
	}
	for i, c := range m.Centroids {
		if len(c) != dim {
			return fmt.Errorf("kmeans: %w: centroid %d has %d features, expected %d", ErrDimensionMismatch, i, len(c), dim)
		}
	}
	return nil
}

func nearest(centroids [][]float64, p []float64) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := squaredDistance(p, centroid); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist
}

// seedPlusPlus picks the first centroid uniformly, then each next one with
// probability proportional to its squared distance to the closest chosen centroid.
func seedPlusPlus(x [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clone(x[rng.Intn(len(x))]))

	dist := make([]float64, len(x))
	for len(centroids) < k {
		var total float64
		for i, p := range x {
			_, d := nearest(centroids, p)
			dist[i] = d
			total += d
		}

		next := 0
		if total == 0 {
			// Every point coincides with a centroid; any choice is as good.
			next = rng.Intn(len(x))
		} else {
			target := rng.Float64() * total
			for i, d := range dist {
				target -= d
				if target <= 0 {
					next = i
					break
				}
				next = i
			}
		}
		centroids = append(centroids, clone(x[next]))
	}
	return centroids
}

// recompute moves each centroid to the mean of its points. A centroid that
// lost all its points stays where it was.
func recompute(x [][]float64, assign []int, prev [][]float64) [][]float64 {
	dim := len(x[0])
	sums := make([][]float64, len(prev))
	counts := make([]int, len(prev))
	for c := range sums {
		sums[c] = make([]float64, dim)
	}
	for i, p := range x {
		c := assign[i]
		counts[c]++
		for j, v := range p {
			sums[c][j] += v
		}
	}

	out := make([][]float64, len(prev))
	for c := range out {
		if counts[c] == 0 {
			out[c] = clone(prev[c])
			continue
		}
		for j := range sums[c] {
			sums[c][j] /= float64(counts[c])
		}
		out[c] = sums[c]
	}
	return out
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
