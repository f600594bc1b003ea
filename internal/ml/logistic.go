package ml

import (
	"fmt"
	"math"
)

// LogisticConfig controls multinomial logistic regression fitting.
type LogisticConfig struct {
	MaxIter      int
	LearningRate float64
	// C is the inverse L2 regularization strength, as in the usual
	// 0.5*||W||² + C*Σloss objective.
	C float64
}

// DefaultLogisticConfig returns the reference configuration.
func DefaultLogisticConfig() LogisticConfig {
	return LogisticConfig{MaxIter: 1000, LearningRate: 0.5, C: 1.0}
}

// LogisticRegression is a fitted softmax classifier. Weights[k] holds the
// bias followed by one coefficient per feature for class k.
type LogisticRegression struct {
	Classes int         `json:"classes"`
	Weights [][]float64 `json:"weights"`
}

// FitLogistic fits a multinomial logistic regression on x and class labels y
// in [0, classes) with full-batch gradient descent.
func FitLogistic(x [][]float64, y []int, classes int, cfg LogisticConfig) (*LogisticRegression, error) {
	dim, err := checkMatrix(x)
	if err != nil {
		return nil, err
	}
	if len(y) != len(x) {
		return nil, fmt.Errorf("%w: %d rows, %d labels", ErrDimensionMismatch, len(x), len(y))
	}
	if classes < 2 {
		return nil, fmt.Errorf("need at least 2 classes, got %d", classes)
	}
	for i, label := range y {
		if label < 0 || label >= classes {
			return nil, fmt.Errorf("label %d at row %d outside [0, %d)", label, i, classes)
		}
	}
	if cfg.MaxIter <= 0 {
		cfg.MaxIter = 1000
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 0.5
	}

	n := float64(len(x))
	var lambda float64
	if cfg.C > 0 {
		lambda = 1 / (cfg.C * n)
	}

	w := make([][]float64, classes)
	grad := make([][]float64, classes)
	for k := range w {
		w[k] = make([]float64, dim+1)
		grad[k] = make([]float64, dim+1)
	}
	model := &LogisticRegression{Classes: classes, Weights: w}
	probs := make([]float64, classes)

	for iter := 0; iter < cfg.MaxIter; iter++ {
		for k := range grad {
			for j := range grad[k] {
				grad[k][j] = 0
			}
		}

		for i, row := range x {
			model.softmax(row, probs)
			for k := 0; k < classes; k++ {
				diff := probs[k]
				if y[i] == k {
					diff -= 1
				}
				grad[k][0] += diff
				for j, v := range row {
					grad[k][j+1] += diff * v
				}
			}
		}

		var maxStep float64
		for k := range w {
			for j := range w[k] {
				g := grad[k][j] / n
				if j > 0 {
					// The intercept is not penalized.
					g += lambda * w[k][j]
				}
				step := cfg.LearningRate * g
				w[k][j] -= step
				if a := math.Abs(step); a > maxStep {
					maxStep = a
				}
			}
		}
		if maxStep < 1e-8 {
			break
		}
	}

	return model, nil
}

// Predict returns the most probable class for v.
func (m *LogisticRegression) Predict(v []float64) (int, error) {
	probs, err := m.Probabilities(v)
	if err != nil {
		return 0, err
	}
	best := 0
	for k, p := range probs {
		if p > probs[best] {
			best = k
		}
	}
	return best, nil
}

// Probabilities returns the softmax class distribution for v.
func (m *LogisticRegression) Probabilities(v []float64) ([]float64, error) {
	if m == nil || len(m.Weights) == 0 {
		return nil, ErrNotFitted
	}
	if len(v) != len(m.Weights[0])-1 {
		return nil, fmt.Errorf("%w: expected %d features, got %d", ErrDimensionMismatch, len(m.Weights[0])-1, len(v))
	}
	probs := make([]float64, m.Classes)
	m.softmax(v, probs)
	return probs, nil
}

// Validate checks a loaded model for internal consistency.
func (m *LogisticRegression) Validate(dim int) error {
	if m.Classes < 2 || len(m.Weights) != m.Classes {
		return fmt.Errorf("logistic: %d weight rows for %d classes", len(m.Weights), m.Classes)
	}
	for k, row := range m.Weights {
		if len(row) != dim+1 {
			return fmt.Errorf("logistic: %w: class %d has %d weights, expected %d", ErrDimensionMismatch, k, len(row), dim+1)
		}
	}
	return nil
}

func (m *LogisticRegression) softmax(v []float64, out []float64) {
	maxZ := math.Inf(-1)
	for k, row := range m.Weights {
		z := row[0]
		for j, x := range v {
			z += row[j+1] * x
		}
		out[k] = z
		if z > maxZ {
			maxZ = z
		}
	}
	var sum float64
	for k := range out {
		out[k] = math.Exp(out[k] - maxZ)
		sum += out[k]
	}
	for k := range out {
		out[k] /= sum
	}
}
