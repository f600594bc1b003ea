package forecast

import (
	"errors"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/i474232898/weather-regime/internal/artifact"
	"github.com/i474232898/weather-regime/internal/ml"
)

// stationary returns an AR(2) series fluctuating around mean.
func stationary(n int, mean float64, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := []float64{mean, mean}
	for len(out) < n {
		k := len(out)
		next := mean + 0.6*(out[k-1]-mean) + 0.3*(out[k-2]-mean) + rng.NormFloat64()
		out = append(out, next)
	}
	return out
}

func TestPredictNextConstantWindow(t *testing.T) {
	p, err := Train(stationary(1000, 20, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := p.PredictNext([]float64{20, 20, 20, 20, 20, 20, 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got-20) > 0.5 {
		t.Fatalf("expected about 20, got %v", got)
	}
}

func TestPredictNextRequiresSevenValues(t *testing.T) {
	p, err := Train(stationary(200, 20, 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, n := range []int{0, 6, 8} {
		if _, err := p.PredictNext(make([]float64, n)); !errors.Is(err, ml.ErrInvalidWindowSize) {
			t.Fatalf("%d values: expected ErrInvalidWindowSize, got %v", n, err)
		}
	}
}

func TestTrainNeedsPairs(t *testing.T) {
	// Seven values make no pair; several short sequences do not join up.
	short := []float64{1, 2, 3, 4, 5, 6, 7}
	if _, err := Train(short, short, short); !errors.Is(err, ml.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestTrainAcrossSequences(t *testing.T) {
	p, err := Train(stationary(300, 15, 3), stationary(300, 15, 4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Samples != 2*(300-7) {
		t.Fatalf("expected %d samples, got %d", 2*(300-7), p.Samples)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "temp_predictor.json")
	p, err := Train(stationary(500, 25, 5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := artifact.WriteAll(artifact.NewVersion(), p.File(path)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	window := []float64{24, 25, 26, 25, 24, 25, 26}
	want, _ := p.PredictNext(window)
	got, err := loaded.PredictNext(window)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("loaded predictor gave %v, expected %v", got, want)
	}
}
