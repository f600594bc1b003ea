// Package climate classifies a window of weather into a climate regime
// (Wet, Normal, Dry) with k-means over standardized cluster features.
package climate

import (
	"errors"
	"fmt"

	"github.com/i474232898/weather-regime/internal/artifact"
	"github.com/i474232898/weather-regime/internal/features"
	"github.com/i474232898/weather-regime/internal/ml"
)

const (
	scalerKind  = "cluster_scaler"
	clusterKind = "kmeans"
)

// Classifier is a scaler and k-means model fit together, plus the labels
// assigned to its clusters. It is read-only once built.
type Classifier struct {
	scaler  *ml.Scaler
	model   *ml.KMeans
	labels  LabelMap
	version string
}

// Result is one classification.
type Result struct {
	ClusterID int
	Label     Label
}

type clusterPayload struct {
	KMeans *ml.KMeans `json:"kmeans"`
	Labels LabelMap   `json:"labels"`
}

// Train fits the scaler on vectors, runs k-means on the scaled vectors and
// names the clusters from their centroids.
func Train(vectors [][]float64, cfg ml.KMeansConfig) (*Classifier, error) {
	for i, v := range vectors {
		if len(v) != len(features.ClusterNames) {
			return nil, fmt.Errorf("vector %d: %w: expected %d features, got %d", i, ml.ErrDimensionMismatch, len(features.ClusterNames), len(v))
		}
	}

	scaler, err := ml.FitScaler(vectors)
	if err != nil {
		return nil, fmt.Errorf("fit scaler: %w", err)
	}
	scaled, err := scaler.TransformMatrix(vectors)
	if err != nil {
		return nil, err
	}
	model, err := ml.FitKMeans(scaled, cfg)
	if err != nil {
		return nil, fmt.Errorf("fit kmeans: %w", err)
	}

	centroids := make([][]float64, model.K())
	for i, c := range model.Centroids {
		if centroids[i], err = scaler.Inverse(c); err != nil {
			return nil, err
		}
	}

	return &Classifier{
		scaler: scaler,
		model:  model,
		labels: AssignLabels(centroids, features.ClusterRainIndex),
	}, nil
}

// Predict scales v with the paired scaler and returns the nearest cluster.
func (c *Classifier) Predict(v []float64) (Result, error) {
	if c == nil {
		return Result{}, artifact.ErrModelNotLoaded
	}
	scaled, err := c.scaler.Transform(v)
	if err != nil {
		return Result{}, err
	}
	id, err := c.model.Predict(scaled)
	if err != nil {
		return Result{}, err
	}
	return Result{ClusterID: id, Label: c.Label(id)}, nil
}

// Label returns the label for a cluster id, or Unknown.
func (c *Classifier) Label(id int) Label {
	return c.labels.Lookup(id)
}

// Labels returns a copy of the label map.
func (c *Classifier) Labels() LabelMap {
	out := make(LabelMap, len(c.labels))
	for k, v := range c.labels {
		out[k] = v
	}
	return out
}

// Centroids returns the cluster centers in unscaled feature units.
func (c *Classifier) Centroids() [][]float64 {
	out := make([][]float64, len(c.model.Centroids))
	for i, centroid := range c.model.Centroids {
		out[i], _ = c.scaler.Inverse(centroid)
	}
	return out
}

// Version is the training run the classifier was loaded from; empty if it was
// trained in this process and never loaded.
func (c *Classifier) Version() string {
	return c.version
}

// Files describes the scaler and cluster artifacts. They must be written in
// one artifact.WriteAll call so they share a version.
func (c *Classifier) Files(scalerPath, clusterPath string) []artifact.File {
	return []artifact.File{
		{Path: scalerPath, Kind: scalerKind, Features: features.ClusterNames, Payload: c.scaler},
		{Path: clusterPath, Kind: clusterKind, Features: features.ClusterNames, Payload: clusterPayload{KMeans: c.model, Labels: c.labels}},
	}
}

// Load reads the scaler and cluster artifacts and checks they come from the
// same training run. Any failure wraps artifact.ErrModelNotLoaded.
func Load(scalerPath, clusterPath string) (*Classifier, error) {
	var scaler ml.Scaler
	senv, err := artifact.Read(scalerPath, scalerKind, features.ClusterNames, &scaler)
	if err != nil {
		return nil, err
	}
	var payload clusterPayload
	cenv, err := artifact.Read(clusterPath, clusterKind, features.ClusterNames, &payload)
	if err != nil {
		return nil, err
	}
	if err := artifact.SameVersion(senv, cenv); err != nil {
		return nil, fmt.Errorf("%w: %w", artifact.ErrModelNotLoaded, err)
	}

	if err := validate(&scaler, payload.KMeans); err != nil {
		return nil, fmt.Errorf("%w: %w", artifact.ErrModelNotLoaded, err)
	}
	labels := payload.Labels
	if len(labels) == 0 {
		labels = ReferenceLabels()
	}

	return &Classifier{scaler: &scaler, model: payload.KMeans, labels: labels, version: senv.Version}, nil
}

func validate(scaler *ml.Scaler, model *ml.KMeans) error {
	if err := scaler.Validate(); err != nil {
		return err
	}
	if scaler.Dim() != len(features.ClusterNames) {
		return fmt.Errorf("scaler: %w: fitted on %d features", ml.ErrDimensionMismatch, scaler.Dim())
	}
	if model == nil {
		return errors.New("cluster artifact has no model")
	}
	return model.Validate(scaler.Dim())
}
