package classifier

import (
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// CentroidModel scores each class by 1/(1+d), where d is the Euclidean
// distance to the class centroid, and normalizes the scores into a
// distribution. Classes with a nil centroid always score zero.
type CentroidModel struct {
	features  int
	centroids [][]float64
}

type centroidArtifact struct {
	Kind      string      `json:"kind"`
	Features  int         `json:"features"`
	Centroids [][]float64 `json:"centroids"`
}

// NewCentroidModel builds a model from per-class centroids indexed by class
// index minus one. At least one centroid must be present.
func NewCentroidModel(features int, centroids [][]float64) (*CentroidModel, error) {
	if features <= 0 {
		return nil, fmt.Errorf("centroid: features must be positive")
	}

	present := 0
	out := make([][]float64, len(centroids))
	for i, c := range centroids {
		if c == nil {
			continue
		}
		if len(c) != features {
			return nil, fmt.Errorf("centroid: class %d has %d features, want %d", i+1, len(c), features)
		}
		out[i] = append([]float64(nil), c...)
		present++
	}
	if present == 0 {
		return nil, fmt.Errorf("centroid: no class has a centroid")
	}

	return &CentroidModel{features: features, centroids: out}, nil
}

func decodeCentroid(data []byte) (*CentroidModel, error) {
	var a centroidArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse centroid model: %w", err)
	}
	return NewCentroidModel(a.Features, a.Centroids)
}

func (m *CentroidModel) artifact() centroidArtifact {
	return centroidArtifact{
		Kind:      KindCentroid,
		Features:  m.features,
		Centroids: m.centroids,
	}
}

// Kind implements Model.
func (m *CentroidModel) Kind() string { return KindCentroid }

// Classes implements Model.
func (m *CentroidModel) Classes() int { return len(m.centroids) }

// Features implements Model.
func (m *CentroidModel) Features() int { return m.features }

// PredictProba implements Model.
func (m *CentroidModel) PredictProba(features []float64) ([]float64, error) {
	if err := checkFeatures(len(features), m.features); err != nil {
		return nil, err
	}

	dist := make([]float64, len(m.centroids))
	for i, c := range m.centroids {
		if c == nil {
			continue
		}
		dist[i] = 1.0 / (1.0 + floats.Distance(features, c, 2))
	}

	floats.Scale(1/floats.Sum(dist), dist)
	return dist, nil
}
