package gesture

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Sample is one labelled feature vector collected for training.
type Sample struct {
	Label    string
	Features FeatureVector
}

// Trainer averages recorded samples into per-class centroids.
type Trainer struct {
	labels LabelTable

	// OnSample, if set, is called after each sample is consumed.
	OnSample func()
}

// NewTrainer creates a Trainer for the given label table.
func NewTrainer(labels LabelTable) *Trainer {
	return &Trainer{labels: labels}
}

// TrainCentroids averages samples per label. The result is indexed by class
// index minus one; classes without samples get a nil centroid.
func (t *Trainer) TrainCentroids(samples []Sample) ([][]float64, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples provided")
	}

	sums := make([][]float64, t.labels.Len())
	counts := make([]int, t.labels.Len())

	for i, s := range samples {
		idx, ok := t.labels.Index(s.Label)
		if !ok {
			return nil, fmt.Errorf("sample %d has unknown label %q", i, s.Label)
		}
		if len(s.Features) != FeatureLength {
			return nil, fmt.Errorf("sample %d has %d features, expected %d", i, len(s.Features), FeatureLength)
		}

		c := idx - 1
		if sums[c] == nil {
			sums[c] = make([]float64, FeatureLength)
		}
		floats.Add(sums[c], s.Features)
		counts[c]++

		if t.OnSample != nil {
			t.OnSample()
		}
	}

	for c := range sums {
		if counts[c] > 0 {
			floats.Scale(1/float64(counts[c]), sums[c])
		}
	}

	return sums, nil
}
