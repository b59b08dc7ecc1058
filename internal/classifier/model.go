// Package classifier loads pre-trained sign classifiers and evaluates them.
//
// A model is a single JSON artifact whose "kind" field selects the
// implementation. Loaded models are immutable and safe for concurrent use.
package classifier

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"golang.org/x/crypto/blake2b"
	"gonum.org/v1/gonum/floats"
)

// Model kinds understood by Load.
const (
	KindSoftmax  = "softmax"
	KindForest   = "forest"
	KindCentroid = "centroid"
)

var (
	// ErrModelUnavailable is returned when no usable model could be loaded.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrFeatureLength is returned when an input vector has the wrong size.
	ErrFeatureLength = errors.New("feature length mismatch")
)

// Model maps a feature vector to a probability distribution over classes.
// Distribution index i corresponds to class index i+1.
type Model interface {
	Kind() string
	Classes() int
	Features() int
	PredictProba(features []float64) ([]float64, error)
}

// Info describes a loaded model artifact.
type Info struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	Classes  int    `json:"classes"`
	Features int    `json:"features"`
	Digest   string `json:"digest"`
}

// header is decoded first to select the concrete model type.
type header struct {
	Kind string `json:"kind"`
}

// Load reads a model artifact from disk. Any failure is reported wrapped in
// ErrModelUnavailable.
func Load(path string) (Model, Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Info{}, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	m, err := Decode(data)
	if err != nil {
		return nil, Info{}, fmt.Errorf("%w: %s: %v", ErrModelUnavailable, path, err)
	}

	sum := blake2b.Sum256(data)
	info := Info{
		Path:     path,
		Kind:     m.Kind(),
		Classes:  m.Classes(),
		Features: m.Features(),
		Digest:   hex.EncodeToString(sum[:8]),
	}
	return m, info, nil
}

// Decode parses a model artifact.
func Decode(data []byte) (Model, error) {
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("parse model header: %w", err)
	}

	switch h.Kind {
	case KindSoftmax:
		return decodeSoftmax(data)
	case KindForest:
		return decodeForest(data)
	case KindCentroid:
		return decodeCentroid(data)
	case "":
		return nil, errors.New("model kind is missing")
	default:
		return nil, fmt.Errorf("unsupported model kind %q", h.Kind)
	}
}

// Save writes a model artifact produced by Encode to path.
func Save(path string, m Model) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Encode serializes a model in the artifact format accepted by Decode.
func Encode(m Model) ([]byte, error) {
	switch v := m.(type) {
	case *SoftmaxModel:
		return json.MarshalIndent(v.artifact(), "", "  ")
	case *ForestModel:
		return json.MarshalIndent(v.artifact(), "", "  ")
	case *CentroidModel:
		return json.MarshalIndent(v.artifact(), "", "  ")
	default:
		return nil, fmt.Errorf("cannot encode model of type %T", m)
	}
}

// Best returns the arg-max class (0-based) and its probability.
// Ties resolve to the lowest index.
func Best(dist []float64) (int, float64, error) {
	if len(dist) == 0 {
		return 0, 0, errors.New("empty distribution")
	}
	for i, p := range dist {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return 0, 0, fmt.Errorf("non-finite probability at class %d", i)
		}
	}
	idx := floats.MaxIdx(dist)
	return idx, dist[idx], nil
}

func checkFeatures(got, want int) error {
	if got != want {
		return fmt.Errorf("%w: got %d, want %d", ErrFeatureLength, got, want)
	}
	return nil
}
