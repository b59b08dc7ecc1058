package classifier

import (
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// leafFeature marks a leaf node.
const leafFeature = -1

// Node is one decision-tree node. Internal nodes route on
// features[Feature] <= Threshold to Left, otherwise Right. Leaves carry the
// per-class sample counts (or weights) in Value.
type Node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value,omitempty"`
}

// Tree is a flat array of nodes rooted at index 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// ForestModel averages the normalized leaf distributions of its trees, the
// way a random forest's predict_proba does.
type ForestModel struct {
	classes  int
	features int
	trees    []Tree
}

type forestArtifact struct {
	Kind     string `json:"kind"`
	Classes  int    `json:"classes"`
	Features int    `json:"features"`
	Trees    []Tree `json:"trees"`
}

// NewForestModel validates the trees and builds a model.
func NewForestModel(classes, features int, trees []Tree) (*ForestModel, error) {
	if classes <= 0 || features <= 0 {
		return nil, fmt.Errorf("forest: classes and features must be positive")
	}
	if len(trees) == 0 {
		return nil, fmt.Errorf("forest: no trees")
	}

	for ti, tree := range trees {
		if len(tree.Nodes) == 0 {
			return nil, fmt.Errorf("forest: tree %d is empty", ti)
		}
		for ni, n := range tree.Nodes {
			if n.Feature == leafFeature {
				if len(n.Value) != classes {
					return nil, fmt.Errorf("forest: tree %d leaf %d has %d values, want %d", ti, ni, len(n.Value), classes)
				}
				continue
			}
			if n.Feature < 0 || n.Feature >= features {
				return nil, fmt.Errorf("forest: tree %d node %d splits on feature %d", ti, ni, n.Feature)
			}
			// Children must point forward so evaluation always terminates.
			if n.Left <= ni || n.Right <= ni || n.Left >= len(tree.Nodes) || n.Right >= len(tree.Nodes) {
				return nil, fmt.Errorf("forest: tree %d node %d has invalid children", ti, ni)
			}
		}
	}

	return &ForestModel{classes: classes, features: features, trees: trees}, nil
}

func decodeForest(data []byte) (*ForestModel, error) {
	var a forestArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse forest model: %w", err)
	}
	return NewForestModel(a.Classes, a.Features, a.Trees)
}

func (m *ForestModel) artifact() forestArtifact {
	return forestArtifact{
		Kind:     KindForest,
		Classes:  m.classes,
		Features: m.features,
		Trees:    m.trees,
	}
}

// Kind implements Model.
func (m *ForestModel) Kind() string { return KindForest }

// Classes implements Model.
func (m *ForestModel) Classes() int { return m.classes }

// Features implements Model.
func (m *ForestModel) Features() int { return m.features }

// PredictProba implements Model.
func (m *ForestModel) PredictProba(features []float64) ([]float64, error) {
	if err := checkFeatures(len(features), m.features); err != nil {
		return nil, err
	}

	dist := make([]float64, m.classes)
	leaf := make([]float64, m.classes)
	for _, tree := range m.trees {
		n := tree.Nodes[0]
		for n.Feature != leafFeature {
			if features[n.Feature] <= n.Threshold {
				n = tree.Nodes[n.Left]
			} else {
				n = tree.Nodes[n.Right]
			}
		}

		copy(leaf, n.Value)
		if total := floats.Sum(leaf); total > 0 {
			floats.Scale(1/total, leaf)
		}
		floats.Add(dist, leaf)
	}

	floats.Scale(1/float64(len(m.trees)), dist)
	return dist, nil
}
