package classifier

import (
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// SoftmaxModel is a multinomial logistic regression: p = softmax(W·x + b).
type SoftmaxModel struct {
	weights *mat.Dense
	bias    *mat.VecDense
}

type softmaxArtifact struct {
	Kind    string      `json:"kind"`
	Weights [][]float64 `json:"weights"`
	Bias    []float64   `json:"bias"`
}

// NewSoftmaxModel builds a model from a classes×features weight matrix and a
// per-class bias. The inputs are copied.
func NewSoftmaxModel(weights [][]float64, bias []float64) (*SoftmaxModel, error) {
	if len(weights) == 0 || len(weights[0]) == 0 {
		return nil, fmt.Errorf("softmax: empty weight matrix")
	}
	if len(bias) != len(weights) {
		return nil, fmt.Errorf("softmax: %d bias terms for %d classes", len(bias), len(weights))
	}

	rows, cols := len(weights), len(weights[0])
	data := make([]float64, 0, rows*cols)
	for i, row := range weights {
		if len(row) != cols {
			return nil, fmt.Errorf("softmax: row %d has %d weights, want %d", i, len(row), cols)
		}
		data = append(data, row...)
	}

	return &SoftmaxModel{
		weights: mat.NewDense(rows, cols, data),
		bias:    mat.NewVecDense(rows, append([]float64(nil), bias...)),
	}, nil
}

func decodeSoftmax(data []byte) (*SoftmaxModel, error) {
	var a softmaxArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse softmax model: %w", err)
	}
	return NewSoftmaxModel(a.Weights, a.Bias)
}

func (m *SoftmaxModel) artifact() softmaxArtifact {
	rows, _ := m.weights.Dims()
	w := make([][]float64, rows)
	for i := range w {
		w[i] = mat.Row(nil, i, m.weights)
	}
	return softmaxArtifact{
		Kind:    KindSoftmax,
		Weights: w,
		Bias:    mat.Col(nil, 0, m.bias),
	}
}

// Kind implements Model.
func (m *SoftmaxModel) Kind() string { return KindSoftmax }

// Classes implements Model.
func (m *SoftmaxModel) Classes() int {
	r, _ := m.weights.Dims()
	return r
}

// Features implements Model.
func (m *SoftmaxModel) Features() int {
	_, c := m.weights.Dims()
	return c
}

// PredictProba implements Model.
func (m *SoftmaxModel) PredictProba(features []float64) ([]float64, error) {
	if err := checkFeatures(len(features), m.Features()); err != nil {
		return nil, err
	}

	x := mat.NewVecDense(len(features), append([]float64(nil), features...))
	var logits mat.VecDense
	logits.MulVec(m.weights, x)
	logits.AddVec(&logits, m.bias)

	return softmax(mat.Col(nil, 0, &logits)), nil
}

// softmax normalizes in place via log-sum-exp.
func softmax(z []float64) []float64 {
	floats.AddConst(-floats.LogSumExp(z), z)
	floats.Apply(math.Exp, z)
	return z
}
