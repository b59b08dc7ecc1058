package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Prediction is one recorded single-shot classification.
type Prediction struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	Label       string    `json:"label,omitempty"`
	Confidence  float64   `json:"confidence"`
	Hands       int       `json:"hands"`
	ModelDigest string    `json:"model_digest,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// PredictionRepository records and lists classification history.
type PredictionRepository struct {
	db *sql.DB
}

// Predictions returns the prediction repository for this store.
func (s *Store) Predictions() *PredictionRepository {
	return &PredictionRepository{db: s.db}
}

// Create records a prediction. An empty ID is replaced with a new UUID.
func (r *PredictionRepository) Create(p *Prediction) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.CreatedAt = time.Now()

	_, err := r.db.Exec(
		`INSERT INTO predictions (id, status, label, confidence, hands, model_digest, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Status, p.Label, p.Confidence, p.Hands, p.ModelDigest, p.CreatedAt,
	)
	return err
}

// Recent returns up to limit predictions, newest first.
func (r *PredictionRepository) Recent(limit int) ([]*Prediction, error) {
	rows, err := r.db.Query(
		`SELECT id, status, label, confidence, hands, model_digest, created_at
		 FROM predictions ORDER BY rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var predictions []*Prediction
	for rows.Next() {
		p := &Prediction{}
		err := rows.Scan(&p.ID, &p.Status, &p.Label, &p.Confidence, &p.Hands, &p.ModelDigest, &p.CreatedAt)
		if err != nil {
			return nil, err
		}
		predictions = append(predictions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return predictions, nil
}

// Count returns the number of recorded predictions.
func (r *PredictionRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM predictions`).Scan(&n)
	return n, err
}
