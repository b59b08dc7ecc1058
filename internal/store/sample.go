package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Sample is one labelled feature vector recorded for training.
type Sample struct {
	ID         string    `json:"id"`
	Label      string    `json:"label"`
	Features   []float64 `json:"features"`
	Handedness string    `json:"handedness,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// SampleRepository provides CRUD operations for training samples.
type SampleRepository struct {
	db *sql.DB
}

// Samples returns the sample repository for this store.
func (s *Store) Samples() *SampleRepository {
	return &SampleRepository{db: s.db}
}

// Create inserts a sample. An empty ID is replaced with a new UUID.
func (r *SampleRepository) Create(sample *Sample) error {
	if sample.ID == "" {
		sample.ID = uuid.New().String()
	}
	sample.CreatedAt = time.Now()

	data, err := json.Marshal(sample.Features)
	if err != nil {
		return fmt.Errorf("encode features: %w", err)
	}

	_, err = r.db.Exec(
		`INSERT INTO samples (id, label, features, handedness, created_at) VALUES (?, ?, ?, ?, ?)`,
		sample.ID, sample.Label, string(data), sample.Handedness, sample.CreatedAt,
	)
	return err
}

// List returns all samples, oldest first. A non-empty label restricts the
// result to that label.
func (r *SampleRepository) List(label string) ([]Sample, error) {
	query := `SELECT id, label, features, handedness, created_at FROM samples`
	var args []any
	if label != "" {
		query += ` WHERE label = ?`
		args = append(args, label)
	}
	query += ` ORDER BY rowid`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var s Sample
		var data string
		if err := rows.Scan(&s.ID, &s.Label, &data, &s.Handedness, &s.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &s.Features); err != nil {
			return nil, fmt.Errorf("decode features of sample %s: %w", s.ID, err)
		}
		samples = append(samples, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return samples, nil
}

// Counts returns the number of samples per label.
func (r *SampleRepository) Counts() (map[string]int, error) {
	rows, err := r.db.Query(`SELECT label, COUNT(*) FROM samples GROUP BY label`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, err
		}
		counts[label] = n
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return counts, nil
}

// Delete removes a sample by its ID.
func (r *SampleRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM samples WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteByLabel removes all samples for a label and reports how many were removed.
func (r *SampleRepository) DeleteByLabel(label string) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM samples WHERE label = ?`, label)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
