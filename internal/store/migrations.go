package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Samples table - labelled feature vectors collected for training
		`CREATE TABLE IF NOT EXISTS samples (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL,
			features TEXT NOT NULL,
			handedness TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Predictions table - history of single-shot classifications
		`CREATE TABLE IF NOT EXISTS predictions (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL CHECK(status IN ('success', 'no_hand')),
			label TEXT NOT NULL DEFAULT '',
			confidence REAL NOT NULL DEFAULT 0,
			hands INTEGER NOT NULL DEFAULT 0,
			model_digest TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_samples_label ON samples(label)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
