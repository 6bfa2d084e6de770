package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Reference poses - named target poses live frames are compared against
		`CREATE TABLE IF NOT EXISTS reference_poses (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			source TEXT NOT NULL DEFAULT '',
			samples INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Reference landmarks - the 33 body landmarks of each reference pose
		`CREATE TABLE IF NOT EXISTS reference_landmarks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			reference_id TEXT NOT NULL REFERENCES reference_poses(id) ON DELETE CASCADE,
			landmark_index INTEGER NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			z REAL NOT NULL,
			visibility REAL NOT NULL
		)`,

		// Reference samples - raw captures averaged into a reference
		`CREATE TABLE IF NOT EXISTS reference_samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			reference_id TEXT NOT NULL REFERENCES reference_poses(id) ON DELETE CASCADE,
			sample_index INTEGER NOT NULL,
			data TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE UNIQUE INDEX IF NOT EXISTS idx_reference_landmarks_reference_index
			ON reference_landmarks(reference_id, landmark_index)`,
		`CREATE INDEX IF NOT EXISTS idx_reference_samples_reference_id ON reference_samples(reference_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
