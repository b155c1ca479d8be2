package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Analyses table - one row per analyzed recording
		`CREATE TABLE IF NOT EXISTS analyses (
			id TEXT PRIMARY KEY,
			exercise INTEGER NOT NULL,
			exercise_name TEXT NOT NULL,
			score INTEGER NOT NULL DEFAULT 0,
			grade TEXT NOT NULL DEFAULT '',
			frame_count INTEGER NOT NULL DEFAULT 0,
			fps REAL NOT NULL,
			filename TEXT NOT NULL DEFAULT '',
			view TEXT NOT NULL DEFAULT '',
			calculation TEXT NOT NULL DEFAULT '{}',
			form_analysis TEXT,
			phases TEXT NOT NULL DEFAULT '[]',
			validation TEXT NOT NULL DEFAULT '{}',
			notes TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Analysis frames table - raw landmark frames kept for re-analysis
		`CREATE TABLE IF NOT EXISTS analysis_frames (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			analysis_id TEXT NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
			frame_index INTEGER NOT NULL,
			data TEXT NOT NULL
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_exercise ON analyses(exercise)`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_frames_analysis_id ON analysis_frames(analysis_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
