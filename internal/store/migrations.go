package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Symbols table - one row per label table entry, keyed by shape id
		`CREATE TABLE IF NOT EXISTS symbols (
			id TEXT PRIMARY KEY,
			shape_id INTEGER NOT NULL UNIQUE CHECK(shape_id >= 0),
			label TEXT NOT NULL,
			tolerance REAL NOT NULL DEFAULT 0,
			samples INTEGER NOT NULL DEFAULT 0,
			template TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Symbol samples table - raw recorded hand poses for template training
		`CREATE TABLE IF NOT EXISTS symbol_samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol_id TEXT NOT NULL REFERENCES symbols(id) ON DELETE CASCADE,
			sample_index INTEGER NOT NULL,
			data TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Modifier rules - (base shape, motion modifier) -> variant shape
		`CREATE TABLE IF NOT EXISTS modifier_rules (
			base INTEGER NOT NULL,
			modifier INTEGER NOT NULL CHECK(modifier BETWEEN 1 AND 3),
			result INTEGER NOT NULL,
			PRIMARY KEY (base, modifier)
		)`,

		// Merge rules - (last committed character, next symbol) -> replacement
		`CREATE TABLE IF NOT EXISTS merge_rules (
			last TEXT NOT NULL,
			next INTEGER NOT NULL,
			result TEXT NOT NULL,
			PRIMARY KEY (last, next)
		)`,

		// Transcripts - committed text saved when a session is cleared or reset
		`CREATE TABLE IF NOT EXISTS transcripts (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			text TEXT NOT NULL,
			reason TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_symbol_samples_symbol_id ON symbol_samples(symbol_id)`,
		`CREATE INDEX IF NOT EXISTS idx_transcripts_created_at ON transcripts(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
