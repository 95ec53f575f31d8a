package store

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Sample represents a recorded hand pose stored for a symbol.
type Sample struct {
	ID          int64           `json:"id"`
	SymbolID    string          `json:"symbolId"`
	SampleIndex int             `json:"sampleIndex"`
	Data        json.RawMessage `json:"data"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// SampleRepository provides CRUD operations for symbol samples.
type SampleRepository struct {
	db *sql.DB
}

// Samples returns the sample repository for this store.
func (s *Store) Samples() *SampleRepository {
	return &SampleRepository{db: s.db}
}

// Create appends samples to a symbol in a single transaction and updates
// the sample count on the symbol. It returns the new total.
func (r *SampleRepository) Create(symbolID string, samples []json.RawMessage) (int, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRow(
		`SELECT COALESCE(MAX(sample_index) + 1, 0) FROM symbol_samples WHERE symbol_id = ?`,
		symbolID,
	).Scan(&next); err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(`INSERT INTO symbol_samples (symbol_id, sample_index, data) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i, data := range samples {
		if _, err := stmt.Exec(symbolID, next+i, string(data)); err != nil {
			return 0, err
		}
	}

	total := next + len(samples)
	result, err := tx.Exec(`UPDATE symbols SET samples = ?, updated_at = ? WHERE id = ?`,
		total, time.Now(), symbolID)
	if err != nil {
		return 0, err
	}
	if err := rowsAffected(result); err != nil {
		return 0, err
	}

	return total, tx.Commit()
}

// GetBySymbolID retrieves all samples for a symbol in recording order.
func (r *SampleRepository) GetBySymbolID(symbolID string) ([]Sample, error) {
	rows, err := r.db.Query(
		`SELECT id, symbol_id, sample_index, data, created_at
		 FROM symbol_samples
		 WHERE symbol_id = ?
		 ORDER BY sample_index`,
		symbolID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var s Sample
		var data string
		if err := rows.Scan(&s.ID, &s.SymbolID, &s.SampleIndex, &data, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Data = json.RawMessage(data)
		samples = append(samples, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return samples, nil
}

// DeleteBySymbolID removes all samples for a symbol and resets its count.
func (r *SampleRepository) DeleteBySymbolID(symbolID string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM symbol_samples WHERE symbol_id = ?`, symbolID); err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE symbols SET samples = 0, template = NULL, updated_at = ? WHERE id = ?`,
		time.Now(), symbolID); err != nil {
		return err
	}
	return tx.Commit()
}
