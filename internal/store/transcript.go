package store

import (
	"database/sql"
	"errors"
	"time"
)

// Transcript reasons: why the committed text was archived.
const (
	ReasonIdle   = "idle"
	ReasonReset  = "reset"
	ReasonReload = "reload"
	ReasonStop   = "stop"
)

// Transcript is committed text saved when a session ended or was cleared.
type Transcript struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Text      string    `json:"text"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"createdAt"`
}

// TranscriptRepository provides operations for transcripts.
type TranscriptRepository struct {
	db *sql.DB
}

// Transcripts returns the transcript repository for this store.
func (s *Store) Transcripts() *TranscriptRepository {
	return &TranscriptRepository{db: s.db}
}

// Create inserts a transcript.
func (r *TranscriptRepository) Create(t *Transcript) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	_, err := r.db.Exec(
		`INSERT INTO transcripts (id, session_id, text, reason, created_at) VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.SessionID, t.Text, t.Reason, t.CreatedAt,
	)
	return err
}

// GetByID retrieves a transcript by its ID.
func (r *TranscriptRepository) GetByID(id string) (*Transcript, error) {
	t := &Transcript{}
	err := r.db.QueryRow(
		`SELECT id, session_id, text, reason, created_at FROM transcripts WHERE id = ?`, id,
	).Scan(&t.ID, &t.SessionID, &t.Text, &t.Reason, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// List returns up to limit transcripts, newest first. A limit of zero or
// less returns all of them.
func (r *TranscriptRepository) List(limit int) ([]*Transcript, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.Query(
		`SELECT id, session_id, text, reason, created_at
		 FROM transcripts ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transcripts []*Transcript
	for rows.Next() {
		t := &Transcript{}
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Text, &t.Reason, &t.CreatedAt); err != nil {
			return nil, err
		}
		transcripts = append(transcripts, t)
	}
	return transcripts, rows.Err()
}

// Delete removes a transcript.
func (r *TranscriptRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM transcripts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return rowsAffected(result)
}
