package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Symbol is one label table entry. ShapeID is the classifier output that
// selects it; Label is the committed text or a control token spelling.
type Symbol struct {
	ID        string    `json:"id"`
	ShapeID   int       `json:"shapeId"`
	Label     string    `json:"label"`
	Tolerance float64   `json:"tolerance"`
	Samples   int       `json:"samples"`
	Template  []float64 `json:"template,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SymbolRepository provides CRUD operations for symbols.
type SymbolRepository struct {
	db *sql.DB
}

// Symbols returns the symbol repository for this store.
func (s *Store) Symbols() *SymbolRepository {
	return &SymbolRepository{db: s.db}
}

const symbolColumns = `id, shape_id, label, tolerance, samples, template, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSymbol(row rowScanner) (*Symbol, error) {
	sym := &Symbol{}
	var template sql.NullString

	err := row.Scan(&sym.ID, &sym.ShapeID, &sym.Label, &sym.Tolerance, &sym.Samples,
		&template, &sym.CreatedAt, &sym.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if template.Valid && template.String != "" {
		if err := json.Unmarshal([]byte(template.String), &sym.Template); err != nil {
			return nil, fmt.Errorf("symbol %s: decode template: %w", sym.ID, err)
		}
	}
	return sym, nil
}

func encodeTemplate(features []float64) (sql.NullString, error) {
	if len(features) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(features)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// Create inserts a new symbol.
func (r *SymbolRepository) Create(sym *Symbol) error {
	now := time.Now()
	sym.CreatedAt = now
	sym.UpdatedAt = now

	template, err := encodeTemplate(sym.Template)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(
		`INSERT INTO symbols (`+symbolColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sym.ID, sym.ShapeID, sym.Label, sym.Tolerance, sym.Samples, template, sym.CreatedAt, sym.UpdatedAt,
	)
	return err
}

// GetByID retrieves a symbol by its ID.
func (r *SymbolRepository) GetByID(id string) (*Symbol, error) {
	sym, err := scanSymbol(r.db.QueryRow(
		`SELECT `+symbolColumns+` FROM symbols WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sym, err
}

// GetByShapeID retrieves the symbol selected by a shape id.
func (r *SymbolRepository) GetByShapeID(shapeID int) (*Symbol, error) {
	sym, err := scanSymbol(r.db.QueryRow(
		`SELECT `+symbolColumns+` FROM symbols WHERE shape_id = ?`, shapeID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sym, err
}

// List retrieves all symbols ordered by shape id.
func (r *SymbolRepository) List() ([]*Symbol, error) {
	rows, err := r.db.Query(`SELECT ` + symbolColumns + ` FROM symbols ORDER BY shape_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var symbols []*Symbol
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, err
		}
		symbols = append(symbols, sym)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return symbols, nil
}

// Update updates an existing symbol, including its template.
func (r *SymbolRepository) Update(sym *Symbol) error {
	sym.UpdatedAt = time.Now()

	template, err := encodeTemplate(sym.Template)
	if err != nil {
		return err
	}

	result, err := r.db.Exec(
		`UPDATE symbols SET shape_id = ?, label = ?, tolerance = ?, samples = ?, template = ?, updated_at = ?
		 WHERE id = ?`,
		sym.ShapeID, sym.Label, sym.Tolerance, sym.Samples, template, sym.UpdatedAt, sym.ID,
	)
	if err != nil {
		return err
	}
	return rowsAffected(result)
}

// Delete removes a symbol and its samples.
func (r *SymbolRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM symbols WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return rowsAffected(result)
}

// LabelTexts returns the labels indexed by shape id. Gaps between stored
// shape ids are empty strings, which the label table treats as no-ops.
func (r *SymbolRepository) LabelTexts() ([]string, error) {
	symbols, err := r.List()
	if err != nil {
		return nil, err
	}
	if len(symbols) == 0 {
		return nil, nil
	}

	texts := make([]string, symbols[len(symbols)-1].ShapeID+1)
	for _, sym := range symbols {
		texts[sym.ShapeID] = sym.Label
	}
	return texts, nil
}
