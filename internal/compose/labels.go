// Package compose turns the stream of resolved symbol ids into committed
// text. It holds the label table, the modifier and merge rule tables, and the
// debouncing commit state machine.
package compose

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Token classifies a label table entry.
type Token int

const (
	// TokenText entries append their text when committed.
	TokenText Token = iota
	// TokenDeleteOne entries remove the last committed character.
	TokenDeleteOne
	// TokenNoOp entries never change the committed text.
	TokenNoOp
)

func (t Token) String() string {
	switch t {
	case TokenText:
		return "text"
	case TokenDeleteOne:
		return "delete_one"
	case TokenNoOp:
		return "no_op"
	}
	return "unknown"
}

// Default control token spellings.
const (
	DeleteOneToken = "DELETE_ONE"
	NoOpToken      = "NO_OP"
)

// TokenNames lists the label spellings recognised as control tokens.
type TokenNames struct {
	DeleteOne []string `yaml:"delete_one" toml:"delete_one"`
	NoOp      []string `yaml:"no_op" toml:"no_op"`
}

// DefaultTokenNames returns the canonical control token spellings.
func DefaultTokenNames() TokenNames {
	return TokenNames{
		DeleteOne: []string{DeleteOneToken},
		NoOp:      []string{NoOpToken},
	}
}

func (n TokenNames) classify(text string) Token {
	for _, s := range n.DeleteOne {
		if text == s {
			return TokenDeleteOne
		}
	}
	for _, s := range n.NoOp {
		if text == s {
			return TokenNoOp
		}
	}
	if text == "" {
		return TokenNoOp
	}
	return TokenText
}

// Label is one label table entry.
type Label struct {
	ID    int    `json:"id"`
	Text  string `json:"text"`
	Token Token  `json:"token"`
}

// noOp is returned for ids outside the table.
var noOp = Label{ID: -1, Token: TokenNoOp}

// LabelTable maps symbol ids to display text or control tokens. It is
// read-only once built and safe for concurrent readers.
type LabelTable struct {
	labels []Label
}

// NewLabelTable builds a table where texts[i] is the label of id i.
func NewLabelTable(texts []string, names TokenNames) *LabelTable {
	t := &LabelTable{labels: make([]Label, len(texts))}
	for i, text := range texts {
		t.labels[i] = Label{ID: i, Text: text, Token: names.classify(text)}
	}
	return t
}

// ErrEmptyLabels is returned when a label source has no entries.
var ErrEmptyLabels = errors.New("label table is empty")

// ReadLabelsCSV reads one label per row from the first CSV column; the row
// index is the symbol id. Extra columns are ignored.
func ReadLabelsCSV(r io.Reader, names TokenNames) (*LabelTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var texts []string
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read labels: %w", err)
		}
		text := strings.TrimSpace(record[0])
		if len(texts) == 0 {
			text = strings.TrimPrefix(text, "\ufeff")
		}
		texts = append(texts, text)
	}

	if len(texts) == 0 {
		return nil, ErrEmptyLabels
	}
	return NewLabelTable(texts, names), nil
}

// Lookup returns the label for id. Ids outside the table are NO_OP.
func (t *LabelTable) Lookup(id int) Label {
	if t == nil || id < 0 || id >= len(t.labels) {
		return noOp
	}
	return t.labels[id]
}

// Text returns the display text for id, or "" for unknown ids.
func (t *LabelTable) Text(id int) string {
	return t.Lookup(id).Text
}

// Len returns the number of ids in the table.
func (t *LabelTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.labels)
}

// Labels returns a copy of all entries in id order.
func (t *LabelTable) Labels() []Label {
	if t == nil {
		return nil
	}
	out := make([]Label, len(t.labels))
	copy(out, t.labels)
	return out
}
