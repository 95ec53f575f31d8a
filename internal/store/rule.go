package store

import (
	"database/sql"

	"github.com/ayusman/yubimoji/internal/compose"
	"github.com/ayusman/yubimoji/internal/motion"
)

// RuleRepository stores modifier and merge rules.
type RuleRepository struct {
	db *sql.DB
}

// Rules returns the rule repository for this store.
func (s *Store) Rules() *RuleRepository {
	return &RuleRepository{db: s.db}
}

// PutModifier inserts or replaces the rule for (base, modifier).
func (r *RuleRepository) PutModifier(rule compose.ModifierRule) error {
	_, err := r.db.Exec(
		`INSERT INTO modifier_rules (base, modifier, result) VALUES (?, ?, ?)
		 ON CONFLICT(base, modifier) DO UPDATE SET result = excluded.result`,
		rule.Base, int(rule.Modifier), rule.Result,
	)
	return err
}

// DeleteModifier removes the rule for (base, modifier).
func (r *RuleRepository) DeleteModifier(base int, mod motion.Modifier) error {
	result, err := r.db.Exec(`DELETE FROM modifier_rules WHERE base = ? AND modifier = ?`, base, int(mod))
	if err != nil {
		return err
	}
	return rowsAffected(result)
}

// ListModifiers returns all modifier rules ordered by base and modifier.
func (r *RuleRepository) ListModifiers() ([]compose.ModifierRule, error) {
	rows, err := r.db.Query(`SELECT base, modifier, result FROM modifier_rules ORDER BY base, modifier`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []compose.ModifierRule
	for rows.Next() {
		var rule compose.ModifierRule
		var mod int
		if err := rows.Scan(&rule.Base, &mod, &rule.Result); err != nil {
			return nil, err
		}
		rule.Modifier = motion.Modifier(mod)
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// PutMerge inserts or replaces the rule for (last, next).
func (r *RuleRepository) PutMerge(rule compose.MergeRule) error {
	_, err := r.db.Exec(
		`INSERT INTO merge_rules (last, next, result) VALUES (?, ?, ?)
		 ON CONFLICT(last, next) DO UPDATE SET result = excluded.result`,
		rule.Last, rule.Next, rule.Result,
	)
	return err
}

// DeleteMerge removes the rule for (last, next).
func (r *RuleRepository) DeleteMerge(last string, next int) error {
	result, err := r.db.Exec(`DELETE FROM merge_rules WHERE last = ? AND next = ?`, last, next)
	if err != nil {
		return err
	}
	return rowsAffected(result)
}

// ListMerges returns all merge rules ordered by last character and next id.
func (r *RuleRepository) ListMerges() ([]compose.MergeRule, error) {
	rows, err := r.db.Query(`SELECT last, next, result FROM merge_rules ORDER BY last, next`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []compose.MergeRule
	for rows.Next() {
		var rule compose.MergeRule
		if err := rows.Scan(&rule.Last, &rule.Next, &rule.Result); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}
