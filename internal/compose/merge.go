package compose

import "fmt"

// MergeRule rewrites the last committed character when the symbol Next is
// seen shortly after it, e.g. a base kana followed by its voiced variant.
type MergeRule struct {
	Last   string `yaml:"last" toml:"last" json:"last"`
	Next   int    `yaml:"next" toml:"next" json:"next"`
	Result string `yaml:"result" toml:"result" json:"result"`
}

type mergeKey struct {
	last string
	next int
}

// MergeRules is an immutable set of merge rules.
type MergeRules struct {
	rules map[mergeKey]string
}

// NewMergeRules builds a rule set; later duplicates win.
func NewMergeRules(rules []MergeRule) *MergeRules {
	m := &MergeRules{rules: make(map[mergeKey]string, len(rules))}
	for _, r := range rules {
		m.rules[mergeKey{r.Last, r.Next}] = r.Result
	}
	return m
}

// Lookup returns the replacement for last when followed by next.
func (m *MergeRules) Lookup(last string, next int) (string, bool) {
	if m == nil {
		return "", false
	}
	r, ok := m.rules[mergeKey{last, next}]
	return r, ok
}

// Len returns the number of rules.
func (m *MergeRules) Len() int {
	if m == nil {
		return 0
	}
	return len(m.rules)
}

// CheckMergeRule returns an error unless r can apply under labels: Next must
// be a text label and Result must not be empty.
func CheckMergeRule(labels *LabelTable, r MergeRule) error {
	if r.Last == "" || r.Result == "" {
		return fmt.Errorf("merge rule %q+%d: last and result are required", r.Last, r.Next)
	}
	if l := labels.Lookup(r.Next); l.Token != TokenText {
		return fmt.Errorf("merge rule %q+%d: next must be a text label, got %s", r.Last, r.Next, l.Token)
	}
	return nil
}
