package app

import (
	"fmt"
	"log/slog"

	"github.com/ayusman/yubimoji/internal/classifier"
	"github.com/ayusman/yubimoji/internal/compose"
	"github.com/ayusman/yubimoji/internal/config"
	"github.com/ayusman/yubimoji/internal/engine"
	"github.com/ayusman/yubimoji/internal/motion"
	"github.com/ayusman/yubimoji/internal/store"
)

// Symbols is everything a session needs from configuration and the store:
// the engine tables and the classifier templates.
type Symbols struct {
	Tables    engine.Tables
	Templates []*classifier.Template
}

// LoadSymbols builds the symbol data. Stored symbols, when there are any,
// replace the configured labels. Stored rules are added to the configured
// ones and win on conflict. Merge rules that no longer name a text label are
// dropped with a warning, since editing symbols can invalidate them. st may
// be nil.
func LoadSymbols(cfg *config.Config, st *store.Store) (Symbols, error) {
	if st == nil {
		tables, err := cfg.LoadTables()
		if err != nil {
			return Symbols{}, err
		}
		return Symbols{Tables: tables}, nil
	}

	symbols, err := st.Symbols().List()
	if err != nil {
		return Symbols{}, fmt.Errorf("list symbols: %w", err)
	}

	var labels *compose.LabelTable
	if len(symbols) > 0 {
		texts, err := st.Symbols().LabelTexts()
		if err != nil {
			return Symbols{}, fmt.Errorf("label texts: %w", err)
		}
		labels = compose.NewLabelTable(texts, cfg.Tables.Tokens)
	} else if labels, err = cfg.LoadLabels(); err != nil {
		return Symbols{}, err
	}

	storedMods, err := st.Rules().ListModifiers()
	if err != nil {
		return Symbols{}, fmt.Errorf("list modifier rules: %w", err)
	}
	modifiers, err := compose.NewModifierTable(mergeModifierRules(cfg.Tables.Modifiers, storedMods))
	if err != nil {
		return Symbols{}, fmt.Errorf("modifier rules: %w", err)
	}

	storedMerges, err := st.Rules().ListMerges()
	if err != nil {
		return Symbols{}, fmt.Errorf("list merge rules: %w", err)
	}
	merges := make([]compose.MergeRule, 0, len(cfg.Tables.Merges)+len(storedMerges))
	merges = append(merges, cfg.Tables.Merges...)
	merges = append(merges, storedMerges...)
	merges = usableMerges(labels, merges)

	var templates []*classifier.Template
	for _, sym := range symbols {
		if len(sym.Template) == 0 {
			continue
		}
		templates = append(templates, &classifier.Template{
			ShapeID:   sym.ShapeID,
			Name:      sym.Label,
			Features:  sym.Template,
			Tolerance: sym.Tolerance,
		})
	}

	return Symbols{
		Tables: engine.Tables{
			Labels:    labels,
			Modifiers: modifiers,
			Merges:    compose.NewMergeRules(merges),
		},
		Templates: templates,
	}, nil
}

// mergeModifierRules returns base followed by override, with rules of
// override replacing those of base for the same (base id, modifier) pair.
func mergeModifierRules(base, override []compose.ModifierRule) []compose.ModifierRule {
	type key struct {
		base int
		mod  motion.Modifier
	}
	index := make(map[key]int, len(base)+len(override))
	out := make([]compose.ModifierRule, 0, len(base)+len(override))
	for _, r := range append(append([]compose.ModifierRule(nil), base...), override...) {
		k := key{r.Base, r.Modifier}
		if i, ok := index[k]; ok {
			out[i] = r
			continue
		}
		index[k] = len(out)
		out = append(out, r)
	}
	return out
}

// usableMerges returns the rules that can apply under labels.
func usableMerges(labels *compose.LabelTable, rules []compose.MergeRule) []compose.MergeRule {
	out := rules[:0]
	for _, r := range rules {
		if err := compose.CheckMergeRule(labels, r); err != nil {
			slog.Warn("merge rule ignored", "err", err)
			continue
		}
		out = append(out, r)
	}
	return out
}
