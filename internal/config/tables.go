package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ayusman/yubimoji/internal/compose"
	"github.com/ayusman/yubimoji/internal/engine"
	"github.com/ayusman/yubimoji/internal/hand"
	"github.com/ayusman/yubimoji/internal/motion"
)

// ErrNoLabels is returned by LoadTables when neither a labels file nor
// inline labels are configured.
var ErrNoLabels = errors.New("config: no labels configured")

// Path expands a leading "~/" and resolves relative paths against the
// directory of the loaded config file.
func (c *Config) Path(p string) string {
	if p == "" {
		return ""
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p[1:], "/"))
		}
	}
	if filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}

// LabelsPath returns the resolved labels file path, or "" when labels are inline.
func (c *Config) LabelsPath() string {
	return c.Path(c.Tables.LabelsFile)
}

// EngineConfig returns the session tuning described by c.
func (c *Config) EngineConfig() engine.Config {
	dominant, ok := hand.CanonicalHandedness(c.Session.Dominant)
	if !ok {
		dominant = c.Session.Dominant
	}
	return engine.Config{
		Dominant:      dominant,
		KeypointCount: c.Session.KeypointCount,
		Timing: compose.Timing{
			Hold:     c.Session.Hold.Std(),
			DeadZone: c.Session.DeadZone.Std(),
		},
		DeleteWindow: c.Session.DeleteWindow.Std(),
		IdleClear:    c.Session.IdleClear.Std(),
		UnknownID:    c.Session.UnknownID,
		DepthScale:   c.Classifier.DepthScale,
		Motion: motion.Config{
			HistorySize: c.Motion.HistorySize,
			Rearm:       c.Motion.Rearm.Std(),
			Unlock:      c.Motion.Unlock.Std(),
			MidSlack:    c.Motion.MidSlack,
			EndSlack:    c.Motion.EndSlack,
		},
	}
}

// LoadLabels reads the label table from the labels file or the inline list.
func (c *Config) LoadLabels() (*compose.LabelTable, error) {
	if path := c.LabelsPath(); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: open labels: %w", err)
		}
		defer f.Close()

		labels, err := compose.ReadLabelsCSV(f, c.Tables.Tokens)
		if err != nil {
			return nil, fmt.Errorf("config: read labels %q: %w", path, err)
		}
		return labels, nil
	}
	if len(c.Tables.Labels) == 0 {
		return nil, ErrNoLabels
	}
	return compose.NewLabelTable(c.Tables.Labels, c.Tables.Tokens), nil
}

// LoadTables builds the complete symbol tables from the configuration. Merge
// rules must name a text label.
func (c *Config) LoadTables() (engine.Tables, error) {
	labels, err := c.LoadLabels()
	if err != nil {
		return engine.Tables{}, err
	}
	modifiers, err := compose.NewModifierTable(c.Tables.Modifiers)
	if err != nil {
		return engine.Tables{}, fmt.Errorf("config: tables.modifiers: %w", err)
	}
	var errs []error
	for i, r := range c.Tables.Merges {
		if err := compose.CheckMergeRule(labels, r); err != nil {
			errs = append(errs, fmt.Errorf("tables.merges[%d]: %w", i, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return engine.Tables{}, fmt.Errorf("config: %w", err)
	}
	return engine.Tables{
		Labels:    labels,
		Modifiers: modifiers,
		Merges:    compose.NewMergeRules(c.Tables.Merges),
	}, nil
}
