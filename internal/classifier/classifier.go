// Package classifier maps normalised hand feature vectors to base shape ids.
package classifier

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// ErrDimension is returned when a feature vector does not match the length
// of the registered templates.
var ErrDimension = errors.New("feature dimension mismatch")

// Classifier turns a feature vector into a base shape id.
type Classifier interface {
	Classify(features []float64) (int, error)
}

// Func adapts a plain function to the Classifier interface.
type Func func(features []float64) (int, error)

// Classify calls f.
func (f Func) Classify(features []float64) (int, error) {
	return f(features)
}

// Template is a reference feature vector for one hand shape.
type Template struct {
	ShapeID   int       // Base shape id reported on a match
	Name      string    // Human-readable name
	Features  []float64 // Averaged feature vector
	Tolerance float64   // Maximum distance for a match; 0 uses the classifier default
}

// Match is a template within tolerance of an input vector.
type Match struct {
	Template *Template
	Score    float64 // 1/(1+Distance), higher is better
	Distance float64 // Euclidean distance in feature space
}

// TemplateClassifier is a nearest-template classifier. It is safe for
// concurrent use; templates may be replaced while frames are classified.
type TemplateClassifier struct {
	mu          sync.RWMutex
	templates   []*Template
	unknownID   int
	maxDistance float64
}

// NewTemplateClassifier creates a classifier that reports unknownID when no
// template lies within tolerance of the input.
func NewTemplateClassifier(unknownID int, maxDistance float64) *TemplateClassifier {
	return &TemplateClassifier{
		unknownID:   unknownID,
		maxDistance: maxDistance,
	}
}

// UnknownID returns the id reported for unmatched input.
func (c *TemplateClassifier) UnknownID() int {
	return c.unknownID
}

// AddTemplate registers a template. All templates must share one dimension.
func (c *TemplateClassifier) AddTemplate(t *Template) error {
	if t == nil {
		return nil
	}
	if len(t.Features) == 0 {
		return fmt.Errorf("template %q: empty feature vector", t.Name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.templates) > 0 && len(c.templates[0].Features) != len(t.Features) {
		return fmt.Errorf("template %q: %w: got %d, want %d",
			t.Name, ErrDimension, len(t.Features), len(c.templates[0].Features))
	}
	c.templates = append(c.templates, t)
	return nil
}

// Replace swaps the whole template set in one step.
func (c *TemplateClassifier) Replace(templates []*Template) error {
	var dim int
	for _, t := range templates {
		if len(t.Features) == 0 {
			return fmt.Errorf("template %q: empty feature vector", t.Name)
		}
		if dim == 0 {
			dim = len(t.Features)
		} else if len(t.Features) != dim {
			return fmt.Errorf("template %q: %w: got %d, want %d", t.Name, ErrDimension, len(t.Features), dim)
		}
	}

	c.mu.Lock()
	c.templates = append([]*Template(nil), templates...)
	c.mu.Unlock()
	return nil
}

// Len returns the number of registered templates.
func (c *TemplateClassifier) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.templates)
}

// Match returns the templates within tolerance of features, best first.
func (c *TemplateClassifier) Match(features []float64) ([]Match, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.templates) == 0 {
		return nil, nil
	}
	if want := len(c.templates[0].Features); len(features) != want {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimension, len(features), want)
	}

	var matches []Match
	for _, t := range c.templates {
		distance := floats.Distance(features, t.Features, 2)

		tolerance := t.Tolerance
		if tolerance <= 0 {
			tolerance = c.maxDistance
		}
		if distance <= tolerance {
			matches = append(matches, Match{
				Template: t,
				Score:    1.0 / (1.0 + distance),
				Distance: distance,
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches, nil
}

// Classify returns the shape id of the nearest template within tolerance,
// or the unknown id when nothing matches or no templates are registered.
func (c *TemplateClassifier) Classify(features []float64) (int, error) {
	matches, err := c.Match(features)
	if err != nil {
		return 0, err
	}
	if len(matches) == 0 {
		return c.unknownID, nil
	}
	return matches[0].Template.ShapeID, nil
}
