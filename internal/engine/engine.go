// Package engine turns per-frame hand observations into committed text.
//
// An Engine owns one Session. Each call to Process validates the frame,
// classifies the dominant hand when the caller did not, and then advances the
// session under a mutex using a single clock reading.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ayusman/yubimoji/internal/classifier"
	"github.com/ayusman/yubimoji/internal/hand"
)

// ErrNoLabels is returned when a session is started without a label table.
var ErrNoLabels = errors.New("label table is required")

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now as the engine clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger used for dropped frames.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// Engine serialises frame processing for one session.
type Engine struct {
	cfg        Config
	classifier classifier.Classifier
	now        func() time.Time
	logger     *slog.Logger

	mu      sync.Mutex
	session *Session
}

// New validates cfg and starts a session over tables. c may be nil when every
// frame carries shape ids.
func New(cfg Config, tables Tables, c classifier.Classifier, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	if tables.Labels == nil {
		return nil, ErrNoLabels
	}
	cfg.Dominant, _ = hand.CanonicalHandedness(cfg.Dominant)

	e := &Engine{
		cfg:        cfg,
		classifier: c,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.session = NewSession(cfg, tables, e.now())
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Process advances the session by one frame at the current time.
func (e *Engine) Process(f Frame) (Result, error) {
	return e.ProcessAt(e.now(), f)
}

// ProcessAt advances the session by one frame observed at now. A malformed
// frame returns an *InputError and a classifier failure its wrapped error;
// in both cases the session is unchanged.
func (e *Engine) ProcessAt(now time.Time, f Frame) (Result, error) {
	obs, err := e.prepare(f)
	if err != nil {
		e.logger.Debug("frame dropped", "err", err)
		return Result{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.advance(now, obs), nil
}

// prepare validates f and resolves the dominant hand's base shape id.
func (e *Engine) prepare(f Frame) (observation, error) {
	obs, err := validate(e.cfg, f)
	if err != nil {
		return obs, err
	}

	d := obs.dominant
	if d == nil {
		return obs, nil
	}
	if d.shapeID != nil {
		d.baseID = *d.shapeID
		return obs, nil
	}
	if e.classifier == nil {
		return obs, &InputError{Hand: d.index, Reason: "missing shape id"}
	}

	id, err := e.classifier.Classify(hand.FeaturesWithDepth(d.points, e.cfg.DepthScale))
	if err != nil {
		return obs, fmt.Errorf("classify: %w", err)
	}
	d.baseID = id
	return obs, nil
}

// Snapshot returns the session state without advancing it.
func (e *Engine) Snapshot() Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.result()
}

// Reset empties the session and returns its new state.
func (e *Engine) Reset() Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.Reset(e.now())
	return e.session.result()
}

// Restart replaces the session with a fresh one running against tables.
func (e *Engine) Restart(tables Tables) (Result, error) {
	if tables.Labels == nil {
		return Result{}, ErrNoLabels
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.session = NewSession(e.cfg, tables, e.now())
	return e.session.result(), nil
}

// SessionID returns the current session id.
func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.ID()
}
