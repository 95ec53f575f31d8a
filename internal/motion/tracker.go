// Package motion classifies sustained directional hand movement into the
// modifier that turns a held base shape into a variant symbol.
package motion

import (
	"fmt"
	"strings"
	"time"

	"github.com/ayusman/yubimoji/internal/hand"
)

// Modifier is a directional-motion classification applied on top of a held
// base shape. The numeric codes are stable and appear in stored rule tables.
type Modifier int

const (
	None  Modifier = 0
	Down  Modifier = 1
	Right Modifier = 2
	Up    Modifier = 3
)

// String returns the wire name of m: NONE, DOWN, RIGHT or UP.
func (m Modifier) String() string {
	switch m {
	case None:
		return "NONE"
	case Down:
		return "DOWN"
	case Right:
		return "RIGHT"
	case Up:
		return "UP"
	}
	return fmt.Sprintf("modifier(%d)", int(m))
}

// ParseModifier parses a modifier name, in any case, or its numeric code.
func ParseModifier(s string) (Modifier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "", "0":
		return None, nil
	case "down", "1":
		return Down, nil
	case "right", "2":
		return Right, nil
	case "up", "3":
		return Up, nil
	}
	return None, fmt.Errorf("unknown modifier %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Modifier) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Modifier) UnmarshalText(text []byte) error {
	parsed, err := ParseModifier(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// State is the tracker's position in its arm/watch/trigger cycle.
type State int

const (
	// StateIdle means no base shape has been armed yet.
	StateIdle State = iota
	// StateWatching accumulates positions and looks for a trajectory.
	StateWatching
	// StateTriggered holds a classified modifier until the unlock interval passes.
	StateTriggered
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWatching:
		return "watching"
	case StateTriggered:
		return "triggered"
	}
	return "unknown"
}

// Config holds the tracker tuning.
type Config struct {
	HistorySize int
	// Rearm is the minimum time between two armings on base shape changes.
	Rearm time.Duration
	// Unlock is how long a triggered modifier is held before watching resumes.
	Unlock time.Duration
	// MidSlack scales the middle segment mean in the monotonic test.
	MidSlack float64
	// EndSlack scales the early (or late, for upward motion) segment mean.
	EndSlack float64
}

// DefaultConfig returns the tuning used for fingerspelling input.
func DefaultConfig() Config {
	return Config{
		HistorySize: DefaultHistorySize,
		Rearm:       100 * time.Millisecond,
		Unlock:      100 * time.Millisecond,
		MidSlack:    1.03,
		EndSlack:    1.05,
	}
}

// Tracker follows one hand across frames. It is not safe for concurrent use;
// the owning session serialises access.
type Tracker struct {
	cfg         Config
	history     *History
	state       State
	armedID     int
	armedAt     time.Time
	triggeredAt time.Time
	modifier    Modifier
}

// NewTracker returns a tracker in the idle state. armedID is the id treated
// as already armed, typically the classifier's out-of-vocabulary id; now
// starts the re-arm interval.
func NewTracker(cfg Config, armedID int, now time.Time) *Tracker {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultHistorySize
	}
	return &Tracker{
		cfg:     cfg,
		history: NewHistory(cfg.HistorySize),
		armedID: armedID,
		armedAt: now,
	}
}

// Update advances the tracker by one frame and returns the current modifier.
// baseID is the classifier output for the frame and pos the averaged hand position.
func (t *Tracker) Update(now time.Time, baseID int, pos hand.Point3D) Modifier {
	switch {
	case baseID != t.armedID || t.state == StateIdle:
		if baseID != t.armedID && now.Sub(t.armedAt) >= t.cfg.Rearm {
			t.arm(now, baseID, pos)
		}

	case t.modifier == None:
		t.history.Push(pos)
		if m := Classify(t.history, t.cfg.MidSlack, t.cfg.EndSlack); m != None {
			t.modifier = m
			t.triggeredAt = now
			t.state = StateTriggered
		}

	default:
		if now.Sub(t.triggeredAt) >= t.cfg.Unlock {
			t.modifier = None
			t.history.Fill(pos)
			t.state = StateWatching
		}
	}

	return t.modifier
}

func (t *Tracker) arm(now time.Time, baseID int, pos hand.Point3D) {
	t.history.Fill(pos)
	t.armedID = baseID
	t.armedAt = now
	t.modifier = None
	t.state = StateWatching
}

// Reset returns the tracker to idle with armedID armed at now.
func (t *Tracker) Reset(now time.Time, armedID int) {
	t.history.Clear()
	t.state = StateIdle
	t.armedID = armedID
	t.armedAt = now
	t.triggeredAt = time.Time{}
	t.modifier = None
}

// Modifier returns the current modifier without advancing.
func (t *Tracker) Modifier() Modifier { return t.modifier }

// State returns the current tracker state.
func (t *Tracker) State() State { return t.state }

// ArmedID returns the base shape id the tracker is following.
func (t *Tracker) ArmedID() int { return t.armedID }

// History exposes the trajectory window for diagnostics.
func (t *Tracker) History() *History { return t.history }

// segments returns the half-open early, mid and late windows for a history
// of capacity n: [0,n/4), [n/3,n/3+n/4), [2n/3,2n/3+n/4). For n = 12 these
// are [0,3), [4,7) and [8,11).
func segments(n int) (early, mid, late [2]int) {
	w := n / 4
	if w < 1 {
		w = 1
	}
	early = [2]int{0, w}
	mid = [2]int{n / 3, n/3 + w}
	late = [2]int{2 * n / 3, 2*n/3 + w}
	return early, mid, late
}

// Classify applies the monotonic trajectory test to h. Segment means must
// increase (or decrease, for Up) across early, mid and late, with the later
// comparisons scaled by the slack factors so near-equal means do not count as
// motion. Right is checked before Down, Down before Up.
func Classify(h *History, midSlack, endSlack float64) Modifier {
	if h == nil || h.Len() < h.Cap() {
		return None
	}

	e, m, l := segments(h.Cap())
	early := h.Mean(e[0], e[1])
	mid := h.Mean(m[0], m[1])
	late := h.Mean(l[0], l[1])

	switch {
	case early.X < mid.X && mid.X*midSlack < late.X && early.X*endSlack < late.X:
		return Right
	case early.Y < mid.Y && mid.Y*midSlack < late.Y && early.Y*endSlack < late.Y:
		return Down
	case late.Y < mid.Y && mid.Y*midSlack < early.Y && late.Y*endSlack < early.Y:
		return Up
	}
	return None
}
