package compose

import (
	"fmt"
	"strings"
	"time"
)

// Action reports what a composer step did to the committed text.
type Action int

const (
	ActionNone Action = iota
	// ActionCommit appended a character.
	ActionCommit
	// ActionMerge replaced the last character using a merge rule.
	ActionMerge
	// ActionDelete removed the last character.
	ActionDelete
	// ActionClear emptied the committed text.
	ActionClear
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionCommit:
		return "commit"
	case ActionMerge:
		return "merge"
	case ActionDelete:
		return "delete"
	case ActionClear:
		return "clear"
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Action) UnmarshalText(text []byte) error {
	for c := ActionNone; c <= ActionClear; c++ {
		if c.String() == string(text) {
			*a = c
			return nil
		}
	}
	return fmt.Errorf("unknown action %q", text)
}

// Timing configures the letter lock.
type Timing struct {
	// Hold is how long a symbol must be held to commit, and the repeat
	// period while it stays held.
	Hold time.Duration
	// DeadZone suppresses any reaction right after a lock starts.
	DeadZone time.Duration
}

// DefaultTiming returns a 400ms hold with a 20ms dead zone.
func DefaultTiming() Timing {
	return Timing{Hold: 400 * time.Millisecond, DeadZone: 20 * time.Millisecond}
}

// Composer is the text commit state machine. It owns the committed text; the
// text changes only through its methods. Not safe for concurrent use.
type Composer struct {
	labels *LabelTable
	merges *MergeRules
	timing Timing

	text []string

	initialID int
	lockID    int
	lockAt    time.Time
	merged    bool

	delAt time.Time
}

// NewComposer returns an empty composer locked on lockID at now. lockID is
// usually the classifier's out-of-vocabulary id.
func NewComposer(labels *LabelTable, merges *MergeRules, timing Timing, lockID int, now time.Time) *Composer {
	return &Composer{
		labels:    labels,
		merges:    merges,
		timing:    timing,
		initialID: lockID,
		lockID:    lockID,
		lockAt:    now,
		delAt:     now,
	}
}

// Step feeds the resolved symbol id of the current frame.
//
// A new id only starts a lock. Holding the locked id for Timing.Hold commits
// its label and restarts the lock, so a steady hold repeats every Hold. Between
// DeadZone and Hold a single merge check runs against the last committed
// character. Control tokens and unknown ids never merge.
func (c *Composer) Step(now time.Time, id int) Action {
	if id != c.lockID {
		c.relock(now, id)
		return ActionNone
	}

	elapsed := now.Sub(c.lockAt)
	switch {
	case elapsed >= c.timing.Hold:
		c.relock(now, id)
		return c.commit(now, id)
	case elapsed > c.timing.DeadZone && !c.merged:
		c.merged = true
		return c.merge(id)
	}
	return ActionNone
}

func (c *Composer) relock(now time.Time, id int) {
	c.lockID = id
	c.lockAt = now
	c.merged = false
}

func (c *Composer) commit(now time.Time, id int) Action {
	label := c.labels.Lookup(id)
	switch label.Token {
	case TokenDeleteOne:
		return c.DeleteOne(now)
	case TokenNoOp:
		return ActionNone
	}
	c.text = append(c.text, label.Text)
	return ActionCommit
}

func (c *Composer) merge(id int) Action {
	if len(c.text) == 0 || c.labels.Lookup(id).Token != TokenText {
		return ActionNone
	}
	last := len(c.text) - 1
	if r, ok := c.merges.Lookup(c.text[last], id); ok {
		c.text[last] = r
		return ActionMerge
	}
	return ActionNone
}

// DeleteOne removes the last committed character, if any, and refreshes the
// delete lock.
func (c *Composer) DeleteOne(now time.Time) Action {
	c.delAt = now
	if len(c.text) == 0 {
		return ActionNone
	}
	c.text = c.text[:len(c.text)-1]
	return ActionDelete
}

// ForceDelete deletes one character when more than window has passed since
// the last delete or clear. Holding the delete condition therefore removes at
// most one character per window.
func (c *Composer) ForceDelete(now time.Time, window time.Duration) Action {
	if now.Sub(c.delAt) <= window {
		return ActionNone
	}
	return c.DeleteOne(now)
}

// IdleClear empties the text when more than idle has passed since the last
// delete or clear, then restarts that interval.
func (c *Composer) IdleClear(now time.Time, idle time.Duration) Action {
	if now.Sub(c.delAt) <= idle {
		return ActionNone
	}
	c.delAt = now
	if len(c.text) == 0 {
		return ActionNone
	}
	c.text = c.text[:0]
	return ActionClear
}

// Reset empties the text and restarts every timer at now.
func (c *Composer) Reset(now time.Time) {
	c.text = nil
	c.relock(now, c.initialID)
	c.delAt = now
}

// Text returns the committed text.
func (c *Composer) Text() string {
	return strings.Join(c.text, "")
}

// Entries returns a copy of the committed characters in order.
func (c *Composer) Entries() []string {
	out := make([]string, len(c.text))
	copy(out, c.text)
	return out
}

// Len returns the number of committed characters.
func (c *Composer) Len() int { return len(c.text) }

// LockID returns the id currently held in the letter lock.
func (c *Composer) LockID() int { return c.lockID }

// LockedAt returns when the current letter lock started.
func (c *Composer) LockedAt() time.Time { return c.lockAt }

// DeletedAt returns the time of the last delete or clear.
func (c *Composer) DeletedAt() time.Time { return c.delAt }
