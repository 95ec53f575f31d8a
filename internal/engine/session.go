package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/yubimoji/internal/compose"
	"github.com/ayusman/yubimoji/internal/motion"
)

// Session is the state of one recognition session: the motion tracker, the
// letter and delete locks and the committed text. It is not safe for
// concurrent use; Engine serialises access.
type Session struct {
	id     string
	cfg    Config
	tables Tables

	tracker  *motion.Tracker
	composer *compose.Composer

	baseID   int
	symbolID int
	modifier motion.Modifier
	hands    []HandSummary
	action   compose.Action
}

// NewSession starts a session at now with every lock pointing at the unknown id.
func NewSession(cfg Config, tables Tables, now time.Time) *Session {
	return &Session{
		id:        uuid.NewString(),
		cfg:       cfg,
		tables:    tables,
		tracker:   motion.NewTracker(cfg.Motion, cfg.UnknownID, now),
		composer:  compose.NewComposer(tables.Labels, tables.Merges, cfg.Timing, cfg.UnknownID, now),
		baseID:    cfg.UnknownID,
		symbolID:  cfg.UnknownID,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// advance applies one validated frame.
//
// The dominant hand always feeds the tracker. With the other hand also in
// view the frame is a delete gesture and nothing is committed; with no hands
// the idle clear runs.
func (s *Session) advance(now time.Time, obs observation) Result {
	action := compose.ActionNone

	switch {
	case obs.dominant != nil:
		s.baseID = obs.dominant.baseID
		s.modifier = s.tracker.Update(now, s.baseID, obs.dominant.position)
		s.symbolID = s.tables.Modifiers.Resolve(s.baseID, s.modifier)
		if obs.otherPresent {
			action = s.composer.ForceDelete(now, s.cfg.DeleteWindow)
		} else {
			action = s.composer.Step(now, s.symbolID)
		}

	case obs.otherPresent:
		s.clearSymbol()

	default:
		s.clearSymbol()
		action = s.composer.IdleClear(now, s.cfg.IdleClear)
	}

	s.hands = obs.hands
	s.action = action
	return s.result()
}

func (s *Session) clearSymbol() {
	s.baseID = s.cfg.UnknownID
	s.symbolID = s.cfg.UnknownID
	s.modifier = motion.None
}

// Reset empties the text, restarts every timer at now and issues a new id.
func (s *Session) Reset(now time.Time) {
	s.id = uuid.NewString()
	s.tracker.Reset(now, s.cfg.UnknownID)
	s.composer.Reset(now)
	s.clearSymbol()
	s.hands = nil
	s.action = compose.ActionNone
}

func (s *Session) result() Result {
	return Result{
		SessionID: s.id,
		Text:      s.composer.Text(),
		Entries:   s.composer.Entries(),
		SymbolID:  s.symbolID,
		BaseID:    s.baseID,
		Modifier:  s.modifier,
		Action:    s.action,
		Hands:     append([]HandSummary(nil), s.hands...),
	}
}
