package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/yubimoji/internal/compose"
	"github.com/ayusman/yubimoji/internal/hand"
	"github.com/ayusman/yubimoji/internal/motion"
)

// DefaultUnknownID is the out-of-vocabulary shape id. It is never committed
// and serves as the initial letter lock of a session.
const DefaultUnknownID = 87

// Config holds the per-session tuning.
type Config struct {
	// Dominant is the handedness that drives classification and commit.
	Dominant string
	// KeypointCount is the number of keypoints every hand must carry.
	KeypointCount int
	Timing        compose.Timing
	// DeleteWindow throttles the two-hand delete.
	DeleteWindow time.Duration
	// IdleClear is how long after the last delete or clear an empty frame
	// wipes the committed text.
	IdleClear  time.Duration
	UnknownID  int
	DepthScale float64
	Motion     motion.Config
}

// DefaultConfig returns the right-handed fingerspelling defaults.
func DefaultConfig() Config {
	return Config{
		Dominant:      hand.Right,
		KeypointCount: hand.NumLandmarks,
		Timing:        compose.DefaultTiming(),
		DeleteWindow:  300 * time.Millisecond,
		IdleClear:     3 * time.Second,
		UnknownID:     DefaultUnknownID,
		DepthScale:    1,
		Motion:        motion.DefaultConfig(),
	}
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error
	if _, ok := hand.CanonicalHandedness(c.Dominant); !ok {
		errs = append(errs, fmt.Errorf("dominant hand %q must be left or right", c.Dominant))
	}
	if c.KeypointCount <= 0 {
		errs = append(errs, fmt.Errorf("keypoint count must be positive, got %d", c.KeypointCount))
	}
	if c.Timing.Hold <= 0 {
		errs = append(errs, errors.New("hold duration must be positive"))
	}
	if c.Timing.DeadZone < 0 || c.Timing.DeadZone >= c.Timing.Hold {
		errs = append(errs, fmt.Errorf("dead zone %s must lie in [0, hold)", c.Timing.DeadZone))
	}
	if c.DeleteWindow <= 0 {
		errs = append(errs, errors.New("delete window must be positive"))
	}
	if c.IdleClear <= 0 {
		errs = append(errs, errors.New("idle clear must be positive"))
	}
	if c.DepthScale <= 0 {
		errs = append(errs, fmt.Errorf("depth scale must be positive, got %g", c.DepthScale))
	}
	if c.Motion.Rearm < 0 || c.Motion.Unlock < 0 {
		errs = append(errs, errors.New("motion intervals must not be negative"))
	}
	if c.Motion.MidSlack <= 0 || c.Motion.EndSlack <= 0 {
		errs = append(errs, errors.New("motion slack factors must be positive"))
	}
	return errors.Join(errs...)
}

// Tables is the immutable symbol data a session runs against.
type Tables struct {
	Labels    *compose.LabelTable
	Modifiers *compose.ModifierTable
	Merges    *compose.MergeRules
}
