package engine

import (
	"fmt"
	"math"

	"github.com/ayusman/yubimoji/internal/compose"
	"github.com/ayusman/yubimoji/internal/hand"
	"github.com/ayusman/yubimoji/internal/motion"
)

// Hand is one detected hand of a frame.
type Hand struct {
	Keypoints  []hand.Point3D `json:"keypoints"`
	Handedness string         `json:"handedness"`
	// ShapeID is the base shape id when the caller already classified the
	// hand. When nil the engine classifies the dominant hand itself.
	ShapeID *int `json:"shapeId,omitempty"`
}

// Frame is the complete input of one processing step.
type Frame struct {
	Hands []Hand `json:"hands"`
}

// HandSummary describes a hand of the last processed frame.
type HandSummary struct {
	Handedness string       `json:"handedness"`
	Dominant   bool         `json:"dominant"`
	Centroid   hand.Point3D `json:"centroid"`
}

// Result is the session state after a frame.
type Result struct {
	SessionID string          `json:"sessionId"`
	Text      string          `json:"committedText"`
	Entries   []string        `json:"entries"`
	SymbolID  int             `json:"currentSymbolId"`
	BaseID    int             `json:"baseShapeId"`
	Modifier  motion.Modifier `json:"modifierCode"`
	Action    compose.Action  `json:"action"`
	Hands     []HandSummary   `json:"hands,omitempty"`
}

// InputError reports a malformed frame. The frame is dropped and the session
// is left unchanged.
type InputError struct {
	Hand   int // index into Frame.Hands, or -1 for the frame as a whole
	Reason string
}

func (e *InputError) Error() string {
	if e.Hand < 0 {
		return "invalid frame: " + e.Reason
	}
	return fmt.Sprintf("invalid frame: hand %d: %s", e.Hand, e.Reason)
}

// observation is a validated frame reduced to what the session consumes.
type observation struct {
	dominant     *dominantHand
	otherPresent bool
	hands        []HandSummary
}

type dominantHand struct {
	index    int
	points   []hand.Point3D
	shapeID  *int
	baseID   int
	position hand.Point3D
}

// validate checks f against cfg without touching any session state.
func validate(cfg Config, f Frame) (observation, error) {
	var obs observation
	if len(f.Hands) > 2 {
		return obs, &InputError{Hand: -1, Reason: fmt.Sprintf("%d hands, at most 2 allowed", len(f.Hands))}
	}

	dominant, _ := hand.CanonicalHandedness(cfg.Dominant)
	seen := make(map[string]bool, 2)

	for i, h := range f.Hands {
		side, ok := hand.CanonicalHandedness(h.Handedness)
		if !ok {
			if h.Handedness == "" {
				return obs, &InputError{Hand: i, Reason: "missing handedness"}
			}
			return obs, &InputError{Hand: i, Reason: fmt.Sprintf("unknown handedness %q", h.Handedness)}
		}
		if seen[side] {
			return obs, &InputError{Hand: i, Reason: "duplicate " + side + " hand"}
		}
		seen[side] = true

		if len(h.Keypoints) != cfg.KeypointCount {
			return obs, &InputError{Hand: i, Reason: fmt.Sprintf("%d keypoints, want %d", len(h.Keypoints), cfg.KeypointCount)}
		}
		for j, p := range h.Keypoints {
			if !finite(p.X) || !finite(p.Y) || !finite(p.Z) {
				return obs, &InputError{Hand: i, Reason: fmt.Sprintf("keypoint %d is not finite", j)}
			}
		}

		centroid := hand.Centroid(h.Keypoints)
		obs.hands = append(obs.hands, HandSummary{
			Handedness: side,
			Dominant:   side == dominant,
			Centroid:   centroid,
		})

		if side != dominant {
			obs.otherPresent = true
			continue
		}
		obs.dominant = &dominantHand{
			index:    i,
			points:   h.Keypoints,
			shapeID:  h.ShapeID,
			position: centroid,
		}
	}
	return obs, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
