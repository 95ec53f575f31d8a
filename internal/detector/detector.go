// Package detector finds hands in camera frames: the Detector interface, the
// MediaPipe subprocess tracker and a mock for tests.
package detector

import (
	"gocv.io/x/gocv"

	"github.com/ayusman/yubimoji/internal/hand"
)

// Detector finds hands in a video frame. It is the hand tracker in front of
// the recognition engine: each detected hand carries 21 keypoints and a
// handedness label.
type Detector interface {
	// Detect analyzes a video frame and returns detected hand landmarks.
	// Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]hand.Landmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 2).
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// ScriptPath overrides the landmarker service script lookup.
	ScriptPath string
}

// DefaultConfig returns the settings fingerspelling input was tuned with:
// two hands, a strict detection threshold and a looser tracking threshold.
func DefaultConfig() Config {
	return Config{
		MaxHands:        2,
		MinConfidence:   0.7,
		MinTrackingConf: 0.5,
	}
}
