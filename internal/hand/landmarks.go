// Package hand holds the hand keypoint types and the feature normalisation
// consumed by shape classifiers and the recognition engine. It has no camera
// or tracker dependencies.
package hand

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Handedness labels reported by the tracker.
const (
	Left  = "Left"
	Right = "Right"
)

// CanonicalHandedness maps a tracker label to Left or Right,
// ignoring case and surrounding whitespace. ok is false for anything else.
func CanonicalHandedness(label string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "left", "l":
		return Left, true
	case "right", "r":
		return Right, true
	}
	return "", false
}

// Point3D represents a 3D point in space with x, y, z coordinates.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Landmarks represents the 21 hand landmarks detected by MediaPipe.
type Landmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// Features returns the classifier feature vector for the hand.
func (h *Landmarks) Features() []float64 {
	if h == nil {
		return nil
	}
	return Features(h.Points[:])
}

// Features flattens points into a translation and scale invariant vector of
// length 3*len(points). Every point is taken relative to points[0] and every
// component is divided by the largest absolute component, so the result lies
// in [-1, 1]. Coincident points yield the zero vector.
func Features(points []Point3D) []float64 {
	return FeaturesWithDepth(points, 1)
}

// FeaturesWithDepth is Features with the relative z component multiplied by
// depthScale before scaling. Classifiers trained on exaggerated depth use a
// scale such as 200; a scale of 1 is identical to Features.
func FeaturesWithDepth(points []Point3D, depthScale float64) []float64 {
	out := make([]float64, 3*len(points))
	if len(points) == 0 {
		return out
	}

	base := points[0]
	for i, p := range points {
		out[3*i] = p.X - base.X
		out[3*i+1] = p.Y - base.Y
		out[3*i+2] = (p.Z - base.Z) * depthScale
	}

	maxAbs := floats.Norm(out, math.Inf(1))
	if maxAbs == 0 || math.IsNaN(maxAbs) || math.IsInf(maxAbs, 0) {
		for i := range out {
			out[i] = 0
		}
		return out
	}

	floats.Scale(1/maxAbs, out)
	return out
}

// Centroid returns the arithmetic mean of points.
func Centroid(points []Point3D) Point3D {
	if len(points) == 0 {
		return Point3D{}
	}

	var sum Point3D
	for _, p := range points {
		sum.X += p.X
		sum.Y += p.Y
		sum.Z += p.Z
	}
	n := float64(len(points))
	return Point3D{X: sum.X / n, Y: sum.Y / n, Z: sum.Z / n}
}
