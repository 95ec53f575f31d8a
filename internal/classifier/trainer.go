package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/yubimoji/internal/hand"
)

// ErrNoSamples is returned when training is attempted without samples.
var ErrNoSamples = errors.New("no samples provided")

// Sample is one recorded hand pose.
type Sample struct {
	Keypoints  []hand.Point3D `json:"keypoints"`
	Handedness string         `json:"handedness,omitempty"`
	Timestamp  int64          `json:"timestamp"`
}

// Trained is the outcome of averaging a set of samples.
type Trained struct {
	Features []float64
	// Spread is the mean distance of the samples from the averaged vector.
	Spread float64
	Count  int
}

// Trainer averages recorded samples into template feature vectors. It is
// safe for concurrent use.
type Trainer struct {
	mu         sync.RWMutex
	depthScale float64
}

// NewTrainer creates a trainer that normalises samples with depthScale,
// which must match the scale used when classifying live frames.
func NewTrainer(depthScale float64) *Trainer {
	t := &Trainer{}
	t.SetDepthScale(depthScale)
	return t
}

// SetDepthScale changes the scale used for later training.
func (t *Trainer) SetDepthScale(depthScale float64) {
	if depthScale == 0 {
		depthScale = 1
	}
	t.mu.Lock()
	t.depthScale = depthScale
	t.mu.Unlock()
}

// Train parses JSON samples and averages their feature vectors.
func (t *Trainer) Train(samples []json.RawMessage) (Trained, error) {
	if len(samples) == 0 {
		return Trained{}, ErrNoSamples
	}

	parsed := make([]Sample, 0, len(samples))
	for i, raw := range samples {
		var s Sample
		if err := json.Unmarshal(raw, &s); err != nil {
			return Trained{}, fmt.Errorf("failed to parse sample %d: %w", i, err)
		}
		parsed = append(parsed, s)
	}
	return t.TrainSamples(parsed)
}

// TrainSamples averages the feature vectors of already decoded samples.
func (t *Trainer) TrainSamples(samples []Sample) (Trained, error) {
	if len(samples) == 0 {
		return Trained{}, ErrNoSamples
	}

	t.mu.RLock()
	depthScale := t.depthScale
	t.mu.RUnlock()

	vectors := make([][]float64, len(samples))
	for i, s := range samples {
		if len(s.Keypoints) == 0 {
			return Trained{}, fmt.Errorf("sample %d has no keypoints", i)
		}
		if len(s.Keypoints) != len(samples[0].Keypoints) {
			return Trained{}, fmt.Errorf("sample %d has %d keypoints, expected %d",
				i, len(s.Keypoints), len(samples[0].Keypoints))
		}
		vectors[i] = hand.FeaturesWithDepth(s.Keypoints, depthScale)
	}

	mean := make([]float64, len(vectors[0]))
	for _, v := range vectors {
		floats.Add(mean, v)
	}
	floats.Scale(1/float64(len(vectors)), mean)

	distances := make([]float64, len(vectors))
	for i, v := range vectors {
		distances[i] = floats.Distance(v, mean, 2)
	}

	return Trained{
		Features: mean,
		Spread:   stat.Mean(distances, nil),
		Count:    len(vectors),
	}, nil
}
