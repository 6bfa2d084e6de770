package library

import (
	"errors"
	"fmt"

	"github.com/ZDP-Q/PostureCorrection/internal/pose"
)

// ErrNoUsableSamples is returned when every sample lacked a detected person.
var ErrNoUsableSamples = errors.New("no usable samples")

// Trainer turns several captures of the same pose into one reference.
type Trainer struct {
	// MinVisible is the fewest landmarks above MinVisibility a sample
	// needs to be kept.
	MinVisible    int
	MinVisibility float64
}

// NewTrainer creates a Trainer that keeps samples with at least half of
// the landmarks visible.
func NewTrainer(minVisibility float64) *Trainer {
	return &Trainer{
		MinVisible:    pose.NumLandmarks / 2,
		MinVisibility: minVisibility,
	}
}

// Usable reports whether a sample has enough visible landmarks.
func (t *Trainer) Usable(p pose.Pose) bool {
	if p.IsEmpty() {
		return false
	}
	visible := 0
	for _, lm := range p.Landmarks {
		if lm.Visibility > t.MinVisibility {
			visible++
		}
	}
	return visible >= t.MinVisible
}

// Train averages the usable samples into a reference pose. It returns the
// averaged pose and the samples that went into it.
func (t *Trainer) Train(samples []pose.Pose) (pose.Pose, []pose.Pose, error) {
	if len(samples) == 0 {
		return pose.Pose{}, nil, fmt.Errorf("no samples provided")
	}

	var kept []pose.Pose
	for _, s := range samples {
		if t.Usable(s) {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return pose.Pose{}, nil, fmt.Errorf("%w: 0 of %d samples had a visible person", ErrNoUsableSamples, len(samples))
	}

	averaged, err := pose.Average(kept...)
	if err != nil {
		return pose.Pose{}, nil, err
	}
	return averaged, kept, nil
}
