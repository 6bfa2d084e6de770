// Package analyzer computes joint angles from body poses and compares a live
// pose against a reference.
package analyzer

import (
	"errors"
	"fmt"

	"github.com/ZDP-Q/PostureCorrection/internal/component"
	"github.com/ZDP-Q/PostureCorrection/internal/pose"
)

// ErrEmptyPose is returned when a pose has no landmarks at all.
var ErrEmptyPose = errors.New("pose has no landmarks")

// Default tunables.
const (
	DefaultAngleThreshold = 15.0
	DefaultMinVisibility  = 0.5
)

// Analyzer defines the interface for pose analysis implementations.
type Analyzer interface {
	component.Component

	// CalculateAngle returns the angle in degrees at vertex between the
	// segments towards a and b. ok is false when either segment is degenerate.
	CalculateAngle(vertex, a, b pose.Landmark) (degrees float64, ok bool)

	// ExtractPoseAngles computes every joint angle of the joint table.
	ExtractPoseAngles(p pose.Pose) (pose.AngleSet, error)

	// CompareAngles scores live angles against reference angles.
	CompareAngles(reference, live pose.AngleSet) pose.MatchResult

	// ComparePoses extracts angles from both poses and compares them.
	ComparePoses(reference, live pose.Pose) (pose.MatchResult, error)
}

// Settings supplies the tunables an analyzer reads on every call.
type Settings interface {
	AngleThreshold() float64
	MinVisibility() float64
}

// DepthSettings is implemented by Settings sources that can switch angle
// computation to three dimensions while the analyzer runs.
type DepthSettings interface {
	Use3D() bool
}

// StaticSettings is a fixed Settings value.
type StaticSettings struct {
	Threshold  float64
	Visibility float64
}

// DefaultSettings returns StaticSettings with the default tunables.
func DefaultSettings() StaticSettings {
	return StaticSettings{
		Threshold:  DefaultAngleThreshold,
		Visibility: DefaultMinVisibility,
	}
}

// AngleThreshold implements Settings.
func (s StaticSettings) AngleThreshold() float64 { return s.Threshold }

// MinVisibility implements Settings.
func (s StaticSettings) MinVisibility() float64 { return s.Visibility }

// Resolve returns the active analyzer from the container.
func Resolve(c *component.Container) (Analyzer, error) {
	inst, err := c.Get(component.CategoryAnalyzer)
	if err != nil {
		return nil, err
	}
	a, ok := inst.(Analyzer)
	if !ok {
		return nil, fmt.Errorf("analyzer %q does not implement Analyzer", inst.Name())
	}
	return a, nil
}
