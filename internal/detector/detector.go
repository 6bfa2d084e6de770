// Package detector provides body pose detection implementations.
package detector

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/ZDP-Q/PostureCorrection/internal/component"
	"github.com/ZDP-Q/PostureCorrection/internal/pose"
)

// ErrDetectionUnavailable is returned when Detect is called before a
// successful Initialize.
var ErrDetectionUnavailable = errors.New("detector not initialized")

// Detector defines the interface for pose detection implementations.
type Detector interface {
	component.Component

	// Detect analyzes a video frame and returns the pose of the most
	// prominent person. A frame with nobody in it yields pose.Undetected().
	Detect(frame *gocv.Mat) (pose.Pose, error)

	// DetectBatch runs Detect over frames in order. Frames that fail
	// produce pose.Undetected().
	DetectBatch(frames []*gocv.Mat) []pose.Pose

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for pose detection.
type Config struct {
	// MinDetectionConfidence is the minimum detection confidence (0.0-1.0).
	MinDetectionConfidence float64

	// MinTrackingConfidence is the minimum tracking confidence (0.0-1.0).
	MinTrackingConfidence float64

	// ModelComplexity selects the landmarker model: 0 lite, 1 full, 2 heavy.
	ModelComplexity int

	// ScriptPath overrides the location of pose_service.py.
	ScriptPath string

	// PythonPath overrides the interpreter used to run the service.
	PythonPath string

	// UseGPU requests the GPU delegate; the service falls back to CPU.
	UseGPU bool
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MinDetectionConfidence: 0.5,
		MinTrackingConfidence:  0.5,
		ModelComplexity:        0,
		UseGPU:                 true,
	}
}

// detectAll implements DetectBatch on top of a single-frame detect.
func detectAll(detect func(*gocv.Mat) (pose.Pose, error), frames []*gocv.Mat) []pose.Pose {
	out := make([]pose.Pose, len(frames))
	for i, f := range frames {
		p, err := detect(f)
		if err != nil || p.IsEmpty() {
			p = pose.Undetected()
		}
		out[i] = p
	}
	return out
}

// Resolve returns the active detector from the container.
func Resolve(c *component.Container) (Detector, error) {
	inst, err := c.Get(component.CategoryDetector)
	if err != nil {
		return nil, err
	}
	d, ok := inst.(Detector)
	if !ok {
		return nil, fmt.Errorf("detector %q does not implement Detector", inst.Name())
	}
	return d, nil
}
