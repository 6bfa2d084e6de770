// Package pose provides the body landmark data model used for posture comparison.
package pose

import (
	"encoding/json"
	"fmt"
)

// Body landmark indices following the MediaPipe pose convention.
// See: https://developers.google.com/mediapipe/solutions/vision/pose_landmarker
const (
	Nose           = 0
	LeftEyeInner   = 1
	LeftEye        = 2
	LeftEyeOuter   = 3
	RightEyeInner  = 4
	RightEye       = 5
	RightEyeOuter  = 6
	LeftEar        = 7
	RightEar       = 8
	MouthLeft      = 9
	MouthRight     = 10
	LeftShoulder   = 11
	RightShoulder  = 12
	LeftElbow      = 13
	RightElbow     = 14
	LeftWrist      = 15
	RightWrist     = 16
	LeftPinky      = 17
	RightPinky     = 18
	LeftIndex      = 19
	RightIndex     = 20
	LeftThumb      = 21
	RightThumb     = 22
	LeftHip        = 23
	RightHip       = 24
	LeftKnee       = 25
	RightKnee      = 26
	LeftAnkle      = 27
	RightAnkle     = 28
	LeftHeel       = 29
	RightHeel      = 30
	LeftFootIndex  = 31
	RightFootIndex = 32
	NumLandmarks   = 33
)

var landmarkNames = [NumLandmarks]string{
	"nose", "left_eye_inner", "left_eye", "left_eye_outer",
	"right_eye_inner", "right_eye", "right_eye_outer", "left_ear", "right_ear",
	"mouth_left", "mouth_right", "left_shoulder", "right_shoulder",
	"left_elbow", "right_elbow", "left_wrist", "right_wrist",
	"left_pinky", "right_pinky", "left_index", "right_index",
	"left_thumb", "right_thumb", "left_hip", "right_hip",
	"left_knee", "right_knee", "left_ankle", "right_ankle",
	"left_heel", "right_heel", "left_foot_index", "right_foot_index",
}

// LandmarkName returns the snake_case name of a landmark index.
func LandmarkName(i int) string {
	if i < 0 || i >= NumLandmarks {
		return fmt.Sprintf("landmark_%d", i)
	}
	return landmarkNames[i]
}

// Landmark is a single detected keypoint. X and Y are normalized image
// coordinates, Z is relative depth and Visibility is the detector's
// confidence in [0,1].
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

// Pose is one detected body: exactly NumLandmarks landmarks indexed by the
// constants above. Undetected points carry Visibility 0.
//
// A Pose is a value object. Callers must not modify Landmarks after
// construction; use New to derive a changed copy.
type Pose struct {
	Landmarks []Landmark `json:"landmarks"`
}

// New builds a Pose from detector output. At most NumLandmarks points are
// copied; missing indices are filled with zero-visibility landmarks so the
// result always has NumLandmarks entries.
func New(landmarks []Landmark) Pose {
	p := Pose{Landmarks: make([]Landmark, NumLandmarks)}
	copy(p.Landmarks, landmarks)
	return p
}

// Undetected returns a Pose in which no landmark is visible.
func Undetected() Pose {
	return New(nil)
}

// FromTuples reconstructs a Pose from (x, y, z, visibility) tuples.
func FromTuples(tuples [][4]float64) (Pose, error) {
	if len(tuples) != NumLandmarks {
		return Pose{}, fmt.Errorf("pose has %d landmarks, expected %d", len(tuples), NumLandmarks)
	}

	p := Pose{Landmarks: make([]Landmark, NumLandmarks)}
	for i, t := range tuples {
		p.Landmarks[i] = Landmark{X: t[0], Y: t[1], Z: t[2], Visibility: t[3]}
	}
	return p, nil
}

// Tuples returns the pose as (x, y, z, visibility) tuples.
func (p Pose) Tuples() [][4]float64 {
	out := make([][4]float64, len(p.Landmarks))
	for i, lm := range p.Landmarks {
		out[i] = [4]float64{lm.X, lm.Y, lm.Z, lm.Visibility}
	}
	return out
}

// Len returns the number of landmarks.
func (p Pose) Len() int {
	return len(p.Landmarks)
}

// IsEmpty reports whether the pose has no landmarks at all. This only
// happens for malformed detector output; a pose with nobody in frame still
// has NumLandmarks invisible landmarks.
func (p Pose) IsEmpty() bool {
	return len(p.Landmarks) == 0
}

// At returns the landmark at index i, or an invisible landmark when i is out of range.
func (p Pose) At(i int) Landmark {
	if i < 0 || i >= len(p.Landmarks) {
		return Landmark{}
	}
	return p.Landmarks[i]
}

// Detected reports whether any landmark is visible.
func (p Pose) Detected() bool {
	for _, lm := range p.Landmarks {
		if lm.Visibility > 0 {
			return true
		}
	}
	return false
}

// UnmarshalJSON decodes a pose and normalizes it to NumLandmarks entries.
// An explicitly empty landmark list is preserved so it can be rejected
// downstream as malformed.
func (p *Pose) UnmarshalJSON(data []byte) error {
	var raw struct {
		Landmarks []Landmark `json:"landmarks"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.Landmarks) == 0 {
		*p = Pose{}
		return nil
	}
	*p = New(raw.Landmarks)
	return nil
}
