package detector

import (
	"github.com/ZDP-Q/PostureCorrection/internal/pose"
)

// jsonResponse is one reply line from the pose service.
type jsonResponse struct {
	Landmarks []jsonLandmark `json:"landmarks"`
	Error     string         `json:"error,omitempty"`
}

type jsonLandmark struct {
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Z          float64  `json:"z"`
	Visibility *float64 `json:"visibility"`
}

// toPose converts a service reply into a 33-landmark pose. An empty
// landmark list means nobody was found. Landmarks without a visibility
// score are treated as fully visible.
func (r jsonResponse) toPose() pose.Pose {
	if len(r.Landmarks) == 0 {
		return pose.Undetected()
	}

	lms := make([]pose.Landmark, 0, pose.NumLandmarks)
	for i := 0; i < pose.NumLandmarks && i < len(r.Landmarks); i++ {
		jl := r.Landmarks[i]
		vis := 1.0
		if jl.Visibility != nil {
			vis = *jl.Visibility
		}
		lms = append(lms, pose.Landmark{X: jl.X, Y: jl.Y, Z: jl.Z, Visibility: vis})
	}
	return pose.New(lms)
}
