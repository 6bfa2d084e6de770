package pose

import "fmt"

// Average combines several captured poses into a single reference pose.
// Positions are weighted by visibility so that frames where a point was
// occluded do not drag it towards the origin. The averaged visibility is the
// plain mean across samples.
func Average(poses ...Pose) (Pose, error) {
	if len(poses) == 0 {
		return Pose{}, fmt.Errorf("no poses provided")
	}

	for i, p := range poses {
		if p.IsEmpty() {
			return Pose{}, fmt.Errorf("pose %d has no landmarks", i)
		}
		if p.Len() != NumLandmarks {
			return Pose{}, fmt.Errorf("pose %d has %d landmarks, expected %d", i, p.Len(), NumLandmarks)
		}
	}

	averaged := make([]Landmark, NumLandmarks)
	n := float64(len(poses))

	for i := 0; i < NumLandmarks; i++ {
		var sumX, sumY, sumZ, weight, sumVis float64
		for _, p := range poses {
			lm := p.Landmarks[i]
			sumX += lm.X * lm.Visibility
			sumY += lm.Y * lm.Visibility
			sumZ += lm.Z * lm.Visibility
			weight += lm.Visibility
			sumVis += lm.Visibility
		}

		if weight == 0 {
			continue
		}
		averaged[i] = Landmark{
			X:          sumX / weight,
			Y:          sumY / weight,
			Z:          sumZ / weight,
			Visibility: sumVis / n,
		}
	}

	return Pose{Landmarks: averaged}, nil
}
