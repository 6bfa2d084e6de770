package analyzer

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/ZDP-Q/PostureCorrection/internal/pose"
)

// minMagnitude is the shortest segment length, in normalized image units,
// for which an angle is considered meaningful.
const minMagnitude = 1e-6

// cosineSnap is how close to ±1 a cosine must be to count as exactly
// parallel or opposite. The norm product can round just above the dot
// product for identical directions.
const cosineSnap = 1e-12

// similaritySigma is the angle difference in degrees at which similarity
// drops to about 0.61.
const similaritySigma = 30.0

// Option configures a DefaultAnalyzer.
type Option func(*DefaultAnalyzer)

// WithName overrides the implementation name and description.
func WithName(name, description string) Option {
	return func(a *DefaultAnalyzer) {
		a.name = name
		a.description = description
	}
}

// WithJoints replaces the joint table.
func WithJoints(joints []pose.JointDefinition) Option {
	return func(a *DefaultAnalyzer) {
		a.joints = joints
	}
}

// WithLimbs replaces the limb table used for limb verdicts.
func WithLimbs(limbs []pose.Limb) Option {
	return func(a *DefaultAnalyzer) {
		a.limbs = limbs
	}
}

// WithThresholdScale multiplies the configured angle threshold.
func WithThresholdScale(scale float64) Option {
	return func(a *DefaultAnalyzer) {
		a.thresholdScale = scale
	}
}

// With3D always includes the depth coordinate when computing angles.
// Without it, depth follows the settings when they implement DepthSettings.
func With3D(enabled bool) Option {
	return func(a *DefaultAnalyzer) {
		a.use3D = enabled
	}
}

// DefaultAnalyzer compares poses by the angles at a fixed table of joints.
type DefaultAnalyzer struct {
	name           string
	description    string
	settings       Settings
	joints         []pose.JointDefinition
	limbs          []pose.Limb
	thresholdScale float64
	use3D          bool
}

// New creates a DefaultAnalyzer reading its tunables from settings.
// A nil settings uses DefaultSettings.
func New(settings Settings, opts ...Option) *DefaultAnalyzer {
	if settings == nil {
		settings = DefaultSettings()
	}

	a := &DefaultAnalyzer{
		name:           "default",
		description:    "Joint-angle comparison using the vector angle formula",
		settings:       settings,
		joints:         pose.DefaultJoints,
		limbs:          pose.DefaultLimbs,
		thresholdScale: 1,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name implements component.Component.
func (a *DefaultAnalyzer) Name() string { return a.name }

// Description implements component.Component.
func (a *DefaultAnalyzer) Description() string { return a.description }

// Initialize implements component.Component. The analyzer holds no resources.
func (a *DefaultAnalyzer) Initialize() error { return nil }

// Joints returns the joint table the analyzer evaluates.
func (a *DefaultAnalyzer) Joints() []pose.JointDefinition { return a.joints }

// Threshold returns the angle threshold currently in effect.
func (a *DefaultAnalyzer) Threshold() float64 {
	t := a.settings.AngleThreshold() * a.thresholdScale
	if t < 0 {
		return 0
	}
	return t
}

// CalculateAngle implements Analyzer.
func (a *DefaultAnalyzer) CalculateAngle(vertex, p1, p2 pose.Landmark) (float64, bool) {
	return angleAt(a.depth(), vertex, p1, p2)
}

// depth reports whether angles currently include the z coordinate.
func (a *DefaultAnalyzer) depth() bool {
	if a.use3D {
		return true
	}
	if d, ok := a.settings.(DepthSettings); ok {
		return d.Use3D()
	}
	return false
}

func angleAt(depth bool, vertex, p1, p2 pose.Landmark) (float64, bool) {
	return Angle(vector(vertex, depth), vector(p1, depth), vector(p2, depth))
}

func vector(lm pose.Landmark, depth bool) r3.Vector {
	v := r3.Vector{X: lm.X, Y: lm.Y}
	if depth {
		v.Z = lm.Z
	}
	return v
}

// Angle returns the angle in degrees at vertex formed by the vectors to a
// and b. The cosine is clamped to [-1, 1] before arccos so rounding error
// cannot produce NaN. ok is false when either vector is shorter than
// minMagnitude.
func Angle(vertex, a, b r3.Vector) (degrees float64, ok bool) {
	v1 := a.Sub(vertex)
	v2 := b.Sub(vertex)

	n1 := v1.Norm()
	n2 := v2.Norm()
	if n1 < minMagnitude || n2 < minMagnitude {
		return 0, false
	}

	return acosDegrees(v1.Dot(v2) / (n1 * n2)), true
}

func acosDegrees(cos float64) float64 {
	switch {
	case math.Abs(cos-1) < cosineSnap:
		return 0
	case math.Abs(cos+1) < cosineSnap:
		return 180
	}
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

// ExtractPoseAngles implements Analyzer. A joint is undefined unless all
// three of its landmarks are more visible than the configured minimum.
func (a *DefaultAnalyzer) ExtractPoseAngles(p pose.Pose) (pose.AngleSet, error) {
	if p.IsEmpty() {
		return pose.AngleSet{}, ErrEmptyPose
	}

	minVis := a.settings.MinVisibility()
	depth := a.depth()
	angles := make([]pose.JointAngle, 0, len(a.joints))

	for _, j := range a.joints {
		vertex := p.At(j.Vertex)
		p1 := p.At(j.EndpointA)
		p2 := p.At(j.EndpointB)

		entry := pose.JointAngle{Name: j.Name}
		if vertex.Visibility > minVis && p1.Visibility > minVis && p2.Visibility > minVis {
			entry.Degrees, entry.Defined = angleAt(depth, vertex, p1, p2)
		}
		angles = append(angles, entry)
	}

	return pose.NewAngleSet(angles...), nil
}

// CompareAngles implements Analyzer. Only joints defined in both sets are
// evaluated; a joint matches when the absolute difference does not exceed
// the threshold.
func (a *DefaultAnalyzer) CompareAngles(reference, live pose.AngleSet) pose.MatchResult {
	threshold := a.Threshold()

	result := pose.MatchResult{
		PerJoint: make(map[string]bool),
		Details:  make(map[string]float64),
		Limbs:    make(map[string]bool),
	}

	var similarities []float64
	reference.Each(func(ref pose.JointAngle) {
		if !ref.Defined {
			return
		}
		liveDeg, ok := live.Get(ref.Name)
		if !ok {
			return
		}

		diff := math.Abs(ref.Degrees - liveDeg)
		result.PerJoint[ref.Name] = diff <= threshold
		result.Details[ref.Name] = diff
		similarities = append(similarities, math.Exp(-(diff*diff)/(2*similaritySigma*similaritySigma)))
	})

	if n := len(result.PerJoint); n > 0 {
		result.Score = float64(result.Matched()) / float64(n)
		result.Similarity = stat.Mean(similarities, nil)
	}

	for _, limb := range a.limbs {
		evaluated := false
		matched := true
		for _, name := range limb.Angles {
			ok, present := result.PerJoint[name]
			if !present {
				continue
			}
			evaluated = true
			matched = matched && ok
		}
		if evaluated {
			result.Limbs[limb.Name] = matched
		}
	}

	return result
}

// ComparePoses implements Analyzer.
func (a *DefaultAnalyzer) ComparePoses(reference, live pose.Pose) (pose.MatchResult, error) {
	refAngles, err := a.ExtractPoseAngles(reference)
	if err != nil {
		return pose.MatchResult{}, err
	}
	liveAngles, err := a.ExtractPoseAngles(live)
	if err != nil {
		return pose.MatchResult{}, err
	}
	return a.CompareAngles(refAngles, liveAngles), nil
}

// OrientationDegrees returns the angle of the segment from a to b relative
// to the image horizontal, in (-180, 180].
func OrientationDegrees(a, b pose.Landmark) float64 {
	return math.Atan2(b.Y-a.Y, b.X-a.X) * 180 / math.Pi
}
