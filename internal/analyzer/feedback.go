package analyzer

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ZDP-Q/PostureCorrection/internal/pose"
)

// Severity grades a feedback line.
type Severity string

const (
	SeverityOK     Severity = "ok"
	SeverityAdjust Severity = "adjust"
	SeverityWarn   Severity = "warn"
)

// Differences above this many degrees are reported as warnings.
const warnDifference = 30.0

// maxHints is how many adjustment hints are reported per frame.
const maxHints = 3

// Hint is a single body-part adjustment suggestion.
type Hint struct {
	Joint      string   `json:"joint"`
	Message    string   `json:"message"`
	Severity   Severity `json:"severity"`
	Difference float64  `json:"difference"`
}

// Feedback is the human-readable summary of a comparison.
type Feedback struct {
	Status   string   `json:"status"`
	Severity Severity `json:"severity"`
	Hints    []Hint   `json:"hints"`
}

type adjustment struct {
	increase string
	decrease string
}

var adjustments = map[string]adjustment{
	pose.JointLeftShoulder:  {increase: "Raise your left arm a little", decrease: "Lower your left arm a little"},
	pose.JointRightShoulder: {increase: "Raise your right arm a little", decrease: "Lower your right arm a little"},
	pose.JointLeftElbow:     {increase: "Straighten your left elbow a little", decrease: "Bend your left elbow a little"},
	pose.JointRightElbow:    {increase: "Straighten your right elbow a little", decrease: "Bend your right elbow a little"},
	pose.JointLeftHip:       {increase: "Move your left leg forward a little", decrease: "Pull your left leg back a little"},
	pose.JointRightHip:      {increase: "Move your right leg forward a little", decrease: "Pull your right leg back a little"},
	pose.JointLeftKnee:      {increase: "Straighten your left leg a little", decrease: "Bend your left knee a little"},
	pose.JointRightKnee:     {increase: "Straighten your right leg a little", decrease: "Bend your right knee a little"},
}

// GenerateFeedback turns a comparison into an overall status and up to three
// adjustment hints, largest difference first.
func GenerateFeedback(result pose.MatchResult, reference, live pose.AngleSet) Feedback {
	fb := Feedback{Hints: []Hint{}}

	if result.Evaluated() == 0 {
		fb.Status = "Detecting..."
		fb.Severity = SeverityAdjust
		return fb
	}

	switch {
	case result.Score >= 0.9:
		fb.Status = "Great, your pose matches"
		fb.Severity = SeverityOK
	case result.Score >= 0.7:
		fb.Status = "Almost there, fine-tune your pose"
		fb.Severity = SeverityAdjust
	default:
		fb.Status = "Adjust your pose"
		fb.Severity = SeverityWarn
	}

	for joint, matched := range result.PerJoint {
		if matched {
			continue
		}
		refDeg, _ := reference.Get(joint)
		liveDeg, _ := live.Get(joint)
		fb.Hints = append(fb.Hints, hintFor(joint, liveDeg-refDeg))
	}

	sort.Slice(fb.Hints, func(i, j int) bool {
		if fb.Hints[i].Difference != fb.Hints[j].Difference {
			return fb.Hints[i].Difference > fb.Hints[j].Difference
		}
		return fb.Hints[i].Joint < fb.Hints[j].Joint
	})
	if len(fb.Hints) > maxHints {
		fb.Hints = fb.Hints[:maxHints]
	}

	return fb
}

func hintFor(joint string, signedDiff float64) Hint {
	adj, ok := adjustments[joint]
	if !ok {
		part := strings.ReplaceAll(joint, "_", " ")
		adj = adjustment{
			increase: fmt.Sprintf("Open your %s a little", part),
			decrease: fmt.Sprintf("Close your %s a little", part),
		}
	}

	msg := adj.increase
	if signedDiff > 0 {
		msg = adj.decrease
	}

	diff := math.Abs(signedDiff)
	severity := SeverityAdjust
	if diff > warnDifference {
		severity = SeverityWarn
	}

	return Hint{
		Joint:      joint,
		Message:    msg,
		Severity:   severity,
		Difference: diff,
	}
}
