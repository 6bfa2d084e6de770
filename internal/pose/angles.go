package pose

import (
	"bytes"
	"encoding/json"
)

// JointAngle is a single entry of an AngleSet.
type JointAngle struct {
	Name    string
	Degrees float64
	Defined bool
}

// AngleSet maps joint names to angles in degrees. A joint whose landmarks
// were not visible enough is present but undefined. AngleSet is immutable.
type AngleSet struct {
	angles []JointAngle
}

// NewAngleSet builds an AngleSet preserving the given order. Later entries
// with a repeated name replace earlier ones.
func NewAngleSet(angles ...JointAngle) AngleSet {
	out := make([]JointAngle, 0, len(angles))
	index := make(map[string]int, len(angles))
	for _, a := range angles {
		if i, ok := index[a.Name]; ok {
			out[i] = a
			continue
		}
		index[a.Name] = len(out)
		out = append(out, a)
	}
	return AngleSet{angles: out}
}

// Get returns the angle for name. ok is false when the joint is unknown or undefined.
func (s AngleSet) Get(name string) (degrees float64, ok bool) {
	for _, a := range s.angles {
		if a.Name == name {
			return a.Degrees, a.Defined
		}
	}
	return 0, false
}

// Has reports whether the set contains an entry for name, defined or not.
func (s AngleSet) Has(name string) bool {
	for _, a := range s.angles {
		if a.Name == name {
			return true
		}
	}
	return false
}

// Names returns joint names in table order.
func (s AngleSet) Names() []string {
	names := make([]string, len(s.angles))
	for i, a := range s.angles {
		names[i] = a.Name
	}
	return names
}

// Len returns the number of entries, including undefined ones.
func (s AngleSet) Len() int {
	return len(s.angles)
}

// Defined returns the number of defined angles.
func (s AngleSet) Defined() int {
	n := 0
	for _, a := range s.angles {
		if a.Defined {
			n++
		}
	}
	return n
}

// Each calls fn for every entry in order.
func (s AngleSet) Each(fn func(JointAngle)) {
	for _, a := range s.angles {
		fn(a)
	}
}

// MarshalJSON encodes the set as an object; undefined angles become null.
func (s AngleSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, a := range s.angles {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(a.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if !a.Defined {
			buf.WriteString("null")
			continue
		}
		val, err := json.Marshal(a.Degrees)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MatchResult is the outcome of comparing a live pose with a reference.
// Only joints defined in both poses appear in PerJoint and Details.
type MatchResult struct {
	// PerJoint reports whether each evaluated joint is within the threshold.
	PerJoint map[string]bool `json:"per_joint"`
	// Score is matched joints over evaluated joints, 0 when none were evaluated.
	Score float64 `json:"score"`
	// Details holds the absolute angle difference per evaluated joint.
	Details map[string]float64 `json:"details"`
	// Limbs holds a verdict per skeleton segment with at least one evaluated angle.
	Limbs map[string]bool `json:"limbs"`
	// Similarity is a smooth [0,1] closeness measure over evaluated joints.
	Similarity float64 `json:"similarity"`
}

// Evaluated returns the number of joints that took part in scoring.
func (r MatchResult) Evaluated() int {
	return len(r.PerJoint)
}

// Matched returns the number of joints within the threshold.
func (r MatchResult) Matched() int {
	n := 0
	for _, ok := range r.PerJoint {
		if ok {
			n++
		}
	}
	return n
}
