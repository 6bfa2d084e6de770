package library

import (
	"errors"
	"math"
	"testing"

	"github.com/ZDP-Q/PostureCorrection/internal/analyzer"
	"github.com/ZDP-Q/PostureCorrection/internal/detector"
	"github.com/ZDP-Q/PostureCorrection/internal/pose"
)

func template(t *testing.T, a *analyzer.DefaultAnalyzer, id string, p pose.Pose) *Template {
	t.Helper()
	angles, err := a.ExtractPoseAngles(p)
	if err != nil {
		t.Fatalf("ExtractPoseAngles(%s) error = %v", id, err)
	}
	return &Template{ID: id, Name: id, Pose: p, Angles: angles}
}

func TestMatcher_Match(t *testing.T) {
	a := analyzer.New(nil)
	m := NewMatcher()
	m.Add(template(t, a, "squat", detector.Squat()))
	m.Add(template(t, a, "t-pose", detector.TPose()))
	m.Add(template(t, a, "arms-down", detector.ArmsDown()))

	live, err := a.ExtractPoseAngles(detector.TPose())
	if err != nil {
		t.Fatal(err)
	}

	matches := m.Match(live, a, 0)
	if len(matches) != 3 {
		t.Fatalf("Match() returned %d matches, want 3", len(matches))
	}
	if matches[0].Template.ID != "t-pose" {
		t.Errorf("best match = %q, want t-pose", matches[0].Template.ID)
	}
	if matches[0].Result.Score != 1 {
		t.Errorf("best score = %v, want 1", matches[0].Result.Score)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Result.Score > matches[i-1].Result.Score {
			t.Errorf("matches not sorted: %v before %v", matches[i-1].Result.Score, matches[i].Result.Score)
		}
	}

	if got := m.Match(live, a, 1); len(got) != 1 || got[0].Template.ID != "t-pose" {
		t.Errorf("Match(minScore=1) = %v, want only t-pose", got)
	}
}

func TestMatcher_SkipsUnevaluated(t *testing.T) {
	a := analyzer.New(nil)
	m := NewMatcher()
	m.Add(template(t, a, "t-pose", detector.TPose()))

	live, err := a.ExtractPoseAngles(pose.Undetected())
	if err != nil {
		t.Fatal(err)
	}
	if got := m.Match(live, a, 0); len(got) != 0 {
		t.Errorf("Match() with nobody in frame = %v, want none", got)
	}
}

func TestMatcher_AddRemove(t *testing.T) {
	a := analyzer.New(nil)
	m := NewMatcher()

	first := template(t, a, "ref", detector.TPose())
	m.Add(first)
	m.Add(nil)
	if m.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", m.Len())
	}

	replacement := template(t, a, "ref", detector.Squat())
	replacement.Name = "renamed"
	m.Add(replacement)
	if m.Len() != 1 {
		t.Errorf("Add with same ID should replace, Len() = %d", m.Len())
	}
	if got, ok := m.Get("ref"); !ok || got.Name != "renamed" {
		t.Errorf("Get() = %v, %v, want renamed template", got, ok)
	}

	m.Remove("missing")
	m.Remove("ref")
	if m.Len() != 0 {
		t.Errorf("Len() after Remove = %d, want 0", m.Len())
	}

	m.Add(first)
	m.Reset()
	if _, ok := m.Get("ref"); ok {
		t.Error("Get() after Reset should fail")
	}
}

func TestTrainer_Train(t *testing.T) {
	tr := NewTrainer(0.5)

	shifted := detector.TPose()
	lms := append([]pose.Landmark(nil), shifted.Landmarks...)
	for i := range lms {
		lms[i].X += 0.02
	}

	avg, kept, err := tr.Train([]pose.Pose{detector.TPose(), pose.New(lms), pose.Undetected()})
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if len(kept) != 2 {
		t.Errorf("kept %d samples, want 2", len(kept))
	}

	want := detector.TPose().At(pose.LeftWrist).X + 0.01
	if got := avg.At(pose.LeftWrist).X; math.Abs(got-want) > 1e-9 {
		t.Errorf("averaged left wrist x = %v, want %v", got, want)
	}
}

func TestTrainer_NoUsableSamples(t *testing.T) {
	tr := NewTrainer(0.5)

	_, _, err := tr.Train([]pose.Pose{pose.Undetected(), pose.Undetected()})
	if !errors.Is(err, ErrNoUsableSamples) {
		t.Errorf("Train() error = %v, want ErrNoUsableSamples", err)
	}

	if _, _, err := tr.Train(nil); err == nil {
		t.Error("Train(nil) should fail")
	}
}

func TestTrainer_Usable(t *testing.T) {
	tr := NewTrainer(0.5)

	if !tr.Usable(detector.TPose()) {
		t.Error("TPose should be usable")
	}
	if tr.Usable(pose.Pose{}) {
		t.Error("empty pose should not be usable")
	}

	// Only the twelve body landmarks visible.
	lms := make([]pose.Landmark, pose.NumLandmarks)
	for i := pose.LeftShoulder; i <= pose.RightAnkle; i++ {
		if i >= pose.LeftPinky && i <= pose.RightThumb {
			continue
		}
		lms[i].Visibility = 0.9
	}
	if tr.Usable(pose.New(lms)) {
		t.Error("pose with 12 visible landmarks should not be usable with MinVisible 16")
	}
}
