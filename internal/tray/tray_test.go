package tray

import (
	"testing"
	"time"

	"github.com/ZDP-Q/PostureCorrection/internal/analyzer"
	"github.com/ZDP-Q/PostureCorrection/internal/app"
	"github.com/ZDP-Q/PostureCorrection/internal/pose"
)

func TestScoreLabel(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name  string
		frame app.Frame
		want  string
	}{
		{"no frame yet", app.Frame{}, "Score: -"},
		{"nobody in frame", app.Frame{Timestamp: now}, "Score: no person"},
		{"no reference", app.Frame{Timestamp: now, Detected: true}, "Score: no reference"},
		{
			"scored",
			app.Frame{Timestamp: now, Detected: true, Result: &pose.MatchResult{Score: 0.6}},
			"Score: 60%",
		},
		{
			"scored with status",
			app.Frame{
				Timestamp: now,
				Detected:  true,
				Result:    &pose.MatchResult{Score: 1},
				Feedback:  analyzer.Feedback{Status: "Good posture"},
			},
			"Score: 100% · Good posture",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ScoreLabel(tt.frame); got != tt.want {
				t.Errorf("ScoreLabel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReferenceLabel(t *testing.T) {
	if got := ReferenceLabel(""); got != "Reference: none" {
		t.Errorf("ReferenceLabel(\"\") = %q", got)
	}
	if got := ReferenceLabel("desk"); got != "Reference: desk" {
		t.Errorf("ReferenceLabel(desk) = %q", got)
	}
}

func TestTray_ToggleBeforeRun(t *testing.T) {
	tr := New()
	if !tr.IsEnabled() {
		t.Fatal("new tray should start enabled")
	}

	var got []bool
	tr.OnToggle(func(enabled bool) { got = append(got, enabled) })

	tr.handleToggle()
	tr.handleToggle()

	if len(got) != 2 || got[0] != false || got[1] != true {
		t.Errorf("toggle callbacks = %v, want [false true]", got)
	}

	tr.SetEnabled(false)
	if tr.IsEnabled() {
		t.Error("SetEnabled(false) should disable")
	}
}

func TestTray_FollowWithoutMenu(t *testing.T) {
	tr := New()
	frames := make(chan app.Frame, 2)
	frames <- app.Frame{Timestamp: time.Now(), Detected: true, Result: &pose.MatchResult{Score: 0.5}}
	close(frames)

	done := make(chan struct{})
	go func() {
		tr.Follow(frames)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Follow() did not return after the channel closed")
	}
}
