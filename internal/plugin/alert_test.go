package plugin

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestAlerter(m *Manager, hold time.Duration) (*Alerter, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	a := NewAlerter(m, NewExecutor(5*time.Second), 0.75, hold)
	a.now = clock.now
	return a, clock
}

func TestAlerter_HoldBeforeBad(t *testing.T) {
	a, clock := newTestAlerter(nil, 2*time.Second)

	if ev := a.Observe(0.5, 8, nil); ev != "" {
		t.Errorf("first bad frame fired %q", ev)
	}
	clock.advance(time.Second)
	if ev := a.Observe(0.5, 8, nil); ev != "" {
		t.Errorf("bad frame inside hold fired %q", ev)
	}
	clock.advance(time.Second)
	if ev := a.Observe(0.5, 8, nil); ev != EventPostureBad {
		t.Errorf("bad frame after hold = %q, want %q", ev, EventPostureBad)
	}
	if !a.Alerted() {
		t.Error("Alerted() should be true after a bad event")
	}

	clock.advance(time.Second)
	if ev := a.Observe(0.5, 8, nil); ev != "" {
		t.Errorf("bad event should fire once, got %q", ev)
	}

	if ev := a.Observe(0.9, 8, nil); ev != EventPostureGood {
		t.Errorf("recovery = %q, want %q", ev, EventPostureGood)
	}
	if ev := a.Observe(0.9, 8, nil); ev != "" {
		t.Errorf("good frame without outstanding alert fired %q", ev)
	}
}

func TestAlerter_GoodFrameResetsStreak(t *testing.T) {
	a, clock := newTestAlerter(nil, 2*time.Second)

	a.Observe(0.5, 8, nil)
	clock.advance(1500 * time.Millisecond)
	a.Observe(0.8, 8, nil)
	clock.advance(time.Second)
	if ev := a.Observe(0.5, 8, nil); ev != "" {
		t.Errorf("streak should restart after a good frame, got %q", ev)
	}
}

func TestAlerter_NothingEvaluated(t *testing.T) {
	a, clock := newTestAlerter(nil, time.Second)

	a.Observe(0.2, 8, nil)
	clock.advance(500 * time.Millisecond)
	a.Observe(0, 0, nil)
	clock.advance(600 * time.Millisecond)
	if ev := a.Observe(0.2, 8, nil); ev != "" {
		t.Errorf("empty frame should clear the streak, got %q", ev)
	}
}

func TestAlerter_Defaults(t *testing.T) {
	a := NewAlerter(nil, nil, 0, -1)
	if a.minScore != DefaultAlertScore || a.hold != DefaultAlertHold {
		t.Errorf("defaults = %v, %v", a.minScore, a.hold)
	}
}

func TestAlerter_DispatchesToSubscribers(t *testing.T) {
	skipOnWindows(t)

	dir := t.TempDir()
	out := filepath.Join(t.TempDir(), "events.log")
	script := `INPUT=$(cat)
echo "$INPUT" >> "` + out + `"
echo '{"success":true}'
`
	writePlugin(t, dir, "recorder", script, EventPostureBad, EventReferenceChanged)
	writePlugin(t, dir, "ignored", "echo '{\"success\":true}'\n", EventPostureGood)

	m := NewManager(dir)
	if err := m.Discover(); err != nil {
		t.Fatal(err)
	}

	a, _ := newTestAlerter(m, 0)
	a.SetReference("warrior")
	a.Wait()
	a.SetReference("warrior")
	if ev := a.Observe(0.1, 8, nil); ev != EventPostureBad {
		t.Fatalf("Observe() = %q, want bad", ev)
	}
	a.Wait()

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("recorder did not run: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("recorder saw %d events, want 2:\n%s", len(lines), data)
	}
	if !strings.Contains(lines[0], `"event":"reference.changed"`) || !strings.Contains(lines[0], `"reference":"warrior"`) {
		t.Errorf("first event = %s", lines[0])
	}
	if !strings.Contains(lines[1], `"event":"posture.bad"`) {
		t.Errorf("second event = %s", lines[1])
	}
}
