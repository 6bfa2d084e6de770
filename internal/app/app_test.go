package app

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ZDP-Q/PostureCorrection/internal/analyzer"
	"github.com/ZDP-Q/PostureCorrection/internal/bootstrap"
	"github.com/ZDP-Q/PostureCorrection/internal/component"
	"github.com/ZDP-Q/PostureCorrection/internal/detector"
	"github.com/ZDP-Q/PostureCorrection/internal/pose"
	"github.com/ZDP-Q/PostureCorrection/internal/store"
)

// newTestSession builds a session on the mock detector. The returned mock
// reports p for every frame.
func newTestSession(t *testing.T, s *store.Store, p pose.Pose) (*Session, *detector.MockDetector) {
	t.Helper()

	c, err := bootstrap.New()
	if err != nil {
		t.Fatalf("bootstrap.New() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })

	if err := c.Select(component.CategoryDetector, "mock"); err != nil {
		t.Fatalf("Select(mock) error = %v", err)
	}
	d, err := detector.Resolve(c)
	if err != nil {
		t.Fatalf("detector.Resolve() error = %v", err)
	}
	mock := d.(*detector.MockDetector)
	mock.SetPose(p)

	session, err := New(Options{Container: c, Store: s})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(session.Close)
	return session, mock
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNew_RequiresContainer(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("New() without a container should fail")
	}
}

func TestSession_NoReference(t *testing.T) {
	session, _ := newTestSession(t, nil, detector.TPose())

	if _, err := session.Compare(detector.TPose()); !errors.Is(err, ErrNoReference) {
		t.Errorf("Compare() error = %v, want ErrNoReference", err)
	}

	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()
	if _, err := session.ProcessFrame(&frame); !errors.Is(err, ErrNoReference) {
		t.Errorf("ProcessFrame() error = %v, want ErrNoReference", err)
	}

	if err := session.SetReference(pose.Pose{}, "empty"); !errors.Is(err, analyzer.ErrEmptyPose) {
		t.Errorf("SetReference(empty) error = %v, want ErrEmptyPose", err)
	}
}

func TestSession_Compare(t *testing.T) {
	session, _ := newTestSession(t, nil, detector.TPose())

	if err := session.SetReference(detector.TPose(), "t-pose"); err != nil {
		t.Fatalf("SetReference() error = %v", err)
	}

	f, err := session.Compare(detector.TPose())
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if !f.Detected || f.Reference != "t-pose" {
		t.Errorf("frame = detected %v reference %q", f.Detected, f.Reference)
	}
	if f.Result.Score != 1 {
		t.Errorf("self comparison score = %v, want 1", f.Result.Score)
	}
	if f.Feedback.Severity != analyzer.SeverityOK {
		t.Errorf("feedback severity = %q, want ok", f.Feedback.Severity)
	}

	f, err = session.Compare(detector.ArmsDown())
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if f.Result.Score >= 1 {
		t.Errorf("arms down vs t-pose score = %v, want < 1", f.Result.Score)
	}
	if len(f.Feedback.Hints) == 0 {
		t.Error("expected adjustment hints for a different pose")
	}

	last, ok := session.Last()
	if !ok || last.Result.Score != f.Result.Score {
		t.Errorf("Last() = %v, %v, want the latest frame", last.Result, ok)
	}

	if err := session.ClearReference(); err != nil {
		t.Fatalf("ClearReference() error = %v", err)
	}
	if _, _, ok := session.Reference(); ok {
		t.Error("Reference() should be unset after ClearReference")
	}
}

func TestSession_ProcessFrame(t *testing.T) {
	session, mock := newTestSession(t, nil, detector.TPose())
	session.SetReference(detector.TPose(), "t-pose")

	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()

	f, err := session.ProcessFrame(&frame)
	if err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}
	if f.Result.Score != 1 {
		t.Errorf("score = %v, want 1", f.Result.Score)
	}

	mock.SetPose(pose.Undetected())
	f, err = session.ProcessFrame(&frame)
	if err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}
	if f.Detected || f.Result.Evaluated() != 0 || f.Result.Score != 0 {
		t.Errorf("empty frame = detected %v, evaluated %d, score %v", f.Detected, f.Result.Evaluated(), f.Result.Score)
	}

	boom := errors.New("camera glitch")
	mock.SetError(boom)
	if _, err := session.ProcessFrame(&frame); !errors.Is(err, boom) {
		t.Errorf("ProcessFrame() error = %v, want detector error", err)
	}
}

func TestSession_DetectFrames(t *testing.T) {
	session, mock := newTestSession(t, nil, detector.TPose())

	a := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	b := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer a.Close()
	defer b.Close()

	poses, err := session.DetectFrames([]*gocv.Mat{&a, &b})
	if err != nil {
		t.Fatalf("DetectFrames() error = %v", err)
	}
	if len(poses) != 2 || !poses[0].Detected() || !poses[1].Detected() {
		t.Fatalf("DetectFrames() = %d poses, want 2 detected", len(poses))
	}

	mock.SetError(errors.New("camera glitch"))
	poses, err = session.DetectFrames([]*gocv.Mat{&a, &b})
	if err != nil {
		t.Fatalf("DetectFrames() error = %v", err)
	}
	for i, p := range poses {
		if p.Detected() || p.Len() != pose.NumLandmarks {
			t.Errorf("failed frame %d should be undetected with %d landmarks", i, pose.NumLandmarks)
		}
	}
}

func TestSession_Subscribe(t *testing.T) {
	session, _ := newTestSession(t, nil, detector.TPose())
	session.SetReference(detector.TPose(), "t-pose")

	ch, cancel := session.Subscribe()
	if _, err := session.Compare(detector.TPose()); err != nil {
		t.Fatal(err)
	}

	select {
	case f := <-ch:
		if f.Result.Score != 1 {
			t.Errorf("subscriber got score %v, want 1", f.Result.Score)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive the frame")
	}

	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}

	// Publishing after cancel must not panic.
	session.Compare(detector.TPose())
}

func TestSession_StoredReferences(t *testing.T) {
	s := newTestStore(t)
	session, _ := newTestSession(t, s, detector.TPose())

	ref, err := session.SaveReference("t-pose", "test", detector.TPose())
	if err != nil {
		t.Fatalf("SaveReference() error = %v", err)
	}
	if _, err := session.SaveReference("squat", "test", detector.Squat()); err != nil {
		t.Fatalf("SaveReference() error = %v", err)
	}

	if err := session.ActivateReference(ref.ID); err != nil {
		t.Fatalf("ActivateReference() error = %v", err)
	}
	if _, name, ok := session.Reference(); !ok || name != "t-pose" {
		t.Errorf("Reference() = %q, %v, want t-pose", name, ok)
	}
	if session.ReferenceID() != ref.ID {
		t.Errorf("ReferenceID() = %q, want %q", session.ReferenceID(), ref.ID)
	}

	matches, err := session.Identify(detector.TPose(), 0)
	if err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	if len(matches) == 0 || matches[0].Template.Name != "t-pose" {
		t.Errorf("Identify() best match = %v, want t-pose", matches)
	}

	if err := session.ActivateReference("missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("ActivateReference(missing) error = %v, want ErrNotFound", err)
	}

	// A fresh session on the same store picks the reference back up.
	restored, _ := newTestSession(t, s, detector.TPose())
	if err := restored.Restore(); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if _, name, ok := restored.Reference(); !ok || name != "t-pose" {
		t.Errorf("restored Reference() = %q, %v, want t-pose", name, ok)
	}

	if err := restored.DeleteReference(ref.ID); err != nil {
		t.Fatalf("DeleteReference() error = %v", err)
	}
	if _, _, ok := restored.Reference(); ok {
		t.Error("deleting the active reference should clear it")
	}
	if _, err := s.Settings().Get(store.SettingActiveReference); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("active reference setting should be removed, got %v", err)
	}
	matches, _ = restored.Identify(detector.TPose(), 0)
	for _, m := range matches {
		if m.Template.ID == ref.ID {
			t.Error("deleted reference still in the library")
		}
	}
}

func TestSession_SaveTrainedReference(t *testing.T) {
	s := newTestStore(t)
	session, _ := newTestSession(t, s, detector.TPose())

	ref, err := session.SaveTrainedReference("t-pose", "camera", []pose.Pose{detector.TPose(), detector.TPose(), pose.Undetected()})
	if err != nil {
		t.Fatalf("SaveTrainedReference() error = %v", err)
	}
	if ref.Samples != 2 {
		t.Errorf("Samples = %d, want 2", ref.Samples)
	}

	samples, err := s.Samples().GetByReferenceID(ref.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 2 {
		t.Errorf("stored %d samples, want 2", len(samples))
	}

	if _, err := session.SaveTrainedReference("nobody", "camera", []pose.Pose{pose.Undetected()}); err == nil {
		t.Error("SaveTrainedReference() with no usable samples should fail")
	}
}

func TestSession_SaveTrainedReference_SampleFailure(t *testing.T) {
	s := newTestStore(t)
	session, _ := newTestSession(t, s, detector.TPose())

	if _, err := s.DB().Exec(`DROP TABLE reference_samples`); err != nil {
		t.Fatal(err)
	}

	samples := []pose.Pose{detector.TPose(), detector.TPose()}
	if _, err := session.SaveTrainedReference("t-pose", "camera", samples); err == nil {
		t.Fatal("SaveTrainedReference() should fail when samples cannot be stored")
	}
	if _, err := s.References().GetByName("t-pose"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("reference row left behind: GetByName() error = %v, want ErrNotFound", err)
	}

	// The name is free again for a single-capture reference.
	if _, err := session.SaveReference("t-pose", "camera", detector.TPose()); err != nil {
		t.Errorf("SaveReference() after a failed save error = %v", err)
	}
}

func TestSession_ClearReference_Forgotten(t *testing.T) {
	s := newTestStore(t)
	session, _ := newTestSession(t, s, detector.TPose())

	ref, err := session.SaveReference("t-pose", "test", detector.TPose())
	if err != nil {
		t.Fatalf("SaveReference() error = %v", err)
	}
	if err := session.ActivateReference(ref.ID); err != nil {
		t.Fatalf("ActivateReference() error = %v", err)
	}
	if err := session.ClearReference(); err != nil {
		t.Fatalf("ClearReference() error = %v", err)
	}
	if session.alerter != nil && session.alerter.Reference() != "" {
		t.Errorf("alerter reference = %q, want cleared", session.alerter.Reference())
	}

	restored, _ := newTestSession(t, s, detector.TPose())
	if err := restored.Restore(); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if _, name, ok := restored.Reference(); ok {
		t.Errorf("cleared reference %q came back after Restore", name)
	}
}

func TestSession_NoStore(t *testing.T) {
	session, _ := newTestSession(t, nil, detector.TPose())

	if _, err := session.SaveReference("x", "", detector.TPose()); !errors.Is(err, ErrNoStore) {
		t.Errorf("SaveReference() error = %v, want ErrNoStore", err)
	}
	if err := session.ActivateReference("x"); !errors.Is(err, ErrNoStore) {
		t.Errorf("ActivateReference() error = %v, want ErrNoStore", err)
	}
	if err := session.Restore(); err != nil {
		t.Errorf("Restore() without store error = %v", err)
	}
}

func TestSession_SelectComponents(t *testing.T) {
	s := newTestStore(t)
	session, _ := newTestSession(t, s, detector.TPose())

	if err := session.SelectAnalyzer("strict"); err != nil {
		t.Fatalf("SelectAnalyzer() error = %v", err)
	}
	if err := session.SelectAnalyzer("missing"); !errors.Is(err, component.ErrUnknownImplementation) {
		t.Errorf("SelectAnalyzer(missing) error = %v, want ErrUnknownImplementation", err)
	}

	active := map[string]string{}
	for _, info := range session.Components() {
		if info.Active {
			active[info.Category] = info.Name
		}
	}
	if active[component.CategoryAnalyzer.String()] != "strict" {
		t.Errorf("active analyzer = %q, want strict", active[component.CategoryAnalyzer.String()])
	}
	if active[component.CategoryDetector.String()] != "mock" {
		t.Errorf("active detector = %q, want mock", active[component.CategoryDetector.String()])
	}

	if err := session.SelectDetector("mock"); err != nil {
		t.Fatalf("SelectDetector() error = %v", err)
	}
	if got, _ := s.Settings().Get(store.SettingAnalyzer); got != "strict" {
		t.Errorf("saved analyzer = %q, want strict", got)
	}

	// A new container restores the saved choice.
	c, err := bootstrap.New()
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	restored, err := New(Options{Container: c, Store: s})
	if err != nil {
		t.Fatal(err)
	}
	if err := restored.Restore(); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if name, _ := c.Active(component.CategoryAnalyzer); name != "strict" {
		t.Errorf("restored analyzer = %q, want strict", name)
	}
	if name, _ := c.Active(component.CategoryDetector); name != "mock" {
		t.Errorf("restored detector = %q, want mock", name)
	}
}

func TestSession_Enabled(t *testing.T) {
	session, _ := newTestSession(t, nil, detector.TPose())

	if !session.IsEnabled() {
		t.Error("sessions start enabled")
	}
	session.SetEnabled(false)
	if session.IsEnabled() {
		t.Error("IsEnabled() should be false after SetEnabled(false)")
	}
}

func TestSession_LoadReferenceImage(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV image codecs")
	}

	session, mock := newTestSession(t, nil, detector.TPose())

	img := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer img.Close()
	path := filepath.Join(t.TempDir(), "warrior.png")
	if !gocv.IMWrite(path, img) {
		t.Fatal("IMWrite failed")
	}

	if _, err := session.LoadReferenceImage(path); err != nil {
		t.Fatalf("LoadReferenceImage() error = %v", err)
	}
	if _, name, ok := session.Reference(); !ok || name != "warrior" {
		t.Errorf("Reference() = %q, %v, want warrior", name, ok)
	}

	mock.SetPose(pose.Undetected())
	if _, err := session.LoadReferenceImage(path); !errors.Is(err, ErrNoPerson) {
		t.Errorf("LoadReferenceImage() error = %v, want ErrNoPerson", err)
	}

	if _, err := session.LoadReferenceImage(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("LoadReferenceImage() should fail for a missing file")
	}
}
