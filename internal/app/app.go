// Package app ties detection, analysis and storage together into a
// posture correction session.
package app

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ZDP-Q/PostureCorrection/internal/analyzer"
	"github.com/ZDP-Q/PostureCorrection/internal/capture"
	"github.com/ZDP-Q/PostureCorrection/internal/component"
	"github.com/ZDP-Q/PostureCorrection/internal/config"
	"github.com/ZDP-Q/PostureCorrection/internal/detector"
	"github.com/ZDP-Q/PostureCorrection/internal/library"
	"github.com/ZDP-Q/PostureCorrection/internal/plugin"
	"github.com/ZDP-Q/PostureCorrection/internal/pose"
	"github.com/ZDP-Q/PostureCorrection/internal/store"
)

var (
	// ErrNoReference is returned when a comparison is requested before a
	// reference pose has been set.
	ErrNoReference = errors.New("no reference pose set")
	// ErrNoPerson is returned when an image contains nobody the detector
	// could find.
	ErrNoPerson = errors.New("no person detected")
	// ErrNoStore is returned by operations that need persistence when the
	// session runs without a store.
	ErrNoStore = errors.New("no store configured")
)

// Pipeline timing constants.
const (
	// IdleFPS is the frame rate when nobody is moving.
	IdleFPS = 5
	// DefaultActiveFPS is used when the camera settings leave FPS unset.
	DefaultActiveFPS = 15
	// ActivityHold keeps the pipeline active after the last movement.
	ActivityHold = 2 * time.Second
)

// Options configures a Session.
type Options struct {
	// Container resolves detector, analyzer and config. Required.
	Container *component.Container
	// Store persists references and selections. Optional.
	Store *store.Store
	// Camera feeds the live pipeline. When nil a device camera is built
	// from the camera settings on Start.
	Camera capture.Camera
	// Plugins receive posture alerts. Optional.
	Plugins *plugin.Manager
}

// Frame is the outcome of analyzing one live pose.
type Frame struct {
	Timestamp time.Time         `json:"timestamp"`
	Detected  bool              `json:"detected"`
	Reference string            `json:"reference,omitempty"`
	Angles    pose.AngleSet     `json:"angles"`
	Result    *pose.MatchResult `json:"result,omitempty"`
	Feedback  analyzer.Feedback `json:"feedback"`
	Event     plugin.Event      `json:"event,omitempty"`
	Pose      pose.Pose         `json:"-"`
}

// ComponentInfo describes one registered implementation for listings.
type ComponentInfo struct {
	Category    string `json:"category"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Default     bool   `json:"default"`
	Active      bool   `json:"active"`
}

// activeReference is the pose every live frame is compared against.
type activeReference struct {
	id   string
	name string
	pose pose.Pose
}

// Session is a posture correction session: a reference pose, the live
// pipeline comparing camera frames against it, and the components doing
// the work.
type Session struct {
	container *component.Container
	store     *store.Store
	camera    capture.Camera
	monitor   *capture.ActivityMonitor
	library   *library.Matcher
	alerter   *plugin.Alerter

	mu        sync.RWMutex
	reference *activeReference
	enabled   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	last      *Frame
	lastJPEG  []byte

	subMu       sync.Mutex
	subscribers map[int]chan Frame
	nextSub     int
}

// New creates a Session. Detection starts enabled.
func New(opts Options) (*Session, error) {
	if opts.Container == nil {
		return nil, errors.New("app: container is required")
	}

	s := &Session{
		container:   opts.Container,
		store:       opts.Store,
		camera:      opts.Camera,
		monitor:     capture.NewActivityMonitor(capture.DefaultMotionThreshold, ActivityHold),
		library:     library.NewMatcher(),
		enabled:     true,
		subscribers: make(map[int]chan Frame),
	}

	alerts := s.settings().Alerts
	if alerts.Enabled {
		hold := time.Duration(alerts.HoldSeconds * float64(time.Second))
		s.alerter = plugin.NewAlerter(opts.Plugins, plugin.NewExecutor(plugin.DefaultTimeout), alerts.MinScore, hold)
	}

	return s, nil
}

// Container returns the component container backing the session.
func (s *Session) Container() *component.Container {
	return s.container
}

// Store returns the session's store, which may be nil.
func (s *Session) Store() *store.Store {
	return s.store
}

// settings returns the current configuration, or the defaults when the
// config component cannot be resolved.
func (s *Session) settings() config.Settings {
	cfg, err := config.Resolve(s.container)
	if err != nil {
		log.Printf("Config unavailable, using defaults: %v", err)
		return config.Defaults()
	}
	return cfg.Snapshot()
}

// Restore applies what the store remembers from the previous run: the
// selected implementations and the active reference. It also loads every
// stored reference into the matching library.
func (s *Session) Restore() error {
	if s.store == nil {
		return nil
	}

	settings := s.store.Settings()
	for key, category := range map[string]component.Category{
		store.SettingDetector: component.CategoryDetector,
		store.SettingAnalyzer: component.CategoryAnalyzer,
	} {
		name, err := settings.Get(key)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if err := s.container.Select(category, name); err != nil {
			log.Printf("Ignoring saved %s selection %q: %v", category, name, err)
		}
	}

	if err := s.LoadReferences(); err != nil {
		return err
	}

	id, err := settings.Get(store.SettingActiveReference)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.ActivateReference(id); err != nil {
		log.Printf("Saved reference %s could not be activated: %v", id, err)
	}
	return nil
}

// LoadReferences loads every stored reference into the matching library.
func (s *Session) LoadReferences() error {
	if s.store == nil {
		return nil
	}

	refs, err := s.store.References().List()
	if err != nil {
		return err
	}

	s.library.Reset()
	for _, ref := range refs {
		p, err := s.store.References().Landmarks(ref.ID)
		if err != nil {
			log.Printf("Failed to load landmarks for %s: %v", ref.Name, err)
			continue
		}
		if err := s.addTemplate(ref.ID, ref.Name, p); err != nil {
			log.Printf("Failed to prepare reference %s: %v", ref.Name, err)
		}
	}

	log.Printf("Loaded %d references from database", s.library.Len())
	return nil
}

func (s *Session) addTemplate(id, name string, p pose.Pose) error {
	a, err := analyzer.Resolve(s.container)
	if err != nil {
		return err
	}
	angles, err := a.ExtractPoseAngles(p)
	if err != nil {
		return err
	}
	s.library.Add(&library.Template{ID: id, Name: name, Pose: p, Angles: angles})
	return nil
}

// SetReference makes p the pose live frames are compared against. The
// reference is not persisted.
func (s *Session) SetReference(p pose.Pose, name string) error {
	return s.setReference("", name, p)
}

func (s *Session) setReference(id, name string, p pose.Pose) error {
	if p.IsEmpty() {
		return analyzer.ErrEmptyPose
	}

	s.mu.Lock()
	s.reference = &activeReference{id: id, name: name, pose: p}
	s.mu.Unlock()

	if s.alerter != nil {
		s.alerter.SetReference(name)
	}
	log.Printf("Reference set to %q", name)
	return nil
}

// ClearReference removes the active reference and forgets it in the
// store, so it is not restored on the next start.
func (s *Session) ClearReference() error {
	s.mu.Lock()
	had := s.reference != nil
	s.reference = nil
	s.mu.Unlock()

	if had && s.alerter != nil {
		s.alerter.SetReference("")
	}
	if s.store == nil {
		return nil
	}
	return s.store.Settings().Delete(store.SettingActiveReference)
}

// Reference returns the active reference pose and its name.
func (s *Session) Reference() (p pose.Pose, name string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.reference == nil {
		return pose.Pose{}, "", false
	}
	return s.reference.pose, s.reference.name, true
}

// ReferenceID returns the store ID of the active reference, or "" when the
// reference was not loaded from the store.
func (s *Session) ReferenceID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.reference == nil {
		return ""
	}
	return s.reference.id
}

// DetectImage runs the active detector on an image file.
func (s *Session) DetectImage(path string) (pose.Pose, error) {
	frame, err := capture.LoadImage(path)
	if err != nil {
		return pose.Pose{}, err
	}
	defer frame.Close()

	return s.detect(frame)
}

// DetectFrames runs the active detector over frames as one batch. The
// poses keep the order of frames; frames that fail come back undetected.
func (s *Session) DetectFrames(frames []*gocv.Mat) ([]pose.Pose, error) {
	d, err := detector.Resolve(s.container)
	if err != nil {
		return nil, err
	}
	return d.DetectBatch(frames), nil
}

func (s *Session) detect(frame *gocv.Mat) (pose.Pose, error) {
	d, err := detector.Resolve(s.container)
	if err != nil {
		return pose.Pose{}, err
	}
	return d.Detect(frame)
}

// LoadReferenceImage detects the pose in an image and makes it the
// reference. The reference is named after the file.
func (s *Session) LoadReferenceImage(path string) (pose.Pose, error) {
	p, err := s.DetectImage(path)
	if err != nil {
		return pose.Pose{}, err
	}
	if !p.Detected() {
		return pose.Pose{}, fmt.Errorf("%w in %s", ErrNoPerson, path)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if err := s.SetReference(p, name); err != nil {
		return pose.Pose{}, err
	}
	return p, nil
}

// SaveReference stores p under name and adds it to the matching library.
func (s *Session) SaveReference(name, source string, p pose.Pose) (*store.Reference, error) {
	return s.SaveTrainedReference(name, source, []pose.Pose{p})
}

// SaveTrainedReference averages several captures into one reference,
// stores it together with the captures, and adds it to the library.
func (s *Session) SaveTrainedReference(name, source string, samples []pose.Pose) (*store.Reference, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}

	minVisibility := analyzer.DefaultMinVisibility
	if cfg, err := config.Resolve(s.container); err == nil {
		minVisibility = cfg.MinVisibility()
	}

	averaged, kept, err := library.NewTrainer(minVisibility).Train(samples)
	if err != nil {
		return nil, err
	}

	ref, err := s.store.References().Create(name, source, averaged)
	if err != nil {
		return nil, err
	}
	if len(kept) > 1 {
		if err := s.store.Samples().Create(ref.ID, kept); err != nil {
			if delErr := s.store.References().Delete(ref.ID); delErr != nil {
				log.Printf("Failed to remove reference %s after a sample error: %v", ref.Name, delErr)
			}
			return nil, err
		}
		ref.Samples = len(kept)
	}

	if err := s.addTemplate(ref.ID, ref.Name, averaged); err != nil {
		log.Printf("Failed to prepare reference %s: %v", ref.Name, err)
	}
	return ref, nil
}

// ActivateReference loads a stored reference, makes it active and
// remembers the choice.
func (s *Session) ActivateReference(id string) error {
	if s.store == nil {
		return ErrNoStore
	}

	ref, err := s.store.References().GetByID(id)
	if err != nil {
		return err
	}
	p, err := s.store.References().Landmarks(id)
	if err != nil {
		return err
	}

	if err := s.setReference(ref.ID, ref.Name, p); err != nil {
		return err
	}
	return s.store.Settings().Set(store.SettingActiveReference, ref.ID)
}

// DeleteReference removes a stored reference. Deleting the active
// reference clears it.
func (s *Session) DeleteReference(id string) error {
	if s.store == nil {
		return ErrNoStore
	}

	if err := s.store.References().Delete(id); err != nil {
		return err
	}
	s.library.Remove(id)

	if s.ReferenceID() == id {
		return s.ClearReference()
	}
	return nil
}

// Identify ranks the stored references against a live pose.
func (s *Session) Identify(live pose.Pose, minScore float64) ([]library.Match, error) {
	a, err := analyzer.Resolve(s.container)
	if err != nil {
		return nil, err
	}
	angles, err := a.ExtractPoseAngles(live)
	if err != nil {
		return nil, err
	}
	return s.library.Match(angles, a, minScore), nil
}

// ProcessFrame detects the pose in frame and compares it with the
// reference.
func (s *Session) ProcessFrame(frame *gocv.Mat) (Frame, error) {
	if _, _, ok := s.Reference(); !ok {
		return Frame{}, ErrNoReference
	}

	live, err := s.detect(frame)
	if err != nil {
		return Frame{}, err
	}
	return s.Compare(live)
}

// Compare compares a live pose with the reference, publishes the result
// to subscribers and reports it to alert plugins.
func (s *Session) Compare(live pose.Pose) (Frame, error) {
	ref, name, ok := s.Reference()
	if !ok {
		return Frame{}, ErrNoReference
	}

	a, err := analyzer.Resolve(s.container)
	if err != nil {
		return Frame{}, err
	}

	refAngles, err := a.ExtractPoseAngles(ref)
	if err != nil {
		return Frame{}, err
	}
	liveAngles, err := a.ExtractPoseAngles(live)
	if err != nil {
		return Frame{}, err
	}

	result := a.CompareAngles(refAngles, liveAngles)
	feedback := analyzer.GenerateFeedback(result, refAngles, liveAngles)

	f := Frame{
		Timestamp: time.Now(),
		Detected:  live.Detected(),
		Reference: name,
		Angles:    liveAngles,
		Result:    &result,
		Feedback:  feedback,
		Pose:      live,
	}

	if s.alerter != nil {
		f.Event = s.alerter.Observe(result.Score, result.Evaluated(), &feedback)
	}

	s.publish(f)
	return f, nil
}

// observe records a frame without a reference: the pose is detected but
// nothing is compared.
func (s *Session) observe(live pose.Pose) Frame {
	f := Frame{
		Timestamp: time.Now(),
		Detected:  live.Detected(),
		Pose:      live,
		Feedback:  analyzer.Feedback{Status: "Set a reference pose to start", Severity: analyzer.SeverityAdjust},
	}
	if a, err := analyzer.Resolve(s.container); err == nil {
		if angles, err := a.ExtractPoseAngles(live); err == nil {
			f.Angles = angles
		}
	}
	s.publish(f)
	return f
}

// SelectDetector switches the active detector and remembers the choice.
// Unknown names leave the current selection in place.
func (s *Session) SelectDetector(name string) error {
	return s.selectComponent(component.CategoryDetector, store.SettingDetector, name)
}

// SelectAnalyzer switches the active analyzer and remembers the choice.
// Unknown names leave the current selection in place.
func (s *Session) SelectAnalyzer(name string) error {
	if err := s.selectComponent(component.CategoryAnalyzer, store.SettingAnalyzer, name); err != nil {
		return err
	}
	// Template angles depend on the analyzer.
	return s.LoadReferences()
}

func (s *Session) selectComponent(category component.Category, key, name string) error {
	if err := s.container.Select(category, name); err != nil {
		return err
	}
	log.Printf("Selected %s %q", category, name)

	if s.store == nil {
		return nil
	}
	return s.store.Settings().Set(key, name)
}

// Components lists every registered implementation with its active flag.
func (s *Session) Components() []ComponentInfo {
	var out []ComponentInfo
	for _, category := range component.Categories {
		active, _ := s.container.Active(category)
		for _, d := range s.container.Registry().List(category) {
			out = append(out, ComponentInfo{
				Category:    category.String(),
				Name:        d.Name,
				Description: d.Description,
				Default:     d.IsDefault,
				Active:      d.Name == active,
			})
		}
	}
	return out
}

// SetEnabled enables or disables live analysis.
func (s *Session) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

// IsEnabled returns whether live analysis is currently enabled.
func (s *Session) IsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// Last returns the most recent frame, if any.
func (s *Session) Last() (Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return Frame{}, false
	}
	return *s.last, true
}

// LatestJPEG returns the most recent annotated camera frame.
func (s *Session) LatestJPEG() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastJPEG
}

// Subscribe returns a channel receiving every analyzed frame and a
// function that ends the subscription. Slow subscribers miss frames
// rather than stall the pipeline.
func (s *Session) Subscribe() (<-chan Frame, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan Frame, 4)
	s.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			delete(s.subscribers, id)
			close(ch)
		})
	}
}

func (s *Session) publish(f Frame) {
	s.mu.Lock()
	s.last = &f
	s.mu.Unlock()

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- f:
		default:
		}
	}
}

// Close stops the pipeline and waits for pending alert plugins.
func (s *Session) Close() {
	s.Stop()
	if s.alerter != nil {
		s.alerter.Wait()
	}
}
