package detector

import (
	"sync"

	"gocv.io/x/gocv"

	"github.com/ZDP-Q/PostureCorrection/internal/pose"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu          sync.Mutex
	pose        pose.Pose
	err         error
	initErr     error
	initialized bool
	calls       int
}

// NewMockDetector creates a new MockDetector instance that reports nobody
// in frame until SetPose is called.
func NewMockDetector() *MockDetector {
	return &MockDetector{pose: pose.Undetected()}
}

// Name implements component.Component.
func (m *MockDetector) Name() string { return "mock" }

// Description implements component.Component.
func (m *MockDetector) Description() string {
	return "Returns a configured pose without looking at the frame"
}

// Initialize implements component.Component.
func (m *MockDetector) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initErr != nil {
		return m.initErr
	}
	m.initialized = true
	return nil
}

// SetPose sets the pose that will be returned by Detect.
func (m *MockDetector) SetPose(p pose.Pose) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pose = p
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetInitError makes Initialize fail with err.
func (m *MockDetector) SetInitError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initErr = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured pose or error.
func (m *MockDetector) Detect(frame *gocv.Mat) (pose.Pose, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if !m.initialized {
		return pose.Pose{}, ErrDetectionUnavailable
	}
	if m.err != nil {
		return pose.Pose{}, m.err
	}
	return m.pose, nil
}

// DetectBatch implements Detector.
func (m *MockDetector) DetectBatch(frames []*gocv.Mat) []pose.Pose {
	return detectAll(m.Detect, frames)
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// presetVisibility is the visibility given to every landmark of a preset.
const presetVisibility = 0.95

// skeleton builds a pose from the twelve body landmarks the joint table
// uses. Face, hand and foot landmarks are placed next to their anchors.
func skeleton(body map[int][2]float64) pose.Pose {
	lms := make([]pose.Landmark, pose.NumLandmarks)
	set := func(i int, x, y float64) {
		lms[i] = pose.Landmark{X: x, Y: y, Visibility: presetVisibility}
	}

	for i, xy := range body {
		set(i, xy[0], xy[1])
	}

	ls, rs := body[pose.LeftShoulder], body[pose.RightShoulder]
	cx := (ls[0] + rs[0]) / 2
	top := ls[1] - 0.15
	set(pose.Nose, cx, top)
	for i := pose.LeftEyeInner; i <= pose.RightEyeOuter; i++ {
		set(i, cx, top-0.02)
	}
	set(pose.LeftEar, cx+0.04, top)
	set(pose.RightEar, cx-0.04, top)
	set(pose.MouthLeft, cx+0.02, top+0.03)
	set(pose.MouthRight, cx-0.02, top+0.03)

	hand := func(wrist int, fingers ...int) {
		w := body[wrist]
		for _, f := range fingers {
			set(f, w[0], w[1]+0.02)
		}
	}
	hand(pose.LeftWrist, pose.LeftPinky, pose.LeftIndex, pose.LeftThumb)
	hand(pose.RightWrist, pose.RightPinky, pose.RightIndex, pose.RightThumb)

	la, ra := body[pose.LeftAnkle], body[pose.RightAnkle]
	set(pose.LeftHeel, la[0], la[1]+0.02)
	set(pose.LeftFootIndex, la[0]+0.03, la[1]+0.03)
	set(pose.RightHeel, ra[0], ra[1]+0.02)
	set(pose.RightFootIndex, ra[0]-0.03, ra[1]+0.03)

	return pose.New(lms)
}

// TPose returns a standing pose with both arms held out horizontally.
func TPose() pose.Pose {
	return skeleton(map[int][2]float64{
		pose.LeftShoulder:  {0.60, 0.30},
		pose.RightShoulder: {0.40, 0.30},
		pose.LeftElbow:     {0.75, 0.30},
		pose.RightElbow:    {0.25, 0.30},
		pose.LeftWrist:     {0.90, 0.30},
		pose.RightWrist:    {0.10, 0.30},
		pose.LeftHip:       {0.58, 0.60},
		pose.RightHip:      {0.42, 0.60},
		pose.LeftKnee:      {0.58, 0.78},
		pose.RightKnee:     {0.42, 0.78},
		pose.LeftAnkle:     {0.58, 0.95},
		pose.RightAnkle:    {0.42, 0.95},
	})
}

// ArmsDown returns a relaxed standing pose with the arms at the sides.
func ArmsDown() pose.Pose {
	return skeleton(map[int][2]float64{
		pose.LeftShoulder:  {0.60, 0.30},
		pose.RightShoulder: {0.40, 0.30},
		pose.LeftElbow:     {0.62, 0.45},
		pose.RightElbow:    {0.38, 0.45},
		pose.LeftWrist:     {0.63, 0.58},
		pose.RightWrist:    {0.37, 0.58},
		pose.LeftHip:       {0.58, 0.60},
		pose.RightHip:      {0.42, 0.60},
		pose.LeftKnee:      {0.58, 0.78},
		pose.RightKnee:     {0.42, 0.78},
		pose.LeftAnkle:     {0.58, 0.95},
		pose.RightAnkle:    {0.42, 0.95},
	})
}

// Squat returns a squat with the knees bent near a right angle and the
// arms held forward.
func Squat() pose.Pose {
	return skeleton(map[int][2]float64{
		pose.LeftShoulder:  {0.60, 0.35},
		pose.RightShoulder: {0.40, 0.35},
		pose.LeftElbow:     {0.75, 0.35},
		pose.RightElbow:    {0.25, 0.35},
		pose.LeftWrist:     {0.90, 0.35},
		pose.RightWrist:    {0.10, 0.35},
		pose.LeftHip:       {0.55, 0.65},
		pose.RightHip:      {0.45, 0.65},
		pose.LeftKnee:      {0.70, 0.68},
		pose.RightKnee:     {0.30, 0.68},
		pose.LeftAnkle:     {0.68, 0.90},
		pose.RightAnkle:    {0.32, 0.90},
	})
}
