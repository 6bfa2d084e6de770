package capture

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Frame differencing constants
const (
	// GaussianBlurSize is the kernel size for Gaussian blur (21x21)
	GaussianBlurSize = 21
	// DiffThreshold is the binary threshold for difference detection
	DiffThreshold = 25
	// DefaultMotionThreshold is the percentage of changed pixels that counts as motion.
	DefaultMotionThreshold = 1.0
	// DefaultHoldWindow keeps the monitor active after the last movement.
	DefaultHoldWindow = 3 * time.Second
)

// ActivityMonitor decides whether somebody is moving in front of the
// camera. A frame with enough changed pixels marks activity, and the
// monitor stays active for the hold window after the last such frame so a
// person holding still in a pose keeps being analyzed.
type ActivityMonitor struct {
	threshold   float64
	hold        time.Duration
	prevGray    gocv.Mat
	initialized bool
	lastMotion  time.Time
	now         func() time.Time
	mu          sync.Mutex
}

// NewActivityMonitor creates an ActivityMonitor. threshold is the
// percentage of pixels that must change; non-positive values use
// DefaultMotionThreshold. A non-positive hold uses DefaultHoldWindow.
func NewActivityMonitor(threshold float64, hold time.Duration) *ActivityMonitor {
	if threshold <= 0 {
		threshold = DefaultMotionThreshold
	}
	if hold <= 0 {
		hold = DefaultHoldWindow
	}
	return &ActivityMonitor{
		threshold: threshold,
		hold:      hold,
		prevGray:  gocv.NewMat(),
		now:       time.Now,
	}
}

// Observe feeds a frame to the monitor and reports whether the scene is
// active along with the percentage of pixels that changed.
//
// The frame is converted to grayscale and blurred, then compared against
// the previous frame. The first frame only sets the baseline.
func (m *ActivityMonitor) Observe(frame *gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return m.activeLocked(), 0
	}

	gray := gocv.NewMat()
	defer gray.Close()

	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: GaussianBlurSize, Y: GaussianBlurSize}, 0, 0, gocv.BorderDefault)

	if !m.initialized || blurred.Rows() != m.prevGray.Rows() || blurred.Cols() != m.prevGray.Cols() {
		blurred.CopyTo(&m.prevGray)
		m.initialized = true
		return m.activeLocked(), 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, DiffThreshold, 255, gocv.ThresholdBinary)

	changePercent := float64(gocv.CountNonZero(thresh)) / float64(thresh.Rows()*thresh.Cols()) * 100.0

	blurred.CopyTo(&m.prevGray)

	if changePercent > m.threshold {
		m.lastMotion = m.now()
	}
	return m.activeLocked(), changePercent
}

// Touch marks the scene as active without a frame, for example when a
// pose was detected.
func (m *ActivityMonitor) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastMotion = m.now()
}

// Active reports whether motion was seen within the hold window.
func (m *ActivityMonitor) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeLocked()
}

func (m *ActivityMonitor) activeLocked() bool {
	if m.lastMotion.IsZero() {
		return false
	}
	return m.now().Sub(m.lastMotion) < m.hold
}

// Reset clears the baseline frame and the activity state.
func (m *ActivityMonitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.prevGray.Empty() {
		m.prevGray.Close()
		m.prevGray = gocv.NewMat()
	}
	m.initialized = false
	m.lastMotion = time.Time{}
}

// Close releases resources used by the monitor.
func (m *ActivityMonitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prevGray.Close()
	m.prevGray = gocv.NewMat()
	m.initialized = false
}

// SetThreshold sets the percentage of pixels that must change.
// Values less than or equal to 0 are ignored.
func (m *ActivityMonitor) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.threshold = threshold
}
