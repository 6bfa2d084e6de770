package app

import (
	"errors"
	"log"
	"time"

	"gocv.io/x/gocv"

	"github.com/ZDP-Q/PostureCorrection/internal/capture"
	"github.com/ZDP-Q/PostureCorrection/internal/render"
)

// Start opens the camera and begins the live pipeline.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopCh != nil {
		return nil
	}

	cam := s.settings().Camera
	if s.camera == nil {
		s.camera = capture.NewCamera(capture.Options{
			DeviceID: cam.DeviceID,
			Path:     cam.Path,
			FPS:      cam.FPS,
			Width:    cam.Width,
			Height:   cam.Height,
		})
	}

	if err := s.camera.Open(); err != nil {
		return err
	}
	s.camera.SetFPS(IdleFPS)

	activeFPS := cam.FPS
	if activeFPS <= 0 {
		activeFPS = DefaultActiveFPS
	}

	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.runPipeline(s.stopCh, s.doneCh, activeFPS)

	log.Println("Posture pipeline started")
	return nil
}

// Stop halts the pipeline and releases the camera.
func (s *Session) Stop() {
	s.mu.Lock()
	stopCh, doneCh := s.stopCh, s.doneCh
	s.stopCh, s.doneCh = nil, nil
	s.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh

	if err := s.camera.Close(); err != nil {
		log.Printf("Error closing camera: %v", err)
	}
	s.monitor.Reset()

	log.Println("Posture pipeline stopped")
}

// Running reports whether the pipeline is running.
func (s *Session) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopCh != nil
}

// runPipeline reads camera frames until stopCh closes.
//
// The pipeline idles at IdleFPS while nobody moves. Movement, or a
// detected person, switches it to activeFPS until the activity monitor's
// hold window runs out. Every active frame is detected, compared with the
// reference when one is set, and annotated for the MJPEG stream.
func (s *Session) runPipeline(stopCh <-chan struct{}, doneCh chan<- struct{}, activeFPS int) {
	defer close(doneCh)

	activeMode := false
	ticker := time.NewTicker(time.Second / time.Duration(IdleFPS))
	defer ticker.Stop()

	setMode := func(active bool) {
		if active == activeMode {
			return
		}
		activeMode = active
		fps := IdleFPS
		if active {
			fps = activeFPS
		}
		s.camera.SetFPS(fps)
		ticker.Reset(time.Second / time.Duration(fps))
		if active {
			log.Println("Switched to active mode")
		} else {
			log.Println("Switched to idle mode")
		}
	}

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if !s.IsEnabled() {
				continue
			}

			frame, err := s.camera.ReadFrame()
			if errors.Is(err, capture.ErrNoFrames) {
				continue
			}
			if err != nil {
				log.Printf("Error reading frame: %v", err)
				continue
			}

			s.mirror(frame)
			active, _ := s.monitor.Observe(frame)
			setMode(active)
			if activeMode {
				s.analyze(frame)
			}
			frame.Close()
		}
	}
}

// fileSource is implemented by cameras that play back a video file.
type fileSource interface {
	IsFile() bool
}

// mirror flips a camera frame horizontally in place when camera.mirror is
// set, so the stream reads like a mirror. Video files are never flipped.
func (s *Session) mirror(frame *gocv.Mat) {
	if !s.settings().Camera.Mirror {
		return
	}
	if f, ok := s.camera.(fileSource); ok && f.IsFile() {
		return
	}
	if err := gocv.Flip(*frame, frame, 1); err != nil {
		log.Printf("Error mirroring frame: %v", err)
	}
}

// analyze runs detection and comparison on one camera frame and stores
// the annotated JPEG.
func (s *Session) analyze(frame *gocv.Mat) {
	live, err := s.detect(frame)
	if err != nil {
		log.Printf("Error detecting pose: %v", err)
		return
	}
	if live.Detected() {
		s.monitor.Touch()
	}

	ref, _, hasRef := s.Reference()
	var f Frame
	if hasRef {
		f, err = s.Compare(live)
		if err != nil {
			log.Printf("Error comparing pose: %v", err)
			return
		}
	} else {
		f = s.observe(live)
	}

	settings := s.settings()
	style := render.NewStyle(settings.Render, settings.Analyzer.MinVisibility)
	render.Annotate(frame, live, ref, f.Result, f.Feedback.Status, style)

	data, err := render.EncodeJPEG(frame)
	if err != nil {
		log.Printf("Error encoding frame: %v", err)
		return
	}

	s.mu.Lock()
	s.lastJPEG = data
	s.mu.Unlock()
}
