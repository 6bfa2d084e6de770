package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ZDP-Q/PostureCorrection/internal/pose"
)

// IdleTimeout is how long the pose service may sit unused before it is
// stopped. It is restarted on the next Detect.
const IdleTimeout = 30 * time.Second

const scriptName = "pose_service.py"

var modelNames = [...]string{"lite", "full", "heavy"}

// MediaPipeDetector implements Detector using a Python MediaPipe subprocess.
// Frames are sent as length-prefixed JPEG on stdin and each reply is one
// JSON line on stdout.
type MediaPipeDetector struct {
	config      Config
	scriptPath  string
	pythonPath  string
	idleTimeout time.Duration
	command     func(python string, args ...string) *exec.Cmd

	mu          sync.Mutex
	cmd         *exec.Cmd
	stdin       io.WriteCloser
	stdout      *bufio.Reader
	initialized bool
	started     bool
	idleTimer   *time.Timer
}

// NewMediaPipeDetector creates a new MediaPipe detector. Nothing is started
// until Initialize.
func NewMediaPipeDetector(config Config) *MediaPipeDetector {
	if config.ModelComplexity < 0 || config.ModelComplexity >= len(modelNames) {
		config.ModelComplexity = 0
	}
	return &MediaPipeDetector{
		config:      config,
		idleTimeout: IdleTimeout,
		command:     exec.Command,
	}
}

// Name implements component.Component.
func (d *MediaPipeDetector) Name() string {
	return "mediapipe-" + modelNames[d.config.ModelComplexity]
}

// Description implements component.Component.
func (d *MediaPipeDetector) Description() string {
	switch d.config.ModelComplexity {
	case 1:
		return "MediaPipe pose landmarker, full model balancing speed and accuracy"
	case 2:
		return "MediaPipe pose landmarker, heavy model with the highest accuracy"
	default:
		return "MediaPipe pose landmarker, lite model for real-time use"
	}
}

// Initialize locates the pose service and starts it.
func (d *MediaPipeDetector) Initialize() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.initialized {
		return nil
	}

	d.scriptPath = d.config.ScriptPath
	if d.scriptPath == "" {
		d.scriptPath = findPoseScript()
	}
	if d.scriptPath == "" {
		return fmt.Errorf("%s not found", scriptName)
	}

	d.pythonPath = d.config.PythonPath
	if d.pythonPath == "" {
		d.pythonPath = findVenvPython()
	}
	if d.pythonPath == "" {
		d.pythonPath = "python3"
	}

	if err := d.ensureStarted(); err != nil {
		return err
	}

	d.initialized = true
	log.Printf("Pose service started (%s model)", modelNames[d.config.ModelComplexity])
	return nil
}

// Detect analyzes a frame and returns the detected pose.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) (pose.Pose, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized {
		return pose.Pose{}, ErrDetectionUnavailable
	}
	if frame == nil || frame.Empty() {
		return pose.Pose{}, errors.New("empty frame")
	}

	if err := d.ensureStarted(); err != nil {
		return pose.Pose{}, err
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return pose.Pose{}, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	resp, err := d.roundTrip(buf.GetBytes())
	if err != nil {
		// The stream is out of sync; start over on the next frame.
		d.shutdown()
		return pose.Pose{}, err
	}
	if resp.Error != "" {
		return pose.Pose{}, fmt.Errorf("pose service: %s", resp.Error)
	}

	d.resetIdleTimer()
	return resp.toPose(), nil
}

func (d *MediaPipeDetector) roundTrip(data []byte) (jsonResponse, error) {
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := d.stdin.Write(length); err != nil {
		return jsonResponse{}, fmt.Errorf("write length: %w", err)
	}
	if _, err := d.stdin.Write(data); err != nil {
		return jsonResponse{}, fmt.Errorf("write data: %w", err)
	}

	line, err := d.stdout.ReadString('\n')
	if err != nil {
		return jsonResponse{}, fmt.Errorf("read response: %w", err)
	}

	var resp jsonResponse
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		return jsonResponse{}, fmt.Errorf("parse response: %w", err)
	}
	return resp, nil
}

// DetectBatch implements Detector.
func (d *MediaPipeDetector) DetectBatch(frames []*gocv.Mat) []pose.Pose {
	return detectAll(d.Detect, frames)
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.initialized = false
	return d.shutdown()
}

func (d *MediaPipeDetector) args() []string {
	args := []string{
		d.scriptPath,
		"--model-complexity", strconv.Itoa(d.config.ModelComplexity),
		"--min-detection-confidence", strconv.FormatFloat(d.config.MinDetectionConfidence, 'f', -1, 64),
		"--min-tracking-confidence", strconv.FormatFloat(d.config.MinTrackingConfidence, 'f', -1, 64),
	}
	if !d.config.UseGPU {
		args = append(args, "--cpu")
	}
	return args
}

func (d *MediaPipeDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	d.cmd = d.command(d.pythonPath, d.args()...)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	// Capture stderr for debugging
	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start pose service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true

	return nil
}

func (d *MediaPipeDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	return err
}

func (d *MediaPipeDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(d.idleTimeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if err := d.shutdown(); err != nil {
			log.Printf("Pose service exited: %v", err)
		}
	})
}

// running reports whether the subprocess is currently up.
func (d *MediaPipeDetector) running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.started
}

func findPoseScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		filepath.Join("scripts", scriptName),
		filepath.Join("..", "scripts", scriptName),
		filepath.Join(execDir, "scripts", scriptName),
		filepath.Join(os.Getenv("HOME"), ".posture", "scripts", scriptName),
	}
	return firstExisting(candidates)
}

// findVenvPython looks for a Python interpreter in a virtual environment
// next to the working directory, the executable or the data directory.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		"../../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".posture/venv/bin/python"),
	}
	return firstExisting(candidates)
}

func firstExisting(paths []string) string {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}
