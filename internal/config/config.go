// Package config provides the runtime configuration component.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"

	"github.com/ZDP-Q/PostureCorrection/internal/component"
)

// DetectorSettings configures pose detection.
type DetectorSettings struct {
	MinDetectionConfidence float64 `json:"min_detection_confidence"`
	MinTrackingConfidence  float64 `json:"min_tracking_confidence"`
	ScriptPath             string  `json:"script_path"`
	PythonPath             string  `json:"python_path"`
	UseGPU                 bool    `json:"use_gpu"`
}

// AnalyzerSettings configures pose comparison.
type AnalyzerSettings struct {
	AngleThreshold float64 `json:"angle_threshold"`
	MinVisibility  float64 `json:"min_visibility"`
	Use3D          bool    `json:"use_3d"`
}

// Color is an RGB triple.
type Color [3]uint8

// RenderSettings configures skeleton overlays.
type RenderSettings struct {
	LineThickness int     `json:"line_thickness"`
	BoldThickness int     `json:"bold_thickness"`
	OverlayAlpha  float64 `json:"overlay_alpha"`
	OverlayScale  float64 `json:"overlay_scale"`
	Matched       Color   `json:"matched"`
	Mismatched    Color   `json:"mismatched"`
	Reference     Color   `json:"reference"`
}

// WindowSettings configures the desktop surfaces.
type WindowSettings struct {
	Title string `json:"title"`
}

// ServerSettings configures the HTTP server.
type ServerSettings struct {
	Addr      string `json:"addr"`
	DataDir   string `json:"data_dir"`
	StaticDir string `json:"static_dir"`
}

// CameraSettings configures frame capture.
type CameraSettings struct {
	DeviceID int    `json:"device_id"`
	Path     string `json:"path"`
	Mirror   bool   `json:"mirror"`
	FPS      int    `json:"fps"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// AlertSettings configures posture alerts sent to plugins.
type AlertSettings struct {
	Enabled     bool    `json:"enabled"`
	PluginDir   string  `json:"plugin_dir"`
	MinScore    float64 `json:"min_score"`
	HoldSeconds float64 `json:"hold_seconds"`
}

// Settings is the full configuration tree.
type Settings struct {
	Detector DetectorSettings `json:"detector"`
	Analyzer AnalyzerSettings `json:"analyzer"`
	Render   RenderSettings   `json:"render"`
	Window   WindowSettings   `json:"window"`
	Server   ServerSettings   `json:"server"`
	Camera   CameraSettings   `json:"camera"`
	Alerts   AlertSettings    `json:"alerts"`
	Custom   map[string]any   `json:"custom,omitempty"`
}

// Defaults returns the built-in configuration.
func Defaults() Settings {
	dataDir := ".posture"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".posture")
	}

	return Settings{
		Detector: DetectorSettings{
			MinDetectionConfidence: 0.5,
			MinTrackingConfidence:  0.5,
			UseGPU:                 true,
		},
		Analyzer: AnalyzerSettings{
			AngleThreshold: 15.0,
			MinVisibility:  0.5,
		},
		Render: RenderSettings{
			LineThickness: 2,
			BoldThickness: 4,
			OverlayAlpha:  0.4,
			OverlayScale:  0.3,
			Matched:       Color{0, 255, 0},
			Mismatched:    Color{255, 0, 0},
			Reference:     Color{255, 255, 0},
		},
		Window: WindowSettings{
			Title: "Posture Correction",
		},
		Server: ServerSettings{
			Addr:    ":8080",
			DataDir: dataDir,
		},
		Camera: CameraSettings{
			Mirror: true,
			FPS:    15,
			Width:  1280,
			Height: 720,
		},
		Alerts: AlertSettings{
			Enabled:     true,
			PluginDir:   pluginDirFor(dataDir),
			MinScore:    0.75,
			HoldSeconds: 5,
		},
	}
}

// Config is the configuration capability resolved from the container.
type Config interface {
	component.Component

	AngleThreshold() float64
	MinVisibility() float64
	Use3D() bool
	Snapshot() Settings
	Get(key string) (any, bool)
	Set(key string, value any) error
	LoadFile(path string) error
	SaveFile(path string) error
}

// overrides lists the environment variables applied on Initialize. Unset
// variables leave the current value alone.
type overrides struct {
	File           string   `env:"POSTURE_CONFIG"`
	AngleThreshold *float64 `env:"POSTURE_ANGLE_THRESHOLD"`
	MinVisibility  *float64 `env:"POSTURE_MIN_VISIBILITY"`
	Use3D          *bool    `env:"POSTURE_USE_3D"`
	Addr           *string  `env:"POSTURE_ADDR"`
	DataDir        *string  `env:"POSTURE_DATA_DIR"`
	StaticDir      *string  `env:"POSTURE_STATIC_DIR"`
	CameraDevice   *int     `env:"POSTURE_CAMERA_DEVICE"`
	VideoPath      *string  `env:"POSTURE_INPUT"`
	Mirror         *bool    `env:"POSTURE_MIRROR"`
	ScriptPath     *string  `env:"POSTURE_POSE_SCRIPT"`
	PythonPath     *string  `env:"POSTURE_PYTHON"`
	UseGPU         *bool    `env:"POSTURE_USE_GPU"`
	PluginDir      *string  `env:"POSTURE_PLUGIN_DIR"`
	Alerts         *bool    `env:"POSTURE_ALERTS"`
}

// DefaultConfig holds Settings behind a lock so tunables can change while
// other components read them.
type DefaultConfig struct {
	mu       sync.RWMutex
	settings Settings
}

// NewDefault returns a DefaultConfig holding Defaults().
func NewDefault() *DefaultConfig {
	return &DefaultConfig{settings: Defaults()}
}

// Name implements component.Component.
func (c *DefaultConfig) Name() string { return "default" }

// Description implements component.Component.
func (c *DefaultConfig) Description() string {
	return "Built-in defaults with file and environment overrides"
}

// Initialize loads the file named by POSTURE_CONFIG, if any, and then
// applies environment overrides on top. The plugin directory follows the
// final data directory unless the file or POSTURE_PLUGIN_DIR set it.
func (c *DefaultConfig) Initialize() error {
	var o overrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	derived := c.Snapshot()
	derivedPluginDir := pluginDirFor(derived.Server.DataDir)
	followDataDir := derived.Alerts.PluginDir == derivedPluginDir

	if o.File != "" {
		if err := c.LoadFile(o.File); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.settings
	if next.Alerts.PluginDir != derivedPluginDir {
		followDataDir = false
	}

	setIf(&next.Analyzer.AngleThreshold, o.AngleThreshold)
	setIf(&next.Analyzer.MinVisibility, o.MinVisibility)
	setIf(&next.Analyzer.Use3D, o.Use3D)
	setIf(&next.Server.Addr, o.Addr)
	setIf(&next.Server.DataDir, o.DataDir)
	setIf(&next.Server.StaticDir, o.StaticDir)
	setIf(&next.Camera.DeviceID, o.CameraDevice)
	setIf(&next.Camera.Path, o.VideoPath)
	setIf(&next.Camera.Mirror, o.Mirror)
	setIf(&next.Detector.ScriptPath, o.ScriptPath)
	setIf(&next.Detector.PythonPath, o.PythonPath)
	setIf(&next.Detector.UseGPU, o.UseGPU)
	setIf(&next.Alerts.Enabled, o.Alerts)

	switch {
	case o.PluginDir != nil:
		next.Alerts.PluginDir = *o.PluginDir
	case followDataDir:
		next.Alerts.PluginDir = pluginDirFor(next.Server.DataDir)
	}

	if err := next.Validate(); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	c.settings = next
	return nil
}

func pluginDirFor(dataDir string) string {
	return filepath.Join(dataDir, "plugins")
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// AngleThreshold returns the maximum joint angle difference in degrees
// that still counts as a match.
func (c *DefaultConfig) AngleThreshold() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings.Analyzer.AngleThreshold
}

// MinVisibility returns the visibility a landmark must exceed to be used.
func (c *DefaultConfig) MinVisibility() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings.Analyzer.MinVisibility
}

// Use3D reports whether joint angles include the depth coordinate.
func (c *DefaultConfig) Use3D() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings.Analyzer.Use3D
}

// Snapshot returns a copy of the current settings.
func (c *DefaultConfig) Snapshot() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.settings
	if c.settings.Custom != nil {
		s.Custom = make(map[string]any, len(c.settings.Custom))
		for k, v := range c.settings.Custom {
			s.Custom[k] = v
		}
	}
	return s
}

// Update applies fn to the settings under the write lock.
func (c *DefaultConfig) Update(fn func(*Settings)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.settings)
}

// LoadFile merges a JSON settings file over the current values. Keys absent
// from the file keep their current value.
func (c *DefaultConfig) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.settings
	if c.settings.Custom != nil {
		next.Custom = make(map[string]any, len(c.settings.Custom))
		for k, v := range c.settings.Custom {
			next.Custom[k] = v
		}
	}
	if err := json.Unmarshal(data, &next); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := next.Validate(); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	c.settings = next
	return nil
}

// SaveFile writes the current settings as indented JSON, creating parent
// directories as needed.
func (c *DefaultConfig) SaveFile(path string) error {
	data, err := json.MarshalIndent(c.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// Resolve returns the active configuration from the container.
func Resolve(c *component.Container) (Config, error) {
	inst, err := c.Get(component.CategoryConfig)
	if err != nil {
		return nil, err
	}
	cfg, ok := inst.(Config)
	if !ok {
		return nil, fmt.Errorf("config %q does not implement Config", inst.Name())
	}
	return cfg, nil
}
