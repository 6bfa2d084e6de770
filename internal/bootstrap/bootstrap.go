// Package bootstrap registers the built-in component implementations and
// builds the container the rest of the program resolves against.
package bootstrap

import (
	"fmt"
	"log"

	"github.com/ZDP-Q/PostureCorrection/internal/analyzer"
	"github.com/ZDP-Q/PostureCorrection/internal/component"
	"github.com/ZDP-Q/PostureCorrection/internal/config"
	"github.com/ZDP-Q/PostureCorrection/internal/detector"
)

// New builds a registry holding every built-in implementation, validates
// it and returns a container over it.
func New() (*component.Container, error) {
	r := component.NewRegistry()
	c := component.NewContainer(r)

	if err := Register(r, c); err != nil {
		return nil, err
	}
	if err := r.Validate(component.Categories...); err != nil {
		return nil, fmt.Errorf("validate registry: %w", err)
	}
	return c, nil
}

// Register adds the built-in implementations to r. Factories resolve the
// config capability through c when they are invoked, so c may still be
// empty at registration time.
func Register(r *component.Registry, c *component.Container) error {
	descriptors := []component.Descriptor{
		{
			Category:    component.CategoryConfig,
			Name:        "default",
			Description: "Built-in defaults with file and environment overrides",
			IsDefault:   true,
			Factory:     func() component.Component { return config.NewDefault() },
		},
		{
			Category:    component.CategoryAnalyzer,
			Name:        "default",
			Description: "Joint-angle comparison using the vector angle formula",
			IsDefault:   true,
			Factory:     func() component.Component { return analyzer.New(liveSettings{c}) },
		},
		{
			Category:    component.CategoryAnalyzer,
			Name:        "strict",
			Description: "Half the angle threshold, with depth included in angles",
			Factory: func() component.Component {
				return analyzer.New(liveSettings{c},
					analyzer.WithName("strict", "Half the angle threshold, with depth included in angles"),
					analyzer.WithThresholdScale(0.5),
					analyzer.With3D(true),
				)
			},
		},
		mediaPipe(c, 0, true),
		mediaPipe(c, 1, false),
		mediaPipe(c, 2, false),
		{
			Category:    component.CategoryDetector,
			Name:        "mock",
			Description: "Returns a configured pose without looking at the frame",
			Factory:     func() component.Component { return detector.NewMockDetector() },
		},
	}

	for _, d := range descriptors {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}

func mediaPipe(c *component.Container, complexity int, isDefault bool) component.Descriptor {
	named := detector.NewMediaPipeDetector(detector.Config{ModelComplexity: complexity})
	return component.Descriptor{
		Category:    component.CategoryDetector,
		Name:        named.Name(),
		Description: named.Description(),
		IsDefault:   isDefault,
		Factory: func() component.Component {
			cfg := detectorConfig(c)
			cfg.ModelComplexity = complexity
			return detector.NewMediaPipeDetector(cfg)
		},
	}
}

func detectorConfig(c *component.Container) detector.Config {
	cfg := detector.DefaultConfig()

	conf, err := config.Resolve(c)
	if err != nil {
		log.Printf("Using default detector settings: %v", err)
		return cfg
	}

	s := conf.Snapshot().Detector
	cfg.MinDetectionConfidence = s.MinDetectionConfidence
	cfg.MinTrackingConfidence = s.MinTrackingConfidence
	cfg.ScriptPath = s.ScriptPath
	cfg.PythonPath = s.PythonPath
	cfg.UseGPU = s.UseGPU
	return cfg
}

// liveSettings reads analyzer tunables from whichever config is active at
// call time, falling back to the defaults if none can be resolved.
type liveSettings struct {
	c *component.Container
}

func (s liveSettings) AngleThreshold() float64 {
	conf, err := config.Resolve(s.c)
	if err != nil {
		return analyzer.DefaultAngleThreshold
	}
	return conf.AngleThreshold()
}

func (s liveSettings) MinVisibility() float64 {
	conf, err := config.Resolve(s.c)
	if err != nil {
		return analyzer.DefaultMinVisibility
	}
	return conf.MinVisibility()
}

func (s liveSettings) Use3D() bool {
	conf, err := config.Resolve(s.c)
	if err != nil {
		return false
	}
	return conf.Use3D()
}
