package config

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

var (
	// ErrUnknownKey is returned by Set for a dotted key that names no setting.
	ErrUnknownKey = errors.New("unknown config key")
	// ErrInvalidValue is returned when a value is outside the range a
	// setting accepts.
	ErrInvalidValue = errors.New("invalid config value")
)

// Get returns the value at a dotted key such as "analyzer.angle_threshold".
// A key without a dot reads from the custom section.
func (c *DefaultConfig) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	section, field, dotted := strings.Cut(key, ".")
	if !dotted {
		v, ok := c.settings.Custom[key]
		return v, ok
	}

	f, ok := lookupField(reflect.ValueOf(&c.settings).Elem(), section, field)
	if !ok {
		return nil, false
	}
	return f.Interface(), true
}

// Set stores value at a dotted key. Strings are parsed into numeric and
// boolean settings, so values from flags and query strings can be passed
// through as-is. A key without a dot writes to the custom section.
func (c *DefaultConfig) Set(key string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	section, field, dotted := strings.Cut(key, ".")
	if !dotted {
		if c.settings.Custom == nil {
			c.settings.Custom = make(map[string]any)
		}
		c.settings.Custom[key] = value
		return nil
	}

	next := c.settings
	f, ok := lookupField(reflect.ValueOf(&next).Elem(), section, field)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if err := assign(f, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	if err := next.Validate(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	c.settings = next
	return nil
}

// Validate checks the numeric tunables for values the pipeline cannot use.
func (s Settings) Validate() error {
	checks := []struct {
		key      string
		value    float64
		min, max float64
	}{
		{"analyzer.angle_threshold", s.Analyzer.AngleThreshold, 0, 180},
		{"analyzer.min_visibility", s.Analyzer.MinVisibility, 0, 1},
		{"detector.min_detection_confidence", s.Detector.MinDetectionConfidence, 0, 1},
		{"detector.min_tracking_confidence", s.Detector.MinTrackingConfidence, 0, 1},
		{"alerts.min_score", s.Alerts.MinScore, 0, 1},
		{"alerts.hold_seconds", s.Alerts.HoldSeconds, 0, math.MaxFloat64},
		{"render.overlay_alpha", s.Render.OverlayAlpha, 0, 1},
		{"render.overlay_scale", s.Render.OverlayScale, 0, 1},
	}
	for _, c := range checks {
		if math.IsNaN(c.value) || c.value < c.min || c.value > c.max {
			return fmt.Errorf("%w: %s = %v, want %v to %v", ErrInvalidValue, c.key, c.value, c.min, c.max)
		}
	}
	return nil
}

// lookupField finds the struct field whose json tag matches name.
func lookupField(root reflect.Value, section, name string) (reflect.Value, bool) {
	sec, ok := fieldByTag(root, section)
	if !ok || sec.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	return fieldByTag(sec, name)
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if tag == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func assign(dst reflect.Value, value any) error {
	if s, ok := value.(string); ok && dst.Kind() != reflect.String {
		return assignString(dst, s)
	}

	v := reflect.ValueOf(value)
	if !v.IsValid() {
		return fmt.Errorf("nil value")
	}
	if v.Type().AssignableTo(dst.Type()) {
		dst.Set(v)
		return nil
	}
	if isNumeric(v.Kind()) && isNumeric(dst.Kind()) {
		dst.Set(v.Convert(dst.Type()))
		return nil
	}
	return fmt.Errorf("cannot use %T as %s", value, dst.Type())
}

func assignString(dst reflect.Value, s string) error {
	switch dst.Kind() {
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		dst.SetFloat(f)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		dst.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		dst.SetBool(b)
	default:
		return fmt.Errorf("cannot parse %q as %s", s, dst.Type())
	}
	return nil
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
