// Package plugin runs external alert plugins when the posture state changes.
//
// A plugin is a directory holding a plugin.json manifest and an
// executable. For each event the executable receives one JSON Request on
// stdin and answers with one JSON Response on stdout.
package plugin

import (
	"encoding/json"
	"time"

	"github.com/ZDP-Q/PostureCorrection/internal/analyzer"
)

// Event names a posture state change.
type Event string

const (
	// EventPostureBad fires once the posture has stayed off the reference
	// for the alert hold time.
	EventPostureBad Event = "posture.bad"
	// EventPostureGood fires when the posture returns to the reference
	// after a bad event.
	EventPostureGood Event = "posture.good"
	// EventReferenceChanged fires when a different reference is activated.
	EventReferenceChanged Event = "reference.changed"
)

// Manifest describes a plugin's metadata and the events it handles.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Events       []Event         `json:"events"`
	Config       json.RawMessage `json:"config,omitempty"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Handles reports whether the plugin subscribed to event.
func (m Manifest) Handles(event Event) bool {
	for _, e := range m.Events {
		if e == event {
			return true
		}
	}
	return false
}

// Request represents a request sent to a plugin for execution.
type Request struct {
	Event     Event              `json:"event"`
	Reference string             `json:"reference,omitempty"`
	Score     float64            `json:"score"`
	Feedback  *analyzer.Feedback `json:"feedback,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
	Config    json.RawMessage    `json:"config,omitempty"`
}

// Response represents the response from a plugin execution.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
