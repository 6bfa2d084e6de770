// Package tray provides a system tray interface for the posture correction service.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ZDP-Q/PostureCorrection/internal/app"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle   func(enabled bool)
	onSettings func()
	onQuit     func()
	enabled    bool
	mu         sync.RWMutex

	// Menu items stored for later updates
	menuToggle    *systray.MenuItem
	menuScore     *systray.MenuItem
	menuReference *systray.MenuItem
}

// New creates a new Tray instance with enabled state set to true by default.
func New() *Tray {
	return &Tray{
		enabled: true,
	}
}

// OnToggle sets the callback function to be called when the enabled state is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnSettings sets the callback function to be called when the settings menu item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray from outside the menu.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Posture")
	systray.SetTooltip("Posture Correction")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle posture analysis")
	systray.AddSeparator()

	t.menuScore = systray.AddMenuItem(ScoreLabel(app.Frame{}), "Latest posture score")
	t.menuScore.Disable()
	t.menuReference = systray.AddMenuItem(ReferenceLabel(""), "Active reference pose")
	t.menuReference.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Posture Correction")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

// handleToggle handles the toggle menu item click.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

// handleSettings handles the settings menu item click.
func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// ScoreLabel formats the score menu entry for f.
func ScoreLabel(f app.Frame) string {
	switch {
	case f.Timestamp.IsZero():
		return "Score: -"
	case !f.Detected:
		return "Score: no person"
	case f.Result == nil:
		return "Score: no reference"
	}
	label := fmt.Sprintf("Score: %.0f%%", f.Result.Score*100)
	if f.Feedback.Status != "" {
		label += " · " + f.Feedback.Status
	}
	return label
}

// ReferenceLabel formats the reference menu entry.
func ReferenceLabel(name string) string {
	if name == "" {
		return "Reference: none"
	}
	return "Reference: " + name
}

// Update shows the outcome of f in the menu.
func (t *Tray) Update(f app.Frame) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	// Nothing to update until Run has built the menu.
	if t.menuScore == nil {
		return
	}
	t.menuScore.SetTitle(ScoreLabel(f))
	if f.Reference != "" {
		t.menuReference.SetTitle(ReferenceLabel(f.Reference))
	}
	if f.Result != nil {
		systray.SetTitle(fmt.Sprintf("Posture %.0f%%", f.Result.Score*100))
	}
}

// Follow updates the menu from frames until the channel is closed.
func (t *Tray) Follow(frames <-chan app.Frame) {
	for f := range frames {
		t.Update(f)
	}
}

// SetEnabled syncs the toggle with state changed elsewhere.
func (t *Tray) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}
