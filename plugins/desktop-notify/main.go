// Package main provides a desktop notification plugin. It tells the user
// when their posture has drifted from the reference and when it is back.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Request represents the input from the plugin executor.
type Request struct {
	Event     string          `json:"event"`
	Reference string          `json:"reference"`
	Score     float64         `json:"score"`
	Feedback  *Feedback       `json:"feedback"`
	Config    json.RawMessage `json:"config"`
}

// Feedback mirrors the hints attached to posture events.
type Feedback struct {
	Status string `json:"status"`
	Hints  []struct {
		Message string `json:"message"`
	} `json:"hints"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config is read from the manifest's config block.
type Config struct {
	Sound bool `json:"sound"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	var cfg Config
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeErrorResponse(fmt.Sprintf("invalid config: %v", err))
			return
		}
	}

	title, body, ok := message(req)
	if !ok {
		writeErrorResponse(fmt.Sprintf("unknown event: %s", req.Event))
		return
	}

	if err := notify(title, body, cfg.Sound); err != nil {
		writeErrorResponse(fmt.Sprintf("notify failed: %v", err))
		return
	}

	writeSuccessResponse()
}

// message builds the notification text for an event.
func message(req Request) (title, body string, ok bool) {
	switch req.Event {
	case "posture.bad":
		title = "Check your posture"
		body = fmt.Sprintf("%.0f%% of joints match %s", req.Score*100, req.Reference)
		if req.Feedback != nil && len(req.Feedback.Hints) > 0 {
			body = req.Feedback.Hints[0].Message
		}
		return title, body, true
	case "posture.good":
		return "Posture back on track", fmt.Sprintf("Matching %s again", req.Reference), true
	case "reference.changed":
		return "Reference changed", fmt.Sprintf("Now comparing against %s", req.Reference), true
	}
	return "", "", false
}

// notify shows a desktop notification with the platform's own tool.
func notify(title, body string, sound bool) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf("display notification %q with title %q", body, title)
		if sound {
			script += ` sound name "Glass"`
		}
		cmd = exec.Command("osascript", "-e", script)
	case "linux":
		cmd = exec.Command("notify-send", "--app-name=posture", title, body)
	default:
		return fmt.Errorf("notifications are not supported on %s", runtime.GOOS)
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse() {
	json.NewEncoder(os.Stdout).Encode(Response{Success: true})
}
