// Package hook runs external executables when formcheck events occur.
//
// Each hook lives in its own directory under the hooks dir with a hook.json
// manifest naming the executable and the events it handles. The executable
// receives the Event as JSON on stdin and answers with a Response on stdout.
package hook

import (
	"encoding/json"
	"slices"
	"time"
)

// EventAnalysisCompleted fires after an analysis has been persisted.
const EventAnalysisCompleted = "analysis.completed"

// Manifest describes a hook's metadata and subscriptions.
type Manifest struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Executable  string   `json:"executable"`
	Events      []string `json:"events"`
}

// Event is sent to a hook on stdin.
type Event struct {
	Type         string          `json:"event"`
	AnalysisID   string          `json:"analysis_id,omitempty"`
	ExerciseName string          `json:"exercise_name,omitempty"`
	Score        int             `json:"score"`
	Grade        string          `json:"grade,omitempty"`
	Reps         int             `json:"reps"`
	Timestamp    time.Time       `json:"timestamp"`
	Data         json.RawMessage `json:"data,omitempty"`
}

// Response is what a hook writes to stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Hook is a discovered hook with its manifest and location.
type Hook struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Handles reports whether the hook subscribes to event. A manifest without
// events subscribes to all of them.
func (h *Hook) Handles(event string) bool {
	if len(h.Manifest.Events) == 0 {
		return true
	}
	return slices.Contains(h.Manifest.Events, event)
}
