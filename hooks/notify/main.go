// Package main provides a hook that posts a desktop notification when an
// analysis completes. It uses AppleScript on macOS and notify-send elsewhere.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/ayusman/formcheck/internal/hook"
)

func main() {
	var ev hook.Event
	if err := json.NewDecoder(os.Stdin).Decode(&ev); err != nil {
		writeResponse(fmt.Errorf("failed to decode event: %w", err))
		return
	}

	if ev.Type != hook.EventAnalysisCompleted {
		writeResponse(fmt.Errorf("unsupported event: %s", ev.Type))
		return
	}

	writeResponse(notify("formcheck", message(ev)))
}

// message renders the notification body for a completed analysis.
func message(ev hook.Event) string {
	name := ev.ExerciseName
	if name == "" {
		name = "Analysis"
	}
	if ev.Reps == 0 {
		return fmt.Sprintf("%s: no reps detected", name)
	}
	return fmt.Sprintf("%s: %d reps, score %d (%s)", name, ev.Reps, ev.Score, ev.Grade)
}

func notify(title, body string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf(`display notification %q with title %q`, escape(body), escape(title))
		cmd = exec.Command("osascript", "-e", script)
	default:
		cmd = exec.Command("notify-send", title, body)
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// escape drops characters AppleScript string literals cannot carry.
func escape(s string) string {
	return strings.NewReplacer(`\`, "", `"`, "'").Replace(s)
}

func writeResponse(err error) {
	resp := hook.Response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}
