package hook

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// writeHook creates dir/name with a hook.json manifest and an executable
// shell script.
func writeHook(t *testing.T, dir, name, script string, events ...string) *Hook {
	t.Helper()

	hookDir := filepath.Join(dir, name)
	if err := os.MkdirAll(hookDir, 0755); err != nil {
		t.Fatalf("failed to create hook dir: %v", err)
	}

	manifest := Manifest{
		Name:       name,
		Version:    "1.0.0",
		Executable: "run.sh",
		Events:     events,
	}
	data, err := json.Marshal(manifest)
	if err != nil {
		t.Fatalf("failed to marshal manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(hookDir, manifestName), data, 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}

	exe := filepath.Join(hookDir, "run.sh")
	if err := os.WriteFile(exe, []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}

	return &Hook{Manifest: manifest, Path: hookDir, Executable: exe}
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}
}

func TestManager_Discover(t *testing.T) {
	dir := t.TempDir()
	writeHook(t, dir, "notify", "exit 0\n", EventAnalysisCompleted)
	writeHook(t, dir, "audit", "exit 0\n")

	// Ignored: a plain file, a dir without manifest and a broken manifest.
	if err := os.WriteFile(filepath.Join(dir, "README"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "empty"), 0755); err != nil {
		t.Fatal(err)
	}
	broken := filepath.Join(dir, "broken")
	if err := os.MkdirAll(broken, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(broken, manifestName), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	m := NewManager(dir)
	if err := m.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	hooks := m.List()
	if len(hooks) != 2 {
		t.Fatalf("expected 2 hooks, got %d", len(hooks))
	}
	if hooks[0].Manifest.Name != "audit" || hooks[1].Manifest.Name != "notify" {
		t.Errorf("expected hooks ordered by name, got %s, %s", hooks[0].Manifest.Name, hooks[1].Manifest.Name)
	}

	h, err := m.Get("notify")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if h.Executable != filepath.Join(dir, "notify", "run.sh") {
		t.Errorf("unexpected executable path %q", h.Executable)
	}
	if m.Dir() != dir {
		t.Errorf("expected dir %q, got %q", dir, m.Dir())
	}
}

func TestManager_Discover_MissingDir(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "nope"))
	if err := m.Discover(); err != nil {
		t.Fatalf("expected no error for missing dir, got %v", err)
	}
	if len(m.List()) != 0 {
		t.Errorf("expected no hooks, got %d", len(m.List()))
	}
}

func TestManager_Discover_NotADir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := NewManager(path).Discover(); err == nil {
		t.Error("expected error when hooks dir is a file")
	}
}

func TestManager_GetNotFound(t *testing.T) {
	m := NewManager(t.TempDir())
	if _, err := m.Get("missing"); !errors.Is(err, ErrHookNotFound) {
		t.Errorf("expected ErrHookNotFound, got %v", err)
	}
}

func TestManager_For(t *testing.T) {
	dir := t.TempDir()
	writeHook(t, dir, "all", "exit 0\n")
	writeHook(t, dir, "done", "exit 0\n", EventAnalysisCompleted)
	writeHook(t, dir, "other", "exit 0\n", "something.else")

	m := NewManager(dir)
	if err := m.Discover(); err != nil {
		t.Fatal(err)
	}

	got := m.For(EventAnalysisCompleted)
	if len(got) != 2 {
		t.Fatalf("expected 2 hooks, got %d", len(got))
	}
	if got[0].Manifest.Name != "all" || got[1].Manifest.Name != "done" {
		t.Errorf("unexpected hooks: %s, %s", got[0].Manifest.Name, got[1].Manifest.Name)
	}
}

func TestExecutor_Execute(t *testing.T) {
	skipOnWindows(t)

	tests := []struct {
		name        string
		script      string
		wantErr     string
		wantSuccess bool
	}{
		{
			name:        "success",
			script:      "cat >/dev/null\necho '{\"success\":true}'\n",
			wantSuccess: true,
		},
		{
			name:   "reported failure",
			script: "cat >/dev/null\necho '{\"success\":false,\"error\":\"no display\"}'\n",
		},
		{
			name:    "non-zero exit",
			script:  "echo boom >&2\nexit 3\n",
			wantErr: "stderr: boom",
		},
		{
			name:    "invalid output",
			script:  "echo not json\n",
			wantErr: "parse response",
		},
	}

	exec := NewExecutor(5 * time.Second)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := writeHook(t, t.TempDir(), "h", tt.script)

			resp, err := exec.Execute(context.Background(), h, Event{Type: EventAnalysisCompleted})
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Execute() failed: %v", err)
			}
			if resp.Success != tt.wantSuccess {
				t.Errorf("expected success=%v, got %v", tt.wantSuccess, resp.Success)
			}
		})
	}
}

func TestExecutor_Execute_ReadsStdin(t *testing.T) {
	skipOnWindows(t)

	h := writeHook(t, t.TempDir(), "echo", `INPUT=$(cat)
echo "{\"success\":true,\"data\":$INPUT}"
`)

	ev := Event{
		Type:         EventAnalysisCompleted,
		AnalysisID:   "a-1",
		ExerciseName: "Squat",
		Score:        82,
		Grade:        "Good",
		Reps:         3,
	}
	resp, err := NewExecutor(5*time.Second).Execute(context.Background(), h, ev)
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	var got Event
	if err := json.Unmarshal(resp.Data, &got); err != nil {
		t.Fatalf("failed to unmarshal echoed event: %v", err)
	}
	if got.Type != EventAnalysisCompleted || got.AnalysisID != "a-1" || got.Score != 82 || got.Reps != 3 {
		t.Errorf("unexpected event received by hook: %+v", got)
	}
}

func TestExecutor_Timeout(t *testing.T) {
	skipOnWindows(t)

	h := writeHook(t, t.TempDir(), "slow", "sleep 10\necho '{\"success\":true}'\n")

	_, err := NewExecutor(100*time.Millisecond).Execute(context.Background(), h, Event{Type: EventAnalysisCompleted})
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
	if !strings.Contains(err.Error(), "timeout") {
		t.Errorf("expected timeout error, got: %v", err)
	}
}

func TestDispatcher_Fire(t *testing.T) {
	skipOnWindows(t)

	dir := t.TempDir()
	marker := filepath.Join(t.TempDir(), "fired")
	writeHook(t, dir, "good", "cat > "+marker+"\necho '{\"success\":true}'\n", EventAnalysisCompleted)
	writeHook(t, dir, "bad", "exit 1\n", EventAnalysisCompleted)
	writeHook(t, dir, "deaf", "echo '{\"success\":true}'\n", "other.event")

	m := NewManager(dir)
	if err := m.Discover(); err != nil {
		t.Fatal(err)
	}
	d := NewDispatcher(m, NewExecutor(5*time.Second))

	ok := d.Fire(context.Background(), Event{Type: EventAnalysisCompleted, AnalysisID: "a-9"})
	if ok != 1 {
		t.Errorf("expected 1 successful hook, got %d", ok)
	}

	data, err := os.ReadFile(marker)
	if err != nil {
		t.Fatalf("good hook did not run: %v", err)
	}
	var got Event
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("failed to unmarshal event: %v", err)
	}
	if got.AnalysisID != "a-9" {
		t.Errorf("expected analysis id a-9, got %q", got.AnalysisID)
	}
	if got.Timestamp.IsZero() {
		t.Error("expected timestamp to be filled in")
	}
}
