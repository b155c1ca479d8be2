package e2e

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/ayusman/formcheck/internal/app"
	"github.com/ayusman/formcheck/internal/config"
	"github.com/ayusman/formcheck/internal/hook"
	"github.com/ayusman/formcheck/internal/pose"
	"github.com/ayusman/formcheck/internal/server"
	"github.com/ayusman/formcheck/internal/squat"
	"github.com/ayusman/formcheck/internal/store"
)

// writeRecordingHook installs a hook that copies each event to marker.
func writeRecordingHook(t *testing.T, hooksDir, marker string) {
	t.Helper()

	dir := filepath.Join(hooksDir, "record")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	manifest := `{"name":"record","version":"1.0.0","executable":"run.sh","events":["analysis.completed"]}`
	if err := os.WriteFile(filepath.Join(dir, "hook.json"), []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}
	script := "#!/bin/sh\ncat >> " + marker + "\necho >> " + marker + "\necho '{\"success\":true}'\n"
	if err := os.WriteFile(filepath.Join(dir, "run.sh"), []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
}

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	tmpDir := t.TempDir()
	marker := filepath.Join(tmpDir, "events.jsonl")

	cfgPath := filepath.Join(tmpDir, "config.yaml")
	cfgYAML := "data_dir: " + tmpDir + "\nhooks:\n  dir: " + filepath.Join(tmpDir, "hooks") + "\n"
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	writeRecordingHook(t, cfg.Hooks.Dir, marker)

	s, err := store.New(cfg.DBPath())
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	hooks := hook.NewManager(cfg.Hooks.Dir)
	if err := hooks.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	calc, err := cfg.Calculator()
	if err != nil {
		t.Fatal(err)
	}
	application := app.New(app.Config{
		Store:      s,
		Hooks:      hook.NewDispatcher(hooks, hook.NewExecutor(cfg.Hooks.Timeout)),
		Calculator: calc,
		View:       squat.View(cfg.Analysis.View),
		KeepFrames: cfg.Analysis.KeepFrames,
	})
	defer application.Close()

	ts := httptest.NewServer(server.New(server.Config{Store: s, App: application}))
	defer ts.Close()
	client := ts.Client()

	var analysisID string

	t.Run("AnalyzeSession", func(t *testing.T) {
		body, _ := json.Marshal(map[string]interface{}{
			"frames": pose.DefaultSession().Frames(),
			"fps":    30,
		})
		resp, err := client.Post(ts.URL+"/api/analyses", "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("POST /api/analyses error = %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
		}

		var res app.Result
		if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
			t.Fatal(err)
		}
		analysisID = res.Record.ID

		if len(res.Report.Reps) != 3 {
			t.Errorf("reps = %d, want 3", len(res.Report.Reps))
		}
		if res.Report.Analysis == nil || res.Report.Analysis.Final.Grade == "" {
			t.Fatal("expected a graded form analysis")
		}
		if res.Record.Score != res.Report.Analysis.Final.Score {
			t.Errorf("stored score %d != report score %d", res.Record.Score, res.Report.Analysis.Final.Score)
		}
	})

	t.Run("HookReceivedEvent", func(t *testing.T) {
		application.WaitHooks()

		data, err := os.ReadFile(marker)
		if err != nil {
			t.Fatalf("hook did not run: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		var ev hook.Event
		if err := json.Unmarshal([]byte(lines[len(lines)-1]), &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if ev.AnalysisID != analysisID || ev.Type != hook.EventAnalysisCompleted {
			t.Errorf("unexpected event %+v", ev)
		}
	})

	t.Run("ReloadChangesMapping", func(t *testing.T) {
		reloaded := "data_dir: " + tmpDir + "\nangles:\n  joints:\n    torso:\n      left: {from: 23, to: 7}\n      right: {from: 24, to: 8}\n      reference: vertical\n"
		if err := os.WriteFile(cfgPath, []byte(reloaded), 0644); err != nil {
			t.Fatal(err)
		}
		next, err := config.Load(cfgPath)
		if err != nil {
			t.Fatalf("config.Load() error = %v", err)
		}
		c, err := next.Calculator()
		if err != nil {
			t.Fatal(err)
		}
		application.SetCalculator(c)

		resp, err := client.Post(ts.URL+"/api/analyses/"+analysisID+"/reanalyze", "application/json", nil)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}

		var res app.Result
		if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
			t.Fatal(err)
		}
		if res.Report.Analysis == nil {
			t.Fatal("expected a form analysis")
		}
		if res.Report.Analysis.Torso.Scored() {
			t.Error("expected torso to be unscored without ear landmarks")
		}
	})

	t.Run("Settings", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/settings/live_enabled", strings.NewReader(`{"value":"false"}`))
		resp, err := client.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}

		v, err := s.Settings().Get("live_enabled")
		if err != nil || v != "false" {
			t.Errorf("setting = %q (%v), want false", v, err)
		}
	})

	t.Run("APIStillWorks", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/health")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("health check failed after app operations")
		}
	})
}
