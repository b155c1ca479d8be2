package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ayusman/formcheck/internal/app"
	"github.com/ayusman/formcheck/internal/capture"
	"github.com/ayusman/formcheck/internal/config"
	"github.com/ayusman/formcheck/internal/detector"
	"github.com/ayusman/formcheck/internal/hook"
	"github.com/ayusman/formcheck/internal/pose"
	"github.com/ayusman/formcheck/internal/server"
	"github.com/ayusman/formcheck/internal/squat"
	"github.com/ayusman/formcheck/internal/store"
	"github.com/ayusman/formcheck/internal/tray"
)

// settingLive persists the live feedback toggle across restarts.
const settingLive = "live_enabled"

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	analyze := flag.String("analyze", "", "analyze a video or landmark JSON file, print the report and exit")
	view := flag.String("view", "", "camera view for -analyze: side or front")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	slog.SetDefault(cfg.Logger())

	if *analyze != "" {
		if err := runAnalyze(cfg, *analyze, squat.View(*view)); err != nil {
			slog.Error("analysis failed", "err", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg, *configPath); err != nil {
		slog.Error("formcheck stopped", "err", err)
		os.Exit(1)
	}
}

// newDetector starts the MediaPipe detector, falling back to the mock when
// the pose service is unavailable.
func newDetector(cfg *config.Config) detector.Detector {
	mp, err := detector.NewMediaPipeDetector(detector.Config{
		ModelComplexity: cfg.Detector.ModelComplexity,
		MinConfidence:   cfg.Detector.MinConfidence,
		MinTrackingConf: cfg.Detector.MinTracking,
		ScriptPath:      cfg.Detector.Script,
		PythonPath:      cfg.Detector.Python,
		IdleTimeout:     cfg.Detector.IdleTimeout,
	})
	if err != nil {
		slog.Warn("MediaPipe not available, using mock detector", "err", err)
		return detector.NewMockDetector()
	}
	slog.Info("using MediaPipe pose detection")
	return mp
}

// runAnalyze analyzes one file without persisting it. JSON files hold
// landmark frames; anything else is read as video.
func runAnalyze(cfg *config.Config, path string, view squat.View) error {
	calc, err := cfg.Calculator()
	if err != nil {
		return err
	}
	if view == squat.ViewUnknown {
		view = squat.View(cfg.Analysis.View)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := app.AnalyzeOptions{Filename: filepath.Base(path), View: view}

	var res *app.Result
	if strings.EqualFold(filepath.Ext(path), ".json") {
		a := app.New(app.Config{Calculator: calc, View: view})
		defer a.Close()

		frames, fps, err := readFrames(path)
		if err != nil {
			return err
		}
		opts.FPS = fps
		res, err = a.AnalyzeFrames(ctx, frames, opts)
		if err != nil {
			return err
		}
	} else {
		a := app.New(app.Config{Calculator: calc, Detector: newDetector(cfg), View: view})
		defer a.Close()

		res, err = a.AnalyzeVideo(ctx, path, opts)
		if err != nil {
			return err
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res.Report)
}

// readFrames decodes {"fps": n, "frames": [...]} or a bare frame array.
func readFrames(path string) ([]pose.Frame, float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}

	var session struct {
		FPS    float64      `json:"fps"`
		Frames []pose.Frame `json:"frames"`
	}
	if err := json.Unmarshal(data, &session); err == nil && session.Frames != nil {
		return session.Frames, session.FPS, nil
	}

	var frames []pose.Frame
	if err := json.Unmarshal(data, &frames); err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", path, err)
	}
	return frames, 0, nil
}

func run(cfg *config.Config, configPath string) error {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	st, err := store.New(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close()

	hooks := hook.NewManager(cfg.Hooks.Dir)
	if err := hooks.Discover(); err != nil {
		slog.Warn("hook discovery failed", "dir", cfg.Hooks.Dir, "err", err)
	}
	slog.Info("hooks discovered", "dir", cfg.Hooks.Dir, "count", len(hooks.List()))

	calc, err := cfg.Calculator()
	if err != nil {
		return err
	}

	var source capture.Source
	if cfg.Camera.Device >= 0 {
		cam := capture.NewCamera(cfg.Camera.Device)
		cam.SetResolution(cfg.Camera.Width, cfg.Camera.Height)
		source = cam
	}

	a := app.New(app.Config{
		Store:         st,
		Source:        source,
		Detector:      newDetector(cfg),
		Hooks:         hook.NewDispatcher(hooks, hook.NewExecutor(cfg.Hooks.Timeout)),
		Calculator:    calc,
		MinVisibility: cfg.Angles.MinVisibility,
		IdleFPS:       cfg.Camera.IdleFPS,
		ActiveFPS:     cfg.Camera.ActiveFPS,
		IdleTimeout:   cfg.Camera.IdleTimeout,
		View:          squat.View(cfg.Analysis.View),
		KeepFrames:    cfg.Analysis.KeepFrames,
	})
	defer a.Close()

	a.SetEnabled(liveEnabled(st))
	if source != nil {
		if err := a.Start(); err != nil {
			slog.Warn("live pipeline not started", "device", cfg.Camera.Device, "err", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if configPath != "" {
		go func() {
			err := config.Watch(ctx, configPath, func(next *config.Config) {
				c, err := next.Calculator()
				if err != nil {
					slog.Error("config: joint mapping rejected", "err", err)
					return
				}
				a.SetCalculator(c)
			})
			if err != nil {
				slog.Error("config: watch failed", "err", err)
			}
		}()
	}

	staticDir := cfg.Server.StaticDir
	if staticDir == "" {
		staticDir = findWebDir(cfg.DataDir)
	}
	if staticDir != "" {
		slog.Info("serving static files", "dir", staticDir)
	}

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.New(server.Config{StaticDir: staticDir, Store: st, App: a}),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if cfg.Tray.Enabled {
		t := tray.New()
		t.SetEnabled(a.IsEnabled())
		t.OnToggle(func(enabled bool) {
			a.SetEnabled(enabled)
			if err := st.Settings().Set(settingLive, strconv.FormatBool(enabled)); err != nil {
				slog.Warn("saving live toggle", "err", err)
			}
		})
		t.OnDashboard(func() { openBrowser("http://" + cfg.Server.Addr) })
		t.OnQuit(stop)

		feed, unsubscribe := a.Subscribe()
		defer unsubscribe()
		go t.Follow(feed)
		go func() {
			<-ctx.Done()
			t.Quit()
		}()

		// systray needs the main goroutine.
		t.Run()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// liveEnabled reads the persisted live toggle, defaulting to on.
func liveEnabled(st *store.Store) bool {
	v, err := st.Settings().Get(settingLive)
	if err != nil {
		return true
	}
	enabled, err := strconv.ParseBool(v)
	if err != nil {
		return true
	}
	return enabled
}

// findWebDir searches for the dashboard directory in common locations:
// "web", "../web", "../../web" and the data directory.
func findWebDir(dataDir string) string {
	for _, p := range []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

func openBrowser(url string) {
	cmd := "xdg-open"
	if runtime.GOOS == "darwin" {
		cmd = "open"
	}
	if err := exec.Command(cmd, url).Start(); err != nil {
		slog.Warn("opening browser", "url", url, "err", err)
	}
}
