// Package app wires capture, pose detection, angle measurement, squat
// analysis, persistence and hooks into the formcheck application.
package app

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/formcheck/internal/angle"
	"github.com/ayusman/formcheck/internal/capture"
	"github.com/ayusman/formcheck/internal/detector"
	"github.com/ayusman/formcheck/internal/hook"
	"github.com/ayusman/formcheck/internal/squat"
	"github.com/ayusman/formcheck/internal/store"
)

// Pipeline timing defaults.
const (
	// IdleFPS is the frame rate while no body is in view.
	IdleFPS = 5
	// ActiveFPS is the frame rate while a body is in view.
	ActiveFPS = 15
	// IdleTimeout is how long without a pose before switching back to idle.
	IdleTimeout = 2 * time.Second
)

var (
	// ErrNoSource is returned by Start when no capture source is configured.
	ErrNoSource = errors.New("no capture source configured")
	// ErrNoFrames is returned by Reanalyze when an analysis has no stored frames.
	ErrNoFrames = errors.New("no stored frames for analysis")
	// ErrNoStore is returned by operations that need persistence.
	ErrNoStore = errors.New("no store configured")
)

// Config holds configuration options for the application.
type Config struct {
	Store    *store.Store
	Source   capture.Source
	Detector detector.Detector
	Hooks    *hook.Dispatcher

	// Calculator measures joint angles; angle.Default() when nil.
	Calculator *angle.Calculator
	// MinVisibility is kept when the joint mapping is swapped.
	MinVisibility float64

	IdleFPS     int
	ActiveFPS   int
	IdleTimeout time.Duration

	// View is the default camera view of offline analyses.
	View squat.View
	// KeepFrames stores landmark frames with each analysis for Reanalyze.
	KeepFrames bool
}

// App is the main application. It runs the live feedback pipeline and the
// offline squat analyses.
type App struct {
	config Config
	calc   atomic.Pointer[angle.Calculator]

	// detectMu serializes detector access between the live pipeline and
	// offline analyses.
	detectMu sync.Mutex

	enabled atomic.Bool
	active  atomic.Bool

	mu     sync.Mutex
	stopCh chan struct{}
	doneCh chan struct{}

	subsMu  sync.RWMutex
	subs    map[int]chan Feedback
	nextSub int
	last    atomic.Pointer[Feedback]
	preview atomic.Pointer[[]byte]

	hooksWG sync.WaitGroup
}

// New creates a new App with the given configuration.
func New(config Config) *App {
	if config.IdleFPS <= 0 {
		config.IdleFPS = IdleFPS
	}
	if config.ActiveFPS <= 0 {
		config.ActiveFPS = ActiveFPS
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = IdleTimeout
	}
	if config.View == squat.ViewUnknown {
		config.View = squat.ViewSide
	}
	if config.Detector == nil {
		config.Detector = detector.NewMockDetector()
	}

	a := &App{
		config: config,
		subs:   make(map[int]chan Feedback),
	}

	calc := config.Calculator
	if calc == nil {
		calc = angle.Default()
	}
	a.calc.Store(calc)

	return a
}

// Calculator returns the angle calculator currently in use.
func (a *App) Calculator() *angle.Calculator {
	return a.calc.Load()
}

// SetCalculator swaps the angle calculator. In-flight measurements finish
// with the previous one.
func (a *App) SetCalculator(c *angle.Calculator) {
	if c == nil {
		return
	}
	a.calc.Store(c)
	slog.Info("app: angle calculator replaced")
}

// SetJoints swaps the joint mapping, keeping the configured visibility
// threshold.
func (a *App) SetJoints(js angle.Joints) error {
	c, err := angle.NewCalculator(angle.Config{Joints: js, MinVisibility: a.config.MinVisibility})
	if err != nil {
		return err
	}
	a.SetCalculator(c)
	return nil
}

// SetEnabled enables or disables live feedback.
func (a *App) SetEnabled(enabled bool) {
	a.enabled.Store(enabled)
}

// IsEnabled returns whether live feedback is enabled.
func (a *App) IsEnabled() bool {
	return a.enabled.Load()
}

// Active reports whether the pipeline is running at the active frame rate.
func (a *App) Active() bool {
	return a.active.Load()
}

// Running reports whether the live pipeline has been started.
func (a *App) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopCh != nil
}

// Start opens the capture source and begins the live pipeline.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}
	if a.config.Source == nil {
		return ErrNoSource
	}

	if err := a.config.Source.Open(); err != nil {
		return err
	}
	a.config.Source.SetFPS(a.config.IdleFPS)
	a.active.Store(false)

	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go a.runPipeline(a.stopCh, a.doneCh)

	slog.Info("app: live pipeline started", "idle_fps", a.config.IdleFPS, "active_fps", a.config.ActiveFPS)
	return nil
}

// Stop halts the live pipeline and releases the capture source.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh == nil {
		return
	}
	close(a.stopCh)
	<-a.doneCh
	a.stopCh, a.doneCh = nil, nil

	if err := a.config.Source.Close(); err != nil {
		slog.Error("app: closing capture source", "err", err)
	}
	slog.Info("app: live pipeline stopped")
}

// Close stops the pipeline, waits for running hooks and closes the
// detector.
func (a *App) Close() error {
	a.Stop()
	a.hooksWG.Wait()

	a.detectMu.Lock()
	defer a.detectMu.Unlock()
	return a.config.Detector.Close()
}

// Store returns the store, which may be nil.
func (a *App) Store() *store.Store {
	return a.config.Store
}

// Detector returns the pose detector.
func (a *App) Detector() detector.Detector {
	return a.config.Detector
}

// Preview returns the JPEG of the latest live frame.
func (a *App) Preview() ([]byte, bool) {
	p := a.preview.Load()
	if p == nil {
		return nil, false
	}
	return *p, true
}
