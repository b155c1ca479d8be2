// Package config loads and watches the formcheck configuration file.
//
// Load(path) reads the YAML file, applies defaults and validates it; an
// empty path yields the defaults. Watch(ctx, path, onChange) reloads on
// change so the joint mapping can be swapped without a restart.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/formcheck/internal/angle"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultAddr         = "127.0.0.1:8420"
	DefaultIdleFPS      = 5
	DefaultActiveFPS    = 15
	DefaultIdleTimeout  = 2 * time.Second
	DefaultHookTimeout  = 5 * time.Second
	DefaultDetectorIdle = 30 * time.Second
)

// Config is the top-level configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	DataDir  string         `yaml:"data_dir"`
	Camera   CameraConfig   `yaml:"camera"`
	Detector DetectorConfig `yaml:"detector"`
	Angles   AnglesConfig   `yaml:"angles"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Hooks    HooksConfig    `yaml:"hooks"`
	Tray     TrayConfig     `yaml:"tray"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	// Addr is the listen address (host:port).
	Addr string `yaml:"addr"`

	// StaticDir serves a dashboard from disk when set.
	StaticDir string `yaml:"static_dir"`
}

// CameraConfig controls the live capture pipeline.
type CameraConfig struct {
	// Device is the OpenCV camera index. Negative disables live capture.
	Device int `yaml:"device"`

	// Width and Height request a capture size. Zero keeps the camera default.
	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	// IdleFPS is the frame rate while no body is in view.
	IdleFPS int `yaml:"idle_fps"`

	// ActiveFPS is the frame rate while a body is in view.
	ActiveFPS int `yaml:"active_fps"`

	// IdleTimeout is how long without a pose before dropping to IdleFPS.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// DetectorConfig configures the MediaPipe Pose subprocess.
type DetectorConfig struct {
	Script          string        `yaml:"script"`
	Python          string        `yaml:"python"`
	ModelComplexity int           `yaml:"model_complexity"`
	MinConfidence   float64       `yaml:"min_confidence"`
	MinTracking     float64       `yaml:"min_tracking_confidence"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
}

// AnglesConfig overrides the landmark mapping of the angle calculator.
type AnglesConfig struct {
	// MinVisibility treats less visible landmarks as missing. Zero disables it.
	MinVisibility float64 `yaml:"min_visibility"`

	// Joints overrides the default mapping per joint name (torso, quad,
	// ankle). Joints not listed keep their defaults.
	Joints map[string]angle.Joint `yaml:"joints"`
}

// AnalysisConfig holds offline analysis defaults.
type AnalysisConfig struct {
	// View is the default camera view: side or front.
	View string `yaml:"view"`

	// KeepFrames stores landmark frames with each analysis so it can be
	// re-run after the joint mapping changes.
	KeepFrames bool `yaml:"keep_frames"`
}

// HooksConfig locates and bounds external hook executables.
type HooksConfig struct {
	Dir     string        `yaml:"dir"`
	Timeout time.Duration `yaml:"timeout"`
}

// TrayConfig toggles the system tray menu.
type TrayConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	// Level is one of: debug | info | warn | error.
	Level string `yaml:"level"`

	// Format is one of: text | json.
	Format string `yaml:"format"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config pre-populated with default values.
func Default() *Config {
	dataDir := ".formcheck"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".formcheck")
	}

	return &Config{
		Server:  ServerConfig{Addr: DefaultAddr},
		DataDir: dataDir,
		Camera: CameraConfig{
			IdleFPS:     DefaultIdleFPS,
			ActiveFPS:   DefaultActiveFPS,
			IdleTimeout: DefaultIdleTimeout,
		},
		Detector: DetectorConfig{
			ModelComplexity: 1,
			MinConfidence:   0.5,
			MinTracking:     0.5,
			IdleTimeout:     DefaultDetectorIdle,
		},
		Analysis: AnalysisConfig{View: "side", KeepFrames: true},
		Hooks: HooksConfig{
			Dir:     filepath.Join(dataDir, "hooks"),
			Timeout: DefaultHookTimeout,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Validate checks structural constraints and enums.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Camera.IdleFPS <= 0 || c.Camera.ActiveFPS <= 0 {
		return fmt.Errorf("camera fps must be positive")
	}
	if c.Camera.Width < 0 || c.Camera.Height < 0 {
		return fmt.Errorf("camera size must not be negative")
	}
	if c.Camera.IdleTimeout <= 0 {
		return fmt.Errorf("camera.idle_timeout must be positive")
	}
	if c.Detector.ModelComplexity < 0 || c.Detector.ModelComplexity > 2 {
		return fmt.Errorf("detector.model_complexity must be 0, 1 or 2")
	}
	for name, v := range map[string]float64{
		"detector.min_confidence":          c.Detector.MinConfidence,
		"detector.min_tracking_confidence": c.Detector.MinTracking,
		"angles.min_visibility":            c.Angles.MinVisibility,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0, 1]", name)
		}
	}
	if _, err := c.Joints(); err != nil {
		return fmt.Errorf("angles.joints: %w", err)
	}
	switch c.Analysis.View {
	case "", "side", "front":
	default:
		return fmt.Errorf("analysis.view: unknown view %q", c.Analysis.View)
	}
	if c.Hooks.Timeout <= 0 {
		return fmt.Errorf("hooks.timeout must be positive")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	return nil
}

// Joints returns the default joint mapping with the configured overrides
// applied.
func (c *Config) Joints() (angle.Joints, error) {
	js := angle.DefaultJoints()
	for name, j := range c.Angles.Joints {
		kind, err := angle.ParseKind(strings.ToLower(name))
		if err != nil {
			return nil, err
		}
		js[kind] = j
	}
	if err := js.Validate(); err != nil {
		return nil, err
	}
	return js, nil
}

// Calculator builds an angle calculator from the angles section.
func (c *Config) Calculator() (*angle.Calculator, error) {
	js, err := c.Joints()
	if err != nil {
		return nil, err
	}
	return angle.NewCalculator(angle.Config{Joints: js, MinVisibility: c.Angles.MinVisibility})
}

// DBPath is the SQLite file inside the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "formcheck.db")
}

// Logger builds the slog logger described by the log section.
func (c *Config) Logger() *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return l, fmt.Errorf("unknown level %q", s)
	}
	return l, nil
}
