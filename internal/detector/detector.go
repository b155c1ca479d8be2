// Package detector turns camera frames into pose landmarks.
package detector

import (
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/formcheck/internal/pose"
)

// Detector defines the interface for pose detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns the detected body landmarks.
	// A frame without a person yields an empty pose.Frame and no error.
	Detect(frame *gocv.Mat) (pose.Frame, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for pose detection.
type Config struct {
	// ModelComplexity selects the MediaPipe Pose model (0, 1 or 2).
	ModelComplexity int `yaml:"model_complexity"`

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64 `yaml:"min_confidence"`

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64 `yaml:"min_tracking_confidence"`

	// ScriptPath points at pose_service.py. Searched for when empty.
	ScriptPath string `yaml:"script"`

	// PythonPath is the interpreter. A venv is searched for when empty.
	PythonPath string `yaml:"python"`

	// IdleTimeout stops the subprocess after this long without a frame.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		ModelComplexity: 1,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
		IdleTimeout:     30 * time.Second,
	}
}
