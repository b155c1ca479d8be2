// Package squat turns per-frame joint angles into squat reps and form scores.
package squat

import (
	"github.com/ayusman/formcheck/internal/angle"
	"github.com/ayusman/formcheck/internal/pose"
)

// Exercise identifiers.
const (
	ExerciseID   = 1
	ExerciseName = "Squat"
)

// DefaultFPS is assumed when a recording does not report its frame rate.
const DefaultFPS = 30.0

// Calculation holds the per-frame angle series of one recording.
type Calculation struct {
	FPS        float64                       `json:"fps"`
	FrameCount int                           `json:"frame_count"`
	Angles     map[angle.Kind][]angle.Result `json:"angles_per_frame"`
	Asymmetry  map[angle.Kind][]angle.Result `json:"asymmetry_per_frame"`
}

// Calculate computes every joint angle and left/right asymmetry per frame.
func Calculate(calc *angle.Calculator, frames []pose.Frame, fps float64) *Calculation {
	if fps <= 0 {
		fps = DefaultFPS
	}

	c := &Calculation{
		FPS:        fps,
		FrameCount: len(frames),
		Angles:     make(map[angle.Kind][]angle.Result, len(angle.Kinds)),
		Asymmetry:  make(map[angle.Kind][]angle.Result, len(angle.Kinds)),
	}
	for _, k := range angle.Kinds {
		c.Angles[k] = calc.Series(frames, k)
		c.Asymmetry[k] = calc.AsymmetrySeries(frames, k)
	}
	return c
}

// Series returns the angle series for a joint, or nil if absent.
func (c *Calculation) Series(k angle.Kind) []angle.Result {
	return c.Angles[k]
}
