package squat

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/formcheck/internal/angle"
)

// Status grades a single form component.
type Status string

const (
	StatusGood    Status = "good"
	StatusWarning Status = "warning"
	StatusPoor    Status = "poor"
	StatusError   Status = "error"
)

// Component scores awarded per status.
const (
	ScoreGood    = 100
	ScoreWarning = 75
	ScorePoor    = 50
)

// rank orders statuses from best to worst.
func (s Status) rank() int {
	switch s {
	case StatusGood:
		return 0
	case StatusWarning:
		return 1
	case StatusPoor:
		return 2
	}
	return 3
}

// Component is the verdict for one aspect of form.
type Component struct {
	Status  Status             `json:"status"`
	Score   int                `json:"score,omitempty"`
	Message string             `json:"message"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// Scored reports whether the component contributes to the final score.
func (c *Component) Scored() bool {
	return c != nil && c.Status != StatusError
}

func errorComponent(format string, args ...any) Component {
	return Component{Status: StatusError, Message: fmt.Sprintf(format, args...)}
}

func graded(status Status, format string, args ...any) Component {
	c := Component{Status: status, Message: fmt.Sprintf(format, args...)}
	switch status {
	case StatusGood:
		c.Score = ScoreGood
	case StatusWarning:
		c.Score = ScoreWarning
	case StatusPoor:
		c.Score = ScorePoor
	}
	return c
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// summary holds descriptive statistics of the defined values of a series.
type summary struct {
	min, max, mean float64
}

func summarize(series []angle.Result) (summary, bool) {
	vals := angle.Defineds(series)
	if len(vals) == 0 {
		return summary{}, false
	}
	return summary{
		min:  floats.Min(vals),
		max:  floats.Max(vals),
		mean: stat.Mean(vals, nil),
	}, true
}

func (s summary) metrics(extremeKey string, extreme float64) map[string]float64 {
	return map[string]float64{
		extremeKey:    round1(extreme),
		"avg_angle":   round1(s.mean),
		"angle_range": round1(s.max - s.min),
	}
}

// Torso lean thresholds in degrees from vertical.
const (
	TorsoOptimalLow  = 35.0
	TorsoOptimalHigh = 43.0
	TorsoWarnMax     = 45.0
)

// AnalyzeTorso grades forward lean over the active rep frames. When no rep
// was found the whole recording is used.
func AnalyzeTorso(torso []angle.Result, reps []Rep) Component {
	if len(angle.Defineds(torso)) == 0 {
		return errorComponent("no torso angle data available")
	}
	if len(reps) > 0 {
		torso = Select(torso, ActiveFrames(reps))
	}
	s, ok := summarize(torso)
	if !ok {
		return errorComponent("no valid torso angle data")
	}

	var c Component
	switch {
	case s.max <= TorsoOptimalHigh && s.mean >= TorsoOptimalLow:
		c = graded(StatusGood, "Excellent torso position. Average forward lean: %.1f° (optimal range %.0f-%.0f°).", s.mean, TorsoOptimalLow, TorsoOptimalHigh)
	case s.max <= TorsoOptimalHigh:
		c = graded(StatusGood, "Good torso position. Average forward lean: %.1f° (more upright than the %.0f-%.0f° optimum, acceptable).", s.mean, TorsoOptimalLow, TorsoOptimalHigh)
		c.Score = 95
	case s.max <= TorsoWarnMax:
		c = graded(StatusWarning, "Moderate forward lean. Max angle: %.1f° (slightly above the optimal range). Keep the chest up.", s.max)
	default:
		c = graded(StatusPoor, "Excessive forward lean. Max angle: %.1f° (above %.0f°).", s.max, TorsoWarnMax)
	}
	c.Metrics = s.metrics("max_angle", s.max)
	return c
}

// Squat depth thresholds on the maximum quad angle.
const (
	DepthFull    = 70.0
	DepthPartial = 60.0
)

// AnalyzeQuad grades squat depth from the deepest quad angle reached.
func AnalyzeQuad(quad []angle.Result) Component {
	s, ok := summarize(quad)
	if !ok {
		return errorComponent("no quad angle data available")
	}

	var c Component
	switch {
	case s.max >= DepthFull:
		c = graded(StatusGood, "Excellent squat depth. Maximum quad angle: %.1f° (hip crease below knee).", s.max)
	case s.max >= DepthPartial:
		c = graded(StatusWarning, "Partial squat depth. Maximum quad angle: %.1f°. Aim for %.0f° or more.", s.max, DepthFull)
	default:
		c = graded(StatusPoor, "Insufficient squat depth. Maximum quad angle: %.1f° (below %.0f°).", s.max, DepthPartial)
	}
	c.Metrics = s.metrics("max_angle", s.max)
	return c
}

// Ankle mobility thresholds on the minimum shin angle.
const (
	AnkleMobile  = 60.0
	AnkleLimited = 70.0
)

// AnalyzeAnkle grades ankle dorsiflexion from the lowest shin angle reached.
func AnalyzeAnkle(ankle []angle.Result) Component {
	s, ok := summarize(ankle)
	if !ok {
		return errorComponent("no ankle angle data available")
	}

	var c Component
	switch {
	case s.min <= AnkleMobile:
		c = graded(StatusGood, "Good ankle mobility. Minimum angle: %.1f°.", s.min)
	case s.min <= AnkleLimited:
		c = graded(StatusWarning, "Moderate ankle mobility. Minimum angle: %.1f° (may limit depth).", s.min)
	default:
		c = graded(StatusPoor, "Limited ankle mobility. Minimum angle: %.1f° (above %.0f°).", s.min, AnkleLimited)
	}
	c.Metrics = s.metrics("min_angle", s.min)
	return c
}

// Asymmetry thresholds on the largest left/right difference.
const (
	AsymmetryMinor = 5.0
	AsymmetryMajor = 10.0
)

// AnalyzeAsymmetry grades left/right differences for one joint.
func AnalyzeAsymmetry(asym []angle.Result, kind angle.Kind) Component {
	vals := angle.Defineds(asym)
	if len(vals) == 0 {
		return errorComponent("no %s asymmetry data available", kind)
	}

	abs := make([]float64, len(vals))
	for i, v := range vals {
		abs[i] = math.Abs(v)
	}
	maxAbs := floats.Max(abs)

	var c Component
	switch {
	case maxAbs < AsymmetryMinor:
		c = graded(StatusGood, "Minimal asymmetry. Maximum difference: %.1f°.", maxAbs)
	case maxAbs < AsymmetryMajor:
		c = graded(StatusWarning, "Moderate %s asymmetry. Maximum difference: %.1f°.", kind, maxAbs)
	default:
		c = graded(StatusPoor, "Significant %s asymmetry. Maximum difference: %.1f° (above %.0f°).", kind, maxAbs, AsymmetryMajor)
	}
	c.Metrics = map[string]float64{
		"max_asymmetry":     round1(maxAbs),
		"avg_asymmetry":     round1(stat.Mean(vals, nil)),
		"avg_abs_asymmetry": round1(stat.Mean(abs, nil)),
	}
	return c
}
