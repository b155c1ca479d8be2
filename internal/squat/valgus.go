package squat

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/formcheck/internal/angle"
	"github.com/ayusman/formcheck/internal/pose"
)

// View is the camera position relative to the lifter.
type View string

const (
	ViewUnknown View = ""
	ViewSide    View = "side"
	ViewFront   View = "front"
)

// Knee alignment thresholds, in degrees of deviation from a straight leg.
const (
	ValgusMinor = 4.0
	ValgusMajor = 8.0
)

const minLength = 1e-10

// FrontalKneeAngle returns the frontal plane projection angle at the knee
// (hip-knee-ankle), measured so that 180 is a straight leg, below 180 is
// valgus (knee caving in) and above 180 is varus.
func FrontalKneeAngle(hip, knee, ankle pose.Landmark) angle.Result {
	if !hip.IsFinite() || !knee.IsFinite() || !ankle.IsFinite() {
		return angle.Undefined()
	}
	v1x, v1y := hip.X-knee.X, hip.Y-knee.Y
	v2x, v2y := ankle.X-knee.X, ankle.Y-knee.Y

	m1, m2 := math.Hypot(v1x, v1y), math.Hypot(v2x, v2y)
	if m1 < minLength || m2 < minLength {
		return angle.Undefined()
	}

	cos := (v1x*v2x + v1y*v2y) / (m1 * m2)
	cos = math.Max(-1, math.Min(1, cos))
	rad := math.Acos(cos)
	if v1x*v2y-v1y*v2x > 0 {
		rad = 2*math.Pi - rad
	}
	return angle.Degrees(rad * 180 / math.Pi)
}

// valgusSeries returns the mean left/right knee angle for frames inside a
// rep, undefined elsewhere.
func valgusSeries(frames []pose.Frame, reps []Rep) []angle.Result {
	active := make(map[int]bool)
	for _, f := range ActiveFrames(reps) {
		active[f] = true
	}

	out := make([]angle.Result, len(frames))
	for i, f := range frames {
		if !active[i] {
			continue
		}
		left := kneeAngle(f, pose.LeftHip, pose.LeftKnee, pose.LeftAnkle)
		right := kneeAngle(f, pose.RightHip, pose.RightKnee, pose.RightAnkle)
		if left.Defined() && right.Defined() {
			out[i] = angle.Mean([]angle.Result{left, right})
		}
	}
	return out
}

func kneeAngle(f pose.Frame, hip, knee, ankle int) angle.Result {
	h, ok1 := f.Get(hip)
	k, ok2 := f.Get(knee)
	a, ok3 := f.Get(ankle)
	if !ok1 || !ok2 || !ok3 {
		return angle.Undefined()
	}
	return FrontalKneeAngle(h, k, a)
}

// AnalyzeKneeValgus grades knee tracking during reps. Only meaningful for
// front-view recordings.
func AnalyzeKneeValgus(frames []pose.Frame, reps []Rep) Component {
	if len(frames) == 0 || len(reps) == 0 {
		return errorComponent("missing landmarks or rep data")
	}
	vals := angle.Defineds(valgusSeries(frames, reps))
	if len(vals) == 0 {
		return errorComponent("no valid knee alignment data available")
	}

	devs := make([]float64, len(vals))
	for i, v := range vals {
		devs[i] = math.Abs(180 - v)
	}
	worst := floats.MaxIdx(devs)
	maxDev, extreme := devs[worst], vals[worst]

	var c Component
	switch {
	case maxDev < ValgusMinor:
		c = graded(StatusGood, "Knees track well. Knee angle: %.1f° (%.1f° from straight).", extreme, maxDev)
	case maxDev < ValgusMajor && extreme < 180:
		c = graded(StatusWarning, "Moderate knee valgus. Knee angle: %.1f° (%.1f° inward). Strengthen hip abductors.", extreme, maxDev)
	case maxDev < ValgusMajor:
		c = graded(StatusWarning, "Moderate knee varus. Knee angle: %.1f° (%.1f° outward).", extreme, maxDev)
	case extreme < 180:
		c = graded(StatusPoor, "Significant knee valgus. Knee angle: %.1f° (%.1f° inward). Knees are caving in.", extreme, maxDev)
	default:
		c = graded(StatusWarning, "Significant knee varus. Knee angle: %.1f° (%.1f° outward).", extreme, maxDev)
	}
	c.Metrics = map[string]float64{
		"max_fppa":               round1(floats.Max(vals)),
		"avg_fppa":               round1(stat.Mean(vals, nil)),
		"fppa_range":             round1(floats.Max(vals) - floats.Min(vals)),
		"max_deviation_from_180": round1(maxDev),
	}
	return c
}
