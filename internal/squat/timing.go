package squat

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/formcheck/internal/angle"
)

// Hip/knee onset thresholds in milliseconds; positive means the hips move first.
const (
	HipLeadGood = 50.0
	HipLeadMin  = -50.0
)

// onsetDelta is how far, in degrees, an angle must move from its starting
// value to count as movement.
const onsetDelta = 3.0

// AnalyzeGluteDominance compares when the hips (torso angle) and knees
// (quad angle) start moving during each rep's descent. A hip-first pattern
// is preferred.
func AnalyzeGluteDominance(c *Calculation, reps []Rep) Component {
	torso, quad := c.Angles[angle.Torso], c.Angles[angle.Quad]
	if len(torso) == 0 || len(quad) == 0 {
		return errorComponent("missing angle data")
	}
	if len(reps) == 0 {
		return errorComponent("no reps available")
	}

	diffs := make([]float64, len(reps))
	for i, r := range reps {
		hip := movementOnset(torso, r.Start, r.Bottom, c.FPS)
		knee := movementOnset(quad, r.Start, r.Bottom, c.FPS)
		diffs[i] = float64(knee-hip) / c.FPS * 1000
	}
	avg := stat.Mean(diffs, nil)

	var comp Component
	switch {
	case avg >= HipLeadGood:
		comp = graded(StatusGood, "Hip-dominant pattern. Hips start %.0fms before the knees.", avg)
	case avg >= HipLeadMin:
		comp = graded(StatusWarning, "Mixed pattern. Hip and knee timing are similar (%.0fms). Try initiating with the hips.", avg)
	default:
		comp = graded(StatusPoor, "Quad-dominant pattern. Knees start %.0fms before the hips.", math.Abs(avg))
	}
	comp.Metrics = map[string]float64{"avg_timing_diff_ms": round1(avg)}
	for i, d := range diffs {
		comp.Metrics[repKey(i)] = round1(d)
	}
	return comp
}

func repKey(i int) string {
	return fmt.Sprintf("rep_%d_diff_ms", i+1)
}

// movementOnset returns the first frame in (start, end] where the angle is
// changing and has moved at least onsetDelta from its value at start.
func movementOnset(series []angle.Result, start, end int, fps float64) int {
	if start >= len(series) || end >= len(series) || end <= start {
		return start
	}

	base := startBaseline(series, start, 3)
	minVelocity := 2.0 / fps
	for i := start + 1; i <= end; i++ {
		curr, ok := series[i].Value()
		if !ok {
			continue
		}
		prev, ok := series[i-1].Value()
		if !ok {
			continue
		}
		if math.Abs(curr-prev)*fps >= minVelocity && math.Abs(curr-base) >= onsetDelta {
			return i
		}
	}
	return start
}

// startBaseline averages the first window defined values from start.
func startBaseline(series []angle.Result, start, window int) float64 {
	end := min(start+window, len(series))
	if r := angle.Mean(series[start:end]); r.Defined() {
		return r.Or(0)
	}
	return 0
}
