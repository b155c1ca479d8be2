package squat

import (
	"math"

	"github.com/ayusman/formcheck/internal/angle"
)

// DTWDistance calculates the Dynamic Time Warping distance between two angle
// curves in degrees, normalized by the longer curve's length. It returns
// +Inf if either curve is empty. Warping makes a slow and a fast rep of the
// same shape compare as close.
func DTWDistance(a, b []float64) float64 {
	n, m := len(a), len(b)
	if n == 0 || m == 0 {
		return math.Inf(1)
	}

	// Two rolling rows of the (n+1) x (m+1) cost matrix.
	prev := make([]float64, m+1)
	curr := make([]float64, m+1)
	for j := range prev {
		prev[j] = math.Inf(1)
	}
	prev[0] = 0

	for i := 1; i <= n; i++ {
		curr[0] = math.Inf(1)
		for j := 1; j <= m; j++ {
			cost := math.Abs(a[i-1] - b[j-1])
			curr[j] = cost + min(prev[j], curr[j-1], prev[j-1])
		}
		prev, curr = curr, prev
	}

	return prev[m] / float64(max(n, m))
}

// repCurve returns the defined angles of series within the rep.
func repCurve(series []angle.Result, r Rep) []float64 {
	frames := make([]int, 0, r.End-r.Start+1)
	for i := r.Start; i <= r.End; i++ {
		frames = append(frames, i)
	}
	return angle.Defineds(Select(series, frames))
}

// ShapeDistance returns the mean DTW distance of every rep's curve to the
// first rep's curve. It is undefined with fewer than two usable reps.
func ShapeDistance(series []angle.Result, reps []Rep) angle.Result {
	if len(reps) < 2 {
		return angle.Undefined()
	}
	ref := repCurve(series, reps[0])
	if len(ref) == 0 {
		return angle.Undefined()
	}

	var dists []angle.Result
	for _, r := range reps[1:] {
		d := DTWDistance(ref, repCurve(series, r))
		dists = append(dists, angle.Degrees(d))
	}
	return angle.Mean(dists)
}
