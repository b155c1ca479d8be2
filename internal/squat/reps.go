package squat

import "github.com/ayusman/formcheck/internal/angle"

// Rep detection tuning.
const (
	// RepDepthThreshold is how far above the standing baseline the quad
	// angle must rise for a frame to count as part of a rep.
	RepDepthThreshold = 20.0
	// MinPeakSpacing is the minimum number of samples between two bottoms.
	MinPeakSpacing = 30
	// BounceRatio merges a second close bottom that reaches at least this
	// fraction of the first one's depth.
	BounceRatio = 0.9
	// baselineWindow is the number of samples at each end used for the
	// standing baseline.
	baselineWindow = 10
)

// Rep is one detected squat, as frame indices into the recording.
type Rep struct {
	Start  int `json:"start_frame"`
	Bottom int `json:"bottom_frame"`
	End    int `json:"end_frame"`
}

// sample is a defined angle and the frame it came from.
type sample struct {
	frame int
	value float64
}

// peak is a sample and its position in the defined-sample list.
type peak struct {
	pos int
	sample
}

// DetectReps finds squat reps in a quad angle series. Bottoms are local
// maxima of the quad angle; a rep spans the frames around a bottom where
// the angle stays above baseline+RepDepthThreshold. Close double bottoms
// (within one second) are merged.
func DetectReps(quad []angle.Result, fps float64) []Rep {
	if fps <= 0 {
		fps = DefaultFPS
	}

	samples := definedSamples(quad)
	if len(samples) == 0 {
		return []Rep{}
	}

	threshold := baseline(samples) + RepDepthThreshold
	peaks := findPeaks(samples, threshold)
	if len(peaks) == 0 {
		return []Rep{}
	}

	peaks = mergeBounces(peaks, int(fps))

	reps := make([]Rep, 0, len(peaks))
	for _, p := range peaks {
		start, end := repBounds(samples, p.pos, threshold)
		if start < end {
			reps = append(reps, Rep{Start: start, Bottom: p.frame, End: end})
		}
	}
	return reps
}

// ActiveFrames returns the sorted frame indices covered by reps.
func ActiveFrames(reps []Rep) []int {
	var out []int
	for _, r := range reps {
		for i := r.Start; i <= r.End; i++ {
			out = append(out, i)
		}
	}
	return out
}

// Select returns series values at the given frame indices; indices past
// the end of the series yield undefined.
func Select(series []angle.Result, frames []int) []angle.Result {
	out := make([]angle.Result, len(frames))
	for i, f := range frames {
		if f >= 0 && f < len(series) {
			out[i] = series[f]
		}
	}
	return out
}

func definedSamples(series []angle.Result) []sample {
	var out []sample
	for i, r := range series {
		if v, ok := r.Value(); ok {
			out = append(out, sample{frame: i, value: v})
		}
	}
	return out
}

// baseline is the lowest quad angle at the start and end of the recording,
// where the lifter is expected to be standing.
func baseline(samples []sample) float64 {
	window := samples
	if len(samples) > 2*baselineWindow {
		window = append(append([]sample(nil), samples[:baselineWindow]...), samples[len(samples)-baselineWindow:]...)
	}
	lo := window[0].value
	for _, s := range window[1:] {
		if s.value < lo {
			lo = s.value
		}
	}
	return lo
}

func isLocalMax(samples []sample, i int, minHeight float64) bool {
	if i < 2 || i >= len(samples)-2 {
		return false
	}
	v := samples[i].value
	return v >= minHeight &&
		v > samples[i-1].value && v > samples[i+1].value &&
		v > samples[i-2].value && v > samples[i+2].value
}

func findPeaks(samples []sample, minHeight float64) []peak {
	var peaks []peak
	for i := 2; i < len(samples)-2; i++ {
		if !isLocalMax(samples, i, minHeight) {
			continue
		}
		p := peak{pos: i, sample: samples[i]}
		if len(peaks) == 0 {
			peaks = append(peaks, p)
			continue
		}
		last := &peaks[len(peaks)-1]
		if p.pos-last.pos >= MinPeakSpacing {
			peaks = append(peaks, p)
		} else if p.value > last.value {
			*last = p
		}
	}
	return peaks
}

// mergeBounces collapses a bottom that follows the previous one within
// window samples and is nearly as deep.
func mergeBounces(peaks []peak, window int) []peak {
	if len(peaks) < 2 {
		return peaks
	}
	out := []peak{peaks[0]}
	for i := 1; i < len(peaks); i++ {
		prev, curr := peaks[i-1], peaks[i]
		if curr.pos-prev.pos < window && curr.value >= prev.value*BounceRatio {
			out[len(out)-1] = curr
		} else {
			out = append(out, curr)
		}
	}
	return out
}

// repBounds walks outwards from the bottom until the angle drops below
// threshold on each side.
func repBounds(samples []sample, pos int, threshold float64) (start, end int) {
	start = samples[0].frame
	for i := pos - 1; i >= 0; i-- {
		if samples[i].value < threshold {
			start = samples[i+1].frame
			break
		}
	}

	end = samples[len(samples)-1].frame
	for i := pos + 1; i < len(samples); i++ {
		if samples[i].value < threshold {
			end = samples[i-1].frame
			break
		}
	}
	return start, end
}
