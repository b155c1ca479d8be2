package squat

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/formcheck/internal/angle"
)

// Coefficient-of-variation thresholds, in percent.
const (
	ConsistencyTight = 5.0
	ConsistencyLoose = 10.0
)

// Variation describes rep-to-rep spread of one per-rep metric.
type Variation struct {
	Status  Status  `json:"status"`
	Score   int     `json:"score,omitempty"`
	CV      float64 `json:"cv"`
	Mean    float64 `json:"mean"`
	Std     float64 `json:"std"`
	Message string  `json:"message"`
}

// Consistency grades how repeatable the reps of a set were.
type Consistency struct {
	Component
	RepCount  int          `json:"rep_count"`
	Depth     Variation    `json:"depth_consistency"`
	Torso     Variation    `json:"torso_consistency"`
	Asymmetry Variation    `json:"asymmetry_consistency"`
	Shape     angle.Result `json:"shape_distance"`
}

// AnalyzeConsistency compares reps by their maximum depth, mean torso lean
// and mean absolute quad asymmetry. Needs at least two reps.
func AnalyzeConsistency(c *Calculation, reps []Rep) *Consistency {
	if len(reps) < 2 {
		return &Consistency{
			Component: errorComponent("need at least 2 reps for consistency analysis"),
			RepCount:  len(reps),
		}
	}

	quad := c.Angles[angle.Quad]
	depth := perRep(quad, reps, floats.Max)
	torso := perRep(c.Angles[angle.Torso], reps, func(v []float64) float64 { return stat.Mean(v, nil) })
	asym := perRep(c.Asymmetry[angle.Quad], reps, meanAbs)

	out := &Consistency{
		RepCount:  len(reps),
		Depth:     variation(depth, "depth"),
		Torso:     variation(torso, "torso"),
		Asymmetry: variation(asym, "asymmetry"),
		Shape:     ShapeDistance(quad, reps),
	}

	parts := []Variation{out.Depth, out.Torso, out.Asymmetry}
	worst := StatusGood
	total := 0
	for _, p := range parts {
		if p.Status == StatusError {
			out.Component = errorComponent("insufficient data for consistency analysis: %s", p.Message)
			return out
		}
		if p.Status.rank() > worst.rank() {
			worst = p.Status
		}
		total += p.Score
	}

	out.Component = Component{
		Status:  worst,
		Score:   total / len(parts),
		Message: fmt.Sprintf("Rep consistency across %d reps: depth CV %.1f%%, torso CV %.1f%%.", len(reps), out.Depth.CV, out.Torso.CV),
	}
	return out
}

func meanAbs(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += math.Abs(x)
	}
	return sum / float64(len(v))
}

// perRep reduces each rep's defined values with fn, skipping empty reps.
func perRep(series []angle.Result, reps []Rep, fn func([]float64) float64) []float64 {
	var out []float64
	for _, r := range reps {
		vals := repCurve(series, r)
		if len(vals) == 0 {
			continue
		}
		out = append(out, fn(vals))
	}
	return out
}

// variation computes the population coefficient of variation of values.
func variation(values []float64, name string) Variation {
	if len(values) < 2 {
		return Variation{Status: StatusError, Message: fmt.Sprintf("no %s data", name)}
	}

	mean, std := stat.PopMeanStdDev(values, nil)
	v := Variation{Mean: round1(mean), Std: round1(std)}

	var cv float64
	switch {
	case math.Abs(mean) < 1e-9 && std < 1e-9:
		cv = 0
	case mean == 0:
		v.Status = StatusError
		v.Message = fmt.Sprintf("%s varies around zero", name)
		return v
	default:
		cv = std / math.Abs(mean) * 100
	}
	v.CV = round1(cv)

	switch {
	case cv < ConsistencyTight:
		v.Status, v.Score = StatusGood, ScoreGood
		v.Message = fmt.Sprintf("Excellent %s consistency (CV: %.1f%%).", name, cv)
	case cv < ConsistencyLoose:
		v.Status, v.Score = StatusWarning, ScoreWarning
		v.Message = fmt.Sprintf("Moderate %s variability (CV: %.1f%%).", name, cv)
	default:
		v.Status, v.Score = StatusPoor, ScorePoor
		v.Message = fmt.Sprintf("Significant %s variability (CV: %.1f%%); possible fatigue or form breakdown.", name, cv)
	}
	return v
}
