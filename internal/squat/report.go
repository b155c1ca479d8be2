package squat

import (
	"github.com/ayusman/formcheck/internal/angle"
	"github.com/ayusman/formcheck/internal/pose"
)

// Weights of each component in the final score. Components that could not
// be graded are left out and the remaining weights renormalized.
var Weights = map[string]float64{
	"torso_angle":     0.25,
	"quad_angle":      0.25,
	"glute_dominance": 0.12,
	"rep_consistency": 0.18,
	"torso_asymmetry": 0.08,
	"quad_asymmetry":  0.07,
	"ankle_asymmetry": 0.05,
}

// FinalScore is the weighted overall grade of a set.
type FinalScore struct {
	Score      int            `json:"final_score"`
	Grade      string         `json:"grade"`
	Components map[string]int `json:"component_scores"`
}

// Grade converts a final score to its label.
func Grade(score int) string {
	switch {
	case score >= 90:
		return "Excellent"
	case score >= 75:
		return "Good"
	case score >= 60:
		return "Fair"
	}
	return "Needs Improvement"
}

// Analysis is the graded form of one recorded set.
type Analysis struct {
	Torso          Component    `json:"torso_angle"`
	Quad           Component    `json:"quad_angle"`
	Ankle          Component    `json:"ankle_angle"`
	TorsoAsymmetry Component    `json:"torso_asymmetry"`
	QuadAsymmetry  Component    `json:"quad_asymmetry"`
	AnkleAsymmetry Component    `json:"ankle_asymmetry"`
	Consistency    *Consistency `json:"rep_consistency,omitempty"`
	GluteDominance *Component   `json:"glute_dominance,omitempty"`
	KneeValgus     *Component   `json:"knee_valgus,omitempty"`
	Final          FinalScore   `json:"final_score"`
}

func (a *Analysis) components() map[string]*Component {
	m := map[string]*Component{
		"torso_angle":     &a.Torso,
		"quad_angle":      &a.Quad,
		"torso_asymmetry": &a.TorsoAsymmetry,
		"quad_asymmetry":  &a.QuadAsymmetry,
		"ankle_asymmetry": &a.AnkleAsymmetry,
		"glute_dominance": a.GluteDominance,
	}
	if a.Consistency != nil {
		m["rep_consistency"] = &a.Consistency.Component
	}
	return m
}

// score computes the weighted final score over the graded components.
func (a *Analysis) score() FinalScore {
	var weighted, total float64
	fs := FinalScore{Components: make(map[string]int)}
	for key, c := range a.components() {
		if !c.Scored() {
			continue
		}
		w := Weights[key]
		weighted += float64(c.Score) * w
		total += w
		fs.Components[key] = c.Score
	}
	if total > 0 {
		fs.Score = int(weighted / total)
	}
	fs.Grade = Grade(fs.Score)
	return fs
}

// Options tune an analysis.
type Options struct {
	// FPS of the recording; DefaultFPS when zero.
	FPS float64
	// View enables view-specific checks such as knee valgus.
	View View
}

// Report is the full offline analysis of one recording.
type Report struct {
	Exercise     int                  `json:"exercise"`
	ExerciseName string               `json:"exercise_name"`
	Calculation  *Calculation         `json:"calculation_results"`
	Reps         []Rep                `json:"reps"`
	Validation   pose.BatchValidation `json:"validation"`
	Analysis     *Analysis            `json:"form_analysis,omitempty"`
}

// Score returns the final score, or zero when no analysis was possible.
func (r *Report) Score() int {
	if r.Analysis == nil {
		return 0
	}
	return r.Analysis.Final.Score
}

// Analyze runs the whole squat pipeline over a recording: per-frame angles,
// rep detection and component grading. Form analysis is omitted when no
// rep is found.
func Analyze(calc *angle.Calculator, frames []pose.Frame, opts Options) *Report {
	c := Calculate(calc, frames, opts.FPS)
	reps := DetectReps(c.Angles[angle.Quad], c.FPS)

	r := &Report{
		Exercise:     ExerciseID,
		ExerciseName: ExerciseName,
		Calculation:  c,
		Reps:         reps,
		Validation:   pose.ValidateBatch(frames, pose.SquatRequired),
	}
	if len(reps) == 0 {
		return r
	}

	a := &Analysis{
		Torso:          AnalyzeTorso(c.Angles[angle.Torso], reps),
		Quad:           AnalyzeQuad(Select(c.Angles[angle.Quad], ActiveFrames(reps))),
		Ankle:          AnalyzeAnkle(Select(c.Angles[angle.Ankle], ActiveFrames(reps))),
		TorsoAsymmetry: AnalyzeAsymmetry(Select(c.Asymmetry[angle.Torso], ActiveFrames(reps)), angle.Torso),
		QuadAsymmetry:  AnalyzeAsymmetry(Select(c.Asymmetry[angle.Quad], ActiveFrames(reps)), angle.Quad),
		AnkleAsymmetry: AnalyzeAsymmetry(Select(c.Asymmetry[angle.Ankle], ActiveFrames(reps)), angle.Ankle),
		Consistency:    AnalyzeConsistency(c, reps),
	}

	if g := AnalyzeGluteDominance(c, reps); g.Scored() {
		a.GluteDominance = &g
	}
	if opts.View == ViewFront {
		if v := AnalyzeKneeValgus(frames, reps); v.Scored() {
			a.KneeValgus = &v
		}
	}

	a.Final = a.score()
	r.Analysis = a
	return r
}
