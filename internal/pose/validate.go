package pose

import "fmt"

// Batch quality thresholds, as fractions of frames with a valid pose.
const (
	MinValidFraction  = 0.3
	WarnValidFraction = 0.7
)

// SquatRequired lists the landmarks a squat analysis needs in every frame:
// shoulders, hips, knees and ankles.
var SquatRequired = []int{
	LeftShoulder, RightShoulder,
	LeftHip, RightHip,
	LeftKnee, RightKnee,
	LeftAnkle, RightAnkle,
}

// SquatCritical lists the landmarks without which no squat metric can be
// derived at all (hips and knees).
var SquatCritical = []int{LeftHip, RightHip, LeftKnee, RightKnee}

// FrameValidation describes how complete a single frame is.
type FrameValidation struct {
	Valid   bool     `json:"is_valid"`
	HasPose bool     `json:"has_pose"`
	Missing []int    `json:"missing_landmarks"`
	Score   float64  `json:"validation_score"`
	Errors  []string `json:"errors"`
}

// BatchValidation aggregates FrameValidation over a sequence of frames.
type BatchValidation struct {
	OverallValid   bool              `json:"overall_valid"`
	ValidFrames    int               `json:"valid_frame_count"`
	TotalFrames    int               `json:"total_frame_count"`
	ValidFraction  float64           `json:"valid_frame_percentage"`
	MissingFrames  []int             `json:"missing_critical_frames"`
	QualityScore   float64           `json:"quality_score"`
	Errors         []string          `json:"errors"`
	Warnings       []string          `json:"warnings"`
	Recommendation string            `json:"recommendation,omitempty"`
	PerFrame       []FrameValidation `json:"-"`
}

// ValidateFrame checks that every required landmark is present and finite.
// The score is the fraction of required landmarks that are usable.
func ValidateFrame(f Frame, required []int) FrameValidation {
	if !f.HasPose() {
		missing := append([]int(nil), required...)
		return FrameValidation{
			Missing: missing,
			Errors:  []string{"no pose detected in frame"},
		}
	}

	var missing []int
	for _, idx := range required {
		if _, ok := f.Get(idx); !ok {
			missing = append(missing, idx)
		}
	}

	score := 1.0
	if len(required) > 0 {
		score = 1.0 - float64(len(missing))/float64(len(required))
	}

	v := FrameValidation{
		Valid:   len(missing) == 0,
		HasPose: true,
		Missing: missing,
		Score:   score,
	}
	if len(missing) > 0 {
		v.Errors = append(v.Errors, fmt.Sprintf("missing landmarks: %v", missing))
	}
	return v
}

// ValidateBatch validates each frame and summarises detection quality.
// A batch is usable when at least MinValidFraction of frames are valid.
func ValidateBatch(frames []Frame, required []int) BatchValidation {
	if len(frames) == 0 {
		return BatchValidation{
			Errors:         []string{"no landmarks provided"},
			Recommendation: "No video frames to validate",
		}
	}

	b := BatchValidation{
		TotalFrames: len(frames),
		PerFrame:    make([]FrameValidation, len(frames)),
	}

	var totalScore float64
	for i, f := range frames {
		v := ValidateFrame(f, required)
		b.PerFrame[i] = v
		if v.Valid {
			b.ValidFrames++
		} else if len(required) > 0 {
			b.MissingFrames = append(b.MissingFrames, i)
		}
		totalScore += v.Score
	}

	n := float64(len(frames))
	b.ValidFraction = float64(b.ValidFrames) / n
	b.QualityScore = totalScore / n
	b.OverallValid = b.ValidFraction >= MinValidFraction

	switch {
	case b.ValidFraction < MinValidFraction:
		b.Errors = append(b.Errors, fmt.Sprintf("only %.0f%% of frames have valid pose detection", b.ValidFraction*100))
	case b.ValidFraction < WarnValidFraction:
		b.Warnings = append(b.Warnings, fmt.Sprintf("low pose detection quality: %.0f%% of frames valid", b.ValidFraction*100))
	}
	if !b.OverallValid {
		b.Recommendation = "Ensure shoulders, hips, knees and ankles are fully visible throughout the video."
	}

	return b
}

// MissingCritical returns the critical landmarks absent from a validation.
func (v FrameValidation) MissingCritical(critical []int) []int {
	var out []int
	for _, m := range v.Missing {
		for _, c := range critical {
			if m == c {
				out = append(out, m)
				break
			}
		}
	}
	return out
}
