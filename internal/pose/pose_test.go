package pose

import (
	"encoding/json"
	"math"
	"testing"
)

func TestNewFrame(t *testing.T) {
	t.Run("list position becomes landmark index", func(t *testing.T) {
		points := make([]Landmark, NumLandmarks)
		points[LeftHip] = Landmark{X: 0.4, Y: 0.6}

		f := NewFrame(points, 1234)

		got, ok := f.Get(LeftHip)
		if !ok {
			t.Fatal("expected left hip to be present")
		}
		if got.X != 0.4 || got.Y != 0.6 {
			t.Errorf("expected (0.4, 0.6), got (%f, %f)", got.X, got.Y)
		}
		if f.Timestamp != 1234 {
			t.Errorf("expected timestamp 1234, got %d", f.Timestamp)
		}
	})

	t.Run("empty list has no pose", func(t *testing.T) {
		f := NewFrame(nil, 0)
		if f.HasPose() {
			t.Error("expected no pose for empty landmark list")
		}
	})

	t.Run("extra points are dropped", func(t *testing.T) {
		points := make([]Landmark, NumLandmarks+5)
		f := NewFrame(points, 0)
		if len(f.Landmarks) != NumLandmarks {
			t.Errorf("expected %d landmarks, got %d", NumLandmarks, len(f.Landmarks))
		}
	})
}

func TestFrame_Get(t *testing.T) {
	f := Frame{Landmarks: map[int]Landmark{
		LeftHip:      {X: 0.5, Y: 0.5},
		LeftShoulder: {X: math.NaN(), Y: 0.2},
		LeftKnee:     {X: 0.5, Y: math.Inf(1)},
		RightKnee:    {X: 0.5, Y: 0.7, Z: math.NaN()},
	}}

	if _, ok := f.Get(RightKnee); !ok {
		t.Error("expected landmark with unusable depth to stay usable")
	}

	if _, ok := f.Get(LeftHip); !ok {
		t.Error("expected finite landmark to be usable")
	}
	if _, ok := f.Get(LeftShoulder); ok {
		t.Error("expected NaN landmark to be rejected")
	}
	if _, ok := f.Get(LeftKnee); ok {
		t.Error("expected infinite landmark to be rejected")
	}
	if _, ok := f.Get(RightHip); ok {
		t.Error("expected absent landmark to be rejected")
	}
}

func TestFrame_WithWithoutDoNotMutate(t *testing.T) {
	f := PostureFrame(Standing, 0)

	g := f.Without(LeftHip)
	if _, ok := f.Get(LeftHip); !ok {
		t.Error("Without must not modify the original frame")
	}
	if _, ok := g.Get(LeftHip); ok {
		t.Error("expected left hip removed from copy")
	}

	h := f.With(LeftHip, Landmark{X: 9, Y: 9})
	orig, _ := f.Get(LeftHip)
	if orig.X == 9 {
		t.Error("With must not modify the original frame")
	}
	if got, _ := h.Get(LeftHip); got.X != 9 {
		t.Errorf("expected replaced landmark X 9, got %f", got.X)
	}
}

func TestFrame_JSONRoundTrip(t *testing.T) {
	f := PostureFrame(Posture{Torso: 30, Thigh: 60, Shin: 70}, 42)

	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back Frame
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if len(back.Landmarks) != len(f.Landmarks) {
		t.Fatalf("expected %d landmarks, got %d", len(f.Landmarks), len(back.Landmarks))
	}
	if back.Landmarks[LeftKnee] != f.Landmarks[LeftKnee] {
		t.Errorf("left knee changed across JSON: %+v vs %+v", back.Landmarks[LeftKnee], f.Landmarks[LeftKnee])
	}
}

func TestValidateFrame(t *testing.T) {
	t.Run("complete frame is valid", func(t *testing.T) {
		v := ValidateFrame(PostureFrame(Standing, 0), SquatRequired)
		if !v.Valid || !v.HasPose {
			t.Errorf("expected valid frame with pose, got %+v", v)
		}
		if v.Score != 1.0 {
			t.Errorf("expected score 1.0, got %f", v.Score)
		}
	})

	t.Run("no pose", func(t *testing.T) {
		v := ValidateFrame(Frame{}, SquatRequired)
		if v.Valid || v.HasPose {
			t.Errorf("expected invalid frame without pose, got %+v", v)
		}
		if len(v.Missing) != len(SquatRequired) {
			t.Errorf("expected all %d required missing, got %d", len(SquatRequired), len(v.Missing))
		}
		if v.Score != 0 {
			t.Errorf("expected score 0, got %f", v.Score)
		}
	})

	t.Run("missing landmarks lower the score", func(t *testing.T) {
		f := PostureFrame(Standing, 0).Without(LeftKnee, RightKnee)
		v := ValidateFrame(f, SquatRequired)
		if v.Valid {
			t.Error("expected invalid frame")
		}
		if math.Abs(v.Score-0.75) > 1e-9 {
			t.Errorf("expected score 0.75, got %f", v.Score)
		}
		crit := v.MissingCritical(SquatCritical)
		if len(crit) != 2 {
			t.Errorf("expected 2 critical landmarks missing, got %v", crit)
		}
	})
}

func TestValidateBatch(t *testing.T) {
	t.Run("empty batch", func(t *testing.T) {
		b := ValidateBatch(nil, SquatRequired)
		if b.OverallValid {
			t.Error("expected empty batch to be invalid")
		}
		if len(b.Errors) == 0 {
			t.Error("expected an error message")
		}
	})

	t.Run("mostly valid batch", func(t *testing.T) {
		frames := []Frame{
			PostureFrame(Standing, 0),
			PostureFrame(Standing, 1),
			PostureFrame(Standing, 2),
			{},
		}
		b := ValidateBatch(frames, SquatRequired)
		if !b.OverallValid {
			t.Error("expected batch to be valid")
		}
		if b.ValidFrames != 3 || b.TotalFrames != 4 {
			t.Errorf("expected 3/4 valid frames, got %d/%d", b.ValidFrames, b.TotalFrames)
		}
		if len(b.MissingFrames) != 1 || b.MissingFrames[0] != 3 {
			t.Errorf("expected frame 3 flagged, got %v", b.MissingFrames)
		}
		if len(b.Warnings) != 0 {
			t.Errorf("expected no warnings at 75%%, got %v", b.Warnings)
		}
	})

	t.Run("low quality batch warns", func(t *testing.T) {
		frames := []Frame{PostureFrame(Standing, 0), PostureFrame(Standing, 1), {}, {}}
		b := ValidateBatch(frames, SquatRequired)
		if !b.OverallValid {
			t.Error("expected 50% valid batch to remain usable")
		}
		if len(b.Warnings) != 1 {
			t.Errorf("expected a quality warning, got %v", b.Warnings)
		}
	})

	t.Run("unusable batch", func(t *testing.T) {
		frames := []Frame{PostureFrame(Standing, 0), {}, {}, {}, {}}
		b := ValidateBatch(frames, SquatRequired)
		if b.OverallValid {
			t.Error("expected 20% valid batch to be unusable")
		}
		if b.Recommendation == "" {
			t.Error("expected a recommendation")
		}
	})
}
