package angle

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/formcheck/internal/pose"
)

// Config holds the calculator's landmark mapping.
type Config struct {
	// Joints maps each joint to its left and right landmark segments.
	Joints Joints

	// MinVisibility treats landmarks whose visibility score is below this
	// value as missing. Zero disables the check.
	MinVisibility float64
}

// DefaultConfig returns a Config with the MediaPipe Pose squat mapping.
func DefaultConfig() Config {
	return Config{
		Joints: DefaultJoints(),
	}
}

// Calculator derives joint angles from frames. It holds no mutable state
// and is safe for concurrent use.
type Calculator struct {
	joints        Joints
	minVisibility float64
}

// NewCalculator validates the configuration and returns a Calculator.
func NewCalculator(cfg Config) (*Calculator, error) {
	if cfg.Joints == nil {
		cfg.Joints = DefaultJoints()
	}
	if err := cfg.Joints.Validate(); err != nil {
		return nil, err
	}
	if cfg.MinVisibility < 0 || cfg.MinVisibility > 1 {
		return nil, fmt.Errorf("min visibility %v outside [0, 1]", cfg.MinVisibility)
	}
	return &Calculator{
		joints:        cfg.Joints.Clone(),
		minVisibility: cfg.MinVisibility,
	}, nil
}

// Default returns a Calculator using DefaultConfig.
func Default() *Calculator {
	c, err := NewCalculator(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return c
}

// Joints returns a copy of the calculator's mapping.
func (c *Calculator) Joints() Joints {
	return c.joints.Clone()
}

// Sides returns the left and right segment angles for a joint.
func (c *Calculator) Sides(f pose.Frame, kind Kind) (left, right Result) {
	j, ok := c.joints[kind]
	if !ok {
		return Undefined(), Undefined()
	}
	return c.segment(f, j.Left, j.Reference), c.segment(f, j.Right, j.Reference)
}

// JointAngle returns the mean of the left and right angles when both are
// defined, the defined side when only one is, and undefined otherwise.
func (c *Calculator) JointAngle(f pose.Frame, kind Kind) Result {
	left, right := c.Sides(f, kind)
	l, lok := left.Value()
	r, rok := right.Value()
	switch {
	case lok && rok:
		return Degrees((l + r) / 2)
	case lok:
		return left
	case rok:
		return right
	}
	return Undefined()
}

// Series applies JointAngle to every frame. The output has one entry per
// input frame, in order.
func (c *Calculator) Series(frames []pose.Frame, kind Kind) []Result {
	out := make([]Result, len(frames))
	for i, f := range frames {
		out[i] = c.JointAngle(f, kind)
	}
	return out
}

// Average returns the mean of the defined entries of Series, or undefined
// when no frame yields an angle. It summarises a finished recording and is
// not meant for per-frame feedback.
func (c *Calculator) Average(frames []pose.Frame, kind Kind) Result {
	return Mean(c.Series(frames, kind))
}

// Asymmetry returns left minus right for a joint, undefined unless both
// sides are defined.
func (c *Calculator) Asymmetry(f pose.Frame, kind Kind) Result {
	left, right := c.Sides(f, kind)
	l, lok := left.Value()
	r, rok := right.Value()
	if !lok || !rok {
		return Undefined()
	}
	return Degrees(l - r)
}

// AsymmetrySeries applies Asymmetry to every frame.
func (c *Calculator) AsymmetrySeries(frames []pose.Frame, kind Kind) []Result {
	out := make([]Result, len(frames))
	for i, f := range frames {
		out[i] = c.Asymmetry(f, kind)
	}
	return out
}

// Mean returns the arithmetic mean of the defined results.
func Mean(rs []Result) Result {
	vals := Defineds(rs)
	if len(vals) == 0 {
		return Undefined()
	}
	return Degrees(stat.Mean(vals, nil))
}

func (c *Calculator) segment(f pose.Frame, seg Segment, ref Reference) Result {
	a, ok := c.landmark(f, seg.From)
	if !ok {
		return Undefined()
	}
	b, ok := c.landmark(f, seg.To)
	if !ok {
		return Undefined()
	}
	return Measure(a, b, ref)
}

func (c *Calculator) landmark(f pose.Frame, i int) (pose.Landmark, bool) {
	l, ok := f.Get(i)
	if !ok {
		return pose.Landmark{}, false
	}
	if c.minVisibility > 0 && l.Visibility < c.minVisibility {
		return pose.Landmark{}, false
	}
	return l, true
}
