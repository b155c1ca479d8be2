package angle

import (
	"fmt"
	"math"

	"github.com/ayusman/formcheck/internal/pose"
)

// minSegmentLength is the shortest image-plane segment treated as a line.
const minSegmentLength = 1e-10

// Reference selects the axis a segment angle is measured against.
type Reference string

const (
	// Vertical measures deviation from the vertical axis: 0 upright, 90 horizontal.
	Vertical Reference = "vertical"
	// Horizontal measures elevation above the horizontal axis: 0 horizontal, 90 upright.
	Horizontal Reference = "horizontal"
)

// Validate reports whether ref is a known reference axis.
func (ref Reference) Validate() error {
	switch ref {
	case Vertical, Horizontal:
		return nil
	}
	return fmt.Errorf("unknown reference axis %q", ref)
}

// SegmentAngle returns the angle of the segment a→b from vertical, folded
// into [0, 90]. It is undefined when either point is not finite or the
// points coincide in the image plane.
func SegmentAngle(a, b pose.Landmark) Result {
	return Measure(a, b, Vertical)
}

// InclineAngle returns the angle of the segment a→b above horizontal, folded
// into [0, 90]. Used for the heel→knee shin segment.
func InclineAngle(a, b pose.Landmark) Result {
	return Measure(a, b, Horizontal)
}

// Measure returns the folded angle of a→b against the given reference.
// Only X and Y take part; Z is depth and not used for planar angles.
func Measure(a, b pose.Landmark, ref Reference) Result {
	if !a.IsFinite() || !b.IsFinite() {
		return Undefined()
	}

	dx := b.X - a.X
	dy := b.Y - a.Y
	if math.Hypot(dx, dy) < minSegmentLength {
		return Undefined()
	}

	// Image Y grows downwards, so flip it to get a conventional angle.
	theta := math.Atan2(-dy, dx) * 180 / math.Pi
	if theta < 0 {
		theta += 360
	}

	// Distance from the nearest horizontal direction, in [0, 90].
	var fromHorizontal float64
	switch {
	case theta <= 90:
		fromHorizontal = theta
	case theta <= 180:
		fromHorizontal = 180 - theta
	case theta <= 270:
		fromHorizontal = theta - 180
	default:
		fromHorizontal = 360 - theta
	}

	switch ref {
	case Horizontal:
		return Degrees(fromHorizontal)
	case Vertical:
		return Degrees(90 - fromHorizontal)
	}
	return Undefined()
}
