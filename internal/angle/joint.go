package angle

import (
	"fmt"

	"github.com/ayusman/formcheck/internal/pose"
)

// Kind names a derived joint angle.
type Kind string

const (
	// Torso is the hip→shoulder lean from vertical.
	Torso Kind = "torso"
	// Quad is the hip→knee thigh angle from vertical; it grows with depth.
	Quad Kind = "quad"
	// Ankle is the heel→knee shin angle above horizontal; it shrinks as the
	// knee travels forward.
	Ankle Kind = "ankle"
)

// Kinds lists every joint in a stable order.
var Kinds = []Kind{Torso, Quad, Ankle}

// ParseKind converts a joint name into a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case Torso, Quad, Ankle:
		return k, nil
	}
	return "", fmt.Errorf("unknown joint %q", s)
}

// Segment is a directed pair of landmark indices.
type Segment struct {
	From int `json:"from" yaml:"from"`
	To   int `json:"to" yaml:"to"`
}

// Joint describes how one joint angle is derived from a frame.
type Joint struct {
	Left      Segment   `json:"left" yaml:"left"`
	Right     Segment   `json:"right" yaml:"right"`
	Reference Reference `json:"reference" yaml:"reference"`
}

// Joints maps each joint kind to its landmark definition.
type Joints map[Kind]Joint

// DefaultJoints returns the MediaPipe Pose mapping used for squat analysis.
func DefaultJoints() Joints {
	return Joints{
		Torso: {
			Left:      Segment{From: pose.LeftHip, To: pose.LeftShoulder},
			Right:     Segment{From: pose.RightHip, To: pose.RightShoulder},
			Reference: Vertical,
		},
		Quad: {
			Left:      Segment{From: pose.LeftHip, To: pose.LeftKnee},
			Right:     Segment{From: pose.RightHip, To: pose.RightKnee},
			Reference: Vertical,
		},
		Ankle: {
			Left:      Segment{From: pose.LeftHeel, To: pose.LeftKnee},
			Right:     Segment{From: pose.RightHeel, To: pose.RightKnee},
			Reference: Horizontal,
		},
	}
}

// Validate checks that indices are within the landmark schema and every
// reference axis is known.
func (js Joints) Validate() error {
	for kind, j := range js {
		if _, err := ParseKind(string(kind)); err != nil {
			return err
		}
		for _, seg := range []Segment{j.Left, j.Right} {
			if seg.From < 0 || seg.From >= pose.NumLandmarks || seg.To < 0 || seg.To >= pose.NumLandmarks {
				return fmt.Errorf("joint %s: landmark index out of range: %d→%d", kind, seg.From, seg.To)
			}
			if seg.From == seg.To {
				return fmt.Errorf("joint %s: segment %d→%d has identical endpoints", kind, seg.From, seg.To)
			}
		}
		if err := j.Reference.Validate(); err != nil {
			return fmt.Errorf("joint %s: %w", kind, err)
		}
	}
	return nil
}

// Clone returns a copy that can be modified independently.
func (js Joints) Clone() Joints {
	out := make(Joints, len(js))
	for k, v := range js {
		out[k] = v
	}
	return out
}
