// Package pose provides body landmark types for a single detected pose.
package pose

import "math"

// Body landmark indices following the MediaPipe Pose convention.
// See: https://developers.google.com/mediapipe/solutions/vision/pose_landmarker
const (
	Nose           = 0
	LeftEyeInner   = 1
	LeftEye        = 2
	LeftEyeOuter   = 3
	RightEyeInner  = 4
	RightEye       = 5
	RightEyeOuter  = 6
	LeftEar        = 7
	RightEar       = 8
	MouthLeft      = 9
	MouthRight     = 10
	LeftShoulder   = 11
	RightShoulder  = 12
	LeftElbow      = 13
	RightElbow     = 14
	LeftWrist      = 15
	RightWrist     = 16
	LeftPinky      = 17
	RightPinky     = 18
	LeftIndex      = 19
	RightIndex     = 20
	LeftThumb      = 21
	RightThumb     = 22
	LeftHip        = 23
	RightHip       = 24
	LeftKnee       = 25
	RightKnee      = 26
	LeftAnkle      = 27
	RightAnkle     = 28
	LeftHeel       = 29
	RightHeel      = 30
	LeftFootIndex  = 31
	RightFootIndex = 32
	NumLandmarks   = 33
)

// Landmark is a single detected keypoint. X and Y are normalized image
// coordinates with Y growing downwards; Z and Visibility are optional.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z,omitempty"`
	Visibility float64 `json:"visibility,omitempty"`
}

// IsFinite reports whether the planar coordinates are usable numbers.
// Z is ignored since angles are measured in the image plane.
func (l Landmark) IsFinite() bool {
	return isFinite(l.X) && isFinite(l.Y)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Frame holds the landmarks of one detected body at one instant.
// A frame with no landmarks means no pose was detected.
type Frame struct {
	Landmarks map[int]Landmark `json:"landmarks"`
	Timestamp int64            `json:"timestamp,omitempty"` // milliseconds
}

// NewFrame builds a frame from an ordered landmark list as emitted by the
// detector, where list position is the landmark index.
func NewFrame(points []Landmark, timestamp int64) Frame {
	f := Frame{Timestamp: timestamp}
	if len(points) == 0 {
		return f
	}
	f.Landmarks = make(map[int]Landmark, len(points))
	for i, p := range points {
		if i >= NumLandmarks {
			break
		}
		f.Landmarks[i] = p
	}
	return f
}

// HasPose reports whether any landmark was detected in the frame.
func (f Frame) HasPose() bool {
	return len(f.Landmarks) > 0
}

// Get returns the landmark at index i. The second result is false when the
// landmark is absent or its coordinates are not finite.
func (f Frame) Get(i int) (Landmark, bool) {
	l, ok := f.Landmarks[i]
	if !ok || !l.IsFinite() {
		return Landmark{}, false
	}
	return l, true
}

// With returns a copy of the frame with landmark i set to l.
func (f Frame) With(i int, l Landmark) Frame {
	out := Frame{
		Landmarks: make(map[int]Landmark, len(f.Landmarks)+1),
		Timestamp: f.Timestamp,
	}
	for k, v := range f.Landmarks {
		out.Landmarks[k] = v
	}
	out.Landmarks[i] = l
	return out
}

// Without returns a copy of the frame with the given landmarks removed.
func (f Frame) Without(indices ...int) Frame {
	out := Frame{
		Landmarks: make(map[int]Landmark, len(f.Landmarks)),
		Timestamp: f.Timestamp,
	}
	for k, v := range f.Landmarks {
		out.Landmarks[k] = v
	}
	for _, i := range indices {
		delete(out.Landmarks, i)
	}
	return out
}
