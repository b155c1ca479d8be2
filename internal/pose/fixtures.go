package pose

import "math"

// Posture describes a side-view body by its segment angles in degrees.
// Torso and Thigh are measured from vertical, Shin from horizontal.
type Posture struct {
	Torso float64
	Thigh float64
	Shin  float64
}

// Standing is an upright posture: torso and thighs vertical, shins vertical.
var Standing = Posture{Torso: 0, Thigh: 0, Shin: 90}

// Segment lengths in normalized image units.
const (
	fixtureTorsoLen = 0.25
	fixtureThighLen = 0.2
	fixtureShinLen  = 0.2
)

// SideViewFrame builds a synthetic side-view frame whose left and right
// segment angles are exactly the given postures. The subject faces +X.
func SideViewFrame(left, right Posture, timestamp int64) Frame {
	f := Frame{
		Landmarks: make(map[int]Landmark, 12),
		Timestamp: timestamp,
	}
	placeSide(f.Landmarks, left, 0.50, -0.05, LeftShoulder, LeftHip, LeftKnee, LeftAnkle, LeftHeel)
	placeSide(f.Landmarks, right, 0.51, 0.05, RightShoulder, RightHip, RightKnee, RightAnkle, RightHeel)
	f.Landmarks[Nose] = Landmark{X: f.Landmarks[LeftShoulder].X + 0.02, Y: f.Landmarks[LeftShoulder].Y - 0.1, Visibility: 0.99}
	return f
}

// PostureFrame builds a symmetric synthetic frame.
func PostureFrame(p Posture, timestamp int64) Frame {
	return SideViewFrame(p, p, timestamp)
}

func placeSide(m map[int]Landmark, p Posture, hipX, z float64, shoulder, hip, knee, ankle, heel int) {
	rad := func(d float64) float64 { return d * math.Pi / 180 }

	h := Landmark{X: hipX, Y: 0.5, Z: z, Visibility: 0.98}
	s := Landmark{
		X:          h.X + fixtureTorsoLen*math.Sin(rad(p.Torso)),
		Y:          h.Y - fixtureTorsoLen*math.Cos(rad(p.Torso)),
		Z:          z,
		Visibility: 0.98,
	}
	k := Landmark{
		X:          h.X + fixtureThighLen*math.Sin(rad(p.Thigh)),
		Y:          h.Y + fixtureThighLen*math.Cos(rad(p.Thigh)),
		Z:          z,
		Visibility: 0.97,
	}
	hl := Landmark{
		X:          k.X - fixtureShinLen*math.Cos(rad(p.Shin)),
		Y:          k.Y + fixtureShinLen*math.Sin(rad(p.Shin)),
		Z:          z,
		Visibility: 0.95,
	}
	a := Landmark{X: hl.X + 0.02, Y: hl.Y - 0.01, Z: z, Visibility: 0.95}

	m[shoulder] = s
	m[hip] = h
	m[knee] = k
	m[ankle] = a
	m[heel] = hl
}

// Session describes a synthetic side-view squat set.
type Session struct {
	Reps       int
	RepFrames  int // frames from standing to standing; even keeps the bottom on a frame
	RestFrames int // standing frames before, between and after reps
	Bottom     Posture
	// Asymmetry is subtracted from the right thigh at the bottom of each rep
	// and scaled with depth.
	Asymmetry float64
	// DepthStep deepens the thigh angle of every rep after the first.
	DepthStep float64
	// DropEvery removes all landmarks from every n-th frame when positive.
	DropEvery int
	FPS       float64
}

// DefaultSession is three clean parallel-depth reps at 30 fps.
func DefaultSession() Session {
	return Session{
		Reps:       3,
		RepFrames:  40,
		RestFrames: 15,
		Bottom:     Posture{Torso: 40, Thigh: 80, Shin: 55},
		FPS:        30,
	}
}

// Frames renders the session. Depth follows a half sine over each rep.
func (s Session) Frames() []Frame {
	fps := s.FPS
	if fps <= 0 {
		fps = 30
	}
	var out []Frame
	add := func(left, right Posture) {
		ts := int64(float64(len(out)) / fps * 1000)
		f := SideViewFrame(left, right, ts)
		if s.DropEvery > 0 && len(out)%s.DropEvery == s.DropEvery-1 {
			f = Frame{Timestamp: ts}
		}
		out = append(out, f)
	}
	rest := func() {
		for i := 0; i < s.RestFrames; i++ {
			add(Standing, Standing)
		}
	}

	rest()
	for r := 0; r < s.Reps; r++ {
		bottom := s.Bottom
		bottom.Thigh += float64(r) * s.DepthStep
		for i := 0; i <= s.RepFrames; i++ {
			p := math.Sin(math.Pi * float64(i) / float64(s.RepFrames))
			left := Posture{
				Torso: bottom.Torso * p,
				Thigh: bottom.Thigh * p,
				Shin:  90 - (90-bottom.Shin)*p,
			}
			right := left
			right.Thigh -= s.Asymmetry * p
			add(left, right)
		}
		rest()
	}
	return out
}
