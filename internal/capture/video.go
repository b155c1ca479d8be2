package capture

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gocv.io/x/gocv"
)

// fallbackFPS is assumed for files whose container does not report a rate.
const fallbackFPS = 30.0

// VideoFile plays back a recorded video. Frames can be sub-sampled with
// SetFPS, which skips source frames to approach the requested rate.
type VideoFile struct {
	capturer
	path       string
	nativeFPS  float64
	frameCount int
	skip       int
	position   int
}

// NewVideoFile creates a source for the video at path. The file is opened
// by Open.
func NewVideoFile(path string) *VideoFile {
	return &VideoFile{path: path, skip: 1}
}

// OpenVideoFile creates and opens a source for the video at path.
func OpenVideoFile(path string) (*VideoFile, error) {
	v := NewVideoFile(path)
	if err := v.Open(); err != nil {
		return nil, err
	}
	return v, nil
}

// Open opens the file and reads its frame rate and length.
func (v *VideoFile) Open() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.openLocked() {
		return nil
	}
	if _, err := os.Stat(v.path); err != nil {
		return fmt.Errorf("open video: %w", err)
	}

	capture, err := gocv.VideoCaptureFile(v.path)
	if err != nil {
		return fmt.Errorf("open video %s: %w", v.path, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("open video %s: unsupported format", v.path)
	}

	v.nativeFPS = capture.Get(gocv.VideoCaptureFPS)
	if v.nativeFPS <= 0 || math.IsNaN(v.nativeFPS) {
		v.nativeFPS = fallbackFPS
	}
	v.frameCount = reportedFrames(capture.Get(gocv.VideoCaptureFrameCount))
	v.capture = capture
	v.position = 0

	return nil
}

// ReadFrame returns the next sampled frame, or ErrEndOfStream when the file
// is exhausted.
func (v *VideoFile) ReadFrame() (*gocv.Mat, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.openLocked() {
		return nil, ErrSourceNotOpen
	}

	// Discard the frames between samples.
	for i := 1; i < v.skip; i++ {
		mat := v.grabLocked()
		if mat == nil {
			return nil, ErrEndOfStream
		}
		mat.Close()
		v.position++
	}

	mat := v.grabLocked()
	if mat == nil {
		return nil, ErrEndOfStream
	}
	v.position++

	return mat, nil
}

// SetFPS picks a frame skip so the effective rate is close to fps without
// exceeding the file's own rate. Values less than or equal to 0 reset to
// every frame.
func (v *VideoFile) SetFPS(fps int) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.skip = frameSkip(v.native(), fps)
}

// FPS returns the effective rate of the frames returned by ReadFrame.
func (v *VideoFile) FPS() int {
	return int(math.Round(v.EffectiveFPS()))
}

// EffectiveFPS is the native rate divided by the frame skip.
func (v *VideoFile) EffectiveFPS() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.native() / float64(v.skip)
}

// NativeFPS is the rate reported by the container.
func (v *VideoFile) NativeFPS() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.native()
}

// FrameCount is the number of frames reported by the container, or 0 when
// it is unknown. Some formats report an estimate.
func (v *VideoFile) FrameCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.frameCount
}

// Timestamp is the position of the last returned frame in milliseconds
// from the start of the file.
func (v *VideoFile) Timestamp() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.position == 0 {
		return 0
	}
	return int64(float64(v.position-1) / v.native() * 1000)
}

func (v *VideoFile) native() float64 {
	if v.nativeFPS <= 0 {
		return fallbackFPS
	}
	return v.nativeFPS
}

// reportedFrames converts the container's frame count property. Streams
// and some containers report -1, NaN or garbage; those become 0.
func reportedFrames(n float64) int {
	if math.IsNaN(n) || n <= 0 || n > math.MaxInt32 {
		return 0
	}
	return int(n)
}

// frameSkip returns how many source frames advance per sample to play a
// native-rate stream at roughly target.
func frameSkip(native float64, target int) int {
	if target <= 0 || float64(target) >= native {
		return 1
	}
	return max(1, int(math.Round(native/float64(target))))
}

// IsEnd reports whether err marks the end of a finite source.
func IsEnd(err error) bool {
	return errors.Is(err, ErrEndOfStream)
}
