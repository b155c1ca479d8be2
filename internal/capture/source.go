// Package capture reads video frames from cameras and recorded files using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Default camera settings
const (
	DefaultFPS    = 5
	DefaultWidth  = 640
	DefaultHeight = 480
)

// emptyReads is how many empty grabs a camera tolerates per ReadFrame.
// Webcams return a few blank frames while the sensor warms up.
const emptyReads = 3

var (
	// ErrSourceNotOpen is returned when trying to read from a source that is not open.
	ErrSourceNotOpen = errors.New("capture source is not open")
	// ErrEndOfStream is returned once a finite source has no frames left.
	ErrEndOfStream = errors.New("end of stream")
)

// Source produces frames for the detector: a live camera, a recorded
// video or a test double.
type Source interface {
	Open() error
	Close() error
	// ReadFrame returns the next frame. The caller must close it.
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// capturer holds the OpenCV handle shared by Camera and VideoFile.
// Methods ending in Locked expect mu to be held.
type capturer struct {
	mu      sync.Mutex
	capture *gocv.VideoCapture
}

func (c *capturer) openLocked() bool {
	return c.capture != nil
}

func (c *capturer) releaseLocked() error {
	if c.capture == nil {
		return nil
	}
	err := c.capture.Close()
	c.capture = nil
	return err
}

// grabLocked reads one frame. It returns nil when the read fails or the
// frame is empty.
func (c *capturer) grabLocked() *gocv.Mat {
	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil
	}
	return &mat
}

// IsOpen returns true while the underlying capture is open.
func (c *capturer) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.openLocked()
}

// Close releases the underlying capture. Closing a source that is not open
// is a no-op.
func (c *capturer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.releaseLocked()
}

// Camera captures from a local video device.
type Camera struct {
	capturer
	device int
	width  int
	height int
	fps    int
}

// NewCamera returns a closed camera for device at DefaultFPS and
// DefaultWidth x DefaultHeight.
func NewCamera(device int) *Camera {
	return &Camera{
		device: device,
		width:  DefaultWidth,
		height: DefaultHeight,
		fps:    DefaultFPS,
	}
}

// SetResolution requests a frame size. It takes effect on the next Open;
// non-positive values are ignored.
func (c *Camera) SetResolution(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.width, c.height = width, height
}

// Open starts capturing from the device.
func (c *Camera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.openLocked() {
		return nil
	}

	vc, err := gocv.OpenVideoCapture(c.device)
	if err != nil {
		return fmt.Errorf("open camera %d: %w", c.device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return fmt.Errorf("open camera %d: device unavailable", c.device)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(c.width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(c.height))
	vc.Set(gocv.VideoCaptureFPS, float64(c.fps))
	c.capture = vc

	return nil
}

// ReadFrame returns the next frame from the device, skipping up to
// emptyReads blank grabs.
func (c *Camera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.openLocked() {
		return nil, ErrSourceNotOpen
	}

	for i := 0; i < emptyReads; i++ {
		if mat := c.grabLocked(); mat != nil {
			return mat, nil
		}
	}
	return nil, fmt.Errorf("camera %d: no frame after %d reads", c.device, emptyReads)
}

// SetFPS changes the capture rate. Values less than or equal to 0 are
// ignored.
func (c *Camera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps
	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the requested capture rate.
func (c *Camera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fps
}
