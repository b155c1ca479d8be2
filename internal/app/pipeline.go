package app

import (
	"errors"
	"log/slog"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/formcheck/internal/angle"
	"github.com/ayusman/formcheck/internal/capture"
	"github.com/ayusman/formcheck/internal/pose"
)

// subscriberBuffer is the per-subscriber queue length. Slow subscribers
// miss readings rather than stall the pipeline.
const subscriberBuffer = 16

// Feedback is the live reading for one frame. Angles are undefined when no
// pose was detected or a joint was not visible.
type Feedback struct {
	Timestamp int64        `json:"timestamp"`
	HasPose   bool         `json:"has_pose"`
	Torso     angle.Result `json:"torso"`
	Quad      angle.Result `json:"quad"`
	Ankle     angle.Result `json:"ankle"`
}

// FeedbackFor measures the joint angles of f with the current calculator.
func (a *App) FeedbackFor(f pose.Frame) Feedback {
	calc := a.Calculator()
	fb := Feedback{
		Timestamp: f.Timestamp,
		HasPose:   f.HasPose(),
		Torso:     angle.Undefined(),
		Quad:      angle.Undefined(),
		Ankle:     angle.Undefined(),
	}
	if !fb.HasPose {
		return fb
	}
	fb.Torso = calc.JointAngle(f, angle.Torso)
	fb.Quad = calc.JointAngle(f, angle.Quad)
	fb.Ankle = calc.JointAngle(f, angle.Ankle)
	return fb
}

// Subscribe registers for live feedback. The returned function
// unsubscribes and closes the channel.
func (a *App) Subscribe() (<-chan Feedback, func()) {
	a.subsMu.Lock()
	defer a.subsMu.Unlock()

	id := a.nextSub
	a.nextSub++
	ch := make(chan Feedback, subscriberBuffer)
	a.subs[id] = ch

	return ch, func() {
		a.subsMu.Lock()
		defer a.subsMu.Unlock()
		if c, ok := a.subs[id]; ok {
			delete(a.subs, id)
			close(c)
		}
	}
}

// Last returns the most recent live reading.
func (a *App) Last() (Feedback, bool) {
	fb := a.last.Load()
	if fb == nil {
		return Feedback{}, false
	}
	return *fb, true
}

// Publish delivers fb to every subscriber without blocking.
func (a *App) Publish(fb Feedback) {
	a.last.Store(&fb)

	a.subsMu.RLock()
	defer a.subsMu.RUnlock()
	for _, ch := range a.subs {
		select {
		case ch <- fb:
		default:
		}
	}
}

// detect runs the pose detector on one image.
func (a *App) detect(mat *gocv.Mat) (pose.Frame, error) {
	a.detectMu.Lock()
	defer a.detectMu.Unlock()
	return a.config.Detector.Detect(mat)
}

// ProcessFrame detects the pose in one live image, publishes its feedback
// and returns it.
func (a *App) ProcessFrame(mat *gocv.Mat) (Feedback, error) {
	f, err := a.detect(mat)
	if err != nil {
		return Feedback{}, err
	}
	if f.Timestamp == 0 {
		f.Timestamp = time.Now().UnixMilli()
	}
	fb := a.FeedbackFor(f)
	a.Publish(fb)
	return fb, nil
}

// runPipeline reads frames from the source at the idle rate, detects the
// pose in each and publishes feedback. While a body is in view it runs at
// the active rate; after IdleTimeout without one it drops back to idle.
func (a *App) runPipeline(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	src := a.config.Source
	lastPose := time.Now()

	ticker := time.NewTicker(time.Second / time.Duration(a.config.IdleFPS))
	defer ticker.Stop()

	setRate := func(active bool) {
		fps := a.config.IdleFPS
		if active {
			fps = a.config.ActiveFPS
		}
		a.active.Store(active)
		src.SetFPS(fps)
		ticker.Reset(time.Second / time.Duration(fps))
		slog.Debug("app: frame rate changed", "fps", fps, "active", active)
	}

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if !a.IsEnabled() {
				continue
			}

			mat, err := src.ReadFrame()
			if err != nil {
				if errors.Is(err, capture.ErrEndOfStream) {
					slog.Info("app: capture source ended")
					return
				}
				slog.Warn("app: reading frame", "err", err)
				continue
			}

			a.updatePreview(mat)
			fb, err := a.ProcessFrame(mat)
			mat.Close()
			if err != nil {
				slog.Warn("app: detecting pose", "err", err)
				continue
			}

			switch {
			case fb.HasPose:
				lastPose = time.Now()
				if !a.Active() {
					setRate(true)
				}
			case a.Active() && time.Since(lastPose) > a.config.IdleTimeout:
				setRate(false)
			}
		}
	}
}

func (a *App) updatePreview(mat *gocv.Mat) {
	if mat.Empty() {
		return
	}
	buf, err := gocv.IMEncode(".jpg", *mat)
	if err != nil {
		return
	}
	defer buf.Close()
	jpg := append([]byte(nil), buf.GetBytes()...)
	a.preview.Store(&jpg)
}
