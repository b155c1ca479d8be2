package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/formcheck/internal/capture"
	"github.com/ayusman/formcheck/internal/hook"
	"github.com/ayusman/formcheck/internal/pose"
	"github.com/ayusman/formcheck/internal/squat"
	"github.com/ayusman/formcheck/internal/store"
)

// AnalyzeOptions describe one offline analysis.
type AnalyzeOptions struct {
	// Filename is recorded with the analysis.
	Filename string
	// FPS of the landmark frames. Ignored for videos, which report their own.
	FPS float64
	// View overrides the configured camera view.
	View squat.View
	// TargetFPS sub-samples videos; zero keeps every frame.
	TargetFPS int
	// Notes are stored with the analysis.
	Notes string
}

// Result is a finished analysis: the squat report and its stored record.
type Result struct {
	Record *store.Analysis `json:"analysis"`
	Report *squat.Report   `json:"report"`
}

// AnalyzeVideo detects the pose in every sampled frame of the video at
// path, then analyzes, persists and announces the session.
func (a *App) AnalyzeVideo(ctx context.Context, path string, opts AnalyzeOptions) (*Result, error) {
	frames, fps, err := a.DetectVideo(ctx, path, opts.TargetFPS)
	if err != nil {
		return nil, err
	}
	opts.FPS = fps
	if opts.Filename == "" {
		opts.Filename = path
	}
	return a.AnalyzeFrames(ctx, frames, opts)
}

// DetectVideo returns the pose of every sampled frame of the video at path
// and the sampling rate.
func (a *App) DetectVideo(ctx context.Context, path string, targetFPS int) ([]pose.Frame, float64, error) {
	v, err := capture.OpenVideoFile(path)
	if err != nil {
		return nil, 0, err
	}
	defer v.Close()

	if targetFPS > 0 {
		v.SetFPS(targetFPS)
	}

	slog.Info("app: detecting poses in video", "path", path,
		"frames", v.FrameCount(), "native_fps", v.NativeFPS(), "fps", v.EffectiveFPS())

	frames := make([]pose.Frame, 0, frameCapacity(v.FrameCount()))
	for {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		mat, err := v.ReadFrame()
		if capture.IsEnd(err) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read frame %d: %w", len(frames), err)
		}

		f, err := a.detect(mat)
		mat.Close()
		if err != nil {
			return nil, 0, fmt.Errorf("detect frame %d: %w", len(frames), err)
		}
		f.Timestamp = v.Timestamp()
		frames = append(frames, f)
	}

	return frames, v.EffectiveFPS(), nil
}

// maxFramePrealloc bounds the capacity taken from container metadata.
const maxFramePrealloc = 1 << 14

// frameCapacity turns a reported frame count into a safe slice capacity.
func frameCapacity(reported int) int {
	return max(0, min(reported, maxFramePrealloc))
}

// AnalyzeFrames analyzes landmark frames, persists the result when a store
// is configured and fires the analysis.completed hooks.
func (a *App) AnalyzeFrames(ctx context.Context, frames []pose.Frame, opts AnalyzeOptions) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	view := opts.View
	if view == squat.ViewUnknown {
		view = a.config.View
	}
	report := squat.Analyze(a.Calculator(), frames, squat.Options{FPS: opts.FPS, View: view})

	rec, err := newRecord(uuid.NewString(), report, opts.Filename, view)
	if err != nil {
		return nil, err
	}
	rec.Notes = opts.Notes

	if st := a.config.Store; st != nil {
		var err error
		if a.config.KeepFrames {
			var raw []json.RawMessage
			if raw, err = encodeFrames(frames); err != nil {
				return nil, err
			}
			err = st.Analyses().CreateWithFrames(rec, raw)
		} else {
			err = st.Analyses().Create(rec)
		}
		if err != nil {
			return nil, fmt.Errorf("save analysis: %w", err)
		}
	}

	slog.Info("app: analysis completed", "id", rec.ID, "frames", len(frames),
		"reps", len(report.Reps), "score", rec.Score, "grade", rec.Grade)

	a.fireCompleted(rec, report)
	return &Result{Record: rec, Report: report}, nil
}

// Reanalyze recomputes a stored analysis from its stored frames with the
// current joint mapping. Notes are kept.
func (a *App) Reanalyze(ctx context.Context, id string) (*Result, error) {
	st := a.config.Store
	if st == nil {
		return nil, ErrNoStore
	}

	prev, err := st.Analyses().GetByID(id)
	if err != nil {
		return nil, err
	}
	raw, err := st.Frames().GetByAnalysisID(id)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, ErrNoFrames
	}

	frames := make([]pose.Frame, len(raw))
	for i, r := range raw {
		if err := json.Unmarshal(r, &frames[i]); err != nil {
			return nil, fmt.Errorf("decode frame %d: %w", i, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	view := squat.View(prev.View)
	report := squat.Analyze(a.Calculator(), frames, squat.Options{FPS: prev.FPS, View: view})

	rec, err := newRecord(id, report, prev.Filename, view)
	if err != nil {
		return nil, err
	}
	if err := st.Analyses().Replace(rec); err != nil {
		return nil, fmt.Errorf("replace analysis: %w", err)
	}

	updated, err := st.Analyses().GetByID(id)
	if err != nil {
		return nil, err
	}

	slog.Info("app: analysis recomputed", "id", id, "score", updated.Score, "previous_score", prev.Score)
	a.fireCompleted(updated, report)
	return &Result{Record: updated, Report: report}, nil
}

func encodeFrames(frames []pose.Frame) ([]json.RawMessage, error) {
	raw := make([]json.RawMessage, len(frames))
	for i, f := range frames {
		b, err := json.Marshal(f)
		if err != nil {
			return nil, fmt.Errorf("encode frame %d: %w", i, err)
		}
		raw[i] = b
	}
	return raw, nil
}

// newRecord serializes a report into its stored form.
func newRecord(id string, r *squat.Report, filename string, view squat.View) (*store.Analysis, error) {
	rec := &store.Analysis{
		ID:           id,
		Exercise:     r.Exercise,
		ExerciseName: r.ExerciseName,
		Score:        r.Score(),
		FrameCount:   r.Calculation.FrameCount,
		FPS:          r.Calculation.FPS,
		Filename:     filename,
		View:         string(view),
	}
	if r.Analysis != nil {
		rec.Grade = r.Analysis.Final.Grade
	}

	reps := r.Reps
	if reps == nil {
		reps = []squat.Rep{}
	}

	var err error
	if rec.Calculation, err = json.Marshal(r.Calculation); err != nil {
		return nil, fmt.Errorf("encode calculation: %w", err)
	}
	if rec.Phases, err = json.Marshal(reps); err != nil {
		return nil, fmt.Errorf("encode reps: %w", err)
	}
	if rec.Validation, err = json.Marshal(r.Validation); err != nil {
		return nil, fmt.Errorf("encode validation: %w", err)
	}
	if r.Analysis != nil {
		if rec.FormAnalysis, err = json.Marshal(r.Analysis); err != nil {
			return nil, fmt.Errorf("encode form analysis: %w", err)
		}
	}
	return rec, nil
}

// fireCompleted runs the analysis.completed hooks in the background.
func (a *App) fireCompleted(rec *store.Analysis, r *squat.Report) {
	if a.config.Hooks == nil {
		return
	}

	ev := hook.Event{
		Type:         hook.EventAnalysisCompleted,
		AnalysisID:   rec.ID,
		ExerciseName: rec.ExerciseName,
		Score:        rec.Score,
		Grade:        rec.Grade,
		Reps:         len(r.Reps),
		Timestamp:    time.Now(),
		Data:         rec.FormAnalysis,
	}

	a.hooksWG.Add(1)
	go func() {
		defer a.hooksWG.Done()
		a.config.Hooks.Fire(context.Background(), ev)
	}()
}

// WaitHooks blocks until background hook runs have finished.
func (a *App) WaitHooks() {
	a.hooksWG.Wait()
}
