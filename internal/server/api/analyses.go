package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ayusman/formcheck/internal/app"
	"github.com/ayusman/formcheck/internal/pose"
	"github.com/ayusman/formcheck/internal/squat"
	"github.com/ayusman/formcheck/internal/store"
)

// Analyzer runs squat analyses. *app.App implements it.
type Analyzer interface {
	AnalyzeFrames(ctx context.Context, frames []pose.Frame, opts app.AnalyzeOptions) (*app.Result, error)
	Reanalyze(ctx context.Context, id string) (*app.Result, error)
}

// AnalysisHandler handles HTTP requests for analysis resources.
type AnalysisHandler struct {
	store    *store.Store
	analyzer Analyzer
}

// NewAnalysisHandler creates a new AnalysisHandler.
func NewAnalysisHandler(s *store.Store, a Analyzer) *AnalysisHandler {
	return &AnalysisHandler{store: s, analyzer: a}
}

// ServeHTTP routes /api/analyses, /api/analyses/{id} and the
// /api/analyses/{id}/frames and /api/analyses/{id}/reanalyze sub-resources.
func (h *AnalysisHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/analyses")
	path = strings.Trim(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	id, sub, _ := strings.Cut(path, "/")
	switch {
	case sub == "" && r.Method == http.MethodGet:
		h.get(w, r, id)
	case sub == "" && r.Method == http.MethodPatch:
		h.update(w, r, id)
	case sub == "" && r.Method == http.MethodDelete:
		h.delete(w, r, id)
	case sub == "frames" && r.Method == http.MethodGet:
		h.frames(w, r, id)
	case sub == "reanalyze" && r.Method == http.MethodPost:
		h.reanalyze(w, r, id)
	case sub == "" || sub == "frames" || sub == "reanalyze":
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

type createAnalysisRequest struct {
	Frames   []pose.Frame `json:"frames"`
	FPS      float64      `json:"fps"`
	View     string       `json:"view"`
	Filename string       `json:"filename"`
	Notes    string       `json:"notes"`
}

type updateAnalysisRequest struct {
	Notes *string `json:"notes"`
}

type listAnalysesResponse struct {
	Analyses []*store.Analysis `json:"analyses"`
	Total    int               `json:"total"`
}

type framesResponse struct {
	Frames []json.RawMessage `json:"frames"`
}

// list handles GET /api/analyses with optional exercise, min_score, since
// (RFC 3339), limit and offset query parameters.
func (h *AnalysisHandler) list(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	analyses, err := h.store.Analyses().List(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list analyses")
		return
	}
	total, err := h.store.Analyses().CountMatching(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count analyses")
		return
	}

	writeJSON(w, http.StatusOK, listAnalysesResponse{Analyses: analyses, Total: total})
}

func parseListFilter(r *http.Request) (store.ListFilter, error) {
	var f store.ListFilter
	q := r.URL.Query()

	ints := map[string]*int{
		"exercise":  &f.Exercise,
		"min_score": &f.MinScore,
		"limit":     &f.Limit,
		"offset":    &f.Offset,
	}
	for name, dst := range ints {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errors.New("invalid " + name)
		}
		*dst = n
	}

	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, errors.New("invalid since")
		}
		f.Since = t
	}
	return f, nil
}

// get handles GET /api/analyses/{id}.
func (h *AnalysisHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	a, err := h.store.Analyses().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Analysis not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get analysis")
		return
	}

	writeJSON(w, http.StatusOK, a)
}

// create handles POST /api/analyses: analyzes posted landmark frames and
// stores the result.
func (h *AnalysisHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createAnalysisRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if len(req.Frames) == 0 {
		writeError(w, http.StatusBadRequest, "Frames are required")
		return
	}
	if req.FPS < 0 {
		writeError(w, http.StatusBadRequest, "FPS must not be negative")
		return
	}

	view := squat.View(req.View)
	switch view {
	case squat.ViewUnknown, squat.ViewSide, squat.ViewFront:
	default:
		writeError(w, http.StatusBadRequest, "Invalid view")
		return
	}

	res, err := h.analyzer.AnalyzeFrames(r.Context(), req.Frames, app.AnalyzeOptions{
		FPS:      req.FPS,
		View:     view,
		Filename: req.Filename,
		Notes:    req.Notes,
	})
	if err != nil {
		slog.Error("api: analysis failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to analyze frames")
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

// update handles PATCH /api/analyses/{id}. Only notes are editable.
func (h *AnalysisHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	var req updateAnalysisRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Notes == nil {
		writeError(w, http.StatusBadRequest, "Notes are required")
		return
	}

	if err := h.store.Analyses().UpdateNotes(id, *req.Notes); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Analysis not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update analysis")
		return
	}

	h.get(w, r, id)
}

// delete handles DELETE /api/analyses/{id}.
func (h *AnalysisHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Analyses().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Analysis not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete analysis")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// frames handles GET /api/analyses/{id}/frames.
func (h *AnalysisHandler) frames(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := h.store.Analyses().GetByID(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Analysis not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get analysis")
		return
	}

	frames, err := h.store.Frames().GetByAnalysisID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get frames")
		return
	}
	if frames == nil {
		frames = []json.RawMessage{}
	}

	writeJSON(w, http.StatusOK, framesResponse{Frames: frames})
}

// reanalyze handles POST /api/analyses/{id}/reanalyze.
func (h *AnalysisHandler) reanalyze(w http.ResponseWriter, r *http.Request, id string) {
	res, err := h.analyzer.Reanalyze(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Analysis not found")
	case errors.Is(err, app.ErrNoFrames):
		writeError(w, http.StatusConflict, "Analysis has no stored frames")
	case err != nil:
		slog.Error("api: reanalysis failed", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to reanalyze")
	default:
		writeJSON(w, http.StatusOK, res)
	}
}
