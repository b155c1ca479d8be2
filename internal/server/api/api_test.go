package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ayusman/formcheck/internal/angle"
	"github.com/ayusman/formcheck/internal/app"
	"github.com/ayusman/formcheck/internal/pose"
	"github.com/ayusman/formcheck/internal/store"
)

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func newAnalysisHandler(t *testing.T, keepFrames bool) (*AnalysisHandler, *store.Store, *app.App) {
	t.Helper()
	s := newTestStore(t)
	a := app.New(app.Config{Store: s, KeepFrames: keepFrames})
	return NewAnalysisHandler(s, a), s, a
}

func serve(h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var r *http.Request
	switch b := body.(type) {
	case nil:
		r = httptest.NewRequest(method, path, nil)
	case string:
		r = httptest.NewRequest(method, path, strings.NewReader(b))
	default:
		data, _ := json.Marshal(b)
		r = httptest.NewRequest(method, path, bytes.NewReader(data))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func sessionBody() createAnalysisRequest {
	return createAnalysisRequest{
		Frames:   pose.DefaultSession().Frames(),
		FPS:      30,
		Filename: "set1.json",
	}
}

func TestAnalysisHandler_Create(t *testing.T) {
	h, s, _ := newAnalysisHandler(t, true)

	rec := serve(h, http.MethodPost, "/api/analyses", sessionBody())

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var res struct {
		Analysis store.Analysis `json:"analysis"`
		Report   struct {
			Reps []json.RawMessage `json:"reps"`
		} `json:"report"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if res.Analysis.ID == "" || res.Analysis.Score == 0 {
		t.Errorf("expected a scored analysis, got %+v", res.Analysis)
	}
	if len(res.Report.Reps) != 3 {
		t.Errorf("expected 3 reps, got %d", len(res.Report.Reps))
	}
	if _, err := s.Analyses().GetByID(res.Analysis.ID); err != nil {
		t.Errorf("analysis not persisted: %v", err)
	}
}

func TestAnalysisHandler_Create_Invalid(t *testing.T) {
	h, _, _ := newAnalysisHandler(t, false)

	tests := []struct {
		name string
		body interface{}
	}{
		{"invalid json", "{"},
		{"no frames", createAnalysisRequest{FPS: 30}},
		{"negative fps", createAnalysisRequest{Frames: []pose.Frame{{}}, FPS: -1}},
		{"unknown view", createAnalysisRequest{Frames: []pose.Frame{{}}, View: "top"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, http.MethodPost, "/api/analyses", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
			}

			var resp errorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil || resp.Error == "" {
				t.Errorf("expected an error body, got %q (%v)", resp.Error, err)
			}
		})
	}
}

func TestAnalysisHandler_GetUpdateDelete(t *testing.T) {
	h, _, a := newAnalysisHandler(t, false)

	res, err := a.AnalyzeFrames(context.Background(), pose.DefaultSession().Frames(), app.AnalyzeOptions{FPS: 30})
	if err != nil {
		t.Fatalf("AnalyzeFrames() error = %v", err)
	}
	path := "/api/analyses/" + res.Record.ID

	rec := serve(h, http.MethodGet, path, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET: expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var got store.Analysis
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.ID != res.Record.ID || got.Score != res.Record.Score {
		t.Errorf("unexpected analysis %+v", got)
	}

	rec = serve(h, http.MethodPatch, path, map[string]string{"notes": "knees felt fine"})
	if rec.Code != http.StatusOK {
		t.Fatalf("PATCH: expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Notes != "knees felt fine" {
		t.Errorf("expected updated notes, got %q", got.Notes)
	}

	rec = serve(h, http.MethodPatch, path, map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("PATCH without notes: expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}

	rec = serve(h, http.MethodDelete, path, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE: expected status %d, got %d", http.StatusNoContent, rec.Code)
	}

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		rec = serve(h, method, path, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s after delete: expected status %d, got %d", method, http.StatusNotFound, rec.Code)
		}
	}
	rec = serve(h, http.MethodPatch, path, map[string]string{"notes": "x"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("PATCH after delete: expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestAnalysisHandler_List(t *testing.T) {
	h, _, a := newAnalysisHandler(t, false)

	shallow := pose.DefaultSession()
	shallow.Bottom.Thigh = 50
	for _, s := range []pose.Session{pose.DefaultSession(), shallow} {
		if _, err := a.AnalyzeFrames(context.Background(), s.Frames(), app.AnalyzeOptions{FPS: 30}); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name  string
		query string
		want  int
		total int
		code  int
	}{
		{"all", "", 2, 2, http.StatusOK},
		{"limit", "?limit=1", 1, 2, http.StatusOK},
		{"offset without limit", "?offset=1", 1, 2, http.StatusOK},
		{"min score excludes shallow", "?min_score=90", 1, 1, http.StatusOK},
		{"other exercise", "?exercise=7", 0, 0, http.StatusOK},
		{"since", "?since=2000-01-01T00:00:00Z", 2, 2, http.StatusOK},
		{"bad limit", "?limit=x", 0, 0, http.StatusBadRequest},
		{"negative offset", "?offset=-1", 0, 0, http.StatusBadRequest},
		{"bad since", "?since=yesterday", 0, 0, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, http.MethodGet, "/api/analyses"+tt.query, nil)
			if rec.Code != tt.code {
				t.Fatalf("expected status %d, got %d", tt.code, rec.Code)
			}
			if tt.code != http.StatusOK {
				return
			}

			var resp listAnalysesResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if len(resp.Analyses) != tt.want {
				t.Errorf("expected %d analyses, got %d", tt.want, len(resp.Analyses))
			}
			if resp.Total != tt.total {
				t.Errorf("expected total %d, got %d", tt.total, resp.Total)
			}
		})
	}
}

func TestAnalysisHandler_FramesAndReanalyze(t *testing.T) {
	h, _, a := newAnalysisHandler(t, true)

	frames := pose.DefaultSession().Frames()
	res, err := a.AnalyzeFrames(context.Background(), frames, app.AnalyzeOptions{FPS: 30})
	if err != nil {
		t.Fatal(err)
	}
	base := "/api/analyses/" + res.Record.ID

	rec := serve(h, http.MethodGet, base+"/frames", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("frames: expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var fr framesResponse
	if err := json.NewDecoder(rec.Body).Decode(&fr); err != nil {
		t.Fatal(err)
	}
	if len(fr.Frames) != len(frames) {
		t.Errorf("expected %d frames, got %d", len(frames), len(fr.Frames))
	}

	// Swap the torso mapping to a landmark the session lacks; the
	// recomputed analysis loses its torso angles.
	js := angle.DefaultJoints()
	js[angle.Torso] = angle.Joint{
		Left:      angle.Segment{From: pose.LeftHip, To: pose.LeftEar},
		Right:     angle.Segment{From: pose.RightHip, To: pose.RightEar},
		Reference: js[angle.Torso].Reference,
	}
	if err := a.SetJoints(js); err != nil {
		t.Fatal(err)
	}

	rec = serve(h, http.MethodPost, base+"/reanalyze", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reanalyze: expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	var again app.Result
	if err := json.NewDecoder(rec.Body).Decode(&again); err != nil {
		t.Fatal(err)
	}
	if again.Record.ID != res.Record.ID {
		t.Errorf("expected id %s, got %s", res.Record.ID, again.Record.ID)
	}
	for _, r := range again.Report.Calculation.Angles[angle.Torso] {
		if r.Defined() {
			t.Fatal("expected torso angles to be undefined with the new mapping")
		}
	}

	rec = serve(h, http.MethodGet, base+"/reanalyze", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
	rec = serve(h, http.MethodGet, base+"/unknown", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
	rec = serve(h, http.MethodPost, "/api/analyses/missing/reanalyze", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
	rec = serve(h, http.MethodGet, "/api/analyses/missing/frames", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestAnalysisHandler_Reanalyze_NoFrames(t *testing.T) {
	h, _, a := newAnalysisHandler(t, false)

	res, err := a.AnalyzeFrames(context.Background(), pose.DefaultSession().Frames(), app.AnalyzeOptions{FPS: 30})
	if err != nil {
		t.Fatal(err)
	}

	rec := serve(h, http.MethodPost, "/api/analyses/"+res.Record.ID+"/reanalyze", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, rec.Code)
	}
}

func TestAnalysisHandler_MethodNotAllowed(t *testing.T) {
	h, _, _ := newAnalysisHandler(t, false)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPut, "/api/analyses"},
		{http.MethodDelete, "/api/analyses"},
		{http.MethodPut, "/api/analyses/some-id"},
		{http.MethodPost, "/api/analyses/some-id"},
	}

	for _, tt := range tests {
		rec := serve(h, tt.method, tt.path, nil)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: expected status %d, got %d", tt.method, tt.path, http.StatusMethodNotAllowed, rec.Code)
		}
	}
}

func TestAngleHandler(t *testing.T) {
	h := NewAngleHandler(angle.Default)
	p := pose.Posture{Torso: 25, Thigh: 50, Shin: 65}

	t.Run("series without average", func(t *testing.T) {
		rec := serve(h, http.MethodPost, "/api/angles", anglesRequest{
			Joint:  "torso",
			Frames: []pose.Frame{pose.PostureFrame(p, 0)},
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		var resp anglesResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if resp.Joint != angle.Torso || len(resp.Series) != 1 || resp.Average != nil {
			t.Errorf("unexpected response %+v", resp)
		}
		if d := resp.Series[0].Or(0) - 25; d > 0.01 || d < -0.01 {
			t.Errorf("expected torso 25, got %v", resp.Series[0])
		}
	})

	t.Run("empty input gives empty series", func(t *testing.T) {
		rec := serve(h, http.MethodPost, "/api/angles", `{"joint":"ankle","frames":[],"average":true}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		body := rec.Body.String()
		if !strings.Contains(body, `"series":[]`) || !strings.Contains(body, `"average":null`) {
			t.Errorf("unexpected body %s", body)
		}
	})

	t.Run("unknown joint", func(t *testing.T) {
		rec := serve(h, http.MethodPost, "/api/angles", `{"joint":"elbow","frames":[]}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		rec := serve(h, http.MethodGet, "/api/angles", nil)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
		}
	})
}

func TestSettingsHandler(t *testing.T) {
	h := NewSettingsHandler(newTestStore(t))

	rec := serve(h, http.MethodGet, "/api/settings/view", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing key: expected status %d, got %d", http.StatusNotFound, rec.Code)
	}

	rec = serve(h, http.MethodPut, "/api/settings/view", map[string]string{"value": "front"})
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT: expected status %d, got %d", http.StatusOK, rec.Code)
	}

	rec = serve(h, http.MethodGet, "/api/settings/view", nil)
	var one settingResponse
	if err := json.NewDecoder(rec.Body).Decode(&one); err != nil {
		t.Fatal(err)
	}
	if one.Key != "view" || one.Value != "front" {
		t.Errorf("unexpected setting %+v", one)
	}

	rec = serve(h, http.MethodGet, "/api/settings", nil)
	var all map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&all); err != nil {
		t.Fatal(err)
	}
	if all["view"] != "front" {
		t.Errorf("unexpected settings %v", all)
	}

	rec = serve(h, http.MethodPut, "/api/settings/view", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("PUT without value: expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}

	rec = serve(h, http.MethodDelete, "/api/settings/view", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("DELETE: expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	rec = serve(h, http.MethodDelete, "/api/settings/view", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second DELETE: expected status %d, got %d", http.StatusNotFound, rec.Code)
	}

	rec = serve(h, http.MethodPost, "/api/settings", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST: expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}
