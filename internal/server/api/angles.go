package api

import (
	"net/http"

	"github.com/ayusman/formcheck/internal/angle"
	"github.com/ayusman/formcheck/internal/pose"
)

// AngleHandler measures joint angles over posted landmark frames. It keeps
// no state between requests.
type AngleHandler struct {
	calculator func() *angle.Calculator
}

// NewAngleHandler creates an AngleHandler that measures with the calculator
// returned by calc at request time.
func NewAngleHandler(calc func() *angle.Calculator) *AngleHandler {
	return &AngleHandler{calculator: calc}
}

type anglesRequest struct {
	Frames  []pose.Frame `json:"frames"`
	Joint   string       `json:"joint"`
	Average bool         `json:"average"`
}

type anglesResponse struct {
	Joint   angle.Kind     `json:"joint"`
	Series  []angle.Result `json:"series"`
	Average *angle.Result  `json:"average,omitempty"`
}

// ServeHTTP handles POST /api/angles.
func (h *AngleHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req anglesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	kind, err := angle.ParseKind(req.Joint)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	calc := h.calculator()
	resp := anglesResponse{
		Joint:  kind,
		Series: calc.Series(req.Frames, kind),
	}
	if req.Average {
		avg := calc.Average(req.Frames, kind)
		resp.Average = &avg
	}

	writeJSON(w, http.StatusOK, resp)
}
