package api

import (
	"errors"
	"net/http"

	"github.com/ZDP-Q/PostureCorrection/internal/analyzer"
	"github.com/ZDP-Q/PostureCorrection/internal/app"
	"github.com/ZDP-Q/PostureCorrection/internal/pose"
)

// CompareHandler handles POST /api/compare. With a reference in the body
// the two poses are compared directly; without one the live pose is
// compared against the session's active reference and the result is
// published to subscribers.
type CompareHandler struct {
	session *app.Session
}

// NewCompareHandler creates a new CompareHandler.
func NewCompareHandler(session *app.Session) *CompareHandler {
	return &CompareHandler{session: session}
}

type compareRequest struct {
	Reference *pose.Pose `json:"reference"`
	Live      *pose.Pose `json:"live"`
}

type compareResponse struct {
	Result   *pose.MatchResult `json:"result"`
	Feedback analyzer.Feedback `json:"feedback"`
	Angles   pose.AngleSet     `json:"angles"`
}

// ServeHTTP implements the http.Handler interface.
func (h *CompareHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req compareRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Live == nil {
		writeError(w, http.StatusBadRequest, "live pose is required")
		return
	}

	if req.Reference == nil {
		f, err := h.session.Compare(*req.Live)
		if err != nil {
			writeCompareError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, compareResponse{Result: f.Result, Feedback: f.Feedback, Angles: f.Angles})
		return
	}

	a, err := analyzer.Resolve(h.session.Container())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	refAngles, err := a.ExtractPoseAngles(*req.Reference)
	if err != nil {
		writeCompareError(w, err)
		return
	}
	liveAngles, err := a.ExtractPoseAngles(*req.Live)
	if err != nil {
		writeCompareError(w, err)
		return
	}

	result := a.CompareAngles(refAngles, liveAngles)
	writeJSON(w, http.StatusOK, compareResponse{
		Result:   &result,
		Feedback: analyzer.GenerateFeedback(result, refAngles, liveAngles),
		Angles:   liveAngles,
	})
}

func writeCompareError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrNoReference):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, analyzer.ErrEmptyPose):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// IdentifyHandler handles POST /api/identify: it ranks the stored
// references against the posted pose.
type IdentifyHandler struct {
	session *app.Session
}

// NewIdentifyHandler creates a new IdentifyHandler.
func NewIdentifyHandler(session *app.Session) *IdentifyHandler {
	return &IdentifyHandler{session: session}
}

type identifyRequest struct {
	Pose     *pose.Pose `json:"pose"`
	MinScore float64    `json:"min_score"`
}

type identifyMatch struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Score      float64 `json:"score"`
	Similarity float64 `json:"similarity"`
}

type identifyResponse struct {
	Matches []identifyMatch `json:"matches"`
}

// ServeHTTP implements the http.Handler interface.
func (h *IdentifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req identifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Pose == nil {
		writeError(w, http.StatusBadRequest, "pose is required")
		return
	}

	matches, err := h.session.Identify(*req.Pose, req.MinScore)
	if err != nil {
		writeCompareError(w, err)
		return
	}

	resp := identifyResponse{Matches: make([]identifyMatch, 0, len(matches))}
	for _, m := range matches {
		resp.Matches = append(resp.Matches, identifyMatch{
			ID:         m.Template.ID,
			Name:       m.Template.Name,
			Score:      m.Result.Score,
			Similarity: m.Result.Similarity,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
