package api

import (
	"errors"
	"net/http"

	"github.com/ZDP-Q/PostureCorrection/internal/analyzer"
	"github.com/ZDP-Q/PostureCorrection/internal/app"
	"github.com/ZDP-Q/PostureCorrection/internal/pose"
)

// ActiveReferenceHandler reads and replaces the live reference pose.
//
//	GET    /api/reference  the active reference, 404 when none
//	PUT    /api/reference  body {"name": "...", "pose": {...}}, not persisted
//	DELETE /api/reference  clear the active reference
type ActiveReferenceHandler struct {
	session *app.Session
}

// NewActiveReferenceHandler creates a new ActiveReferenceHandler.
func NewActiveReferenceHandler(session *app.Session) *ActiveReferenceHandler {
	return &ActiveReferenceHandler{session: session}
}

type activeReferenceRequest struct {
	Name string     `json:"name"`
	Pose *pose.Pose `json:"pose"`
}

type activeReferenceResponse struct {
	ID     string        `json:"id,omitempty"`
	Name   string        `json:"name"`
	Pose   pose.Pose     `json:"pose"`
	Angles pose.AngleSet `json:"angles"`
}

// ServeHTTP implements the http.Handler interface.
func (h *ActiveReferenceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w)
	case http.MethodPut:
		var req activeReferenceRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.Pose == nil {
			writeError(w, http.StatusBadRequest, "pose is required")
			return
		}
		if err := h.session.SetReference(*req.Pose, req.Name); err != nil {
			if errors.Is(err, analyzer.ErrEmptyPose) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		h.get(w)
	case http.MethodDelete:
		if err := h.session.ClearReference(); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *ActiveReferenceHandler) get(w http.ResponseWriter) {
	p, name, ok := h.session.Reference()
	if !ok {
		writeError(w, http.StatusNotFound, app.ErrNoReference.Error())
		return
	}

	resp := activeReferenceResponse{ID: h.session.ReferenceID(), Name: name, Pose: p}
	if a, err := analyzer.Resolve(h.session.Container()); err == nil {
		if angles, err := a.ExtractPoseAngles(p); err == nil {
			resp.Angles = angles
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// EnabledHandler toggles live analysis.
//
//	GET /api/enabled  {"enabled": true}
//	PUT /api/enabled  body {"enabled": false}
type EnabledHandler struct {
	session *app.Session
}

// NewEnabledHandler creates a new EnabledHandler.
func NewEnabledHandler(session *app.Session) *EnabledHandler {
	return &EnabledHandler{session: session}
}

type enabledBody struct {
	Enabled *bool `json:"enabled"`
}

// ServeHTTP implements the http.Handler interface.
func (h *EnabledHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var req enabledBody
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.Enabled == nil {
			writeError(w, http.StatusBadRequest, "enabled is required")
			return
		}
		h.session.SetEnabled(*req.Enabled)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	enabled := h.session.IsEnabled()
	writeJSON(w, http.StatusOK, enabledBody{Enabled: &enabled})
}
