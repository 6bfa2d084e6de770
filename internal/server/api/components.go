package api

import (
	"errors"
	"net/http"

	"github.com/ZDP-Q/PostureCorrection/internal/app"
	"github.com/ZDP-Q/PostureCorrection/internal/component"
)

// ComponentsHandler lists implementations and switches the active one.
//
//	GET /api/components             every category
//	PUT /api/components/{category}  body {"name": "..."}
type ComponentsHandler struct {
	session *app.Session
}

// NewComponentsHandler creates a new ComponentsHandler.
func NewComponentsHandler(session *app.Session) *ComponentsHandler {
	return &ComponentsHandler{session: session}
}

type listComponentsResponse struct {
	Components []app.ComponentInfo `json:"components"`
}

type selectComponentRequest struct {
	Name string `json:"name"`
}

// ServeHTTP implements the http.Handler interface.
func (h *ComponentsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r, "/api/components")

	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, listComponentsResponse{Components: h.session.Components()})
	case len(parts) == 1 && r.Method == http.MethodPut:
		h.selectComponent(w, r, parts[0])
	case len(parts) > 1:
		writeError(w, http.StatusNotFound, "not found")
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *ComponentsHandler) selectComponent(w http.ResponseWriter, r *http.Request, categoryName string) {
	category, err := component.ParseCategory(categoryName)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	var req selectComponentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch category {
	case component.CategoryDetector:
		err = h.session.SelectDetector(req.Name)
	case component.CategoryAnalyzer:
		err = h.session.SelectAnalyzer(req.Name)
	default:
		err = h.session.Container().Select(category, req.Name)
	}
	if err != nil {
		if errors.Is(err, component.ErrUnknownImplementation) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, listComponentsResponse{Components: h.session.Components()})
}
