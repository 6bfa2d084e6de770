package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/ZDP-Q/PostureCorrection/internal/app"
	"github.com/ZDP-Q/PostureCorrection/internal/pose"
	"github.com/ZDP-Q/PostureCorrection/internal/store"
)

// ReferenceHandler handles HTTP requests for stored reference poses.
//
//	GET    /api/references               list
//	POST   /api/references               create from a pose or samples
//	GET    /api/references/{id}          one reference with its landmarks
//	PUT    /api/references/{id}         rename
//	DELETE /api/references/{id}          delete
//	POST   /api/references/{id}/activate make it the live reference
type ReferenceHandler struct {
	session *app.Session
	store   *store.Store
}

// NewReferenceHandler creates a new ReferenceHandler.
func NewReferenceHandler(session *app.Session, s *store.Store) *ReferenceHandler {
	return &ReferenceHandler{session: session, store: s}
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *ReferenceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r, "/api/references")

	switch len(parts) {
	case 0:
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	case 1:
		id := parts[0]
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, id)
		case http.MethodPut:
			h.rename(w, r, id)
		case http.MethodDelete:
			h.delete(w, r, id)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	case 2:
		if parts[1] != "activate" {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.activate(w, r, parts[0])
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

type createReferenceRequest struct {
	Name    string      `json:"name"`
	Source  string      `json:"source"`
	Pose    *pose.Pose  `json:"pose"`
	Samples []pose.Pose `json:"samples"`
}

type renameReferenceRequest struct {
	Name string `json:"name"`
}

type referenceResponse struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Source    string     `json:"source"`
	Samples   int        `json:"samples"`
	Active    bool       `json:"active"`
	CreatedAt string     `json:"created_at"`
	UpdatedAt string     `json:"updated_at"`
	Pose      *pose.Pose `json:"pose,omitempty"`
}

type listReferencesResponse struct {
	References []referenceResponse `json:"references"`
}

func (h *ReferenceHandler) toResponse(ref *store.Reference) referenceResponse {
	return referenceResponse{
		ID:        ref.ID,
		Name:      ref.Name,
		Source:    ref.Source,
		Samples:   ref.Samples,
		Active:    ref.ID == h.session.ReferenceID(),
		CreatedAt: ref.CreatedAt.Format(time.RFC3339),
		UpdatedAt: ref.UpdatedAt.Format(time.RFC3339),
	}
}

// writeStoreError maps repository errors to status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "reference not found")
	case errors.Is(err, store.ErrNameTaken):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// list handles GET /api/references.
func (h *ReferenceHandler) list(w http.ResponseWriter, r *http.Request) {
	refs, err := h.store.References().List()
	if err != nil {
		writeStoreError(w, err)
		return
	}

	resp := listReferencesResponse{References: make([]referenceResponse, 0, len(refs))}
	for _, ref := range refs {
		resp.References = append(resp.References, h.toResponse(ref))
	}
	writeJSON(w, http.StatusOK, resp)
}

// create handles POST /api/references. The body carries either a single
// pose or several samples to be averaged.
func (h *ReferenceHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createReferenceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	samples := req.Samples
	if req.Pose != nil {
		samples = append([]pose.Pose{*req.Pose}, samples...)
	}
	if len(samples) == 0 {
		writeError(w, http.StatusBadRequest, "pose or samples are required")
		return
	}
	if req.Source == "" {
		req.Source = "api"
	}

	ref, err := h.session.SaveTrainedReference(req.Name, req.Source, samples)
	if err != nil {
		if errors.Is(err, store.ErrNameTaken) {
			writeStoreError(w, err)
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, h.toResponse(ref))
}

// get handles GET /api/references/{id}.
func (h *ReferenceHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	ref, err := h.store.References().GetByID(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	p, err := h.store.References().Landmarks(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	resp := h.toResponse(ref)
	resp.Pose = &p
	writeJSON(w, http.StatusOK, resp)
}

// rename handles PUT /api/references/{id}.
func (h *ReferenceHandler) rename(w http.ResponseWriter, r *http.Request, id string) {
	var req renameReferenceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	if err := h.store.References().Rename(id, req.Name); err != nil {
		writeStoreError(w, err)
		return
	}
	if err := h.session.LoadReferences(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if h.session.ReferenceID() == id {
		if err := h.session.ActivateReference(id); err != nil {
			writeStoreError(w, err)
			return
		}
	}

	ref, err := h.store.References().GetByID(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toResponse(ref))
}

// delete handles DELETE /api/references/{id}.
func (h *ReferenceHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.session.DeleteReference(id); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// activate handles POST /api/references/{id}/activate.
func (h *ReferenceHandler) activate(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.session.ActivateReference(id); err != nil {
		writeStoreError(w, err)
		return
	}

	ref, err := h.store.References().GetByID(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toResponse(ref))
}
