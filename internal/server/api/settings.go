package api

import (
	"errors"
	"net/http"

	"github.com/ZDP-Q/PostureCorrection/internal/app"
	"github.com/ZDP-Q/PostureCorrection/internal/config"
)

// SettingsHandler exposes the configuration.
//
//	GET /api/settings  the full settings tree
//	PUT /api/settings  body {"key": "analyzer.angle_threshold", "value": 20}
//
// Changes apply to the running components immediately. When a config
// file path is set they are also written back to it, and a change that
// cannot be saved is rolled back.
type SettingsHandler struct {
	session *app.Session
	path    string
}

// NewSettingsHandler creates a new SettingsHandler. path may be empty.
func NewSettingsHandler(session *app.Session, path string) *SettingsHandler {
	return &SettingsHandler{session: session, path: path}
}

type setSettingRequest struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// ServeHTTP implements the http.Handler interface.
func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cfg, err := config.Resolve(h.session.Container())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, cfg.Snapshot())
	case http.MethodPut:
		var req setSettingRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		prev, had := cfg.Get(req.Key)
		if err := cfg.Set(req.Key, req.Value); err != nil {
			if errors.Is(err, config.ErrUnknownKey) {
				writeError(w, http.StatusNotFound, err.Error())
				return
			}
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if h.path != "" {
			if err := cfg.SaveFile(h.path); err != nil {
				if had {
					cfg.Set(req.Key, prev)
				}
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
		writeJSON(w, http.StatusOK, cfg.Snapshot())
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
