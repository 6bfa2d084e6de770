package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ZDP-Q/PostureCorrection/internal/app"
	"github.com/ZDP-Q/PostureCorrection/internal/bootstrap"
	"github.com/ZDP-Q/PostureCorrection/internal/component"
	"github.com/ZDP-Q/PostureCorrection/internal/detector"
	"github.com/ZDP-Q/PostureCorrection/internal/store"
)

func newTestSession(t *testing.T, s *store.Store) *app.Session {
	t.Helper()

	c, err := bootstrap.New()
	if err != nil {
		t.Fatalf("bootstrap.New() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	if err := c.Select(component.CategoryDetector, "mock"); err != nil {
		t.Fatalf("Select(mock) error = %v", err)
	}

	session, err := app.New(app.Options{Container: c, Store: s})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	t.Cleanup(session.Close)
	return session
}

func postJSON(t *testing.T, client *http.Client, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("encode body: %v", err)
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s error = %v", url, err)
	}
	return resp
}

func TestAPI_ReferenceWorkflow(t *testing.T) {
	// Setup
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer st.Close()

	srv := New(Config{Session: newTestSession(t, st)})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()

	// 1. Create a reference
	resp := postJSON(t, client, ts.URL+"/api/references", map[string]any{
		"name": "t-pose",
		"pose": detector.TPose(),
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST /api/references status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var created struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()

	// 2. Comparing before activation fails
	resp = postJSON(t, client, ts.URL+"/api/compare", map[string]any{"live": detector.TPose()})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("POST /api/compare without reference status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}

	// 3. Activate it
	resp = postJSON(t, client, ts.URL+"/api/references/"+created.ID+"/activate", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("activate status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	// 4. The active reference is visible
	resp, err = client.Get(ts.URL + "/api/reference")
	if err != nil {
		t.Fatalf("GET /api/reference error = %v", err)
	}
	var active struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	json.NewDecoder(resp.Body).Decode(&active)
	resp.Body.Close()
	if active.ID != created.ID || active.Name != "t-pose" {
		t.Errorf("active reference = %+v, want %s", active, created.ID)
	}

	// 5. Compare a matching pose
	resp = postJSON(t, client, ts.URL+"/api/compare", map[string]any{"live": detector.TPose()})
	var compared struct {
		Result struct {
			Score float64 `json:"score"`
		} `json:"result"`
	}
	json.NewDecoder(resp.Body).Decode(&compared)
	resp.Body.Close()
	if compared.Result.Score != 1 {
		t.Errorf("score = %v, want 1", compared.Result.Score)
	}

	// 6. Delete and verify
	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/references/"+created.ID, nil)
	resp, _ = client.Do(req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("DELETE status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}

	resp, _ = client.Get(ts.URL + "/api/reference")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET /api/reference after delete status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestResultsHandler_StreamsFrames(t *testing.T) {
	session := newTestSession(t, nil)
	if err := session.SetReference(detector.TPose(), "t-pose"); err != nil {
		t.Fatalf("SetReference() error = %v", err)
	}

	ts := httptest.NewServer(New(Config{Session: session}))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/results"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	// The subscription is registered after the upgrade; keep publishing
	// until a frame arrives.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				session.Compare(detector.ArmsDown())
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var frame struct {
		Detected  bool   `json:"detected"`
		Reference string `json:"reference"`
		Result    struct {
			Score float64 `json:"score"`
		} `json:"result"`
	}
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}

	if !frame.Detected {
		t.Error("expected a detected frame")
	}
	if frame.Reference != "t-pose" {
		t.Errorf("reference = %q, want t-pose", frame.Reference)
	}
	if frame.Result.Score >= 1 {
		t.Errorf("score = %v, want below 1", frame.Result.Score)
	}
}

func TestStreamHandler_RejectsNonGet(t *testing.T) {
	h := NewStreamHandler(newTestSession(t, nil))

	req := httptest.NewRequest(http.MethodPost, "/api/stream", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}
