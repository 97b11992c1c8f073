package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/holelung/Face-recognition-attendance-check/internal/attendance"
	"github.com/holelung/Face-recognition-attendance-check/internal/database"
	"github.com/holelung/Face-recognition-attendance-check/internal/database/memory"
	"github.com/holelung/Face-recognition-attendance-check/internal/facematch"
	"github.com/holelung/Face-recognition-attendance-check/internal/logger"
	"github.com/holelung/Face-recognition-attendance-check/internal/registrar"
	"github.com/holelung/Face-recognition-attendance-check/internal/session"
)

// testEnv wires handlers to an in-memory store.
type testEnv struct {
	store    *memory.Store
	engine   *session.Engine
	manager  *session.Manager
	recorder *attendance.Recorder
	students *StudentsHandler
	sessions *SessionsHandler
	attend   *AttendanceHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.Discard()
	store := memory.New()
	matcher := facematch.NewMatcher(facematch.WithThreshold(0.6))
	reg := registrar.New(store, 3, log)
	rec := attendance.NewRecorder(store, store, log, attendance.WithLocation(time.UTC))

	engine, err := session.NewEngine(session.Config{DedupThreshold: 0.4, PendingCapacity: 16},
		matcher, database.NewGallerySource(store), reg, rec, log)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	manager := session.NewManager(engine, time.Minute, log)
	v := validator.New()

	return &testEnv{
		store:    store,
		engine:   engine,
		manager:  manager,
		recorder: rec,
		students: NewStudentsHandler(store, reg, engine, rec, v, log),
		sessions: NewSessionsHandler(manager, v, log),
		attend:   NewAttendanceHandler(rec, v, log),
	}
}

// descriptorAt returns a descriptor whose first component is x.
func descriptorAt(x float64) []float64 {
	d := make([]float64, facematch.Dimension)
	d[0] = x
	return d
}

// jsonRequest builds a request with a JSON encoded body
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
