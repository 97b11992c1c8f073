package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/holelung/Face-recognition-attendance-check/internal/facematch"
	"github.com/holelung/Face-recognition-attendance-check/internal/session"
)

// SessionsHandler handles capture session endpoints
type SessionsHandler struct {
	manager  *session.Manager
	validate *validator.Validate
	log      logrus.FieldLogger
}

// NewSessionsHandler creates a new sessions handler
func NewSessionsHandler(manager *session.Manager, validate *validator.Validate, log logrus.FieldLogger) *SessionsHandler {
	return &SessionsHandler{
		manager:  manager,
		validate: validate,
		log:      log,
	}
}

// Open starts a capture session
func (h *SessionsHandler) Open(w http.ResponseWriter, r *http.Request) {
	s := h.manager.Open()
	respondJSON(w, http.StatusCreated, SessionResponse{
		ID:        s.ID,
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
	})
}

// Close ends a capture session and discards its pending faces
func (h *SessionsHandler) Close(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Close(chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, r, h.log, err, "failed to close session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RequireSession responds 404 for unknown session ids before next runs, so
// per-session middleware only ever sees open sessions.
func (h *SessionsHandler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := h.manager.Get(chi.URLParam(r, "id")); err != nil {
			respondServiceError(w, r, h.log, err, "failed to get session")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Capture matches one descriptor within a session
func (h *SessionsHandler) Capture(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, h.log, err, "failed to get session")
		return
	}

	var req CaptureRequest
	if !decodeRequest(w, r, h.validate, h.log, &req) {
		return
	}

	var at time.Time
	if req.Timestamp != nil {
		at = *req.Timestamp
	}
	res, err := s.Capture(r.Context(), facematch.FromFloat64(req.Descriptor), req.Photo, at)
	if err != nil {
		respondServiceError(w, r, h.log, err, "failed to process capture")
		return
	}

	respondJSON(w, http.StatusOK, captureToResponse(res))
}

// Pending lists the session's unresolved faces, oldest first
func (h *SessionsHandler) Pending(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, h.log, err, "failed to get session")
		return
	}

	pending := s.Pending()
	response := make([]PendingResponse, len(pending))
	for i, p := range pending {
		response[i] = pendingToResponse(p)
	}
	respondJSON(w, http.StatusOK, response)
}

// Resolve registers a pending face as a new student or appends it to an existing one
func (h *SessionsHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, h.log, err, "failed to get session")
		return
	}

	var req ResolveRequest
	if !decodeRequest(w, r, h.validate, h.log, &req) {
		return
	}

	ident, err := s.Resolve(r.Context(), chi.URLParam(r, "key"), session.Resolution{
		Mode:        session.Mode(req.Mode),
		ExternalID:  req.StudentID,
		DisplayName: req.Name,
	})
	if err != nil {
		respondServiceError(w, r, h.log, err, "failed to resolve pending face")
		return
	}

	status := http.StatusOK
	if req.Mode == string(session.ModeNew) {
		status = http.StatusCreated
	}
	respondJSON(w, status, studentToResponse(ident))
}
