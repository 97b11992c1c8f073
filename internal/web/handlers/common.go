package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/holelung/Face-recognition-attendance-check/internal/constants"
	"github.com/holelung/Face-recognition-attendance-check/internal/database"
	"github.com/holelung/Face-recognition-attendance-check/internal/facematch"
	"github.com/holelung/Face-recognition-attendance-check/internal/registrar"
	"github.com/holelung/Face-recognition-attendance-check/internal/session"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// decodeRequest reads a size-limited JSON body into dst and validates it.
// It writes the 400 response itself and reports whether the handler may continue.
func decodeRequest(w http.ResponseWriter, r *http.Request, v *validator.Validate, log logrus.FieldLogger, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return false
	}
	if err := v.Struct(dst); err != nil {
		log.WithFields(logrus.Fields{
			"request_id": chiMiddleware.GetReqID(r.Context()),
			"path":       r.URL.Path,
			"error":      sanitizeForLog(err.Error()),
		}).Warn("validation failed")
		respondError(w, http.StatusBadRequest, "validation failed: "+validationMessage(err))
		return false
	}
	return true
}

// validationMessage turns validator errors into a short field list.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}

// statusForError maps domain errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, facematch.ErrInvalidDescriptor),
		errors.Is(err, registrar.ErrInvalidIdentity),
		errors.Is(err, session.ErrInvalidResolution):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrNotFound),
		errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, session.ErrPendingNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrDuplicateIdentity),
		errors.Is(err, database.ErrConcurrentModification):
		return http.StatusConflict
	case database.IsRetryable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError writes the mapped status for err. Client errors echo the
// error text; server errors are logged and answered with fallback.
func respondServiceError(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, err error, fallback string) {
	status := statusForError(err)
	if status < http.StatusInternalServerError {
		respondError(w, status, err.Error())
		return
	}

	log.WithFields(logrus.Fields{
		"request_id": chiMiddleware.GetReqID(r.Context()),
		"path":       r.URL.Path,
		"status":     status,
	}).WithError(err).Error(fallback)

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
		respondError(w, status, "storage temporarily unavailable")
		return
	}
	respondError(w, status, fallback)
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
