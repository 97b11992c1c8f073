package handlers

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/holelung/Face-recognition-attendance-check/internal/attendance"
)

// AttendanceHandler handles attendance endpoints
type AttendanceHandler struct {
	recorder *attendance.Recorder
	validate *validator.Validate
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewAttendanceHandler creates a new attendance handler
func NewAttendanceHandler(rec *attendance.Recorder, validate *validator.Validate, log logrus.FieldLogger) *AttendanceHandler {
	return &AttendanceHandler{
		recorder: rec,
		validate: validate,
		log:      log,
		now:      time.Now,
	}
}

// Record stores a present record for a student. Repeats on the same day are
// reported with outcome "suppressed" and the original record.
func (h *AttendanceHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req RecordAttendanceRequest
	if !decodeRequest(w, r, h.validate, h.log, &req) {
		return
	}

	var at time.Time
	if req.Timestamp != nil {
		at = *req.Timestamp
	}
	res, err := h.recorder.Record(r.Context(), req.StudentID, at)
	if err != nil {
		respondServiceError(w, r, h.log, err, "failed to record attendance")
		return
	}

	status := http.StatusOK
	if res.Outcome == attendance.Recorded {
		status = http.StatusCreated
	}
	respondJSON(w, status, resultToResponse(res))
}

// List returns attendance for ?date=YYYY-MM-DD, defaulting to today
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	day := h.recorder.Day(h.now())
	if q := r.URL.Query().Get("date"); q != "" {
		parsed, err := h.recorder.ParseDay(q)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		day = parsed
	}

	records, err := h.recorder.ListDay(r.Context(), day)
	if err != nil {
		respondServiceError(w, r, h.log, err, "failed to list attendance")
		return
	}
	respondJSON(w, http.StatusOK, recordsToResponse(records))
}
