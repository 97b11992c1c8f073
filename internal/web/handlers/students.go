package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/holelung/Face-recognition-attendance-check/internal/attendance"
	"github.com/holelung/Face-recognition-attendance-check/internal/database"
	"github.com/holelung/Face-recognition-attendance-check/internal/facematch"
	"github.com/holelung/Face-recognition-attendance-check/internal/registrar"
)

// GalleryRebuilder refreshes the shared gallery after a registry write.
type GalleryRebuilder interface {
	Rebuild(ctx context.Context) (*facematch.Gallery, error)
}

// StudentsHandler handles student registry endpoints
type StudentsHandler struct {
	store     database.IdentityReader
	registrar *registrar.Registrar
	gallery   GalleryRebuilder
	recorder  *attendance.Recorder
	validate  *validator.Validate
	log       logrus.FieldLogger
}

// NewStudentsHandler creates a new students handler
func NewStudentsHandler(store database.IdentityReader, reg *registrar.Registrar, gallery GalleryRebuilder,
	rec *attendance.Recorder, validate *validator.Validate, log logrus.FieldLogger,
) *StudentsHandler {
	return &StudentsHandler{
		store:     store,
		registrar: reg,
		gallery:   gallery,
		recorder:  rec,
		validate:  validate,
		log:       log,
	}
}

// List returns all students in registration order, optionally filtered by name
func (h *StudentsHandler) List(w http.ResponseWriter, r *http.Request) {
	identities, err := h.store.ListIdentities(r.Context())
	if err != nil {
		respondServiceError(w, r, h.log, err, "failed to list students")
		return
	}

	query := r.URL.Query().Get("name")
	response := make([]StudentResponse, 0, len(identities))
	for i := range identities {
		if !facematch.StudentNameContains(identities[i].DisplayName, query) {
			continue
		}
		response = append(response, studentToResponse(&identities[i]))
	}

	respondJSON(w, http.StatusOK, response)
}

// Get returns a single student by id
func (h *StudentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentId")
	if studentID == "" {
		respondError(w, http.StatusBadRequest, "studentId is required")
		return
	}

	ident, err := h.store.GetIdentity(r.Context(), studentID)
	if err != nil {
		respondServiceError(w, r, h.log, err, "failed to get student")
		return
	}
	respondJSON(w, http.StatusOK, studentToResponse(ident))
}

// Create registers a new student from one photo and its descriptor.
// Further photos are added with AppendDescriptor.
func (h *StudentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateStudentRequest
	if !decodeRequest(w, r, h.validate, h.log, &req) {
		return
	}

	ident, err := h.registrar.RegisterNew(r.Context(), req.Name, req.StudentID,
		facematch.FromFloat64(req.FaceDescriptor), req.Photos[0])
	if err != nil {
		respondServiceError(w, r, h.log, err, "failed to create student")
		return
	}
	h.rebuild(r)

	respondJSON(w, http.StatusCreated, studentToResponse(ident))
}

// AppendDescriptor adds one photo and descriptor to an existing student
func (h *StudentsHandler) AppendDescriptor(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentId")
	if studentID == "" {
		respondError(w, http.StatusBadRequest, "studentId is required")
		return
	}

	var req AppendDescriptorRequest
	if !decodeRequest(w, r, h.validate, h.log, &req) {
		return
	}

	ident, err := h.registrar.AppendToExisting(r.Context(), studentID,
		facematch.FromFloat64(req.FaceDescriptor), req.Photo)
	if err != nil {
		respondServiceError(w, r, h.log, err, "failed to update student")
		return
	}
	h.rebuild(r)

	respondJSON(w, http.StatusOK, studentToResponse(ident))
}

// Attendance lists all attendance records of one student
func (h *StudentsHandler) Attendance(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentId")
	if studentID == "" {
		respondError(w, http.StatusBadRequest, "studentId is required")
		return
	}

	records, err := h.recorder.ListIdentity(r.Context(), studentID)
	if err != nil {
		respondServiceError(w, r, h.log, err, "failed to list attendance")
		return
	}
	respondJSON(w, http.StatusOK, recordsToResponse(records))
}

// rebuild refreshes the gallery. The write already succeeded, so a failed
// rebuild is only logged; the next capture refreshes a stale gallery anyway.
func (h *StudentsHandler) rebuild(r *http.Request) {
	if h.gallery == nil {
		return
	}
	if _, err := h.gallery.Rebuild(r.Context()); err != nil {
		h.log.WithError(err).Warn("gallery rebuild after registry write failed")
	}
}
