package handlers

import (
	"math"
	"time"

	"github.com/holelung/Face-recognition-attendance-check/internal/attendance"
	"github.com/holelung/Face-recognition-attendance-check/internal/database"
	"github.com/holelung/Face-recognition-attendance-check/internal/facematch"
	"github.com/holelung/Face-recognition-attendance-check/internal/session"
	"github.com/holelung/Face-recognition-attendance-check/internal/unknowns"
)

// Request and response field names follow the student records the web
// client already produces: name, studentId, photos, faceDescriptor.

// CreateStudentRequest registers a new student with one descriptor. Photos
// pair with descriptors by index, so exactly one photo is accepted here.
type CreateStudentRequest struct {
	Name           string    `json:"name" validate:"required"`
	StudentID      string    `json:"studentId" validate:"required"`
	Photos         []string  `json:"photos" validate:"required,len=1,dive,required"`
	FaceDescriptor []float64 `json:"faceDescriptor" validate:"required,len=128"`
}

// AppendDescriptorRequest adds one photo and descriptor to a student.
type AppendDescriptorRequest struct {
	Photo          string    `json:"photo" validate:"required"`
	FaceDescriptor []float64 `json:"faceDescriptor" validate:"required,len=128"`
}

// CaptureRequest is one frame's descriptor submitted to a session.
type CaptureRequest struct {
	Descriptor []float64  `json:"descriptor" validate:"required,len=128"`
	Photo      string     `json:"photo"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

// ResolveRequest is the operator's decision for a pending face.
type ResolveRequest struct {
	Mode      string `json:"mode" validate:"required,oneof=new existing"`
	StudentID string `json:"studentId" validate:"required"`
	Name      string `json:"name" validate:"required_if=Mode new"`
}

// RecordAttendanceRequest records attendance explicitly.
type RecordAttendanceRequest struct {
	StudentID string     `json:"studentId" validate:"required"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// StudentResponse represents a student in API responses
type StudentResponse struct {
	StudentID      string      `json:"studentId"`
	Name           string      `json:"name"`
	Photos         []string    `json:"photos"`
	FaceDescriptor [][]float32 `json:"faceDescriptor"`
	Version        int64       `json:"version"`
	CreatedAt      string      `json:"createdAt,omitempty"`
	UpdatedAt      string      `json:"updatedAt,omitempty"`
}

func studentToResponse(ident *database.Identity) StudentResponse {
	descriptors := make([][]float32, len(ident.Descriptors))
	for i, d := range ident.Descriptors {
		descriptors[i] = d
	}
	resp := StudentResponse{
		StudentID:      ident.ID,
		Name:           ident.DisplayName,
		Photos:         ident.Photos,
		FaceDescriptor: descriptors,
		Version:        ident.Version,
	}
	if !ident.CreatedAt.IsZero() {
		resp.CreatedAt = ident.CreatedAt.Format(time.RFC3339)
	}
	if !ident.UpdatedAt.IsZero() {
		resp.UpdatedAt = ident.UpdatedAt.Format(time.RFC3339)
	}
	return resp
}

// AttendanceRecordResponse represents an attendance record
type AttendanceRecordResponse struct {
	StudentID string `json:"studentId"`
	Date      string `json:"date"`
	Timestamp string `json:"timestamp"`
	Status    string `json:"status"`
}

func recordToResponse(rec database.AttendanceRecord) AttendanceRecordResponse {
	return AttendanceRecordResponse{
		StudentID: rec.IdentityID,
		Date:      rec.Day,
		Timestamp: rec.Timestamp.Format(time.RFC3339),
		Status:    string(rec.Status),
	}
}

func recordsToResponse(records []database.AttendanceRecord) []AttendanceRecordResponse {
	out := make([]AttendanceRecordResponse, len(records))
	for i, rec := range records {
		out[i] = recordToResponse(rec)
	}
	return out
}

// AttendanceResultResponse reports whether a record was written.
type AttendanceResultResponse struct {
	Outcome string                   `json:"outcome"`
	Record  AttendanceRecordResponse `json:"record"`
}

func resultToResponse(res attendance.Result) AttendanceResultResponse {
	return AttendanceResultResponse{
		Outcome: string(res.Outcome),
		Record:  recordToResponse(res.Record),
	}
}

// MatchResponse is a gallery lookup. Distance is omitted for unknown faces
// because JSON has no infinity.
type MatchResponse struct {
	Label     string   `json:"label"`
	StudentID string   `json:"studentId,omitempty"`
	Distance  *float64 `json:"distance,omitempty"`
}

func matchToResponse(m facematch.MatchResult) MatchResponse {
	resp := MatchResponse{Label: m.Label, StudentID: m.IdentityID}
	if !math.IsInf(m.Distance, 0) && !math.IsNaN(m.Distance) {
		d := m.Distance
		resp.Distance = &d
	}
	return resp
}

// PendingResponse is a staged unknown face.
type PendingResponse struct {
	Key        string `json:"key"`
	Photo      string `json:"photo,omitempty"`
	CapturedAt string `json:"capturedAt"`
}

func pendingToResponse(p unknowns.Pending) PendingResponse {
	return PendingResponse{
		Key:        p.Key,
		Photo:      p.Photo,
		CapturedAt: p.CapturedAt.Format(time.RFC3339),
	}
}

// CaptureResponse describes what happened to one capture.
type CaptureResponse struct {
	Match      MatchResponse             `json:"match"`
	Attendance *AttendanceResultResponse `json:"attendance,omitempty"`
	Accrued    bool                      `json:"accrued"`
	Pending    *PendingResponse          `json:"pending,omitempty"`
	Suppressed bool                      `json:"suppressed"`
}

func captureToResponse(res *session.CaptureResult) CaptureResponse {
	resp := CaptureResponse{
		Match:      matchToResponse(res.Match),
		Accrued:    res.Accrued,
		Suppressed: res.Suppressed,
	}
	if res.Attendance != nil {
		a := resultToResponse(*res.Attendance)
		resp.Attendance = &a
	}
	if res.Pending != nil {
		p := pendingToResponse(*res.Pending)
		resp.Pending = &p
	}
	return resp
}

// SessionResponse is returned when a session is opened.
type SessionResponse struct {
	ID        string `json:"id"`
	CreatedAt string `json:"createdAt"`
}
