package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAttendanceHandler_RecordAndList(t *testing.T) {
	env := newTestEnv(t)
	seedStudent(t, env, "Alice", "s-1", 0)
	seedStudent(t, env, "Bob", "s-2", 1)

	ts := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	post := func(id string, at time.Time) *httptest.ResponseRecorder {
		recorder := httptest.NewRecorder()
		env.attend.Record(recorder, jsonRequest(t, "POST", "/api/v1/attendance",
			RecordAttendanceRequest{StudentID: id, Timestamp: &at}))
		return recorder
	}

	assertStatusCode(t, post("s-1", ts), http.StatusCreated)
	assertStatusCode(t, post("s-2", ts), http.StatusCreated)

	again := post("s-1", ts.Add(time.Hour))
	assertStatusCode(t, again, http.StatusOK)
	var res AttendanceResultResponse
	parseJSONResponse(t, again, &res)
	if res.Outcome != "suppressed" {
		t.Errorf("expected suppressed, got %s", res.Outcome)
	}

	assertStatusCode(t, post("ghost", ts), http.StatusNotFound)

	recorder := httptest.NewRecorder()
	env.attend.List(recorder, httptest.NewRequest("GET", "/api/v1/attendance?date=2024-03-04", nil))
	assertStatusCode(t, recorder, http.StatusOK)
	var records []AttendanceRecordResponse
	parseJSONResponse(t, recorder, &records)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Status != "present" {
		t.Errorf("expected status present, got %s", records[0].Status)
	}
}

func TestAttendanceHandler_ListDefaultsToToday(t *testing.T) {
	env := newTestEnv(t)
	seedStudent(t, env, "Alice", "s-1", 0)
	now := time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)
	env.attend.now = func() time.Time { return now }

	if _, err := env.recorder.Record(t.Context(), "s-1", now); err != nil {
		t.Fatal(err)
	}

	recorder := httptest.NewRecorder()
	env.attend.List(recorder, httptest.NewRequest("GET", "/api/v1/attendance", nil))
	var records []AttendanceRecordResponse
	parseJSONResponse(t, recorder, &records)
	if len(records) != 1 || records[0].Date != "2024-05-06" {
		t.Errorf("expected today's record, got %+v", records)
	}
}

func TestAttendanceHandler_InvalidDate(t *testing.T) {
	env := newTestEnv(t)

	recorder := httptest.NewRecorder()
	env.attend.List(recorder, httptest.NewRequest("GET", "/api/v1/attendance?date=04/03/2024", nil))
	assertStatusCode(t, recorder, http.StatusBadRequest)
}

func TestStudentsHandler_Attendance(t *testing.T) {
	env := newTestEnv(t)
	seedStudent(t, env, "Alice", "s-1", 0)
	ts := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	for _, at := range []time.Time{ts, ts.AddDate(0, 0, 1)} {
		if _, err := env.recorder.Record(t.Context(), "s-1", at); err != nil {
			t.Fatal(err)
		}
	}

	recorder := httptest.NewRecorder()
	env.students.Attendance(recorder, requestWithChiParams(httptest.NewRequest("GET", "/", nil),
		map[string]string{"studentId": "s-1"}))
	assertStatusCode(t, recorder, http.StatusOK)
	var records []AttendanceRecordResponse
	parseJSONResponse(t, recorder, &records)
	if len(records) != 2 {
		t.Errorf("expected 2 records, got %d", len(records))
	}

	recorder = httptest.NewRecorder()
	env.students.Attendance(recorder, requestWithChiParams(httptest.NewRequest("GET", "/", nil),
		map[string]string{"studentId": "ghost"}))
	assertStatusCode(t, recorder, http.StatusNotFound)
}
