// Package attendance turns confirmed matches into at most one attendance
// record per identity per calendar day.
package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/holelung/Face-recognition-attendance-check/internal/constants"
	"github.com/holelung/Face-recognition-attendance-check/internal/database"
)

// Outcome distinguishes a new record from an idempotent no-op.
type Outcome string

const (
	Recorded   Outcome = "recorded"
	Suppressed Outcome = "suppressed"
)

// Result is returned by Record. On Suppressed, Record holds the existing record.
type Result struct {
	Outcome Outcome
	Record  database.AttendanceRecord
}

// Recorder writes attendance records with day boundaries in a fixed location.
type Recorder struct {
	store      database.AttendanceStore
	identities database.IdentityReader
	loc        *time.Location
	now        func() time.Time
	log        logrus.FieldLogger
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock replaces time.Now, used when Record is called with a zero time.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithLocation sets the location that defines calendar days.
func WithLocation(loc *time.Location) Option {
	return func(r *Recorder) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// NewRecorder creates a recorder. Stores report database.ErrNotFound when
// recording for an unknown identity; identities is consulted when listing.
func NewRecorder(store database.AttendanceStore, identities database.IdentityReader, log logrus.FieldLogger, opts ...Option) *Recorder {
	r := &Recorder{
		store:      store,
		identities: identities,
		loc:        time.Local,
		now:        time.Now,
		log:        log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Day returns the calendar day of t in the recorder's location.
func (r *Recorder) Day(t time.Time) string {
	return t.In(r.loc).Format(constants.DayLayout)
}

// ParseDay validates a YYYY-MM-DD string in the recorder's location.
func (r *Recorder) ParseDay(s string) (string, error) {
	t, err := time.ParseInLocation(constants.DayLayout, s, r.loc)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t.Format(constants.DayLayout), nil
}

// Record stores a present record for identityID on the day of at, unless one
// already exists. A zero at means now. Suppression is not an error.
func (r *Recorder) Record(ctx context.Context, identityID string, at time.Time) (Result, error) {
	if at.IsZero() {
		at = r.now()
	}

	rec := database.AttendanceRecord{
		IdentityID: identityID,
		Day:        r.Day(at),
		Timestamp:  at,
		Status:     database.StatusPresent,
	}
	inserted, existing, err := r.store.InsertAttendance(ctx, rec)
	if err != nil {
		return Result{}, err
	}

	fields := logrus.Fields{"identity_id": identityID, "day": rec.Day}
	if !inserted {
		r.log.WithFields(fields).Debug("attendance already recorded")
		if existing != nil {
			rec = *existing
		}
		return Result{Outcome: Suppressed, Record: rec}, nil
	}
	r.log.WithFields(fields).Info("attendance recorded")
	return Result{Outcome: Recorded, Record: rec}, nil
}

// ListDay returns all records of a day.
func (r *Recorder) ListDay(ctx context.Context, day string) ([]database.AttendanceRecord, error) {
	return r.store.ListAttendance(ctx, day)
}

// ListIdentity returns all records of one identity.
func (r *Recorder) ListIdentity(ctx context.Context, identityID string) ([]database.AttendanceRecord, error) {
	if _, err := r.identities.IdentityVersion(ctx, identityID); err != nil {
		return nil, err
	}
	return r.store.ListAttendanceForIdentity(ctx, identityID)
}
