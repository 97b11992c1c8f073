package database

import (
	"slices"
	"time"

	"github.com/holelung/Face-recognition-attendance-check/internal/facematch"
)

// Identity is a registered person with an append-only set of descriptors and photos.
type Identity struct {
	ID          string
	DisplayName string
	Descriptors []facematch.FaceVector
	Photos      []string // opaque image references, usually data URLs
	Version     int64    // incremented by one on every successful append
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Clone returns a deep copy so callers never share descriptor storage with a store.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	out := *i
	out.Descriptors = make([]facematch.FaceVector, len(i.Descriptors))
	for n, d := range i.Descriptors {
		out.Descriptors[n] = d.Clone()
	}
	out.Photos = slices.Clone(i.Photos)
	return &out
}

// AttendanceStatus is the state recorded for an identity on a day.
type AttendanceStatus string

// StatusPresent is the only status this system produces.
const StatusPresent AttendanceStatus = "present"

// AttendanceRecord is one attendance fact per identity per calendar day.
type AttendanceRecord struct {
	IdentityID string           `json:"studentId"`
	Day        string           `json:"date"` // calendar day, YYYY-MM-DD in the recorder's location
	Timestamp  time.Time        `json:"timestamp"`
	Status     AttendanceStatus `json:"status"`
}
