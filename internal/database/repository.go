package database

import (
	"context"

	"github.com/holelung/Face-recognition-attendance-check/internal/facematch"
)

// IdentityReader provides read-only access to identities
type IdentityReader interface {
	// ListIdentities returns every identity in creation order
	ListIdentities(ctx context.Context) ([]Identity, error)
	// GetIdentity returns the identity with the given external id, or ErrNotFound
	GetIdentity(ctx context.Context, externalID string) (*Identity, error)
	// IdentityVersion returns one identity's append version, or ErrNotFound
	IdentityVersion(ctx context.Context, externalID string) (int64, error)
	// ListDescriptors returns every identity in creation order without photos
	ListDescriptors(ctx context.Context) ([]Identity, error)
	// Version returns a counter bumped on every create or append
	Version(ctx context.Context) (int64, error)
}

// IdentityStore provides write access to identities
type IdentityStore interface {
	IdentityReader

	// CreateIdentity stores a new identity with one descriptor and one photo.
	// Returns ErrDuplicateIdentity if the external id already exists.
	CreateIdentity(ctx context.Context, displayName, externalID string, descriptor facematch.FaceVector, photo string) (*Identity, error)

	// AppendDescriptor appends exactly one descriptor and one photo when the
	// identity is still at expectedVersion. Returns ErrNotFound for unknown ids
	// and ErrConcurrentModification when the version moved.
	AppendDescriptor(ctx context.Context, externalID string, expectedVersion int64, descriptor facematch.FaceVector, photo string) (*Identity, error)
}

// AttendanceStore persists attendance records, at most one per identity and day
type AttendanceStore interface {
	// InsertAttendance stores rec unless a record for the same identity and day exists.
	// When it exists, inserted is false and existing holds the stored record.
	InsertAttendance(ctx context.Context, rec AttendanceRecord) (inserted bool, existing *AttendanceRecord, err error)
	// ListAttendance returns all records for a day ordered by timestamp
	ListAttendance(ctx context.Context, day string) ([]AttendanceRecord, error)
	// ListAttendanceForIdentity returns all records for an identity ordered by day
	ListAttendanceForIdentity(ctx context.Context, identityID string) ([]AttendanceRecord, error)
}
