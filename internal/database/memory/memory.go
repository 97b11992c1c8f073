// Package memory provides in-process implementations of the database
// interfaces, used by tests and by the server when no DATABASE_URL is set.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/holelung/Face-recognition-attendance-check/internal/database"
	"github.com/holelung/Face-recognition-attendance-check/internal/facematch"
)

// Store is a mutex-guarded identity and attendance store.
type Store struct {
	mu         sync.RWMutex
	identities map[string]*database.Identity
	order      []string
	version    int64
	attendance map[string]database.AttendanceRecord // keyed by identity|day
	records    []string                             // attendance keys in insertion order
	now        func() time.Time

	// Error injection
	ListError       error
	GetError        error
	CreateError     error
	AppendError     error
	VersionError    error
	AttendanceError error
}

var (
	_ database.IdentityStore   = (*Store)(nil)
	_ database.AttendanceStore = (*Store)(nil)
)

// New creates an empty store.
func New() *Store {
	return &Store{
		identities: make(map[string]*database.Identity),
		attendance: make(map[string]database.AttendanceRecord),
		now:        time.Now,
	}
}

// ListIdentities returns deep copies of all identities in creation order.
func (s *Store) ListIdentities(ctx context.Context) ([]database.Identity, error) {
	if s.ListError != nil {
		return nil, s.ListError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]database.Identity, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.identities[id].Clone())
	}
	return out, nil
}

// GetIdentity returns a copy of one identity.
func (s *Store) GetIdentity(ctx context.Context, externalID string) (*database.Identity, error) {
	if s.GetError != nil {
		return nil, s.GetError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ident, ok := s.identities[externalID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return ident.Clone(), nil
}

// IdentityVersion returns one identity's version without copying it.
func (s *Store) IdentityVersion(ctx context.Context, externalID string) (int64, error) {
	if s.GetError != nil {
		return 0, s.GetError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ident, ok := s.identities[externalID]
	if !ok {
		return 0, database.ErrNotFound
	}
	return ident.Version, nil
}

// ListDescriptors returns copies of all identities in creation order with
// Photos left empty.
func (s *Store) ListDescriptors(ctx context.Context) ([]database.Identity, error) {
	if s.ListError != nil {
		return nil, s.ListError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]database.Identity, 0, len(s.order))
	for _, id := range s.order {
		ident := s.identities[id]
		descriptors := make([]facematch.FaceVector, len(ident.Descriptors))
		for i, d := range ident.Descriptors {
			descriptors[i] = d.Clone()
		}
		out = append(out, database.Identity{
			ID:          ident.ID,
			DisplayName: ident.DisplayName,
			Descriptors: descriptors,
			Version:     ident.Version,
			CreatedAt:   ident.CreatedAt,
			UpdatedAt:   ident.UpdatedAt,
		})
	}
	return out, nil
}

// Version returns the store mutation counter.
func (s *Store) Version(ctx context.Context) (int64, error) {
	if s.VersionError != nil {
		return 0, s.VersionError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version, nil
}

// CreateIdentity stores a new identity at version 1.
func (s *Store) CreateIdentity(ctx context.Context, displayName, externalID string, descriptor facematch.FaceVector, photo string) (*database.Identity, error) {
	if s.CreateError != nil {
		return nil, s.CreateError
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.identities[externalID]; exists {
		return nil, database.ErrDuplicateIdentity
	}
	now := s.now()
	ident := &database.Identity{
		ID:          externalID,
		DisplayName: displayName,
		Descriptors: []facematch.FaceVector{descriptor.Clone()},
		Photos:      []string{photo},
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.identities[externalID] = ident
	s.order = append(s.order, externalID)
	s.version++
	return ident.Clone(), nil
}

// AppendDescriptor appends one descriptor and one photo when expectedVersion matches.
func (s *Store) AppendDescriptor(ctx context.Context, externalID string, expectedVersion int64, descriptor facematch.FaceVector, photo string) (*database.Identity, error) {
	if s.AppendError != nil {
		return nil, s.AppendError
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ident, ok := s.identities[externalID]
	if !ok {
		return nil, database.ErrNotFound
	}
	if ident.Version != expectedVersion {
		return nil, database.ErrConcurrentModification
	}
	ident.Descriptors = append(ident.Descriptors, descriptor.Clone())
	ident.Photos = append(ident.Photos, photo)
	ident.Version++
	ident.UpdatedAt = s.now()
	s.version++
	return ident.Clone(), nil
}

func attendanceKey(identityID, day string) string {
	return identityID + "|" + day
}

// InsertAttendance stores rec unless the identity already has a record that day.
func (s *Store) InsertAttendance(ctx context.Context, rec database.AttendanceRecord) (bool, *database.AttendanceRecord, error) {
	if s.AttendanceError != nil {
		return false, nil, s.AttendanceError
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.identities[rec.IdentityID]; !ok {
		return false, nil, database.ErrNotFound
	}
	key := attendanceKey(rec.IdentityID, rec.Day)
	if existing, ok := s.attendance[key]; ok {
		return false, &existing, nil
	}
	s.attendance[key] = rec
	s.records = append(s.records, key)
	return true, nil, nil
}

// ListAttendance returns the records of one day ordered by timestamp.
func (s *Store) ListAttendance(ctx context.Context, day string) ([]database.AttendanceRecord, error) {
	return s.listAttendance(func(r database.AttendanceRecord) bool { return r.Day == day })
}

// ListAttendanceForIdentity returns an identity's records ordered by day.
func (s *Store) ListAttendanceForIdentity(ctx context.Context, identityID string) ([]database.AttendanceRecord, error) {
	return s.listAttendance(func(r database.AttendanceRecord) bool { return r.IdentityID == identityID })
}

func (s *Store) listAttendance(keep func(database.AttendanceRecord) bool) ([]database.AttendanceRecord, error) {
	if s.AttendanceError != nil {
		return nil, s.AttendanceError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []database.AttendanceRecord{}
	for _, key := range s.records {
		if rec := s.attendance[key]; keep(rec) {
			out = append(out, rec)
		}
	}
	slices.SortStableFunc(out, func(a, b database.AttendanceRecord) int {
		if c := strings.Compare(a.Day, b.Day); c != 0 {
			return c
		}
		return a.Timestamp.Compare(b.Timestamp)
	})
	return out, nil
}

// SetClock overrides the timestamp source for created and updated times.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}
