package registrar

import (
	"context"
	"errors"
	"testing"

	"github.com/holelung/Face-recognition-attendance-check/internal/database"
	"github.com/holelung/Face-recognition-attendance-check/internal/database/memory"
	"github.com/holelung/Face-recognition-attendance-check/internal/facematch"
	"github.com/holelung/Face-recognition-attendance-check/internal/logger"
)

func descriptor(x float32) facematch.FaceVector {
	v := make(facematch.FaceVector, facematch.Dimension)
	v[0] = x
	return v
}

func TestRegisterNew(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	r := New(store, 3, logger.Discard())

	ident, err := r.RegisterNew(ctx, " Alice ", "s-1", descriptor(0), "photo")
	if err != nil {
		t.Fatalf("RegisterNew: %v", err)
	}
	if ident.DisplayName != "Alice" {
		t.Errorf("expected trimmed name, got %q", ident.DisplayName)
	}

	_, err = r.RegisterNew(ctx, "Alice", "s-1", descriptor(1), "photo")
	if !errors.Is(err, database.ErrDuplicateIdentity) {
		t.Errorf("expected ErrDuplicateIdentity, got %v", err)
	}
}

func TestRegisterNew_Validation(t *testing.T) {
	r := New(memory.New(), 3, logger.Discard())

	tests := []struct {
		name       string
		display    string
		id         string
		descriptor facematch.FaceVector
		photo      string
		wantErr    error
	}{
		{name: "empty name", display: " ", id: "s-1", descriptor: descriptor(0), photo: "p", wantErr: ErrInvalidIdentity},
		{name: "empty id", display: "A", id: "", descriptor: descriptor(0), photo: "p", wantErr: ErrInvalidIdentity},
		{name: "empty photo", display: "A", id: "s-1", descriptor: descriptor(0), photo: "", wantErr: ErrInvalidIdentity},
		{name: "short descriptor", display: "A", id: "s-1", descriptor: facematch.FaceVector{1}, photo: "p", wantErr: facematch.ErrInvalidDescriptor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.RegisterNew(context.Background(), tt.display, tt.id, tt.descriptor, tt.photo)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestAppendToExisting(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	r := New(store, 3, logger.Discard())
	if _, err := r.RegisterNew(ctx, "Alice", "s-1", descriptor(0), "p0"); err != nil {
		t.Fatal(err)
	}

	ident, err := r.AppendToExisting(ctx, "s-1", descriptor(0.1), "p1")
	if err != nil {
		t.Fatalf("AppendToExisting: %v", err)
	}
	if len(ident.Descriptors) != 2 || len(ident.Photos) != 2 {
		t.Errorf("expected 2 descriptors and photos, got %d/%d", len(ident.Descriptors), len(ident.Photos))
	}

	_, err = r.AppendToExisting(ctx, "ghost", descriptor(0.1), "p1")
	if !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// racingStore reports a concurrent modification for the first conflicts appends.
type racingStore struct {
	*memory.Store
	conflicts int
	appends   int
}

func (s *racingStore) AppendDescriptor(ctx context.Context, id string, version int64, d facematch.FaceVector, photo string) (*database.Identity, error) {
	s.appends++
	if s.appends <= s.conflicts {
		return nil, database.ErrConcurrentModification
	}
	return s.Store.AppendDescriptor(ctx, id, version, d, photo)
}

func TestAppendToExisting_RetriesConflicts(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds within budget", func(t *testing.T) {
		store := &racingStore{Store: memory.New(), conflicts: 2}
		_, _ = store.CreateIdentity(ctx, "Alice", "s-1", descriptor(0), "p0")
		r := New(store, 3, logger.Discard())

		if _, err := r.AppendToExisting(ctx, "s-1", descriptor(0.1), "p1"); err != nil {
			t.Fatalf("expected success after retries, got %v", err)
		}
		if store.appends != 3 {
			t.Errorf("expected 3 attempts, got %d", store.appends)
		}
	})

	t.Run("gives up after budget", func(t *testing.T) {
		store := &racingStore{Store: memory.New(), conflicts: 10}
		_, _ = store.CreateIdentity(ctx, "Alice", "s-1", descriptor(0), "p0")
		r := New(store, 2, logger.Discard())

		_, err := r.AppendToExisting(ctx, "s-1", descriptor(0.1), "p1")
		if !errors.Is(err, database.ErrConcurrentModification) {
			t.Errorf("expected ErrConcurrentModification, got %v", err)
		}
		if store.appends != 3 {
			t.Errorf("expected 3 attempts, got %d", store.appends)
		}
	})

	t.Run("transient errors are not retried", func(t *testing.T) {
		store := memory.New()
		_, _ = store.CreateIdentity(ctx, "Alice", "s-1", descriptor(0), "p0")
		store.AppendError = &database.TransientError{Op: "append", Err: errors.New("conn reset")}
		r := New(store, 3, logger.Discard())

		_, err := r.AppendToExisting(ctx, "s-1", descriptor(0.1), "p1")
		if !database.IsRetryable(err) {
			t.Errorf("expected transient error to surface, got %v", err)
		}
	})
}

// versionOnlyStore fails full identity loads; appends must only need the version.
type versionOnlyStore struct {
	*memory.Store
}

func (s versionOnlyStore) GetIdentity(ctx context.Context, id string) (*database.Identity, error) {
	return nil, errors.New("full identity load")
}

func TestAppendToExisting_ReadsVersionOnly(t *testing.T) {
	ctx := context.Background()
	store := versionOnlyStore{memory.New()}
	if _, err := store.CreateIdentity(ctx, "Alice", "s-1", descriptor(0), "p0"); err != nil {
		t.Fatal(err)
	}

	ident, err := New(store, 3, logger.Discard()).AppendToExisting(ctx, "s-1", descriptor(0.1), "p1")
	if err != nil {
		t.Fatalf("AppendToExisting: %v", err)
	}
	if ident.Version != 2 || len(ident.Descriptors) != 2 {
		t.Errorf("expected version 2 with 2 descriptors, got %+v", ident)
	}
}
