// Package registrar is the single entry point for gallery-mutating writes.
// It never touches a matcher; callers rebuild their gallery after a write.
package registrar

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/holelung/Face-recognition-attendance-check/internal/constants"
	"github.com/holelung/Face-recognition-attendance-check/internal/database"
	"github.com/holelung/Face-recognition-attendance-check/internal/facematch"
)

// ErrInvalidIdentity is returned for empty display names, ids or photos.
var ErrInvalidIdentity = errors.New("invalid identity")

// Registrar validates inputs and delegates to the identity store.
type Registrar struct {
	store      database.IdentityStore
	maxRetries int
	log        logrus.FieldLogger
}

// New creates a registrar. maxRetries bounds retries after a concurrent modification.
func New(store database.IdentityStore, maxRetries int, log logrus.FieldLogger) *Registrar {
	if maxRetries <= 0 {
		maxRetries = constants.DefaultRegistrarRetries
	}
	return &Registrar{store: store, maxRetries: maxRetries, log: log}
}

func validate(descriptor facematch.FaceVector, photo string) error {
	if err := descriptor.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(photo) == "" {
		return fmt.Errorf("%w: photo is required", ErrInvalidIdentity)
	}
	return nil
}

// RegisterNew creates an identity with its first descriptor and photo.
// Returns database.ErrDuplicateIdentity when externalID is taken; callers
// should then use AppendToExisting.
func (r *Registrar) RegisterNew(ctx context.Context, displayName, externalID string, descriptor facematch.FaceVector, photo string) (*database.Identity, error) {
	displayName = strings.TrimSpace(displayName)
	externalID = strings.TrimSpace(externalID)
	if displayName == "" {
		return nil, fmt.Errorf("%w: display name is required", ErrInvalidIdentity)
	}
	if externalID == "" {
		return nil, fmt.Errorf("%w: external id is required", ErrInvalidIdentity)
	}
	if err := validate(descriptor, photo); err != nil {
		return nil, err
	}

	ident, err := r.store.CreateIdentity(ctx, displayName, externalID, descriptor, photo)
	if err != nil {
		return nil, err
	}
	r.log.WithFields(logrus.Fields{
		"identity_id":  ident.ID,
		"display_name": ident.DisplayName,
	}).Info("registered identity")
	return ident, nil
}

// AppendToExisting appends one descriptor and photo to an identity, retrying
// on concurrent modification. Returns database.ErrNotFound for unknown ids.
func (r *Registrar) AppendToExisting(ctx context.Context, externalID string, descriptor facematch.FaceVector, photo string) (*database.Identity, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, fmt.Errorf("%w: external id is required", ErrInvalidIdentity)
	}
	if err := validate(descriptor, photo); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		version, err := r.store.IdentityVersion(ctx, externalID)
		if err != nil {
			return nil, err
		}

		ident, err := r.store.AppendDescriptor(ctx, externalID, version, descriptor, photo)
		if err == nil {
			r.log.WithFields(logrus.Fields{
				"identity_id": ident.ID,
				"descriptors": len(ident.Descriptors),
				"attempt":     attempt + 1,
			}).Info("appended descriptor")
			return ident, nil
		}
		if !errors.Is(err, database.ErrConcurrentModification) {
			return nil, err
		}
		lastErr = err
		r.log.WithFields(logrus.Fields{
			"identity_id": externalID,
			"attempt":     attempt + 1,
		}).Debug("concurrent modification, retrying append")
	}
	return nil, fmt.Errorf("append to %s after %d attempts: %w", externalID, r.maxRetries+1, lastErr)
}
