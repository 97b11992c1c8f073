package database

import (
	"context"

	"github.com/holelung/Face-recognition-attendance-check/internal/facematch"
)

// GallerySource adapts an IdentityReader to the matcher's SubjectSource.
type GallerySource struct {
	reader IdentityReader
}

// NewGallerySource wraps reader so the matcher can rebuild from it.
func NewGallerySource(reader IdentityReader) *GallerySource {
	return &GallerySource{reader: reader}
}

// Version returns the store version.
func (s *GallerySource) Version(ctx context.Context) (int64, error) {
	return s.reader.Version(ctx)
}

// Subjects lists identities as gallery subjects labeled by display name.
// Photos are not loaded.
func (s *GallerySource) Subjects(ctx context.Context) ([]facematch.Subject, error) {
	identities, err := s.reader.ListDescriptors(ctx)
	if err != nil {
		return nil, err
	}
	subjects := make([]facematch.Subject, 0, len(identities))
	for _, id := range identities {
		subjects = append(subjects, facematch.Subject{
			ID:          id.ID,
			Label:       id.DisplayName,
			Descriptors: id.Descriptors,
		})
	}
	return subjects, nil
}
