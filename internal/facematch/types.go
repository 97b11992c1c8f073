// Package facematch provides the face gallery and nearest-identity matching
// shared between the capture session, the CLI and web handlers.
package facematch

import (
	"errors"
	"math"

	"github.com/holelung/Face-recognition-attendance-check/internal/constants"
)

// Dimension is the number of components in every face descriptor.
const Dimension = 128

// UnknownLabel is the label returned when no identity is within the threshold.
const UnknownLabel = constants.UnknownLabel

// ErrInvalidDescriptor is returned for descriptors with the wrong length or non-finite values.
var ErrInvalidDescriptor = errors.New("invalid face descriptor")

// FaceVector is a 128-dimensional face descriptor produced by an external model.
type FaceVector []float32

// Subject is one identity as seen by the gallery builder.
type Subject struct {
	ID          string
	Label       string
	Descriptors []FaceVector
}

// MatchResult is the outcome of a gallery lookup.
type MatchResult struct {
	Label      string  `json:"label"`
	IdentityID string  `json:"identity_id,omitempty"`
	Distance   float64 `json:"distance"`
}

// Matched reports whether the result names a known identity.
func (r MatchResult) Matched() bool {
	return r.IdentityID != ""
}

func unknownResult() MatchResult {
	return MatchResult{Label: UnknownLabel, Distance: math.Inf(1)}
}
