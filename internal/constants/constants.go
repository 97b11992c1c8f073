// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Matching constants
const (
	// DefaultMatchThreshold is the maximum Euclidean distance at which a query
	// descriptor is accepted as a known identity
	DefaultMatchThreshold = 0.6

	// DefaultCandidateCount is the number of HNSW candidates re-ranked exactly
	DefaultCandidateCount = 32

	// UnknownLabel is returned by the matcher when no identity is close enough
	UnknownLabel = "unknown"
)

// Registrar constants
const (
	// DefaultRegistrarRetries is how many times an append is retried after a
	// concurrent modification of the same identity
	DefaultRegistrarRetries = 3
)

// Attendance constants
const (
	// DayLayout is the calendar day format used in attendance records and queries
	DayLayout = "2006-01-02"
)
