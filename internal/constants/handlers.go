// Package constants provides shared constants used across the codebase.
package constants

// Handler limits
const (
	// MaxRequestBodySize is the maximum accepted JSON request body in bytes (16MB).
	// Photos arrive as data URLs so bodies are larger than usual.
	MaxRequestBodySize = 16 << 20
)

// Rate limiting constants
const (
	// DefaultCaptureRate is the steady number of captures accepted per second per session
	DefaultCaptureRate = 10

	// DefaultCaptureBurst is the capture burst size per session
	DefaultCaptureBurst = 20
)
