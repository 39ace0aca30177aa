// Package constants provides shared constants used across the codebase.
package constants

// Handler constants
const (
	// MaxUploadSize is the maximum accepted size of an uploaded image
	MaxUploadSize = 20 << 20
)

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100
)
