// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Face matching constants
const (
	// DefaultEuclideanThreshold is the default maximum Euclidean distance for a match
	// between dlib 128-d descriptors. Lower values = stricter matching
	DefaultEuclideanThreshold = 0.6

	// DefaultCosineThreshold is the default maximum cosine distance for a match
	// between normalized 512-d embeddings from the embedding server
	DefaultCosineThreshold = 0.5

	// DetectionOverlapIoU is the IoU above which two detections in one frame
	// are considered the same face
	DetectionOverlapIoU = 0.5

	// UnknownIdentity labels a face that matched nobody on the roster
	UnknownIdentity = "Unknown"
)

// HNSW index parameters for the closest-match strategy
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	HNSWEfSearch = 64
)

// Attendance log format
const (
	// DateLayout is the layout of the Date column
	DateLayout = "2006-01-02"

	// TimeLayout is the layout of the Time column
	TimeLayout = "15:04:05"

	// ExportSheetName is the worksheet holding the attendance rows
	ExportSheetName = "Attendance"
)

// Processing constants
const (
	// EncodeJPEGQuality is the JPEG quality used when frames are sent to an encoder
	EncodeJPEGQuality = 90

	// AnnotationLineWidth is the bounding box stroke in pixels
	AnnotationLineWidth = 2
)
