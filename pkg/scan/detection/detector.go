// Package detection provides document-boundary detection using computer vision
package detection

import "github.com/teslashibe/go-docscan/pkg/geometry"

// Result represents a detected document boundary in one frame.
// A nil Quad means no document was found.
type Result struct {
	Quad       *geometry.Quadrilateral
	Confidence float64 // Detection confidence (0-1)
}

// None returns a result representing no detection.
func None() Result {
	return Result{}
}

// Found reports whether the result carries a document boundary.
func (r Result) Found() bool {
	return r.Quad != nil
}

// Detector is the interface for document detection backends
type Detector interface {
	// Detect finds the document boundary in the image
	Detect(jpeg []byte) (Result, error)

	// Close releases resources
	Close() error
}

// Config holds detector configuration
type Config struct {
	CannyLow         float32 // Canny low threshold (default 50)
	CannyHigh        float32 // Canny high threshold (default 150)
	MinAreaFraction  float64 // Smallest acceptable quad, fraction of frame (default 0.1)
	MaxAreaFraction  float64 // Largest acceptable quad, fraction of frame (default 0.95)
	ConfidenceThresh float64 // Minimum confidence to report a detection (default 0.1)
}

// DefaultConfig returns production defaults for the contour detector
func DefaultConfig() Config {
	return Config{
		CannyLow:         50,
		CannyHigh:        150,
		MinAreaFraction:  0.1,
		MaxAreaFraction:  0.95,
		ConfidenceThresh: 0.1,
	}
}

// SelectBest picks the strongest candidate from multiple detections.
// Priority: confidence * 0.7 + relative area * 0.3
func SelectBest(results []Result) Result {
	var found []Result
	for _, r := range results {
		if r.Found() {
			found = append(found, r)
		}
	}
	if len(found) == 0 {
		return None()
	}
	if len(found) == 1 {
		return found[0]
	}

	maxArea := 0.0
	for _, r := range found {
		if a := r.Quad.Area(); a > maxArea {
			maxArea = a
		}
	}

	bestScore := -1.0
	best := None()
	for _, r := range found {
		score := r.Confidence * 0.7
		if maxArea > 0 {
			score += (r.Quad.Area() / maxArea) * 0.3
		}
		if score > bestScore {
			bestScore = score
			best = r
		}
	}
	return best
}
