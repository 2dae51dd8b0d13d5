// Package postprocess - Fusion of detector outputs into one deduplicated list.
package postprocess

import "github.com/nvr-ai/go-wayfinder/images"

// Result represents a single detection from one detector.
type Result struct {
	// The bounding box of the result in frame pixels.
	Box images.Rect
	// The confidence score of the result in [0, 1].
	Score float32
	// The class label reported by the detector.
	Label string
	// The detector that produced the result, e.g. "primary" or "custom".
	Source string
}
