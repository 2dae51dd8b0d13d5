package postprocess

import (
	"sort"
	"strings"

	"github.com/nvr-ai/go-wayfinder/images"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	// Overlap at or above which the lower scored box is suppressed.
	IoUThreshold float32 `yaml:"iou_threshold" json:"iou_threshold"`
	// If true, suppress only within the same label.
	ClassAware bool `yaml:"class_aware" json:"class_aware"`
	// Protected results are never suppressed. They still suppress others.
	Protected func(Result) bool `yaml:"-" json:"-"`
}

// SortByScore orders detections by descending score, keeping the input order
// for equal scores.
func SortByScore(detections []Result) {
	sort.SliceStable(detections, func(i, j int) bool {
		return detections[i].Score > detections[j].Score
	})
}

// ApplyGreedyNMS performs standard greedy Non-Maximum Suppression.
//
// Arguments:
//   - detections: Slice of detections sorted by descending confidence.
//   - config: NMS configuration.
//
// Returns:
//   - Filtered slice of detections in input order. Never nil.
func ApplyGreedyNMS(detections []Result, config *NMSConfig) []Result {
	n := len(detections)
	filtered := make([]Result, 0, n)
	if n == 0 {
		return filtered
	}

	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := detections[i]
		filtered = append(filtered, anchor)
		used[i] = true

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			if config.Protected != nil && config.Protected(detections[j]) {
				continue
			}
			if config.ClassAware && !strings.EqualFold(anchor.Label, detections[j].Label) {
				continue
			}

			// Suppress if IoU reaches threshold
			if images.CalculateIoU(anchor.Box, detections[j].Box) >= config.IoUThreshold {
				used[j] = true
			}
		}
	}

	return filtered
}
