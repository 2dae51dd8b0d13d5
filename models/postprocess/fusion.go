package postprocess

import (
	"sort"

	"github.com/nvr-ai/go-wayfinder/images"
	"github.com/nvr-ai/go-wayfinder/models"
)

// FusionConfig holds the overlap thresholds used when merging detectors.
type FusionConfig struct {
	// NMSThreshold is the cross-source suppression IoU threshold.
	NMSThreshold float32 `yaml:"nms_threshold" json:"nms_threshold"`
	// PriorityThreshold is the IoU above which a general detection is dropped
	// in favour of an overlapping specialized one.
	PriorityThreshold float32 `yaml:"priority_threshold" json:"priority_threshold"`
}

// DefaultFusionConfig returns the thresholds used by the navigation service.
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		NMSThreshold:      0.5,
		PriorityThreshold: 0.45,
	}
}

// Fuser merges the outputs of several detectors into one list.
//
// Detections from the specialized detector (doors, stairs) are trusted over the
// general detector: they are never removed, and general detections that
// describe the same object are dropped. A Fuser is safe for concurrent use.
type Fuser struct {
	config FusionConfig
	tables *models.ReferenceTables
}

// NewFuser creates a fuser.
//
// Arguments:
//   - config: Overlap thresholds.
//   - tables: Reference tables deciding which labels are specialized, nil for
//     the defaults.
//
// Returns:
//   - *Fuser: The fuser.
func NewFuser(config FusionConfig, tables *models.ReferenceTables) *Fuser {
	if tables == nil {
		tables = models.DefaultReferenceTables()
	}
	return &Fuser{config: config, tables: tables}
}

// Fuse pools the detections of every source and fuses them.
//
// Sources are visited in sorted key order so the result does not depend on map
// iteration order.
//
// Arguments:
//   - bySource: Detections keyed by detector name.
//
// Returns:
//   - []Result: Surviving detections by descending score.
func (f *Fuser) Fuse(bySource map[string][]Result) []Result {
	sources := make([]string, 0, len(bySource))
	total := 0
	for source, dets := range bySource {
		sources = append(sources, source)
		total += len(dets)
	}
	sort.Strings(sources)

	pooled := make([]Result, 0, total)
	for _, source := range sources {
		for _, det := range bySource[source] {
			if det.Source == "" {
				det.Source = source
			}
			pooled = append(pooled, det)
		}
	}
	return f.FuseDetections(pooled)
}

// FuseDetections runs cross-source NMS followed by the priority override.
//
// Running it again on its own output removes nothing further.
//
// Arguments:
//   - detections: Pooled detections in any order. The slice is not modified.
//
// Returns:
//   - []Result: Surviving detections by descending score.
func (f *Fuser) FuseDetections(detections []Result) []Result {
	sorted := make([]Result, len(detections))
	copy(sorted, detections)
	SortByScore(sorted)

	kept := ApplyGreedyNMS(sorted, &NMSConfig{
		IoUThreshold: f.config.NMSThreshold,
		Protected:    f.isSpecialized,
	})
	return f.ApplyPriority(kept)
}

// ApplyPriority drops general detections that overlap a specialized one by
// more than the priority threshold. Specialized detections are always kept and
// the relative order of the input is preserved.
//
// Arguments:
//   - detections: Detections to filter.
//
// Returns:
//   - []Result: The filtered detections.
func (f *Fuser) ApplyPriority(detections []Result) []Result {
	specialized := make([]images.Rect, 0, len(detections))
	for _, det := range detections {
		if f.isSpecialized(det) {
			specialized = append(specialized, det.Box)
		}
	}
	if len(specialized) == 0 {
		return detections
	}

	filtered := make([]Result, 0, len(detections))
	for _, det := range detections {
		if !f.isSpecialized(det) && f.overlapsAny(det.Box, specialized) {
			continue
		}
		filtered = append(filtered, det)
	}
	return filtered
}

func (f *Fuser) isSpecialized(det Result) bool {
	return f.tables.IsSpecialized(det.Label)
}

func (f *Fuser) overlapsAny(box images.Rect, others []images.Rect) bool {
	for _, other := range others {
		if images.CalculateIoU(box, other) > f.config.PriorityThreshold {
			return true
		}
	}
	return false
}
