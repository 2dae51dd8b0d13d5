// Package models - reference tables describing the physical objects the detectors report.
package models

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidTable is returned when a table spec carries unusable values.
var ErrInvalidTable = errors.New("invalid reference table")

// TableSpec is the serialisable form of the reference tables.
type TableSpec struct {
	// Heights maps a label to the typical real-world height in metres.
	Heights map[string]float32 `yaml:"heights" json:"heights"`
	// FocalLengths holds per-label calibrated focal lengths in pixels.
	FocalLengths map[string]float32 `yaml:"focal_lengths" json:"focal_lengths"`
	// LargeObjects fill the frame at close range and use coverage based distance.
	LargeObjects []string `yaml:"large_objects" json:"large_objects"`
	// FaceLabels have no meaningful distance.
	FaceLabels []string `yaml:"face_labels" json:"face_labels"`
	// SpecializedLabels come from the custom door/stairs detector and win fusion.
	SpecializedLabels []string `yaml:"specialized_labels" json:"specialized_labels"`
	// DefaultHeight is used for labels missing from Heights.
	DefaultHeight float32 `yaml:"default_height" json:"default_height"`
	// DefaultFocalLength is used for labels missing from FocalLengths.
	DefaultFocalLength float32 `yaml:"default_focal_length" json:"default_focal_length"`
}

// DefaultTableSpec returns the heights and label sets calibrated for the
// assistant's 640x480 camera.
func DefaultTableSpec() TableSpec {
	return TableSpec{
		Heights: map[string]float32{
			"person":         1.7,
			"chair":          0.9,
			"bottle":         0.25,
			"cup":            0.1,
			"cell phone":     0.15,
			"car":            1.5,
			"truck":          2.0,
			"bus":            3.0,
			"cat":            0.25,
			"dog":            0.5,
			"table":          0.8,
			"door":           2.0,
			"door_open":      2.0,
			"door_closed":    2.0,
			"door_half_open": 2.0,
			"stairs":         1.2,
			"stairs_up":      1.2,
			"stairs_down":    1.2,
			"bench":          0.5,
			"couch":          0.9,
			"bed":            0.6,
			"laptop":         0.3,
			"tv":             0.6,
			"refrigerator":   1.8,
		},
		FocalLengths: map[string]float32{},
		LargeObjects: []string{
			"door", "door_open", "door_closed", "door_half_open", "stairs", "wall", "refrigerator",
		},
		FaceLabels:         []string{"face", "human face"},
		SpecializedLabels:  []string{"door_closed", "door_open", "door_half_open", "stairs"},
		DefaultHeight:      0.8,
		DefaultFocalLength: 500,
	}
}

// ReferenceTables is the immutable, validated form of a TableSpec.
//
// All lookups normalise the label first, so callers may pass detector output
// as-is. A *ReferenceTables is safe for concurrent use.
type ReferenceTables struct {
	heights       map[string]float32
	focalLengths  map[string]float32
	large         map[string]struct{}
	faces         map[string]struct{}
	specialized   map[string]struct{}
	defaultHeight float32
	defaultFocal  float32
}

// NewReferenceTables validates spec and copies it into an immutable table.
//
// Arguments:
//   - spec: Table values. Keys are normalised with NormalizeLabel.
//
// Returns:
//   - *ReferenceTables: The tables.
//   - error: ErrInvalidTable when a height or focal length is not positive.
func NewReferenceTables(spec TableSpec) (*ReferenceTables, error) {
	if spec.DefaultHeight <= 0 {
		return nil, errors.Wrapf(ErrInvalidTable, "default height %v", spec.DefaultHeight)
	}
	if spec.DefaultFocalLength <= 0 {
		return nil, errors.Wrapf(ErrInvalidTable, "default focal length %v", spec.DefaultFocalLength)
	}

	t := &ReferenceTables{
		heights:       make(map[string]float32, len(spec.Heights)),
		focalLengths:  make(map[string]float32, len(spec.FocalLengths)),
		large:         toSet(spec.LargeObjects),
		faces:         toSet(spec.FaceLabels),
		specialized:   toSet(spec.SpecializedLabels),
		defaultHeight: spec.DefaultHeight,
		defaultFocal:  spec.DefaultFocalLength,
	}
	for label, h := range spec.Heights {
		if h <= 0 {
			return nil, errors.Wrapf(ErrInvalidTable, "height for %q is %v", label, h)
		}
		t.heights[NormalizeLabel(label)] = h
	}
	for label, f := range spec.FocalLengths {
		if f <= 0 {
			return nil, errors.Wrapf(ErrInvalidTable, "focal length for %q is %v", label, f)
		}
		t.focalLengths[NormalizeLabel(label)] = f
	}
	return t, nil
}

// DefaultReferenceTables returns tables built from DefaultTableSpec.
func DefaultReferenceTables() *ReferenceTables {
	t, err := NewReferenceTables(DefaultTableSpec())
	if err != nil {
		panic(err)
	}
	return t
}

// NormalizeLabel lower-cases and trims a detector label.
func NormalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// Height returns the reference height for label, or the default height.
func (t *ReferenceTables) Height(label string) float32 {
	if h, ok := t.heights[NormalizeLabel(label)]; ok {
		return h
	}
	return t.defaultHeight
}

// FocalLength returns the calibrated focal length for label, or the default.
func (t *ReferenceTables) FocalLength(label string) float32 {
	if f, ok := t.focalLengths[NormalizeLabel(label)]; ok {
		return f
	}
	return t.defaultFocal
}

// IsLarge reports whether label uses coverage based distance.
func (t *ReferenceTables) IsLarge(label string) bool {
	_, ok := t.large[NormalizeLabel(label)]
	return ok
}

// IsFace reports whether label is a face class.
func (t *ReferenceTables) IsFace(label string) bool {
	_, ok := t.faces[NormalizeLabel(label)]
	return ok
}

// IsSpecialized reports whether label comes from the priority detector.
func (t *ReferenceTables) IsSpecialized(label string) bool {
	_, ok := t.specialized[NormalizeLabel(label)]
	return ok
}

func toSet(labels []string) map[string]struct{} {
	set := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		set[NormalizeLabel(l)] = struct{}{}
	}
	return set
}
