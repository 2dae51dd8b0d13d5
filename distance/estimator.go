package distance

import (
	"github.com/nvr-ai/go-wayfinder/images"
	"github.com/nvr-ai/go-wayfinder/models"
)

// Estimator turns a bounding box and label into a distance.
//
// Two models are used. Most objects use the pinhole relation between their
// typical real height, the focal length and the box height in pixels. Objects
// in the large set (doors, stairs) are often cut off by the frame edge at close
// range, so their distance is read from how much of the frame they cover.
//
// An Estimator only reads its tables and is safe for concurrent use.
type Estimator struct {
	tables *models.ReferenceTables
}

// NewEstimator creates an estimator backed by tables.
func NewEstimator(tables *models.ReferenceTables) *Estimator {
	return &Estimator{tables: tables}
}

// Tables returns the reference tables used by the estimator.
func (e *Estimator) Tables() *models.ReferenceTables {
	return e.tables
}

// Estimate returns the distance to the object in box.
//
// Arguments:
//   - box: Bounding box in frame pixels.
//   - label: Detector label, any case.
//   - frameWidth, frameHeight: Frame size in pixels.
//
// Returns:
//   - Measurement: Metres in [MinDistance, MaxDistance], or absent for faces,
//     degenerate boxes and, for large objects, an invalid frame size.
//
// @example
// est := NewEstimator(models.DefaultReferenceTables())
// d := est.Estimate(images.Rect{X1: 0, Y1: 0, X2: 80, Y2: 340}, "person", 640, 480) // 2.5 m
func (e *Estimator) Estimate(box images.Rect, label string, frameWidth, frameHeight int) Measurement {
	if e.tables.IsFace(label) {
		return Absent()
	}
	if box.Height() <= 0 {
		return Absent()
	}

	if e.tables.IsLarge(label) {
		if frameWidth <= 0 || frameHeight <= 0 {
			return Absent()
		}
		return Meters(DistanceForCoverage(Coverage(box, frameWidth, frameHeight))).Clamp()
	}

	return e.ByHeight(box.Height(), label)
}

// ByHeight applies the pinhole model to a box height in pixels.
//
// Doubling the pixel height halves the distance until the result is clamped.
func (e *Estimator) ByHeight(heightPx float32, label string) Measurement {
	if heightPx <= 0 {
		return Absent()
	}
	return Meters(e.tables.Height(label) * e.tables.FocalLength(label) / heightPx).Clamp()
}
