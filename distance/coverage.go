package distance

import (
	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-wayfinder/images"
)

// CoverageStep maps a minimum frame coverage to a distance.
type CoverageStep struct {
	MinCoverage float32
	Distance    float32
}

// DefaultCoverageSteps is the coverage table for doors, stairs and other
// objects that fill the frame at close range. Steps are ordered by descending
// coverage; the first step whose MinCoverage is reached wins.
var DefaultCoverageSteps = []CoverageStep{
	{MinCoverage: 0.85, Distance: 0.3},
	{MinCoverage: 0.70, Distance: 0.5},
	{MinCoverage: 0.55, Distance: 0.8},
	{MinCoverage: 0.45, Distance: 1.0},
	{MinCoverage: 0.35, Distance: 1.3},
	{MinCoverage: 0.25, Distance: 1.8},
	{MinCoverage: 0.15, Distance: 2.5},
	{MinCoverage: 0.10, Distance: 3.5},
}

// FarCoverageDistance is reported below the last coverage step.
const FarCoverageDistance = 5.0

// Coverage returns the largest of the area, height and width fractions of the
// frame occupied by box.
//
// Arguments:
//   - box: Bounding box in frame pixels.
//   - frameWidth, frameHeight: Frame size, both positive.
//
// Returns:
//   - float32: The maximum coverage fraction.
func Coverage(box images.Rect, frameWidth, frameHeight int) float32 {
	w := math32.Max(box.Width(), 0)
	h := math32.Max(box.Height(), 0)
	fw := float32(frameWidth)
	fh := float32(frameHeight)

	area := (w * h) / (fw * fh)
	return math32.Max(area, math32.Max(h/fh, w/fw))
}

// DistanceForCoverage maps a coverage fraction to metres using
// DefaultCoverageSteps. Larger coverage never yields a larger distance.
func DistanceForCoverage(coverage float32) float32 {
	for _, step := range DefaultCoverageSteps {
		if coverage >= step.MinCoverage {
			return step.Distance
		}
	}
	return FarCoverageDistance
}
