// Package annotate - Attaches distance, position and speech text to fused detections.
package annotate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nvr-ai/go-wayfinder/distance"
	"github.com/nvr-ai/go-wayfinder/images"
	"github.com/nvr-ai/go-wayfinder/models/postprocess"
)

// Position is the horizontal third of the frame holding a detection.
type Position string

const (
	// Left is the left third of the frame.
	Left Position = "left"
	// Center is the middle third, boundaries included.
	Center Position = "center"
	// Right is the right third of the frame.
	Right Position = "right"
)

// Positions lists the buckets from left to right.
var Positions = []Position{Left, Center, Right}

// Detection is a fused detection ready for navigation and speech.
type Detection struct {
	postprocess.Result
	// Distance is the blended distance estimate, absent when inestimable.
	Distance distance.Measurement
	// Position is the horizontal bucket of the box center.
	Position Position
	// SpeechLabel is Label with separators replaced by spaces.
	SpeechLabel string
}

// DepthEstimator supplies an external per-box distance in metres, typically
// sampled from a monocular depth map.
type DepthEstimator interface {
	EstimateDepth(box images.Rect) (float32, error)
}

// Annotator builds Detections. It holds only read-only configuration and is
// safe for concurrent use.
type Annotator struct {
	estimator *distance.Estimator
	policy    distance.BlendPolicy
}

// NewAnnotator creates an annotator.
//
// Arguments:
//   - estimator: Box based distance estimator.
//   - policy: Weights used to blend in external depth readings.
//
// Returns:
//   - *Annotator: The annotator.
func NewAnnotator(estimator *distance.Estimator, policy distance.BlendPolicy) *Annotator {
	return &Annotator{estimator: estimator, policy: policy}
}

// Annotate computes position, blended distance and speech label for det.
//
// Arguments:
//   - det: A fused detection.
//   - frameWidth, frameHeight: Frame size in pixels.
//   - external: Distance from a depth model, or distance.Absent().
//
// Returns:
//   - Detection: The annotated detection.
func (a *Annotator) Annotate(det postprocess.Result, frameWidth, frameHeight int, external distance.Measurement) Detection {
	cx, _ := det.Box.Center()
	return Detection{
		Result:      det,
		Distance:    a.Distance(det, frameWidth, frameHeight, external),
		Position:    RelativePosition(cx, frameWidth),
		SpeechLabel: SpeechLabel(det.Label),
	}
}

// Distance blends the box based estimate with an external reading using the
// large-object or standard policy depending on the label.
func (a *Annotator) Distance(det postprocess.Result, frameWidth, frameHeight int, external distance.Measurement) distance.Measurement {
	box := a.estimator.Estimate(det.Box, det.Label, frameWidth, frameHeight)
	if a.estimator.Tables().IsLarge(det.Label) {
		return a.policy.LargeObject(box, external).Clamp()
	}
	return a.policy.Standard(box, external).Clamp()
}

// AnnotateAll annotates every detection, querying depth for each box when a
// depth estimator is given.
//
// A depth error only means there is no external reading for that box; it is
// reported through onDepthError when non-nil and never aborts annotation.
//
// Arguments:
//   - dets: Fused detections.
//   - frameWidth, frameHeight: Frame size in pixels.
//   - depth: Optional depth estimator, may be nil.
//   - onDepthError: Optional callback for depth failures, may be nil.
//
// Returns:
//   - []Detection: One detection per input, in input order.
func (a *Annotator) AnnotateAll(
	dets []postprocess.Result,
	frameWidth, frameHeight int,
	depth DepthEstimator,
	onDepthError func(postprocess.Result, error),
) []Detection {
	out := make([]Detection, 0, len(dets))
	for _, det := range dets {
		external := distance.Absent()
		if depth != nil {
			m, err := depth.EstimateDepth(det.Box)
			switch {
			case err != nil:
				if onDepthError != nil {
					onDepthError(det, err)
				}
			case m > 0:
				external = distance.Meters(m)
			}
		}
		out = append(out, a.Annotate(det, frameWidth, frameHeight, external))
	}
	return out
}

// RelativePosition buckets a center x into thirds of the frame width. Centers
// exactly on a third boundary belong to Center.
func RelativePosition(cx float32, frameWidth int) Position {
	third := float32(frameWidth) / 3
	switch {
	case cx < third:
		return Left
	case cx > 2*third:
		return Right
	default:
		return Center
	}
}

var speechReplacer = strings.NewReplacer("_", " ", "-", " ")

// SpeechLabel replaces underscores and hyphens with spaces.
func SpeechLabel(label string) string {
	return speechReplacer.Replace(label)
}

// SortByDistance orders detections nearest first. Detections without a
// distance go last; ties keep their order.
func SortByDistance(dets []Detection) {
	sort.SliceStable(dets, func(i, j int) bool {
		return dets[i].Distance.Less(dets[j].Distance)
	})
}

// Phrase renders a detection for speech, e.g. "door closed on your left, 1.3 meters".
func Phrase(det Detection) string {
	where := "ahead"
	switch det.Position {
	case Left:
		where = "on your left"
	case Right:
		where = "on your right"
	}
	return fmt.Sprintf("%s %s, %s", det.SpeechLabel, where, distance.FormatDistance(det.Distance))
}
