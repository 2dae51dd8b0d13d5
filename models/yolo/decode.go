// Package yolo - Decodes raw YOLO detector output into detections.
package yolo

import (
	"github.com/nvr-ai/go-wayfinder/images"
	"github.com/nvr-ai/go-wayfinder/models/postprocess"
	"github.com/pkg/errors"
)

// ErrMalformedOutput is returned when an output is not a whole number of rows.
var ErrMalformedOutput = errors.New("malformed yolo output")

// Options describes the output layout of one detector.
type Options struct {
	// Source names the detector, e.g. "primary" or "custom".
	Source string `json:"source" yaml:"source"`
	// Labels are the class names in class index order.
	Labels []string `json:"labels" yaml:"labels"`
	// Objectness is set for layouts with an objectness column after the box
	// (YOLOv3 to v5). YOLOv8 style outputs have none.
	Objectness bool `json:"objectness" yaml:"objectness"`
	// MinScore drops rows scored below it.
	MinScore float32 `json:"min_score" yaml:"min_score"`
	// InputWidth and InputHeight are the network input size. Boxes are scaled
	// from it to the frame size. Zero means boxes are already in frame pixels.
	InputWidth  int `json:"input_width" yaml:"input_width"`
	InputHeight int `json:"input_height" yaml:"input_height"`
}

// Decoder turns rows of [cx, cy, w, h, (objectness), class scores...] into
// results. It holds no state and is safe for concurrent use.
type Decoder struct {
	options Options
	columns int
}

// NewDecoder validates opts.
//
// Arguments:
//   - opts: The output layout.
//
// Returns:
//   - *Decoder: The decoder.
//   - error: If the layout has no labels or an invalid score or size.
func NewDecoder(opts Options) (*Decoder, error) {
	if len(opts.Labels) == 0 {
		return nil, errors.New("yolo decoder requires labels")
	}
	if opts.MinScore < 0 || opts.MinScore > 1 {
		return nil, errors.Errorf("yolo min score %v outside [0, 1]", opts.MinScore)
	}
	if opts.InputWidth < 0 || opts.InputHeight < 0 || (opts.InputWidth == 0) != (opts.InputHeight == 0) {
		return nil, errors.Errorf("yolo input size %dx%d", opts.InputWidth, opts.InputHeight)
	}

	columns := 4 + len(opts.Labels)
	if opts.Objectness {
		columns++
	}
	return &Decoder{options: opts, columns: columns}, nil
}

// Options returns the decoder layout.
func (d *Decoder) Options() Options {
	return d.options
}

// Decode converts one flattened output tensor into results for a frame.
//
// Arguments:
//   - output: Row major output, one row per candidate.
//   - frameWidth, frameHeight: Frame size the boxes are scaled to.
//
// Returns:
//   - []postprocess.Result: Candidates at or above MinScore, unsuppressed.
//   - error: ErrMalformedOutput if output is not a whole number of rows.
func (d *Decoder) Decode(output []float32, frameWidth, frameHeight int) ([]postprocess.Result, error) {
	if len(output)%d.columns != 0 {
		return nil, errors.Wrapf(ErrMalformedOutput, "%d values for %d columns", len(output), d.columns)
	}

	sx, sy := float32(1), float32(1)
	if d.options.InputWidth > 0 {
		sx = float32(frameWidth) / float32(d.options.InputWidth)
		sy = float32(frameHeight) / float32(d.options.InputHeight)
	}

	first := 4
	if d.options.Objectness {
		first = 5
	}

	rows := len(output) / d.columns
	results := make([]postprocess.Result, 0, rows)
	for i := 0; i < rows; i++ {
		row := output[i*d.columns : (i+1)*d.columns]

		classID := 0
		maxScore := float32(0)
		for j, score := range row[first:] {
			if score > maxScore {
				maxScore = score
				classID = j
			}
		}

		score := maxScore
		if d.options.Objectness {
			score *= row[4]
		}
		if score <= 0 || score < d.options.MinScore {
			continue
		}

		cx, cy, w, h := row[0]*sx, row[1]*sy, row[2]*sx, row[3]*sy
		results = append(results, postprocess.Result{
			Box: images.Rect{
				X1: cx - w/2,
				Y1: cy - h/2,
				X2: cx + w/2,
				Y2: cy + h/2,
			},
			Score:  score,
			Label:  d.options.Labels[classID],
			Source: d.options.Source,
		})
	}

	return results, nil
}
