// Package protocol defines the JSON messages exchanged with navigation
// clients over HTTP, websocket and replay files.
package protocol

import (
	"github.com/google/uuid"
	"github.com/nvr-ai/go-wayfinder/annotate"
	"github.com/nvr-ai/go-wayfinder/controller"
	"github.com/nvr-ai/go-wayfinder/distance"
	"github.com/nvr-ai/go-wayfinder/images"
	"github.com/nvr-ai/go-wayfinder/models/postprocess"
	"github.com/pkg/errors"
)

// DefaultSource is assumed for detections that do not name their detector.
const DefaultSource = "primary"

// DetectionRequest is one raw detection as sent by a client.
type DetectionRequest struct {
	Label      string     `json:"label"`
	Confidence float32    `json:"confidence"`
	BBox       [4]float32 `json:"bbox"`
	Source     string     `json:"source,omitempty"`
	// DepthM is an optional external depth reading for this box in metres.
	DepthM *float32 `json:"depth_m,omitempty"`
}

// NavigateRequest is one frame of detector output.
type NavigateRequest struct {
	FrameID    string             `json:"frame_id,omitempty"`
	Width      int                `json:"width"`
	Height     int                `json:"height"`
	Target     string             `json:"target,omitempty"`
	Detections []DetectionRequest `json:"detections"`
}

// DetectionResponse is one annotated detection.
type DetectionResponse struct {
	Label       string               `json:"label"`
	SpeechLabel string               `json:"speech_label"`
	Confidence  float32              `json:"confidence"`
	Distance    distance.Measurement `json:"distance_m"`
	Category    string               `json:"distance_category"`
	Position    annotate.Position    `json:"position"`
	BBox        [4]float32           `json:"bbox"`
	Source      string               `json:"source"`
}

// CommandResponse is one navigation decision.
type CommandResponse struct {
	Command  controller.Command   `json:"command"`
	Reason   string               `json:"reason"`
	Distance distance.Measurement `json:"distance_m"`
	Obstacle *DetectionResponse   `json:"obstacle"`
}

// NavigateResponse answers a NavigateRequest.
type NavigateResponse struct {
	CommandResponse
	FrameID    string              `json:"frame_id"`
	Detections []DetectionResponse `json:"detections"`
	Guidance   *CommandResponse    `json:"guidance,omitempty"`
}

// ErrorResponse is returned for rejected requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Frame converts the request to a pipeline frame, assigning a frame ID when
// the client sent none.
//
// Detections are grouped by source. Depth readings are attached to the exact
// box they came with; fusion keeps surviving boxes unchanged so the lookup
// still matches after suppression.
//
// Returns:
//   - controller.Frame: The frame.
//   - error: controller.ErrInvalidFrame for a non-positive frame size, a
//     confidence outside [0, 1] or a box without positive width and height.
func (r NavigateRequest) Frame() (controller.Frame, error) {
	if r.Width <= 0 || r.Height <= 0 {
		return controller.Frame{}, errors.Wrapf(controller.ErrInvalidFrame,
			"width and height must be positive, got %dx%d", r.Width, r.Height)
	}

	frame := controller.Frame{
		ID:         r.FrameID,
		Width:      r.Width,
		Height:     r.Height,
		Target:     r.Target,
		Detections: make(map[string][]postprocess.Result),
	}
	if frame.ID == "" {
		frame.ID = uuid.NewString()
	}

	var depths controller.StaticDepths
	for i, d := range r.Detections {
		if err := d.validate(); err != nil {
			return controller.Frame{}, errors.Wrapf(err, "detection %d", i)
		}
		source := d.Source
		if source == "" {
			source = DefaultSource
		}
		box := images.NewRect(d.BBox[:])
		frame.Detections[source] = append(frame.Detections[source], postprocess.Result{
			Box:    box,
			Score:  d.Confidence,
			Label:  d.Label,
			Source: source,
		})
		if d.DepthM != nil {
			if depths == nil {
				depths = make(controller.StaticDepths)
			}
			depths[box] = *d.DepthM
		}
	}
	if depths != nil {
		frame.Depth = depths
	}
	return frame, nil
}

func (d DetectionRequest) validate() error {
	if !(d.Confidence >= 0 && d.Confidence <= 1) {
		return errors.Wrapf(controller.ErrInvalidFrame,
			"confidence must be in [0, 1], got %v", d.Confidence)
	}
	if !(d.BBox[0] < d.BBox[2] && d.BBox[1] < d.BBox[3]) {
		return errors.Wrapf(controller.ErrInvalidFrame,
			"bbox must satisfy x1 < x2 and y1 < y2, got %v", d.BBox)
	}
	return nil
}

// NewDetectionResponse converts an annotated detection.
func NewDetectionResponse(det annotate.Detection) DetectionResponse {
	return DetectionResponse{
		Label:       det.Label,
		SpeechLabel: det.SpeechLabel,
		Confidence:  det.Score,
		Distance:    det.Distance,
		Category:    distance.Category(det.Distance),
		Position:    det.Position,
		BBox:        [4]float32{det.Box.X1, det.Box.Y1, det.Box.X2, det.Box.Y2},
		Source:      det.Source,
	}
}

// NewCommandResponse converts a navigation decision.
func NewCommandResponse(cmd controller.NavigationCommand) CommandResponse {
	resp := CommandResponse{
		Command:  cmd.Command,
		Reason:   cmd.Reason,
		Distance: cmd.Distance,
	}
	if cmd.Obstacle != nil {
		obstacle := NewDetectionResponse(*cmd.Obstacle)
		resp.Obstacle = &obstacle
	}
	return resp
}

// NewNavigateResponse converts a pipeline outcome.
func NewNavigateResponse(out controller.Outcome) NavigateResponse {
	resp := NavigateResponse{
		FrameID:         out.FrameID,
		CommandResponse: NewCommandResponse(out.Command),
		Detections:      make([]DetectionResponse, 0, len(out.Detections)),
	}
	for _, det := range out.Detections {
		resp.Detections = append(resp.Detections, NewDetectionResponse(det))
	}
	if out.Guidance != nil {
		guidance := NewCommandResponse(*out.Guidance)
		resp.Guidance = &guidance
	}
	return resp
}
