// Package controller - Turns the annotated objects of a frame into one navigation command.
package controller

import (
	"fmt"
	"strings"

	"github.com/nvr-ai/go-wayfinder/annotate"
	"github.com/nvr-ai/go-wayfinder/distance"
	"github.com/nvr-ai/go-wayfinder/models"
	"github.com/pkg/errors"
)

// Command is one discrete movement instruction.
type Command string

const (
	// CommandStop means an obstacle is directly ahead and very close.
	CommandStop Command = "stop"
	// CommandCaution means an obstacle is ahead within caution range.
	CommandCaution Command = "caution"
	// CommandTurnLeft steers away from an obstacle on the right.
	CommandTurnLeft Command = "turn left"
	// CommandTurnRight steers away from an obstacle on the left.
	CommandTurnRight Command = "turn right"
	// CommandProceed means the path is clear.
	CommandProceed Command = "proceed"
	// CommandGoStraight means a requested target is straight ahead.
	CommandGoStraight Command = "go straight"
	// CommandNotFound means a requested target is not visible.
	CommandNotFound Command = "not found"
)

// ErrInvalidThresholds is returned for non-monotonic or negative thresholds.
var ErrInvalidThresholds = errors.New("invalid navigation thresholds")

// ThresholdConfig is the navigation policy.
type ThresholdConfig struct {
	// MinConfidence drops detections scored below it.
	MinConfidence float32 `yaml:"min_confidence" json:"min_confidence"`
	// MinBoxArea drops boxes smaller than this many square pixels.
	MinBoxArea float32 `yaml:"min_box_area" json:"min_box_area"`
	// StopDistance is the range in metres below which a center obstacle stops the user.
	StopDistance float32 `yaml:"stop_distance" json:"stop_distance"`
	// CautionDistance is the range in metres below which obstacles are announced
	// and side obstacles cause a veer. Must exceed StopDistance.
	CautionDistance float32 `yaml:"caution_distance" json:"caution_distance"`
}

// DefaultThresholdConfig returns the navigation defaults.
func DefaultThresholdConfig() ThresholdConfig {
	return ThresholdConfig{
		MinConfidence:   0.35,
		MinBoxArea:      400,
		StopDistance:    1.0,
		CautionDistance: 2.0,
	}
}

// Validate checks that the thresholds are usable.
func (c ThresholdConfig) Validate() error {
	if c.MinConfidence < 0 || c.MinBoxArea < 0 || c.StopDistance < 0 {
		return errors.Wrapf(ErrInvalidThresholds, "negative threshold in %+v", c)
	}
	if c.StopDistance >= c.CautionDistance {
		return errors.Wrapf(ErrInvalidThresholds,
			"stop distance %v must be below caution distance %v", c.StopDistance, c.CautionDistance)
	}
	return nil
}

// Bucket summarises the detections in one horizontal third of the frame.
type Bucket struct {
	// Closest is the nearest detection with a known distance, if any.
	Closest *annotate.Detection `json:"closest"`
	// Count is the number of detections in the bucket, measured or not.
	Count int `json:"count"`
}

// ObstacleSummary holds one bucket per position.
type ObstacleSummary struct {
	Left   Bucket `json:"left"`
	Center Bucket `json:"center"`
	Right  Bucket `json:"right"`
}

// Bucket returns the bucket for p.
func (s *ObstacleSummary) Bucket(p annotate.Position) *Bucket {
	switch p {
	case annotate.Left:
		return &s.Left
	case annotate.Right:
		return &s.Right
	default:
		return &s.Center
	}
}

// NavigationCommand is the decision for one frame.
type NavigationCommand struct {
	Command Command
	// Reason is a short spoken explanation.
	Reason string
	// Obstacle is the detection that caused the command, or the target when guiding.
	Obstacle *annotate.Detection
	// Distance is the distance to Obstacle.
	Distance distance.Measurement
	// Summary is the closest measured detection per bucket.
	Summary ObstacleSummary
}

// Navigator decides what the user should do next.
//
// It is stateless: each call looks only at the detections it is given, so a
// stale frame can never influence the next command.
type Navigator struct {
	thresholds ThresholdConfig
}

// NewNavigator validates thresholds and returns a navigator.
//
// Arguments:
//   - thresholds: Navigation policy.
//
// Returns:
//   - *Navigator: The navigator.
//   - error: ErrInvalidThresholds if the thresholds are unusable.
func NewNavigator(thresholds ThresholdConfig) (*Navigator, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	return &Navigator{thresholds: thresholds}, nil
}

// Thresholds returns the navigator's policy.
func (n *Navigator) Thresholds() ThresholdConfig {
	return n.thresholds
}

// Decide returns the navigation command for one frame.
//
// Rules, first match wins:
//  1. a center obstacle closer than StopDistance: stop.
//  2. a center obstacle closer than CautionDistance: caution.
//  3. a left or right obstacle closer than CautionDistance: turn away from the
//     nearer side.
//  4. proceed.
//
// Arguments:
//   - dets: Annotated detections of the frame, any order.
//
// Returns:
//   - NavigationCommand: The decision. No detections yields proceed.
func (n *Navigator) Decide(dets []annotate.Detection) NavigationCommand {
	summary := n.Summarize(dets)

	if c := summary.Center.Closest; c != nil && c.Distance.Meters < n.thresholds.StopDistance {
		return n.command(CommandStop, fmt.Sprintf("stop, %s", annotate.Phrase(*c)), c, summary)
	}
	if c := summary.Center.Closest; c != nil && c.Distance.Meters < n.thresholds.CautionDistance {
		return n.command(CommandCaution, fmt.Sprintf("careful, %s", annotate.Phrase(*c)), c, summary)
	}

	left := n.within(summary.Left.Closest)
	right := n.within(summary.Right.Closest)
	switch {
	case left != nil && (right == nil || left.Distance.Meters <= right.Distance.Meters):
		return n.command(CommandTurnRight, annotate.Phrase(*left), left, summary)
	case right != nil:
		return n.command(CommandTurnLeft, annotate.Phrase(*right), right, summary)
	}

	reason := "path is clear"
	if summary.Center.Count > 0 {
		reason = "path is clear, objects ahead are far or unmeasured"
	}
	return NavigationCommand{Command: CommandProceed, Reason: reason, Summary: summary}
}

// Summarize filters out weak and tiny detections and finds the closest
// measured detection per bucket.
func (n *Navigator) Summarize(dets []annotate.Detection) ObstacleSummary {
	var summary ObstacleSummary
	for i := range dets {
		det := &dets[i]
		if !n.actionable(det) {
			continue
		}
		bucket := summary.Bucket(det.Position)
		bucket.Count++
		if det.Distance.Valid && (bucket.Closest == nil || det.Distance.Less(bucket.Closest.Distance)) {
			closest := *det
			bucket.Closest = &closest
		}
	}
	return summary
}

// Guide steers the user towards the nearest detection matching target while
// still stopping for obstacles directly ahead.
//
// A target matches a label equal to it after normalisation or a label that
// starts with the target as a whole word, so "door" finds "door_open" and
// "door closed" finds "door_closed".
//
// Arguments:
//   - dets: Annotated detections of the frame.
//   - target: Label requested by the user.
//
// Returns:
//   - NavigationCommand: stop, turn left, turn right, go straight or not found.
func (n *Navigator) Guide(dets []annotate.Detection, target string) NavigationCommand {
	decision := n.Decide(dets)
	if decision.Command == CommandStop {
		return decision
	}

	want := spoken(target)
	var found *annotate.Detection
	for i := range dets {
		det := &dets[i]
		if !n.actionable(det) || !matchesTarget(det.Label, want) {
			continue
		}
		if found == nil || det.Distance.Less(found.Distance) {
			found = det
		}
	}
	if found == nil {
		return NavigationCommand{
			Command: CommandNotFound,
			Reason:  fmt.Sprintf("no %s in view", want),
			Summary: decision.Summary,
		}
	}

	hit := *found
	cmd := CommandGoStraight
	switch found.Position {
	case annotate.Left:
		cmd = CommandTurnLeft
	case annotate.Right:
		cmd = CommandTurnRight
	}
	return n.command(cmd, annotate.Phrase(hit), &hit, decision.Summary)
}

func (n *Navigator) actionable(det *annotate.Detection) bool {
	return det.Score >= n.thresholds.MinConfidence && det.Box.Area() >= n.thresholds.MinBoxArea
}

// within returns det when it is measured and inside caution range.
func (n *Navigator) within(det *annotate.Detection) *annotate.Detection {
	if det == nil || det.Distance.Meters >= n.thresholds.CautionDistance {
		return nil
	}
	return det
}

func (n *Navigator) command(
	cmd Command,
	reason string,
	obstacle *annotate.Detection,
	summary ObstacleSummary,
) NavigationCommand {
	return NavigationCommand{
		Command:  cmd,
		Reason:   reason,
		Obstacle: obstacle,
		Distance: obstacle.Distance,
		Summary:  summary,
	}
}

// spoken normalises a label or voice target for comparison.
func spoken(label string) string {
	return annotate.SpeechLabel(models.NormalizeLabel(label))
}

func matchesTarget(label, target string) bool {
	l := spoken(label)
	return target != "" && (l == target || strings.HasPrefix(l, target+" "))
}
