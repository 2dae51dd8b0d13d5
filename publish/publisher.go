// Package publish - Delivers navigation commands to downstream consumers such
// as the speech layer.
package publish

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nvr-ai/go-wayfinder/controller"
	"github.com/nvr-ai/go-wayfinder/distance"
)

// Publisher delivers navigation events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	// Publish queues one event. It may return before delivery completes.
	Publish(ctx context.Context, event Event) error
	// Close flushes pending events and releases resources.
	Close()
}

// Event is the published form of one navigation decision.
type Event struct {
	ID        string               `json:"id"`
	FrameID   string               `json:"frame_id"`
	Command   controller.Command   `json:"command"`
	Reason    string               `json:"reason"`
	Label     string               `json:"label,omitempty"`
	Position  string               `json:"position,omitempty"`
	Distance  distance.Measurement `json:"distance_m"`
	Target    string               `json:"target,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}

// NewEvent builds an event for cmd.
//
// Arguments:
//   - frameID: The frame the command was decided for.
//   - cmd: The decision.
//   - target: The guidance target, empty for obstacle avoidance.
//   - at: Decision time.
//
// Returns:
//   - Event: The event with a fresh ID.
func NewEvent(frameID string, cmd controller.NavigationCommand, target string, at time.Time) Event {
	event := Event{
		ID:        uuid.NewString(),
		FrameID:   frameID,
		Command:   cmd.Command,
		Reason:    cmd.Reason,
		Distance:  cmd.Distance,
		Target:    target,
		Timestamp: at.UTC(),
	}
	if cmd.Obstacle != nil {
		event.Label = cmd.Obstacle.Label
		event.Position = string(cmd.Obstacle.Position)
	}
	return event
}

// Encode returns the JSON form of the event.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

// Publish discards event.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Close does nothing.
func (NopPublisher) Close() {}
