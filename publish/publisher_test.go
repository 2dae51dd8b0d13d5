package publish

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/nvr-ai/go-wayfinder/annotate"
	"github.com/nvr-ai/go-wayfinder/config"
	"github.com/nvr-ai/go-wayfinder/controller"
	"github.com/nvr-ai/go-wayfinder/distance"
	"github.com/nvr-ai/go-wayfinder/internal/log"
	"github.com/nvr-ai/go-wayfinder/models/postprocess"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	obstacle := annotate.Detection{
		Result:   postprocess.Result{Label: "door_closed"},
		Position: annotate.Center,
		Distance: distance.Meters(0.6),
	}
	cmd := controller.NavigationCommand{
		Command:  controller.CommandStop,
		Reason:   "stop, door closed ahead, 0.6 meters",
		Obstacle: &obstacle,
		Distance: obstacle.Distance,
	}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))

	event := NewEvent("f-7", cmd, "", at)

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "door_closed", event.Label)
	assert.Equal(t, "center", event.Position)
	assert.Equal(t, time.UTC, event.Timestamp.Location())

	data, err := event.Encode()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "stop", decoded["command"])
	assert.Equal(t, "f-7", decoded["frame_id"])
	assert.Equal(t, 0.6, decoded["distance_m"])
	assert.NotContains(t, decoded, "target")
}

func TestNewEvent_Proceed(t *testing.T) {
	event := NewEvent("f-8", controller.NavigationCommand{Command: controller.CommandProceed}, "door", time.Now())

	data, err := event.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"distance_m":null`)
	assert.Contains(t, string(data), `"target":"door"`)
	assert.Empty(t, event.Label)
	assert.NotEqual(t, NewEvent("f-8", controller.NavigationCommand{}, "", time.Now()).ID, event.ID)
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), Event{}))
	p.Close()
}

func TestNewKafkaPublisher_RequiresBroker(t *testing.T) {
	_, err := NewKafkaPublisher(config.KafkaConfig{Topic: "nav"}, log.Discard())
	assert.Error(t, err)

	_, err = NewKafkaPublisher(config.KafkaConfig{BootstrapServers: "localhost:9092"}, log.Discard())
	assert.Error(t, err)
}

func TestKafkaPublisher_DeliveryReports(t *testing.T) {
	p := newKafkaPublisher("nav", log.Discard())
	p.sent.Store(3)

	p.deliveries <- &kafka.Message{Key: []byte("f-1")}
	p.deliveries <- &kafka.Message{Key: []byte("f-2"), TopicPartition: kafka.TopicPartition{Error: errors.New("broker down")}}
	p.deliveries <- kafka.NewError(kafka.ErrTransport, "ignored", false)

	assert.Eventually(t, func() bool {
		return p.acked.Load() == 1 && p.failed.Load() == 1
	}, time.Second, 5*time.Millisecond)

	p.cancel()
	p.wg.Wait()

	assert.Equal(t, map[string]float64{
		"publish.sent":     3,
		"publish.acked":    1,
		"publish.failed":   1,
		"publish.rejected": 0,
		"publish.pending":  1,
	}, p.CollectMetrics())
}

type stubProducer struct {
	errs     []error
	produced int
}

func (s *stubProducer) Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error {
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return err
	}
	s.produced++
	return nil
}

func (s *stubProducer) Flush(int) int { return 0 }

func (s *stubProducer) Close() {}

func TestKafkaPublisher_ProduceErrorsKeepPendingNonNegative(t *testing.T) {
	p := newKafkaPublisher("nav", log.Discard())
	stub := &stubProducer{errs: []error{
		kafka.NewError(kafka.ErrMsgSizeTooLarge, "too large", false),
	}}
	p.producer = stub
	defer p.Close()

	event := Event{ID: "e-1", FrameID: "f-1", Command: controller.CommandStop}
	require.Error(t, p.Publish(context.Background(), event))
	require.NoError(t, p.Publish(context.Background(), event))
	assert.Equal(t, 1, stub.produced)

	metrics := p.CollectMetrics()
	assert.Equal(t, float64(1), metrics["publish.sent"])
	assert.Equal(t, float64(0), metrics["publish.failed"])
	assert.Equal(t, float64(1), metrics["publish.rejected"])
	assert.Equal(t, float64(1), metrics["publish.pending"])
}
