package publish

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/nvr-ai/go-wayfinder/config"
	"github.com/nvr-ai/go-wayfinder/internal/log"
	"github.com/pkg/errors"
)

const (
	maxRetries   = 3
	baseBackoff  = 50 * time.Millisecond
	flushTimeout = 10 * time.Second
)

// producer is the part of *kafka.Producer the publisher uses.
type producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Flush(timeoutMs int) int
	Close()
}

// KafkaPublisher produces events to a Kafka topic keyed by frame ID.
//
// Produce is asynchronous; delivery reports are drained on a background
// goroutine and counted.
type KafkaPublisher struct {
	producer   producer
	topic      string
	deliveries chan kafka.Event
	logger     *slog.Logger

	// rejected counts events the producer never accepted; they are not in sent.
	sent     atomic.Int64
	acked    atomic.Int64
	failed   atomic.Int64
	rejected atomic.Int64

	wg     sync.WaitGroup
	cancel context.CancelFunc
	once   sync.Once
}

// NewKafkaPublisher connects a producer for cfg.
//
// Arguments:
//   - cfg: Broker and topic settings.
//   - logger: Logger for delivery failures, nil for the global logger.
//
// Returns:
//   - *KafkaPublisher: The publisher.
//   - error: If cfg has no broker or the producer cannot be created.
func NewKafkaPublisher(cfg config.KafkaConfig, logger *slog.Logger) (*KafkaPublisher, error) {
	if !cfg.Enabled() {
		return nil, errors.New("kafka bootstrap servers are not configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is not configured")
	}

	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  cfg.BootstrapServers,
		"client.id":          cfg.ClientID,
		"acks":               "all",
		"linger.ms":          5,
		"enable.idempotence": true,
		"request.timeout.ms": 10000,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create kafka producer")
	}

	if logger == nil {
		logger = log.L()
	}
	p := newKafkaPublisher(cfg.Topic, logger)
	p.producer = producer

	p.logger.Info("kafka publisher ready", "topic", cfg.Topic, "servers", cfg.BootstrapServers)
	return p, nil
}

func newKafkaPublisher(topic string, logger *slog.Logger) *KafkaPublisher {
	ctx, cancel := context.WithCancel(context.Background())
	p := &KafkaPublisher{
		topic:      topic,
		deliveries: make(chan kafka.Event, 1024),
		logger:     logger.With("component", "kafka"),
		cancel:     cancel,
	}
	p.wg.Add(1)
	go p.handleDeliveryReports(ctx)
	return p
}

func (p *KafkaPublisher) handleDeliveryReports(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case e := <-p.deliveries:
			m, ok := e.(*kafka.Message)
			if !ok {
				continue
			}
			if m.TopicPartition.Error != nil {
				p.failed.Add(1)
				p.logger.Warn("delivery failed", "key", string(m.Key), "error", m.TopicPartition.Error)
				continue
			}
			p.acked.Add(1)
		}
	}
}

// Publish queues event, retrying retriable produce errors with exponential
// backoff until ctx is done.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := event.Encode()
	if err != nil {
		return errors.Wrap(err, "failed to encode event")
	}

	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny},
		Key:            []byte(event.FrameID),
		Value:          payload,
		Headers: []kafka.Header{
			{Key: "command", Value: []byte(event.Command)},
		},
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), "publish cancelled")
			case <-time.After(baseBackoff << (attempt - 1)):
			}
		}

		err := p.producer.Produce(msg, p.deliveries)
		if err == nil {
			p.sent.Add(1)
			return nil
		}
		lastErr = err

		var kerr kafka.Error
		if errors.As(err, &kerr) && !kerr.IsRetriable() {
			break
		}
	}

	p.rejected.Add(1)
	return errors.Wrapf(lastErr, "failed to produce event for frame %s", event.FrameID)
}

// CollectMetrics reports delivery counters for the profiler. Pending counts
// accepted events still waiting for a delivery report.
func (p *KafkaPublisher) CollectMetrics() map[string]float64 {
	sent, acked, failed := p.sent.Load(), p.acked.Load(), p.failed.Load()
	return map[string]float64{
		"publish.sent":     float64(sent),
		"publish.acked":    float64(acked),
		"publish.failed":   float64(failed),
		"publish.rejected": float64(p.rejected.Load()),
		"publish.pending":  float64(sent - acked - failed),
	}
}

// Close flushes pending messages, stops the delivery handler and closes the
// producer. It is safe to call more than once.
func (p *KafkaPublisher) Close() {
	p.once.Do(func() {
		if remaining := p.producer.Flush(int(flushTimeout.Milliseconds())); remaining > 0 {
			p.logger.Warn("messages still queued after flush", "remaining", remaining)
		}
		p.cancel()
		p.wg.Wait()
		p.producer.Close()
		p.logger.Info("kafka publisher closed",
			"sent", p.sent.Load(), "acked", p.acked.Load(), "failed", p.failed.Load(), "rejected", p.rejected.Load())
	})
}
