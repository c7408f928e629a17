package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// MessageWriter is the part of *kafka.Writer the forwarder uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type envelope struct {
	Type    string `json:"type"`
	Payload Event  `json:"payload"`
}

// KafkaForwarder copies order events from a Bus to a Kafka topic. Publishing is
// best effort: failures are logged and the event is dropped.
type KafkaForwarder struct {
	writer  MessageWriter
	queue   chan Event
	timeout time.Duration
	log     *logrus.Logger
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
}

func NewKafkaForwarder(writer MessageWriter, logger *logrus.Logger) *KafkaForwarder {
	return &KafkaForwarder{
		writer:  writer,
		queue:   make(chan Event, 256),
		timeout: 10 * time.Second,
		log:     logger,
	}
}

// Attach subscribes the forwarder to order events on bus.
func (f *KafkaForwarder) Attach(bus *Bus) func() {
	return bus.Subscribe(func(e Event) {
		if OrderKey(e) == "" {
			return
		}
		select {
		case f.queue <- e:
		default:
			f.log.Warnf("Kafka: queue full, dropping %s for order %s", e.EventName(), OrderKey(e))
		}
	})
}

// Start attaches to bus and runs the forwarder in the background. The returned stop
// detaches, flushes what is queued and waits for the writer to close, or gives up when
// ctx ends.
func (f *KafkaForwarder) Start(bus *Bus) (stop func(ctx context.Context) error) {
	detach := f.Attach(bus)
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.Run(runCtx)
		close(done)
	}()

	return func(ctx context.Context) error {
		detach()
		cancel()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("kafka flush did not finish: %w", ctx.Err())
		}
	}
}

// Run drains the queue until ctx is cancelled, then flushes what is left and closes the writer.
func (f *KafkaForwarder) Run(ctx context.Context) {
	defer func() {
		if err := f.writer.Close(); err != nil {
			f.log.Errorf("Kafka: failed to close writer: %v", err)
		}
	}()
	for {
		select {
		case e := <-f.queue:
			f.write(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-f.queue:
					f.write(e)
				default:
					return
				}
			}
		}
	}
}

func (f *KafkaForwarder) write(e Event) {
	value, err := json.Marshal(envelope{Type: e.EventName(), Payload: e})
	if err != nil {
		f.log.Errorf("Kafka: failed to marshal %s: %v", e.EventName(), err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	msg := kafka.Message{Key: []byte(OrderKey(e)), Value: value}
	if err := f.writer.WriteMessages(ctx, msg); err != nil {
		f.log.WithFields(logrus.Fields{
			"event":    e.EventName(),
			"order_id": OrderKey(e),
		}).Errorf("Kafka: failed to publish event: %v", err)
		return
	}
	f.log.WithField("order_id", OrderKey(e)).Debugf("Kafka: published %s", e.EventName())
}
