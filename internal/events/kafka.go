package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/rzpsarthak13/table-partitioner/internal/config"
	"github.com/rzpsarthak13/table-partitioner/internal/core"
	"github.com/rzpsarthak13/table-partitioner/internal/logger"
)

// MessageWriter is the subset of *kafka.Writer used by KafkaSink.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes events as JSON messages keyed by source table, so
// all events of one table land on the same partition in order.
type KafkaSink struct {
	writer MessageWriter
	topic  string
	log    *logrus.Entry

	mu     sync.RWMutex
	closed bool
}

// NewKafkaSink creates a synchronous Kafka producer for cfg.Topic.
func NewKafkaSink(cfg config.KafkaConfig, log *logrus.Logger) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("Kafka topic is required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		BatchBytes:   int64(cfg.MaxMessageBytes),
		MaxAttempts:  3,
	}

	sink := NewKafkaSinkFromWriter(writer, cfg.Topic, log)
	sink.log.WithFields(logger.Fields{
		"brokers": cfg.Brokers,
		"topic":   cfg.Topic,
		"acks":    cfg.RequiredAcks,
	}).Info("kafka event sink initialized")
	return sink, nil
}

// NewKafkaSinkFromWriter creates a sink over an existing writer.
func NewKafkaSinkFromWriter(writer MessageWriter, topic string, log *logrus.Logger) *KafkaSink {
	return &KafkaSink{
		writer: writer,
		topic:  topic,
		log:    logger.Component(log, "events").WithField("sink", "kafka"),
	}
}

func (s *KafkaSink) Publish(ctx context.Context, ev core.Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}

	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(ev.Table),
		Value: data,
		Time:  ev.Timestamp,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(ev.Type)},
			{Key: "run_id", Value: []byte(ev.RunID)},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write event to topic %s: %w", s.topic, err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (s *KafkaSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.writer.Close()
}
