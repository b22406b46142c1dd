// Package kafka publishes JSON records with segmentio/kafka-go.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// Message is one record. Value is sent as-is when it is []byte or string and
// JSON encoded otherwise.
type Message struct {
	Key     []byte
	Value   interface{}
	Headers []kafka.Header
}

// Producer is a synchronous writer: PublishBatch returns once the brokers
// acknowledged the batch per RequiredAcks.
type Producer struct {
	writer *kafka.Writer
	codec  string
}

func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := &ProducerConfig{
		RequiredAcks: -1,
		Compression:  "gzip",
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
		BatchSize:    100,
		BatchBytes:   1 << 20,
		BatchTimeout: time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker is required")
	}
	codec, err := compressionCodec(cfg.Compression)
	if err != nil {
		return nil, err
	}

	var balancer kafka.Balancer = &kafka.LeastBytes{}
	if cfg.HashByKey {
		balancer = &kafka.Hash{}
	}

	registerProducerMetrics()
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Balancer:     balancer,
			RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
			Compression:  codec,
			MaxAttempts:  cfg.MaxAttempts,
			WriteTimeout: cfg.WriteTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			BatchSize:    cfg.BatchSize,
			BatchBytes:   int64(cfg.BatchBytes),
			BatchTimeout: cfg.BatchTimeout,
		},
		codec: cfg.Compression,
	}, nil
}

// PublishMessage sends one unkeyed record. It lets the log collector ship
// batches through the same writer.
func (p *Producer) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.PublishBatch(ctx, topic, []Message{{Value: payload}})
}

// PublishBatch writes messages to topic in one call.
func (p *Producer) PublishBatch(ctx context.Context, topic string, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}

	now := time.Now()
	records := make([]kafka.Message, len(messages))
	var size int64
	for i, m := range messages {
		value, headers, err := encode(m)
		if err != nil {
			return fmt.Errorf("encode message %d for %s: %w", i, topic, err)
		}
		records[i] = kafka.Message{Topic: topic, Key: m.Key, Value: value, Headers: headers, Time: now}
		size += int64(len(value))
	}

	err := p.writer.WriteMessages(ctx, records...)
	observePublish(topic, p.codec, len(records), size, time.Since(now), err)
	if err != nil {
		return fmt.Errorf("write %d message(s) to %s: %w", len(records), topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

const contentTypeHeader = "content-type"

// encode serializes m.Value and tags JSON payloads with a content-type header.
func encode(m Message) ([]byte, []kafka.Header, error) {
	switch v := m.Value.(type) {
	case []byte:
		return v, m.Headers, nil
	case string:
		return []byte(v), m.Headers, nil
	}
	b, err := json.Marshal(m.Value)
	if err != nil {
		return nil, nil, err
	}
	headers := append(m.Headers[:len(m.Headers):len(m.Headers)],
		kafka.Header{Key: contentTypeHeader, Value: []byte("application/json")})
	return b, headers, nil
}

func compressionCodec(name string) (kafka.Compression, error) {
	switch name {
	case "", "gzip":
		return kafka.Gzip, nil
	case "snappy":
		return kafka.Snappy, nil
	case "lz4":
		return kafka.Lz4, nil
	case "zstd":
		return kafka.Zstd, nil
	default:
		return 0, fmt.Errorf("kafka: unknown compression %q", name)
	}
}

var (
	producerMetricsOnce sync.Once
	publishedTotal      *prometheus.CounterVec
	publishedBytes      *prometheus.CounterVec
	publishSeconds      *prometheus.HistogramVec
)

func registerProducerMetrics() {
	producerMetricsOnce.Do(func() {
		publishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "powerledger_kafka_published_messages_total",
			Help: "Messages handed to Kafka, by topic and outcome.",
		}, []string{"topic", "result"})
		publishedBytes = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "powerledger_kafka_published_bytes_total",
			Help: "Uncompressed payload bytes handed to Kafka.",
		}, []string{"topic", "compression"})
		publishSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "powerledger_kafka_publish_duration_seconds",
			Help:    "Time spent in WriteMessages.",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"})
	})
}

func observePublish(topic, codec string, count int, size int64, took time.Duration, err error) {
	if publishedTotal == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	publishedTotal.WithLabelValues(topic, result).Add(float64(count))
	publishedBytes.WithLabelValues(topic, codec).Add(float64(size))
	publishSeconds.WithLabelValues(topic).Observe(took.Seconds())
}
