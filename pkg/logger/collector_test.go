package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu      sync.Mutex
	topic   string
	batches []LogBatch
}

func (p *fakePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.(LogBatch))
	return nil
}

func (p *fakePublisher) snapshot() []LogBatch {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]LogBatch(nil), p.batches...)
}

func TestCollectorDeduplicatesAndFlushesOnClose(t *testing.T) {
	pub := &fakePublisher{}
	c := NewLogCollector(&CollectionConfig{
		Service:        "powerledger",
		TimeInterval:   time.Hour,
		CountThreshold: 10,
		Topic:          "powerledger.logs",
		Publisher:      pub,
	})

	fields := map[string]interface{}{"station_id": 3}
	c.AddLog("warn", "rate limit exceeded", fields, "ratelimit.go:30")
	c.AddLog("warn", "rate limit exceeded", fields, "ratelimit.go:30")
	c.AddLog("error", "backup restore failed", nil, "snapshot.go:190")
	assert.Equal(t, 2, c.Pending())

	c.Close()

	batches := pub.snapshot()
	require.Len(t, batches, 1)
	assert.Equal(t, "powerledger.logs", pub.topic)
	assert.Equal(t, "powerledger", batches[0].Service)
	require.Len(t, batches[0].Entries, 2)
	counts := map[string]int{}
	for _, e := range batches[0].Entries {
		counts[e.Message] = e.Count
	}
	assert.Equal(t, map[string]int{"rate limit exceeded": 2, "backup restore failed": 1}, counts)
	assert.Equal(t, 0, c.Pending())
}

func TestCollectorFlushesAtThreshold(t *testing.T) {
	pub := &fakePublisher{}
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 2,
		Publisher:      pub,
	})
	defer c.Close()

	c.AddLog("warn", "first", nil, "a.go:1")
	c.AddLog("warn", "second", nil, "a.go:2")

	require.Eventually(t, func() bool { return len(pub.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Len(t, pub.snapshot()[0].Entries, 2)
}

func TestLoggerFeedsCollector(t *testing.T) {
	pub := &fakePublisher{}
	l := NewNop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Publisher: pub})

	l.Info("ignored")
	l.Warn("scheduler lock busy", String("key", "lock:reservation-expiry"))
	l.Error("scan failed", Error(errors.New("boom")))
	l.RemoveCollector()

	batches := pub.snapshot()
	require.Len(t, batches, 1)
	require.Len(t, batches[0].Entries, 2)
	for _, e := range batches[0].Entries {
		if e.Level == "warn" {
			assert.Equal(t, "lock:reservation-expiry", e.Fields["key"])
		}
	}
}
