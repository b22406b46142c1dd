package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"sort"
	"sync"
	"time"
)

// Publisher ships aggregated logs, typically to a Kafka topic.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	Service        string        // stamped on every batch
	TimeInterval   time.Duration // flush period
	CountThreshold int           // distinct entries that force an early flush
	Topic          string
	Publisher      Publisher
}

type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogBatch is the payload handed to the Publisher.
type LogBatch struct {
	Service string               `json:"service"`
	SentAt  time.Time            `json:"sent_at"`
	Entries []AggregatedLogEntry `json:"entries"`
}

// LogCollector folds identical warnings and errors into counted entries and
// publishes them every TimeInterval, or sooner once CountThreshold distinct
// entries are pending. All publishing happens on one goroutine.
type LogCollector struct {
	config  *CollectionConfig
	mu      sync.Mutex
	pending map[uint64]*AggregatedLogEntry
	full    chan struct{}
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	if config.TimeInterval <= 0 {
		config.TimeInterval = 30 * time.Second
	}
	if config.CountThreshold <= 0 {
		config.CountThreshold = 100
	}
	c := &LogCollector{
		config:  config,
		pending: make(map[uint64]*AggregatedLogEntry),
		full:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := entryKey(level, message, fields, caller)

	c.mu.Lock()
	if e, ok := c.pending[key]; ok {
		e.Count++
		e.LastSeen = now
	} else {
		c.pending[key] = &AggregatedLogEntry{
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}
	reached := len(c.pending) >= c.config.CountThreshold
	c.mu.Unlock()

	if reached {
		select {
		case c.full <- struct{}{}:
		default:
		}
	}
}

// Pending returns the number of distinct entries waiting to be flushed.
func (c *LogCollector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// entryKey identifies a log line by everything but its timestamp. Fields are
// hashed through encoding/json, which sorts map keys.
func entryKey(level, message string, fields map[string]interface{}, caller string) uint64 {
	h := fnv.New64a()
	for _, s := range []string{level, message, caller} {
		_, _ = h.Write([]byte(s))
		_, _ = h.Write([]byte{0})
	}
	if len(fields) > 0 {
		b, _ := json.Marshal(fields)
		_, _ = h.Write(b)
	}
	return h.Sum64()
}

func (c *LogCollector) run() {
	defer close(c.done)
	ticker := time.NewTicker(c.config.TimeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-c.full:
		case <-c.stop:
			c.publish(c.drain())
			return
		}
		c.publish(c.drain())
	}
}

// drain takes the pending entries, oldest first.
func (c *LogCollector) drain() []AggregatedLogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		return nil
	}
	entries := make([]AggregatedLogEntry, 0, len(c.pending))
	for _, e := range c.pending {
		entries = append(entries, *e)
	}
	c.pending = make(map[uint64]*AggregatedLogEntry)
	sort.Slice(entries, func(i, j int) bool { return entries[i].FirstSeen.Before(entries[j].FirstSeen) })
	return entries
}

func (c *LogCollector) publish(entries []AggregatedLogEntry) {
	if len(entries) == 0 || c.config.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	batch := LogBatch{Service: c.config.Service, SentAt: time.Now().UTC(), Entries: entries}
	if err := c.config.Publisher.PublishMessage(ctx, c.config.Topic, batch); err != nil {
		// The logger may itself feed this collector.
		fmt.Fprintf(os.Stderr, "log collector: publish %d entries: %v\n", len(entries), err)
	}
}

// Close flushes what is pending and waits for the publishing goroutine.
func (c *LogCollector) Close() {
	c.once.Do(func() { close(c.stop) })
	<-c.done
}
