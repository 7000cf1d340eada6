package logger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches []LogBatch
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.(LogBatch))
	return nil
}

func (p *capturePublisher) snapshot() []LogBatch {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]LogBatch(nil), p.batches...)
}

func TestCollectorDeduplicatesAndFlushesOnClose(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 10,
		Topic:          "logs",
		Publisher:      pub,
		Service:        "svc",
	})

	fields := map[string]interface{}{"route": "/x"}
	c.AddLog("error", "boom", fields, "a.go:1")
	c.AddLog("error", "boom", map[string]interface{}{"route": "/x"}, "a.go:1")
	c.AddLog("error", "other", nil, "b.go:2")
	assert.Equal(t, 2, c.Pending())

	c.Close()

	batches := pub.snapshot()
	require.Len(t, batches, 1)
	assert.Equal(t, "logs", pub.topic)
	assert.Equal(t, "svc", batches[0].Service)
	require.Len(t, batches[0].Entries, 2)
	assert.Equal(t, "boom", batches[0].Entries[0].Message, "entries sorted by count")
	assert.Equal(t, 2, batches[0].Entries[0].Count)
}

func TestCollectorFlushesAtThreshold(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 2,
		Topic:          "logs",
		Publisher:      pub,
	})
	c.AddLog("error", "a", nil, "x")
	c.AddLog("error", "b", nil, "x")
	assert.Zero(t, c.Pending())

	c.Close()
	batches := pub.snapshot()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0].Entries, 2)
}

func TestLoggerFeedsCollector(t *testing.T) {
	pub := &capturePublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, Topic: "logs", Publisher: pub})

	child := l.With(String("component", "test"))
	child.Error("failed", String("k", "v"))
	child.Warn("not collected")
	child.Info("not collected")

	l.RemoveCollector()
	batches := pub.snapshot()
	require.Len(t, batches, 1)
	require.Len(t, batches[0].Entries, 1)
	assert.Equal(t, "failed", batches[0].Entries[0].Message)
	assert.Equal(t, map[string]interface{}{"k": "v"}, batches[0].Entries[0].Fields)
}

func TestRemoveCollectorFromChildDetachesFamily(t *testing.T) {
	pub := &capturePublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, Topic: "logs", Publisher: pub})

	child := l.With(String("component", "test"))
	child.RemoveCollector()
	l.Error("after removal")

	assert.Empty(t, pub.snapshot())
}
