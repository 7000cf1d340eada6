package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"AgriCast/pkg/logger"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffStaysWithinBounds(t *testing.T) {
	min, max := 100*time.Millisecond, time.Second
	for attempt := 1; attempt <= 8; attempt++ {
		ceil := min << (attempt - 1)
		if ceil > max {
			ceil = max
		}
		for i := 0; i < 50; i++ {
			d := backoff(min, max, attempt)
			assert.LessOrEqual(t, d, ceil)
			assert.Greater(t, d, ceil/2)
		}
	}
}

func TestEncodeValue(t *testing.T) {
	b, err := encodeValue([]byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, "raw", string(b))

	b, err = encodeValue(map[string]int{"epochs": 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"epochs":3}`, string(b))

	_, err = encodeValue(make(chan int))
	assert.Error(t, err)
}

func TestParseCompressionDefaultsToGzip(t *testing.T) {
	assert.Equal(t, kafka.Zstd, parseCompression("zstd"))
	assert.Equal(t, kafka.Gzip, parseCompression(""))
	assert.Equal(t, kafka.Gzip, parseCompression("brotli"))
}

func TestConstructorsRequireBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.ErrorIs(t, err, errNoBrokers)
	_, err = NewConsumer(ConsumerConfig{}, logger.Nop())
	assert.ErrorIs(t, err, errNoBrokers)
}

type flakyHandler struct {
	fails int
	calls int
}

func (h *flakyHandler) Topic() string { return "t" }
func (h *flakyHandler) Handle(context.Context, []byte) error {
	h.calls++
	if h.calls <= h.fails {
		return errors.New("transient")
	}
	return nil
}

type panicHandler struct{}

func (panicHandler) Topic() string                        { return "p" }
func (panicHandler) Handle(context.Context, []byte) error { panic("bad payload") }

func TestHandleWithRetry(t *testing.T) {
	c, err := NewConsumer(ConsumerConfig{
		Brokers:    []string{"localhost:9092"},
		RetryMax:   2,
		BackoffMin: time.Millisecond,
		BackoffMax: 2 * time.Millisecond,
	}, logger.Nop())
	require.NoError(t, err)

	h := &flakyHandler{fails: 2}
	require.NoError(t, c.handleWithRetry(h, kafka.Message{Topic: "t"}))
	assert.Equal(t, 3, h.calls)

	h = &flakyHandler{fails: 5}
	assert.Error(t, c.handleWithRetry(h, kafka.Message{Topic: "t"}))
	assert.Equal(t, 3, h.calls)

	err = c.handleWithRetry(panicHandler{}, kafka.Message{Topic: "p"})
	assert.ErrorContains(t, err, "handler panic")
}
