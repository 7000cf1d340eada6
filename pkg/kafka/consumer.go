package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"AgriCast/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// MessageHandler handles the messages of one topic. A returned error is
// retried with backoff; handlers that want a message dropped return nil.
type MessageHandler interface {
	Topic() string
	Handle(ctx context.Context, value []byte) error
}

type delivery struct {
	reader *kafka.Reader
	msg    kafka.Message
}

// Consumer runs one group reader per registered topic and hands messages to
// a bounded worker pool. Offsets are committed once a message is handled or
// given up on.
type Consumer struct {
	cfg      ConsumerConfig
	log      *logger.Logger
	handlers map[string]MessageHandler
	readers  []*kafka.Reader
	dlq      *kafka.Writer

	deliveries chan delivery
	ctx        context.Context
	cancel     context.CancelFunc
	readWG     sync.WaitGroup
	workWG     sync.WaitGroup
	stopOnce   sync.Once
}

func NewConsumer(cfg ConsumerConfig, l *logger.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errNoBrokers
	}
	if cfg.GroupID == "" {
		cfg.GroupID = "agricast"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 16
	}
	if cfg.BackoffMin <= 0 {
		cfg.BackoffMin = 100 * time.Millisecond
	}
	if cfg.BackoffMax < cfg.BackoffMin {
		cfg.BackoffMax = 5 * time.Second
	}
	if cfg.MinBytes <= 0 {
		cfg.MinBytes = 1
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10e6
	}
	registerConsumerMetrics()

	c := &Consumer{
		cfg:      cfg,
		log:      l.With(logger.String("component", "kafka-consumer")),
		handlers: make(map[string]MessageHandler),
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.DLQTopic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		}
	}
	return c, nil
}

// Register adds a handler. Call before Start.
func (c *Consumer) Register(h MessageHandler) {
	if _, dup := c.handlers[h.Topic()]; dup {
		c.log.Warn("handler already registered", logger.String("topic", h.Topic()))
		return
	}
	c.handlers[h.Topic()] = h
}

func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return errors.New("kafka consumer: no handlers registered")
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.deliveries = make(chan delivery, c.cfg.BufferSize)

	for i := 0; i < c.cfg.Workers; i++ {
		c.workWG.Add(1)
		go c.work()
	}
	for topic := range c.handlers {
		r := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  c.cfg.Brokers,
			GroupID:  c.cfg.GroupID,
			Topic:    topic,
			MinBytes: c.cfg.MinBytes,
			MaxBytes: c.cfg.MaxBytes,
		})
		c.readers = append(c.readers, r)
		c.readWG.Add(1)
		go c.read(r)
		c.log.Info("kafka topic subscribed",
			logger.String("topic", topic),
			logger.String("group_id", c.cfg.GroupID))
	}
	return nil
}

// Stop stops fetching, lets workers drain what was already fetched and
// closes the readers. It returns early with an error if ctx ends first.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		if c.cancel == nil {
			return
		}
		c.cancel()
		c.readWG.Wait()
		close(c.deliveries)

		done := make(chan struct{})
		go func() {
			c.workWG.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = fmt.Errorf("kafka consumer stop: %w", ctx.Err())
		}

		for _, r := range c.readers {
			if cerr := r.Close(); cerr != nil {
				c.log.Warn("close reader", logger.String("topic", r.Config().Topic), logger.Error(cerr))
			}
		}
		if c.dlq != nil {
			_ = c.dlq.Close()
		}
		c.log.Info("kafka consumer stopped")
	})
	return err
}

func (c *Consumer) read(r *kafka.Reader) {
	defer c.readWG.Done()
	topic := r.Config().Topic
	for {
		msg, err := r.FetchMessage(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.log.Error("fetch message", logger.String("topic", topic), logger.Error(err))
			if !sleepCtx(c.ctx, c.cfg.BackoffMin) {
				return
			}
			continue
		}
		select {
		case c.deliveries <- delivery{reader: r, msg: msg}:
			consumerQueueDepth.WithLabelValues(topic).Set(float64(len(c.deliveries)))
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Consumer) work() {
	defer c.workWG.Done()
	for d := range c.deliveries {
		c.handle(d)
	}
}

func (c *Consumer) handle(d delivery) {
	topic := d.msg.Topic
	h := c.handlers[topic]
	start := time.Now()

	err := c.handleWithRetry(h, d.msg)
	result := "ok"
	if err != nil {
		result = "failed"
		c.log.Error("message handling failed",
			logger.String("topic", topic),
			logger.Int("partition", d.msg.Partition),
			logger.Int64("offset", d.msg.Offset),
			logger.Error(err))
		if c.dlq != nil {
			c.deadLetter(d.msg, err)
		}
	}
	consumerMessages.WithLabelValues(topic, result).Inc()
	consumerLatency.WithLabelValues(topic).Observe(time.Since(start).Seconds())

	// commit even on failure so one poison message cannot stall the partition
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.reader.CommitMessages(ctx, d.msg); err != nil {
		c.log.Warn("commit offset", logger.String("topic", topic), logger.Int64("offset", d.msg.Offset), logger.Error(err))
	}
}

func (c *Consumer) handleWithRetry(h MessageHandler, msg kafka.Message) (err error) {
	for attempt := 1; ; attempt++ {
		err = c.safeHandle(h, msg.Value)
		if err == nil || attempt > c.cfg.RetryMax {
			return err
		}
		c.log.Warn("message handling retry",
			logger.String("topic", msg.Topic),
			logger.Int("attempt", attempt),
			logger.Error(err))
		// retries continue during shutdown so fetched messages drain
		time.Sleep(backoff(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt))
	}
}

func (c *Consumer) safeHandle(h MessageHandler, value []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Handle(context.Background(), value)
}

func (c *Consumer) deadLetter(msg kafka.Message, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.dlq.WriteMessages(ctx, kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: []kafka.Header{
			{Key: "source_topic", Value: []byte(msg.Topic)},
			{Key: "error", Value: []byte(cause.Error())},
		},
	})
	if err != nil {
		c.log.Error("write dead letter", logger.String("topic", c.cfg.DLQTopic), logger.Error(err))
	}
}

// backoff is exponential from min, capped at max, with up to 50% jitter.
func backoff(min, max time.Duration, attempt int) time.Duration {
	d := min
	for i := 1; i < attempt && d < max; i++ {
		d *= 2
	}
	if d > max {
		d = max
	}
	if half := int64(d) / 2; half > 0 {
		d -= time.Duration(rand.Int63n(half))
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

var (
	consumerOnce       sync.Once
	consumerMessages   *prometheus.CounterVec
	consumerQueueDepth *prometheus.GaugeVec
	consumerLatency    *prometheus.HistogramVec
)

func registerConsumerMetrics() {
	consumerOnce.Do(func() {
		consumerMessages = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agricast",
			Subsystem: "kafka_consumer",
			Name:      "messages_total",
			Help:      "Messages consumed by result.",
		}, []string{"topic", "result"})
		consumerQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "agricast",
			Subsystem: "kafka_consumer",
			Name:      "queue_depth",
			Help:      "Fetched messages waiting for a worker.",
		}, []string{"topic"})
		consumerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agricast",
			Subsystem: "kafka_consumer",
			Name:      "handle_seconds",
			Help:      "Handling time per message, retries included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"topic"})
	})
}
