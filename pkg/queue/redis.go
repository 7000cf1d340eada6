package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"AgriCast/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrNotRunning   = errors.New("queue not running")
	ErrUnknownType  = errors.New("no job registered for message type")
	errAlreadyStart = errors.New("queue already running")
)

const (
	pollTimeout     = time.Second
	promoteInterval = time.Second
	promoteBatch    = 100
)

// promoteScript moves due retries back onto the ready list atomically, so
// concurrent replicas never promote the same message twice.
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for _, m in ipairs(due) do
	redis.call('ZREM', KEYS[1], m)
	redis.call('LPUSH', KEYS[2], m)
end
return #due
`)

// RedisQueue is a reliable-enough work queue on a Redis list. Failed
// messages wait in a sorted set with exponential backoff and end up in a
// dead-letter list after RetryLimit attempts.
type RedisQueue struct {
	log    *logger.Logger
	cfg    Config
	client *redis.Client
	jobs   map[string]Job

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	// cancels in-flight handlers once Stop gives up waiting
	handlerCtx    context.Context
	cancelHandler context.CancelFunc
}

func NewRedisQueue(l *logger.Logger, cfg Config, client *redis.Client, jobs ...Job) *RedisQueue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 10 * time.Second
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "agricast:queue"
	}
	q := &RedisQueue{
		log:    l.With(logger.String("component", "queue")),
		cfg:    cfg,
		client: client,
		jobs:   make(map[string]Job, len(jobs)),
	}
	for _, j := range jobs {
		q.Register(j)
	}
	return q
}

// Register routes a message type to j. Call before Start.
func (q *RedisQueue) Register(j Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, dup := q.jobs[j.Type()]; dup {
		q.log.Warn("job already registered", logger.String("job", j.Name()))
		return
	}
	q.jobs[j.Type()] = j
	q.log.Info("job registered", logger.String("job", j.Name()), logger.String("type", j.Type()))
}

func (q *RedisQueue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return errAlreadyStart
	}
	if err := q.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	q.stopCh = make(chan struct{})
	q.handlerCtx, q.cancelHandler = context.WithCancel(context.Background())
	q.running = true

	if len(q.jobs) > 0 {
		for i := 0; i < q.cfg.Workers; i++ {
			q.wg.Add(1)
			go q.worker(i)
		}
		q.wg.Add(1)
		go q.promoter()
	}
	q.log.Info("redis queue started",
		logger.Int("workers", q.cfg.Workers),
		logger.Int("jobs", len(q.jobs)),
		logger.String("key_prefix", q.cfg.KeyPrefix))
	return nil
}

// Stop lets workers finish the message in hand. If ctx ends first the
// handlers are cancelled and Stop still waits for them to return.
func (q *RedisQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	close(q.stopCh)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancelHandler()
		q.log.Info("redis queue stopped")
		return nil
	case <-ctx.Done():
		q.cancelHandler()
		<-done
		q.log.Warn("redis queue stopped with cancelled handlers", logger.Error(ctx.Err()))
		return fmt.Errorf("queue stop: %w", ctx.Err())
	}
}

// Enqueue pushes a message of msgType. When jobs are registered locally the
// type must be one of them.
func (q *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	q.mu.RLock()
	running, known := q.running, len(q.jobs) == 0
	if !known {
		_, known = q.jobs[msgType]
	}
	q.mu.RUnlock()

	if !running {
		return ErrNotRunning
	}
	if !known {
		return fmt.Errorf("%w: %s", ErrUnknownType, msgType)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	msg, err := json.Marshal(Message{
		ID:         uuid.NewString(),
		Type:       msgType,
		Payload:    body,
		EnqueuedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := q.client.LPush(ctx, q.readyKey(), msg).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	return nil
}

func (q *RedisQueue) worker(id int) {
	defer q.wg.Done()
	for {
		select {
		case <-q.stopCh:
			return
		default:
		}

		res, err := q.client.BRPop(q.handlerCtx, pollTimeout, q.readyKey()).Result()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			if q.handlerCtx.Err() != nil {
				return
			}
			q.log.Error("brpop", logger.Int("worker_id", id), logger.Error(err))
			q.sleep(pollTimeout)
			continue
		}

		var msg Message
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			q.log.Error("drop undecodable message", logger.Error(err))
			continue
		}
		q.process(msg)
	}
}

func (q *RedisQueue) process(msg Message) {
	q.mu.RLock()
	job, ok := q.jobs[msg.Type]
	q.mu.RUnlock()
	if !ok {
		q.log.Error("no job for message", logger.String("type", msg.Type), logger.String("id", msg.ID))
		q.deadLetter(msg)
		return
	}

	start := time.Now()
	err := job.Handle(q.handlerCtx, msg.Payload)
	if err == nil {
		q.log.Debug("message processed",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Duration("elapsed_ms", time.Since(start)))
		return
	}

	msg.Attempts++
	msg.LastError = err.Error()
	if msg.Attempts > q.cfg.RetryLimit {
		q.log.Error("message exhausted retries",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Int("attempts", msg.Attempts),
			logger.Error(err))
		q.deadLetter(msg)
		return
	}

	at := time.Now().Add(q.cfg.backoff(msg.Attempts))
	q.log.Warn("message failed, retry scheduled",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts),
		logger.String("retry_at", at.Format(time.RFC3339)),
		logger.Error(err))
	q.schedule(msg, at)
}

func (q *RedisQueue) schedule(msg Message, at time.Time) {
	data, err := json.Marshal(msg)
	if err != nil {
		q.log.Error("encode retry", logger.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.client.ZAdd(ctx, q.retryKey(), redis.Z{Score: float64(at.Unix()), Member: data}).Err(); err != nil {
		q.log.Error("zadd retry", logger.String("id", msg.ID), logger.Error(err))
	}
}

func (q *RedisQueue) deadLetter(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		q.log.Error("encode dead letter", logger.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.client.LPush(ctx, q.deadKey(), data).Err(); err != nil {
		q.log.Error("lpush dead letter", logger.String("id", msg.ID), logger.Error(err))
	}
}

func (q *RedisQueue) promoter() {
	defer q.wg.Done()
	t := time.NewTicker(promoteInterval)
	defer t.Stop()
	for {
		select {
		case <-q.stopCh:
			return
		case <-t.C:
			now := strconv.FormatInt(time.Now().Unix(), 10)
			n, err := promoteScript.Run(q.handlerCtx, q.client,
				[]string{q.retryKey(), q.readyKey()}, now, promoteBatch).Int()
			if err != nil {
				if q.handlerCtx.Err() == nil {
					q.log.Error("promote retries", logger.Error(err))
				}
				continue
			}
			if n > 0 {
				q.log.Debug("retries promoted", logger.Int("count", n))
			}
		}
	}
}

func (q *RedisQueue) sleep(d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-q.stopCh:
	case <-t.C:
	}
}

func (q *RedisQueue) readyKey() string { return q.cfg.KeyPrefix + ":ready" }
func (q *RedisQueue) retryKey() string { return q.cfg.KeyPrefix + ":retry" }
func (q *RedisQueue) deadKey() string  { return q.cfg.KeyPrefix + ":dead" }
