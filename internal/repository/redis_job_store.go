package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"AgriCast/internal/domain/models"
	domrepo "AgriCast/internal/domain/repository"

	"github.com/redis/go-redis/v9"
)

const maxUpdateAttempts = 16

// RedisJobStore keeps training jobs in Redis so that queue workers on other
// processes can drive them. Each job is one JSON string; a list keeps the
// creation order.
type RedisJobStore struct {
	client *redis.Client
	prefix string
}

func NewRedisJobStore(client *redis.Client, prefix string) *RedisJobStore {
	if prefix == "" {
		prefix = "agricast"
	}
	return &RedisJobStore{client: client, prefix: prefix}
}

var _ domrepo.JobStore = (*RedisJobStore)(nil)

func (s *RedisJobStore) jobKey(id string) string { return s.prefix + ":training:job:" + id }
func (s *RedisJobStore) orderKey() string        { return s.prefix + ":training:jobs" }

func (s *RedisJobStore) Insert(ctx context.Context, job *models.TrainingJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	ok, err := s.client.SetNX(ctx, s.jobKey(job.JobID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("setnx job: %w", err)
	}
	if !ok {
		return domrepo.ErrJobExists
	}
	if err := s.client.RPush(ctx, s.orderKey(), job.JobID).Err(); err != nil {
		return fmt.Errorf("rpush job order: %w", err)
	}
	return nil
}

func (s *RedisJobStore) Get(ctx context.Context, id string) (*models.TrainingJob, error) {
	b, err := s.client.Get(ctx, s.jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domrepo.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	var j models.TrainingJob
	if err := json.Unmarshal(b, &j); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", id, err)
	}
	return &j, nil
}

// Update is an optimistic WATCH/MULTI transaction, retried on contention.
func (s *RedisJobStore) Update(ctx context.Context, id string, fn func(*models.TrainingJob) error) (*models.TrainingJob, error) {
	key := s.jobKey(id)
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		var out *models.TrainingJob
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			b, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return domrepo.ErrJobNotFound
			}
			if err != nil {
				return fmt.Errorf("get job: %w", err)
			}
			var j models.TrainingJob
			if err := json.Unmarshal(b, &j); err != nil {
				return fmt.Errorf("unmarshal job %s: %w", id, err)
			}
			if err := fn(&j); err != nil {
				return err
			}
			data, err := json.Marshal(&j)
			if err != nil {
				return fmt.Errorf("marshal job: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				p.Set(ctx, key, data, 0)
				return nil
			})
			if err == nil {
				out = &j
			}
			return err
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("update job %s: gave up after %d conflicting writes", id, maxUpdateAttempts)
}

func (s *RedisJobStore) List(ctx context.Context) ([]*models.TrainingJob, error) {
	ids, err := s.client.LRange(ctx, s.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange job order: %w", err)
	}
	if len(ids) == 0 {
		return []*models.TrainingJob{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.jobKey(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget jobs: %w", err)
	}
	out := make([]*models.TrainingJob, 0, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var j models.TrainingJob
		if err := json.Unmarshal([]byte(str), &j); err != nil {
			return nil, fmt.Errorf("unmarshal job %s: %w", ids[i], err)
		}
		out = append(out, &j)
	}
	return out, nil
}
