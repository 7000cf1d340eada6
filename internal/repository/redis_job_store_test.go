package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"AgriCast/internal/domain/models"
	domrepo "AgriCast/internal/domain/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisJobStore(t *testing.T) (*RedisJobStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisJobStore(rdb, "test"), mr
}

func TestRedisJobStoreInsertAndGet(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedisJobStore(t)

	job := &models.TrainingJob{JobID: "a", ModelType: models.ModelTypePrice, Status: models.JobPending, ValidationSplit: 0.2}
	require.NoError(t, s.Insert(ctx, job))
	assert.ErrorIs(t, s.Insert(ctx, &models.TrainingJob{JobID: "a"}), domrepo.ErrJobExists)

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, models.ModelTypePrice, got.ModelType)
	assert.Equal(t, models.JobPending, got.Status)
	assert.Equal(t, 0.2, got.ValidationSplit)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, domrepo.ErrJobNotFound)

	_, err = s.Update(ctx, "missing", func(*models.TrainingJob) error { return nil })
	assert.ErrorIs(t, err, domrepo.ErrJobNotFound)

	jobs, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, jobs, 1, "a rejected duplicate is not indexed twice")
}

func TestRedisJobStoreFailedUpdateLeavesRecordUntouched(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedisJobStore(t)
	require.NoError(t, s.Insert(ctx, &models.TrainingJob{JobID: "a", Status: models.JobPending}))

	rejected := errors.New("rejected")
	_, err := s.Update(ctx, "a", func(j *models.TrainingJob) error {
		j.Status = models.JobFailed
		j.Progress = 0.9
		return rejected
	})
	assert.ErrorIs(t, err, rejected)

	j, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, models.JobPending, j.Status)
	assert.Zero(t, j.Progress)
}

func TestRedisJobStoreConcurrentUpdatesLoseNothing(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedisJobStore(t)
	require.NoError(t, s.Insert(ctx, &models.TrainingJob{JobID: "a", Status: models.JobTraining}))

	const workers, steps = 4, 5
	var wg sync.WaitGroup
	errs := make(chan error, workers*steps)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen := -1
			for i := 0; i < steps; i++ {
				_, err := s.Update(ctx, "a", func(j *models.TrainingJob) error {
					epoch := 0
					if j.CurrentEpoch != nil {
						epoch = *j.CurrentEpoch
					}
					if epoch < seen {
						return errors.New("epoch went backwards")
					}
					seen = epoch
					epoch++
					j.CurrentEpoch = &epoch
					j.Progress = float64(epoch) / (workers * steps)
					return nil
				})
				if err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	j, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, j.CurrentEpoch)
	assert.Equal(t, workers*steps, *j.CurrentEpoch)
	assert.Equal(t, 1.0, j.Progress)
}

func TestRedisJobStoreListKeepsCreationOrder(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisJobStore(t)

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, s.Insert(ctx, &models.TrainingJob{JobID: id, Status: models.JobPending}))
	}
	jobs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, "c", jobs[0].JobID)
	assert.Equal(t, "a", jobs[1].JobID)
	assert.Equal(t, "b", jobs[2].JobID)

	// an indexed id whose record has expired is skipped
	mr.Del("test:training:job:a")
	jobs, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "c", jobs[0].JobID)
	assert.Equal(t, "b", jobs[1].JobID)
}

func TestRedisJobStoreEmptyList(t *testing.T) {
	s, _ := newRedisJobStore(t)
	jobs, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.NotNil(t, jobs)
}
