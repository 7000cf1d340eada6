package repository

import (
	"context"
	"errors"
	"time"

	"AgriCast/internal/domain/models"
)

var (
	ErrJobNotFound = errors.New("training job not found")
	ErrJobExists   = errors.New("training job already exists")
)

// JobStore is the shared training job table. Update applies fn to the stored
// record atomically; readers never observe a partially applied fn.
type JobStore interface {
	Insert(ctx context.Context, job *models.TrainingJob) error
	Get(ctx context.Context, id string) (*models.TrainingJob, error)
	Update(ctx context.Context, id string, fn func(job *models.TrainingJob) error) (*models.TrainingJob, error)
	List(ctx context.Context) ([]*models.TrainingJob, error)
}

// JobEventPublisher announces training job status transitions.
type JobEventPublisher interface {
	PublishJobEvent(ctx context.Context, event models.JobEvent) error
}

// PredictionRecord is one audited prediction.
type PredictionRecord struct {
	Kind       string
	Subject    string
	Value      float64
	Confidence float64
	Payload    interface{}
	CreatedAt  time.Time
}

// PredictionLog stores an audit trail of served predictions.
type PredictionLog interface {
	Record(ctx context.Context, rec PredictionRecord) error
}

// Metrics records domain-level counters and latencies.
type Metrics interface {
	RecordPrediction(model string, err error, seconds float64)
	RecordAnomalies(dataType string, flagged int)
	RecordJobTransition(modelType string, status string)
	RecordEpoch(modelType string)
	RecordError(kind string)
}
