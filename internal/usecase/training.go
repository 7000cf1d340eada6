package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"AgriCast/internal/domain/models"
	domrepo "AgriCast/internal/domain/repository"
	applogger "AgriCast/pkg/logger"

	"github.com/google/uuid"
)

// ErrInvalidTransition is returned when a job is asked to leave a state it
// cannot leave, e.g. a second run of an already finished job.
var ErrInvalidTransition = errors.New("invalid job transition")

// EpochSimulator performs one epoch of a training run and reports its
// metrics. epoch is zero-based.
type EpochSimulator interface {
	RunEpoch(ctx context.Context, modelType models.ModelType, epoch, total int) (map[string]float64, error)
}

// DecayingLossSimulator stands in for real training: it waits Delay per
// epoch and reports an exponentially decaying loss curve.
type DecayingLossSimulator struct {
	Delay time.Duration
}

func (s DecayingLossSimulator) RunEpoch(ctx context.Context, _ models.ModelType, epoch, _ int) (map[string]float64, error) {
	if s.Delay > 0 {
		t := time.NewTimer(s.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	decay := math.Exp(-float64(epoch) / 20)
	return map[string]float64{
		"loss":     0.5 * decay,
		"val_loss": 0.6 * decay,
	}, nil
}

func finalMetrics() map[string]float64 {
	return map[string]float64{
		"final_loss":     0.05,
		"final_val_loss": 0.07,
		"mae":            0.03,
	}
}

// Dispatcher schedules the detached run of a freshly created job. It must
// not block on the run itself.
type Dispatcher func(ctx context.Context, jobID string) error

// TaskQueue is the subset of the Redis queue the orchestrator dispatches to.
type TaskQueue interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) error
}

// TrainingRunMessage is the queue message type of a training run.
const TrainingRunMessage = "training.run"

// TrainingRunPayload is the queue payload of a training run.
type TrainingRunPayload struct {
	JobID string `json:"job_id"`
}

// QueueDispatcher hands runs to queue workers instead of local goroutines.
func QueueDispatcher(q TaskQueue) Dispatcher {
	return func(ctx context.Context, jobID string) error {
		return q.Enqueue(ctx, TrainingRunMessage, TrainingRunPayload{JobID: jobID})
	}
}

type TrainingOptions struct {
	DefaultEpochs     int
	MaxEpochs         int
	EstimatedDuration int // seconds, reported on creation
}

// Orchestrator owns the training job state machine:
// PENDING -> TRAINING -> COMPLETED | FAILED.
type Orchestrator struct {
	store    domrepo.JobStore
	events   domrepo.JobEventPublisher
	metrics  domrepo.Metrics
	sim      EpochSimulator
	opts     TrainingOptions
	log      *applogger.Logger
	dispatch Dispatcher

	now   func() time.Time
	newID func() string
	wg    sync.WaitGroup
}

// NewOrchestrator builds an orchestrator that runs jobs on local goroutines.
// events may be nil.
func NewOrchestrator(
	store domrepo.JobStore,
	events domrepo.JobEventPublisher,
	m domrepo.Metrics,
	sim EpochSimulator,
	opts TrainingOptions,
	l *applogger.Logger,
) *Orchestrator {
	if opts.DefaultEpochs <= 0 {
		opts.DefaultEpochs = 100
	}
	if opts.MaxEpochs < opts.DefaultEpochs {
		opts.MaxEpochs = opts.DefaultEpochs
	}
	if opts.EstimatedDuration <= 0 {
		opts.EstimatedDuration = 600
	}
	o := &Orchestrator{
		store:   store,
		events:  events,
		metrics: metricsOrNop(m),
		sim:     sim,
		opts:    opts,
		log:     l.With(applogger.String("component", "training")),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	o.dispatch = o.goDispatch
	return o
}

// SetDispatcher replaces the default goroutine dispatcher.
func (o *Orchestrator) SetDispatcher(d Dispatcher) {
	if d != nil {
		o.dispatch = d
	}
}

func (o *Orchestrator) goDispatch(ctx context.Context, jobID string) error {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		// the run outlives the request that created it
		_ = o.Run(context.WithoutCancel(ctx), jobID)
	}()
	return nil
}

// Wait blocks until every locally dispatched run has finished or ctx ends.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Create validates req, stores a PENDING job and dispatches its run. It
// returns as soon as the job is stored.
func (o *Orchestrator) Create(ctx context.Context, req *models.TrainingRequest) (*models.TrainingResponse, error) {
	if !req.ModelType.Valid() {
		return nil, fmt.Errorf("%w: %q, must be YIELD, PRICE or ANOMALY", ErrInvalidModelType, req.ModelType)
	}
	if _, err := o.epochs(req.Hyperparameters); err != nil {
		return nil, err
	}
	split := 0.2
	if req.ValidationSplit != nil {
		split = *req.ValidationSplit
	}
	if split < 0.1 || split > 0.3 {
		return nil, fmt.Errorf("%w: validation_split must be within [0.1, 0.3]", ErrInvalidRequest)
	}

	job := &models.TrainingJob{
		JobID:            o.newID(),
		ModelType:        req.ModelType,
		Status:           models.JobPending,
		Hyperparameters:  req.Hyperparameters,
		TrainingDataPath: req.TrainingDataPath,
		ValidationSplit:  split,
		SavePath:         req.SavePath,
		CreatedAt:        o.now().UTC(),
	}
	if err := o.store.Insert(ctx, job); err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	o.metrics.RecordJobTransition(string(job.ModelType), string(job.Status))
	o.publish(ctx, job)
	o.log.Info("training job created",
		applogger.String("job_id", job.JobID),
		applogger.String("model_type", string(job.ModelType)))

	if err := o.dispatch(ctx, job.JobID); err != nil {
		o.fail(context.WithoutCancel(ctx), job.JobID, fmt.Errorf("dispatch: %w", err))
		return nil, fmt.Errorf("dispatch job %s: %w", job.JobID, err)
	}

	return &models.TrainingResponse{
		JobID:             job.JobID,
		ModelType:         job.ModelType,
		Status:            models.JobPending,
		Message:           fmt.Sprintf("Training job created. Use GET /training/%s to check status.", job.JobID),
		EstimatedDuration: o.opts.EstimatedDuration,
	}, nil
}

func (o *Orchestrator) Get(ctx context.Context, jobID string) (*models.TrainingJob, error) {
	return o.store.Get(ctx, jobID)
}

// List summarizes every job in creation order.
func (o *Orchestrator) List(ctx context.Context) (*models.TrainingJobList, error) {
	jobs, err := o.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := &models.TrainingJobList{TotalJobs: len(jobs), Jobs: make([]models.TrainingJobSummary, 0, len(jobs))}
	for _, j := range jobs {
		out.Jobs = append(out.Jobs, models.TrainingJobSummary{
			JobID:     j.JobID,
			ModelType: j.ModelType,
			Status:    j.Status,
			Progress:  j.Progress,
		})
	}
	return out, nil
}

// Run drives one job from PENDING to a terminal state. Simulator errors and
// panics end the job in FAILED; they are returned but never reach the caller
// that created the job.
func (o *Orchestrator) Run(ctx context.Context, jobID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("training panicked: %v", r)
			o.fail(context.WithoutCancel(ctx), jobID, err)
		}
	}()

	job, err := o.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	total, err := o.epochs(job.Hyperparameters)
	if err != nil {
		o.fail(ctx, jobID, err)
		return err
	}

	started := o.now().UTC()
	if _, err := o.transition(ctx, jobID, models.JobTraining, func(j *models.TrainingJob) {
		zero, t := 0, total
		j.StartedAt = &started
		j.CurrentEpoch = &zero
		j.TotalEpochs = &t
	}); err != nil {
		return err
	}

	mt := job.ModelType
	for epoch := 0; epoch < total; epoch++ {
		m, err := o.sim.RunEpoch(ctx, mt, epoch, total)
		if err != nil {
			err = fmt.Errorf("epoch %d: %w", epoch+1, err)
			o.fail(context.WithoutCancel(ctx), jobID, err)
			return err
		}
		cur := epoch + 1
		progress := float64(cur) / float64(total)
		if _, err := o.store.Update(ctx, jobID, func(j *models.TrainingJob) error {
			if j.Status != models.JobTraining {
				return fmt.Errorf("%w: job is %s", ErrInvalidTransition, j.Status)
			}
			j.CurrentEpoch = &cur
			j.Progress = math.Max(j.Progress, progress)
			j.Metrics = m
			return nil
		}); err != nil {
			err = fmt.Errorf("epoch %d: %w", cur, err)
			o.fail(context.WithoutCancel(ctx), jobID, err)
			return err
		}
		o.metrics.RecordEpoch(string(mt))
	}

	completed := o.now().UTC()
	_, err = o.transition(ctx, jobID, models.JobCompleted, func(j *models.TrainingJob) {
		j.Progress = 1.0
		j.Metrics = finalMetrics()
		j.CompletedAt = &completed
	})
	return err
}

func (o *Orchestrator) fail(ctx context.Context, jobID string, cause error) {
	completed := o.now().UTC()
	_, err := o.transition(ctx, jobID, models.JobFailed, func(j *models.TrainingJob) {
		j.ErrorMessage = cause.Error()
		j.CompletedAt = &completed
	})
	if err != nil {
		o.log.Error("mark job failed", applogger.String("job_id", jobID), applogger.Error(err))
	}
}

func (o *Orchestrator) transition(ctx context.Context, jobID string, to models.JobStatus, mutate func(*models.TrainingJob)) (*models.TrainingJob, error) {
	var from models.JobStatus
	updated, err := o.store.Update(ctx, jobID, func(j *models.TrainingJob) error {
		if !j.Status.CanTransition(to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, to)
		}
		from = j.Status
		j.Status = to
		if mutate != nil {
			mutate(j)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.metrics.RecordJobTransition(string(updated.ModelType), string(to))
	fields := []applogger.Field{
		applogger.String("job_id", jobID),
		applogger.String("model_type", string(updated.ModelType)),
		applogger.String("from", string(from)),
		applogger.String("to", string(to)),
	}
	if to == models.JobFailed {
		o.log.Error("training job failed", append(fields, applogger.String("error", updated.ErrorMessage))...)
	} else {
		o.log.Info("training job transition", fields...)
	}
	o.publish(ctx, updated)
	return updated, nil
}

func (o *Orchestrator) publish(ctx context.Context, job *models.TrainingJob) {
	if o.events == nil {
		return
	}
	ev := models.JobEvent{
		JobID:      job.JobID,
		ModelType:  job.ModelType,
		Status:     job.Status,
		Progress:   job.Progress,
		Error:      job.ErrorMessage,
		OccurredAt: o.now().UTC(),
	}
	if err := o.events.PublishJobEvent(ctx, ev); err != nil {
		o.log.Warn("publish job event",
			applogger.String("job_id", job.JobID),
			applogger.String("status", string(job.Status)),
			applogger.Error(err))
	}
}

// epochs reads hyperparameters["epochs"], falling back to the default.
func (o *Orchestrator) epochs(hp map[string]interface{}) (int, error) {
	raw, ok := hp["epochs"]
	if !ok || raw == nil {
		return o.opts.DefaultEpochs, nil
	}
	var n float64
	switch v := raw.(type) {
	case int:
		n = float64(v)
	case int64:
		n = float64(v)
	case float64:
		n = v
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: epochs %q is not a number", ErrInvalidHyperparameters, v)
		}
		n = f
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: epochs %q is not a number", ErrInvalidHyperparameters, v)
		}
		n = f
	default:
		return 0, fmt.Errorf("%w: epochs has type %T", ErrInvalidHyperparameters, raw)
	}
	if n != math.Trunc(n) || n < 1 || n > float64(o.opts.MaxEpochs) {
		return 0, fmt.Errorf("%w: epochs must be an integer in [1, %d], got %v",
			ErrInvalidHyperparameters, o.opts.MaxEpochs, raw)
	}
	return int(n), nil
}
