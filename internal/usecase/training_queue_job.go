package usecase

import (
	"context"
	"errors"
	"fmt"

	applogger "AgriCast/pkg/logger"
	"AgriCast/pkg/queue"
)

// TrainingRunJob executes queued training runs on Redis queue workers.
type TrainingRunJob struct {
	orch *Orchestrator
	log  *applogger.Logger
}

func NewTrainingRunJob(orch *Orchestrator, l *applogger.Logger) *TrainingRunJob {
	return &TrainingRunJob{orch: orch, log: l}
}

var _ queue.Job = (*TrainingRunJob)(nil)

func (j *TrainingRunJob) Name() string { return "training-run" }
func (j *TrainingRunJob) Type() string { return TrainingRunMessage }

func (j *TrainingRunJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[TrainingRunPayload](payload)
	if err != nil {
		return fmt.Errorf("parse training payload: %w", err)
	}
	// Run records its own failures on the job, and a redelivered run is
	// rejected as an invalid transition, so nothing here is worth a retry.
	if err := j.orch.Run(ctx, p.JobID); err != nil {
		if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrJobNotFound) {
			j.log.Warn("training run skipped", applogger.String("job_id", p.JobID), applogger.Error(err))
		} else {
			j.log.Error("training run failed", applogger.String("job_id", p.JobID), applogger.Error(err))
		}
	}
	return nil
}
