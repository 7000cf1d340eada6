package models

import "time"

type ModelType string

const (
	ModelTypeYield   ModelType = "YIELD"
	ModelTypePrice   ModelType = "PRICE"
	ModelTypeAnomaly ModelType = "ANOMALY"
)

// Valid reports whether m names one of the three trainable models.
func (m ModelType) Valid() bool {
	switch m {
	case ModelTypeYield, ModelTypePrice, ModelTypeAnomaly:
		return true
	}
	return false
}

type JobStatus string

const (
	JobPending   JobStatus = "PENDING"
	JobTraining  JobStatus = "TRAINING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
)

// Terminal reports whether no further transition is allowed.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// CanTransition enforces PENDING -> TRAINING -> (COMPLETED | FAILED).
// A job may also fail before it starts training.
func (s JobStatus) CanTransition(to JobStatus) bool {
	switch s {
	case JobPending:
		return to == JobTraining || to == JobFailed
	case JobTraining:
		return to == JobCompleted || to == JobFailed
	}
	return false
}

type TrainingRequest struct {
	ModelType        ModelType              `json:"model_type" validate:"required,oneof=YIELD PRICE ANOMALY"`
	TrainingDataPath string                 `json:"training_data_path,omitempty"`
	ValidationSplit  *float64               `json:"validation_split" default:"0.2" validate:"required,gte=0.1,lte=0.3"`
	Hyperparameters  map[string]interface{} `json:"hyperparameters,omitempty"`
	SavePath         string                 `json:"save_path,omitempty"`
}

type TrainingResponse struct {
	JobID             string    `json:"job_id"`
	ModelType         ModelType `json:"model_type"`
	Status            JobStatus `json:"status"`
	Message           string    `json:"message"`
	EstimatedDuration int       `json:"estimated_duration"`
}

// TrainingJob is the full job snapshot returned by status queries.
type TrainingJob struct {
	JobID            string                 `json:"job_id"`
	ModelType        ModelType              `json:"model_type"`
	Status           JobStatus              `json:"status"`
	Progress         float64                `json:"progress"`
	CurrentEpoch     *int                   `json:"current_epoch,omitempty"`
	TotalEpochs      *int                   `json:"total_epochs,omitempty"`
	Metrics          map[string]float64     `json:"metrics,omitempty"`
	Hyperparameters  map[string]interface{} `json:"hyperparameters,omitempty"`
	TrainingDataPath string                 `json:"training_data_path,omitempty"`
	ValidationSplit  float64                `json:"validation_split,omitempty"`
	SavePath         string                 `json:"save_path,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	StartedAt        *time.Time             `json:"started_at,omitempty"`
	CompletedAt      *time.Time             `json:"completed_at,omitempty"`
	ErrorMessage     string                 `json:"error_message,omitempty"`
}

// Clone returns a deep copy so snapshots never alias the stored record.
func (j *TrainingJob) Clone() *TrainingJob {
	if j == nil {
		return nil
	}
	c := *j
	if j.CurrentEpoch != nil {
		v := *j.CurrentEpoch
		c.CurrentEpoch = &v
	}
	if j.TotalEpochs != nil {
		v := *j.TotalEpochs
		c.TotalEpochs = &v
	}
	if j.StartedAt != nil {
		v := *j.StartedAt
		c.StartedAt = &v
	}
	if j.CompletedAt != nil {
		v := *j.CompletedAt
		c.CompletedAt = &v
	}
	if j.Metrics != nil {
		c.Metrics = make(map[string]float64, len(j.Metrics))
		for k, v := range j.Metrics {
			c.Metrics[k] = v
		}
	}
	if j.Hyperparameters != nil {
		c.Hyperparameters = make(map[string]interface{}, len(j.Hyperparameters))
		for k, v := range j.Hyperparameters {
			c.Hyperparameters[k] = v
		}
	}
	return &c
}

type TrainingJobSummary struct {
	JobID     string    `json:"job_id"`
	ModelType ModelType `json:"model_type"`
	Status    JobStatus `json:"status"`
	Progress  float64   `json:"progress"`
}

type TrainingJobList struct {
	TotalJobs int                  `json:"total_jobs"`
	Jobs      []TrainingJobSummary `json:"jobs"`
}

// JobEvent is published on every job status transition.
type JobEvent struct {
	JobID      string    `json:"job_id"`
	ModelType  ModelType `json:"model_type"`
	Status     JobStatus `json:"status"`
	Progress   float64   `json:"progress"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
