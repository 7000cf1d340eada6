package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"AgriCast/internal/domain/models"
	domrepo "AgriCast/internal/domain/repository"
	xhttp "AgriCast/pkg/http"
	applogger "AgriCast/pkg/logger"
)

// KafkaTrainingHandler creates training jobs from messages on the training
// requests topic. Malformed requests are logged and dropped; only storage or
// dispatch failures are returned for redelivery.
type KafkaTrainingHandler struct {
	topic   string
	orch    *Orchestrator
	metrics domrepo.Metrics
	log     *applogger.Logger
}

func NewKafkaTrainingHandler(topic string, orch *Orchestrator, m domrepo.Metrics, l *applogger.Logger) *KafkaTrainingHandler {
	return &KafkaTrainingHandler{
		topic:   topic,
		orch:    orch,
		metrics: metricsOrNop(m),
		log:     l.With(applogger.String("component", "kafka-training")),
	}
}

func (h *KafkaTrainingHandler) Topic() string { return h.topic }

func (h *KafkaTrainingHandler) Handle(ctx context.Context, b []byte) error {
	var req models.TrainingRequest
	if err := json.Unmarshal(b, &req); err != nil {
		h.metrics.RecordError("training_request_unmarshal")
		h.log.Warn("drop training request", applogger.String("reason", "malformed json"), applogger.Error(err))
		return nil
	}
	if verrs := xhttp.ValidateStruct(ctx, &req); len(verrs) > 0 {
		h.metrics.RecordError("training_request_invalid")
		h.log.Warn("drop training request",
			applogger.String("reason", "validation"),
			applogger.Any("errors", verrs))
		return nil
	}

	resp, err := h.orch.Create(ctx, &req)
	if err != nil {
		if IsValidation(err) {
			h.metrics.RecordError("training_request_invalid")
			h.log.Warn("drop training request", applogger.String("reason", "rejected"), applogger.Error(err))
			return nil
		}
		return fmt.Errorf("create training job: %w", err)
	}
	h.log.Info("training job created from kafka",
		applogger.String("job_id", resp.JobID),
		applogger.String("model_type", string(resp.ModelType)))
	return nil
}
