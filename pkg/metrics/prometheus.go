package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	predictions  *prometheus.CounterVec
	inference    *prometheus.HistogramVec
	anomalies    *prometheus.CounterVec
	jobs         *prometheus.CounterVec
	epochs       *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	breakerState *prometheus.GaugeVec
}

// New registers the recorder on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the recorder on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		predictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agricast_predictions_total",
				Help: "Total number of predictions served, by model and result",
			},
			[]string{"model", "result"},
		),
		inference: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agricast_inference_duration_seconds",
				Help:    "End-to-end duration of a prediction, preprocessing included",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model"},
		),
		anomalies: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agricast_anomalies_flagged_total",
				Help: "Total number of flagged anomalies, by data type",
			},
			[]string{"data_type"},
		),
		jobs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agricast_training_jobs_total",
				Help: "Training job state transitions, by model type and entered status",
			},
			[]string{"model_type", "status"},
		),
		epochs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agricast_training_epochs_total",
				Help: "Total number of completed training epochs",
			},
			[]string{"model_type"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agricast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		breakerState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "agricast_model_breaker_open",
				Help: "1 while the circuit breaker of a remote model is open",
			},
			[]string{"model"},
		),
	}
}

// RecordPrediction counts one prediction and observes its latency.
func (r *Recorder) RecordPrediction(model string, err error, seconds float64) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.predictions.WithLabelValues(model, result).Inc()
	r.inference.WithLabelValues(model).Observe(seconds)
}

func (r *Recorder) RecordAnomalies(dataType string, flagged int) {
	r.anomalies.WithLabelValues(dataType).Add(float64(flagged))
}

func (r *Recorder) RecordJobTransition(modelType, status string) {
	r.jobs.WithLabelValues(modelType, status).Inc()
}

func (r *Recorder) RecordEpoch(modelType string) {
	r.epochs.WithLabelValues(modelType).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordBreakerState tracks remote model availability.
func (r *Recorder) RecordBreakerState(model string, open bool) {
	v := 0.0
	if open {
		v = 1
	}
	r.breakerState.WithLabelValues(model).Set(v)
}
