package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounts(t *testing.T) {
	r := NewWithRegisterer(prometheus.NewRegistry())

	r.RecordPrediction("price", nil, 0.01)
	r.RecordPrediction("price", errors.New("boom"), 0.02)
	r.RecordAnomalies("SOIL", 3)
	r.RecordJobTransition("PRICE", "COMPLETED")
	r.RecordEpoch("PRICE")
	r.RecordEpoch("PRICE")
	r.RecordBreakerState("yield_predictor", true)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.predictions.WithLabelValues("price", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.predictions.WithLabelValues("price", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.anomalies.WithLabelValues("SOIL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.jobs.WithLabelValues("PRICE", "COMPLETED")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.epochs.WithLabelValues("PRICE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.breakerState.WithLabelValues("yield_predictor")))
}
