package usecase

import (
	"context"
	"testing"
	"time"

	"AgriCast/internal/domain/models"
	domsvc "AgriCast/internal/domain/service"
	"AgriCast/internal/services/analytics"
	applogger "AgriCast/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(values ...float64) []models.TimeSeriesPoint {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.TimeSeriesPoint, len(values))
	for i, v := range values {
		out[i] = models.TimeSeriesPoint{Timestamp: models.Timestamp{Time: start.AddDate(0, 0, i)}, Value: v}
	}
	return out
}

func constant(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func newAnomalyEngine(s domsvc.AnomalyScorer) *AnomalyEngine {
	return NewAnomalyEngine(anomalySource{h: &domsvc.AnomalyHandle{Predictor: s}}, nil, applogger.Nop())
}

func TestDetectConstantSeriesIsHealthy(t *testing.T) {
	e := newAnomalyEngine(analytics.DefaultAnomalyModel(0.1))

	res, err := e.Detect(context.Background(), &models.AnomalyDetectionRequest{
		FarmID:      "farm-1",
		DataType:    models.DataTypeYield,
		TimeSeries:  series(constant(50, 10)...),
		Sensitivity: fptr(0.5),
	})
	require.NoError(t, err)
	assert.Zero(t, res.AnomaliesDetected)
	assert.Empty(t, res.Anomalies)
	assert.InDelta(t, 1.0, res.OverallHealthScore, 1e-9)
}

func TestDetectColdStartCriticalPoint(t *testing.T) {
	e := newAnomalyEngine(fixedScorer{scores: rawScores(0, 1, 1, 1, 1, 1, 1, 1, 1, 1)})

	res, err := e.Detect(context.Background(), &models.AnomalyDetectionRequest{
		FarmID:      "farm-1",
		DataType:    models.DataTypeSoil,
		TimeSeries:  series(constant(10, 10)...),
		Sensitivity: fptr(0.5),
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.AnomaliesDetected)

	a := res.Anomalies[0]
	assert.Equal(t, models.SeverityCritical, a.Severity)
	assert.InDelta(t, 1.0, a.AnomalyScore, 1e-6)
	assert.Equal(t, "Unusual value in the initial period. Anomaly score: 1.00.", a.Explanation)
	assert.Equal(t, []string{
		"Critical anomaly detected. Investigate immediately.",
		"Dispatch the technical team for a field inspection.",
		"Run a detailed soil analysis.",
	}, a.Recommendations)
	assert.InDelta(t, 1-0.1-0.15, res.OverallHealthScore, 1e-9)
}

func TestDetectExplainsDeviationFromRecentMean(t *testing.T) {
	values := constant(10, 10)
	values[8] = 20
	e := newAnomalyEngine(fixedScorer{scores: rawScores(1, 1, 1, 1, 1, 1, 1, 1, 0, 1)})

	res, err := e.Detect(context.Background(), &models.AnomalyDetectionRequest{
		FarmID:     "farm-1",
		DataType:   models.DataTypeClimate,
		TimeSeries: series(values...),
	})
	require.NoError(t, err)
	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, 20.0, res.Anomalies[0].Value)
	assert.Equal(t, "Value 100.0% above the recent average. Anomaly score: 1.00.", res.Anomalies[0].Explanation)
	assert.Equal(t, "Correlate with extreme weather events.", res.Anomalies[0].Recommendations[2])
}

func TestDetectModelOutlierIsAlwaysFlagged(t *testing.T) {
	scores := rawScores(1, 1, 1, 1, 1, 1, 1, 1, 1, 0.5)
	scores[2].Outlier = true
	e := newAnomalyEngine(fixedScorer{scores: scores})

	res, err := e.Detect(context.Background(), &models.AnomalyDetectionRequest{
		FarmID:      "farm-1",
		DataType:    models.DataTypeHealth,
		TimeSeries:  series(constant(5, 10)...),
		Sensitivity: fptr(0),
	})
	require.NoError(t, err)
	require.Len(t, res.Anomalies, 2)
	assert.Equal(t, models.SeverityLow, res.Anomalies[0].Severity)
	assert.Equal(t, []string{"Inspect for pests or diseases."}, res.Anomalies[0].Recommendations)
}

func TestDetectMissingTimestampUsesDetectionTime(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	e := newAnomalyEngine(fixedScorer{scores: rawScores(0, 1, 1, 1, 1, 1, 1, 1, 1, 1)})
	e.now = func() time.Time { return now }

	points := series(constant(1, 10)...)
	points[0].Timestamp = models.Timestamp{}
	res, err := e.Detect(context.Background(), &models.AnomalyDetectionRequest{
		FarmID: "farm-1", DataType: models.DataTypeYield, TimeSeries: points,
	})
	require.NoError(t, err)
	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, now, res.Anomalies[0].Timestamp)
	assert.Equal(t, now, res.DetectedAt)
}

func TestDetectHealthNeverNegative(t *testing.T) {
	scores := rawScores(constant(0, 10)...)
	for i := range scores {
		scores[i].Outlier = true
	}
	e := newAnomalyEngine(fixedScorer{scores: scores})

	res, err := e.Detect(context.Background(), &models.AnomalyDetectionRequest{
		FarmID: "farm-1", DataType: models.DataTypeYield, TimeSeries: series(constant(1, 10)...),
	})
	require.NoError(t, err)
	assert.Equal(t, 10, res.AnomaliesDetected)
	assert.Zero(t, res.OverallHealthScore)
	for _, a := range res.Anomalies {
		assert.GreaterOrEqual(t, a.AnomalyScore, 0.0)
		assert.LessOrEqual(t, a.AnomalyScore, 1.0)
	}
}

// The threshold falls as sensitivity rises, so a score-only batch flags
// fewer points at higher sensitivity, never more.
func TestHigherSensitivityNeverFlagsMore(t *testing.T) {
	raw := []float64{-0.9, -0.1, -0.45, -0.3, -0.05, -0.6, -0.2, -0.55, -0.35, -0.15, -0.5, -0.25}
	e := newAnomalyEngine(fixedScorer{scores: rawScores(raw...)})

	detect := func(s float64) int {
		res, err := e.Detect(context.Background(), &models.AnomalyDetectionRequest{
			FarmID: "farm-1", DataType: models.DataTypeYield, TimeSeries: series(constant(3, len(raw))...), Sensitivity: fptr(s),
		})
		require.NoError(t, err)
		return res.AnomaliesDetected
	}

	prev := len(raw) + 1
	for i := 0; i <= 10; i++ {
		s := float64(i) / 10
		n := detect(s)
		assert.LessOrEqual(t, n, prev, "sensitivity %.1f", s)
		prev = n
	}
	assert.Greater(t, detect(0), detect(1))
}

func TestSensitivityShiftsCutoffs(t *testing.T) {
	assert.InDelta(t, 0.65, Threshold(0), 1e-12)
	assert.InDelta(t, 0.5, Threshold(0.5), 1e-12)
	assert.InDelta(t, 0.35, Threshold(1), 1e-12)

	// 0.25 sits inside the CRITICAL band at low sensitivity only
	assert.Equal(t, models.SeverityCritical, ClassifySeverity(0.25, 0))
	assert.Equal(t, models.SeverityHigh, ClassifySeverity(0.25, 1))
}

func TestSeverityIsMonotoneInScore(t *testing.T) {
	for _, sens := range []float64{0, 0.25, 0.5, 0.75, 1} {
		prev := models.SeverityCritical.Rank()
		for score := 0.0; score <= 1.0; score += 0.01 {
			rank := ClassifySeverity(score, sens).Rank()
			assert.LessOrEqual(t, rank, prev, "score %.2f sensitivity %.2f", score, sens)
			prev = rank
		}
	}
}

func TestNormalizeScores(t *testing.T) {
	assert.Equal(t, []float64{1, 1, 1}, NormalizeScores([]float64{-0.3, -0.3, -0.3}))
	got := NormalizeScores([]float64{-1, 0, 1})
	assert.InDelta(t, 0, got[0], 1e-9)
	assert.InDelta(t, 0.5, got[1], 1e-6)
	assert.InDelta(t, 1, got[2], 1e-6)
}

func TestDetectValidation(t *testing.T) {
	ctx := context.Background()
	e := newAnomalyEngine(analytics.DefaultAnomalyModel(0.1))

	_, err := e.Detect(ctx, &models.AnomalyDetectionRequest{FarmID: "f", DataType: models.DataTypeYield, TimeSeries: series(1, 2, 3)})
	assert.ErrorIs(t, err, ErrInsufficientData)

	res, err := e.Detect(ctx, &models.AnomalyDetectionRequest{FarmID: "f", DataType: models.DataTypeYield})
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.OverallHealthScore)

	_, err = newAnomalyEngine(fixedScorer{scores: rawScores(1, 2)}).Detect(ctx, &models.AnomalyDetectionRequest{
		FarmID: "f", DataType: models.DataTypeYield, TimeSeries: series(constant(1, 10)...),
	})
	assert.ErrorIs(t, err, ErrInference)

	_, err = NewAnomalyEngine(anomalySource{err: ErrModelUnavailable}, nil, applogger.Nop()).Detect(ctx, &models.AnomalyDetectionRequest{
		FarmID: "f", DataType: models.DataTypeYield, TimeSeries: series(constant(1, 10)...),
	})
	assert.ErrorIs(t, err, ErrModelUnavailable)
}
