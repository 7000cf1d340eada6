package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"AgriCast/internal/domain/models"
	domrepo "AgriCast/internal/domain/repository"
	domsvc "AgriCast/internal/domain/service"
	"AgriCast/internal/services/features"
	applogger "AgriCast/pkg/logger"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	MinAnomalyPoints   = 10
	DefaultSensitivity = 0.5
)

var severityWeight = map[models.Severity]float64{
	models.SeverityCritical: 0.15,
	models.SeverityHigh:     0.10,
	models.SeverityMedium:   0.05,
	models.SeverityLow:      0.02,
}

var severityAdvice = map[models.Severity][]string{
	models.SeverityCritical: {
		"Critical anomaly detected. Investigate immediately.",
		"Dispatch the technical team for a field inspection.",
	},
	models.SeverityHigh:   {"Significant anomaly. Check within 24 hours."},
	models.SeverityMedium: {"Monitor how it evolves. Check within 72 hours."},
}

var dataTypeAdvice = map[models.DataType]string{
	models.DataTypeYield:   "Review management practices and soil conditions.",
	models.DataTypeClimate: "Correlate with extreme weather events.",
	models.DataTypeSoil:    "Run a detailed soil analysis.",
	models.DataTypeHealth:  "Inspect for pests or diseases.",
}

// AnomalyModelSource hands out the current anomaly scorer.
type AnomalyModelSource interface {
	Anomaly() (*domsvc.AnomalyHandle, error)
}

// AnomalyEngine turns per-point scorer output into a ranked, explained report.
type AnomalyEngine struct {
	models  AnomalyModelSource
	metrics domrepo.Metrics
	log     *applogger.Logger
	now     func() time.Time
}

func NewAnomalyEngine(src AnomalyModelSource, m domrepo.Metrics, l *applogger.Logger) *AnomalyEngine {
	return &AnomalyEngine{
		models:  src,
		metrics: metricsOrNop(m),
		log:     l.With(applogger.String("component", "anomaly")),
		now:     time.Now,
	}
}

// Threshold is the normalized score below which a point is flagged. It
// falls as sensitivity rises: 0.65 at 0, 0.5 at 0.5, 0.35 at 1.
func Threshold(sensitivity float64) float64 {
	return 0.5 - (sensitivity-0.5)*0.3
}

// ClassifySeverity maps a normalized score (lower = more anomalous) to a
// severity. Higher sensitivity lowers the CRITICAL and HIGH cut-offs, so
// those bands narrow.
func ClassifySeverity(score, sensitivity float64) models.Severity {
	switch {
	case score < 0.2+0.1*(1-sensitivity):
		return models.SeverityCritical
	case score < 0.35+0.1*(1-sensitivity):
		return models.SeverityHigh
	case score < 0.5:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// HealthScore is 1 minus the flagged share minus the severity penalties,
// clamped to [0,1]. An empty series is perfectly healthy.
func HealthScore(anomalies []models.Anomaly, total int) float64 {
	if total == 0 {
		return 1.0
	}
	score := 1.0 - float64(len(anomalies))/float64(total)
	for _, a := range anomalies {
		score -= severityWeight[a.Severity]
	}
	return clamp(0, 1, score)
}

// NormalizeScores min-max scales raw scores into [0,1]. A batch whose scores
// are all equal carries no ranking, so every point maps to 1 (fully normal).
func NormalizeScores(raw []float64) []float64 {
	out := make([]float64, len(raw))
	if len(raw) == 0 {
		return out
	}
	lo, hi := floats.Min(raw), floats.Max(raw)
	if hi-lo <= features.Epsilon {
		for i := range out {
			out[i] = 1
		}
		return out
	}
	for i, v := range raw {
		out[i] = clamp(0, 1, (v-lo)/(hi-lo+features.Epsilon))
	}
	return out
}

func (e *AnomalyEngine) Detect(ctx context.Context, req *models.AnomalyDetectionRequest) (*models.AnomalyReport, error) {
	start := time.Now()
	res, err := e.detect(ctx, req)
	e.metrics.RecordPrediction("anomaly", err, time.Since(start).Seconds())
	if err != nil {
		e.log.Error("anomaly detection failed",
			applogger.String("farm_id", req.FarmID),
			applogger.String("data_type", string(req.DataType)),
			applogger.Error(err))
		return nil, err
	}
	e.metrics.RecordAnomalies(string(req.DataType), res.AnomaliesDetected)
	e.log.Debug("anomaly detection served",
		applogger.String("farm_id", req.FarmID),
		applogger.Int("points", len(req.TimeSeries)),
		applogger.Int("flagged", res.AnomaliesDetected),
		applogger.Float64("health", res.OverallHealthScore))
	return res, nil
}

func (e *AnomalyEngine) detect(ctx context.Context, req *models.AnomalyDetectionRequest) (*models.AnomalyReport, error) {
	now := e.now().UTC()
	report := &models.AnomalyReport{
		FarmID:             req.FarmID,
		DataType:           req.DataType,
		Anomalies:          []models.Anomaly{},
		OverallHealthScore: 1.0,
		DetectedAt:         now,
	}
	if len(req.TimeSeries) == 0 {
		return report, nil
	}
	if len(req.TimeSeries) < MinAnomalyPoints {
		return nil, fmt.Errorf("%w: need at least %d points, got %d",
			ErrInsufficientData, MinAnomalyPoints, len(req.TimeSeries))
	}
	sensitivity := DefaultSensitivity
	if req.Sensitivity != nil {
		sensitivity = *req.Sensitivity
	}
	if sensitivity < 0 || sensitivity > 1 || math.IsNaN(sensitivity) {
		return nil, fmt.Errorf("%w: sensitivity must be within [0,1]", ErrInvalidRequest)
	}

	h, err := e.models.Anomaly()
	if err != nil {
		return nil, err
	}

	rows := features.AnomalyRows(req.TimeSeries)
	scores, err := h.Predictor.Score(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInference, err)
	}
	if len(scores) != len(rows) {
		return nil, fmt.Errorf("%w: scorer returned %d scores for %d points", ErrInference, len(scores), len(rows))
	}

	raw := make([]float64, len(scores))
	for i, s := range scores {
		raw[i] = s.Raw
	}
	norm := NormalizeScores(raw)
	threshold := Threshold(sensitivity)
	values := features.Values(req.TimeSeries)

	for i, s := range norm {
		if !scores[i].Outlier && s >= threshold {
			continue
		}
		p := req.TimeSeries[i]
		ts := p.Timestamp.Time
		if ts.IsZero() {
			ts = now
		}
		sev := ClassifySeverity(s, sensitivity)
		report.Anomalies = append(report.Anomalies, models.Anomaly{
			Timestamp:       ts,
			Value:           p.Value,
			AnomalyScore:    clamp(0, 1, 1-s),
			Severity:        sev,
			Explanation:     explainAnomaly(values, i, s),
			Recommendations: anomalyRecommendations(sev, req.DataType),
		})
	}

	report.AnomaliesDetected = len(report.Anomalies)
	report.OverallHealthScore = HealthScore(report.Anomalies, len(req.TimeSeries))
	return report, nil
}

func explainAnomaly(values []float64, i int, score float64) string {
	if i < features.RollingWindow {
		return fmt.Sprintf("Unusual value in the initial period. Anomaly score: %.2f.", 1-score)
	}
	v := values[i]
	avg := stat.Mean(values[i-features.RollingWindow:i], nil)
	var deviation float64
	if avg != 0 {
		deviation = (v - avg) / avg * 100
	}
	direction := "below"
	if v > avg {
		direction = "above"
	}
	return fmt.Sprintf("Value %.1f%% %s the recent average. Anomaly score: %.2f.",
		math.Abs(deviation), direction, 1-score)
}

func anomalyRecommendations(sev models.Severity, dt models.DataType) []string {
	recs := append([]string{}, severityAdvice[sev]...)
	if advice, ok := dataTypeAdvice[dt]; ok {
		recs = append(recs, advice)
	}
	return recs
}
