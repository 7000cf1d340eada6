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
	MinPriceHistory        = 7
	MaxForecastHorizon     = 90
	DefaultForecastHorizon = 30
	defaultPriceSeqLen     = 60

	trendBand       = 0.05
	highVolatility  = 0.15
	lowVolatility   = 0.05
	earlyPeakMaxDay = 30
	confidenceStart = 0.9
	confidenceDecay = 0.02
	minStepConf     = 0.3
	maxStepConf     = 0.95
)

// PriceModelSource hands out the current price forecaster.
type PriceModelSource interface {
	Price() (*domsvc.PriceHandle, error)
}

// ForecastEngine rolls a one-step return forecaster out over a horizon.
type ForecastEngine struct {
	models  PriceModelSource
	metrics domrepo.Metrics
	log     *applogger.Logger
	now     func() time.Time
}

func NewForecastEngine(src PriceModelSource, m domrepo.Metrics, l *applogger.Logger) *ForecastEngine {
	return &ForecastEngine{
		models:  src,
		metrics: metricsOrNop(m),
		log:     l.With(applogger.String("component", "forecast")),
		now:     time.Now,
	}
}

// StepConfidence is the reported confidence of zero-based forecast step.
func StepConfidence(step int) float64 {
	return clamp(minStepConf, maxStepConf, confidenceStart*math.Exp(-confidenceDecay*float64(step)))
}

// Forecast is all-or-nothing: any failed step fails the whole call.
func (e *ForecastEngine) Forecast(ctx context.Context, req *models.PriceForecastRequest) (*models.PriceForecast, error) {
	start := time.Now()
	res, err := e.forecast(ctx, req)
	e.metrics.RecordPrediction("price", err, time.Since(start).Seconds())
	if err != nil {
		e.log.Error("price forecast failed", applogger.String("commodity", req.Commodity), applogger.Error(err))
		return nil, err
	}
	e.log.Debug("price forecast served",
		applogger.String("commodity", req.Commodity),
		applogger.Int("horizon", len(res.ForecastedPrices)),
		applogger.String("trend", string(res.Trend)),
		applogger.Duration("duration_ms", time.Since(start)))
	return res, nil
}

func (e *ForecastEngine) forecast(ctx context.Context, req *models.PriceForecastRequest) (*models.PriceForecast, error) {
	if len(req.HistoricalPrices) < MinPriceHistory {
		return nil, fmt.Errorf("%w: need at least %d historical prices, got %d",
			ErrInsufficientData, MinPriceHistory, len(req.HistoricalPrices))
	}
	horizon := DefaultForecastHorizon
	if req.ForecastHorizon != nil {
		horizon = *req.ForecastHorizon
	}
	if horizon < 1 || horizon > MaxForecastHorizon {
		return nil, fmt.Errorf("%w: forecast horizon must be within 1..%d", ErrInvalidRequest, MaxForecastHorizon)
	}

	h, err := e.models.Price()
	if err != nil {
		return nil, err
	}
	seqLen := h.Info.SequenceLength
	if seqLen <= 0 {
		seqLen = defaultPriceSeqLen
	}

	seq := features.PriceSequence(req.HistoricalPrices, seqLen)
	last := req.HistoricalPrices[len(req.HistoricalPrices)-1]

	steps := make([]models.ForecastStep, 0, horizon)
	path := make([]float64, 0, horizon)
	confs := make([]float64, 0, horizon)
	for step := 0; step < horizon; step++ {
		r, err := h.Predictor.Forecast(ctx, seq)
		if err != nil {
			return nil, fmt.Errorf("forecast day %d: %w: %w", step+1, ErrInference, err)
		}
		price := last * math.Exp(r)
		if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
			return nil, fmt.Errorf("forecast day %d: %w: non-finite price from return %v", step+1, ErrInference, r)
		}
		conf := StepConfidence(step)
		steps = append(steps, models.ForecastStep{Day: step + 1, Price: price, Confidence: conf})
		path = append(path, price)
		confs = append(confs, conf)

		// the next step conditions on this step's own output
		copy(seq, seq[1:])
		seq[len(seq)-1] = r
		last = price
	}

	trend := classifyTrend(path[0], path[len(path)-1])
	mean, std := stat.PopMeanStdDev(path, nil)
	volatility := std / mean

	return &models.PriceForecast{
		Commodity:        req.Commodity,
		ForecastedPrices: steps,
		Trend:            trend,
		Volatility:       volatility,
		Confidence:       stat.Mean(confs, nil),
		Recommendations:  priceRecommendations(req.Commodity, trend, volatility, path),
		ForecastedAt:     e.now().UTC(),
	}, nil
}

func classifyTrend(first, last float64) models.Trend {
	change := (last - first) / first
	switch {
	case change > trendBand:
		return models.TrendBullish
	case change < -trendBand:
		return models.TrendBearish
	default:
		return models.TrendNeutral
	}
}

func priceRecommendations(commodity string, trend models.Trend, volatility float64, path []float64) []string {
	recs := make([]string, 0, 3)
	switch trend {
	case models.TrendBullish:
		recs = append(recs, fmt.Sprintf("Upward trend for %s. Consider postponing sales or a partial hedge.", commodity))
	case models.TrendBearish:
		recs = append(recs, fmt.Sprintf("Downward trend for %s. A hedge or an early sale is recommended.", commodity))
	default:
		recs = append(recs, fmt.Sprintf("Sideways market for %s. Keep the scheduled selling strategy.", commodity))
	}

	switch {
	case volatility > highVolatility:
		recs = append(recs, "High volatility detected. Consider collar or options strategies for protection.")
	case volatility < lowVolatility:
		recs = append(recs, "Low volatility. Favorable moment to lock in prices.")
	}

	// MaxIdx returns the first index on ties
	if peak := floats.MaxIdx(path) + 1; peak <= earlyPeakMaxDay {
		recs = append(recs, fmt.Sprintf("Price peak expected on day %d. Consider selling in this period.", peak))
	}
	return recs
}
