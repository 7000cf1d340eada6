package usecase

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"AgriCast/internal/domain/models"
	domrepo "AgriCast/internal/domain/repository"
	domsvc "AgriCast/internal/domain/service"
	"AgriCast/internal/services/features"
	applogger "AgriCast/pkg/logger"

	"gonum.org/v1/gonum/stat"
)

const (
	defaultYieldSeqLen = 30

	lowYield         = 2.5
	highYield        = 4.0
	lowPrecipitation = 10.0
	yieldStdShare    = 0.15
	interval95       = 1.96
	maxYieldConf     = 0.95
)

// DefaultYieldFactors is a fixed heuristic attribution. It is not derived
// from the model.
var DefaultYieldFactors = models.YieldFactors{
	Climate:               0.35,
	Soil:                  0.25,
	CropManagement:        0.20,
	HistoricalPerformance: 0.15,
	Season:                0.05,
}

var cropAdvice = map[string]string{
	"SOJA":    "Soybean: pay special attention to stages R5-R6 to maximize grain filling.",
	"SOYBEAN": "Soybean: pay special attention to stages R5-R6 to maximize grain filling.",
	"MILHO":   "Corn: secure water availability during the critical VT-R1 period.",
	"CORN":    "Corn: secure water availability during the critical VT-R1 period.",
}

// YieldModelSource hands out the current yield predictor.
type YieldModelSource interface {
	Yield() (*domsvc.YieldHandle, error)
}

// YieldEstimator calibrates a single yield prediction with a confidence,
// an interval and agronomic recommendations.
type YieldEstimator struct {
	models  YieldModelSource
	metrics domrepo.Metrics
	log     *applogger.Logger
	now     func() time.Time
}

func NewYieldEstimator(src YieldModelSource, m domrepo.Metrics, l *applogger.Logger) *YieldEstimator {
	return &YieldEstimator{
		models:  src,
		metrics: metricsOrNop(m),
		log:     l.With(applogger.String("component", "yield")),
		now:     time.Now,
	}
}

// YieldConfidence scores input quality: window coverage, historical yields
// and the share of records carrying both temperature and precipitation.
func YieldConfidence(records []models.ClimateRecord, historical []float64, seqLen int) float64 {
	conf := 0.5
	if len(records) >= seqLen {
		conf += 0.2
	}
	if len(historical) > 0 {
		conf += 0.15
	}
	if len(records) > 0 {
		complete := 0
		for _, r := range records {
			if r.Complete() {
				complete++
			}
		}
		conf += float64(complete) / float64(len(records)) * 0.15
	}
	return math.Min(maxYieldConf, conf)
}

// YieldInterval returns the 95% interval assuming sigma = 15% of pred.
func YieldInterval(pred float64) (lower, upper float64) {
	sigma := yieldStdShare * pred
	return math.Max(0, pred-interval95*sigma), pred + interval95*sigma
}

func (e *YieldEstimator) Predict(ctx context.Context, req *models.YieldPredictionRequest) (*models.YieldPrediction, error) {
	start := time.Now()
	res, err := e.predict(ctx, req)
	e.metrics.RecordPrediction("yield", err, time.Since(start).Seconds())
	if err != nil {
		e.log.Error("yield prediction failed",
			applogger.String("farm_id", req.FarmID),
			applogger.String("crop_type", req.CropType),
			applogger.Error(err))
		return nil, err
	}
	e.log.Debug("yield prediction served",
		applogger.String("farm_id", req.FarmID),
		applogger.Float64("predicted_yield", res.PredictedYield),
		applogger.Float64("confidence", res.Confidence))
	return res, nil
}

func (e *YieldEstimator) predict(ctx context.Context, req *models.YieldPredictionRequest) (*models.YieldPrediction, error) {
	if req.AreaHectares <= 0 {
		return nil, fmt.Errorf("%w: area_hectares must be positive", ErrInvalidRequest)
	}
	h, err := e.models.Yield()
	if err != nil {
		return nil, err
	}
	seqLen := h.Info.SequenceLength
	if seqLen <= 0 {
		seqLen = defaultYieldSeqLen
	}

	window := features.ClimateWindow(req.ClimateData, seqLen)
	pred, err := h.Predictor.Predict(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInference, err)
	}
	if math.IsNaN(pred) || math.IsInf(pred, 0) {
		return nil, fmt.Errorf("%w: non-finite yield %v", ErrInference, pred)
	}
	pred = math.Max(0, pred)
	lower, upper := YieldInterval(pred)

	return &models.YieldPrediction{
		FarmID:          req.FarmID,
		CropType:        req.CropType,
		PredictedYield:  pred,
		Confidence:      YieldConfidence(req.ClimateData, req.HistoricalYields, seqLen),
		LowerBound:      lower,
		UpperBound:      upper,
		Factors:         DefaultYieldFactors,
		Recommendations: yieldRecommendations(pred, req.CropType, req.ClimateData),
		PredictedAt:     e.now().UTC(),
	}, nil
}

func yieldRecommendations(pred float64, cropType string, records []models.ClimateRecord) []string {
	var recs []string
	switch {
	case pred < lowYield:
		recs = append(recs, "Yield below average. Consider adjusting nutrient management.")
	case pred > highYield:
		recs = append(recs, "High yield expected. Plan harvest logistics.")
	}

	if len(records) > 0 {
		recent := records
		if len(recent) > features.RollingWindow {
			recent = recent[len(recent)-features.RollingWindow:]
		}
		precip := make([]float64, len(recent))
		for i, r := range recent {
			if r.Precipitation != nil {
				precip[i] = *r.Precipitation
			}
		}
		if stat.Mean(precip, nil) < lowPrecipitation {
			recs = append(recs, "Low recent precipitation. Monitor irrigation needs.")
		}
	}

	if advice, ok := cropAdvice[strings.ToUpper(strings.TrimSpace(cropType))]; ok {
		recs = append(recs, advice)
	}
	if recs == nil {
		recs = []string{}
	}
	return recs
}
