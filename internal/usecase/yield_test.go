package usecase

import (
	"context"
	"errors"
	"testing"

	"AgriCast/internal/domain/models"
	domsvc "AgriCast/internal/domain/service"
	applogger "AgriCast/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newYieldEstimator(p domsvc.YieldPredictor) *YieldEstimator {
	return NewYieldEstimator(yieldSource{h: &domsvc.YieldHandle{
		Predictor: p,
		Info:      models.ModelInfo{SequenceLength: 30},
	}}, nil, applogger.Nop())
}

func climate(n int, temp, precip *float64) []models.ClimateRecord {
	out := make([]models.ClimateRecord, n)
	for i := range out {
		out[i] = models.ClimateRecord{Temperature: temp, Precipitation: precip}
	}
	return out
}

func TestPredictWithoutClimateData(t *testing.T) {
	p := &capturePredictor{pred: 3.0}
	e := newYieldEstimator(p)

	res, err := e.Predict(context.Background(), &models.YieldPredictionRequest{
		FarmID:       "farm-1",
		CropType:     "SOJA",
		AreaHectares: 120,
		ClimateData:  []models.ClimateRecord{},
	})
	require.NoError(t, err)

	require.Len(t, p.window, 30)
	for _, row := range p.window {
		assert.Equal(t, []float64{0, 0, 0, 0, 0, 0}, row)
	}
	assert.InDelta(t, 0.5, res.Confidence, 1e-12)
	assert.InDelta(t, 3.0-1.96*0.45, res.LowerBound, 1e-9)
	assert.InDelta(t, 3.0+1.96*0.45, res.UpperBound, 1e-9)
	assert.Equal(t, DefaultYieldFactors, res.Factors)
	// no records: no precipitation advice, only the crop note
	assert.Equal(t, []string{"Soybean: pay special attention to stages R5-R6 to maximize grain filling."}, res.Recommendations)
}

func TestYieldConfidenceIsMonotoneAndCapped(t *testing.T) {
	full := climate(30, fptr(25), fptr(4))
	partial := climate(30, fptr(25), nil)
	short := climate(5, fptr(25), fptr(4))

	steps := []float64{
		YieldConfidence(nil, nil, 30),
		YieldConfidence(partial, nil, 30),
		YieldConfidence(partial, []float64{3.1}, 30),
		YieldConfidence(full, []float64{3.1}, 30),
	}
	for i := 1; i < len(steps); i++ {
		assert.GreaterOrEqual(t, steps[i], steps[i-1])
	}
	assert.InDelta(t, 0.5, steps[0], 1e-12)
	assert.InDelta(t, 0.7, steps[1], 1e-12)
	assert.InDelta(t, 0.85, steps[2], 1e-12)
	assert.Equal(t, 0.95, steps[3])

	assert.InDelta(t, 0.65, YieldConfidence(short, nil, 30), 1e-12)
}

func TestPredictRecommendations(t *testing.T) {
	e := newYieldEstimator(&capturePredictor{pred: 2.0})
	res, err := e.Predict(context.Background(), &models.YieldPredictionRequest{
		FarmID: "farm-1", CropType: "milho", AreaHectares: 10,
		ClimateData: climate(10, fptr(28), fptr(2)),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Yield below average. Consider adjusting nutrient management.",
		"Low recent precipitation. Monitor irrigation needs.",
		"Corn: secure water availability during the critical VT-R1 period.",
	}, res.Recommendations)

	e = newYieldEstimator(&capturePredictor{pred: 4.5})
	res, err = e.Predict(context.Background(), &models.YieldPredictionRequest{
		FarmID: "farm-1", CropType: "TRIGO", AreaHectares: 10,
		ClimateData: climate(10, fptr(28), fptr(25)),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"High yield expected. Plan harvest logistics."}, res.Recommendations)
}

func TestPredictClampsNegativeYield(t *testing.T) {
	e := newYieldEstimator(&capturePredictor{pred: -1})
	res, err := e.Predict(context.Background(), &models.YieldPredictionRequest{FarmID: "f", CropType: "SOJA", AreaHectares: 1})
	require.NoError(t, err)
	assert.Zero(t, res.PredictedYield)
	assert.Zero(t, res.LowerBound)
	assert.Zero(t, res.UpperBound)
}

func TestPredictErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("tensor shape mismatch")

	_, err := newYieldEstimator(&capturePredictor{err: boom}).Predict(ctx, &models.YieldPredictionRequest{FarmID: "f", CropType: "SOJA", AreaHectares: 1})
	assert.ErrorIs(t, err, ErrInference)
	assert.ErrorIs(t, err, boom)

	_, err = newYieldEstimator(&capturePredictor{}).Predict(ctx, &models.YieldPredictionRequest{FarmID: "f", CropType: "SOJA"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = NewYieldEstimator(yieldSource{err: ErrModelUnavailable}, nil, applogger.Nop()).Predict(ctx, &models.YieldPredictionRequest{FarmID: "f", CropType: "SOJA", AreaHectares: 1})
	assert.ErrorIs(t, err, ErrModelUnavailable)
}
