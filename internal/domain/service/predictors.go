package service

import (
	"context"
	"errors"

	"AgriCast/internal/domain/models"
)

// YieldPredictor maps a normalized climate window (rows = days, columns =
// features) to a point yield estimate in tons per hectare.
type YieldPredictor interface {
	Predict(ctx context.Context, window [][]float64) (float64, error)
}

// PriceForecaster maps a z-scored return sequence to the next log return.
type PriceForecaster interface {
	Forecast(ctx context.Context, returns []float64) (float64, error)
}

// AnomalyScore is the per-row verdict of an anomaly scorer. Higher Raw means
// more typical; Outlier is the model's own binary decision.
type AnomalyScore struct {
	Outlier bool    `json:"outlier"`
	Raw     float64 `json:"raw"`
}

// AnomalyScorer scores every feature row of a batch; the result has one
// entry per row, in order.
type AnomalyScorer interface {
	Score(ctx context.Context, rows [][]float64) ([]AnomalyScore, error)
}

// ErrModelUnavailable means the requested predictor is not loaded.
var ErrModelUnavailable = errors.New("model not loaded")

// YieldHandle pairs a yield predictor with its static metadata.
type YieldHandle struct {
	Predictor YieldPredictor
	Info      models.ModelInfo
}

// PriceHandle pairs a price forecaster with its static metadata.
type PriceHandle struct {
	Predictor PriceForecaster
	Info      models.ModelInfo
}

// AnomalyHandle pairs an anomaly scorer with its static metadata.
type AnomalyHandle struct {
	Predictor AnomalyScorer
	Info      models.ModelInfo
}
