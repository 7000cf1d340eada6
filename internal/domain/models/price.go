package models

import "time"

type Trend string

const (
	TrendBullish Trend = "BULLISH"
	TrendBearish Trend = "BEARISH"
	TrendNeutral Trend = "NEUTRAL"
)

type PriceForecastRequest struct {
	Commodity        string                 `json:"commodity" validate:"required"`
	ForecastHorizon  *int                   `json:"forecast_horizon" default:"30" validate:"required,gte=1,lte=90"`
	HistoricalPrices []float64              `json:"historical_prices" validate:"required,min=7,dive,gt=0"`
	ExternalFactors  map[string]interface{} `json:"external_factors,omitempty"`
}

// ForecastStep is one forecast day; Day runs 1..horizon.
type ForecastStep struct {
	Day        int     `json:"day"`
	Price      float64 `json:"price"`
	Confidence float64 `json:"confidence"`
}

type PriceForecast struct {
	Commodity        string         `json:"commodity"`
	ForecastedPrices []ForecastStep `json:"forecasted_prices"`
	Trend            Trend          `json:"trend"`
	Volatility       float64        `json:"volatility"`
	Confidence       float64        `json:"confidence"`
	Recommendations  []string       `json:"recommendations"`
	ForecastedAt     time.Time      `json:"forecasted_at"`
}
