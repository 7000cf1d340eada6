package models

import "time"

type YieldPredictionRequest struct {
	FarmID           string                 `json:"farm_id" validate:"required"`
	CropType         string                 `json:"crop_type" validate:"required"`
	AreaHectares     float64                `json:"area_hectares" validate:"gt=0"`
	PlantingDate     Timestamp              `json:"planting_date"`
	ClimateData      []ClimateRecord        `json:"climate_data"`
	SoilData         map[string]interface{} `json:"soil_data,omitempty"`
	HistoricalYields []float64              `json:"historical_yields" validate:"omitempty,dive,gte=0"`
}

// YieldFactors is a fixed heuristic attribution, not a learned one.
type YieldFactors struct {
	Climate               float64 `json:"climate"`
	Soil                  float64 `json:"soil"`
	CropManagement        float64 `json:"crop_management"`
	HistoricalPerformance float64 `json:"historical_performance"`
	Season                float64 `json:"season"`
}

type YieldPrediction struct {
	FarmID          string       `json:"farm_id"`
	CropType        string       `json:"crop_type"`
	PredictedYield  float64      `json:"predicted_yield"`
	Confidence      float64      `json:"confidence"`
	LowerBound      float64      `json:"lower_bound"`
	UpperBound      float64      `json:"upper_bound"`
	Factors         YieldFactors `json:"factors"`
	Recommendations []string     `json:"recommendations"`
	PredictedAt     time.Time    `json:"predicted_at"`
}
