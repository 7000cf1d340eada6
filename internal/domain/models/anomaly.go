package models

import "time"

type DataType string

const (
	DataTypeYield   DataType = "YIELD"
	DataTypeClimate DataType = "CLIMATE"
	DataTypeSoil    DataType = "SOIL"
	DataTypeHealth  DataType = "HEALTH"
)

type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Rank orders severities from LOW (1) to CRITICAL (4).
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

type AnomalyDetectionRequest struct {
	FarmID      string            `json:"farm_id" validate:"required"`
	DataType    DataType          `json:"data_type" validate:"required,oneof=YIELD CLIMATE SOIL HEALTH"`
	TimeSeries  []TimeSeriesPoint `json:"time_series" validate:"required,min=10"`
	Sensitivity *float64          `json:"sensitivity" default:"0.5" validate:"required,gte=0,lte=1"`
}

type Anomaly struct {
	Timestamp       time.Time `json:"timestamp"`
	Value           float64   `json:"value"`
	AnomalyScore    float64   `json:"anomaly_score"`
	Severity        Severity  `json:"severity"`
	Explanation     string    `json:"explanation"`
	Recommendations []string  `json:"recommendations"`
}

type AnomalyReport struct {
	FarmID             string    `json:"farm_id"`
	DataType           DataType  `json:"data_type"`
	AnomaliesDetected  int       `json:"anomalies_detected"`
	Anomalies          []Anomaly `json:"anomalies"`
	OverallHealthScore float64   `json:"overall_health_score"`
	DetectedAt         time.Time `json:"detected_at"`
}
