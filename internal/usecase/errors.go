package usecase

import (
	"errors"

	domrepo "AgriCast/internal/domain/repository"
	domsvc "AgriCast/internal/domain/service"
)

// Errors returned by the engines and the training orchestrator. The handler
// layer maps them onto HTTP statuses with errors.Is.
var (
	ErrModelUnavailable       = domsvc.ErrModelUnavailable
	ErrInsufficientData       = errors.New("insufficient data")
	ErrInvalidRequest         = errors.New("invalid request")
	ErrInvalidModelType       = errors.New("invalid model type")
	ErrInvalidHyperparameters = errors.New("invalid hyperparameters")
	ErrJobNotFound            = domrepo.ErrJobNotFound
	ErrInference              = errors.New("inference failed")
)

// IsValidation reports whether err is a caller error that no retry can fix.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInsufficientData) ||
		errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidModelType) ||
		errors.Is(err, ErrInvalidHyperparameters)
}

type nopMetrics struct{}

func (nopMetrics) RecordPrediction(string, error, float64) {}
func (nopMetrics) RecordAnomalies(string, int)             {}
func (nopMetrics) RecordJobTransition(string, string)      {}
func (nopMetrics) RecordEpoch(string)                      {}
func (nopMetrics) RecordError(string)                      {}

func metricsOrNop(m domrepo.Metrics) domrepo.Metrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}

func clamp(lo, hi, v float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
