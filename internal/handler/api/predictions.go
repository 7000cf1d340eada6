package api

import (
	"context"
	"time"

	"AgriCast/internal/domain/models"
	domrepo "AgriCast/internal/domain/repository"
	"AgriCast/internal/usecase"
	"AgriCast/pkg/cache"
	xhttp "AgriCast/pkg/http"
	applogger "AgriCast/pkg/logger"

	"github.com/labstack/echo/v4"
)

const (
	headerCache  = "X-Cache"
	auditTimeout = 3 * time.Second

	yieldCacheNS   = "predict:yield"
	priceCacheNS   = "predict:price"
	anomalyCacheNS = "predict:anomaly"
)

// PredictionOptions tunes response caching. A nil Cache disables it.
type PredictionOptions struct {
	Cache    cache.Service
	CacheTTL time.Duration
}

// PredictionHandler serves the yield, price and anomaly endpoints.
type PredictionHandler struct {
	yield   *usecase.YieldEstimator
	price   *usecase.ForecastEngine
	anomaly *usecase.AnomalyEngine
	audit   domrepo.PredictionLog
	opts    PredictionOptions
	log     *applogger.Logger
	now     func() time.Time
}

func NewPredictionHandler(
	yield *usecase.YieldEstimator,
	price *usecase.ForecastEngine,
	anomaly *usecase.AnomalyEngine,
	audit domrepo.PredictionLog,
	opts PredictionOptions,
	l *applogger.Logger,
) *PredictionHandler {
	return &PredictionHandler{
		yield:   yield,
		price:   price,
		anomaly: anomaly,
		audit:   audit,
		opts:    opts,
		log:     l.With(applogger.String("component", "api")),
		now:     time.Now,
	}
}

func (h *PredictionHandler) PredictYield(c echo.Context) error {
	req := &models.YieldPredictionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := serveCached(c, h, yieldCacheNS, req, func(ctx context.Context) (*models.YieldPrediction, error) {
		return h.yield.Predict(ctx, req)
	}, func(res *models.YieldPrediction, at time.Time) {
		res.PredictedAt = at
	}, func(res *models.YieldPrediction) domrepo.PredictionRecord {
		return domrepo.PredictionRecord{
			Kind:       "yield",
			Subject:    req.FarmID,
			Value:      res.PredictedYield,
			Confidence: res.Confidence,
			Payload:    res,
			CreatedAt:  res.PredictedAt,
		}
	})
	if err != nil {
		return errorResponse(c, h.log, "yield prediction", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PredictionHandler) ForecastPrice(c echo.Context) error {
	req := &models.PriceForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := serveCached(c, h, priceCacheNS, req, func(ctx context.Context) (*models.PriceForecast, error) {
		return h.price.Forecast(ctx, req)
	}, func(res *models.PriceForecast, at time.Time) {
		res.ForecastedAt = at
	}, func(res *models.PriceForecast) domrepo.PredictionRecord {
		var last float64
		if n := len(res.ForecastedPrices); n > 0 {
			last = res.ForecastedPrices[n-1].Price
		}
		return domrepo.PredictionRecord{
			Kind:       "price",
			Subject:    req.Commodity,
			Value:      last,
			Confidence: res.Confidence,
			Payload:    res,
			CreatedAt:  res.ForecastedAt,
		}
	})
	if err != nil {
		return errorResponse(c, h.log, "price forecast", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PredictionHandler) DetectAnomalies(c echo.Context) error {
	req := &models.AnomalyDetectionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := serveCached(c, h, anomalyCacheNS, req, func(ctx context.Context) (*models.AnomalyReport, error) {
		return h.anomaly.Detect(ctx, req)
	}, func(res *models.AnomalyReport, at time.Time) {
		// points without their own timestamp carry the detection time
		for i := range res.Anomalies {
			if res.Anomalies[i].Timestamp.Equal(res.DetectedAt) {
				res.Anomalies[i].Timestamp = at
			}
		}
		res.DetectedAt = at
	}, func(res *models.AnomalyReport) domrepo.PredictionRecord {
		return domrepo.PredictionRecord{
			Kind:       "anomaly",
			Subject:    req.FarmID,
			Value:      float64(res.AnomaliesDetected),
			Confidence: res.OverallHealthScore,
			Payload:    res,
			CreatedAt:  res.DetectedAt,
		}
	})
	if err != nil {
		return errorResponse(c, h.log, "anomaly detection", err)
	}
	return xhttp.SuccessResponse(c, res)
}

// serveCached answers from the prediction cache when possible. A hit is
// re-stamped with the current time through stamp. Fresh results are
// audited; hits are not, since no inference ran.
func serveCached[T any](
	c echo.Context,
	h *PredictionHandler,
	ns string,
	req interface{},
	run func(context.Context) (*T, error),
	stamp func(*T, time.Time),
	record func(*T) domrepo.PredictionRecord,
) (*T, error) {
	ctx := c.Request().Context()
	if h.opts.Cache == nil {
		res, err := run(ctx)
		if err == nil {
			h.record(ctx, record(res))
		}
		return res, err
	}

	key, err := cache.HashKey(ns, req)
	if err != nil {
		return nil, err
	}
	res, hit, err := cache.Remember(ctx, h.opts.Cache, key, h.opts.CacheTTL, run)
	if err != nil {
		return nil, err
	}
	if hit {
		stamp(res, h.now().UTC())
		c.Response().Header().Set(headerCache, "HIT")
	} else {
		c.Response().Header().Set(headerCache, "MISS")
		h.record(ctx, record(res))
	}
	return res, nil
}

func (h *PredictionHandler) record(ctx context.Context, rec domrepo.PredictionRecord) {
	if h.audit == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
		defer cancel()
		if err := h.audit.Record(ctx, rec); err != nil {
			h.log.Warn("prediction audit dropped",
				applogger.String("kind", rec.Kind),
				applogger.Error(err))
		}
	}()
}
