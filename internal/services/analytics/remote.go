package analytics

import (
	"context"
	"fmt"

	domsvc "AgriCast/internal/domain/service"
)

// HTTPYieldPredictor calls a remote model server for yield predictions.
type HTTPYieldPredictor struct {
	base *HTTPServiceBase
}

func NewHTTPYieldPredictor(base *HTTPServiceBase) *HTTPYieldPredictor {
	return &HTTPYieldPredictor{base: base}
}

type yieldReq struct {
	Window [][]float64 `json:"window"`
}

type yieldResp struct {
	Prediction float64 `json:"prediction"`
}

func (p *HTTPYieldPredictor) Predict(ctx context.Context, window [][]float64) (float64, error) {
	var out yieldResp
	if err := p.base.PostJSON(ctx, "/yield/predict", yieldReq{Window: window}, &out); err != nil {
		return 0, err
	}
	return out.Prediction, nil
}

// HTTPPriceForecaster calls a remote model server for the next return.
type HTTPPriceForecaster struct {
	base *HTTPServiceBase
}

func NewHTTPPriceForecaster(base *HTTPServiceBase) *HTTPPriceForecaster {
	return &HTTPPriceForecaster{base: base}
}

type priceReq struct {
	Returns []float64 `json:"returns"`
}

type priceResp struct {
	Return float64 `json:"return"`
}

func (p *HTTPPriceForecaster) Forecast(ctx context.Context, returns []float64) (float64, error) {
	var out priceResp
	if err := p.base.PostJSON(ctx, "/prices/predict", priceReq{Returns: returns}, &out); err != nil {
		return 0, err
	}
	return out.Return, nil
}

// HTTPAnomalyScorer calls a remote model server to score a feature batch.
type HTTPAnomalyScorer struct {
	base *HTTPServiceBase
}

func NewHTTPAnomalyScorer(base *HTTPServiceBase) *HTTPAnomalyScorer {
	return &HTTPAnomalyScorer{base: base}
}

type anomalyReq struct {
	Rows [][]float64 `json:"rows"`
}

type anomalyResp struct {
	Scores []domsvc.AnomalyScore `json:"scores"`
}

func (p *HTTPAnomalyScorer) Score(ctx context.Context, rows [][]float64) ([]domsvc.AnomalyScore, error) {
	var out anomalyResp
	if err := p.base.PostJSON(ctx, "/anomaly/score", anomalyReq{Rows: rows}, &out); err != nil {
		return nil, err
	}
	if len(out.Scores) != len(rows) {
		return nil, fmt.Errorf("anomaly scorer returned %d scores for %d rows", len(out.Scores), len(rows))
	}
	return out.Scores, nil
}

var (
	_ domsvc.YieldPredictor  = (*HTTPYieldPredictor)(nil)
	_ domsvc.PriceForecaster = (*HTTPPriceForecaster)(nil)
	_ domsvc.AnomalyScorer   = (*HTTPAnomalyScorer)(nil)
)
