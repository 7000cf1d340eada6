package analytics

import (
	"context"
	"math"
	"sort"

	domsvc "AgriCast/internal/domain/service"
	"AgriCast/internal/services/features"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// LinearYieldModel predicts yield as an intercept plus a weighted sum of the
// per-feature window means. Inputs are expected min-max normalized.
type LinearYieldModel struct {
	Intercept float64
	Weights   []float64
}

// DefaultYieldModel is used when no artifact is available.
func DefaultYieldModel() *LinearYieldModel {
	return &LinearYieldModel{
		Intercept: 2.2,
		Weights:   []float64{0.35, 0.55, 0.15, 0.25, 0.45, 0.5},
	}
}

func (m *LinearYieldModel) Predict(ctx context.Context, window [][]float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(window) == 0 {
		return math.Max(0, m.Intercept), nil
	}
	means := make([]float64, len(window[0]))
	col := make([]float64, len(window))
	for j := range means {
		for i := range window {
			col[i] = window[i][j]
		}
		means[j] = stat.Mean(col, nil)
	}
	n := len(means)
	if len(m.Weights) < n {
		n = len(m.Weights)
	}
	y := m.Intercept + floats.Dot(m.Weights[:n], means[:n])
	return math.Max(0, y), nil
}

// ARPriceModel is a linear autoregression over the most recent returns:
// next = Drift + Scale * sum_k Weights[k] * seq[len-1-k].
type ARPriceModel struct {
	Weights []float64
	Scale   float64
	Drift   float64
}

// DefaultPriceModel is used when no artifact is available.
func DefaultPriceModel() *ARPriceModel {
	return &ARPriceModel{
		Weights: []float64{0.3, 0.15, 0.05},
		Scale:   0.01,
		Drift:   0.0005,
	}
}

func (m *ARPriceModel) Forecast(ctx context.Context, returns []float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var acc float64
	for k, w := range m.Weights {
		i := len(returns) - 1 - k
		if i < 0 {
			break
		}
		acc += w * returns[i]
	}
	return m.Drift + m.Scale*acc, nil
}

// ZScoreAnomalyModel scores each row by its largest absolute z-score over the
// signal columns (value, change, volatility) of the batch. A row is an
// outlier when that z-score exceeds both OutlierZ and the (1-Contamination)
// quantile of the batch.
type ZScoreAnomalyModel struct {
	OutlierZ      float64
	Contamination float64
}

// DefaultAnomalyModel is used when no artifact is available.
func DefaultAnomalyModel(contamination float64) *ZScoreAnomalyModel {
	return &ZScoreAnomalyModel{OutlierZ: 2.5, Contamination: contamination}
}

const signalColumns = 3

func (m *ZScoreAnomalyModel) Score(ctx context.Context, rows [][]float64) ([]domsvc.AnomalyScore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	width := signalColumns
	if len(rows[0]) < width {
		width = len(rows[0])
	}

	peak := make([]float64, len(rows))
	col := make([]float64, len(rows))
	for j := 0; j < width; j++ {
		for i := range rows {
			col[i] = rows[i][j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		for i := range rows {
			z := math.Abs(col[i]-mean) / (std + features.Epsilon)
			if z > peak[i] {
				peak[i] = z
			}
		}
	}

	sorted := append([]float64(nil), peak...)
	sort.Float64s(sorted)
	cut := math.Max(m.OutlierZ, stat.Quantile(1-m.Contamination, stat.Empirical, sorted, nil))

	out := make([]domsvc.AnomalyScore, len(rows))
	for i, z := range peak {
		out[i] = domsvc.AnomalyScore{Outlier: z > cut, Raw: -z}
	}
	return out, nil
}

var (
	_ domsvc.YieldPredictor  = (*LinearYieldModel)(nil)
	_ domsvc.PriceForecaster = (*ARPriceModel)(nil)
	_ domsvc.AnomalyScorer   = (*ZScoreAnomalyModel)(nil)
)
