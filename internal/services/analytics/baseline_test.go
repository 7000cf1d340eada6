package analytics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearYieldModelZeroWindowIsIntercept(t *testing.T) {
	m := DefaultYieldModel()
	window := make([][]float64, 30)
	for i := range window {
		window[i] = make([]float64, 6)
	}
	got, err := m.Predict(context.Background(), window)
	require.NoError(t, err)
	assert.InDelta(t, m.Intercept, got, 1e-12)
}

func TestLinearYieldModelNeverNegative(t *testing.T) {
	m := &LinearYieldModel{Intercept: -5, Weights: []float64{1}}
	got, err := m.Predict(context.Background(), [][]float64{{0.5}})
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestARPriceModelUsesMostRecentReturns(t *testing.T) {
	m := &ARPriceModel{Weights: []float64{1, 0.5}, Scale: 0.1, Drift: 0.01}
	got, err := m.Forecast(context.Background(), []float64{9, 2, 4})
	require.NoError(t, err)
	assert.InDelta(t, 0.01+0.1*(4+0.5*2), got, 1e-12)

	got, err = m.Forecast(context.Background(), nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.01, got, 1e-12)
}

func TestZScoreAnomalyModelFlagsSpike(t *testing.T) {
	rows := make([][]float64, 20)
	for i := range rows {
		rows[i] = []float64{50, 0, 0}
	}
	rows[12][0] = 500

	scores, err := DefaultAnomalyModel(0.1).Score(context.Background(), rows)
	require.NoError(t, err)
	require.Len(t, scores, 20)

	for i, s := range scores {
		if i == 12 {
			assert.True(t, s.Outlier)
			continue
		}
		assert.False(t, s.Outlier, "row %d", i)
		assert.Greater(t, s.Raw, scores[12].Raw)
	}
}

func TestZScoreAnomalyModelConstantBatch(t *testing.T) {
	rows := make([][]float64, 10)
	for i := range rows {
		rows[i] = []float64{50, 0, 0, float64(i)}
	}
	scores, err := DefaultAnomalyModel(0.1).Score(context.Background(), rows)
	require.NoError(t, err)
	for _, s := range scores {
		assert.False(t, s.Outlier)
		assert.Equal(t, scores[0].Raw, s.Raw)
	}
}

func TestBaselinesHonorCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := DefaultYieldModel().Predict(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = DefaultPriceModel().Forecast(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = DefaultAnomalyModel(0.1).Score(ctx, [][]float64{{1}})
	assert.ErrorIs(t, err, context.Canceled)
}
