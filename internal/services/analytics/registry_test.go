package analytics

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	domsvc "AgriCast/internal/domain/service"
	"AgriCast/pkg/config"
	applogger "AgriCast/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticRegistryReportsUnavailable(t *testing.T) {
	r := NewStaticRegistry(Handles{
		Price: &domsvc.PriceHandle{Predictor: DefaultPriceModel()},
	})

	_, err := r.Yield()
	assert.ErrorIs(t, err, domsvc.ErrModelUnavailable)
	_, err = r.Anomaly()
	assert.ErrorIs(t, err, domsvc.ErrModelUnavailable)

	h, err := r.Price()
	require.NoError(t, err)
	assert.NotNil(t, h.Predictor)

	assert.Equal(t, map[string]bool{
		YieldModelName:   false,
		PriceModelName:   true,
		AnomalyModelName: false,
	}, r.Status())
}

func TestRegistryReloadSwapsGeneration(t *testing.T) {
	calls := 0
	r := NewRegistry(context.Background(), func(context.Context) Handles {
		calls++
		if calls == 1 {
			return Handles{}
		}
		return Handles{Yield: &domsvc.YieldHandle{Predictor: DefaultYieldModel()}}
	})

	_, err := r.Yield()
	require.ErrorIs(t, err, domsvc.ErrModelUnavailable)

	status := r.Reload(context.Background())
	assert.True(t, status[YieldModelName])
	_, err = r.Yield()
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	dir := t.TempDir()
	cfg.Models.Yield.Path = filepath.Join(dir, "yield.yaml")
	cfg.Models.Price.Path = filepath.Join(dir, "price.yaml")
	cfg.Models.Anomaly.Path = filepath.Join(dir, "anomaly.yaml")
	return cfg
}

func TestLoaderFallsBackToBuiltins(t *testing.T) {
	cfg := testConfig(t)
	h := NewLoader(cfg, nil, applogger.Nop()).Load(context.Background())

	require.NotNil(t, h.Yield)
	require.NotNil(t, h.Price)
	require.NotNil(t, h.Anomaly)
	assert.Equal(t, "builtin", h.Yield.Info.Source)
	assert.Equal(t, 30, h.Yield.Info.SequenceLength)
	assert.Equal(t, 60, h.Price.Info.SequenceLength)
	assert.True(t, h.Anomaly.Info.Loaded)
}

func TestLoaderStrictLeavesMissingModelsUnloaded(t *testing.T) {
	cfg := testConfig(t)
	cfg.Models.Strict = true

	artifact := []byte(`
name: price_forecaster
type: Transformer
version: "2024.1"
sequence_length: 45
coefficients:
  weights: [0.5, 0.25]
  scale: 0.02
  drift: 0.001
`)
	require.NoError(t, os.WriteFile(cfg.Models.Price.Path, artifact, 0o600))

	r := NewRegistry(context.Background(), NewLoader(cfg, nil, applogger.Nop()).Load)
	assert.Equal(t, map[string]bool{
		YieldModelName:   false,
		PriceModelName:   true,
		AnomalyModelName: false,
	}, r.Status())

	h, err := r.Price()
	require.NoError(t, err)
	assert.Equal(t, 45, h.Info.SequenceLength)
	assert.Equal(t, "2024.1", h.Info.Version)
	assert.Equal(t, cfg.Models.Price.Path, h.Info.Source)

	ar, ok := h.Predictor.(*ARPriceModel)
	require.True(t, ok)
	assert.Equal(t, []float64{0.5, 0.25}, ar.Weights)
}
