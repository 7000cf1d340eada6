package analytics

import (
	"context"
	"fmt"
	"os"

	"AgriCast/internal/domain/models"
	domsvc "AgriCast/internal/domain/service"
	"AgriCast/internal/services/features"
	"AgriCast/pkg/config"
	applogger "AgriCast/pkg/logger"

	"gopkg.in/yaml.v3"
)

// Artifact is the on-disk descriptor of a model: its metadata plus the
// coefficients of the built-in model family it parameterizes.
type Artifact struct {
	models.ModelInfo `yaml:",inline"`
	Coefficients     struct {
		Intercept     float64   `yaml:"intercept"`
		Weights       []float64 `yaml:"weights"`
		Scale         float64   `yaml:"scale"`
		Drift         float64   `yaml:"drift"`
		OutlierZ      float64   `yaml:"outlier_z"`
		Contamination float64   `yaml:"contamination"`
	} `yaml:"coefficients"`
}

// ReadArtifact parses a model descriptor file.
func ReadArtifact(path string) (*Artifact, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	var a Artifact
	if err := yaml.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("parse artifact %s: %w", path, err)
	}
	return &a, nil
}

// Loader builds the three model handles from configuration. Remote mode
// (models.service_url) wins over artifacts; a missing artifact falls back to
// the built-in defaults unless models.strict is set.
type Loader struct {
	cfg      *config.ModelsConfig
	breakers BreakerObserver
	log      *applogger.Logger
}

// BreakerObserver is told whenever a remote model breaker opens or closes.
type BreakerObserver interface {
	RecordBreakerState(model string, open bool)
}

// NewLoader builds a loader; obs may be nil.
func NewLoader(cfg *config.Config, obs BreakerObserver, l *applogger.Logger) *Loader {
	return &Loader{cfg: &cfg.Models, breakers: obs, log: l.With(applogger.String("component", "model-loader"))}
}

// Load never fails as a whole: a handle that cannot be built is left nil and
// the registry reports it as unavailable.
func (l *Loader) Load(ctx context.Context) Handles {
	return Handles{
		Yield:   l.loadYield(),
		Price:   l.loadPrice(),
		Anomaly: l.loadAnomaly(),
	}
}

func (l *Loader) remote(name string) *HTTPServiceBase {
	return NewHTTPServiceBase(name, l.cfg.ServiceURL, l.cfg.Timeout, BreakerSettings{
		MaxFailures: l.cfg.Breaker.MaxFailures,
		OpenTimeout: l.cfg.Breaker.OpenTimeout,
		OnChange: func(name, from, to string) {
			l.log.Warn("model breaker state changed",
				applogger.String("model", name),
				applogger.String("from", from),
				applogger.String("to", to))
			if l.breakers != nil {
				l.breakers.RecordBreakerState(name, to == "open")
			}
		},
	})
}

// artifact reads path; ok=false means the caller must leave the handle unloaded.
func (l *Loader) artifact(kind, path string) (a *Artifact, ok bool) {
	a, err := ReadArtifact(path)
	if err == nil {
		l.log.Info("model artifact loaded", applogger.String("model", kind), applogger.String("path", path))
		return a, true
	}
	if l.cfg.Strict && l.cfg.ServiceURL == "" {
		l.log.Error("model artifact unavailable", applogger.String("model", kind), applogger.Error(err))
		return nil, false
	}
	l.log.Warn("model artifact unavailable, using built-in defaults",
		applogger.String("model", kind), applogger.String("path", path), applogger.Error(err))
	return nil, true
}

func (l *Loader) loadYield() *domsvc.YieldHandle {
	a, ok := l.artifact("yield", l.cfg.Yield.Path)
	if !ok {
		return nil
	}
	info := models.ModelInfo{
		Name:            "yield_predictor",
		Type:            "LSTM",
		SequenceLength:  l.cfg.Yield.SequenceLength,
		Features:        features.ClimateFeatures,
		Hyperparameters: map[string]float64{"lstm_units_1": 128, "lstm_units_2": 64, "lstm_units_3": 32, "dropout": 0.2},
	}
	model := DefaultYieldModel()
	if a != nil {
		mergeInfo(&info, a.ModelInfo)
		if len(a.Coefficients.Weights) > 0 {
			model = &LinearYieldModel{Intercept: a.Coefficients.Intercept, Weights: a.Coefficients.Weights}
		}
	}

	h := &domsvc.YieldHandle{Predictor: model, Info: info}
	if l.cfg.ServiceURL != "" {
		h.Predictor = NewHTTPYieldPredictor(l.remote(info.Name))
		h.Info.Source = l.cfg.ServiceURL
	} else {
		h.Info.Source = sourceOf(a, l.cfg.Yield.Path)
	}
	h.Info.Loaded = true
	return h
}

func (l *Loader) loadPrice() *domsvc.PriceHandle {
	a, ok := l.artifact("price", l.cfg.Price.Path)
	if !ok {
		return nil
	}
	info := models.ModelInfo{
		Name:            "price_forecaster",
		Type:            "Transformer",
		SequenceLength:  l.cfg.Price.SequenceLength,
		Features:        []string{"log_return"},
		Hyperparameters: map[string]float64{"num_heads": 8, "num_layers": 4, "d_model": 128},
	}
	model := DefaultPriceModel()
	if a != nil {
		mergeInfo(&info, a.ModelInfo)
		if len(a.Coefficients.Weights) > 0 {
			model = &ARPriceModel{Weights: a.Coefficients.Weights, Scale: a.Coefficients.Scale, Drift: a.Coefficients.Drift}
		}
	}

	h := &domsvc.PriceHandle{Predictor: model, Info: info}
	if l.cfg.ServiceURL != "" {
		h.Predictor = NewHTTPPriceForecaster(l.remote(info.Name))
		h.Info.Source = l.cfg.ServiceURL
	} else {
		h.Info.Source = sourceOf(a, l.cfg.Price.Path)
	}
	h.Info.Loaded = true
	return h
}

func (l *Loader) loadAnomaly() *domsvc.AnomalyHandle {
	a, ok := l.artifact("anomaly", l.cfg.Anomaly.Path)
	if !ok {
		return nil
	}
	info := models.ModelInfo{
		Name:            "anomaly_detector",
		Type:            "IsolationForest",
		Features:        features.AnomalyFeatures,
		Hyperparameters: map[string]float64{"contamination": l.cfg.Anomaly.Contamination, "n_estimators": 100},
	}
	model := DefaultAnomalyModel(l.cfg.Anomaly.Contamination)
	if a != nil {
		mergeInfo(&info, a.ModelInfo)
		if a.Coefficients.OutlierZ > 0 {
			model.OutlierZ = a.Coefficients.OutlierZ
		}
		if c := a.Coefficients.Contamination; c > 0 && c < 0.5 {
			model.Contamination = c
			info.Hyperparameters["contamination"] = c
		}
	}

	h := &domsvc.AnomalyHandle{Predictor: model, Info: info}
	if l.cfg.ServiceURL != "" {
		h.Predictor = NewHTTPAnomalyScorer(l.remote(info.Name))
		h.Info.Source = l.cfg.ServiceURL
	} else {
		h.Info.Source = sourceOf(a, l.cfg.Anomaly.Path)
	}
	h.Info.Loaded = true
	return h
}

// mergeInfo overlays non-empty descriptor metadata onto the defaults.
func mergeInfo(dst *models.ModelInfo, src models.ModelInfo) {
	if src.Name != "" {
		dst.Name = src.Name
	}
	if src.Type != "" {
		dst.Type = src.Type
	}
	if src.Version != "" {
		dst.Version = src.Version
	}
	if src.SequenceLength > 0 {
		dst.SequenceLength = src.SequenceLength
	}
	if len(src.Features) > 0 {
		dst.Features = src.Features
	}
	for k, v := range src.Hyperparameters {
		if dst.Hyperparameters == nil {
			dst.Hyperparameters = map[string]float64{}
		}
		dst.Hyperparameters[k] = v
	}
}

func sourceOf(a *Artifact, path string) string {
	if a == nil {
		return "builtin"
	}
	return path
}
