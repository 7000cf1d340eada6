package analytics

import (
	"context"
	"sync"

	"AgriCast/internal/domain/models"
	domsvc "AgriCast/internal/domain/service"
)

// Registry names used in health and info responses.
const (
	YieldModelName   = "yield_predictor"
	PriceModelName   = "price_forecaster"
	AnomalyModelName = "anomaly_detector"
)

// Handles is one complete generation of loaded models. A nil handle means
// that model is unavailable.
type Handles struct {
	Yield   *domsvc.YieldHandle
	Price   *domsvc.PriceHandle
	Anomaly *domsvc.AnomalyHandle
}

// LoadFunc produces a fresh generation of handles.
type LoadFunc func(ctx context.Context) Handles

// Registry holds the current model handles. Handles are immutable once
// published; Reload swaps in a whole new generation, so an inference that
// already fetched a handle keeps using it undisturbed.
type Registry struct {
	mu      sync.RWMutex
	handles Handles
	load    LoadFunc
}

// NewRegistry runs load once and publishes the result.
func NewRegistry(ctx context.Context, load LoadFunc) *Registry {
	r := &Registry{load: load}
	if load != nil {
		r.handles = load(ctx)
	}
	return r
}

// NewStaticRegistry publishes fixed handles; Reload is a no-op.
func NewStaticRegistry(h Handles) *Registry {
	return &Registry{handles: h}
}

func (r *Registry) Yield() (*domsvc.YieldHandle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.handles.Yield == nil {
		return nil, domsvc.ErrModelUnavailable
	}
	return r.handles.Yield, nil
}

func (r *Registry) Price() (*domsvc.PriceHandle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.handles.Price == nil {
		return nil, domsvc.ErrModelUnavailable
	}
	return r.handles.Price, nil
}

func (r *Registry) Anomaly() (*domsvc.AnomalyHandle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.handles.Anomaly == nil {
		return nil, domsvc.ErrModelUnavailable
	}
	return r.handles.Anomaly, nil
}

// Reload re-runs the load step and publishes the new generation.
func (r *Registry) Reload(ctx context.Context) map[string]bool {
	if r.load != nil {
		h := r.load(ctx)
		r.mu.Lock()
		r.handles = h
		r.mu.Unlock()
	}
	return r.Status()
}

// Status reports which models are loaded.
func (r *Registry) Status() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return map[string]bool{
		YieldModelName:   r.handles.Yield != nil,
		PriceModelName:   r.handles.Price != nil,
		AnomalyModelName: r.handles.Anomaly != nil,
	}
}

// Info returns the metadata of every model, loaded or not.
func (r *Registry) Info() map[string]models.ModelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := map[string]models.ModelInfo{
		YieldModelName:   {Name: YieldModelName},
		PriceModelName:   {Name: PriceModelName},
		AnomalyModelName: {Name: AnomalyModelName},
	}
	if h := r.handles.Yield; h != nil {
		out[YieldModelName] = h.Info
	}
	if h := r.handles.Price; h != nil {
		out[PriceModelName] = h.Info
	}
	if h := r.handles.Anomaly; h != nil {
		out[AnomalyModelName] = h.Info
	}
	return out
}
