package usecase

import (
	"context"
	"sync"

	"AgriCast/internal/domain/models"
	domsvc "AgriCast/internal/domain/service"
)

type priceSource struct {
	h   *domsvc.PriceHandle
	err error
}

func (s priceSource) Price() (*domsvc.PriceHandle, error) { return s.h, s.err }

type anomalySource struct {
	h   *domsvc.AnomalyHandle
	err error
}

func (s anomalySource) Anomaly() (*domsvc.AnomalyHandle, error) { return s.h, s.err }

type yieldSource struct {
	h   *domsvc.YieldHandle
	err error
}

func (s yieldSource) Yield() (*domsvc.YieldHandle, error) { return s.h, s.err }

// returnsForecaster answers every call with the next return in line and
// remembers the sequences it saw.
type returnsForecaster struct {
	returns []float64
	err     error
	seen    [][]float64
}

func (f *returnsForecaster) Forecast(_ context.Context, seq []float64) (float64, error) {
	f.seen = append(f.seen, append([]float64(nil), seq...))
	if f.err != nil {
		return 0, f.err
	}
	r := f.returns[0]
	if len(f.returns) > 1 {
		f.returns = f.returns[1:]
	}
	return r, nil
}

type fixedScorer struct {
	scores []domsvc.AnomalyScore
	err    error
}

func (f fixedScorer) Score(_ context.Context, rows [][]float64) ([]domsvc.AnomalyScore, error) {
	return f.scores, f.err
}

func rawScores(raw ...float64) []domsvc.AnomalyScore {
	out := make([]domsvc.AnomalyScore, len(raw))
	for i, r := range raw {
		out[i] = domsvc.AnomalyScore{Raw: r}
	}
	return out
}

type capturePredictor struct {
	pred   float64
	err    error
	window [][]float64
}

func (p *capturePredictor) Predict(_ context.Context, w [][]float64) (float64, error) {
	p.window = w
	return p.pred, p.err
}

type recordingEvents struct {
	mu     sync.Mutex
	events []models.JobEvent
}

func (r *recordingEvents) PublishJobEvent(_ context.Context, ev models.JobEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingEvents) statuses() []models.JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.JobStatus, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Status
	}
	return out
}

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }
