package store

import (
	"errors"
	"sync"
	"time"

	"agroforecast/internal/forecast"
)

// ErrNoForecast is returned when nothing has been published yet.
var ErrNoForecast = errors.New("no published forecast")

// Run is one published pipeline result: the enriched forecast records
// plus run metadata. Consumers must treat it as read-only.
type Run struct {
	PublishedAt time.Time         `json:"published_at"`
	BaseDate    time.Time         `json:"base_date"`
	Records     []forecast.Record `json:"forecasts"`
	RMSE        float64           `json:"rmse,omitempty"`
	MAE         float64           `json:"mae,omitempty"`
	Retrained   bool              `json:"retrained"`
}

// Publisher is a concurrency-safe holder of published forecast runs. The
// pipeline writes, the dashboard reads; retention is by run count.
type Publisher struct {
	mu sync.RWMutex

	runs       []Run
	maxHistory int
}

// NewPublisher creates a publisher keeping at most maxHistory runs
// (<= 0 means unlimited).
func NewPublisher(maxHistory int) *Publisher {
	return &Publisher{maxHistory: maxHistory}
}

// Publish appends a run and enforces retention.
func (p *Publisher) Publish(run Run) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.runs = append(p.runs, run)
	if p.maxHistory > 0 && len(p.runs) > p.maxHistory {
		over := len(p.runs) - p.maxHistory
		p.runs = p.runs[over:]
	}
}

// Latest returns the most recently published run.
func (p *Publisher) Latest() (Run, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.runs) == 0 {
		return Run{}, ErrNoForecast
	}
	return p.runs[len(p.runs)-1], nil
}

// History returns all retained runs, oldest first.
func (p *Publisher) History() []Run {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Run, len(p.runs))
	copy(out, p.runs)
	return out
}
