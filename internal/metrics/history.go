package metrics

import (
	"encoding/json"
	"sort"
	"sync"
)

// Metric names recorded by the trainer.
const (
	DLoss        = "D_loss"
	GLoss        = "G_loss"
	DAcc         = "D_acc"
	MSE          = "mse"
	PerEpochTime = "per_epoch_time"
	TotalTime    = "total_time"
)

// History is an append-only set of scalar series keyed by metric name. Only
// the owning trainer appends; readers (dashboard, plots) get copies.
type History struct {
	mu     sync.RWMutex
	series map[string][]float64
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{series: make(map[string][]float64)}
}

// Append adds v to the end of the named series.
func (h *History) Append(name string, v float64) {
	h.mu.Lock()
	h.series[name] = append(h.series[name], v)
	h.mu.Unlock()
}

// Values returns a copy of the named series.
func (h *History) Values(name string) []float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]float64(nil), h.series[name]...)
}

// Len returns the length of the named series.
func (h *History) Len(name string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.series[name])
}

// Last returns the most recent value of the named series.
func (h *History) Last(name string) (float64, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s := h.series[name]
	if len(s) == 0 {
		return 0, false
	}
	return s[len(s)-1], true
}

// Names lists the recorded series in sorted order.
func (h *History) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.series))
	for name := range h.series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MarshalJSON encodes the history as an object of name -> values.
// Non-finite values are written as strings (see Value).
func (h *History) MarshalJSON() ([]byte, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string][]Value, len(h.series))
	for name, s := range h.series {
		out[name] = Values(s)
	}
	return json.Marshal(out)
}

// UnmarshalJSON appends every series in b to h.
func (h *History) UnmarshalJSON(b []byte) error {
	var in map[string][]Value
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.series == nil {
		h.series = make(map[string][]float64, len(in))
	}
	for name, vs := range in {
		for _, v := range vs {
			h.series[name] = append(h.series[name], float64(v))
		}
	}
	return nil
}
