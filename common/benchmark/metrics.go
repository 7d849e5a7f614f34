package benchmark

import (
	"slices"
	"sync"
	"time"
)

// LatencyHistogram keeps every sample; workloads are bounded by an
// operation count so memory stays proportional to the run.
type LatencyHistogram struct {
	mu      sync.RWMutex
	samples []time.Duration
}

type LatencyStats struct {
	Count int
	Min   time.Duration
	Max   time.Duration
	Mean  time.Duration
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
	P999  time.Duration
}

func NewLatencyHistogram(capacity int) *LatencyHistogram {
	return &LatencyHistogram{
		samples: make([]time.Duration, 0, capacity),
	}
}

func (h *LatencyHistogram) Record(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples = append(h.samples, d)
}

func (h *LatencyHistogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples = h.samples[:0]
}

func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.RLock()
	copied := slices.Clone(h.samples)
	h.mu.RUnlock()

	if len(copied) == 0 {
		return LatencyStats{}
	}
	slices.Sort(copied)

	sum := time.Duration(0)
	for _, d := range copied {
		sum += d
	}

	n := len(copied)
	return LatencyStats{
		Count: n,
		Min:   copied[0],
		Max:   copied[n-1],
		Mean:  sum / time.Duration(n),
		P50:   copied[n*50/100],
		P95:   copied[n*95/100],
		P99:   copied[n*99/100],
		P999:  copied[n*999/1000],
	}
}
