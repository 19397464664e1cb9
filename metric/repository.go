package metric

import (
	"sync"

	"go.uber.org/atomic"
)

// Repository accumulates counters of a single render, or of a row range on a worker.
// It is safe for concurrent use.
type Repository interface {
	// AddRow counts a computed row of the given width.
	AddRow(width int)

	// AddBatch counts a batch of pixels received from the worker.
	AddBatch(workerID, pixels int)

	// SetBatches records the number of batches sent so far.
	SetBatches(n uint64)

	Collect() Metrics
}

type repository struct {
	mu       sync.RWMutex
	counters map[string]*atomic.Uint64
}

func NewRepository() Repository {
	return &repository{
		counters: make(map[string]*atomic.Uint64),
	}
}

func (r *repository) counter(name string) *atomic.Uint64 {
	r.mu.RLock()
	c, ok := r.counters[name]
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c = atomic.NewUint64(0)
	r.counters[name] = c
	return c
}

func (r *repository) AddRow(width int) {
	r.counter(RowsKey).Inc()
	r.counter(PixelsKey).Add(uint64(width))
}

func (r *repository) AddBatch(workerID, pixels int) {
	r.counter(BatchesKey).Inc()
	r.counter(WorkerPixelsKey(workerID)).Add(uint64(pixels))
}

func (r *repository) SetBatches(n uint64) {
	r.counter(BatchesKey).Store(n)
}

func (r *repository) Collect() Metrics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	metrics := make(Metrics, len(r.counters))
	for name, c := range r.counters {
		metrics[name] = c.Load()
	}
	return metrics
}
