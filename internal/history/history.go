// Package history keeps a bounded in-memory window of recent readings.
// It backs the live dashboard history frame and the forecast fallback
// when the durable store is unreachable.
package history

import (
	"sync"

	"github.com/aeromon/aeromon/internal/types"
)

// Buffer is a thread-safe bounded FIFO of readings, oldest evicted first.
type Buffer struct {
	mu       sync.RWMutex
	readings []types.Reading
	capacity int
}

// NewBuffer creates a buffer holding at most capacity readings.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 20
	}
	return &Buffer{
		readings: make([]types.Reading, 0, capacity),
		capacity: capacity,
	}
}

// Add appends a reading, evicting the oldest when full.
func (b *Buffer) Add(r types.Reading) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.readings) >= b.capacity {
		b.readings = b.readings[1:]
	}
	b.readings = append(b.readings, r)
}

// Len returns the number of buffered readings.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.readings)
}

// Latest returns the most recent reading, if any.
func (b *Buffer) Latest() (types.Reading, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.readings) == 0 {
		return types.Reading{}, false
	}
	return b.readings[len(b.readings)-1], true
}

// All returns a copy of the buffered readings, oldest first.
func (b *Buffer) All() []types.Reading {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]types.Reading, len(b.readings))
	copy(out, b.readings)
	return out
}

// Series extracts the present values of one metric, oldest first.
func (b *Buffer) Series(metric string) []float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []float64
	for _, r := range b.readings {
		if v, ok := r.Metric(metric); ok {
			out = append(out, v)
		}
	}
	return out
}
