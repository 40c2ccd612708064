// Package buffer provides the bounded in-memory history stores the
// analytics pipeline operates over: a deduplicating, timestamp-sorted
// sample buffer and a target-time-sorted prediction buffer.
//
// Both buffers hold history for exactly one device and are safe for
// concurrent use by multiple goroutines. Reads always return copies, never
// live slices, so consumers can hold results across subsequent mutations.
package buffer

import (
	"sort"
	"sync"

	"github.com/HatiCode/solwatch/pkg/telemetry"
)

// DefaultSampleCapacity bounds the sample history kept per device.
const DefaultSampleCapacity = 300

// SampleBuffer is a bounded, timestamp-sorted store of telemetry samples
// for one device. Two invariants hold after every mutation:
//
//   - entries are sorted ascending by timestamp with no duplicates
//     (equal-timestamp upserts are last-write-wins)
//   - len <= capacity, enforced by evicting the oldest entries first
type SampleBuffer struct {
	mu       sync.RWMutex
	samples  []telemetry.Sample
	capacity int
}

// NewSampleBuffer creates a buffer bounded at capacity samples.
// A capacity <= 0 falls back to DefaultSampleCapacity.
func NewSampleBuffer(capacity int) *SampleBuffer {
	if capacity <= 0 {
		capacity = DefaultSampleCapacity
	}
	return &SampleBuffer{
		samples:  make([]telemetry.Sample, 0, capacity),
		capacity: capacity,
	}
}

// Upsert inserts a sample, replacing any existing sample with an equal
// timestamp, then evicts from the front until the buffer fits its capacity.
// It never fails; validation of the sample happens at the ingest boundary.
func (b *SampleBuffer) Upsert(sample telemetry.Sample) {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := sort.Search(len(b.samples), func(i int) bool {
		return !b.samples[i].Timestamp.Before(sample.Timestamp)
	})

	if idx < len(b.samples) && b.samples[idx].Timestamp.Equal(sample.Timestamp) {
		b.samples[idx] = sample
		return
	}

	b.samples = append(b.samples, telemetry.Sample{})
	copy(b.samples[idx+1:], b.samples[idx:])
	b.samples[idx] = sample

	if overflow := len(b.samples) - b.capacity; overflow > 0 {
		b.samples = append(b.samples[:0], b.samples[overflow:]...)
	}
}

// Window returns the last n samples in timestamp order, or fewer if the
// buffer holds fewer. The returned slice is a copy.
func (b *SampleBuffer) Window(n int) []telemetry.Sample {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n <= 0 {
		return nil
	}
	if n > len(b.samples) {
		n = len(b.samples)
	}
	window := make([]telemetry.Sample, n)
	copy(window, b.samples[len(b.samples)-n:])
	return window
}

// Snapshot returns the full buffered history in timestamp order.
// The returned slice is a copy.
func (b *SampleBuffer) Snapshot() []telemetry.Sample {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snapshot := make([]telemetry.Sample, len(b.samples))
	copy(snapshot, b.samples)
	return snapshot
}

// Latest returns the most recent sample, if any.
func (b *SampleBuffer) Latest() (telemetry.Sample, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.samples) == 0 {
		return telemetry.Sample{}, false
	}
	return b.samples[len(b.samples)-1], true
}

// Len returns the number of buffered samples.
func (b *SampleBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.samples)
}
