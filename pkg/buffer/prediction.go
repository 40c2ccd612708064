package buffer

import (
	"sort"
	"sync"

	"github.com/HatiCode/solwatch/pkg/telemetry"
)

// DefaultPredictionCapacity bounds the prediction history kept per device.
// The upstream collector never evicts predictions; the bound here keeps a
// long-running device from growing without limit while staying far above
// what the alignment window ever inspects.
const DefaultPredictionCapacity = 500

// PredictionBuffer is a bounded store of predictions for one device,
// sorted ascending by target time. Unlike SampleBuffer, multiple
// predictions may share a target time — each is a distinct forecast
// (different horizon or model revision) and all are retained.
//
// Among equal target times, ordering is by emission time ascending, so the
// most recently emitted forecast for a target sorts last.
type PredictionBuffer struct {
	mu          sync.RWMutex
	predictions []telemetry.Prediction
	capacity    int
}

// NewPredictionBuffer creates a buffer bounded at capacity predictions.
// A capacity <= 0 falls back to DefaultPredictionCapacity.
func NewPredictionBuffer(capacity int) *PredictionBuffer {
	if capacity <= 0 {
		capacity = DefaultPredictionCapacity
	}
	return &PredictionBuffer{capacity: capacity}
}

// Upsert inserts a prediction, keeping the collection sorted by target
// time (then emission time). Once the buffer exceeds its capacity the
// predictions with the smallest target times are evicted first, mirroring
// the sample buffer's oldest-first policy.
func (b *PredictionBuffer) Upsert(p telemetry.Prediction) {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := sort.Search(len(b.predictions), func(i int) bool {
		existing := b.predictions[i]
		if !existing.TargetAt.Equal(p.TargetAt) {
			return existing.TargetAt.After(p.TargetAt)
		}
		return existing.EmittedAt.After(p.EmittedAt)
	})

	b.predictions = append(b.predictions, telemetry.Prediction{})
	copy(b.predictions[idx+1:], b.predictions[idx:])
	b.predictions[idx] = p

	if overflow := len(b.predictions) - b.capacity; overflow > 0 {
		b.predictions = append(b.predictions[:0], b.predictions[overflow:]...)
	}
}

// All returns every buffered prediction in target-time order.
// The returned slice is a copy.
func (b *PredictionBuffer) All() []telemetry.Prediction {
	b.mu.RLock()
	defer b.mu.RUnlock()

	all := make([]telemetry.Prediction, len(b.predictions))
	copy(all, b.predictions)
	return all
}

// Len returns the number of buffered predictions.
func (b *PredictionBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.predictions)
}
