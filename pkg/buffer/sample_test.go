package buffer

import (
	"testing"
	"time"

	"github.com/HatiCode/solwatch/pkg/telemetry"
)

func sampleAt(ts time.Time, voltage float64) telemetry.Sample {
	return telemetry.Sample{
		Timestamp:   ts,
		Voltage:     voltage,
		Temperature: 25,
		Humidity:    50,
		PanelAngle:  30,
	}
}

func TestSampleBuffer_UpsertKeepsSortedUnique(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	b := NewSampleBuffer(10)

	// Deliberately out of order, with one duplicate timestamp.
	for _, offset := range []int{3, 0, 2, 1, 2} {
		b.Upsert(sampleAt(base.Add(time.Duration(offset)*time.Minute), float64(offset)))
	}

	snapshot := b.Snapshot()
	if len(snapshot) != 4 {
		t.Fatalf("expected 4 unique samples, got %d", len(snapshot))
	}
	for i := 1; i < len(snapshot); i++ {
		if !snapshot[i-1].Timestamp.Before(snapshot[i].Timestamp) {
			t.Errorf("snapshot not strictly sorted at index %d: %v >= %v",
				i, snapshot[i-1].Timestamp, snapshot[i].Timestamp)
		}
	}
}

func TestSampleBuffer_LastWriteWins(t *testing.T) {
	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	b := NewSampleBuffer(10)

	b.Upsert(sampleAt(ts, 13.0))
	b.Upsert(sampleAt(ts, 14.5))

	snapshot := b.Snapshot()
	if len(snapshot) != 1 {
		t.Fatalf("expected 1 sample after duplicate upsert, got %d", len(snapshot))
	}
	if snapshot[0].Voltage != 14.5 {
		t.Errorf("voltage = %v, want 14.5 (last write wins)", snapshot[0].Voltage)
	}
}

func TestSampleBuffer_IdempotentReingest(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	b := NewSampleBuffer(10)

	s := sampleAt(base, 13.2)
	b.Upsert(s)
	before := b.Snapshot()

	b.Upsert(s)
	after := b.Snapshot()

	if len(before) != len(after) {
		t.Fatalf("re-ingest changed length: %d -> %d", len(before), len(after))
	}
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("re-ingest changed sample %d: %+v != %+v", i, before[i], after[i])
		}
	}
}

func TestSampleBuffer_CapacityBound(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	capacity := 5
	b := NewSampleBuffer(capacity)

	for i := 0; i < 20; i++ {
		b.Upsert(sampleAt(base.Add(time.Duration(i)*time.Minute), float64(i)))
		if b.Len() > capacity {
			t.Fatalf("buffer exceeded capacity after upsert %d: len=%d", i, b.Len())
		}
	}

	// Oldest evicted first: the survivors are the 5 newest.
	snapshot := b.Snapshot()
	if got := snapshot[0].Voltage; got != 15 {
		t.Errorf("oldest surviving sample voltage = %v, want 15", got)
	}
	if got := snapshot[len(snapshot)-1].Voltage; got != 19 {
		t.Errorf("newest sample voltage = %v, want 19", got)
	}
}

func TestSampleBuffer_Window(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	b := NewSampleBuffer(100)
	for i := 0; i < 10; i++ {
		b.Upsert(sampleAt(base.Add(time.Duration(i)*time.Minute), float64(i)))
	}

	tests := []struct {
		name    string
		n       int
		wantLen int
		first   float64
	}{
		{"smaller than buffer", 3, 3, 7},
		{"exact size", 10, 10, 0},
		{"larger than buffer", 50, 10, 0},
		{"zero", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			window := b.Window(tt.n)
			if len(window) != tt.wantLen {
				t.Fatalf("Window(%d) len = %d, want %d", tt.n, len(window), tt.wantLen)
			}
			if tt.wantLen > 0 && window[0].Voltage != tt.first {
				t.Errorf("Window(%d)[0].Voltage = %v, want %v", tt.n, window[0].Voltage, tt.first)
			}
		})
	}
}

func TestSampleBuffer_SnapshotIsCopy(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	b := NewSampleBuffer(10)
	b.Upsert(sampleAt(base, 13))

	snapshot := b.Snapshot()
	snapshot[0].Voltage = 99

	if got, _ := b.Latest(); got.Voltage != 13 {
		t.Errorf("mutating snapshot leaked into buffer: voltage = %v", got.Voltage)
	}
}

func TestSampleBuffer_Latest(t *testing.T) {
	b := NewSampleBuffer(10)
	if _, ok := b.Latest(); ok {
		t.Fatal("Latest() on empty buffer reported ok")
	}

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	b.Upsert(sampleAt(base, 1))
	b.Upsert(sampleAt(base.Add(time.Minute), 2))
	// Old point arriving late must not displace the latest.
	b.Upsert(sampleAt(base.Add(-time.Minute), 0))

	latest, ok := b.Latest()
	if !ok || latest.Voltage != 2 {
		t.Errorf("Latest() = %v, %v; want voltage 2", latest.Voltage, ok)
	}
}
