package analyzer

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/HatiCode/solwatch/pkg/storage"
)

func TestManager_GetOrCreate(t *testing.T) {
	m := NewManager(Options{Store: storage.NewMemoryStore()})

	a := m.GetOrCreate("panel-01")
	if a == nil {
		t.Fatal("expected an analyzer")
	}
	if a.Device() != "panel-01" {
		t.Errorf("Device() = %q", a.Device())
	}
	if again := m.GetOrCreate("panel-01"); again != a {
		t.Error("GetOrCreate must return the same analyzer for the same device")
	}
	if other := m.GetOrCreate("panel-02"); other == a {
		t.Error("distinct devices must get distinct analyzers")
	}
}

func TestManager_GetOrCreate_Concurrent(t *testing.T) {
	m := NewManager(Options{Store: storage.NewMemoryStore()})

	const workers = 16
	results := make([]*Analyzer, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = m.GetOrCreate("panel-01")
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if results[i] != results[0] {
			t.Fatal("concurrent GetOrCreate produced different analyzers")
		}
	}
}

func TestManager_Remove(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewManager(Options{Store: store})

	a := m.GetOrCreate("panel-01")

	if !m.Remove("panel-01") {
		t.Error("Remove should report the device was known")
	}
	if m.Remove("panel-01") {
		t.Error("second Remove should report unknown")
	}
	if _, ok := m.Get("panel-01"); ok {
		t.Error("removed device should not be retrievable")
	}

	// The closed analyzer must ignore late deliveries.
	a.IngestLatest(context.Background(), samplePayload("2026-08-01T12:00:00Z", 13.4))
	if _, found, _ := store.GetLatest(context.Background(), "panel-01"); found {
		t.Error("ingest on a removed analyzer must not publish")
	}
}

func TestManager_Devices(t *testing.T) {
	m := NewManager(Options{Store: storage.NewMemoryStore()})
	m.GetOrCreate("panel-02")
	m.GetOrCreate("panel-01")

	devices := m.Devices()
	sort.Strings(devices)

	if len(devices) != 2 || devices[0] != "panel-01" || devices[1] != "panel-02" {
		t.Errorf("Devices() = %v", devices)
	}
}

func TestManager_Close(t *testing.T) {
	m := NewManager(Options{Store: storage.NewMemoryStore()})
	m.GetOrCreate("panel-01")
	m.GetOrCreate("panel-02")

	m.Close()

	if len(m.Devices()) != 0 {
		t.Errorf("Devices() after Close = %v, want none", m.Devices())
	}
}
