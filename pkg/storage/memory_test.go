package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestNewMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	if store == nil {
		t.Fatal("NewMemoryStore() returned nil")
	}
	if store.Len() != 0 {
		t.Errorf("New store should be empty, got %d snapshots", store.Len())
	}
}

func TestMemoryStore_Put_Get(t *testing.T) {
	tests := []struct {
		name     string
		snapshot Snapshot
		wantErr  bool
	}{
		{
			name: "valid snapshot",
			snapshot: Snapshot{
				Device:             "panel-01",
				GeneratedAt:        time.Now(),
				SampleCount:        42,
				PredictionCount:    3,
				TrendChangePercent: -4.2,
			},
			wantErr: false,
		},
		{
			name: "empty device",
			snapshot: Snapshot{
				GeneratedAt: time.Now(),
				SampleCount: 42,
			},
			wantErr: true,
		},
		{
			name: "minimal valid snapshot",
			snapshot: Snapshot{
				Device: "minimal",
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()

			err := store.Put(context.Background(), tt.snapshot)
			if (err != nil) != tt.wantErr {
				t.Errorf("Put() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if tt.wantErr {
				return
			}

			got, found, err := store.GetLatest(context.Background(), tt.snapshot.Device)
			if err != nil {
				t.Errorf("GetLatest() unexpected error = %v", err)
				return
			}
			if !found {
				t.Errorf("GetLatest() found = false, want true")
				return
			}

			if got.Device != tt.snapshot.Device {
				t.Errorf("Device = %q, want %q", got.Device, tt.snapshot.Device)
			}
			if got.SampleCount != tt.snapshot.SampleCount {
				t.Errorf("SampleCount = %d, want %d", got.SampleCount, tt.snapshot.SampleCount)
			}
			if got.TrendChangePercent != tt.snapshot.TrendChangePercent {
				t.Errorf("TrendChangePercent = %v, want %v", got.TrendChangePercent, tt.snapshot.TrendChangePercent)
			}
		})
	}
}

func TestMemoryStore_GetLatest_NotFound(t *testing.T) {
	store := NewMemoryStore()

	snapshot, found, err := store.GetLatest(context.Background(), "nonexistent")
	if err != nil {
		t.Errorf("GetLatest() unexpected error = %v", err)
	}
	if found {
		t.Error("GetLatest() found = true for nonexistent device, want false")
	}
	if snapshot.Device != "" {
		t.Errorf("GetLatest() returned non-zero snapshot for nonexistent device")
	}
}

func TestMemoryStore_Put_Update(t *testing.T) {
	store := NewMemoryStore()
	device := "panel-01"

	snapshot1 := Snapshot{
		Device:      device,
		GeneratedAt: time.Now(),
		SampleCount: 10,
	}
	if err := store.Put(context.Background(), snapshot1); err != nil {
		t.Fatalf("Put() first snapshot error = %v", err)
	}

	snapshot2 := Snapshot{
		Device:      device,
		GeneratedAt: time.Now().Add(time.Minute),
		SampleCount: 11,
	}
	if err := store.Put(context.Background(), snapshot2); err != nil {
		t.Fatalf("Put() second snapshot error = %v", err)
	}

	got, found, err := store.GetLatest(context.Background(), device)
	if err != nil {
		t.Fatalf("GetLatest() error = %v", err)
	}
	if !found {
		t.Fatal("GetLatest() found = false, want true")
	}

	if got.SampleCount != 11 {
		t.Errorf("GetLatest() returned old snapshot, want updated one")
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d after update, want 1", store.Len())
	}
}

func TestMemoryStore_MultipleDevices(t *testing.T) {
	store := NewMemoryStore()

	devices := []string{"panel-01", "panel-02", "panel-03"}
	for _, device := range devices {
		snapshot := Snapshot{
			Device:      device,
			GeneratedAt: time.Now(),
			SampleCount: 1,
		}
		if err := store.Put(context.Background(), snapshot); err != nil {
			t.Fatalf("Put(%s) error = %v", device, err)
		}
	}

	if store.Len() != len(devices) {
		t.Errorf("Len() = %d, want %d", store.Len(), len(devices))
	}

	for _, device := range devices {
		got, found, err := store.GetLatest(context.Background(), device)
		if err != nil {
			t.Errorf("GetLatest(%s) error = %v", device, err)
		}
		if !found {
			t.Errorf("GetLatest(%s) found = false, want true", device)
		}
		if got.Device != device {
			t.Errorf("GetLatest(%s) returned device %q", device, got.Device)
		}
	}
}

func TestMemoryStore_Concurrent(t *testing.T) {
	store := NewMemoryStore()
	device := "panel-01"

	numGoroutines := 100
	numOperations := 100

	var wg sync.WaitGroup

	wg.Add(numGoroutines)
	for i := range numGoroutines {
		go func(id int) {
			defer wg.Done()
			for j := range numOperations {
				snapshot := Snapshot{
					Device:      device,
					GeneratedAt: time.Now(),
					SampleCount: id*numOperations + j,
				}
				if err := store.Put(context.Background(), snapshot); err != nil {
					t.Errorf("Concurrent Put() error = %v", err)
				}
			}
		}(i)
	}

	wg.Add(numGoroutines)
	for range numGoroutines {
		go func() {
			defer wg.Done()
			for range numOperations {
				_, _, err := store.GetLatest(context.Background(), device)
				if err != nil {
					t.Errorf("Concurrent GetLatest() error = %v", err)
				}
			}
		}()
	}

	wg.Wait()

	snapshot, found, err := store.GetLatest(context.Background(), device)
	if err != nil {
		t.Errorf("Final GetLatest() error = %v", err)
	}
	if !found {
		t.Error("Final GetLatest() found = false after concurrent operations")
	}
	if snapshot.Device != device {
		t.Errorf("Final snapshot has device %q, want %q", snapshot.Device, device)
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d after concurrent operations, want 1", store.Len())
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()

	snapshot := Snapshot{
		Device:      "panel-01",
		GeneratedAt: time.Now(),
	}
	if err := store.Put(context.Background(), snapshot); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if !store.Delete("panel-01") {
		t.Error("Delete() returned false, want true for existing device")
	}

	_, found, _ := store.GetLatest(context.Background(), "panel-01")
	if found {
		t.Error("GetLatest() found = true after delete, want false")
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d after delete, want 0", store.Len())
	}

	if store.Delete("nonexistent") {
		t.Error("Delete() returned true for nonexistent device, want false")
	}
}

func TestMemoryStoreWithTTL_Expiration(t *testing.T) {
	ttl := 100 * time.Millisecond
	cleanupInterval := 50 * time.Millisecond
	store := NewMemoryStoreWithTTL(ttl, cleanupInterval)
	defer store.Stop()

	snapshot := Snapshot{
		Device:      "panel-01",
		GeneratedAt: time.Now(),
	}
	if err := store.Put(context.Background(), snapshot); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	_, found, _ := store.GetLatest(context.Background(), "panel-01")
	if !found {
		t.Fatal("Snapshot should exist immediately after Put")
	}

	time.Sleep(ttl + cleanupInterval + 50*time.Millisecond)

	_, found, _ = store.GetLatest(context.Background(), "panel-01")
	if found {
		t.Error("Snapshot should be removed after TTL expiration")
	}
	if store.Len() != 0 {
		t.Errorf("Store should be empty after cleanup, got %d snapshots", store.Len())
	}
}

func TestMemoryStoreWithTTL_MultipleSnapshots(t *testing.T) {
	ttl := 200 * time.Millisecond
	cleanupInterval := 50 * time.Millisecond
	store := NewMemoryStoreWithTTL(ttl, cleanupInterval)
	defer store.Stop()

	quiet := Snapshot{
		Device:      "quiet",
		GeneratedAt: time.Now().Add(-300 * time.Millisecond), // already expired
	}
	if err := store.Put(context.Background(), quiet); err != nil {
		t.Fatalf("Put(quiet) error = %v", err)
	}

	fresh := Snapshot{
		Device:      "fresh",
		GeneratedAt: time.Now(),
	}
	if err := store.Put(context.Background(), fresh); err != nil {
		t.Fatalf("Put(fresh) error = %v", err)
	}

	time.Sleep(cleanupInterval + 50*time.Millisecond)

	_, found, _ := store.GetLatest(context.Background(), "quiet")
	if found {
		t.Error("Quiet device's snapshot should be removed")
	}

	_, found, _ = store.GetLatest(context.Background(), "fresh")
	if !found {
		t.Error("Fresh snapshot should still exist")
	}
	if store.Len() != 1 {
		t.Errorf("Store should have 1 snapshot, got %d", store.Len())
	}
}

func TestMemoryStoreWithTTL_Stop(t *testing.T) {
	store := NewMemoryStoreWithTTL(time.Minute, time.Second)

	if err := store.Put(context.Background(), Snapshot{
		Device:      "panel-01",
		GeneratedAt: time.Now(),
	}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		store.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not complete within timeout")
	}

	// Calling Stop again should be safe
	store.Stop()
}

func TestMemoryStore_StopWithoutTTL(t *testing.T) {
	store := NewMemoryStore()

	store.Stop()

	err := store.Put(context.Background(), Snapshot{Device: "panel-01"})
	if err != nil {
		t.Errorf("Put() after Stop() error = %v", err)
	}
}

func TestMemoryStoreWithTTL_PanicOnInvalidTTL(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewMemoryStoreWithTTL should panic with zero TTL")
		}
	}()

	NewMemoryStoreWithTTL(0, time.Second)
}

func TestMemoryStoreWithTTL_DefaultCleanupInterval(t *testing.T) {
	store := NewMemoryStoreWithTTL(time.Minute, 0)
	defer store.Stop()

	if store.cleanupTicker == nil {
		t.Error("Cleanup ticker should be initialized")
	}
}

func TestMemoryStoreWithTTL_UpdateResetsTTL(t *testing.T) {
	ttl := 200 * time.Millisecond
	cleanupInterval := 50 * time.Millisecond
	store := NewMemoryStoreWithTTL(ttl, cleanupInterval)
	defer store.Stop()

	device := "panel-01"

	if err := store.Put(context.Background(), Snapshot{
		Device:      device,
		GeneratedAt: time.Now().Add(-250 * time.Millisecond),
		SampleCount: 1,
	}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	time.Sleep(cleanupInterval + 20*time.Millisecond)

	if err := store.Put(context.Background(), Snapshot{
		Device:      device,
		GeneratedAt: time.Now(),
		SampleCount: 2,
	}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	time.Sleep(cleanupInterval + 20*time.Millisecond)

	snapshot, found, _ := store.GetLatest(context.Background(), device)
	if !found {
		t.Error("Updated snapshot should still exist")
	}
	if snapshot.SampleCount != 2 {
		t.Error("Should have the updated snapshot data")
	}
}

func TestMemoryStoreWithTTL_ConcurrentWithCleanup(t *testing.T) {
	ttl := 200 * time.Millisecond
	cleanupInterval := 30 * time.Millisecond
	store := NewMemoryStoreWithTTL(ttl, cleanupInterval)
	defer store.Stop()

	var wg sync.WaitGroup
	numGoroutines := 50

	wg.Add(numGoroutines)
	for i := range numGoroutines {
		go func(id int) {
			defer wg.Done()
			device := fmt.Sprintf("panel-%d", id)

			for range 20 {
				if err := store.Put(context.Background(), Snapshot{
					Device:      device,
					GeneratedAt: time.Now(),
				}); err != nil {
					t.Errorf("Put(%s) error = %v", device, err)
				}

				if _, _, err := store.GetLatest(context.Background(), device); err != nil {
					t.Errorf("GetLatest(%s) error = %v", device, err)
				}

				time.Sleep(10 * time.Millisecond)
			}
		}(i)
	}

	wg.Wait()

	// No crashes = success; fresh snapshots should survive
	if store.Len() != numGoroutines {
		t.Logf("Warning: Expected %d snapshots, got %d (some may have expired during test)", numGoroutines, store.Len())
	}
}

func BenchmarkMemoryStore_ConcurrentAccess(b *testing.B) {
	store := NewMemoryStore()
	devices := []string{"panel-01", "panel-02", "panel-03"}

	for _, d := range devices {
		if err := store.Put(context.Background(), Snapshot{
			Device:      d,
			GeneratedAt: time.Now(),
		}); err != nil {
			b.Fatalf("Put() error = %v", err)
		}
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			device := devices[i%len(devices)]
			if i%2 == 0 {
				if err := store.Put(context.Background(), Snapshot{
					Device:      device,
					GeneratedAt: time.Now(),
					SampleCount: i,
				}); err != nil {
					_ = err
				}
			} else {
				if _, _, err := store.GetLatest(context.Background(), device); err != nil {
					_ = err
				}
			}
			i++
		}
	})
}
