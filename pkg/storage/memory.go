package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps the latest analytics snapshot per device in memory.
// It is safe for concurrent use by multiple goroutines.
//
// If a TTL is configured, a background goroutine periodically removes
// snapshots for devices that have gone quiet, so an unsubscribed device
// does not linger in the API forever. For multi-instance deployments use
// RedisStore instead.
type MemoryStore struct {
	mu            sync.RWMutex
	snapshots     map[string]Snapshot
	ttl           time.Duration
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	cleanupDone   chan struct{}
	stopped       bool
	stopMu        sync.Mutex
}

// NewMemoryStore creates an in-memory snapshot store with no TTL.
// Snapshots are kept until overwritten or explicitly deleted.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string]Snapshot),
	}
}

// NewMemoryStoreWithTTL creates an in-memory snapshot store with automatic
// TTL-based cleanup of stale device snapshots.
//
// The cleanup goroutine must be stopped with Stop() when the store is no
// longer needed. cleanupInterval defaults to one minute when <= 0.
func NewMemoryStoreWithTTL(ttl, cleanupInterval time.Duration) *MemoryStore {
	if ttl <= 0 {
		panic("TTL must be positive")
	}
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	store := &MemoryStore{
		snapshots:     make(map[string]Snapshot),
		ttl:           ttl,
		cleanupTicker: time.NewTicker(cleanupInterval),
		stopCleanup:   make(chan struct{}),
		cleanupDone:   make(chan struct{}),
	}

	go store.runCleanup()

	return store
}

// Stop shuts down the background cleanup goroutine. It blocks until the
// goroutine has exited. Calling Stop more than once, or on a store without
// TTL, is safe and does nothing.
func (s *MemoryStore) Stop() {
	if s.cleanupTicker == nil {
		return
	}

	s.stopMu.Lock()
	defer s.stopMu.Unlock()

	if s.stopped {
		return
	}

	close(s.stopCleanup)
	<-s.cleanupDone
	s.cleanupTicker.Stop()
	s.stopped = true
}

func (s *MemoryStore) runCleanup() {
	defer close(s.cleanupDone)

	for {
		select {
		case <-s.cleanupTicker.C:
			s.cleanup()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ttl == 0 {
		return
	}

	now := time.Now()
	for device, snapshot := range s.snapshots {
		if now.Sub(snapshot.GeneratedAt) > s.ttl {
			delete(s.snapshots, device)
		}
	}
}

// Put stores a snapshot for a device, replacing any existing one.
// Returns an error if the snapshot names no device or the context is done.
func (s *MemoryStore) Put(ctx context.Context, snapshot Snapshot) error {
	if snapshot.Device == "" {
		return fmt.Errorf("snapshot device cannot be empty")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[snapshot.Device] = snapshot
	return nil
}

// GetLatest retrieves the most recent snapshot for a device. found is
// false when the device has never published (or was cleaned up).
func (s *MemoryStore) GetLatest(ctx context.Context, device string) (Snapshot, bool, error) {
	select {
	case <-ctx.Done():
		return Snapshot{}, false, ctx.Err()
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, found := s.snapshots[device]
	return snapshot, found, nil
}

// Len returns the number of devices with a stored snapshot.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}

// Delete removes a device's snapshot, reporting whether one existed.
func (s *MemoryStore) Delete(device string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.snapshots[device]
	delete(s.snapshots, device)
	return existed
}
