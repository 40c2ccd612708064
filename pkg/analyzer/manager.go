package analyzer

import (
	"sync"
)

// Manager creates and tracks one Analyzer per device. Devices are
// independent: each has its own buffers and lock, so ingest for different
// devices proceeds in parallel with no shared mutable state.
type Manager struct {
	mu        sync.RWMutex
	analyzers map[string]*Analyzer
	opts      Options
}

// NewManager creates a manager that builds analyzers with the given
// options.
func NewManager(opts Options) *Manager {
	return &Manager{
		analyzers: make(map[string]*Analyzer),
		opts:      opts,
	}
}

// GetOrCreate returns the analyzer for a device, creating it on first
// sight.
func (m *Manager) GetOrCreate(device string) *Analyzer {
	m.mu.RLock()
	a, ok := m.analyzers[device]
	m.mu.RUnlock()
	if ok {
		return a
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if a, ok := m.analyzers[device]; ok {
		return a
	}
	a = New(device, m.opts)
	m.analyzers[device] = a
	return a
}

// Get returns the analyzer for a device, if one exists.
func (m *Manager) Get(device string) (*Analyzer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.analyzers[device]
	return a, ok
}

// Remove closes and forgets a device's analyzer, releasing its buffers.
// Reports whether the device was known.
func (m *Manager) Remove(device string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.analyzers[device]
	if !ok {
		return false
	}
	a.Close()
	delete(m.analyzers, device)
	return true
}

// Devices returns the identifiers of all tracked devices.
func (m *Manager) Devices() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	devices := make([]string, 0, len(m.analyzers))
	for device := range m.analyzers {
		devices = append(devices, device)
	}
	return devices
}

// Close closes every analyzer. The manager must not be used afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for device, a := range m.analyzers {
		a.Close()
		delete(m.analyzers, device)
	}
}
