package cooldown

import (
	"context"
	"sync"
	"time"

	"github.com/aquasense/waterquality-server/internal/store"
)

// MemoryRegistry tracks suppression windows in process memory. Expired
// entries are dropped lazily on read. Suitable for single-process
// deployments and tests; multi-instance deployments use RedisRegistry.
type MemoryRegistry struct {
	entries map[string]*Entry
	mu      sync.RWMutex
	policy  Policy
	now     func() time.Time
}

// NewMemoryRegistry creates an in-memory cooldown registry
func NewMemoryRegistry(policy Policy) *MemoryRegistry {
	return &MemoryRegistry{
		entries: make(map[string]*Entry),
		policy:  policy,
		now:     time.Now,
	}
}

// IsSuppressed returns the entry protecting a (device, parameter) pair,
// or nil when no suppression window is active.
func (m *MemoryRegistry) IsSuppressed(ctx context.Context, deviceID string, parameter store.Parameter) (*Entry, error) {
	key := entryKey(deviceID, parameter)

	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, nil
	}

	if entry.Expired(m.now()) {
		m.mu.Lock()
		// Re-check under the write lock; a fresh window may have been
		// claimed since the read.
		if current, ok := m.entries[key]; ok && current.Expired(m.now()) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, nil
	}

	return entry, nil
}

// Start claims a fresh suppression window for a (device, parameter) pair.
// Returns false when a live window already exists.
func (m *MemoryRegistry) Start(ctx context.Context, deviceID string, parameter store.Parameter, severity store.Severity, alertID string) (bool, error) {
	key := entryKey(deviceID, parameter)
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.entries[key]; ok && !existing.Expired(now) {
		return false, nil
	}

	m.entries[key] = &Entry{
		DeviceID:  deviceID,
		Parameter: parameter,
		Severity:  severity,
		AlertID:   alertID,
		ExpiresAt: now.Add(m.policy.DurationFor(severity)),
	}

	return true, nil
}

// Refresh replaces the suppression window for a pair, keyed by the new
// severity's duration.
func (m *MemoryRegistry) Refresh(ctx context.Context, deviceID string, parameter store.Parameter, severity store.Severity, alertID string) error {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[entryKey(deviceID, parameter)] = &Entry{
		DeviceID:  deviceID,
		Parameter: parameter,
		Severity:  severity,
		AlertID:   alertID,
		ExpiresAt: now.Add(m.policy.DurationFor(severity)),
	}

	return nil
}

// Len returns the number of tracked windows, including expired ones not
// yet dropped.
func (m *MemoryRegistry) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
