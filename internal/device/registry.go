package device

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/aquasense/waterquality-server/internal/database"
)

// Source loads device records. *database.DB satisfies it.
type Source interface {
	GetDevice(ctx context.Context, deviceID string) (*database.Device, error)
}

type cachedName struct {
	name     string
	loadedAt time.Time
}

// Registry resolves device names for alert enrichment. Lookups are cached
// with a TTL; a missing or failing lookup is non-fatal and yields an
// empty name.
type Registry struct {
	source Source
	cache  map[string]cachedName
	mu     sync.RWMutex
	ttl    time.Duration
}

// NewRegistry creates a device registry with the given cache TTL
func NewRegistry(source Source, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Registry{
		source: source,
		cache:  make(map[string]cachedName),
		ttl:    ttl,
	}
}

// DeviceName returns the registered name for a device, or "" when the
// device is unknown or the lookup fails.
func (r *Registry) DeviceName(ctx context.Context, deviceID string) string {
	r.mu.RLock()
	cached, ok := r.cache[deviceID]
	r.mu.RUnlock()

	if ok && time.Since(cached.loadedAt) < r.ttl {
		return cached.name
	}

	device, err := r.source.GetDevice(ctx, deviceID)
	if err != nil {
		log.Printf("Device lookup failed for %s: %v", deviceID, err)
		if ok {
			// Serve the stale name rather than dropping enrichment
			return cached.name
		}
		return ""
	}

	name := ""
	if device != nil {
		name = device.Name
	}

	r.mu.Lock()
	r.cache[deviceID] = cachedName{name: name, loadedAt: time.Now()}
	r.mu.Unlock()

	return name
}

// CacheSize returns the number of cached device names
func (r *Registry) CacheSize() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}
