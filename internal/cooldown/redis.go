package cooldown

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aquasense/waterquality-server/internal/store"
)

// RedisRegistry tracks suppression windows in Redis. Expiry is delegated
// to key TTLs, and Start uses SET NX so two concurrent violations for the
// same pair cannot both claim a fresh window.
type RedisRegistry struct {
	redis  *redis.Client
	policy Policy
}

// NewRedisRegistry creates a Redis-backed cooldown registry
func NewRedisRegistry(redisClient *redis.Client, policy Policy) *RedisRegistry {
	return &RedisRegistry{redis: redisClient, policy: policy}
}

// IsSuppressed returns the entry protecting a (device, parameter) pair,
// or nil when no suppression window is active.
func (r *RedisRegistry) IsSuppressed(ctx context.Context, deviceID string, parameter store.Parameter) (*Entry, error) {
	data, err := r.redis.Get(ctx, entryKey(deviceID, parameter)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cooldown entry: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cooldown entry: %w", err)
	}

	return &entry, nil
}

// Start claims a fresh suppression window for a (device, parameter) pair.
// Returns false when another writer claimed the window first.
func (r *RedisRegistry) Start(ctx context.Context, deviceID string, parameter store.Parameter, severity store.Severity, alertID string) (bool, error) {
	ttl := r.policy.DurationFor(severity)
	entry := &Entry{
		DeviceID:  deviceID,
		Parameter: parameter,
		Severity:  severity,
		AlertID:   alertID,
		ExpiresAt: time.Now().Add(ttl),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return false, fmt.Errorf("failed to marshal cooldown entry: %w", err)
	}

	claimed, err := r.redis.SetNX(ctx, entryKey(deviceID, parameter), data, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to start cooldown: %w", err)
	}

	return claimed, nil
}

// Refresh replaces the suppression window for a pair, keyed by the new
// severity's duration. Used when an alert escalates.
func (r *RedisRegistry) Refresh(ctx context.Context, deviceID string, parameter store.Parameter, severity store.Severity, alertID string) error {
	ttl := r.policy.DurationFor(severity)
	entry := &Entry{
		DeviceID:  deviceID,
		Parameter: parameter,
		Severity:  severity,
		AlertID:   alertID,
		ExpiresAt: time.Now().Add(ttl),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cooldown entry: %w", err)
	}

	if err := r.redis.Set(ctx, entryKey(deviceID, parameter), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to refresh cooldown: %w", err)
	}

	return nil
}
