package cooldown

import (
	"fmt"
	"time"

	"github.com/aquasense/waterquality-server/internal/store"
)

// Entry records an active suppression window for a (device, parameter)
// pair. While it exists, repeated violations for the same pair are folded
// into the alert it protects instead of creating duplicates.
type Entry struct {
	DeviceID  string          `json:"device_id"`
	Parameter store.Parameter `json:"parameter"`
	Severity  store.Severity  `json:"severity"`
	AlertID   string          `json:"alert_id"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Expired reports whether the suppression window has lapsed
func (e *Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Policy maps a violation severity to its suppression duration.
// Durations are deployment policy and come from configuration.
type Policy struct {
	Critical time.Duration
	Warning  time.Duration
}

// DefaultPolicy returns the standard suppression windows
func DefaultPolicy() Policy {
	return Policy{
		Critical: 30 * time.Minute,
		Warning:  120 * time.Minute,
	}
}

// DurationFor returns the suppression window for a severity
func (p Policy) DurationFor(severity store.Severity) time.Duration {
	switch severity {
	case store.SeverityCritical:
		return p.Critical
	default:
		return p.Warning
	}
}

func entryKey(deviceID string, parameter store.Parameter) string {
	return fmt.Sprintf("cooldown:%s:%s", deviceID, parameter)
}
