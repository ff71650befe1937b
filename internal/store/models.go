package store

import (
	"time"
)

// Parameter identifies a measured water-quality parameter
type Parameter string

const (
	ParameterPH        Parameter = "ph"
	ParameterTurbidity Parameter = "turbidity"
	ParameterTDS       Parameter = "tds"
)

// Severity classifies how far a value is outside the safe range
type Severity string

const (
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Rank orders severities for escalation checks. Higher is worse.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// Alert status values. Transitions are forward-only:
// ACTIVE -> ACKNOWLEDGED -> RESOLVED, with RESOLVED reachable directly
// from ACTIVE.
const (
	StatusActive       = "ACTIVE"
	StatusAcknowledged = "ACKNOWLEDGED"
	StatusResolved     = "RESOLVED"
)

// Alert represents a persisted threshold alert. At most one ACTIVE alert
// exists per (device, parameter) pair; the partial unique index in the
// alerts table enforces this under concurrent writes.
type Alert struct {
	AlertID         string
	DeviceID        string
	DeviceName      string
	Parameter       Parameter
	Severity        Severity
	Value           float64
	Threshold       float64
	Message         string
	Status          string
	OccurrenceCount int
	Timestamp       time.Time // first observed
	LastSeen        time.Time // updated on each suppressed re-violation
	Acknowledged    bool
	AcknowledgedBy  *string
	AcknowledgedAt  *time.Time
	ResolvedBy      *string
	ResolvedAt      *time.Time
	ResolutionNotes *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ListFilter narrows ListAlerts results. Zero values mean "any".
type ListFilter struct {
	DeviceID  string
	Parameter Parameter
	Severity  Severity
	Status    string
	Limit     int
}

// StatsFilter narrows alert statistics. Zero values mean "any".
type StatsFilter struct {
	DeviceID string
	From     time.Time
	To       time.Time
}

// AlertStats summarizes alerts grouped by status, severity and parameter
type AlertStats struct {
	Total       int
	Active      int
	ByStatus    map[string]int
	BySeverity  map[string]int
	ByParameter map[string]int
}
