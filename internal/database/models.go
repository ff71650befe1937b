package database

import (
	"time"
)

// Device represents a registered water-quality sensor device
type Device struct {
	DeviceID  string
	Name      string
	Location  *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ThresholdOverride represents a per-device threshold override. Bounds
// that are nil fall back to the configured defaults. Ceiling-style
// parameters (turbidity, TDS) leave the lower bounds nil.
type ThresholdOverride struct {
	ID           int
	DeviceID     string
	Parameter    string
	WarningLow   *float64
	WarningHigh  *float64
	CriticalLow  *float64
	CriticalHigh *float64
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
