package alerting

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/aquasense/waterquality-server/internal/catalog"
	"github.com/aquasense/waterquality-server/internal/cooldown"
	"github.com/aquasense/waterquality-server/internal/protocol"
	"github.com/aquasense/waterquality-server/internal/store"
)

// AlertStore is the persistence contract consumed by the Manager. All
// mutations are single atomic store operations.
type AlertStore interface {
	CreateOrReactivate(ctx context.Context, alert *store.Alert) (*store.Alert, bool, error)
	RecordOccurrence(ctx context.Context, alertID string, value float64, seenAt time.Time) (*store.Alert, error)
	Escalate(ctx context.Context, alertID string, severity store.Severity, value, threshold float64, message string, seenAt time.Time) (*store.Alert, error)
	Acknowledge(ctx context.Context, alertID, userID string) (*store.Alert, error)
	Resolve(ctx context.Context, alertID, userID, notes string) (*store.Alert, error)
	ResolveAllForDevice(ctx context.Context, deviceID, userID string) (int64, error)
	FindActive(ctx context.Context, deviceID string, parameter store.Parameter) (*store.Alert, error)
	List(ctx context.Context, filter store.ListFilter) ([]*store.Alert, error)
	Stats(ctx context.Context, filter store.StatsFilter) (*store.AlertStats, error)
}

// CooldownRegistry tracks suppression windows per (device, parameter)
type CooldownRegistry interface {
	IsSuppressed(ctx context.Context, deviceID string, parameter store.Parameter) (*cooldown.Entry, error)
	Start(ctx context.Context, deviceID string, parameter store.Parameter, severity store.Severity, alertID string) (bool, error)
	Refresh(ctx context.Context, deviceID string, parameter store.Parameter, severity store.Severity, alertID string) error
}

// Dispatcher fans out notifications for created or escalated alerts. The
// manager never blocks on or retries a dispatch; failures are logged and
// processing continues.
type Dispatcher interface {
	Dispatch(ctx context.Context, notification *protocol.AlertNotification) error
}

// DeviceLookup enriches alerts with a device name. An unknown device is
// non-fatal; alerts still reference the device ID.
type DeviceLookup interface {
	DeviceName(ctx context.Context, deviceID string) string
}

// Outcome classifies what CreateOrUpdate did with a violation
type Outcome string

const (
	// OutcomeCreated means a new alert was created
	OutcomeCreated Outcome = "created"
	// OutcomeRearmed means the cooldown had lapsed but an ACTIVE alert
	// still existed, so the violation re-armed it instead of creating a
	// duplicate
	OutcomeRearmed Outcome = "rearmed"
	// OutcomeSuppressed means the violation was folded into the alert
	// protected by an active cooldown
	OutcomeSuppressed Outcome = "suppressed"
	// OutcomeEscalated means a suppressed violation raised the alert's
	// severity
	OutcomeEscalated Outcome = "escalated"
)

// Result is the disposition of one violation from a reading
type Result struct {
	Violation Violation
	Alert     *store.Alert
	Outcome   Outcome
	Err       error
}

// Manager owns the alert lifecycle. Dependencies are injected so tests
// can substitute fakes.
type Manager struct {
	store      AlertStore
	cooldowns  CooldownRegistry
	dispatcher Dispatcher
	devices    DeviceLookup
	catalog    *catalog.Catalog
}

// NewManager creates an alert lifecycle manager
func NewManager(alertStore AlertStore, cooldowns CooldownRegistry, dispatcher Dispatcher, devices DeviceLookup, thresholdCatalog *catalog.Catalog) *Manager {
	return &Manager{
		store:      alertStore,
		cooldowns:  cooldowns,
		dispatcher: dispatcher,
		devices:    devices,
		catalog:    thresholdCatalog,
	}
}

// ProcessReading evaluates one reading and runs the lifecycle for each
// resulting violation. Violations are handled independently: a failure on
// one parameter never suppresses alerting on another.
func (m *Manager) ProcessReading(ctx context.Context, reading *protocol.ReadingMessage) []Result {
	thresholds, err := m.catalog.ThresholdsFor(ctx, reading.DeviceID)
	if err != nil {
		// Defaults are still usable; log and continue
		log.Printf("Falling back to default thresholds for device %s: %v", reading.DeviceID, err)
	}

	violations := Evaluate(reading, thresholds)

	results := make([]Result, 0, len(violations))
	for _, violation := range violations {
		alert, outcome, err := m.CreateOrUpdate(ctx, violation)
		if err != nil {
			log.Printf("Failed to handle %s violation for device %s: %v",
				violation.Parameter, violation.DeviceID, err)
		}
		results = append(results, Result{
			Violation: violation,
			Alert:     alert,
			Outcome:   outcome,
			Err:       err,
		})
	}

	return results
}

// CreateOrUpdate decides, for one violation, whether to create a new
// alert, fold the violation into an existing one, or escalate. The store
// upsert is the sole serialization point; no in-process lock is held
// across it.
func (m *Manager) CreateOrUpdate(ctx context.Context, violation Violation) (*store.Alert, Outcome, error) {
	entry, err := m.cooldowns.IsSuppressed(ctx, violation.DeviceID, violation.Parameter)
	if err != nil {
		// The store upsert still upholds uniqueness, so a registry
		// failure degrades to the unsuppressed path.
		log.Printf("Cooldown lookup failed for device %s parameter %s: %v",
			violation.DeviceID, violation.Parameter, err)
		entry = nil
	}

	if entry != nil {
		alert, outcome, err := m.updateSuppressed(ctx, entry, violation)
		if !errors.Is(err, store.ErrNotFound) {
			return alert, outcome, err
		}
		// The protected alert is gone (deleted administratively); fall
		// through and create a fresh one.
	}

	return m.createAlert(ctx, violation)
}

func (m *Manager) updateSuppressed(ctx context.Context, entry *cooldown.Entry, violation Violation) (*store.Alert, Outcome, error) {
	if violation.Severity.Rank() > entry.Severity.Rank() {
		alert, err := m.store.Escalate(ctx, entry.AlertID, violation.Severity,
			violation.Value, violation.Threshold, violation.Message, violation.ObservedAt)
		if err != nil {
			return nil, "", err
		}

		if err := m.cooldowns.Refresh(ctx, violation.DeviceID, violation.Parameter, violation.Severity, alert.AlertID); err != nil {
			log.Printf("Failed to refresh cooldown for alert %s: %v", alert.AlertID, err)
		}

		m.dispatch(ctx, protocol.AlertTypeEscalated, alert)
		return alert, OutcomeEscalated, nil
	}

	alert, err := m.store.RecordOccurrence(ctx, entry.AlertID, violation.Value, violation.ObservedAt)
	if err != nil {
		return nil, "", err
	}
	return alert, OutcomeSuppressed, nil
}

func (m *Manager) createAlert(ctx context.Context, violation Violation) (*store.Alert, Outcome, error) {
	alert := &store.Alert{
		AlertID:         uuid.NewString(),
		DeviceID:        violation.DeviceID,
		DeviceName:      m.deviceName(ctx, violation.DeviceID),
		Parameter:       violation.Parameter,
		Severity:        violation.Severity,
		Value:           violation.Value,
		Threshold:       violation.Threshold,
		Message:         violation.Message,
		Status:          store.StatusActive,
		OccurrenceCount: 1,
		Timestamp:       violation.ObservedAt,
		LastSeen:        violation.ObservedAt,
	}

	persisted, created, err := m.store.CreateOrReactivate(ctx, alert)
	if err != nil {
		return nil, "", err
	}

	outcome := OutcomeCreated
	if !created {
		// An ACTIVE alert survived its cooldown; the upsert re-armed it
		// rather than allowing a second ACTIVE alert for the pair.
		outcome = OutcomeRearmed
	}

	if _, err := m.cooldowns.Start(ctx, persisted.DeviceID, persisted.Parameter, persisted.Severity, persisted.AlertID); err != nil {
		log.Printf("Failed to start cooldown for alert %s: %v", persisted.AlertID, err)
	}

	// The quiet window had lapsed either way, so this is a fresh signal.
	m.dispatch(ctx, protocol.AlertTypeCreated, persisted)

	return persisted, outcome, nil
}

// Acknowledge transitions an alert to ACKNOWLEDGED on behalf of a user
func (m *Manager) Acknowledge(ctx context.Context, alertID, userID string) (*store.Alert, error) {
	if alertID == "" {
		return nil, &protocol.ValidationError{Field: "alert_id", Reason: "is required"}
	}
	if userID == "" {
		return nil, &protocol.ValidationError{Field: "user_id", Reason: "is required"}
	}
	return m.store.Acknowledge(ctx, alertID, userID)
}

// Resolve transitions an alert to RESOLVED, from either ACTIVE or
// ACKNOWLEDGED. notes may be empty.
func (m *Manager) Resolve(ctx context.Context, alertID, userID, notes string) (*store.Alert, error) {
	if alertID == "" {
		return nil, &protocol.ValidationError{Field: "alert_id", Reason: "is required"}
	}
	if userID == "" {
		return nil, &protocol.ValidationError{Field: "user_id", Reason: "is required"}
	}
	return m.store.Resolve(ctx, alertID, userID, notes)
}

// ResolveAllForDevice closes every open alert for a device in one bulk
// update. Returns the number of alerts resolved.
func (m *Manager) ResolveAllForDevice(ctx context.Context, deviceID, userID string) (int64, error) {
	if deviceID == "" {
		return 0, &protocol.ValidationError{Field: "device_id", Reason: "is required"}
	}
	if userID == "" {
		return 0, &protocol.ValidationError{Field: "user_id", Reason: "is required"}
	}
	return m.store.ResolveAllForDevice(ctx, deviceID, userID)
}

// ListAlerts retrieves alerts matching the filter
func (m *Manager) ListAlerts(ctx context.Context, filter store.ListFilter) ([]*store.Alert, error) {
	return m.store.List(ctx, filter)
}

// GetAlertStatistics aggregates alert counts by status, severity and
// parameter
func (m *Manager) GetAlertStatistics(ctx context.Context, filter store.StatsFilter) (*store.AlertStats, error) {
	return m.store.Stats(ctx, filter)
}

func (m *Manager) deviceName(ctx context.Context, deviceID string) string {
	if m.devices == nil {
		return ""
	}
	return m.devices.DeviceName(ctx, deviceID)
}

// dispatch publishes a notification without letting a slow or failed
// dispatcher affect the reading being processed.
func (m *Manager) dispatch(ctx context.Context, notificationType string, alert *store.Alert) {
	if m.dispatcher == nil {
		return
	}

	notification := &protocol.AlertNotification{
		Type:            notificationType,
		AlertID:         alert.AlertID,
		DeviceID:        alert.DeviceID,
		DeviceName:      alert.DeviceName,
		Parameter:       string(alert.Parameter),
		Severity:        string(alert.Severity),
		Value:           alert.Value,
		Threshold:       alert.Threshold,
		Message:         alert.Message,
		OccurrenceCount: alert.OccurrenceCount,
		Timestamp:       alert.LastSeen,
	}

	if err := m.dispatcher.Dispatch(ctx, notification); err != nil {
		log.Printf("Failed to dispatch %s notification for alert %s: %v",
			notificationType, alert.AlertID, err)
	}
}
