package alerting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aquasense/waterquality-server/internal/catalog"
	"github.com/aquasense/waterquality-server/internal/cooldown"
	"github.com/aquasense/waterquality-server/internal/protocol"
	"github.com/aquasense/waterquality-server/internal/store"
	"github.com/aquasense/waterquality-server/pkg/config"
)

// fakeStore is an in-memory AlertStore honoring the same semantics as
// the Postgres store: at most one ACTIVE alert per (device, parameter).
type fakeStore struct {
	mu         sync.Mutex
	alerts     map[string]*store.Alert
	failParams map[store.Parameter]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		alerts:     make(map[string]*store.Alert),
		failParams: make(map[store.Parameter]bool),
	}
}

func (f *fakeStore) activeFor(deviceID string, parameter store.Parameter) *store.Alert {
	for _, a := range f.alerts {
		if a.DeviceID == deviceID && a.Parameter == parameter && a.Status == store.StatusActive {
			return a
		}
	}
	return nil
}

func (f *fakeStore) CreateOrReactivate(ctx context.Context, alert *store.Alert) (*store.Alert, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failParams[alert.Parameter] {
		return nil, false, &store.TransientError{Op: "upsert alert", Err: errors.New("connection reset")}
	}

	if existing := f.activeFor(alert.DeviceID, alert.Parameter); existing != nil {
		existing.OccurrenceCount++
		existing.Value = alert.Value
		if alert.LastSeen.After(existing.LastSeen) {
			existing.LastSeen = alert.LastSeen
		}
		if alert.Severity.Rank() > existing.Severity.Rank() {
			existing.Severity = alert.Severity
			existing.Threshold = alert.Threshold
			existing.Message = alert.Message
		}
		return existing, false, nil
	}

	copied := *alert
	f.alerts[copied.AlertID] = &copied
	return &copied, true, nil
}

func (f *fakeStore) RecordOccurrence(ctx context.Context, alertID string, value float64, seenAt time.Time) (*store.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	alert, ok := f.alerts[alertID]
	if !ok {
		return nil, store.ErrNotFound
	}
	alert.OccurrenceCount++
	alert.Value = value
	if seenAt.After(alert.LastSeen) {
		alert.LastSeen = seenAt
	}
	return alert, nil
}

func (f *fakeStore) Escalate(ctx context.Context, alertID string, severity store.Severity, value, threshold float64, message string, seenAt time.Time) (*store.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	alert, ok := f.alerts[alertID]
	if !ok {
		return nil, store.ErrNotFound
	}
	alert.Severity = severity
	alert.Value = value
	alert.Threshold = threshold
	alert.Message = message
	alert.OccurrenceCount++
	if seenAt.After(alert.LastSeen) {
		alert.LastSeen = seenAt
	}
	return alert, nil
}

func (f *fakeStore) Acknowledge(ctx context.Context, alertID, userID string) (*store.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	alert, ok := f.alerts[alertID]
	if !ok {
		return nil, store.ErrNotFound
	}
	switch alert.Status {
	case store.StatusAcknowledged:
		return nil, store.ErrAlreadyAcknowledged
	case store.StatusResolved:
		return nil, store.ErrAlreadyResolved
	}
	now := time.Now()
	alert.Status = store.StatusAcknowledged
	alert.Acknowledged = true
	alert.AcknowledgedBy = &userID
	alert.AcknowledgedAt = &now
	return alert, nil
}

func (f *fakeStore) Resolve(ctx context.Context, alertID, userID, notes string) (*store.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	alert, ok := f.alerts[alertID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if alert.Status == store.StatusResolved {
		return nil, store.ErrAlreadyResolved
	}
	now := time.Now()
	alert.Status = store.StatusResolved
	alert.Acknowledged = true
	alert.ResolvedBy = &userID
	alert.ResolvedAt = &now
	if notes != "" {
		alert.ResolutionNotes = &notes
	}
	return alert, nil
}

func (f *fakeStore) ResolveAllForDevice(ctx context.Context, deviceID, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var resolved int64
	now := time.Now()
	for _, alert := range f.alerts {
		if alert.DeviceID == deviceID && alert.Status != store.StatusResolved {
			alert.Status = store.StatusResolved
			alert.Acknowledged = true
			alert.ResolvedBy = &userID
			alert.ResolvedAt = &now
			resolved++
		}
	}
	return resolved, nil
}

func (f *fakeStore) FindActive(ctx context.Context, deviceID string, parameter store.Parameter) (*store.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activeFor(deviceID, parameter), nil
}

func (f *fakeStore) List(ctx context.Context, filter store.ListFilter) ([]*store.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var alerts []*store.Alert
	for _, alert := range f.alerts {
		if filter.DeviceID != "" && alert.DeviceID != filter.DeviceID {
			continue
		}
		if filter.Status != "" && alert.Status != filter.Status {
			continue
		}
		if filter.Severity != "" && alert.Severity != filter.Severity {
			continue
		}
		if filter.Parameter != "" && alert.Parameter != filter.Parameter {
			continue
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

func (f *fakeStore) Stats(ctx context.Context, filter store.StatsFilter) (*store.AlertStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	stats := &store.AlertStats{
		ByStatus:    make(map[string]int),
		BySeverity:  make(map[string]int),
		ByParameter: make(map[string]int),
	}
	for _, alert := range f.alerts {
		if filter.DeviceID != "" && alert.DeviceID != filter.DeviceID {
			continue
		}
		stats.Total++
		stats.ByStatus[alert.Status]++
		stats.BySeverity[string(alert.Severity)]++
		stats.ByParameter[string(alert.Parameter)]++
	}
	stats.Active = stats.ByStatus[store.StatusActive]
	return stats, nil
}

// fakeRegistry tracks suppression windows in a plain map with an expire
// hook for simulating cooldown expiry.
type fakeRegistry struct {
	mu         sync.Mutex
	entries    map[string]*cooldown.Entry
	policy     cooldown.Policy
	failLookup bool
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		entries: make(map[string]*cooldown.Entry),
		policy:  cooldown.DefaultPolicy(),
	}
}

func regKey(deviceID string, parameter store.Parameter) string {
	return fmt.Sprintf("%s:%s", deviceID, parameter)
}

func (f *fakeRegistry) IsSuppressed(ctx context.Context, deviceID string, parameter store.Parameter) (*cooldown.Entry, error) {
	if f.failLookup {
		return nil, errors.New("registry unavailable")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok := f.entries[regKey(deviceID, parameter)]
	if !ok || entry.Expired(time.Now()) {
		return nil, nil
	}
	return entry, nil
}

func (f *fakeRegistry) Start(ctx context.Context, deviceID string, parameter store.Parameter, severity store.Severity, alertID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := regKey(deviceID, parameter)
	if existing, ok := f.entries[key]; ok && !existing.Expired(time.Now()) {
		return false, nil
	}
	f.entries[key] = &cooldown.Entry{
		DeviceID:  deviceID,
		Parameter: parameter,
		Severity:  severity,
		AlertID:   alertID,
		ExpiresAt: time.Now().Add(f.policy.DurationFor(severity)),
	}
	return true, nil
}

func (f *fakeRegistry) Refresh(ctx context.Context, deviceID string, parameter store.Parameter, severity store.Severity, alertID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.entries[regKey(deviceID, parameter)] = &cooldown.Entry{
		DeviceID:  deviceID,
		Parameter: parameter,
		Severity:  severity,
		AlertID:   alertID,
		ExpiresAt: time.Now().Add(f.policy.DurationFor(severity)),
	}
	return nil
}

func (f *fakeRegistry) expire(deviceID string, parameter store.Parameter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, regKey(deviceID, parameter))
}

func (f *fakeRegistry) entryFor(deviceID string, parameter store.Parameter) *cooldown.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries[regKey(deviceID, parameter)]
}

// fakeDispatcher records notifications
type fakeDispatcher struct {
	mu            sync.Mutex
	notifications []*protocol.AlertNotification
	err           error
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, notification *protocol.AlertNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.notifications = append(f.notifications, notification)
	return nil
}

func (f *fakeDispatcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notifications)
}

func (f *fakeDispatcher) last() *protocol.AlertNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.notifications) == 0 {
		return nil
	}
	return f.notifications[len(f.notifications)-1]
}

// fakeDevices maps device IDs to names
type fakeDevices map[string]string

func (f fakeDevices) DeviceName(ctx context.Context, deviceID string) string {
	return f[deviceID]
}

func testCatalog() *catalog.Catalog {
	return catalog.New(config.ThresholdConfig{
		PHCriticalMin: 6.0,
		PHCriticalMax: 9.0,
		PHWarningMin:  6.5,
		PHWarningMax:  8.5,

		TurbidityWarning:  5.0,
		TurbidityCritical: 20.0,

		TDSWarning:  500,
		TDSCritical: 1000,
	}, nil)
}

func newTestManager() (*Manager, *fakeStore, *fakeRegistry, *fakeDispatcher) {
	fs := newFakeStore()
	fr := newFakeRegistry()
	fd := &fakeDispatcher{}
	devices := fakeDevices{"D1": "Intake Pump 1"}
	m := NewManager(fs, fr, fd, devices, testCatalog())
	return m, fs, fr, fd
}

func phReading(deviceID string, ph float64, at time.Time) *protocol.ReadingMessage {
	return &protocol.ReadingMessage{
		DeviceID:  deviceID,
		PH:        ptr(ph),
		Timestamp: at,
	}
}

func TestManager_CreatesAlert(t *testing.T) {
	m, _, fr, fd := newTestManager()
	ctx := context.Background()
	t0 := time.Now()

	results := m.ProcessReading(ctx, phReading("D1", 5.0, t0))
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}

	r := results[0]
	if r.Err != nil {
		t.Fatalf("CreateOrUpdate failed: %v", r.Err)
	}
	if r.Outcome != OutcomeCreated {
		t.Errorf("Expected outcome created, got %s", r.Outcome)
	}

	alert := r.Alert
	if alert.Status != store.StatusActive {
		t.Errorf("Expected status ACTIVE, got %s", alert.Status)
	}
	if alert.Severity != store.SeverityCritical {
		t.Errorf("Expected CRITICAL, got %s", alert.Severity)
	}
	if alert.OccurrenceCount != 1 {
		t.Errorf("Expected occurrence count 1, got %d", alert.OccurrenceCount)
	}
	if alert.DeviceName != "Intake Pump 1" {
		t.Errorf("Expected device name enrichment, got %q", alert.DeviceName)
	}

	if fd.count() != 1 {
		t.Fatalf("Expected 1 notification, got %d", fd.count())
	}
	if fd.last().Type != protocol.AlertTypeCreated {
		t.Errorf("Expected ALERT_CREATED, got %s", fd.last().Type)
	}

	entry := fr.entryFor("D1", store.ParameterPH)
	if entry == nil {
		t.Fatal("Expected a cooldown entry after creation")
	}
	if entry.AlertID != alert.AlertID {
		t.Errorf("Cooldown protects wrong alert: %s != %s", entry.AlertID, alert.AlertID)
	}
}

func TestManager_SuppressedViolationUpdatesExistingAlert(t *testing.T) {
	m, _, _, fd := newTestManager()
	ctx := context.Background()
	t0 := time.Now()

	first := m.ProcessReading(ctx, phReading("D1", 5.0, t0))[0]
	second := m.ProcessReading(ctx, phReading("D1", 5.1, t0.Add(2*time.Minute)))[0]

	if second.Err != nil {
		t.Fatalf("Suppressed update failed: %v", second.Err)
	}
	if second.Outcome != OutcomeSuppressed {
		t.Errorf("Expected outcome suppressed, got %s", second.Outcome)
	}
	if second.Alert.AlertID != first.Alert.AlertID {
		t.Error("Suppressed violation must not allocate a new alert ID")
	}
	if second.Alert.OccurrenceCount != 2 {
		t.Errorf("Expected occurrence count 2, got %d", second.Alert.OccurrenceCount)
	}
	if !second.Alert.LastSeen.Equal(t0.Add(2 * time.Minute)) {
		t.Errorf("Expected last seen t0+2min, got %v", second.Alert.LastSeen)
	}
	if second.Alert.Value != 5.1 {
		t.Errorf("Expected latest value 5.1, got %f", second.Alert.Value)
	}

	// No new signal while suppressed
	if fd.count() != 1 {
		t.Errorf("Expected 1 notification, got %d", fd.count())
	}
}

func TestManager_EscalationKeepsAlertIDAndNotifies(t *testing.T) {
	m, _, fr, fd := newTestManager()
	ctx := context.Background()
	t0 := time.Now()

	warning := m.ProcessReading(ctx, phReading("D1", 6.2, t0))[0]
	if warning.Alert.Severity != store.SeverityWarning {
		t.Fatalf("Setup: expected WARNING, got %s", warning.Alert.Severity)
	}

	critical := m.ProcessReading(ctx, phReading("D1", 5.0, t0.Add(5*time.Minute)))[0]
	if critical.Err != nil {
		t.Fatalf("Escalation failed: %v", critical.Err)
	}
	if critical.Outcome != OutcomeEscalated {
		t.Errorf("Expected outcome escalated, got %s", critical.Outcome)
	}
	if critical.Alert.AlertID != warning.Alert.AlertID {
		t.Error("Escalation must not allocate a new alert ID")
	}
	if critical.Alert.Severity != store.SeverityCritical {
		t.Errorf("Expected severity CRITICAL after escalation, got %s", critical.Alert.Severity)
	}

	if fd.count() != 2 {
		t.Fatalf("Expected 2 notifications, got %d", fd.count())
	}
	if fd.last().Type != protocol.AlertTypeEscalated {
		t.Errorf("Expected ALERT_ESCALATED, got %s", fd.last().Type)
	}

	entry := fr.entryFor("D1", store.ParameterPH)
	if entry == nil || entry.Severity != store.SeverityCritical {
		t.Error("Expected cooldown refreshed with escalated severity")
	}
}

func TestManager_WeakerViolationDoesNotDowngrade(t *testing.T) {
	m, _, _, fd := newTestManager()
	ctx := context.Background()
	t0 := time.Now()

	critical := m.ProcessReading(ctx, phReading("D1", 5.0, t0))[0]

	warning := m.ProcessReading(ctx, phReading("D1", 6.2, t0.Add(time.Minute)))[0]
	if warning.Outcome != OutcomeSuppressed {
		t.Errorf("Expected outcome suppressed, got %s", warning.Outcome)
	}
	if warning.Alert.Severity != store.SeverityCritical {
		t.Errorf("Severity must not downgrade, got %s", warning.Alert.Severity)
	}
	if warning.Alert.AlertID != critical.Alert.AlertID {
		t.Error("Expected same alert")
	}
	if fd.count() != 1 {
		t.Errorf("Expected no new notification, got %d", fd.count())
	}
}

func TestManager_RearmsActiveAlertAfterCooldownExpiry(t *testing.T) {
	m, _, fr, fd := newTestManager()
	ctx := context.Background()
	t0 := time.Now()

	first := m.ProcessReading(ctx, phReading("D1", 5.0, t0))[0]

	// Cooldown lapses while the alert stays ACTIVE
	fr.expire("D1", store.ParameterPH)

	second := m.ProcessReading(ctx, phReading("D1", 5.2, t0.Add(time.Hour)))[0]
	if second.Err != nil {
		t.Fatalf("Re-arm failed: %v", second.Err)
	}
	if second.Outcome != OutcomeRearmed {
		t.Errorf("Expected outcome rearmed, got %s", second.Outcome)
	}
	if second.Alert.AlertID != first.Alert.AlertID {
		t.Error("Re-arm must reuse the surviving ACTIVE alert, not create a duplicate")
	}
	if second.Alert.OccurrenceCount != 2 {
		t.Errorf("Expected occurrence count 2, got %d", second.Alert.OccurrenceCount)
	}

	// A fresh signal after the quiet window
	if fd.count() != 2 {
		t.Errorf("Expected 2 notifications, got %d", fd.count())
	}
	if fr.entryFor("D1", store.ParameterPH) == nil {
		t.Error("Expected a fresh cooldown entry")
	}
}

func TestManager_NewAlertAfterResolutionAndExpiry(t *testing.T) {
	m, _, fr, _ := newTestManager()
	ctx := context.Background()
	t0 := time.Now()

	first := m.ProcessReading(ctx, phReading("D1", 5.0, t0))[0]

	if _, err := m.Resolve(ctx, first.Alert.AlertID, "operator", "flushed the line"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	fr.expire("D1", store.ParameterPH)

	second := m.ProcessReading(ctx, phReading("D1", 5.0, t0.Add(time.Hour)))[0]
	if second.Outcome != OutcomeCreated {
		t.Errorf("Expected outcome created, got %s", second.Outcome)
	}
	if second.Alert.AlertID == first.Alert.AlertID {
		t.Error("Expected a brand-new alert ID after resolution")
	}
	if first.Alert.Status != store.StatusResolved {
		t.Errorf("Prior alert's terminal state must be untouched, got %s", first.Alert.Status)
	}
}

func TestManager_AcknowledgeIdempotenceGuard(t *testing.T) {
	m, _, _, _ := newTestManager()
	ctx := context.Background()

	created := m.ProcessReading(ctx, phReading("D1", 5.0, time.Now()))[0]

	alert, err := m.Acknowledge(ctx, created.Alert.AlertID, "user123")
	if err != nil {
		t.Fatalf("Acknowledge failed: %v", err)
	}
	if alert.Status != store.StatusAcknowledged {
		t.Errorf("Expected status ACKNOWLEDGED, got %s", alert.Status)
	}
	if alert.AcknowledgedBy == nil || *alert.AcknowledgedBy != "user123" {
		t.Error("Expected acknowledgedBy user123")
	}
	if !alert.Acknowledged {
		t.Error("Expected acknowledged flag set")
	}

	_, err = m.Acknowledge(ctx, created.Alert.AlertID, "user123")
	if !errors.Is(err, store.ErrAlreadyAcknowledged) {
		t.Errorf("Expected ErrAlreadyAcknowledged, got %v", err)
	}
}

func TestManager_AcknowledgeUnknownAlert(t *testing.T) {
	m, _, _, _ := newTestManager()

	_, err := m.Acknowledge(context.Background(), "no-such-alert", "user123")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestManager_ResolveBypassesAcknowledge(t *testing.T) {
	m, _, _, _ := newTestManager()
	ctx := context.Background()

	created := m.ProcessReading(ctx, phReading("D1", 5.0, time.Now()))[0]

	alert, err := m.Resolve(ctx, created.Alert.AlertID, "user123", "Sensor recalibrated")
	if err != nil {
		t.Fatalf("Resolve on ACTIVE alert must succeed: %v", err)
	}
	if alert.Status != store.StatusResolved {
		t.Errorf("Expected status RESOLVED, got %s", alert.Status)
	}
	if alert.ResolutionNotes == nil || *alert.ResolutionNotes != "Sensor recalibrated" {
		t.Error("Expected resolution notes set")
	}
	if !alert.Acknowledged {
		t.Error("Resolve must set the acknowledged flag")
	}

	_, err = m.Resolve(ctx, created.Alert.AlertID, "user123", "")
	if !errors.Is(err, store.ErrAlreadyResolved) {
		t.Errorf("Expected ErrAlreadyResolved, got %v", err)
	}
}

func TestManager_ResolveAllForDevice(t *testing.T) {
	m, fs, _, _ := newTestManager()
	ctx := context.Background()
	t0 := time.Now()

	m.ProcessReading(ctx, &protocol.ReadingMessage{
		DeviceID:  "D1",
		PH:        ptr(5.0),
		Turbidity: ptr(50.0),
		Timestamp: t0,
	})
	other := m.ProcessReading(ctx, phReading("D9", 5.0, t0))[0]

	resolved, err := m.ResolveAllForDevice(ctx, "D1", "operator")
	if err != nil {
		t.Fatalf("ResolveAllForDevice failed: %v", err)
	}
	if resolved != 2 {
		t.Errorf("Expected 2 alerts resolved, got %d", resolved)
	}

	remaining, _ := fs.FindActive(ctx, "D9", store.ParameterPH)
	if remaining == nil || remaining.AlertID != other.Alert.AlertID {
		t.Error("Other device's alert must stay ACTIVE")
	}
}

func TestManager_DispatcherFailureDoesNotFailViolation(t *testing.T) {
	m, _, _, fd := newTestManager()
	fd.err = errors.New("broker unreachable")

	result := m.ProcessReading(context.Background(), phReading("D1", 5.0, time.Now()))[0]
	if result.Err != nil {
		t.Fatalf("Dispatch failure must not fail the violation: %v", result.Err)
	}
	if result.Outcome != OutcomeCreated {
		t.Errorf("Expected outcome created, got %s", result.Outcome)
	}
}

func TestManager_PartialFailureIsolation(t *testing.T) {
	m, fs, _, _ := newTestManager()
	fs.failParams[store.ParameterPH] = true

	results := m.ProcessReading(context.Background(), &protocol.ReadingMessage{
		DeviceID:  "D1",
		PH:        ptr(5.0),
		TDS:       ptr(1200.0),
		Timestamp: time.Now(),
	})
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}

	var phFailed, tdsCreated bool
	for _, r := range results {
		switch r.Violation.Parameter {
		case store.ParameterPH:
			phFailed = r.Err != nil && store.IsTransient(r.Err)
		case store.ParameterTDS:
			tdsCreated = r.Err == nil && r.Outcome == OutcomeCreated
		}
	}

	if !phFailed {
		t.Error("Expected the pH violation to fail with a transient error")
	}
	if !tdsCreated {
		t.Error("A failure on one parameter must not suppress alerting on another")
	}
}

func TestManager_RegistryFailureFallsBackToStore(t *testing.T) {
	m, _, fr, _ := newTestManager()
	ctx := context.Background()
	t0 := time.Now()

	first := m.ProcessReading(ctx, phReading("D1", 5.0, t0))[0]

	fr.failLookup = true
	second := m.ProcessReading(ctx, phReading("D1", 5.1, t0.Add(time.Minute)))[0]
	if second.Err != nil {
		t.Fatalf("Expected degraded handling, got error: %v", second.Err)
	}
	if second.Alert.AlertID != first.Alert.AlertID {
		t.Error("Store upsert must still prevent a duplicate ACTIVE alert")
	}
	if second.Outcome != OutcomeRearmed {
		t.Errorf("Expected outcome rearmed, got %s", second.Outcome)
	}
}

func TestManager_ValidationErrors(t *testing.T) {
	m, _, _, _ := newTestManager()
	ctx := context.Background()

	var validationErr *protocol.ValidationError

	if _, err := m.Acknowledge(ctx, "", "user123"); !errors.As(err, &validationErr) {
		t.Errorf("Expected validation error for empty alert ID, got %v", err)
	}
	if _, err := m.Resolve(ctx, "some-alert", "", ""); !errors.As(err, &validationErr) {
		t.Errorf("Expected validation error for empty user ID, got %v", err)
	}
	if _, err := m.ResolveAllForDevice(ctx, "", "user123"); !errors.As(err, &validationErr) {
		t.Errorf("Expected validation error for empty device ID, got %v", err)
	}
}

func TestManager_ListAndStatistics(t *testing.T) {
	m, _, _, _ := newTestManager()
	ctx := context.Background()
	t0 := time.Now()

	m.ProcessReading(ctx, &protocol.ReadingMessage{
		DeviceID:  "D1",
		PH:        ptr(5.0),
		Turbidity: ptr(50.0),
		Timestamp: t0,
	})
	created := m.ProcessReading(ctx, phReading("D2", 6.2, t0))[0]
	if _, err := m.Acknowledge(ctx, created.Alert.AlertID, "user123"); err != nil {
		t.Fatalf("Acknowledge failed: %v", err)
	}

	active, err := m.ListAlerts(ctx, store.ListFilter{Status: store.StatusActive})
	if err != nil {
		t.Fatalf("ListAlerts failed: %v", err)
	}
	if len(active) != 2 {
		t.Errorf("Expected 2 active alerts, got %d", len(active))
	}

	d1Alerts, err := m.ListAlerts(ctx, store.ListFilter{DeviceID: "D1"})
	if err != nil {
		t.Fatalf("ListAlerts failed: %v", err)
	}
	if len(d1Alerts) != 2 {
		t.Errorf("Expected 2 alerts for D1, got %d", len(d1Alerts))
	}

	stats, err := m.GetAlertStatistics(ctx, store.StatsFilter{})
	if err != nil {
		t.Fatalf("GetAlertStatistics failed: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("Expected 3 alerts total, got %d", stats.Total)
	}
	if stats.Active != 2 {
		t.Errorf("Expected 2 active, got %d", stats.Active)
	}
	if stats.BySeverity["CRITICAL"] != 2 {
		t.Errorf("Expected 2 critical alerts, got %d", stats.BySeverity["CRITICAL"])
	}
	if stats.ByParameter["ph"] != 2 {
		t.Errorf("Expected 2 pH alerts, got %d", stats.ByParameter["ph"])
	}
}
