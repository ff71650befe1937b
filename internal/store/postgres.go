package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/aquasense/waterquality-server/internal/database"
)

const alertColumns = `
	alert_id, device_id, device_name, parameter, severity, value, threshold,
	message, status, occurrence_count, first_seen, last_seen, acknowledged,
	acknowledged_by, acknowledged_at, resolved_by, resolved_at,
	resolution_notes, created_at, updated_at`

// PostgresStore persists alerts. Every mutation is a single conditional
// statement so the uniqueness invariant holds without application locks.
type PostgresStore struct {
	db *database.DB
}

// NewPostgresStore creates a Postgres-backed alert store
func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateOrReactivate inserts a new ACTIVE alert, or, when an ACTIVE alert
// already exists for the same (device, parameter), folds this violation
// into it: occurrence count and last-seen advance, and severity is
// upgraded if the new violation outranks the recorded one. The partial
// unique index on (device_id, parameter) WHERE status='ACTIVE' is the
// serialization point. The second return value reports whether a new row
// was created.
func (s *PostgresStore) CreateOrReactivate(ctx context.Context, alert *Alert) (*Alert, bool, error) {
	query := `
		INSERT INTO alerts (
			alert_id, device_id, device_name, parameter, severity, value,
			threshold, message, status, occurrence_count, first_seen,
			last_seen, acknowledged
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'ACTIVE', 1, $9, $10, false)
		ON CONFLICT (device_id, parameter) WHERE status = 'ACTIVE'
		DO UPDATE SET
			occurrence_count = alerts.occurrence_count + 1,
			value = EXCLUDED.value,
			last_seen = GREATEST(alerts.last_seen, EXCLUDED.last_seen),
			severity = CASE WHEN EXCLUDED.severity = 'CRITICAL'
				THEN EXCLUDED.severity ELSE alerts.severity END,
			threshold = CASE WHEN EXCLUDED.severity = 'CRITICAL'
				THEN EXCLUDED.threshold ELSE alerts.threshold END,
			message = CASE WHEN EXCLUDED.severity = 'CRITICAL'
				THEN EXCLUDED.message ELSE alerts.message END,
			updated_at = CURRENT_TIMESTAMP
		RETURNING` + alertColumns

	row := s.db.QueryRowContext(ctx, query,
		alert.AlertID,
		alert.DeviceID,
		alert.DeviceName,
		alert.Parameter,
		alert.Severity,
		alert.Value,
		alert.Threshold,
		alert.Message,
		alert.Timestamp,
		alert.LastSeen,
	)

	persisted, err := scanAlert(row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, false, ErrAlertExists
		}
		return nil, false, &TransientError{Op: "upsert alert", Err: err}
	}

	created := persisted.AlertID == alert.AlertID && persisted.OccurrenceCount == 1
	return persisted, created, nil
}

// RecordOccurrence increments the occurrence count and advances the
// latest value and last-seen timestamp on a suppressed re-violation.
func (s *PostgresStore) RecordOccurrence(ctx context.Context, alertID string, value float64, seenAt time.Time) (*Alert, error) {
	query := `
		UPDATE alerts
		SET occurrence_count = occurrence_count + 1,
		    value = $2,
		    last_seen = GREATEST(last_seen, $3),
		    updated_at = CURRENT_TIMESTAMP
		WHERE alert_id = $1
		RETURNING` + alertColumns

	alert, err := scanAlert(s.db.QueryRowContext(ctx, query, alertID, value, seenAt))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &TransientError{Op: "record occurrence", Err: err}
	}
	return alert, nil
}

// Escalate raises an alert's severity in place. The alert keeps its ID;
// only severity, threshold, message and the occurrence fields change.
func (s *PostgresStore) Escalate(ctx context.Context, alertID string, severity Severity, value, threshold float64, message string, seenAt time.Time) (*Alert, error) {
	query := `
		UPDATE alerts
		SET severity = $2,
		    value = $3,
		    threshold = $4,
		    message = $5,
		    occurrence_count = occurrence_count + 1,
		    last_seen = GREATEST(last_seen, $6),
		    updated_at = CURRENT_TIMESTAMP
		WHERE alert_id = $1
		RETURNING` + alertColumns

	alert, err := scanAlert(s.db.QueryRowContext(ctx, query, alertID, severity, value, threshold, message, seenAt))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &TransientError{Op: "escalate alert", Err: err}
	}
	return alert, nil
}

// Acknowledge transitions an ACTIVE alert to ACKNOWLEDGED. The status
// condition is part of the statement, so a concurrent acknowledgment
// cannot be applied twice.
func (s *PostgresStore) Acknowledge(ctx context.Context, alertID, userID string) (*Alert, error) {
	query := `
		UPDATE alerts
		SET status = 'ACKNOWLEDGED',
		    acknowledged = true,
		    acknowledged_by = $2,
		    acknowledged_at = CURRENT_TIMESTAMP,
		    updated_at = CURRENT_TIMESTAMP
		WHERE alert_id = $1 AND status = 'ACTIVE'
		RETURNING` + alertColumns

	alert, err := scanAlert(s.db.QueryRowContext(ctx, query, alertID, userID))
	if err == sql.ErrNoRows {
		return nil, s.classifyConflict(ctx, alertID)
	}
	if err != nil {
		return nil, &TransientError{Op: "acknowledge alert", Err: err}
	}
	return alert, nil
}

// Resolve transitions an alert to RESOLVED. Resolution is permitted from
// either ACTIVE or ACKNOWLEDGED; prior acknowledgment is not required.
func (s *PostgresStore) Resolve(ctx context.Context, alertID, userID, notes string) (*Alert, error) {
	query := `
		UPDATE alerts
		SET status = 'RESOLVED',
		    acknowledged = true,
		    resolved_by = $2,
		    resolved_at = CURRENT_TIMESTAMP,
		    resolution_notes = NULLIF($3, ''),
		    updated_at = CURRENT_TIMESTAMP
		WHERE alert_id = $1 AND status IN ('ACTIVE', 'ACKNOWLEDGED')
		RETURNING` + alertColumns

	alert, err := scanAlert(s.db.QueryRowContext(ctx, query, alertID, userID, notes))
	if err == sql.ErrNoRows {
		return nil, s.classifyConflict(ctx, alertID)
	}
	if err != nil {
		return nil, &TransientError{Op: "resolve alert", Err: err}
	}
	return alert, nil
}

// classifyConflict turns a zero-row lifecycle update into the matching
// typed error by inspecting the alert's current status.
func (s *PostgresStore) classifyConflict(ctx context.Context, alertID string) error {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM alerts WHERE alert_id = $1`, alertID).Scan(&status)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return &TransientError{Op: "classify conflict", Err: err}
	}

	switch status {
	case StatusAcknowledged:
		return ErrAlreadyAcknowledged
	case StatusResolved:
		return ErrAlreadyResolved
	default:
		return fmt.Errorf("alert %s in unexpected status %s", alertID, status)
	}
}

// ResolveAllForDevice resolves every open alert for a device in one
// statement, so a failure never leaves the device half-closed.
func (s *PostgresStore) ResolveAllForDevice(ctx context.Context, deviceID, userID string) (int64, error) {
	query := `
		UPDATE alerts
		SET status = 'RESOLVED',
		    acknowledged = true,
		    resolved_by = $2,
		    resolved_at = CURRENT_TIMESTAMP,
		    updated_at = CURRENT_TIMESTAMP
		WHERE device_id = $1 AND status IN ('ACTIVE', 'ACKNOWLEDGED')
	`

	result, err := s.db.ExecContext(ctx, query, deviceID, userID)
	if err != nil {
		return 0, &TransientError{Op: "resolve all for device", Err: err}
	}

	resolved, err := result.RowsAffected()
	if err != nil {
		return 0, &TransientError{Op: "resolve all for device", Err: err}
	}
	return resolved, nil
}

// FindActive retrieves the ACTIVE alert for a (device, parameter) pair,
// or nil when none exists.
func (s *PostgresStore) FindActive(ctx context.Context, deviceID string, parameter Parameter) (*Alert, error) {
	query := `
		SELECT` + alertColumns + `
		FROM alerts
		WHERE device_id = $1 AND parameter = $2 AND status = 'ACTIVE'
	`

	alert, err := scanAlert(s.db.QueryRowContext(ctx, query, deviceID, parameter))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &TransientError{Op: "find active alert", Err: err}
	}
	return alert, nil
}

// List retrieves alerts matching the filter, newest first
func (s *PostgresStore) List(ctx context.Context, filter ListFilter) ([]*Alert, error) {
	query := `SELECT` + alertColumns + ` FROM alerts`

	var conditions []string
	var args []interface{}

	addCondition := func(column string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if filter.DeviceID != "" {
		addCondition("device_id", filter.DeviceID)
	}
	if filter.Parameter != "" {
		addCondition("parameter", filter.Parameter)
	}
	if filter.Severity != "" {
		addCondition("severity", filter.Severity)
	}
	if filter.Status != "" {
		addCondition("status", filter.Status)
	}

	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}

	query += " ORDER BY first_seen DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &TransientError{Op: "list alerts", Err: err}
	}
	defer rows.Close()

	var alerts []*Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, &TransientError{Op: "list alerts", Err: err}
		}
		alerts = append(alerts, alert)
	}

	if err := rows.Err(); err != nil {
		return nil, &TransientError{Op: "list alerts", Err: err}
	}
	return alerts, nil
}

// Stats aggregates alert counts by status, severity and parameter
func (s *PostgresStore) Stats(ctx context.Context, filter StatsFilter) (*AlertStats, error) {
	stats := &AlertStats{
		ByStatus:    make(map[string]int),
		BySeverity:  make(map[string]int),
		ByParameter: make(map[string]int),
	}

	for _, dim := range []struct {
		column string
		counts map[string]int
	}{
		{"status", stats.ByStatus},
		{"severity", stats.BySeverity},
		{"parameter", stats.ByParameter},
	} {
		query := fmt.Sprintf(`SELECT %s, COUNT(*) FROM alerts`, dim.column)

		var conditions []string
		var args []interface{}
		if filter.DeviceID != "" {
			args = append(args, filter.DeviceID)
			conditions = append(conditions, fmt.Sprintf("device_id = $%d", len(args)))
		}
		if !filter.From.IsZero() {
			args = append(args, filter.From)
			conditions = append(conditions, fmt.Sprintf("first_seen >= $%d", len(args)))
		}
		if !filter.To.IsZero() {
			args = append(args, filter.To)
			conditions = append(conditions, fmt.Sprintf("first_seen <= $%d", len(args)))
		}
		for i, cond := range conditions {
			if i == 0 {
				query += " WHERE " + cond
			} else {
				query += " AND " + cond
			}
		}
		query += fmt.Sprintf(" GROUP BY %s", dim.column)

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, &TransientError{Op: "alert stats", Err: err}
		}

		for rows.Next() {
			var key string
			var count int
			if err := rows.Scan(&key, &count); err != nil {
				rows.Close()
				return nil, &TransientError{Op: "alert stats", Err: err}
			}
			dim.counts[key] = count
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, &TransientError{Op: "alert stats", Err: err}
		}
		rows.Close()
	}

	for _, count := range stats.ByStatus {
		stats.Total += count
	}
	stats.Active = stats.ByStatus[StatusActive]

	return stats, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAlert(row scanner) (*Alert, error) {
	var alert Alert
	err := row.Scan(
		&alert.AlertID,
		&alert.DeviceID,
		&alert.DeviceName,
		&alert.Parameter,
		&alert.Severity,
		&alert.Value,
		&alert.Threshold,
		&alert.Message,
		&alert.Status,
		&alert.OccurrenceCount,
		&alert.Timestamp,
		&alert.LastSeen,
		&alert.Acknowledged,
		&alert.AcknowledgedBy,
		&alert.AcknowledgedAt,
		&alert.ResolvedBy,
		&alert.ResolvedAt,
		&alert.ResolutionNotes,
		&alert.CreatedAt,
		&alert.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &alert, nil
}
