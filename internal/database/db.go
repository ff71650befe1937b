package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/lib/pq"
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// Connect establishes a connection to the database
func Connect(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return &DB{db}, nil
}

// RunMigrations executes all SQL migration files in order
func (db *DB) RunMigrations(migrationsDir string) error {
	// Read all migration files
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	// Filter and sort SQL files
	var sqlFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			sqlFiles = append(sqlFiles, file.Name())
		}
	}
	sort.Strings(sqlFiles)

	// Execute each migration
	for _, filename := range sqlFiles {
		fmt.Printf("Running migration: %s\n", filename)

		filePath := filepath.Join(migrationsDir, filename)
		content, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}
	}

	fmt.Println("All migrations completed successfully")
	return nil
}

// UpsertDevice inserts or updates a device record
func (db *DB) UpsertDevice(ctx context.Context, device *Device) error {
	query := `
		INSERT INTO devices (device_id, name, location)
		VALUES ($1, $2, $3)
		ON CONFLICT (device_id) DO UPDATE
		SET name = EXCLUDED.name,
		    location = EXCLUDED.location,
		    updated_at = CURRENT_TIMESTAMP
	`
	_, err := db.ExecContext(ctx, query, device.DeviceID, device.Name, device.Location)
	return err
}

// GetDevice retrieves a device by its ID. Returns nil when the device is
// not registered; callers treat that as non-fatal.
func (db *DB) GetDevice(ctx context.Context, deviceID string) (*Device, error) {
	query := `
		SELECT device_id, name, location, created_at, updated_at
		FROM devices
		WHERE device_id = $1
	`

	var device Device
	err := db.QueryRowContext(ctx, query, deviceID).Scan(
		&device.DeviceID,
		&device.Name,
		&device.Location,
		&device.CreatedAt,
		&device.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &device, nil
}

// GetThresholdOverrides retrieves all active threshold overrides for a device
func (db *DB) GetThresholdOverrides(ctx context.Context, deviceID string) ([]*ThresholdOverride, error) {
	query := `
		SELECT id, device_id, parameter, warning_low, warning_high,
		       critical_low, critical_high, is_active, created_at, updated_at
		FROM threshold_overrides
		WHERE device_id = $1 AND is_active = true
		ORDER BY parameter
	`

	rows, err := db.QueryContext(ctx, query, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var overrides []*ThresholdOverride
	for rows.Next() {
		var o ThresholdOverride
		if err := rows.Scan(
			&o.ID,
			&o.DeviceID,
			&o.Parameter,
			&o.WarningLow,
			&o.WarningHigh,
			&o.CriticalLow,
			&o.CriticalHigh,
			&o.IsActive,
			&o.CreatedAt,
			&o.UpdatedAt,
		); err != nil {
			return nil, err
		}
		overrides = append(overrides, &o)
	}

	return overrides, rows.Err()
}
