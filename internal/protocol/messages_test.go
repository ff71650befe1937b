package protocol

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func ptr(v float64) *float64 {
	return &v
}

func TestReadingMessage_Validate(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		reading   ReadingMessage
		wantField string
	}{
		{
			name:    "valid full reading",
			reading: ReadingMessage{DeviceID: "D1", PH: ptr(7.0), Turbidity: ptr(1.0), TDS: ptr(300), Timestamp: now},
		},
		{
			name:    "valid partial reading",
			reading: ReadingMessage{DeviceID: "D1", Turbidity: ptr(2.5), Timestamp: now},
		},
		{
			name:    "no parameters measured is still valid",
			reading: ReadingMessage{DeviceID: "D1", Timestamp: now},
		},
		{
			name:      "missing device id",
			reading:   ReadingMessage{PH: ptr(7.0), Timestamp: now},
			wantField: "device_id",
		},
		{
			name:      "missing timestamp",
			reading:   ReadingMessage{DeviceID: "D1", PH: ptr(7.0)},
			wantField: "timestamp",
		},
		{
			name:      "ph below scale",
			reading:   ReadingMessage{DeviceID: "D1", PH: ptr(-0.1), Timestamp: now},
			wantField: "ph",
		},
		{
			name:      "ph above scale",
			reading:   ReadingMessage{DeviceID: "D1", PH: ptr(14.5), Timestamp: now},
			wantField: "ph",
		},
		{
			name:      "negative turbidity",
			reading:   ReadingMessage{DeviceID: "D1", Turbidity: ptr(-1.0), Timestamp: now},
			wantField: "turbidity",
		},
		{
			name:      "negative tds",
			reading:   ReadingMessage{DeviceID: "D1", TDS: ptr(-5.0), Timestamp: now},
			wantField: "tds",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.reading.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("Expected valid reading, got %v", err)
				}
				return
			}

			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if validationErr.Field != tt.wantField {
				t.Errorf("Expected field %s, got %s", tt.wantField, validationErr.Field)
			}
		})
	}
}

func TestDecodeReadingMessage(t *testing.T) {
	data := []byte(`{"device_id":"WQ-001","ph":6.2,"tds":750,"timestamp":"2025-06-01T12:00:00Z"}`)

	msg, err := DecodeReadingMessage(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if msg.DeviceID != "WQ-001" {
		t.Errorf("Expected device WQ-001, got %s", msg.DeviceID)
	}
	if msg.PH == nil || *msg.PH != 6.2 {
		t.Error("Expected ph 6.2")
	}
	if msg.Turbidity != nil {
		t.Error("Expected turbidity to be unmeasured")
	}
	if msg.TDS == nil || *msg.TDS != 750 {
		t.Error("Expected tds 750")
	}
}

func TestDecodeReadingMessage_InvalidJSON(t *testing.T) {
	_, err := DecodeReadingMessage([]byte(`{device_id: D1}`))
	if err == nil {
		t.Fatal("Expected error for malformed JSON")
	}
	if !strings.Contains(err.Error(), "invalid JSON") {
		t.Errorf("Expected invalid JSON error, got %v", err)
	}
}

func TestDecodeReadingMessage_RejectsInvalidReading(t *testing.T) {
	_, err := DecodeReadingMessage([]byte(`{"ph":7.0,"timestamp":"2025-06-01T12:00:00Z"}`))

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if validationErr.Field != "device_id" {
		t.Errorf("Expected device_id, got %s", validationErr.Field)
	}
}

func TestAlertNotificationRoundTrip(t *testing.T) {
	original := &AlertNotification{
		Type:            AlertTypeCreated,
		AlertID:         "a1b2c3",
		DeviceID:        "WQ-001",
		DeviceName:      "Intake Pump 1",
		Parameter:       "ph",
		Severity:        "CRITICAL",
		Value:           5.0,
		Threshold:       6.0,
		Message:         "pH 5.00 outside safe range 6.00-9.00",
		OccurrenceCount: 1,
		Timestamp:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := EncodeAlertNotification(original)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := DecodeAlertNotification(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if decoded.Type != original.Type || decoded.AlertID != original.AlertID {
		t.Errorf("Round trip mismatch: %+v != %+v", decoded, original)
	}
	if decoded.Message != original.Message || decoded.Severity != original.Severity {
		t.Errorf("Round trip mismatch: %+v != %+v", decoded, original)
	}
	if decoded.Value != original.Value || decoded.Threshold != original.Threshold {
		t.Errorf("Round trip mismatch: %+v != %+v", decoded, original)
	}
	if !decoded.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Expected timestamp %v, got %v", original.Timestamp, decoded.Timestamp)
	}
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Field: "ph", Reason: "must be between 0 and 14"}
	if err.Error() != "invalid ph: must be between 0 and 14" {
		t.Errorf("Unexpected message: %s", err.Error())
	}
}
