package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// ReadingMessage is one decoded sensor cycle for a device. Parameter values
// are pointers: a nil value means "not measured this cycle".
type ReadingMessage struct {
	DeviceID  string    `json:"device_id"`
	PH        *float64  `json:"ph,omitempty"`
	Turbidity *float64  `json:"turbidity,omitempty"`
	TDS       *float64  `json:"tds,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ValidationError reports a malformed reading or request. It is raised
// before any state mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate checks the required fields of a reading.
func (r *ReadingMessage) Validate() error {
	if r.DeviceID == "" {
		return &ValidationError{Field: "device_id", Reason: "is required"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Reason: "is required"}
	}
	if r.PH != nil && (*r.PH < 0 || *r.PH > 14) {
		return &ValidationError{Field: "ph", Reason: "must be between 0 and 14"}
	}
	if r.Turbidity != nil && *r.Turbidity < 0 {
		return &ValidationError{Field: "turbidity", Reason: "must not be negative"}
	}
	if r.TDS != nil && *r.TDS < 0 {
		return &ValidationError{Field: "tds", Reason: "must not be negative"}
	}
	return nil
}

// EncodeReadingMessage encodes a ReadingMessage to JSON
func EncodeReadingMessage(msg *ReadingMessage) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeReadingMessage decodes JSON to a validated ReadingMessage
func DecodeReadingMessage(data []byte) (*ReadingMessage, error) {
	var msg ReadingMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

// AlertNotification is the message published for a newly created or
// escalated alert.
type AlertNotification struct {
	Type            string    `json:"type"` // ALERT_CREATED, ALERT_ESCALATED
	AlertID         string    `json:"alert_id"`
	DeviceID        string    `json:"device_id"`
	DeviceName      string    `json:"device_name,omitempty"`
	Parameter       string    `json:"parameter"`
	Severity        string    `json:"severity"`
	Value           float64   `json:"value"`
	Threshold       float64   `json:"threshold"`
	Message         string    `json:"message"`
	OccurrenceCount int       `json:"occurrence_count"`
	Timestamp       time.Time `json:"timestamp"`
}

const (
	AlertTypeCreated   = "ALERT_CREATED"
	AlertTypeEscalated = "ALERT_ESCALATED"
)

// EncodeAlertNotification encodes an AlertNotification to JSON
func EncodeAlertNotification(alert *AlertNotification) ([]byte, error) {
	return json.Marshal(alert)
}

// DecodeAlertNotification decodes JSON to AlertNotification
func DecodeAlertNotification(data []byte) (*AlertNotification, error) {
	var alert AlertNotification
	if err := json.Unmarshal(data, &alert); err != nil {
		return nil, err
	}
	return &alert, nil
}
