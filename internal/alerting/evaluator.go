package alerting

import (
	"fmt"
	"time"

	"github.com/aquasense/waterquality-server/internal/catalog"
	"github.com/aquasense/waterquality-server/internal/protocol"
	"github.com/aquasense/waterquality-server/internal/store"
)

// Violation is a single parameter-threshold breach computed from one
// reading. Violations are never persisted; the lifecycle manager turns
// them into alerts.
type Violation struct {
	DeviceID   string
	Parameter  store.Parameter
	Severity   store.Severity
	Value      float64
	Threshold  float64
	Message    string
	ObservedAt time.Time
}

// Evaluate checks a reading against the thresholds and returns zero or
// more violations. Stateless and side-effect free. Missing parameter
// values are skipped, and at most one violation is emitted per parameter:
// the critical check wins over the warning check.
func Evaluate(reading *protocol.ReadingMessage, thresholds catalog.Thresholds) []Violation {
	var violations []Violation

	if reading.PH != nil {
		if v := evaluatePH(*reading.PH, thresholds.PH); v != nil {
			v.DeviceID = reading.DeviceID
			v.ObservedAt = reading.Timestamp
			violations = append(violations, *v)
		}
	}

	if reading.Turbidity != nil {
		if v := evaluateCeiling(store.ParameterTurbidity, *reading.Turbidity, thresholds.Turbidity, "NTU"); v != nil {
			v.DeviceID = reading.DeviceID
			v.ObservedAt = reading.Timestamp
			violations = append(violations, *v)
		}
	}

	if reading.TDS != nil {
		if v := evaluateCeiling(store.ParameterTDS, *reading.TDS, thresholds.TDS, "ppm"); v != nil {
			v.DeviceID = reading.DeviceID
			v.ObservedAt = reading.Timestamp
			violations = append(violations, *v)
		}
	}

	return violations
}

func evaluatePH(value float64, t catalog.BandThreshold) *Violation {
	if value < t.CriticalMin || value > t.CriticalMax {
		threshold := t.CriticalMin
		if value > t.CriticalMax {
			threshold = t.CriticalMax
		}
		return &Violation{
			Parameter: store.ParameterPH,
			Severity:  store.SeverityCritical,
			Value:     value,
			Threshold: threshold,
			Message: fmt.Sprintf("pH %.2f outside safe range %.2f-%.2f",
				value, t.CriticalMin, t.CriticalMax),
		}
	}

	if value < t.WarningMin || value > t.WarningMax {
		threshold := t.WarningMin
		if value > t.WarningMax {
			threshold = t.WarningMax
		}
		return &Violation{
			Parameter: store.ParameterPH,
			Severity:  store.SeverityWarning,
			Value:     value,
			Threshold: threshold,
			Message: fmt.Sprintf("pH %.2f outside safe range %.2f-%.2f",
				value, t.WarningMin, t.WarningMax),
		}
	}

	return nil
}

func evaluateCeiling(parameter store.Parameter, value float64, t catalog.CeilingThreshold, unit string) *Violation {
	if value > t.Critical {
		return &Violation{
			Parameter: parameter,
			Severity:  store.SeverityCritical,
			Value:     value,
			Threshold: t.Critical,
			Message: fmt.Sprintf("%s %.2f %s exceeds threshold %.2f %s",
				parameter, value, unit, t.Critical, unit),
		}
	}

	if value > t.Warning {
		return &Violation{
			Parameter: parameter,
			Severity:  store.SeverityWarning,
			Value:     value,
			Threshold: t.Warning,
			Message: fmt.Sprintf("%s %.2f %s exceeds threshold %.2f %s",
				parameter, value, unit, t.Warning, unit),
		}
	}

	return nil
}
