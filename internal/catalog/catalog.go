package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aquasense/waterquality-server/internal/database"
	"github.com/aquasense/waterquality-server/pkg/config"
)

// BandThreshold defines a symmetric safe band. Values outside the
// critical band are critical; values outside the (wider) warning band are
// warnings.
type BandThreshold struct {
	CriticalMin float64
	CriticalMax float64
	WarningMin  float64
	WarningMax  float64
}

// CeilingThreshold defines exceeds-threshold semantics: a value above the
// critical ceiling is critical, above the warning ceiling a warning.
type CeilingThreshold struct {
	Warning  float64
	Critical float64
}

// Thresholds is the full per-device threshold set
type Thresholds struct {
	PH        BandThreshold
	Turbidity CeilingThreshold
	TDS       CeilingThreshold
}

// OverrideSource loads per-device threshold overrides. *database.DB
// satisfies it.
type OverrideSource interface {
	GetThresholdOverrides(ctx context.Context, deviceID string) ([]*database.ThresholdOverride, error)
}

// Catalog resolves the thresholds for a device: configured defaults,
// adjusted by any active per-device overrides. Overrides are cached and
// reloaded after cacheValidity.
type Catalog struct {
	defaults      Thresholds
	source        OverrideSource
	cache         map[string]Thresholds
	lastCacheLoad time.Time
	cacheValidity time.Duration
	mu            sync.Mutex
}

// New creates a catalog from the configured defaults. source may be nil,
// in which case every device gets the defaults.
func New(cfg config.ThresholdConfig, source OverrideSource) *Catalog {
	return &Catalog{
		defaults: Thresholds{
			PH: BandThreshold{
				CriticalMin: cfg.PHCriticalMin,
				CriticalMax: cfg.PHCriticalMax,
				WarningMin:  cfg.PHWarningMin,
				WarningMax:  cfg.PHWarningMax,
			},
			Turbidity: CeilingThreshold{
				Warning:  cfg.TurbidityWarning,
				Critical: cfg.TurbidityCritical,
			},
			TDS: CeilingThreshold{
				Warning:  cfg.TDSWarning,
				Critical: cfg.TDSCritical,
			},
		},
		source:        source,
		cache:         make(map[string]Thresholds),
		cacheValidity: 5 * time.Minute,
	}
}

// Defaults returns the configured default thresholds
func (c *Catalog) Defaults() Thresholds {
	return c.defaults
}

// ThresholdsFor resolves the thresholds for a device
func (c *Catalog) ThresholdsFor(ctx context.Context, deviceID string) (Thresholds, error) {
	if c.source == nil {
		return c.defaults, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Check cache
	if time.Since(c.lastCacheLoad) < c.cacheValidity {
		if thresholds, ok := c.cache[deviceID]; ok {
			return thresholds, nil
		}
	} else {
		c.cache = make(map[string]Thresholds)
	}

	overrides, err := c.source.GetThresholdOverrides(ctx, deviceID)
	if err != nil {
		return c.defaults, fmt.Errorf("failed to load threshold overrides: %w", err)
	}

	thresholds := c.defaults
	for _, o := range overrides {
		applyOverride(&thresholds, o)
	}

	c.cache[deviceID] = thresholds
	c.lastCacheLoad = time.Now()

	return thresholds, nil
}

func applyOverride(t *Thresholds, o *database.ThresholdOverride) {
	switch o.Parameter {
	case "ph":
		if o.CriticalLow != nil {
			t.PH.CriticalMin = *o.CriticalLow
		}
		if o.CriticalHigh != nil {
			t.PH.CriticalMax = *o.CriticalHigh
		}
		if o.WarningLow != nil {
			t.PH.WarningMin = *o.WarningLow
		}
		if o.WarningHigh != nil {
			t.PH.WarningMax = *o.WarningHigh
		}
	case "turbidity":
		if o.WarningHigh != nil {
			t.Turbidity.Warning = *o.WarningHigh
		}
		if o.CriticalHigh != nil {
			t.Turbidity.Critical = *o.CriticalHigh
		}
	case "tds":
		if o.WarningHigh != nil {
			t.TDS.Warning = *o.WarningHigh
		}
		if o.CriticalHigh != nil {
			t.TDS.Critical = *o.CriticalHigh
		}
	}
}
