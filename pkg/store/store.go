// Package store persists the meter state as a single keyed JSON document.
package store

import (
	"context"
	"time"

	"github.com/vgmeter/controller/pkg/meter"
)

// Snapshot is the persisted document. Numeric fields that carry a
// configured default are pointers so a missing key can be told apart from a
// legitimate zero.
type Snapshot struct {
	LastRealMeterReading   *float64 `json:"last_real_meter_reading"`
	LastRealMeterTimestamp string   `json:"last_real_meter_timestamp"`
	AverageRatePerH        *float64 `json:"average_rate_per_h"`
	ConsumedGas            float64  `json:"consumed_gas"`
	HeatingIntervalMinutes int      `json:"heating_interval_minutes"`
	Unit                   string   `json:"unit"`
	BoilerEntityID         string   `json:"boiler_entity_id"`
}

// Defaults are substituted for fields missing from a loaded snapshot. They
// come from the initial configuration.
type Defaults struct {
	InitialMeterReading float64
	InitialAverageRate  float64
	Unit                meter.Unit
}

// Store is the persistence contract: Load returns nil on first run, Save
// fully overwrites the previous document.
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, s *meter.State, boilerEntityID string) error
}

// NewSnapshot captures the full meter state.
func NewSnapshot(s *meter.State, boilerEntityID string) *Snapshot {
	reading := s.LastRealReading
	rate := s.AverageRatePerHour
	return &Snapshot{
		LastRealMeterReading:   &reading,
		LastRealMeterTimestamp: s.LastRealTimestamp.Format(time.RFC3339Nano),
		AverageRatePerH:        &rate,
		ConsumedGas:            s.ConsumedGas,
		HeatingIntervalMinutes: s.HeatingIntervalMinutes,
		Unit:                   string(s.Unit),
		BoilerEntityID:         boilerEntityID,
	}
}

// State builds a meter state from the snapshot, falling back to defaults
// for missing fields. A missing or unparseable timestamp falls back to now.
func (s *Snapshot) State(d Defaults) *meter.State {
	st := StateFromDefaults(d)
	if s == nil {
		return st
	}
	if s.LastRealMeterReading != nil {
		st.LastRealReading = *s.LastRealMeterReading
	}
	if s.AverageRatePerH != nil {
		st.AverageRatePerHour = *s.AverageRatePerH
	}
	if ts, err := time.Parse(time.RFC3339Nano, s.LastRealMeterTimestamp); err == nil {
		st.LastRealTimestamp = ts
	}
	st.ConsumedGas = s.ConsumedGas
	st.HeatingIntervalMinutes = s.HeatingIntervalMinutes
	if s.Unit != "" {
		st.Unit = meter.Unit(s.Unit)
	}
	return st
}

// StateFromDefaults is the first-run state.
func StateFromDefaults(d Defaults) *meter.State {
	return &meter.State{
		LastRealReading:    d.InitialMeterReading,
		LastRealTimestamp:  time.Now(),
		AverageRatePerHour: d.InitialAverageRate,
		Unit:               d.Unit,
	}
}
