package meter

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrReadingDecreased is returned when a manual reading is below the current
// authoritative reading. The state is left untouched.
var ErrReadingDecreased = errors.New("meter reading below previous real reading")

type Unit string

const (
	UnitM3  Unit = "m3"
	UnitCCF Unit = "CCF"
)

const (
	minutesPerHour = 60
	decimalPlaces  = 3
)

// State holds all mutable meter data. It is exclusively owned by the
// Coordinator; everything in this file is pure and free of I/O so the
// estimation rules can be tested without a running event loop.
type State struct {
	LastRealReading        float64
	LastRealTimestamp      time.Time
	AverageRatePerHour     float64
	HeatingIntervalMinutes int
	ConsumedGas            float64

	BoilerRunning   bool
	BoilerChangedAt time.Time

	Unit Unit
}

// Tick advances the meter by one minute of boiler runtime.
func (s *State) Tick() {
	s.HeatingIntervalMinutes++
	s.ConsumedGas += s.AverageRatePerHour / minutesPerHour
}

// ApplyRealReading reconciles the estimate against an authoritative manual
// reading. Readings below the previous real reading are rejected and leave
// the state untouched. With accumulated runtime and recalculate set, the
// average consumption rate is recalibrated from the actual delta. Both
// runtime counters are always reset on acceptance.
func (s *State) ApplyRealReading(value float64, ts time.Time, recalculate bool) error {
	if value < s.LastRealReading {
		return fmt.Errorf("%w: got %.3f previous %.3f", ErrReadingDecreased, value, s.LastRealReading)
	}

	if s.HeatingIntervalMinutes > 0 && recalculate {
		actualUsed := value - s.LastRealReading
		runtimeHours := float64(s.HeatingIntervalMinutes) / minutesPerHour
		s.AverageRatePerHour = actualUsed / runtimeHours
	}

	s.LastRealReading = value
	s.LastRealTimestamp = ts
	s.HeatingIntervalMinutes = 0
	s.ConsumedGas = 0
	return nil
}

// Total is the estimated current meter reading.
func (s *State) Total() float64 {
	return round(s.LastRealReading + s.ConsumedGas)
}

// Consumed is the estimated consumption since the last real reading.
func (s *State) Consumed() float64 {
	return round(s.ConsumedGas)
}

// HeatingInterval formats the accumulated runtime as "<H>h <M>m".
func (s *State) HeatingInterval() string {
	return fmt.Sprintf("%dh %dm", s.HeatingIntervalMinutes/minutesPerHour, s.HeatingIntervalMinutes%minutesPerHour)
}

func round(v float64) float64 {
	pow := math.Pow(10, decimalPlaces)
	return math.Round(v*pow) / pow
}
