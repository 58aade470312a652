package meter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickAccumulates(t *testing.T) {
	s := &State{LastRealReading: 100.0, AverageRatePerHour: 2.0}

	for i := 0; i < 60; i++ {
		s.Tick()
	}

	assert.Equal(t, 60, s.HeatingIntervalMinutes)
	assert.InDelta(t, 2.0, s.ConsumedGas, 1e-9)
	assert.Equal(t, 102.0, s.Total())
	assert.Equal(t, 2.0, s.Consumed())
}

func TestTickFallingEdgeScenario(t *testing.T) {
	// 30 timer ticks plus the final falling edge tick
	s := &State{LastRealReading: 100.0, AverageRatePerHour: 2.0}
	for i := 0; i < 31; i++ {
		s.Tick()
	}

	assert.Equal(t, 31, s.HeatingIntervalMinutes)
	assert.InDelta(t, 31*2.0/60, s.ConsumedGas, 1e-9)
	assert.Equal(t, 1.033, s.Consumed())
}

func TestConsumptionInvariant(t *testing.T) {
	s := &State{AverageRatePerHour: 1.7}
	for i := 0; i < 500; i++ {
		s.Tick()
		expected := float64(s.HeatingIntervalMinutes) * s.AverageRatePerHour / 60
		assert.InEpsilon(t, expected, s.ConsumedGas, 1e-9)
	}
}

func TestApplyRealReadingRecalculates(t *testing.T) {
	ts := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	s := &State{LastRealReading: 100.0, AverageRatePerHour: 2.0, HeatingIntervalMinutes: 60, ConsumedGas: 2.0}

	err := s.ApplyRealReading(103.0, ts, true)
	require.NoError(t, err)

	assert.Equal(t, 3.0, s.AverageRatePerHour)
	assert.Equal(t, 103.0, s.LastRealReading)
	assert.Equal(t, ts, s.LastRealTimestamp)
	assert.Equal(t, 0, s.HeatingIntervalMinutes)
	assert.Equal(t, 0.0, s.ConsumedGas)
}

func TestApplyRealReadingNoRecalculate(t *testing.T) {
	s := &State{LastRealReading: 100.0, AverageRatePerHour: 2.0, HeatingIntervalMinutes: 60, ConsumedGas: 2.0}

	err := s.ApplyRealReading(103.0, time.Now(), false)
	require.NoError(t, err)

	assert.Equal(t, 2.0, s.AverageRatePerHour)
	assert.Equal(t, 103.0, s.LastRealReading)
	assert.Equal(t, 0, s.HeatingIntervalMinutes)
	assert.Equal(t, 0.0, s.ConsumedGas)
}

func TestApplyRealReadingRejectsDecrease(t *testing.T) {
	ts := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	s := &State{LastRealReading: 100.0, LastRealTimestamp: ts, AverageRatePerHour: 2.0, HeatingIntervalMinutes: 60, ConsumedGas: 2.0}

	err := s.ApplyRealReading(99.0, time.Now(), true)
	assert.ErrorIs(t, err, ErrReadingDecreased)

	// nothing changed
	assert.Equal(t, 100.0, s.LastRealReading)
	assert.Equal(t, ts, s.LastRealTimestamp)
	assert.Equal(t, 2.0, s.AverageRatePerHour)
	assert.Equal(t, 60, s.HeatingIntervalMinutes)
	assert.Equal(t, 2.0, s.ConsumedGas)
}

func TestApplyRealReadingWithoutRuntime(t *testing.T) {
	s := &State{LastRealReading: 100.0, AverageRatePerHour: 2.0}

	err := s.ApplyRealReading(105.0, time.Now(), true)
	require.NoError(t, err)

	assert.Equal(t, 105.0, s.LastRealReading)
	assert.Equal(t, 2.0, s.AverageRatePerHour)
	assert.Equal(t, 0, s.HeatingIntervalMinutes)
	assert.Equal(t, 0.0, s.ConsumedGas)
}

func TestApplyRealReadingZeroUsage(t *testing.T) {
	// the boiler ran but the real meter did not move: rate calibrates to 0
	s := &State{LastRealReading: 100.0, AverageRatePerHour: 2.0, HeatingIntervalMinutes: 30, ConsumedGas: 1.0}

	err := s.ApplyRealReading(100.0, time.Now(), true)
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.AverageRatePerHour)
	assert.Equal(t, 0, s.HeatingIntervalMinutes)
	assert.Equal(t, 0.0, s.ConsumedGas)
}

func TestMonotonicReadings(t *testing.T) {
	s := &State{}
	previous := 0.0
	for _, v := range []float64{1, 5, 5, 2, 7, 6.9, 100} {
		err := s.ApplyRealReading(v, time.Now(), true)
		if v >= previous {
			assert.NoError(t, err)
			previous = v
		} else {
			assert.ErrorIs(t, err, ErrReadingDecreased)
		}
		assert.Equal(t, previous, s.LastRealReading)
	}
}

func TestHeatingInterval(t *testing.T) {
	var tests = []struct {
		minutes  int
		expected string
	}{
		{0, "0h 0m"},
		{5, "0h 5m"},
		{60, "1h 0m"},
		{61, "1h 1m"},
		{125, "2h 5m"},
	}
	for _, tt := range tests {
		s := &State{HeatingIntervalMinutes: tt.minutes}
		assert.Equal(t, tt.expected, s.HeatingInterval())
	}
}

func TestRounding(t *testing.T) {
	s := &State{LastRealReading: 100.0, AverageRatePerHour: 1.0, HeatingIntervalMinutes: 1, ConsumedGas: 1.0 / 60}
	assert.Equal(t, 0.017, s.Consumed())
	assert.Equal(t, 100.017, s.Total())
}
