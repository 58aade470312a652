package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vgmeter/controller/pkg/meter"
)

func TestLoadMissingFile(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	snapshot, err := fs.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snapshot)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "meter", "state.json"))

	ts := time.Date(2026, 3, 15, 7, 30, 0, 0, time.UTC)
	state := &meter.State{
		LastRealReading:        123.456,
		LastRealTimestamp:      ts,
		AverageRatePerHour:     1.75,
		HeatingIntervalMinutes: 42,
		ConsumedGas:            1.225,
		Unit:                   meter.UnitM3,
	}

	require.NoError(t, fs.Save(context.Background(), state, "switch.boiler"))

	snapshot, err := fs.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, "switch.boiler", snapshot.BoilerEntityID)

	loaded := snapshot.State(Defaults{Unit: meter.UnitCCF})
	assert.Equal(t, state.LastRealReading, loaded.LastRealReading)
	assert.True(t, loaded.LastRealTimestamp.Equal(ts))
	assert.Equal(t, state.AverageRatePerHour, loaded.AverageRatePerHour)
	assert.Equal(t, state.HeatingIntervalMinutes, loaded.HeatingIntervalMinutes)
	assert.Equal(t, state.ConsumedGas, loaded.ConsumedGas)
	assert.Equal(t, meter.UnitM3, loaded.Unit)
}

func TestSaveOverwrites(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "state.json"))

	require.NoError(t, fs.Save(context.Background(), &meter.State{LastRealReading: 1}, "switch.boiler"))
	require.NoError(t, fs.Save(context.Background(), &meter.State{LastRealReading: 2}, "switch.boiler"))

	snapshot, err := fs.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2.0, *snapshot.LastRealMeterReading)
}

func TestSnapshotMissingFieldsUseDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"consumed_gas": 0.5}`), 0644))

	fs := NewFileStore(path)
	snapshot, err := fs.Load(context.Background())
	require.NoError(t, err)

	d := Defaults{InitialMeterReading: 100.0, InitialAverageRate: 2.0, Unit: meter.UnitM3}
	state := snapshot.State(d)
	assert.Equal(t, 100.0, state.LastRealReading)
	assert.Equal(t, 2.0, state.AverageRatePerHour)
	assert.Equal(t, 0.5, state.ConsumedGas)
	assert.Equal(t, 0, state.HeatingIntervalMinutes)
	assert.Equal(t, meter.UnitM3, state.Unit)
	assert.WithinDuration(t, time.Now(), state.LastRealTimestamp, time.Minute)
}

func TestNilSnapshotState(t *testing.T) {
	var snapshot *Snapshot
	d := Defaults{InitialMeterReading: 10, InitialAverageRate: 1, Unit: meter.UnitCCF}
	state := snapshot.State(d)
	assert.Equal(t, 10.0, state.LastRealReading)
	assert.Equal(t, 1.0, state.AverageRatePerHour)
	assert.Equal(t, meter.UnitCCF, state.Unit)
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

	fs := NewFileStore(path)
	_, err := fs.Load(context.Background())
	assert.Error(t, err)
}
