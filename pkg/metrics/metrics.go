// Package metrics exposes prometheus collectors for the meter estimation
// loop. Collectors are package level and registered on the default
// registry; pkg/web serves them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gasmeter_ticks_total",
		Help: "Total number of one-minute runtime ticks applied.",
	})
	snapshotSavesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gasmeter_snapshot_saves_total",
		Help: "Total number of successful snapshot saves.",
	})
	snapshotSaveFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gasmeter_snapshot_save_failures_total",
		Help: "Total number of failed snapshot saves.",
	})
	readingsAcceptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gasmeter_real_readings_accepted_total",
		Help: "Total number of accepted manual meter readings.",
	})
	readingsRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gasmeter_real_readings_rejected_total",
		Help: "Total number of rejected manual meter readings.",
	})

	meterTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gasmeter_total",
		Help: "Estimated current meter reading in canonical units.",
	})
	consumedGas = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gasmeter_consumed_gas",
		Help: "Estimated consumption since the last real reading.",
	})
	averageRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gasmeter_average_rate_per_hour",
		Help: "Calibrated consumption rate while the boiler runs.",
	})
	heatingIntervalMinutes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gasmeter_heating_interval_minutes",
		Help: "Accumulated boiler runtime since the last real reading.",
	})
	boilerRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gasmeter_boiler_running",
		Help: "Whether the boiler proxy entity is classified as running.",
	})
)

func TickObserved() {
	ticksTotal.Inc()
}

func SnapshotSaved() {
	snapshotSavesTotal.Inc()
}

func SnapshotSaveFailed() {
	snapshotSaveFailuresTotal.Inc()
}

func ReadingAccepted() {
	readingsAcceptedTotal.Inc()
}

func ReadingRejected() {
	readingsRejectedTotal.Inc()
}

// ObserveMeter updates the state gauges after every mutation.
func ObserveMeter(total, consumed, ratePerHour float64, intervalMinutes int, running bool) {
	meterTotal.Set(total)
	consumedGas.Set(consumed)
	averageRate.Set(ratePerHour)
	heatingIntervalMinutes.Set(float64(intervalMinutes))
	if running {
		boilerRunning.Set(1)
	} else {
		boilerRunning.Set(0)
	}
}
