package meter

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vgmeter/controller/pkg/boiler"
	"github.com/vgmeter/controller/pkg/metrics"
)

// Persister stores the full meter state after every mutation. Implemented by
// pkg/store.
type Persister interface {
	Save(ctx context.Context, s *State, boilerEntityID string) error
}

// Notifier is told about every state change with a fresh read-model
// snapshot. Implemented by the MQTT sensor publisher and the metrics
// recorder.
type Notifier interface {
	MeterUpdated(Reading)
}

// Reading is the read model exposed to the sensor layer. It is a value
// snapshot and never aliases coordinator state.
type Reading struct {
	Total                  float64   `json:"gas_meter_total"`
	Consumed               float64   `json:"consumed_gas"`
	HeatingInterval        string    `json:"heating_interval"`
	HeatingIntervalMinutes int       `json:"heating_interval_minutes"`
	LastRealReading        float64   `json:"last_real_meter_reading"`
	LastRealTimestamp      time.Time `json:"last_real_meter_timestamp"`
	AverageRatePerHour     float64   `json:"average_rate_per_h"`
	BoilerRunning          bool      `json:"boiler_running"`
	BoilerEntityID         string    `json:"boiler_entity_id"`
	Unit                   Unit      `json:"unit"`
}

type event interface{}

type statusEvent struct {
	status string
	attrs  map[string]string
}

type readingEvent struct {
	ctx         context.Context
	value       float64
	ts          time.Time
	recalculate bool
	resp        chan error
}

// Coordinator owns the State exclusively. All three trigger sources (boiler
// status changes, the periodic tick timer and manual readings) are funneled
// through one event channel and applied by a single consumer in Run, so
// every mutate-then-persist sequence runs to completion before the next one
// starts.
type Coordinator struct {
	entityID string
	kind     boiler.Kind
	interval time.Duration

	state    *State
	store    Persister
	notifies []Notifier

	events      chan event
	initialized bool

	mutex   sync.RWMutex
	current Reading
}

func NewCoordinator(boilerEntityID string, interval time.Duration, state *State, store Persister) *Coordinator {
	c := &Coordinator{
		entityID: boilerEntityID,
		kind:     boiler.KindFromEntityID(boilerEntityID),
		interval: interval,
		state:    state,
		store:    store,
		events:   make(chan event, 16),
	}
	c.setCurrent()
	return c
}

func (c *Coordinator) AddNotifier(n Notifier) {
	c.notifies = append(c.notifies, n)
}

// CurrentReading returns the last published read-model snapshot. Safe to
// call from any goroutine.
func (c *Coordinator) CurrentReading() Reading {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.current
}

// HandleStatus enqueues a raw boiler status observation. Called by the MQTT
// subscription and the modbus poller. Blocks until the observation is
// queued so edges are never lost; ctx unblocks the producer on teardown.
func (c *Coordinator) HandleStatus(ctx context.Context, status string, attrs map[string]string) {
	select {
	case c.events <- statusEvent{status: status, attrs: attrs}:
	case <-ctx.Done():
		logrus.Debug("dropping boiler status observation, shutting down")
	}
}

// ApplyReading submits an authoritative manual meter reading and waits for
// the coordinator to apply it. Returns ErrReadingDecreased when the reading
// is below the previous real reading. If ctx is cancelled before the
// coordinator picks the reading up, the reading is discarded and ctx.Err()
// is returned; once applied it stays applied.
func (c *Coordinator) ApplyReading(ctx context.Context, value float64, ts time.Time, recalculate bool) error {
	ev := readingEvent{ctx: ctx, value: value, ts: ts, recalculate: recalculate, resp: make(chan error, 1)}
	select {
	case c.events <- ev:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-ev.resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run consumes events until ctx is cancelled, then writes a final snapshot.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.drainEvents()
			if err := c.store.Save(context.Background(), c.state, c.entityID); err != nil {
				logrus.Errorf("final snapshot save: %v", err)
			}
			return
		case <-ticker.C:
			c.handleTimer()
		case ev := <-c.events:
			switch e := ev.(type) {
			case statusEvent:
				c.handleStatus(ctx, e, time.Now())
			case readingEvent:
				e.resp <- c.handleReading(ctx, e)
			}
		}
	}
}

// drainEvents applies events that were already queued when shutdown began,
// so no submitter is left waiting on an unanswered response and no observed
// edge is lost before the final snapshot.
func (c *Coordinator) drainEvents() {
	for {
		select {
		case ev := <-c.events:
			switch e := ev.(type) {
			case statusEvent:
				c.handleStatus(context.Background(), e, time.Now())
			case readingEvent:
				e.resp <- c.handleReading(context.Background(), e)
			}
		default:
			return
		}
	}
}

func (c *Coordinator) handleTimer() {
	if !c.state.BoilerRunning {
		return
	}
	c.tick(context.Background())
}

func (c *Coordinator) handleStatus(ctx context.Context, ev statusEvent, now time.Time) {
	running := boiler.Classify(c.kind, ev.status, ev.attrs)

	if !c.initialized {
		c.initialized = true
		c.state.BoilerRunning = running
		c.state.BoilerChangedAt = now
		c.notify()
		logrus.WithFields(logrus.Fields{"entity": c.entityID, "running": running}).Info("initial boiler state")
		return
	}

	if c.state.BoilerRunning == running {
		return
	}

	logrus.WithFields(logrus.Fields{"entity": c.entityID, "running": running}).Debug("boiler state change")

	// one last minute counts on the falling edge
	if c.state.BoilerRunning && !running {
		c.tick(ctx)
	}

	c.state.BoilerRunning = running
	c.state.BoilerChangedAt = now
	c.notify()
}

func (c *Coordinator) tick(ctx context.Context) {
	c.state.Tick()
	metrics.TickObserved()
	logrus.WithFields(logrus.Fields{
		"interval": c.state.HeatingInterval(),
		"consumed": c.state.Consumed(),
		"total":    c.state.Total(),
	}).Debug("runtime tick")
	c.notify()
	c.save(ctx)
}

func (c *Coordinator) handleReading(ctx context.Context, ev readingEvent) error {
	// the submitter already gave up, do not apply behind its back
	if err := ev.ctx.Err(); err != nil {
		return err
	}

	previous := c.state.LastRealReading
	runtimeMinutes := c.state.HeatingIntervalMinutes

	err := c.state.ApplyRealReading(ev.value, ev.ts, ev.recalculate)
	if err != nil {
		metrics.ReadingRejected()
		logrus.WithFields(logrus.Fields{
			"reading":  ev.value,
			"previous": previous,
		}).Error("real meter reading rejected")
		return err
	}

	metrics.ReadingAccepted()
	fields := logrus.Fields{
		"reading":  ev.value,
		"previous": previous,
		"runtime":  runtimeMinutes,
		"rate":     c.state.AverageRatePerHour,
	}
	if runtimeMinutes > 0 && ev.recalculate && c.state.AverageRatePerHour == 0 {
		logrus.WithFields(fields).Warn("real meter reading did not move despite runtime, rate calibrated to 0")
	} else {
		logrus.WithFields(fields).Info("real meter reading applied")
	}

	c.notify()
	c.save(ctx)
	return nil
}

func (c *Coordinator) save(ctx context.Context) {
	if err := c.store.Save(ctx, c.state, c.entityID); err != nil {
		metrics.SnapshotSaveFailed()
		logrus.Errorf("snapshot save: %v", err)
		return
	}
	metrics.SnapshotSaved()
}

func (c *Coordinator) setCurrent() {
	c.mutex.Lock()
	c.current = Reading{
		Total:                  c.state.Total(),
		Consumed:               c.state.Consumed(),
		HeatingInterval:        c.state.HeatingInterval(),
		HeatingIntervalMinutes: c.state.HeatingIntervalMinutes,
		LastRealReading:        c.state.LastRealReading,
		LastRealTimestamp:      c.state.LastRealTimestamp,
		AverageRatePerHour:     c.state.AverageRatePerHour,
		BoilerRunning:          c.state.BoilerRunning,
		BoilerEntityID:         c.entityID,
		Unit:                   c.state.Unit,
	}
	c.mutex.Unlock()
}

func (c *Coordinator) notify() {
	c.setCurrent()
	r := c.CurrentReading()
	metrics.ObserveMeter(r.Total, r.Consumed, r.AverageRatePerHour, r.HeatingIntervalMinutes, r.BoilerRunning)
	for _, n := range c.notifies {
		n.MeterUpdated(r)
	}
}
