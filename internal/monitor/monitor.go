// Package monitor runs the polling loop that drives the whole
// pipeline: fetch a reading, evaluate thresholds, raise alerts, and
// fan results out to websocket clients and webhook channels.
package monitor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aeromon/aeromon/internal/alerter"
	"github.com/aeromon/aeromon/internal/history"
	"github.com/aeromon/aeromon/internal/metrics"
	"github.com/aeromon/aeromon/internal/notifier"
	"github.com/aeromon/aeromon/internal/source"
	"github.com/aeromon/aeromon/internal/store"
	"github.com/aeromon/aeromon/internal/thresholds"
	"github.com/aeromon/aeromon/internal/types"
)

// retentionSweepInterval is how often expired rows are purged.
const retentionSweepInterval = time.Hour

// Dispatcher receives the frames a poll cycle produces. The broadcast
// hub is the production implementation.
type Dispatcher interface {
	PushReading(types.Reading)
	PushHistory([]types.Reading)
	PushWeather(types.Reading)
	PushAlerts([]types.Alert)
}

// Monitor ties the source, evaluator, alerter and outputs together.
type Monitor struct {
	src       source.Source
	table     thresholds.Table
	engine    *alerter.Engine
	hist      *history.Buffer
	hub       Dispatcher
	notify    *notifier.Notifier
	store     store.Store // may be nil
	retention time.Duration
	interval  time.Duration
	logger    zerolog.Logger
}

// Options carries the monitor's collaborators. Store may be nil when
// the daemon runs memory-only.
type Options struct {
	Source    source.Source
	Table     thresholds.Table
	Engine    *alerter.Engine
	History   *history.Buffer
	Hub       Dispatcher
	Notifier  *notifier.Notifier
	Store     store.Store
	Retention time.Duration
	Interval  time.Duration
}

// New creates a monitor from its collaborators.
func New(opts Options, logger zerolog.Logger) *Monitor {
	return &Monitor{
		src:       opts.Source,
		table:     opts.Table,
		engine:    opts.Engine,
		hist:      opts.History,
		hub:       opts.Hub,
		notify:    opts.Notifier,
		store:     opts.Store,
		retention: opts.Retention,
		interval:  opts.Interval,
		logger:    logger.With().Str("component", "monitor").Logger(),
	}
}

// Run polls until ctx is cancelled. The first poll happens immediately
// so clients have data without waiting a full interval.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info().
		Str("source", m.src.Name()).
		Dur("interval", m.interval).
		Msg("monitor started")

	if m.store != nil {
		go m.retentionLoop(ctx)
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("monitor stopped")
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

// poll runs one fetch/evaluate/publish cycle.
func (m *Monitor) poll(ctx context.Context) {
	start := time.Now()
	reading, err := m.src.Fetch(ctx)
	metrics.PollDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PollErrors.Inc()
		m.logger.Warn().Err(err).Str("source", m.src.Name()).Msg("fetch failed")
		return
	}
	metrics.ReadingsTotal.WithLabelValues(m.src.Name()).Inc()

	m.hist.Add(reading)
	if m.store != nil {
		if err := m.store.InsertReading(ctx, reading); err != nil {
			metrics.StoreErrors.WithLabelValues("insert_reading").Inc()
			m.logger.Warn().Err(err).Msg("persisting reading failed")
		}
	}

	events := m.table.CheckAll(reading)
	alerts := m.engine.Process(ctx, events, reading.Location)

	m.hub.PushReading(reading)
	m.hub.PushWeather(reading)
	m.hub.PushHistory(m.hist.All())
	m.hub.PushAlerts(alerts)

	if len(alerts) > 0 && m.notify != nil {
		m.notify.SendAlerts(ctx, alerts)
	}
}

// retentionLoop purges rows older than the retention period.
func (m *Monitor) retentionLoop(ctx context.Context) {
	ticker := time.NewTicker(retentionSweepInterval)
	defer ticker.Stop()

	m.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *Monitor) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-m.retention)

	alerts, err := m.store.PurgeAlertsBefore(ctx, cutoff)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("purge_alerts").Inc()
		m.logger.Warn().Err(err).Msg("alert purge failed")
	}
	readings, err := m.store.PurgeReadingsBefore(ctx, cutoff)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("purge_readings").Inc()
		m.logger.Warn().Err(err).Msg("reading purge failed")
	}
	if alerts > 0 || readings > 0 {
		m.logger.Info().
			Int64("alerts", alerts).
			Int64("readings", readings).
			Msg("retention sweep purged rows")
	}
}
