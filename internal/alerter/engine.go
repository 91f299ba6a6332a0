// Package alerter owns the alert lifecycle: deduplication against the
// in-memory active list, persistence with memory-only fallback, and
// the query surface consumed by the HTTP layer.
package alerter

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aeromon/aeromon/internal/metrics"
	"github.com/aeromon/aeromon/internal/store"
	"github.com/aeromon/aeromon/internal/thresholds"
	"github.com/aeromon/aeromon/internal/types"
)

const (
	// DefaultWindow suppresses repeat (type, severity) alerts.
	DefaultWindow = 5 * time.Minute
	// DefaultMaxActive caps the in-memory active list.
	DefaultMaxActive = 100
)

// Engine manages alert creation, deduplication and queries. The store
// may be nil, in which case every operation runs memory-only.
type Engine struct {
	store     store.AlertStore
	logger    zerolog.Logger
	window    time.Duration
	maxActive int
	now       func() time.Time

	mu     sync.RWMutex
	active []types.Alert // oldest first, evicted from the front
}

// NewEngine creates an alert engine. Zero window or maxActive select
// the defaults.
func NewEngine(st store.AlertStore, logger zerolog.Logger, window time.Duration, maxActive int) *Engine {
	if window <= 0 {
		window = DefaultWindow
	}
	if maxActive <= 0 {
		maxActive = DefaultMaxActive
	}
	return &Engine{
		store:     st,
		logger:    logger.With().Str("component", "alerter").Logger(),
		window:    window,
		maxActive: maxActive,
		now:       time.Now,
	}
}

// Process turns threshold events into alerts. Events matching an
// active (type, severity) pair within the dedup window are suppressed.
// New alerts are persisted when the store is reachable; otherwise they
// live memory-only under a timestamp-derived fallback id. Returns the
// batch of newly created alerts for broadcasting.
func (e *Engine) Process(ctx context.Context, events []thresholds.Event, loc *types.Location) []types.Alert {
	if len(events) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	location := types.Location{City: "Unknown"}
	if loc != nil {
		location = *loc
	}

	var fresh []types.Alert
	for _, ev := range events {
		if e.duplicateLocked(ev, now) {
			metrics.AlertsSuppressed.Inc()
			e.logger.Debug().
				Str("type", ev.Type).
				Str("severity", string(ev.Severity)).
				Msg("duplicate alert suppressed")
			continue
		}

		alert := types.Alert{
			ID:        uuid.NewString(),
			Type:      ev.Type,
			Severity:  ev.Severity,
			Message:   ev.Message,
			Value:     ev.Value,
			Threshold: ev.Threshold,
			Location:  location,
			CreatedAt: now,
		}

		if e.store != nil {
			if err := e.store.InsertAlert(ctx, alert); err != nil {
				metrics.StoreErrors.WithLabelValues("insert_alert").Inc()
				alert.ID = fallbackID(now)
				e.logger.Warn().
					Err(err).
					Str("type", ev.Type).
					Msg("store unreachable, keeping alert in memory only")
			}
		} else {
			alert.ID = fallbackID(now)
		}

		e.active = append(e.active, alert)
		if len(e.active) > e.maxActive {
			e.active = e.active[len(e.active)-e.maxActive:]
		}
		fresh = append(fresh, alert)
		metrics.AlertsFired.WithLabelValues(string(alert.Severity)).Inc()

		e.logger.Info().
			Str("alert_id", alert.ID).
			Str("type", alert.Type).
			Str("severity", string(alert.Severity)).
			Float64("value", alert.Value).
			Msg("alert fired")
	}

	return fresh
}

// duplicateLocked reports whether an active alert with the same
// (type, severity) pair exists inside the dedup window.
func (e *Engine) duplicateLocked(ev thresholds.Event, now time.Time) bool {
	for i := len(e.active) - 1; i >= 0; i-- {
		a := e.active[i]
		if a.Type == ev.Type && a.Severity == ev.Severity && a.Active(now, e.window) {
			return true
		}
	}
	return false
}

// Acknowledge marks an alert acknowledged in the store and, best
// effort, in the in-memory mirror. Returns nil when the alert is not
// found or the store is unavailable.
func (e *Engine) Acknowledge(ctx context.Context, id, userID string) *types.Alert {
	now := e.now()

	var updated *types.Alert
	if e.store != nil {
		var err error
		updated, err = e.store.AcknowledgeAlert(ctx, id, userID, now)
		if err != nil {
			metrics.StoreErrors.WithLabelValues("acknowledge").Inc()
			e.logger.Warn().Err(err).Str("alert_id", id).Msg("acknowledge failed")
			updated = nil
		}
	}

	e.mu.Lock()
	for i := range e.active {
		if e.active[i].ID == id {
			e.active[i].Acknowledged = true
			e.active[i].AcknowledgedBy = userID
			at := now
			e.active[i].AcknowledgedAt = &at
			if updated == nil {
				mirror := e.active[i]
				updated = &mirror
			}
			break
		}
	}
	e.mu.Unlock()

	return updated
}

// Resolve marks an alert resolved in the store and removes it from the
// active list, ending its dedup suppression. Returns nil when the
// alert is not found or the store is unavailable.
func (e *Engine) Resolve(ctx context.Context, id string) *types.Alert {
	now := e.now()

	var updated *types.Alert
	if e.store != nil {
		var err error
		updated, err = e.store.ResolveAlert(ctx, id, now)
		if err != nil {
			metrics.StoreErrors.WithLabelValues("resolve").Inc()
			e.logger.Warn().Err(err).Str("alert_id", id).Msg("resolve failed")
			updated = nil
		}
	}

	e.mu.Lock()
	for i := range e.active {
		if e.active[i].ID == id {
			if updated == nil {
				mirror := e.active[i]
				mirror.Resolved = true
				at := now
				mirror.ResolvedAt = &at
				updated = &mirror
			}
			e.active = append(e.active[:i], e.active[i+1:]...)
			break
		}
	}
	e.mu.Unlock()

	return updated
}

// Recent returns the newest alerts, durable-preferred with in-memory
// fallback, most recent first.
func (e *Engine) Recent(ctx context.Context, limit int) []types.Alert {
	if limit <= 0 {
		limit = 50
	}
	if e.store != nil {
		alerts, err := e.store.RecentAlerts(ctx, limit)
		if err == nil {
			return alerts
		}
		metrics.StoreErrors.WithLabelValues("recent").Inc()
		e.logger.Warn().Err(err).Msg("recent alerts query failed, using memory")
	}
	return e.memorySnapshot(limit, func(types.Alert) bool { return true })
}

// BySeverity returns recent alerts of one severity.
func (e *Engine) BySeverity(ctx context.Context, severity types.Severity, limit int) []types.Alert {
	if limit <= 0 {
		limit = 50
	}
	if e.store != nil {
		alerts, err := e.store.AlertsBySeverity(ctx, severity, limit)
		if err == nil {
			return alerts
		}
		metrics.StoreErrors.WithLabelValues("by_severity").Inc()
		e.logger.Warn().Err(err).Msg("severity query failed, using memory")
	}
	return e.memorySnapshot(limit, func(a types.Alert) bool { return a.Severity == severity })
}

// Unacknowledged returns every alert not yet acknowledged.
func (e *Engine) Unacknowledged(ctx context.Context) []types.Alert {
	if e.store != nil {
		alerts, err := e.store.UnacknowledgedAlerts(ctx)
		if err == nil {
			return alerts
		}
		metrics.StoreErrors.WithLabelValues("unacknowledged").Inc()
		e.logger.Warn().Err(err).Msg("unacknowledged query failed, using memory")
	}
	return e.memorySnapshot(0, func(a types.Alert) bool { return !a.Acknowledged })
}

// Stats aggregates alert counts over the last N days, grouped by
// severity and type.
func (e *Engine) Stats(ctx context.Context, days int) types.AlertStats {
	if days <= 0 {
		days = 7
	}
	period := fmt.Sprintf("%d days", days)

	if e.store != nil {
		since := e.now().Add(-time.Duration(days) * 24 * time.Hour)
		stats, err := e.store.AlertStats(ctx, since)
		if err == nil {
			stats.Period = period
			return stats
		}
		metrics.StoreErrors.WithLabelValues("stats").Inc()
		e.logger.Warn().Err(err).Msg("stats query failed, using memory")
	}

	stats := types.AlertStats{
		BySeverity: make(map[string]int),
		ByType:     make(map[string]int),
		Period:     period,
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, a := range e.active {
		stats.Total++
		if !a.Acknowledged {
			stats.Unacknowledged++
		}
		stats.BySeverity[string(a.Severity)]++
		stats.ByType[a.Type]++
	}
	return stats
}

// Active returns a copy of the in-memory active alert list, oldest first.
func (e *Engine) Active() []types.Alert {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]types.Alert, len(e.active))
	copy(out, e.active)
	return out
}

// memorySnapshot filters the active list and returns up to limit
// entries, most recent first. limit <= 0 means no cap.
func (e *Engine) memorySnapshot(limit int, keep func(types.Alert) bool) []types.Alert {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []types.Alert
	for i := len(e.active) - 1; i >= 0; i-- {
		if !keep(e.active[i]) {
			continue
		}
		out = append(out, e.active[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// fallbackID builds the degraded-mode identifier used when the durable
// store cannot assign one.
func fallbackID(t time.Time) string {
	return "mem-" + strconv.FormatInt(t.UnixMilli(), 10)
}
