// Package store defines the durable persistence contracts for alerts
// and readings. The daemon treats the store as optional: every caller
// must keep working when an operation returns an error, falling back
// to its in-memory state.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/aeromon/aeromon/internal/types"
)

// ErrNotFound is returned when an alert id does not exist.
var ErrNotFound = errors.New("store: alert not found")

// AlertStore persists alerts and their acknowledge/resolve lifecycle.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert types.Alert) error
	AcknowledgeAlert(ctx context.Context, id, userID string, at time.Time) (*types.Alert, error)
	ResolveAlert(ctx context.Context, id string, at time.Time) (*types.Alert, error)
	RecentAlerts(ctx context.Context, limit int) ([]types.Alert, error)
	AlertsBySeverity(ctx context.Context, severity types.Severity, limit int) ([]types.Alert, error)
	UnacknowledgedAlerts(ctx context.Context) ([]types.Alert, error)
	AlertStats(ctx context.Context, since time.Time) (types.AlertStats, error)
	PurgeAlertsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ReadingStore persists metric readings for the forecast lookback.
type ReadingStore interface {
	InsertReading(ctx context.Context, reading types.Reading) error
	MetricSeries(ctx context.Context, metric string, since time.Time) ([]float64, error)
	PurgeReadingsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Store combines both persistence surfaces.
type Store interface {
	AlertStore
	ReadingStore
	Close() error
}
