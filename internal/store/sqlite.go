package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/aeromon/aeromon/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS alerts (
  id              TEXT PRIMARY KEY,
  type            TEXT NOT NULL,
  severity        TEXT NOT NULL,
  message         TEXT NOT NULL,
  value           REAL NOT NULL,
  threshold       REAL NOT NULL,
  city            TEXT NOT NULL DEFAULT '',
  lat             REAL NOT NULL DEFAULT 0,
  lon             REAL NOT NULL DEFAULT 0,
  acknowledged    INTEGER NOT NULL DEFAULT 0,
  acknowledged_by TEXT NOT NULL DEFAULT '',
  acknowledged_at TEXT,
  resolved        INTEGER NOT NULL DEFAULT 0,
  resolved_at     TEXT,
  created_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at);
CREATE INDEX IF NOT EXISTS idx_alerts_severity_ack ON alerts(severity, acknowledged);
CREATE INDEX IF NOT EXISTS idx_alerts_type ON alerts(type);

CREATE TABLE IF NOT EXISTS readings (
  ts          TEXT NOT NULL,
  temperature REAL,
  humidity    REAL,
  co2         REAL,
  pm25        REAL,
  aqi         REAL,
  wind_speed  REAL,
  pressure    REAL,
  city        TEXT NOT NULL DEFAULT '',
  lat         REAL NOT NULL DEFAULT 0,
  lon         REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_readings_ts ON readings(ts);
`

// SQLite is the file-backed Store implementation.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and
// applies the schema. WAL and a busy timeout keep the single-writer
// daemon responsive alongside API reads.
func OpenSQLite(path string) (*SQLite, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// NewSQLiteFromDB wraps an existing connection, applying the schema.
// Used by tests with an in-memory database.
func NewSQLiteFromDB(db *sql.DB) (*SQLite, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) InsertAlert(ctx context.Context, a types.Alert) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (id, type, severity, message, value, threshold,
			city, lat, lon, acknowledged, acknowledged_by, acknowledged_at,
			resolved, resolved_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Type, string(a.Severity), a.Message, a.Value, a.Threshold,
		a.Location.City, a.Location.Lat, a.Location.Lon,
		boolInt(a.Acknowledged), a.AcknowledgedBy, timePtr(a.AcknowledgedAt),
		boolInt(a.Resolved), timePtr(a.ResolvedAt), formatTime(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (s *SQLite) AcknowledgeAlert(ctx context.Context, id, userID string, at time.Time) (*types.Alert, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE alerts SET acknowledged = 1, acknowledged_by = ?, acknowledged_at = ?
		WHERE id = ?`,
		userID, formatTime(at), id,
	)
	if err != nil {
		return nil, fmt.Errorf("acknowledge alert: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.alertByID(ctx, id)
}

func (s *SQLite) ResolveAlert(ctx context.Context, id string, at time.Time) (*types.Alert, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE alerts SET resolved = 1, resolved_at = ? WHERE id = ?`,
		formatTime(at), id,
	)
	if err != nil {
		return nil, fmt.Errorf("resolve alert: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.alertByID(ctx, id)
}

const alertColumns = `id, type, severity, message, value, threshold,
	city, lat, lon, acknowledged, acknowledged_by, acknowledged_at,
	resolved, resolved_at, created_at`

func (s *SQLite) alertByID(ctx context.Context, id string) (*types.Alert, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id)
	a, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return &a, nil
}

func (s *SQLite) RecentAlerts(ctx context.Context, limit int) ([]types.Alert, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+alertColumns+` FROM alerts ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent alerts: %w", err)
	}
	return scanAlerts(rows)
}

func (s *SQLite) AlertsBySeverity(ctx context.Context, severity types.Severity, limit int) ([]types.Alert, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE severity = ? ORDER BY created_at DESC LIMIT ?`,
		string(severity), limit)
	if err != nil {
		return nil, fmt.Errorf("alerts by severity: %w", err)
	}
	return scanAlerts(rows)
}

func (s *SQLite) UnacknowledgedAlerts(ctx context.Context) ([]types.Alert, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE acknowledged = 0 ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("unacknowledged alerts: %w", err)
	}
	return scanAlerts(rows)
}

func (s *SQLite) AlertStats(ctx context.Context, since time.Time) (types.AlertStats, error) {
	stats := types.AlertStats{
		BySeverity: make(map[string]int),
		ByType:     make(map[string]int),
	}
	cutoff := formatTime(since)

	rows, err := s.db.QueryContext(ctx, `
		SELECT severity, type, COUNT(*) FROM alerts
		WHERE created_at >= ? GROUP BY severity, type`, cutoff)
	if err != nil {
		return stats, fmt.Errorf("alert stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var severity, typ string
		var count int
		if err := rows.Scan(&severity, &typ, &count); err != nil {
			return stats, fmt.Errorf("scan stats: %w", err)
		}
		stats.BySeverity[severity] += count
		stats.ByType[typ] += count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("alert stats rows: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM alerts WHERE created_at >= ? AND acknowledged = 0`,
		cutoff).Scan(&stats.Unacknowledged)
	if err != nil {
		return stats, fmt.Errorf("unacknowledged count: %w", err)
	}
	return stats, nil
}

func (s *SQLite) PurgeAlertsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM alerts WHERE created_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("purge alerts: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLite) InsertReading(ctx context.Context, r types.Reading) error {
	var city string
	var lat, lon float64
	if r.Location != nil {
		city, lat, lon = r.Location.City, r.Location.Lat, r.Location.Lon
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO readings (ts, temperature, humidity, co2, pm25, aqi,
			wind_speed, pressure, city, lat, lon)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		formatTime(r.Timestamp), nullFloat(r.Temperature), nullFloat(r.Humidity),
		nullFloat(r.CO2), nullFloat(r.PM25), nullFloat(r.AQI),
		nullFloat(r.WindSpeed), nullFloat(r.Pressure), city, lat, lon,
	)
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

// MetricSeries returns the non-null values of one metric column since
// the cutoff, oldest first, ready for smoothing.
func (s *SQLite) MetricSeries(ctx context.Context, metric string, since time.Time) ([]float64, error) {
	column, ok := metricColumns[metric]
	if !ok {
		return nil, fmt.Errorf("metric series: unknown metric %q", metric)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+column+` FROM readings
		 WHERE ts >= ? AND `+column+` IS NOT NULL ORDER BY ts ASC`,
		formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("metric series: %w", err)
	}
	defer rows.Close()
	var out []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan series: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLite) PurgeReadingsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM readings WHERE ts < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("purge readings: %w", err)
	}
	return res.RowsAffected()
}

// metricColumns whitelists the column for each queryable metric; the
// metric name is interpolated into SQL and must never come through
// unchecked.
var metricColumns = map[string]string{
	types.MetricTemperature: "temperature",
	types.MetricHumidity:    "humidity",
	types.MetricCO2:         "co2",
	types.MetricPM25:        "pm25",
	types.MetricAQI:         "aqi",
	types.MetricWindSpeed:   "wind_speed",
	types.MetricPressure:    "pressure",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (types.Alert, error) {
	var a types.Alert
	var severity, createdAt string
	var ackAt, resAt sql.NullString
	var ack, res int
	err := row.Scan(&a.ID, &a.Type, &severity, &a.Message, &a.Value, &a.Threshold,
		&a.Location.City, &a.Location.Lat, &a.Location.Lon,
		&ack, &a.AcknowledgedBy, &ackAt, &res, &resAt, &createdAt)
	if err != nil {
		return a, err
	}
	a.Severity = types.Severity(severity)
	a.Acknowledged = ack != 0
	a.Resolved = res != 0
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return a, err
	}
	if ackAt.Valid {
		t, err := parseTime(ackAt.String)
		if err != nil {
			return a, err
		}
		a.AcknowledgedAt = &t
	}
	if resAt.Valid {
		t, err := parseTime(resAt.String)
		if err != nil {
			return a, err
		}
		a.ResolvedAt = &t
	}
	return a, nil
}

func scanAlerts(rows *sql.Rows) ([]types.Alert, error) {
	defer rows.Close()
	var out []types.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		if t2, err2 := time.Parse(time.RFC3339, s); err2 == nil {
			return t2, nil
		}
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func timePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
