package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/aeromon/aeromon/internal/types"
)

func setupTestStore(t *testing.T) *SQLite {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close db: %v", err)
		}
	})
	s, err := NewSQLiteFromDB(db)
	if err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return s
}

func testAlert(id string, severity types.Severity, createdAt time.Time) types.Alert {
	return types.Alert{
		ID:        id,
		Type:      types.MetricTemperature,
		Severity:  severity,
		Message:   "Temperature critically high: 42°C",
		Value:     42,
		Threshold: 40,
		Location:  types.Location{City: "Mumbai", Lat: 19.076, Lon: 72.8777},
		CreatedAt: createdAt,
	}
}

func TestInsertAndRecentAlerts(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for i, id := range []string{"a1", "a2", "a3"} {
		a := testAlert(id, types.SeverityCritical, now.Add(time.Duration(i)*time.Minute))
		if err := s.InsertAlert(ctx, a); err != nil {
			t.Fatalf("InsertAlert(%s): %v", id, err)
		}
	}

	alerts, err := s.RecentAlerts(ctx, 2)
	if err != nil {
		t.Fatalf("RecentAlerts: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("RecentAlerts: got %d, want 2", len(alerts))
	}
	// Most recent first.
	if alerts[0].ID != "a3" || alerts[1].ID != "a2" {
		t.Errorf("order: got %s,%s, want a3,a2", alerts[0].ID, alerts[1].ID)
	}
	if alerts[0].Location.City != "Mumbai" {
		t.Errorf("city: got %q, want Mumbai", alerts[0].Location.City)
	}
}

func TestAcknowledgeRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := s.InsertAlert(ctx, testAlert("a1", types.SeverityDanger, now)); err != nil {
		t.Fatalf("InsertAlert: %v", err)
	}
	if err := s.InsertAlert(ctx, testAlert("a2", types.SeverityDanger, now)); err != nil {
		t.Fatalf("InsertAlert: %v", err)
	}

	updated, err := s.AcknowledgeAlert(ctx, "a1", "user-7", now)
	if err != nil {
		t.Fatalf("AcknowledgeAlert: %v", err)
	}
	if !updated.Acknowledged || updated.AcknowledgedBy != "user-7" || updated.AcknowledgedAt == nil {
		t.Errorf("acknowledge fields not set: %+v", updated)
	}

	unacked, err := s.UnacknowledgedAlerts(ctx)
	if err != nil {
		t.Fatalf("UnacknowledgedAlerts: %v", err)
	}
	if len(unacked) != 1 || unacked[0].ID != "a2" {
		t.Errorf("UnacknowledgedAlerts: got %+v, want only a2", unacked)
	}
}

func TestResolveAlert(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := s.InsertAlert(ctx, testAlert("a1", types.SeverityCritical, now)); err != nil {
		t.Fatalf("InsertAlert: %v", err)
	}

	updated, err := s.ResolveAlert(ctx, "a1", now)
	if err != nil {
		t.Fatalf("ResolveAlert: %v", err)
	}
	if !updated.Resolved || updated.ResolvedAt == nil {
		t.Errorf("resolve fields not set: %+v", updated)
	}
}

func TestAcknowledgeMissingAlert(t *testing.T) {
	s := setupTestStore(t)
	if _, err := s.AcknowledgeAlert(context.Background(), "nope", "u", time.Now()); err != ErrNotFound {
		t.Errorf("AcknowledgeAlert(missing): got %v, want ErrNotFound", err)
	}
}

func TestAlertsBySeverity(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := s.InsertAlert(ctx, testAlert("a1", types.SeverityCritical, now)); err != nil {
		t.Fatalf("InsertAlert: %v", err)
	}
	if err := s.InsertAlert(ctx, testAlert("a2", types.SeverityWarning, now)); err != nil {
		t.Fatalf("InsertAlert: %v", err)
	}

	alerts, err := s.AlertsBySeverity(ctx, types.SeverityCritical, 10)
	if err != nil {
		t.Fatalf("AlertsBySeverity: %v", err)
	}
	if len(alerts) != 1 || alerts[0].ID != "a1" {
		t.Errorf("AlertsBySeverity: got %+v, want only a1", alerts)
	}
}

func TestAlertStats(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := s.InsertAlert(ctx, testAlert("a1", types.SeverityCritical, now)); err != nil {
		t.Fatalf("InsertAlert: %v", err)
	}
	if err := s.InsertAlert(ctx, testAlert("a2", types.SeverityCritical, now)); err != nil {
		t.Fatalf("InsertAlert: %v", err)
	}
	old := testAlert("a0", types.SeverityWarning, now.Add(-48*time.Hour))
	if err := s.InsertAlert(ctx, old); err != nil {
		t.Fatalf("InsertAlert: %v", err)
	}
	if _, err := s.AcknowledgeAlert(ctx, "a2", "u", now); err != nil {
		t.Fatalf("AcknowledgeAlert: %v", err)
	}

	stats, err := s.AlertStats(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("AlertStats: %v", err)
	}
	if stats.Total != 2 {
		t.Errorf("Total: got %d, want 2", stats.Total)
	}
	if stats.Unacknowledged != 1 {
		t.Errorf("Unacknowledged: got %d, want 1", stats.Unacknowledged)
	}
	if stats.BySeverity["critical"] != 2 {
		t.Errorf("BySeverity[critical]: got %d, want 2", stats.BySeverity["critical"])
	}
	if stats.ByType[types.MetricTemperature] != 2 {
		t.Errorf("ByType[temperature]: got %d, want 2", stats.ByType[types.MetricTemperature])
	}
}

func TestPurgeAlertsBefore(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := s.InsertAlert(ctx, testAlert("old", types.SeverityWarning, now.Add(-8*24*time.Hour))); err != nil {
		t.Fatalf("InsertAlert: %v", err)
	}
	if err := s.InsertAlert(ctx, testAlert("new", types.SeverityWarning, now)); err != nil {
		t.Fatalf("InsertAlert: %v", err)
	}

	n, err := s.PurgeAlertsBefore(ctx, now.Add(-7*24*time.Hour))
	if err != nil {
		t.Fatalf("PurgeAlertsBefore: %v", err)
	}
	if n != 1 {
		t.Errorf("purged: got %d, want 1", n)
	}
	alerts, err := s.RecentAlerts(ctx, 10)
	if err != nil {
		t.Fatalf("RecentAlerts: %v", err)
	}
	if len(alerts) != 1 || alerts[0].ID != "new" {
		t.Errorf("remaining: got %+v, want only new", alerts)
	}
}

func TestReadingsMetricSeries(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-3 * time.Hour)

	for i := 0; i < 4; i++ {
		r := types.Reading{
			Temperature: types.Float(20 + float64(i)),
			Timestamp:   base.Add(time.Duration(i) * time.Hour),
		}
		if i == 2 {
			// One reading without temperature must be skipped.
			r.Temperature = nil
			r.Humidity = types.Float(55)
		}
		if err := s.InsertReading(ctx, r); err != nil {
			t.Fatalf("InsertReading: %v", err)
		}
	}

	series, err := s.MetricSeries(ctx, types.MetricTemperature, base.Add(-time.Minute))
	if err != nil {
		t.Fatalf("MetricSeries: %v", err)
	}
	want := []float64{20, 21, 23}
	if len(series) != len(want) {
		t.Fatalf("series length: got %d, want %d", len(series), len(want))
	}
	for i, v := range want {
		if series[i] != v {
			t.Errorf("series[%d]: got %v, want %v", i, series[i], v)
		}
	}
}

func TestMetricSeriesUnknownMetric(t *testing.T) {
	s := setupTestStore(t)
	if _, err := s.MetricSeries(context.Background(), "radon", time.Now()); err == nil {
		t.Error("MetricSeries(radon): expected error, got nil")
	}
}

func TestPurgeReadingsBefore(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := time.Now()

	old := types.Reading{Temperature: types.Float(20), Timestamp: now.Add(-72 * time.Hour)}
	recent := types.Reading{Temperature: types.Float(21), Timestamp: now}
	if err := s.InsertReading(ctx, old); err != nil {
		t.Fatalf("InsertReading: %v", err)
	}
	if err := s.InsertReading(ctx, recent); err != nil {
		t.Fatalf("InsertReading: %v", err)
	}

	n, err := s.PurgeReadingsBefore(ctx, now.Add(-48*time.Hour))
	if err != nil {
		t.Fatalf("PurgeReadingsBefore: %v", err)
	}
	if n != 1 {
		t.Errorf("purged: got %d, want 1", n)
	}
}
