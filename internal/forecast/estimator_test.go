package forecast

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/aeromon/aeromon/internal/history"
	"github.com/aeromon/aeromon/internal/types"
)

// seriesStore serves canned metric series, optionally failing.
type seriesStore struct {
	series map[string][]float64
	err    error
}

func (s *seriesStore) InsertReading(context.Context, types.Reading) error { return nil }
func (s *seriesStore) PurgeReadingsBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}
func (s *seriesStore) MetricSeries(_ context.Context, metric string, _ time.Time) ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.series[metric], nil
}

func rising(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func newTestEstimator(st *seriesStore, hist *history.Buffer) *Estimator {
	if hist == nil {
		hist = history.NewBuffer(20)
	}
	if st == nil {
		return NewEstimator(nil, hist, zerolog.Nop())
	}
	return NewEstimator(st, hist, zerolog.Nop())
}

func TestPredictMetricInsufficientData(t *testing.T) {
	st := &seriesStore{series: map[string][]float64{
		types.MetricTemperature: rising(9, 20, 1),
	}}
	e := newTestEstimator(st, nil)

	res := e.PredictMetric(context.Background(), types.MetricTemperature, 6)
	if res.Success {
		t.Fatal("PredictMetric with 9 samples: got success=true, want false")
	}
	if len(res.Predictions) != 0 {
		t.Errorf("predictions: got %d, want 0", len(res.Predictions))
	}
	if res.Message == "" {
		t.Error("expected an explanatory message")
	}
}

func TestPredictMetricIncreasingTrend(t *testing.T) {
	st := &seriesStore{series: map[string][]float64{
		types.MetricTemperature: rising(12, 20, 1),
	}}
	e := newTestEstimator(st, nil)

	res := e.PredictMetric(context.Background(), types.MetricTemperature, 6)
	if !res.Success {
		t.Fatalf("PredictMetric: success=false (%s)", res.Message)
	}
	if res.Trend != "increasing" {
		t.Errorf("trend: got %q, want increasing", res.Trend)
	}
	if len(res.Predictions) != 6 {
		t.Fatalf("predictions: got %d, want 6", len(res.Predictions))
	}
	if res.Predictions[0].HoursAhead != 1 || res.Predictions[5].HoursAhead != 6 {
		t.Errorf("hoursAhead sequence wrong: %+v", res.Predictions)
	}
	// A rising line must keep rising beyond the window.
	if res.Predictions[5].PredictedValue <= res.Predictions[0].PredictedValue {
		t.Errorf("extrapolation not increasing: %+v", res.Predictions)
	}
	if res.CurrentValue != 31 {
		t.Errorf("currentValue: got %v, want 31", res.CurrentValue)
	}
	if res.Source != "durable" {
		t.Errorf("source: got %q, want durable", res.Source)
	}
}

func TestPredictMetricStableSeriesHighConfidence(t *testing.T) {
	values := make([]float64, 15)
	for i := range values {
		values[i] = 25
	}
	st := &seriesStore{series: map[string][]float64{types.MetricTemperature: values}}
	e := newTestEstimator(st, nil)

	res := e.PredictMetric(context.Background(), types.MetricTemperature, 3)
	if !res.Success {
		t.Fatalf("PredictMetric: success=false (%s)", res.Message)
	}
	if res.Trend != "stable" {
		t.Errorf("trend: got %q, want stable", res.Trend)
	}
	if res.Confidence != 100 {
		t.Errorf("confidence: got %d, want 100 for zero variance", res.Confidence)
	}
	for _, p := range res.Predictions {
		if math.Abs(p.PredictedValue-25) > 0.01 {
			t.Errorf("flat series prediction drifted: %v", p.PredictedValue)
		}
	}
}

func TestPredictMetricFallsBackToMemory(t *testing.T) {
	hist := history.NewBuffer(20)
	for _, v := range rising(6, 400, 10) {
		hist.Add(types.Reading{CO2: types.Float(v)})
	}
	st := &seriesStore{err: errors.New("store down")}
	e := newTestEstimator(st, hist)

	res := e.PredictMetric(context.Background(), types.MetricCO2, 4)
	if !res.Success {
		t.Fatalf("fallback prediction failed: %s", res.Message)
	}
	if res.Source != "memory" {
		t.Errorf("source: got %q, want memory", res.Source)
	}
	if res.Confidence != 65 {
		t.Errorf("fallback confidence: got %d, want 65", res.Confidence)
	}
}

func TestPredictMetricFallbackBelowMinimum(t *testing.T) {
	hist := history.NewBuffer(20)
	for _, v := range rising(4, 20, 1) {
		hist.Add(types.Reading{Temperature: types.Float(v)})
	}
	e := newTestEstimator(nil, hist)

	res := e.PredictMetric(context.Background(), types.MetricTemperature, 6)
	if res.Success {
		t.Fatal("4 fallback samples: got success=true, want false")
	}
}

func TestClimatePredictionOutlookEscalates(t *testing.T) {
	st := &seriesStore{series: map[string][]float64{
		types.MetricTemperature: rising(12, 30, 1),   // predicted max well above 35
		types.MetricHumidity:    rising(12, 50, 0.1), // harmless
		types.MetricCO2:         rising(12, 1800, 30),
		types.MetricPM25:        rising(12, 40, 2),
	}}
	e := newTestEstimator(st, nil)

	report := e.ClimatePrediction(context.Background(), 6)
	if report.Outlook.Status != "danger" {
		t.Errorf("outlook status: got %q, want danger", report.Outlook.Status)
	}
	if len(report.Outlook.Warnings) == 0 {
		t.Error("expected non-empty warnings")
	}
	if len(report.Predictions) != 4 {
		t.Errorf("predictions map: got %d metrics, want 4", len(report.Predictions))
	}
	if report.HoursAhead != 6 {
		t.Errorf("hoursAhead: got %d, want 6", report.HoursAhead)
	}
}

func TestClimatePredictionStableOutlook(t *testing.T) {
	flat := func(n int, v float64) []float64 { return rising(n, v, 0) }
	st := &seriesStore{series: map[string][]float64{
		types.MetricTemperature: flat(12, 22),
		types.MetricHumidity:    flat(12, 50),
		types.MetricCO2:         flat(12, 500),
		types.MetricPM25:        flat(12, 10),
	}}
	e := newTestEstimator(st, nil)

	report := e.ClimatePrediction(context.Background(), 6)
	if report.Outlook.Status != "good" {
		t.Errorf("outlook status: got %q, want good", report.Outlook.Status)
	}
	if len(report.Outlook.Warnings) != 0 {
		t.Errorf("warnings: got %v, want none", report.Outlook.Warnings)
	}
	if report.Outlook.Summary != "Climate conditions expected to remain stable" {
		t.Errorf("summary: got %q", report.Outlook.Summary)
	}
}

func TestMovingAverage(t *testing.T) {
	got := movingAverage([]float64{1, 2, 3, 4, 5}, 3)
	want := []float64{1, 1.5, 2, 3, 4}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("movingAverage[%d]: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestLinearRegressionExactLine(t *testing.T) {
	slope, intercept := linearRegression([]float64{2, 4, 6, 8})
	if math.Abs(slope-2) > 1e-9 || math.Abs(intercept-2) > 1e-9 {
		t.Errorf("linearRegression: got slope=%v intercept=%v, want 2/2", slope, intercept)
	}
}

func TestDetectTrend(t *testing.T) {
	if got := detectTrend(rising(10, 10, 1)); got != "increasing" {
		t.Errorf("rising series: got %q", got)
	}
	if got := detectTrend(rising(10, 100, -2)); got != "decreasing" {
		t.Errorf("falling series: got %q", got)
	}
	if got := detectTrend([]float64{5, 5}); got != "stable" {
		t.Errorf("short series: got %q, want stable", got)
	}
	if got := detectTrend([]float64{50, 50.01, 50}); got != "stable" {
		t.Errorf("flat series: got %q, want stable", got)
	}
}
