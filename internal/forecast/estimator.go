// Package forecast produces short-horizon metric predictions by
// smoothing recent history and extrapolating a fitted line. It is a
// presentation-oriented estimate, not a validated statistical model.
package forecast

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/aeromon/aeromon/internal/history"
	"github.com/aeromon/aeromon/internal/store"
	"github.com/aeromon/aeromon/internal/types"
)

const (
	// Lookback bounds the durable history window.
	Lookback = 48 * time.Hour

	minDurableSamples  = 10
	minFallbackSamples = 5
	durableSmoothing   = 5
	fallbackSmoothing  = 3
	trendSamples       = 20

	// fallbackConfidence is pinned for memory-only predictions.
	fallbackConfidence = 65
)

// Prediction is one extrapolated point.
type Prediction struct {
	HoursAhead     int       `json:"hoursAhead"`
	PredictedValue float64   `json:"predictedValue"`
	Timestamp      time.Time `json:"timestamp"`
}

// Result is the outcome of predicting a single metric. Success false
// with an explanatory message is a normal outcome, not an error.
type Result struct {
	Success      bool         `json:"success"`
	Metric       string       `json:"metric,omitempty"`
	Message      string       `json:"message,omitempty"`
	CurrentValue float64      `json:"currentValue,omitempty"`
	Trend        string       `json:"trend,omitempty"`
	Confidence   int          `json:"confidence,omitempty"`
	Source       string       `json:"source,omitempty"`
	Predictions  []Prediction `json:"predictions"`
}

// Outlook is the qualitative summary derived from all predictions.
type Outlook struct {
	Status   string   `json:"status"` // good, warning, danger
	Warnings []string `json:"warnings"`
	Summary  string   `json:"summary"`
}

// ClimateReport bundles per-metric predictions with the outlook.
type ClimateReport struct {
	GeneratedAt time.Time         `json:"generatedAt"`
	HoursAhead  int               `json:"hoursAhead"`
	Predictions map[string]Result `json:"predictions"`
	Outlook     Outlook           `json:"outlook"`
}

// climateMetrics are the metrics the aggregate report covers.
var climateMetrics = []string{
	types.MetricTemperature,
	types.MetricHumidity,
	types.MetricCO2,
	types.MetricPM25,
}

// Estimator answers prediction queries from durable history, falling
// back to the in-memory reading buffer when the store is unreachable.
type Estimator struct {
	readings store.ReadingStore // may be nil
	hist     *history.Buffer
	logger   zerolog.Logger
	now      func() time.Time
}

// NewEstimator creates an estimator. readings may be nil for
// memory-only operation.
func NewEstimator(readings store.ReadingStore, hist *history.Buffer, logger zerolog.Logger) *Estimator {
	return &Estimator{
		readings: readings,
		hist:     hist,
		logger:   logger.With().Str("component", "forecast").Logger(),
		now:      time.Now,
	}
}

// PredictMetric forecasts one metric hoursAhead hours out. Durable
// history is preferred (min 10 samples, smoothing window 5); the
// in-memory buffer is the degraded path (min 5 samples, window 3,
// confidence pinned).
func (e *Estimator) PredictMetric(ctx context.Context, metric string, hoursAhead int) Result {
	if hoursAhead <= 0 {
		hoursAhead = 6
	}

	if e.readings != nil {
		values, err := e.readings.MetricSeries(ctx, metric, e.now().Add(-Lookback))
		if err == nil {
			return e.predict(metric, values, hoursAhead, false)
		}
		e.logger.Warn().Err(err).Str("metric", metric).Msg("history query failed, using memory buffer")
	}

	return e.predict(metric, e.hist.Series(metric), hoursAhead, true)
}

// predict runs the smoothing/extrapolation pipeline over one series.
func (e *Estimator) predict(metric string, values []float64, hoursAhead int, fallback bool) Result {
	minSamples := minDurableSamples
	smoothing := durableSmoothing
	source := "durable"
	if fallback {
		minSamples = minFallbackSamples
		smoothing = fallbackSmoothing
		source = "memory"
	}

	if len(values) < minSamples {
		return Result{
			Success:     false,
			Metric:      metric,
			Message:     fmt.Sprintf("Insufficient %s data for prediction", metric),
			Predictions: []Prediction{},
		}
	}

	smoothed := movingAverage(values, smoothing)
	projected := predictNext(smoothed, hoursAhead)
	last := values[len(values)-1]

	confidence := fallbackConfidence
	if !fallback {
		confidence = confidenceFor(values, last)
	}

	now := e.now()
	predictions := make([]Prediction, 0, len(projected))
	for i, v := range projected {
		predictions = append(predictions, Prediction{
			HoursAhead:     i + 1,
			PredictedValue: round2(v),
			Timestamp:      now.Add(time.Duration(i+1) * time.Hour),
		})
	}

	return Result{
		Success:      true,
		Metric:       metric,
		CurrentValue: last,
		Trend:        detectTrend(tail(values, trendSamples)),
		Confidence:   confidence,
		Source:       source,
		Predictions:  predictions,
	}
}

// ClimatePrediction runs per-metric predictions and derives the
// qualitative outlook.
func (e *Estimator) ClimatePrediction(ctx context.Context, hoursAhead int) ClimateReport {
	if hoursAhead <= 0 {
		hoursAhead = 6
	}

	predictions := make(map[string]Result, len(climateMetrics))
	for _, metric := range climateMetrics {
		predictions[metric] = e.PredictMetric(ctx, metric, hoursAhead)
	}

	return ClimateReport{
		GeneratedAt: e.now(),
		HoursAhead:  hoursAhead,
		Predictions: predictions,
		Outlook:     buildOutlook(predictions),
	}
}

// buildOutlook scans predicted ranges against fixed danger levels.
func buildOutlook(predictions map[string]Result) Outlook {
	var warnings []string
	status := "good"

	escalate := func(to string) {
		if to == "danger" || status == "good" {
			status = to
		}
	}

	if temp, ok := predictions[types.MetricTemperature]; ok && temp.Success {
		maxTemp, minTemp := predictionRange(temp.Predictions)
		if maxTemp > 35 {
			warnings = append(warnings, fmt.Sprintf("High temperature expected: up to %.1f°C", maxTemp))
			escalate("warning")
		}
		if minTemp < 10 {
			warnings = append(warnings, fmt.Sprintf("Low temperature expected: down to %.1f°C", minTemp))
			escalate("warning")
		}
	}

	if pm, ok := predictions[types.MetricPM25]; ok && pm.Success {
		maxPM, _ := predictionRange(pm.Predictions)
		if maxPM > 55 {
			warnings = append(warnings, fmt.Sprintf("Poor air quality expected: PM2.5 up to %.0f µg/m³", maxPM))
			escalate("danger")
		} else if maxPM > 35 {
			warnings = append(warnings, fmt.Sprintf("Moderate air quality expected: PM2.5 up to %.0f µg/m³", maxPM))
			escalate("warning")
		}
	}

	if co2, ok := predictions[types.MetricCO2]; ok && co2.Success {
		maxCO2, _ := predictionRange(co2.Predictions)
		if maxCO2 > 2000 {
			warnings = append(warnings, fmt.Sprintf("High CO₂ levels expected: up to %.0f ppm", maxCO2))
			escalate("danger")
		} else if maxCO2 > 1000 {
			warnings = append(warnings, fmt.Sprintf("Elevated CO₂ levels expected: up to %.0f ppm", maxCO2))
			escalate("warning")
		}
	}

	summary := "Climate conditions expected to remain stable"
	if n := len(warnings); n == 1 {
		summary = "1 climate concern predicted"
	} else if n > 1 {
		summary = fmt.Sprintf("%d climate concerns predicted", n)
	}

	return Outlook{Status: status, Warnings: warnings, Summary: summary}
}

func predictionRange(predictions []Prediction) (maxV, minV float64) {
	maxV = math.Inf(-1)
	minV = math.Inf(1)
	for _, p := range predictions {
		if p.PredictedValue > maxV {
			maxV = p.PredictedValue
		}
		if p.PredictedValue < minV {
			minV = p.PredictedValue
		}
	}
	return maxV, minV
}

// movingAverage computes a trailing moving average with the given
// window; the first window-1 points average what is available.
func movingAverage(data []float64, window int) []float64 {
	out := make([]float64, len(data))
	for i := range data {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		sum := 0.0
		for _, v := range data[start : i+1] {
			sum += v
		}
		out[i] = sum / float64(i-start+1)
	}
	return out
}

// linearRegression fits y = slope*x + intercept over index vs value.
func linearRegression(data []float64) (slope, intercept float64) {
	n := len(data)
	if n < 2 {
		if n == 1 {
			return 0, data[0]
		}
		return 0, 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range data {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	fn := float64(n)
	slope = (fn*sumXY - sumX*sumY) / (fn*sumXX - sumX*sumX)
	intercept = (sumY - slope*sumX) / fn
	return slope, intercept
}

// predictNext extrapolates steps points beyond the last index.
func predictNext(data []float64, steps int) []float64 {
	slope, intercept := linearRegression(data)
	n := float64(len(data))
	out := make([]float64, 0, steps)
	for i := 1; i <= steps; i++ {
		out = append(out, slope*(n+float64(i)-1)+intercept)
	}
	return out
}

// detectTrend classifies by the ratio of slope to series mean.
func detectTrend(data []float64) string {
	if len(data) < 3 {
		return "stable"
	}
	slope, _ := linearRegression(data)
	mean := 0.0
	for _, v := range data {
		mean += v
	}
	mean /= float64(len(data))
	if mean == 0 {
		return "stable"
	}
	relative := slope / mean
	switch {
	case relative > 0.02:
		return "increasing"
	case relative < -0.02:
		return "decreasing"
	default:
		return "stable"
	}
}

// confidenceFor derives a heuristic confidence percentage from the
// variance of the most recent samples relative to the last value.
func confidenceFor(values []float64, last float64) int {
	recent := tail(values, trendSamples)
	v := variance(recent)
	denom := last
	if denom == 0 {
		denom = 1
	}
	c := 1 - v/denom
	if c < 0.5 {
		c = 0.5
	}
	if c > 1 {
		c = 1
	}
	return int(math.Round(c * 100))
}

func variance(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range data {
		mean += v
	}
	mean /= float64(len(data))
	sum := 0.0
	for _, v := range data {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(data))
}

func tail(data []float64, n int) []float64 {
	if len(data) <= n {
		return data
	}
	return data[len(data)-n:]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
