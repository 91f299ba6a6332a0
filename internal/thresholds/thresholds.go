package thresholds

import (
	"fmt"
	"strconv"

	"github.com/aeromon/aeromon/internal/types"
)

// Spec holds the warning/danger and critical bounds for one metric.
// A nil bound means no check on that side.
type Spec struct {
	Min         *float64 `yaml:"min"`
	Max         *float64 `yaml:"max"`
	CriticalMin *float64 `yaml:"critical_min"`
	CriticalMax *float64 `yaml:"critical_max"`
	Unit        string   `yaml:"unit"`
	Name        string   `yaml:"name"`
}

// Event is one threshold violation descriptor. It carries no identity
// or lifecycle; the alerter decides whether it becomes an Alert.
type Event struct {
	Type      string
	Severity  types.Severity
	Message   string
	Value     float64
	Threshold float64
}

// Table maps metric names to their bounds. Loaded once at startup and
// never mutated afterwards.
type Table map[string]Spec

func f(v float64) *float64 { return &v }

// Defaults returns the built-in threshold table.
func Defaults() Table {
	return Table{
		types.MetricTemperature: {
			Min: f(10), Max: f(35), CriticalMin: f(5), CriticalMax: f(40),
			Unit: "°C", Name: "Temperature",
		},
		types.MetricHumidity: {
			Min: f(30), Max: f(70), CriticalMin: f(20), CriticalMax: f(85),
			Unit: "%", Name: "Humidity",
		},
		types.MetricCO2: {
			Max: f(1000), CriticalMax: f(2000),
			Unit: "ppm", Name: "CO₂ Level",
		},
		types.MetricPM25: {
			Max: f(35), CriticalMax: f(55),
			Unit: "µg/m³", Name: "PM2.5",
		},
		types.MetricAQI: {
			Max: f(100), CriticalMax: f(150),
			Unit: "", Name: "Air Quality Index",
		},
		types.MetricWindSpeed: {
			Max: f(50), CriticalMax: f(75),
			Unit: "km/h", Name: "Wind Speed",
		},
	}
}

// Check compares a single value against the bounds for metric. The max
// and min sides are evaluated independently; on each side a critical
// bound takes precedence and suppresses the lesser alert. Unknown
// metrics produce nothing.
func (t Table) Check(metric string, value float64) []Event {
	spec, ok := t[metric]
	if !ok {
		return nil
	}

	var events []Event

	// High side: critical wins, danger otherwise.
	if spec.CriticalMax != nil && value >= *spec.CriticalMax {
		events = append(events, Event{
			Type:      metric,
			Severity:  types.SeverityCritical,
			Message:   fmt.Sprintf("%s critically high: %s%s", spec.Name, formatValue(value), spec.Unit),
			Value:     value,
			Threshold: *spec.CriticalMax,
		})
	} else if spec.Max != nil && value >= *spec.Max {
		events = append(events, Event{
			Type:      metric,
			Severity:  types.SeverityDanger,
			Message:   fmt.Sprintf("%s too high: %s%s", spec.Name, formatValue(value), spec.Unit),
			Value:     value,
			Threshold: *spec.Max,
		})
	}

	// Low side, independent of the high side.
	if spec.CriticalMin != nil && value <= *spec.CriticalMin {
		events = append(events, Event{
			Type:      metric,
			Severity:  types.SeverityCritical,
			Message:   fmt.Sprintf("%s critically low: %s%s", spec.Name, formatValue(value), spec.Unit),
			Value:     value,
			Threshold: *spec.CriticalMin,
		})
	} else if spec.Min != nil && value <= *spec.Min {
		events = append(events, Event{
			Type:      metric,
			Severity:  types.SeverityWarning,
			Message:   fmt.Sprintf("%s too low: %s%s", spec.Name, formatValue(value), spec.Unit),
			Value:     value,
			Threshold: *spec.Min,
		})
	}

	return events
}

// CheckAll evaluates every present metric of a reading in a fixed
// order and returns the combined violation list. Pure function: no
// state is touched.
func (t Table) CheckAll(reading types.Reading) []Event {
	var events []Event
	for _, name := range types.MetricNames {
		value, ok := reading.Metric(name)
		if !ok {
			continue
		}
		events = append(events, t.Check(name, value)...)
	}
	return events
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
