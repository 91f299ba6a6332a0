package types

import "time"

// Metric names shared across thresholds, history and forecasting.
const (
	MetricTemperature = "temperature"
	MetricHumidity    = "humidity"
	MetricCO2         = "co2"
	MetricPM25        = "pm25"
	MetricAQI         = "aqi"
	MetricWindSpeed   = "windSpeed"
	MetricPressure    = "pressure"
)

// MetricNames lists every metric a reading can carry, in the order
// threshold evaluation walks them.
var MetricNames = []string{
	MetricTemperature,
	MetricHumidity,
	MetricCO2,
	MetricPM25,
	MetricAQI,
	MetricWindSpeed,
	MetricPressure,
}

// Reading is one timestamped snapshot of monitored metrics. Fields are
// pointers because any upstream source may omit any of them.
type Reading struct {
	Temperature *float64  `json:"temperature,omitempty"`
	Humidity    *float64  `json:"humidity,omitempty"`
	CO2         *float64  `json:"co2,omitempty"`
	PM25        *float64  `json:"pm25,omitempty"`
	AQI         *float64  `json:"aqi,omitempty"`
	WindSpeed   *float64  `json:"windSpeed,omitempty"`
	Pressure    *float64  `json:"pressure,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Location    *Location `json:"location,omitempty"`
}

// Metric returns the value for a named metric and whether it is present.
func (r Reading) Metric(name string) (float64, bool) {
	var p *float64
	switch name {
	case MetricTemperature:
		p = r.Temperature
	case MetricHumidity:
		p = r.Humidity
	case MetricCO2:
		p = r.CO2
	case MetricPM25:
		p = r.PM25
	case MetricAQI:
		p = r.AQI
	case MetricWindSpeed:
		p = r.WindSpeed
	case MetricPressure:
		p = r.Pressure
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Float is a convenience for building optional metric values.
func Float(v float64) *float64 { return &v }
