package source

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/aeromon/aeromon/internal/types"
)

// simMetric drives one metric of the simulator as a bounded random walk.
type simMetric struct {
	value float64
	step  float64
	min   float64
	max   float64
}

// Simulator generates plausible sensor readings without any upstream.
// Useful for demos and for running the full pipeline in tests.
type Simulator struct {
	location types.Location

	mu      sync.Mutex
	rng     *rand.Rand
	metrics map[string]*simMetric
}

// NewSimulator seeds a random walk around typical indoor conditions.
func NewSimulator(loc types.Location, seed int64) *Simulator {
	return &Simulator{
		location: loc,
		rng:      rand.New(rand.NewSource(seed)),
		metrics: map[string]*simMetric{
			types.MetricTemperature: {value: 22, step: 0.6, min: -5, max: 45},
			types.MetricHumidity:    {value: 50, step: 2, min: 5, max: 100},
			types.MetricCO2:         {value: 600, step: 40, min: 350, max: 3000},
			types.MetricPM25:        {value: 12, step: 3, min: 0, max: 150},
			types.MetricAQI:         {value: 40, step: 5, min: 0, max: 300},
			types.MetricWindSpeed:   {value: 10, step: 3, min: 0, max: 110},
			types.MetricPressure:    {value: 1013, step: 1, min: 950, max: 1060},
		},
	}
}

func (s *Simulator) Name() string { return "simulator" }

// Fetch advances every metric one step and returns the snapshot.
func (s *Simulator) Fetch(_ context.Context) (types.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	step := func(name string) *float64 {
		m := s.metrics[name]
		m.value += (s.rng.Float64()*2 - 1) * m.step
		if m.value < m.min {
			m.value = m.min
		}
		if m.value > m.max {
			m.value = m.max
		}
		v := m.value
		return &v
	}

	return types.Reading{
		Temperature: step(types.MetricTemperature),
		Humidity:    step(types.MetricHumidity),
		CO2:         step(types.MetricCO2),
		PM25:        step(types.MetricPM25),
		AQI:         step(types.MetricAQI),
		WindSpeed:   step(types.MetricWindSpeed),
		Pressure:    step(types.MetricPressure),
		Timestamp:   time.Now(),
		Location:    &s.location,
	}, nil
}
