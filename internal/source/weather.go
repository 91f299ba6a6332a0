package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aeromon/aeromon/internal/config"
	"github.com/aeromon/aeromon/internal/types"
)

// WeatherSource polls an OpenWeather-compatible API for current
// conditions and air pollution, merging both into one reading.
// Responses are cached so a fast poll loop does not hammer the
// upstream quota.
type WeatherSource struct {
	baseURL  string
	apiKey   string
	location types.Location
	cacheTTL time.Duration
	client   *http.Client
	logger   zerolog.Logger
	now      func() time.Time

	mu        sync.Mutex
	cached    types.Reading
	fetchedAt time.Time
}

// NewWeatherSource builds a weather poller for the configured site.
func NewWeatherSource(cfg config.WeatherConfig, apiKey string, loc types.Location, logger zerolog.Logger) *WeatherSource {
	return &WeatherSource{
		baseURL:  cfg.BaseURL,
		apiKey:   apiKey,
		location: loc,
		cacheTTL: cfg.CacheTTL,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger.With().Str("component", "weather-source").Logger(),
		now:      time.Now,
	}
}

func (w *WeatherSource) Name() string { return "weather" }

// currentWeather mirrors the fields we use from /weather.
type currentWeather struct {
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
		Pressure float64 `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"` // m/s with units=metric
	} `json:"wind"`
}

// airPollution mirrors the fields we use from /air_pollution.
type airPollution struct {
	List []struct {
		Main struct {
			AQI float64 `json:"aqi"`
		} `json:"main"`
		Components struct {
			CO   float64 `json:"co"`
			PM25 float64 `json:"pm2_5"`
		} `json:"components"`
	} `json:"list"`
}

// Fetch returns the cached reading when fresh, otherwise queries the
// upstream API. Air pollution data is best effort: a failure there
// still yields a reading with the weather metrics.
func (w *WeatherSource) Fetch(ctx context.Context) (types.Reading, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.fetchedAt.IsZero() && w.now().Sub(w.fetchedAt) < w.cacheTTL {
		return w.cached, nil
	}

	var cw currentWeather
	if err := w.getJSON(ctx, "/weather", &cw); err != nil {
		return types.Reading{}, fmt.Errorf("current weather: %w", err)
	}

	reading := types.Reading{
		Temperature: types.Float(cw.Main.Temp),
		Humidity:    types.Float(cw.Main.Humidity),
		Pressure:    types.Float(cw.Main.Pressure),
		WindSpeed:   types.Float(cw.Wind.Speed * 3.6), // m/s to km/h
		Timestamp:   w.now(),
		Location:    &w.location,
	}

	var ap airPollution
	if err := w.getJSON(ctx, "/air_pollution", &ap); err != nil {
		w.logger.Warn().Err(err).Msg("air pollution query failed, reading is weather only")
	} else if len(ap.List) > 0 {
		entry := ap.List[0]
		// The API reports a 1-5 index; scale to the 0-500 style the
		// thresholds use.
		reading.AQI = types.Float(entry.Main.AQI * 50)
		reading.PM25 = types.Float(entry.Components.PM25)
		reading.CO2 = types.Float(entry.Components.CO)
	}

	w.cached = reading
	w.fetchedAt = w.now()
	return reading, nil
}

func (w *WeatherSource) getJSON(ctx context.Context, path string, out any) error {
	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%f", w.location.Lat))
	q.Set("lon", fmt.Sprintf("%f", w.location.Lon))
	q.Set("appid", w.apiKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(msg))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
