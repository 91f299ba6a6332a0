// Package broadcast fans live updates out to connected websocket
// clients. Delivery is best effort: a stalled client is dropped, and a
// failure for one client never affects the others.
package broadcast

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aeromon/aeromon/internal/metrics"
	"github.com/aeromon/aeromon/internal/types"
)

// Frame is the envelope pushed to clients.
type Frame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Hub maintains the set of active clients and multicasts frames.
type Hub struct {
	logger     zerolog.Logger
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	mu    sync.RWMutex
	count int
}

// NewHub creates a hub; call Run to start its dispatch loop.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		logger:     logger.With().Str("component", "broadcast").Logger(),
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 16),
	}
}

// Run owns the client registry until ctx is cancelled. Only this
// goroutine touches the clients map.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.setCount(0)
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.setCount(len(h.clients))
			h.logger.Info().Str("client_id", client.id).Int("clients", len(h.clients)).Msg("client registered")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.setCount(len(h.clients))
				h.logger.Info().Str("client_id", client.id).Int("clients", len(h.clients)).Msg("client unregistered")
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Send buffer full: the client is stalled or gone.
					delete(h.clients, client)
					close(client.send)
					h.setCount(len(h.clients))
					metrics.BroadcastDropped.Inc()
					h.logger.Warn().Str("client_id", client.id).Msg("client send buffer full, dropping")
				}
			}
		}
	}
}

// Register adds a client to the registry. Idempotent through the run
// loop's set semantics.
func (h *Hub) Register(c *Client) { h.register <- c }

// Unregister removes a client; safe to call for an unknown client.
func (h *Hub) Unregister(c *Client) { h.unregister <- c }

// ClientCount returns the current number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

func (h *Hub) setCount(n int) {
	h.mu.Lock()
	h.count = n
	h.mu.Unlock()
	metrics.ConnectedClients.Set(float64(n))
}

// PushAlerts multicasts a batch of newly created alerts.
func (h *Hub) PushAlerts(alerts []types.Alert) {
	if len(alerts) == 0 {
		return
	}
	h.push("alerts", alerts)
}

// PushReading multicasts the latest reading snapshot.
func (h *Hub) PushReading(reading types.Reading) {
	h.push("sensorData", reading)
}

// weatherSummary is the subset of a reading the weather panel shows.
type weatherSummary struct {
	Temperature *float64        `json:"temperature,omitempty"`
	Humidity    *float64        `json:"humidity,omitempty"`
	WindSpeed   *float64        `json:"windSpeed,omitempty"`
	Pressure    *float64        `json:"pressure,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	Location    *types.Location `json:"location,omitempty"`
}

// PushWeather multicasts the outdoor-conditions view of a reading.
func (h *Hub) PushWeather(reading types.Reading) {
	h.push("weatherData", weatherSummary{
		Temperature: reading.Temperature,
		Humidity:    reading.Humidity,
		WindSpeed:   reading.WindSpeed,
		Pressure:    reading.Pressure,
		Timestamp:   reading.Timestamp,
		Location:    reading.Location,
	})
}

// PushHistory multicasts the recent reading window.
func (h *Hub) PushHistory(readings []types.Reading) {
	h.push("sensorHistory", readings)
}

func (h *Hub) push(frameType string, payload any) {
	data, err := json.Marshal(Frame{Type: frameType, Payload: payload})
	if err != nil {
		h.logger.Error().Err(err).Str("frame", frameType).Msg("marshal broadcast frame")
		return
	}
	h.broadcast <- data
}
