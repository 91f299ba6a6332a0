// Package api exposes the HTTP surface: REST endpoints for alerts,
// readings and predictions, the websocket upgrade, Prometheus metrics
// and a recent-log view.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/aeromon/aeromon/internal/alerter"
	"github.com/aeromon/aeromon/internal/broadcast"
	"github.com/aeromon/aeromon/internal/forecast"
	"github.com/aeromon/aeromon/internal/history"
	"github.com/aeromon/aeromon/internal/types"
	"github.com/aeromon/aeromon/internal/version"
)

// Server provides the HTTP API and websocket endpoint.
type Server struct {
	engine    *alerter.Engine
	estimator *forecast.Estimator
	hist      *history.Buffer
	hub       *broadcast.Hub
	logBuffer *LogBuffer
	logger    zerolog.Logger
	startTime time.Time
	upgrader  websocket.Upgrader
	httpSrv   *http.Server
}

// NewServer creates an API server listening on addr once Start is
// called. logBuffer may be nil; /api/logs then returns an empty list.
func NewServer(addr string, engine *alerter.Engine, estimator *forecast.Estimator, hist *history.Buffer, hub *broadcast.Hub, logBuffer *LogBuffer, logger zerolog.Logger) *Server {
	s := &Server{
		engine:    engine,
		estimator: estimator,
		hist:      hist,
		hub:       hub,
		logBuffer: logBuffer,
		logger:    logger.With().Str("component", "api").Logger(),
		startTime: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The dashboard may be served from another origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // websocket connections are long-lived
	}
	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)

	mux.HandleFunc("GET /api/alerts", s.handleAlerts)
	mux.HandleFunc("GET /api/alerts/active", s.handleActiveAlerts)
	mux.HandleFunc("GET /api/alerts/stats", s.handleAlertStats)
	mux.HandleFunc("POST /api/alerts/{id}/ack", s.handleAcknowledge)
	mux.HandleFunc("POST /api/alerts/{id}/resolve", s.handleResolve)

	mux.HandleFunc("GET /api/readings/latest", s.handleLatestReading)
	mux.HandleFunc("GET /api/readings/history", s.handleReadingHistory)

	mux.HandleFunc("GET /api/predictions", s.handleClimatePrediction)
	mux.HandleFunc("GET /api/predictions/{metric}", s.handlePredictMetric)

	mux.HandleFunc("GET /api/logs", s.handleLogs)
	mux.HandleFunc("GET /ws", s.handleWebsocket)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// Start runs the HTTP server until it fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpSrv.Addr).Msg("API server listening")
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("encoding response")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"activeAlerts": len(s.engine.Active()),
		"clients":      s.hub.ClientCount(),
		"uptime":       time.Since(s.startTime).Round(time.Second).String(),
		"time":         time.Now().UTC().Format(time.RFC3339),
		"version":      version.Version,
		"commit":       version.Commit,
		"buildDate":    version.BuildDate,
	})
}

// queryInt reads an integer query parameter with a default.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// handleAlerts lists recent alerts, optionally filtered by severity or
// narrowed to unacknowledged ones.
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)

	var alerts []types.Alert
	switch {
	case r.URL.Query().Get("unacknowledged") == "true":
		alerts = s.engine.Unacknowledged(r.Context())
	case r.URL.Query().Get("severity") != "":
		severity := types.Severity(r.URL.Query().Get("severity"))
		if !severity.Valid() {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown severity"})
			return
		}
		alerts = s.engine.BySeverity(r.Context(), severity, limit)
	default:
		alerts = s.engine.Recent(r.Context(), limit)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts, "count": len(alerts)})
}

func (s *Server) handleActiveAlerts(w http.ResponseWriter, r *http.Request) {
	alerts := s.engine.Active()
	s.writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts, "count": len(alerts)})
}

func (s *Server) handleAlertStats(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 7)
	s.writeJSON(w, http.StatusOK, s.engine.Stats(r.Context(), days))
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"userId"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	if body.UserID == "" {
		body.UserID = r.Header.Get("X-User-ID")
	}
	if body.UserID == "" {
		body.UserID = "anonymous"
	}

	alert := s.engine.Acknowledge(r.Context(), r.PathValue("id"), body.UserID)
	if alert == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "alert not found"})
		return
	}
	s.writeJSON(w, http.StatusOK, alert)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	alert := s.engine.Resolve(r.Context(), r.PathValue("id"))
	if alert == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "alert not found"})
		return
	}
	s.writeJSON(w, http.StatusOK, alert)
}

func (s *Server) handleLatestReading(w http.ResponseWriter, r *http.Request) {
	reading, ok := s.hist.Latest()
	if !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no reading yet"})
		return
	}
	s.writeJSON(w, http.StatusOK, reading)
}

func (s *Server) handleReadingHistory(w http.ResponseWriter, r *http.Request) {
	readings := s.hist.All()
	s.writeJSON(w, http.StatusOK, map[string]any{"readings": readings, "count": len(readings)})
}

func (s *Server) handleClimatePrediction(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", 6)
	s.writeJSON(w, http.StatusOK, s.estimator.ClimatePrediction(r.Context(), hours))
}

func (s *Server) handlePredictMetric(w http.ResponseWriter, r *http.Request) {
	metric := r.PathValue("metric")
	known := false
	for _, name := range types.MetricNames {
		if name == metric {
			known = true
			break
		}
	}
	if !known {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown metric"})
		return
	}
	hours := queryInt(r, "hours", 6)
	s.writeJSON(w, http.StatusOK, s.estimator.PredictMetric(r.Context(), metric, hours))
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	var entries []LogEntry
	if s.logBuffer != nil {
		entries = s.logBuffer.Recent(queryInt(r, "limit", 200))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

// handleWebsocket upgrades the connection and hands it to the hub. The
// client gets an immediate snapshot so the dashboard renders without
// waiting for the next poll.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	if reading, ok := s.hist.Latest(); ok {
		_ = conn.WriteJSON(broadcast.Frame{Type: "sensorData", Payload: reading})
		_ = conn.WriteJSON(broadcast.Frame{Type: "sensorHistory", Payload: s.hist.All()})
	}
	if active := s.engine.Active(); len(active) > 0 {
		_ = conn.WriteJSON(broadcast.Frame{Type: "alerts", Payload: active})
	}

	client := broadcast.NewClient(uuid.NewString(), s.hub, conn, s.logger)
	s.hub.Register(client)
	go client.WritePump()
	go client.ReadPump()
}
