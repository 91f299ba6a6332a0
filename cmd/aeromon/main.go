package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aeromon/aeromon/internal/alerter"
	"github.com/aeromon/aeromon/internal/api"
	"github.com/aeromon/aeromon/internal/broadcast"
	"github.com/aeromon/aeromon/internal/config"
	"github.com/aeromon/aeromon/internal/forecast"
	"github.com/aeromon/aeromon/internal/history"
	"github.com/aeromon/aeromon/internal/monitor"
	"github.com/aeromon/aeromon/internal/notifier"
	"github.com/aeromon/aeromon/internal/source"
	"github.com/aeromon/aeromon/internal/store"
	"github.com/aeromon/aeromon/internal/types"
	"github.com/aeromon/aeromon/internal/version"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	logLevel := flag.String("log-level", "", "Log level override (trace, debug, info, warn, error)")
	flag.Parse()

	// Captures the last 1000 log lines for /api/logs.
	logBuffer := api.NewLogBuffer(1000)

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	multiWriter := io.MultiWriter(os.Stdout, logBuffer)
	logger := zerolog.New(multiWriter).With().
		Timestamp().
		Str("version", version.GetVersion()).
		Logger()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			logger.Fatal().Err(err).Str("config_path", *configPath).Msg("Failed to load configuration")
		}
		cfg = loaded
	}

	level := cfg.Logging.Level
	if *logLevel != "" {
		level = *logLevel
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
	if cfg.Logging.Pretty {
		console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		logger = logger.Output(io.MultiWriter(console, logBuffer))
	}

	logger.Info().Str("source", cfg.Source.Type).Msg("Starting aeromon")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Durable storage is optional: a failed open degrades to
	// memory-only operation instead of aborting.
	var st store.Store
	if cfg.Store.Path != "" {
		st, err = store.OpenSQLite(cfg.Store.Path)
		if err != nil {
			logger.Warn().Err(err).Str("path", cfg.Store.Path).
				Msg("Durable store unavailable, running memory-only")
			st = nil
		} else {
			defer st.Close()
			logger.Info().Str("path", cfg.Store.Path).Msg("Durable store ready")
		}
	} else {
		logger.Info().Msg("No store path configured, running memory-only")
	}

	loc := *cfg.AlertLocation()
	src, err := buildSource(cfg, loc, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize source")
	}
	if closer, ok := src.(interface{ Close() }); ok {
		defer closer.Close()
	}

	hist := history.NewBuffer(cfg.Monitor.HistorySize)

	var alertStore store.AlertStore
	var readingStore store.ReadingStore
	if st != nil {
		alertStore = st
		readingStore = st
	}
	engine := alerter.NewEngine(alertStore, logger, cfg.Alerts.DeduplicationWindow, cfg.Alerts.MaxActive)
	estimator := forecast.NewEstimator(readingStore, hist, logger)

	hub := broadcast.NewHub(logger)
	go hub.Run(ctx)

	var notify *notifier.Notifier
	if len(cfg.Alerts.Channels) > 0 {
		notify = notifier.NewNotifier(cfg.Alerts.Channels, logger)
		logger.Info().Int("channels", notify.ChannelCount()).Msg("Webhook notifier ready")
	}

	mon := monitor.New(monitor.Options{
		Source:    src,
		Table:     cfg.Alerts.Thresholds,
		Engine:    engine,
		History:   hist,
		Hub:       hub,
		Notifier:  notify,
		Store:     st,
		Retention: cfg.Store.Retention,
		Interval:  cfg.Monitor.PollInterval,
	}, logger)
	go mon.Run(ctx)

	apiServer := api.NewServer(cfg.Server.Listen, engine, estimator, hist, hub, logBuffer, logger)
	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error().Err(err).Msg("API server error")
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info().Msg("Shutting down...")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("API server shutdown error")
	}
	cancel()
	logger.Info().Msg("aeromon stopped")
}

// buildSource constructs the configured reading source.
func buildSource(cfg *config.Config, loc types.Location, logger zerolog.Logger) (source.Source, error) {
	switch cfg.Source.Type {
	case "weather":
		apiKey := os.Getenv(cfg.Source.Weather.APIKeyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("weather API key env %s is not set", cfg.Source.Weather.APIKeyEnv)
		}
		return source.NewWeatherSource(cfg.Source.Weather, apiKey, loc, logger), nil
	case "mqtt":
		password := ""
		if cfg.Source.MQTT.PasswordEnv != "" {
			password = os.Getenv(cfg.Source.MQTT.PasswordEnv)
		}
		return source.NewMQTTSource(cfg.Source.MQTT, password, loc, logger)
	case "simulator":
		return source.NewSimulator(loc, time.Now().UnixNano()), nil
	default:
		return nil, fmt.Errorf("unknown source type %q", cfg.Source.Type)
	}
}
