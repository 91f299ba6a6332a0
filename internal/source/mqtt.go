package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/aeromon/aeromon/internal/config"
	"github.com/aeromon/aeromon/internal/types"
)

// ErrNoReading is returned before the first message arrives.
var ErrNoReading = errors.New("no reading received yet")

// MQTTSource subscribes to a sensor topic and serves the most recent
// message as the current reading.
type MQTTSource struct {
	client   mqtt.Client
	topic    string
	location types.Location
	logger   zerolog.Logger

	mu     sync.RWMutex
	latest types.Reading
	seen   bool
}

// NewMQTTSource connects to the broker and subscribes. The connection
// retries in the background after the initial attempt.
func NewMQTTSource(cfg config.MQTTConfig, password string, loc types.Location, logger zerolog.Logger) (*MQTTSource, error) {
	s := &MQTTSource{
		topic:    cfg.Topic,
		location: loc,
		logger:   logger.With().Str("component", "mqtt-source").Logger(),
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(10 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(password)
	}
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		if token := c.Subscribe(s.topic, 0, s.onMessage); token.Wait() && token.Error() != nil {
			s.logger.Error().Err(token.Error()).Str("topic", s.topic).Msg("subscribe failed")
			return
		}
		s.logger.Info().Str("topic", s.topic).Msg("subscribed")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.logger.Warn().Err(err).Msg("broker connection lost")
	})

	s.client = mqtt.NewClient(opts)
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to broker %s: %w", cfg.Broker, token.Error())
	}
	return s, nil
}

func (s *MQTTSource) Name() string { return "mqtt" }

func (s *MQTTSource) onMessage(_ mqtt.Client, msg mqtt.Message) {
	var reading types.Reading
	if err := json.Unmarshal(msg.Payload(), &reading); err != nil {
		s.logger.Warn().Err(err).Str("topic", msg.Topic()).Msg("dropping malformed payload")
		return
	}
	if reading.Timestamp.IsZero() {
		reading.Timestamp = time.Now()
	}
	if reading.Location == nil {
		reading.Location = &s.location
	}

	s.mu.Lock()
	s.latest = reading
	s.seen = true
	s.mu.Unlock()
}

// Fetch returns the last message seen on the topic.
func (s *MQTTSource) Fetch(_ context.Context) (types.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.seen {
		return types.Reading{}, ErrNoReading
	}
	return s.latest, nil
}

// Close disconnects from the broker.
func (s *MQTTSource) Close() {
	s.client.Disconnect(250)
}
