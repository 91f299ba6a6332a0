// Package notifier pushes fired alerts to configured webhook channels.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/aeromon/aeromon/internal/config"
	"github.com/aeromon/aeromon/internal/types"
)

// Channel is a resolved notification target.
type Channel struct {
	Name           string
	URL            string
	severityFilter map[types.Severity]struct{}
}

// wants reports whether the channel accepts the given severity. An
// empty filter accepts everything.
func (c Channel) wants(sev types.Severity) bool {
	if len(c.severityFilter) == 0 {
		return true
	}
	_, ok := c.severityFilter[sev]
	return ok
}

// Notifier sends alert notifications over HTTP webhooks. A failure on
// one channel never blocks delivery to the others.
type Notifier struct {
	logger   zerolog.Logger
	client   *http.Client
	channels []Channel
}

// NewNotifier resolves channel URLs from the environment. Channels
// whose env var is unset are skipped with a warning.
func NewNotifier(channels map[string]config.ChannelConfig, logger zerolog.Logger) *Notifier {
	n := &Notifier{
		logger: logger.With().Str("component", "notifier").Logger(),
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for name, cc := range channels {
		url := os.Getenv(cc.URLEnv)
		if url == "" {
			n.logger.Warn().Str("channel", name).Str("env", cc.URLEnv).Msg("channel URL not set, skipping")
			continue
		}
		ch := Channel{Name: name, URL: url}
		if len(cc.SeverityFilter) > 0 {
			ch.severityFilter = make(map[types.Severity]struct{}, len(cc.SeverityFilter))
			for _, sev := range cc.SeverityFilter {
				ch.severityFilter[types.Severity(sev)] = struct{}{}
			}
		}
		n.channels = append(n.channels, ch)
	}
	return n
}

// ChannelCount returns the number of usable channels.
func (n *Notifier) ChannelCount() int { return len(n.channels) }

// payload is the webhook body, one alert per request.
type payload struct {
	Title string      `json:"title"`
	Body  string      `json:"body"`
	Alert types.Alert `json:"alert"`
}

// SendAlerts delivers each alert to every channel that accepts its
// severity. Errors are logged per channel, not returned.
func (n *Notifier) SendAlerts(ctx context.Context, alerts []types.Alert) {
	for _, alert := range alerts {
		for _, ch := range n.channels {
			if !ch.wants(alert.Severity) {
				continue
			}
			if err := n.send(ctx, ch, alert); err != nil {
				n.logger.Error().Err(err).
					Str("channel", ch.Name).
					Str("alert_id", alert.ID).
					Msg("notification failed")
				continue
			}
			n.logger.Info().
				Str("channel", ch.Name).
				Str("alert_id", alert.ID).
				Msg("notification sent")
		}
	}
}

func (n *Notifier) send(ctx context.Context, ch Channel, alert types.Alert) error {
	body, err := json.Marshal(payload{
		Title: formatTitle(alert),
		Body:  alert.Message,
		Alert: alert,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ch.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, string(msg))
	}
	return nil
}

func formatTitle(alert types.Alert) string {
	var marker string
	switch alert.Severity {
	case types.SeverityCritical:
		marker = "🔴"
	case types.SeverityDanger:
		marker = "🟠"
	case types.SeverityWarning:
		marker = "⚠️"
	default:
		marker = "ℹ️"
	}
	return fmt.Sprintf("%s aeromon alert: %s (%s)", marker, alert.Type, alert.Severity)
}
