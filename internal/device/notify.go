// SPDX-License-Identifier: MIT

package device

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/inkframe/inkframe/internal/log"
)

// lowBatteryEvent is the webhook payload for a downward threshold crossing.
type lowBatteryEvent struct {
	DeviceID  string    `json:"deviceId"`
	Percent   float64   `json:"percent"`
	Voltage   float64   `json:"voltage"`
	Threshold float64   `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier delivers low-battery alerts. Delivery is best-effort; the registry
// never waits for it.
type Notifier interface {
	NotifyLowBattery(ev lowBatteryEvent)
}

// NopNotifier drops all notifications.
type NopNotifier struct{}

func (NopNotifier) NotifyLowBattery(lowBatteryEvent) {}

// WebhookNotifier POSTs alerts as JSON to a configured URL.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (w *WebhookNotifier) NotifyLowBattery(ev lowBatteryEvent) {
	logger := log.WithComponent("webhook")

	body, err := json.Marshal(ev)
	if err != nil {
		logger.Error().Err(err).Msg("encode low-battery event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		logger.Error().Err(err).Msg("build webhook request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := w.client.Do(req)
	if err != nil {
		logger.Warn().Err(err).Str("device_id", ev.DeviceID).Msg("low-battery webhook failed")
		return
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		logger.Warn().Int("status", res.StatusCode).Str("device_id", ev.DeviceID).Msg("low-battery webhook rejected")
		return
	}
	logger.Info().Str("device_id", ev.DeviceID).Float64("percent", ev.Percent).Msg("low-battery webhook delivered")
}
