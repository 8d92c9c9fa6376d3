package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/company-extractor/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertUnknownRate    AlertType = "unknown_rate"
	AlertNoLinkedInRate AlertType = "no_linkedin_rate"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a Snapshot against configured thresholds and sends
// alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
// Windows with fewer than MinRecords records never alert. A zero threshold
// disables its check.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	if snap == nil || snap.Records == 0 || snap.Records < a.cfg.MinRecords {
		return nil
	}

	var alerts []Alert
	now := time.Now().UTC()

	if a.cfg.UnknownRateThreshold > 0 && snap.UnknownRate > a.cfg.UnknownRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertUnknownRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Unknown analysis rate %.1f%% exceeds threshold %.1f%% (%d of %d records in last %dh)",
				snap.UnknownRate*100, a.cfg.UnknownRateThreshold*100,
				snap.FullyUnknown, snap.Records, snap.LookbackHours,
			),
			Details: map[string]any{
				"unknown_rate":  snap.UnknownRate,
				"threshold":     a.cfg.UnknownRateThreshold,
				"fully_unknown": snap.FullyUnknown,
				"records":       snap.Records,
			},
			Timestamp: now,
		})
	}

	if a.cfg.NoLinkedInRateThreshold > 0 && snap.NoLinkedInRate > a.cfg.NoLinkedInRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertNoLinkedInRate,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%.1f%% of records have no LinkedIn page, threshold %.1f%% (last %dh)",
				snap.NoLinkedInRate*100, a.cfg.NoLinkedInRateThreshold*100, snap.LookbackHours,
			),
			Details: map[string]any{
				"no_linkedin_rate": snap.NoLinkedInRate,
				"threshold":        a.cfg.NoLinkedInRateThreshold,
				"with_linkedin":    snap.WithLinkedIn,
				"records":          snap.Records,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL and returns the
// number sent. Without a webhook, alerts are only logged.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if len(alerts) == 0 {
		return 0
	}
	if a.cfg.WebhookURL == "" {
		for _, alert := range alerts {
			zap.L().Warn("monitoring: alert",
				zap.String("type", string(alert.Type)),
				zap.String("severity", alert.Severity),
				zap.String("message", alert.Message),
			)
		}
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
