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

	"github.com/sells-group/holdings-cli/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertRunFailureRate AlertType = "run_failure_rate"
	AlertSkipRate       AlertType = "investor_skip_rate"
	AlertStaleIngest    AlertType = "stale_ingest"
)

// minFinishedRuns is how many finished runs the failure rate needs before it
// can alert.
const minFinishedRuns = 3

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
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
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := snap.CollectedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	finished := snap.RunsComplete + snap.RunsFailed
	if finished >= minFinishedRuns && snap.FailRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertRunFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Ingest failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished in last %dh)",
				snap.FailRate*100, a.cfg.FailureRateThreshold*100,
				snap.RunsFailed, finished, snap.LookbackHours,
			),
			Details: map[string]any{
				"failure_rate": snap.FailRate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       snap.RunsFailed,
				"finished":     finished,
			},
			Timestamp: now,
		})
	}

	if a.cfg.SkipRateThreshold > 0 && snap.SkipRate > a.cfg.SkipRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertSkipRate,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%.1f%% of investors skipped in last %dh (threshold %.1f%%)",
				snap.SkipRate*100, snap.LookbackHours, a.cfg.SkipRateThreshold*100,
			),
			Details: map[string]any{
				"skip_rate":         snap.SkipRate,
				"investors_skipped": snap.InvestorsSkipped,
				"quarters_skipped":  snap.QuartersSkipped,
			},
			Timestamp: now,
		})
	}

	if a.cfg.StaleAfterHours > 0 {
		limit := time.Duration(a.cfg.StaleAfterHours) * time.Hour
		switch {
		case snap.LastSuccess == nil:
			alerts = append(alerts, Alert{
				Type:      AlertStaleIngest,
				Severity:  "high",
				Message:   "No ingest run has ever completed",
				Timestamp: now,
			})
		case now.Sub(*snap.LastSuccess) > limit:
			alerts = append(alerts, Alert{
				Type:     AlertStaleIngest,
				Severity: "high",
				Message: fmt.Sprintf(
					"Last completed ingest was %s ago (limit %dh)",
					now.Sub(*snap.LastSuccess).Round(time.Minute), a.cfg.StaleAfterHours,
				),
				Details: map[string]any{
					"last_success": snap.LastSuccess.Format(time.RFC3339),
				},
				Timestamp: now,
			})
		}
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
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
