package monitoring

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/holdings-cli/internal/config"
)

const defaultCheckInterval = 15 * time.Minute

// Checker watches the ingest run log while the API is serving. An alert is
// delivered when it first triggers, then again only after RepeatAfterHours
// if it stays active. Without a webhook, raised alerts go to the log.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig

	mu sync.Mutex
	// notified holds the last delivery time of each active alert type.
	notified map[AlertType]time.Time
}

// CheckResult is the outcome of one pass over the run log.
type CheckResult struct {
	Active  []Alert
	Sent    int
	Cleared []AlertType
}

// NewChecker creates a run log checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
		notified:  make(map[AlertType]time.Time),
	}
}

// Run checks once right away, then on every interval until ctx is done.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = defaultCheckInterval
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("watching ingest runs",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
		zap.Bool("webhook", c.cfg.WebhookURL != ""),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			log.Info("run log checker stopped")
			return
		}
		c.Check(ctx)

		select {
		case <-ctx.Done():
			log.Info("run log checker stopped")
			return
		case <-ticker.C:
		}
	}
}

// Check collects once and notifies for alerts that are new or due a repeat.
// A failed collection leaves the alert state untouched.
func (c *Checker) Check(ctx context.Context) CheckResult {
	log := zap.L().With(zap.String("component", "monitoring.checker"))

	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		log.Error("monitoring: failed to collect run metrics", zap.Error(err))
		return CheckResult{}
	}

	alerts := c.alerter.Evaluate(snap)
	now := snap.CollectedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	res := CheckResult{Active: alerts}
	active := make(map[AlertType]bool, len(alerts))
	for _, a := range alerts {
		active[a.Type] = true
	}
	for t := range c.notified {
		if !active[t] {
			delete(c.notified, t)
			res.Cleared = append(res.Cleared, t)
		}
	}
	slices.Sort(res.Cleared)
	for _, t := range res.Cleared {
		log.Info("monitoring: alert cleared", zap.String("type", string(t)))
	}

	for _, a := range alerts {
		if !c.due(a.Type, now) {
			continue
		}
		if c.cfg.WebhookURL == "" {
			log.Warn("monitoring: alert raised",
				zap.String("type", string(a.Type)),
				zap.String("severity", a.Severity),
				zap.String("message", a.Message),
			)
			c.notified[a.Type] = now
			continue
		}
		// Undelivered alerts stay due for the next pass.
		if c.alerter.SendAlerts(ctx, []Alert{a}) == 1 {
			c.notified[a.Type] = now
			res.Sent++
		}
	}

	if len(alerts) > 0 || len(res.Cleared) > 0 {
		log.Info("monitoring: run log check complete",
			zap.Int("alerts_active", len(alerts)),
			zap.Int("alerts_sent", res.Sent),
			zap.Int("alerts_cleared", len(res.Cleared)),
		)
	}
	return res
}

func (c *Checker) due(t AlertType, now time.Time) bool {
	last, ok := c.notified[t]
	if !ok {
		return true
	}
	repeat := time.Duration(c.cfg.RepeatAfterHours) * time.Hour
	return repeat > 0 && now.Sub(last) >= repeat
}
