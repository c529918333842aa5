package alerts

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/karl-ai/corehub/internal/common/errors"
	"github.com/karl-ai/corehub/internal/common/logger"
	"github.com/karl-ai/corehub/internal/events/bus"
	"github.com/karl-ai/corehub/internal/metrics"
)

// Rule overrides dispatch behavior for one alert type.
type Rule struct {
	// Cooldown overrides the default cooldown when positive.
	Cooldown time.Duration
	// Channels restricts dispatch to the named channels. Empty means all.
	Channels []string
}

// Options configures a Manager.
type Options struct {
	// DefaultCooldown suppresses repeat notifications for the same alert
	// type. Zero falls back to 5 minutes.
	DefaultCooldown time.Duration
	// DispatchTimeout bounds each channel's Send call. Zero falls back to
	// 10 seconds.
	DispatchTimeout time.Duration
	// Rules holds per-alert-type overrides keyed by alert type.
	Rules map[string]Rule
}

// Manager records alerts, drives their lifecycle and dispatches
// notifications. Alert records are always created; the cooldown only
// suppresses notification dispatch.
type Manager struct {
	mu           sync.Mutex
	alerts       map[string]*Alert
	history      []*Alert // creation order
	lastNotified map[string]time.Time

	opts     Options
	channels []Channel
	eventBus bus.EventBus
	now      func() time.Time
	logger   *logger.Logger
}

// NewManager creates an alert manager. The event bus is optional; when set,
// alert lifecycle events are published on it.
func NewManager(opts Options, channels []Channel, eventBus bus.EventBus, log *logger.Logger) *Manager {
	if opts.DefaultCooldown <= 0 {
		opts.DefaultCooldown = 5 * time.Minute
	}
	if opts.DispatchTimeout <= 0 {
		opts.DispatchTimeout = 10 * time.Second
	}
	return &Manager{
		alerts:       make(map[string]*Alert),
		lastNotified: make(map[string]time.Time),
		opts:         opts,
		channels:     channels,
		eventBus:     eventBus,
		now:          time.Now,
		logger:       log,
	}
}

// cooldownFor resolves the cooldown for an alert type at creation time.
func (m *Manager) cooldownFor(alertType string) time.Duration {
	if rule, ok := m.opts.Rules[alertType]; ok && rule.Cooldown > 0 {
		return rule.Cooldown
	}
	return m.opts.DefaultCooldown
}

// channelsFor resolves the channel subset for an alert type.
func (m *Manager) channelsFor(alertType string) []Channel {
	rule, ok := m.opts.Rules[alertType]
	if !ok || len(rule.Channels) == 0 {
		return m.channels
	}
	allowed := make(map[string]bool, len(rule.Channels))
	for _, name := range rule.Channels {
		allowed[name] = true
	}
	var out []Channel
	for _, ch := range m.channels {
		if allowed[ch.Name()] {
			out = append(out, ch)
		}
	}
	return out
}

// CreateAlert records a new alert and dispatches notifications unless the
// type is in its cooldown window. The record is created either way.
func (m *Manager) CreateAlert(ctx context.Context, alertType, severity, title, message, source string, metadata map[string]interface{}) (*Alert, error) {
	return m.create(ctx, &Alert{
		Type:     alertType,
		Severity: severity,
		Title:    title,
		Message:  message,
		Source:   source,
		Metadata: metadata,
	})
}

// CreateFromCandidate records an alert for a threshold breach reported by
// the metrics collector.
func (m *Manager) CreateFromCandidate(ctx context.Context, cand metrics.Candidate) (*Alert, error) {
	return m.create(ctx, &Alert{
		Type:     cand.Type,
		Severity: cand.Severity,
		Title:    cand.Title,
		Message:  cand.Message,
		Source:   cand.Source,
		Metadata: map[string]interface{}{
			cand.Metric: cand.Value,
			"threshold": cand.Threshold,
		},
		Metric:    cand.Metric,
		Value:     cand.Value,
		Threshold: cand.Threshold,
	})
}

func (m *Manager) create(ctx context.Context, alert *Alert) (*Alert, error) {
	now := m.now().UTC()
	alert.CreatedAt = now
	alert.ID = alertID(alert.Type, now)
	alert.Status = StatusActive
	alert.Cooldown = m.cooldownFor(alert.Type)
	if alert.Metadata == nil {
		alert.Metadata = map[string]interface{}{}
	}

	m.mu.Lock()
	if existing, ok := m.alerts[alert.ID]; ok {
		// Same type within the same second; keep the first record.
		m.mu.Unlock()
		return existing, nil
	}
	m.alerts[alert.ID] = alert
	m.history = append(m.history, alert)

	last, seen := m.lastNotified[alert.Type]
	notify := !seen || now.Sub(last) >= alert.Cooldown
	if notify {
		m.lastNotified[alert.Type] = now
		alert.Notified = true
	}
	m.mu.Unlock()

	m.logger.Info("Alert created",
		zap.String("alert_id", alert.ID),
		zap.String("severity", alert.Severity),
		zap.Bool("notified", notify))

	if notify {
		m.dispatch(ctx, alert)
	} else {
		m.logger.Debug("Notification suppressed by cooldown",
			zap.String("alert_id", alert.ID),
			zap.Duration("cooldown", alert.Cooldown))
	}

	m.publish(ctx, bus.SubjectAlertCreated, alert)
	return alert, nil
}

// dispatch sends the alert to every configured channel, bounding each Send
// with the dispatch timeout. Channel failures are logged, never propagated.
func (m *Manager) dispatch(ctx context.Context, alert *Alert) {
	channels := m.channelsFor(alert.Type)
	if len(channels) == 0 {
		return
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, ch := range channels {
		ch := ch
		g.Go(func() error {
			sendCtx, cancel := context.WithTimeout(ctx, m.opts.DispatchTimeout)
			defer cancel()

			if err := ch.Send(sendCtx, alert); err != nil {
				m.logger.Error("Notification channel failed",
					zap.String("channel", ch.Name()),
					zap.String("alert_id", alert.ID),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (m *Manager) publish(ctx context.Context, subject string, alert *Alert) {
	if m.eventBus == nil {
		return
	}
	event := bus.NewEvent(subject, "alerts", map[string]interface{}{
		"alert_id": alert.ID,
		"type":     alert.Type,
		"severity": alert.Severity,
		"status":   string(alert.Status),
	})
	if err := m.eventBus.Publish(ctx, subject, event); err != nil {
		m.logger.Warn("Failed to publish alert event", zap.Error(err))
	}
}

// Acknowledge moves an active alert to acknowledged, recording the actor.
func (m *Manager) Acknowledge(ctx context.Context, id, by string) (*Alert, error) {
	m.mu.Lock()
	alert, ok := m.alerts[id]
	if !ok {
		m.mu.Unlock()
		return nil, errors.NotFound("alert", id)
	}
	if alert.Status != StatusActive {
		m.mu.Unlock()
		return nil, errors.Conflict("alert " + id + " is not active")
	}
	now := m.now().UTC()
	alert.Status = StatusAcknowledged
	alert.AcknowledgedBy = by
	alert.AcknowledgedAt = &now
	m.mu.Unlock()

	m.logger.Info("Alert acknowledged",
		zap.String("alert_id", id),
		zap.String("by", by))
	m.publish(ctx, bus.SubjectAlertUpdated, alert)
	return alert, nil
}

// Resolve moves an alert to resolved from either active or acknowledged.
// Resolving an already-resolved alert is a no-op, not an error.
func (m *Manager) Resolve(ctx context.Context, id string) (*Alert, error) {
	m.mu.Lock()
	alert, ok := m.alerts[id]
	if !ok {
		m.mu.Unlock()
		return nil, errors.NotFound("alert", id)
	}
	if alert.Status == StatusResolved {
		m.mu.Unlock()
		return alert, nil
	}
	now := m.now().UTC()
	alert.Status = StatusResolved
	alert.ResolvedAt = &now
	m.mu.Unlock()

	m.logger.Info("Alert resolved", zap.String("alert_id", id))
	m.publish(ctx, bus.SubjectAlertUpdated, alert)
	return alert, nil
}

// Get returns the alert with the given ID.
func (m *Manager) Get(id string) (*Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	alert, ok := m.alerts[id]
	if !ok {
		return nil, errors.NotFound("alert", id)
	}
	return alert, nil
}

// ActiveAlerts returns unresolved alerts in creation order.
func (m *Manager) ActiveAlerts() []*Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []*Alert{}
	for _, alert := range m.history {
		if alert.Status != StatusResolved {
			out = append(out, alert)
		}
	}
	return out
}

// BySeverity returns alerts of the given severity in creation order.
func (m *Manager) BySeverity(severity string) []*Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []*Alert{}
	for _, alert := range m.history {
		if alert.Severity == severity {
			out = append(out, alert)
		}
	}
	return out
}

// Summarize counts alerts by status and severity.
func (m *Manager) Summarize() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Summary{
		Total:      len(m.history),
		ByStatus:   make(map[Status]int),
		BySeverity: make(map[string]int),
	}
	for _, alert := range m.history {
		s.ByStatus[alert.Status]++
		s.BySeverity[alert.Severity]++
	}
	return s
}
