package alerts

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/karl-ai/corehub/internal/common/logger"
	"github.com/karl-ai/corehub/internal/metrics"
)

type recordingChannel struct {
	name string
	mu   sync.Mutex
	sent []*Alert
	err  error
}

func (c *recordingChannel) Name() string { return c.name }

func (c *recordingChannel) Send(ctx context.Context, alert *Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, alert)
	return c.err
}

func (c *recordingChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

type managerClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *managerClock) get() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *managerClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestManager(opts Options, channels ...Channel) (*Manager, *managerClock) {
	m := NewManager(opts, channels, nil, logger.Default())
	clock := &managerClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	m.now = clock.get
	return m, clock
}

func createTestAlert(ctx context.Context, m *Manager, alertType, severity, message string) (*Alert, error) {
	return m.CreateAlert(ctx, alertType, severity, alertType, message, "test_monitor", nil)
}

func TestCreateAlertDispatches(t *testing.T) {
	ch := &recordingChannel{name: "webhook"}
	m, _ := newTestManager(Options{}, ch)

	alert, err := createTestAlert(context.Background(), m, "high_cpu", "warning", "cpu at 92%")
	if err != nil {
		t.Fatalf("CreateAlert: %v", err)
	}
	if alert.Status != StatusActive {
		t.Errorf("status = %s, want active", alert.Status)
	}
	if alert.ID != "high_cpu_"+"1772366400" {
		t.Errorf("alert ID = %s", alert.ID)
	}
	if !alert.Notified {
		t.Error("first alert of a type should be notified")
	}
	if ch.count() != 1 {
		t.Errorf("channel sends = %d, want 1", ch.count())
	}
}

func TestCooldownSuppressesDispatchNotRecord(t *testing.T) {
	ch := &recordingChannel{name: "webhook"}
	m, clock := newTestManager(Options{DefaultCooldown: 5 * time.Minute}, ch)
	ctx := context.Background()

	first, _ := createTestAlert(ctx, m, "high_cpu", "warning", "cpu at 92%")
	clock.advance(time.Minute)
	second, _ := createTestAlert(ctx, m, "high_cpu", "warning", "cpu at 95%")

	if second.ID == first.ID {
		t.Fatal("second alert should be a distinct record")
	}
	if second.Notified {
		t.Error("alert within cooldown should not notify")
	}
	if ch.count() != 1 {
		t.Errorf("channel sends = %d, want 1", ch.count())
	}
	if m.Summarize().Total != 2 {
		t.Errorf("alert records = %d, want 2 (records are created during cooldown)", m.Summarize().Total)
	}

	// Another type is not affected by high_cpu's cooldown window
	other, _ := createTestAlert(ctx, m, "high_disk", "critical", "disk at 95%")
	if !other.Notified {
		t.Error("different alert type should dispatch")
	}

	clock.advance(5 * time.Minute)
	third, _ := createTestAlert(ctx, m, "high_cpu", "warning", "cpu still high")
	if !third.Notified {
		t.Error("alert after cooldown expiry should dispatch")
	}
	if ch.count() != 3 {
		t.Errorf("channel sends = %d, want 3", ch.count())
	}
}

func TestCooldownResolvedAtCreation(t *testing.T) {
	m, clock := newTestManager(Options{
		DefaultCooldown: 5 * time.Minute,
		Rules:           map[string]Rule{"high_error_rate": {Cooldown: time.Minute}},
	})
	ctx := context.Background()

	alert, _ := createTestAlert(ctx, m, "high_error_rate", "critical", "errors")
	if alert.Cooldown != time.Minute {
		t.Errorf("cooldown = %v, want rule override of 1m", alert.Cooldown)
	}

	// Changing the rules later must not change the stored cooldown
	m.opts.Rules["high_error_rate"] = Rule{Cooldown: time.Hour}
	if alert.Cooldown != time.Minute {
		t.Errorf("cooldown changed after creation: %v", alert.Cooldown)
	}

	clock.advance(2 * time.Second)
	plain, _ := createTestAlert(ctx, m, "slow_response", "warning", "slow")
	if plain.Cooldown != 5*time.Minute {
		t.Errorf("default cooldown = %v, want 5m", plain.Cooldown)
	}
}

func TestRuleChannelSubset(t *testing.T) {
	email := &recordingChannel{name: "email"}
	slack := &recordingChannel{name: "slack"}
	m, _ := newTestManager(Options{
		Rules: map[string]Rule{"high_disk": {Channels: []string{"slack"}}},
	}, email, slack)

	_, _ = createTestAlert(context.Background(), m, "high_disk", "critical", "disk full")

	if email.count() != 0 {
		t.Errorf("email sends = %d, want 0", email.count())
	}
	if slack.count() != 1 {
		t.Errorf("slack sends = %d, want 1", slack.count())
	}
}

func TestLifecycleTransitions(t *testing.T) {
	m, _ := newTestManager(Options{})
	ctx := context.Background()

	alert, _ := createTestAlert(ctx, m, "high_cpu", "warning", "cpu")

	acked, err := m.Acknowledge(ctx, alert.ID, "ops")
	if err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if acked.Status != StatusAcknowledged || acked.AcknowledgedAt == nil {
		t.Errorf("acknowledged alert = %+v", acked)
	}

	// Acknowledging twice is a conflict
	if _, err := m.Acknowledge(ctx, alert.ID, "ops"); err == nil {
		t.Error("second acknowledge should fail")
	}

	resolved, err := m.Resolve(ctx, alert.ID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Status != StatusResolved || resolved.ResolvedAt == nil {
		t.Errorf("resolved alert = %+v", resolved)
	}

	// Resolving a resolved alert is a no-op, not an error
	again, err := m.Resolve(ctx, alert.ID)
	if err != nil {
		t.Fatalf("Resolve on resolved: %v", err)
	}
	if again.Status != StatusResolved {
		t.Errorf("status = %s", again.Status)
	}

	// No transition out of resolved
	if _, err := m.Acknowledge(ctx, alert.ID, "ops"); err == nil {
		t.Error("acknowledge after resolve should fail")
	}
}

func TestResolveWithoutAcknowledge(t *testing.T) {
	m, _ := newTestManager(Options{})
	ctx := context.Background()

	alert, _ := createTestAlert(ctx, m, "high_cpu", "warning", "cpu")
	resolved, err := m.Resolve(ctx, alert.ID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Status != StatusResolved {
		t.Errorf("status = %s", resolved.Status)
	}
	if resolved.AcknowledgedAt != nil {
		t.Error("skipped acknowledgement should leave AcknowledgedAt nil")
	}
}

func TestQueriesAndSummary(t *testing.T) {
	m, clock := newTestManager(Options{})
	ctx := context.Background()

	a, _ := createTestAlert(ctx, m, "high_cpu", "warning", "cpu")
	clock.advance(time.Second)
	b, _ := createTestAlert(ctx, m, "high_disk", "critical", "disk")
	clock.advance(time.Second)
	_, _ = createTestAlert(ctx, m, "slow_response", "warning", "slow")

	_, _ = m.Resolve(ctx, a.ID)
	_, _ = m.Acknowledge(ctx, b.ID, "ops")

	active := m.ActiveAlerts()
	if len(active) != 2 {
		t.Fatalf("active alerts = %d, want 2", len(active))
	}
	if active[0].ID != b.ID {
		t.Errorf("active order: first = %s, want %s", active[0].ID, b.ID)
	}

	warnings := m.BySeverity("warning")
	if len(warnings) != 2 {
		t.Errorf("warning alerts = %d, want 2", len(warnings))
	}

	s := m.Summarize()
	if s.Total != 3 || s.ByStatus[StatusResolved] != 1 || s.ByStatus[StatusAcknowledged] != 1 || s.ByStatus[StatusActive] != 1 {
		t.Errorf("summary = %+v", s)
	}
	if s.BySeverity["critical"] != 1 {
		t.Errorf("critical count = %d", s.BySeverity["critical"])
	}
}

func TestAlertCarriesIdentityFields(t *testing.T) {
	m, _ := newTestManager(Options{})
	ctx := context.Background()

	alert, err := m.CreateAlert(ctx, "cpu_high", "warning", "High CPU Usage",
		"CPU usage is 92.0%", "system_monitor",
		map[string]interface{}{"cpu_percent": 92.0})
	if err != nil {
		t.Fatalf("CreateAlert: %v", err)
	}
	if alert.Title != "High CPU Usage" {
		t.Errorf("title = %q", alert.Title)
	}
	if alert.Source != "system_monitor" {
		t.Errorf("source = %q", alert.Source)
	}
	if alert.Metadata["cpu_percent"] != 92.0 {
		t.Errorf("metadata = %v", alert.Metadata)
	}

	acked, err := m.Acknowledge(ctx, alert.ID, "oncall@karl")
	if err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if acked.AcknowledgedBy != "oncall@karl" {
		t.Errorf("acknowledged_by = %q", acked.AcknowledgedBy)
	}
	if acked.AcknowledgedAt == nil {
		t.Error("AcknowledgedAt not set")
	}
}

func TestCreateFromCandidateCarriesBreachContext(t *testing.T) {
	m, _ := newTestManager(Options{})

	alert, err := m.CreateFromCandidate(context.Background(), metrics.Candidate{
		Type:      "high_memory",
		Severity:  "warning",
		Title:     "High Memory Usage",
		Message:   "high_memory: memory_percent is 91.00, above threshold 85.00",
		Source:    "system_monitor",
		Metric:    "memory_percent",
		Value:     91,
		Threshold: 85,
	})
	if err != nil {
		t.Fatalf("CreateFromCandidate: %v", err)
	}
	if alert.Title != "High Memory Usage" || alert.Source != "system_monitor" {
		t.Errorf("alert identity = %q / %q", alert.Title, alert.Source)
	}
	if alert.Metadata["memory_percent"] != 91.0 || alert.Metadata["threshold"] != 85.0 {
		t.Errorf("metadata = %v", alert.Metadata)
	}
}

func TestMetadataDefaultsToEmptyMap(t *testing.T) {
	m, _ := newTestManager(Options{})

	alert, _ := createTestAlert(context.Background(), m, "high_cpu", "warning", "cpu")
	if alert.Metadata == nil {
		t.Error("metadata should default to an empty map")
	}
}

func TestUnknownAlertErrors(t *testing.T) {
	m, _ := newTestManager(Options{})
	ctx := context.Background()

	if _, err := m.Acknowledge(ctx, "missing", "ops"); err == nil {
		t.Error("acknowledge of unknown alert should fail")
	}
	if _, err := m.Resolve(ctx, "missing"); err == nil {
		t.Error("resolve of unknown alert should fail")
	}
	if _, err := m.Get("missing"); err == nil {
		t.Error("get of unknown alert should fail")
	}
}
