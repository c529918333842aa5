package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/karl-ai/corehub/internal/common/logger"
)

// DefaultBufferSize is the number of samples retained per family when the
// configuration does not say otherwise.
const DefaultBufferSize = 1000

// Summary is a snapshot of the collector state for the dashboard.
type Summary struct {
	Latest           map[Family]*Sample `json:"latest"`
	SampleCounts     map[Family]int     `json:"sample_counts"`
	CandidatesRaised int                `json:"candidates_raised"`
	UptimeSeconds    float64            `json:"uptime_seconds"`
}

// Collector gathers samples from per-family sources into ring buffers and
// evaluates them against the shared threshold rules.
type Collector struct {
	mu        sync.Mutex
	rings     map[Family]*ring
	sources   map[Family]Source
	rules     []Rule
	raised    int
	startedAt time.Time
	logger    *logger.Logger
}

// NewCollector creates a collector with the given per-family buffer capacity.
// A non-positive capacity falls back to DefaultBufferSize. Families without a
// registered source collect empty samples.
func NewCollector(bufferSize int, rules []Rule, log *logger.Logger) *Collector {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	rings := make(map[Family]*ring, len(Families()))
	for _, f := range Families() {
		rings[f] = newRing(bufferSize)
	}
	return &Collector{
		rings:     rings,
		sources:   make(map[Family]Source),
		rules:     rules,
		startedAt: time.Now(),
		logger:    log,
	}
}

// Register attaches the source for a family, replacing any previous one.
func (c *Collector) Register(family Family, source Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources[family] = source
}

// Collect gathers one sample for the family and appends it to the ring,
// dropping the oldest sample when the ring is full.
func (c *Collector) Collect(ctx context.Context, family Family) (Sample, error) {
	if !family.Valid() {
		return Sample{}, fmt.Errorf("unknown metric family: %s", family)
	}

	c.mu.Lock()
	source := c.sources[family]
	c.mu.Unlock()

	values := map[string]float64{}
	if source != nil {
		collected, err := source.Collect(ctx)
		if err != nil {
			return Sample{}, fmt.Errorf("collect %s metrics: %w", family, err)
		}
		values = collected
	}

	sample := Sample{Timestamp: time.Now().UTC(), Values: values}

	c.mu.Lock()
	c.rings[family].append(sample)
	c.mu.Unlock()

	c.logger.Debug("Collected metrics",
		zap.String("family", string(family)),
		zap.Int("values", len(values)))
	return sample, nil
}

// CollectSystem gathers one system sample.
func (c *Collector) CollectSystem(ctx context.Context) (Sample, error) {
	return c.Collect(ctx, FamilySystem)
}

// CollectApplication gathers one application sample.
func (c *Collector) CollectApplication(ctx context.Context) (Sample, error) {
	return c.Collect(ctx, FamilyApplication)
}

// CollectAgent gathers one agent sample.
func (c *Collector) CollectAgent(ctx context.Context) (Sample, error) {
	return c.Collect(ctx, FamilyAgent)
}

// CollectBusiness gathers one business sample.
func (c *Collector) CollectBusiness(ctx context.Context) (Sample, error) {
	return c.Collect(ctx, FamilyBusiness)
}

// CheckAlerts evaluates the latest sample of every family against the
// threshold rules and returns the breaches. No alerts are created here;
// that is the alert manager's job.
func (c *Collector) CheckAlerts() []Candidate {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Candidate
	for _, family := range Families() {
		latest, ok := c.rings[family].latest()
		if !ok {
			continue
		}
		out = append(out, Evaluate(c.rules, family, latest)...)
	}
	c.raised += len(out)
	return out
}

// Historical returns the family's samples from the last given number of
// hours, oldest first. An empty family yields an empty slice, never an error.
func (c *Collector) Historical(family Family, hours int) ([]Sample, error) {
	if !family.Valid() {
		return nil, fmt.Errorf("unknown metric family: %s", family)
	}
	cutoff := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	c.mu.Lock()
	defer c.mu.Unlock()

	out := []Sample{}
	for _, s := range c.rings[family].all() {
		if !s.Timestamp.Before(cutoff) {
			out = append(out, s)
		}
	}
	return out, nil
}

// Summary returns the latest sample per family plus collector totals.
func (c *Collector) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	latest := make(map[Family]*Sample, len(c.rings))
	counts := make(map[Family]int, len(c.rings))
	for family, r := range c.rings {
		counts[family] = r.len()
		if s, ok := r.latest(); ok {
			sample := s
			latest[family] = &sample
		}
	}

	return Summary{
		Latest:           latest,
		SampleCounts:     counts,
		CandidatesRaised: c.raised,
		UptimeSeconds:    time.Since(c.startedAt).Seconds(),
	}
}
