package metrics

import (
	"context"
	"fmt"
	"testing"

	"github.com/karl-ai/corehub/internal/common/config"
	"github.com/karl-ai/corehub/internal/common/logger"
)

func testThresholds() config.ThresholdsConfig {
	return config.ThresholdsConfig{
		CPUPercent:      80,
		MemoryPercent:   85,
		DiskPercent:     90,
		ErrorRate:       5,
		ResponseTimeSec: 2.0,
		CacheHitRatio:   70,
	}
}

func staticSource(values map[string]float64) Source {
	return SourceFunc(func(ctx context.Context) (map[string]float64, error) {
		return values, nil
	})
}

func TestCollectAppendsSample(t *testing.T) {
	c := NewCollector(10, nil, logger.Default())
	c.Register(FamilySystem, staticSource(map[string]float64{"cpu_percent": 42}))

	sample, err := c.CollectSystem(context.Background())
	if err != nil {
		t.Fatalf("CollectSystem: %v", err)
	}
	if sample.Values["cpu_percent"] != 42 {
		t.Errorf("cpu_percent = %v, want 42", sample.Values["cpu_percent"])
	}

	summary := c.Summary()
	if summary.SampleCounts[FamilySystem] != 1 {
		t.Errorf("system sample count = %d, want 1", summary.SampleCounts[FamilySystem])
	}
	if summary.Latest[FamilySystem] == nil {
		t.Fatal("latest system sample missing")
	}
}

func TestCollectWithoutSource(t *testing.T) {
	c := NewCollector(10, nil, logger.Default())

	sample, err := c.CollectAgent(context.Background())
	if err != nil {
		t.Fatalf("CollectAgent: %v", err)
	}
	if len(sample.Values) != 0 {
		t.Errorf("expected empty sample, got %v", sample.Values)
	}
}

func TestCollectSourceError(t *testing.T) {
	c := NewCollector(10, nil, logger.Default())
	c.Register(FamilyBusiness, SourceFunc(func(ctx context.Context) (map[string]float64, error) {
		return nil, fmt.Errorf("db gone")
	}))

	if _, err := c.CollectBusiness(context.Background()); err == nil {
		t.Fatal("expected error from failing source")
	}
	if c.Summary().SampleCounts[FamilyBusiness] != 0 {
		t.Error("failed collection should not append a sample")
	}
}

func TestRingDropsOldestAtCapacity(t *testing.T) {
	c := NewCollector(3, nil, logger.Default())
	seq := 0.0
	c.Register(FamilySystem, SourceFunc(func(ctx context.Context) (map[string]float64, error) {
		seq++
		return map[string]float64{"seq": seq}, nil
	}))

	for i := 0; i < 5; i++ {
		if _, err := c.CollectSystem(context.Background()); err != nil {
			t.Fatalf("collect %d: %v", i, err)
		}
	}

	samples, err := c.Historical(FamilySystem, 1)
	if err != nil {
		t.Fatalf("Historical: %v", err)
	}
	if len(samples) != 3 {
		t.Fatalf("retained %d samples, want 3", len(samples))
	}
	for i, want := range []float64{3, 4, 5} {
		if got := samples[i].Values["seq"]; got != want {
			t.Errorf("samples[%d].seq = %v, want %v", i, got, want)
		}
	}
}

func TestHistoricalChronologicalAndEmptyFamily(t *testing.T) {
	c := NewCollector(10, nil, logger.Default())

	samples, err := c.Historical(FamilyBusiness, 24)
	if err != nil {
		t.Fatalf("Historical on empty family: %v", err)
	}
	if samples == nil || len(samples) != 0 {
		t.Errorf("empty family should yield empty slice, got %v", samples)
	}

	if _, err := c.Historical(Family("bogus"), 1); err == nil {
		t.Error("expected error for unknown family")
	}
}

func TestCheckAlertsUsesLatestSamples(t *testing.T) {
	rules := RulesFromConfig(testThresholds())
	c := NewCollector(10, rules, logger.Default())

	cpu := 50.0
	c.Register(FamilySystem, SourceFunc(func(ctx context.Context) (map[string]float64, error) {
		return map[string]float64{"cpu_percent": cpu}, nil
	}))

	ctx := context.Background()
	_, _ = c.CollectSystem(ctx)
	if got := c.CheckAlerts(); len(got) != 0 {
		t.Fatalf("no breach expected, got %v", got)
	}

	cpu = 92
	_, _ = c.CollectSystem(ctx)
	got := c.CheckAlerts()
	if len(got) != 1 {
		t.Fatalf("breaches = %d, want 1", len(got))
	}
	if got[0].Type != "high_cpu" || got[0].Severity != SeverityWarning {
		t.Errorf("candidate = %+v", got[0])
	}

	if c.Summary().CandidatesRaised != 1 {
		t.Errorf("candidates raised = %d, want 1", c.Summary().CandidatesRaised)
	}
}

func TestEvaluateDirections(t *testing.T) {
	rules := RulesFromConfig(testThresholds())

	sample := Sample{Values: map[string]float64{
		"error_rate":       7,
		"avg_response_sec": 1.0,
		"cache_hit_ratio":  50,
	}}
	got := Evaluate(rules, FamilyApplication, sample)
	if len(got) != 2 {
		t.Fatalf("breaches = %d, want 2 (error rate above, hit ratio below): %v", len(got), got)
	}

	types := map[string]string{}
	for _, cand := range got {
		types[cand.Type] = cand.Severity
	}
	if types["high_error_rate"] != SeverityCritical {
		t.Errorf("high_error_rate severity = %q", types["high_error_rate"])
	}
	if types["low_cache_hit_ratio"] != SeverityWarning {
		t.Errorf("low_cache_hit_ratio severity = %q", types["low_cache_hit_ratio"])
	}

	// Values exactly at the threshold do not breach
	atLimit := Sample{Values: map[string]float64{"error_rate": 5, "cache_hit_ratio": 70}}
	if got := Evaluate(rules, FamilyApplication, atLimit); len(got) != 0 {
		t.Errorf("threshold-equal values should not breach: %v", got)
	}
}
