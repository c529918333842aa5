package metrics

import (
	"fmt"

	"github.com/karl-ai/corehub/internal/common/config"
)

// Severity levels for threshold breaches, ordered least to most urgent.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Comparison direction for a rule.
type comparison int

const (
	above comparison = iota // breach when value > threshold
	below                   // breach when value < threshold
)

// Rule describes one threshold check over a single metric.
type Rule struct {
	Name      string
	Title     string
	Family    Family
	Metric    string
	Threshold float64
	Severity  string
	compare   comparison
}

// Candidate is a threshold breach detected during evaluation. It carries
// everything the alert manager needs to create an alert; evaluation itself
// never creates alerts.
type Candidate struct {
	Type      string  `json:"type"`
	Severity  string  `json:"severity"`
	Title     string  `json:"title"`
	Message   string  `json:"message"`
	Source    string  `json:"source"`
	Metric    string  `json:"metric"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
}

// RulesFromConfig builds the standard rule set from configured thresholds.
// This is the single source of threshold logic for both the collector's
// CheckAlerts and the monitoring service's alert loop.
func RulesFromConfig(cfg config.ThresholdsConfig) []Rule {
	return []Rule{
		{Name: "high_cpu", Title: "High CPU Usage", Family: FamilySystem, Metric: "cpu_percent", Threshold: cfg.CPUPercent, Severity: SeverityWarning, compare: above},
		{Name: "high_memory", Title: "High Memory Usage", Family: FamilySystem, Metric: "memory_percent", Threshold: cfg.MemoryPercent, Severity: SeverityWarning, compare: above},
		{Name: "high_disk", Title: "High Disk Usage", Family: FamilySystem, Metric: "disk_percent", Threshold: cfg.DiskPercent, Severity: SeverityCritical, compare: above},
		{Name: "high_error_rate", Title: "High Error Rate", Family: FamilyApplication, Metric: "error_rate", Threshold: cfg.ErrorRate, Severity: SeverityCritical, compare: above},
		{Name: "slow_response", Title: "High Response Time", Family: FamilyApplication, Metric: "avg_response_sec", Threshold: cfg.ResponseTimeSec, Severity: SeverityWarning, compare: above},
		{Name: "low_cache_hit_ratio", Title: "Low Cache Hit Ratio", Family: FamilyApplication, Metric: "cache_hit_ratio", Threshold: cfg.CacheHitRatio, Severity: SeverityWarning, compare: below},
	}
}

// Evaluate applies every rule for the sample's family and returns the
// breaches. Rules whose metric is absent from the sample are skipped.
func Evaluate(rules []Rule, family Family, sample Sample) []Candidate {
	var out []Candidate
	for _, rule := range rules {
		if rule.Family != family {
			continue
		}
		value, ok := sample.Values[rule.Metric]
		if !ok {
			continue
		}

		breached := false
		direction := "above"
		switch rule.compare {
		case above:
			breached = value > rule.Threshold
		case below:
			breached = value < rule.Threshold
			direction = "below"
		}
		if !breached {
			continue
		}

		out = append(out, Candidate{
			Type:      rule.Name,
			Severity:  rule.Severity,
			Title:     rule.Title,
			Message:   fmt.Sprintf("%s: %s is %.2f, %s threshold %.2f", rule.Name, rule.Metric, value, direction, rule.Threshold),
			Source:    string(family) + "_monitor",
			Metric:    rule.Metric,
			Value:     value,
			Threshold: rule.Threshold,
		})
	}
	return out
}
