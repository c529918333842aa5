// Package alerts manages alert lifecycle and notification dispatch.
package alerts

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of an alert. Transitions only move forward:
// active -> acknowledged -> resolved, with acknowledgement optional.
type Status string

const (
	StatusActive       Status = "active"
	StatusAcknowledged Status = "acknowledged"
	StatusResolved     Status = "resolved"
)

// Alert is a recorded threshold breach or operational incident.
type Alert struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Severity  string                 `json:"severity"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Source    string                 `json:"source"`
	Metadata  map[string]interface{} `json:"metadata"`
	Metric    string                 `json:"metric,omitempty"`
	Value     float64                `json:"value,omitempty"`
	Threshold float64                `json:"threshold,omitempty"`
	Status    Status                 `json:"status"`

	// Cooldown is fixed when the alert is created; later configuration
	// changes never affect existing alerts.
	Cooldown time.Duration `json:"cooldown"`

	// Notified records whether notification channels were actually invoked
	// for this alert, or suppressed by the cooldown.
	Notified bool `json:"notified"`

	CreatedAt      time.Time  `json:"created_at"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

// alertID builds the deterministic alert identifier: type plus creation
// timestamp in unix seconds.
func alertID(alertType string, createdAt time.Time) string {
	return fmt.Sprintf("%s_%d", alertType, createdAt.Unix())
}

// Summary counts alerts by status and severity.
type Summary struct {
	Total      int            `json:"total"`
	ByStatus   map[Status]int `json:"by_status"`
	BySeverity map[string]int `json:"by_severity"`
}
