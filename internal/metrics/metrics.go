// Package metrics collects time-series samples for the monitoring service.
// Samples are grouped into families, each retained in a fixed-size ring buffer.
package metrics

import (
	"context"
	"time"
)

// Family identifies a metric family.
type Family string

const (
	FamilySystem      Family = "system"
	FamilyApplication Family = "application"
	FamilyAgent       Family = "agent"
	FamilyBusiness    Family = "business"
)

// Families lists all metric families in collection order.
func Families() []Family {
	return []Family{FamilySystem, FamilyApplication, FamilyAgent, FamilyBusiness}
}

// Valid reports whether f is a known family.
func (f Family) Valid() bool {
	switch f {
	case FamilySystem, FamilyApplication, FamilyAgent, FamilyBusiness:
		return true
	}
	return false
}

// Sample is one collected data point.
type Sample struct {
	Timestamp time.Time          `json:"timestamp"`
	Values    map[string]float64 `json:"values"`
}

// Source produces the values for one metric family.
type Source interface {
	Collect(ctx context.Context) (map[string]float64, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) (map[string]float64, error)

// Collect implements Source.
func (f SourceFunc) Collect(ctx context.Context) (map[string]float64, error) {
	return f(ctx)
}
