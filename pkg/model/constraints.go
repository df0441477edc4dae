package model

import "fmt"

// Default constraint values used when a field is left unset.
const (
	DefaultWasteThreshold     = 200.0  // mm
	DefaultTargetLossRate     = 5.0    // percent, advisory
	DefaultTimeLimit          = 300000 // ms
	DefaultMaxWeldingSegments = 3
)

// Constraints holds the per-job tunables for the optimization engine.
type Constraints struct {
	// WasteThreshold is the minimum offcut length (mm) worth keeping as a
	// remainder. Anything shorter is charged as waste.
	WasteThreshold float64 `json:"wasteThreshold"`

	// TargetLossRate is advisory only and never terminates the search.
	TargetLossRate float64 `json:"targetLossRate"`

	// TimeLimit is the wall-clock budget for the engine in milliseconds.
	TimeLimit int64 `json:"timeLimit"`

	// MaxWeldingSegments is the maximum number of pieces that may be welded
	// end-to-end to produce one design piece. 1 forbids welding.
	MaxWeldingSegments int `json:"maxWeldingSegments"`
}

// DefaultConstraints returns constraints populated with the built-in defaults.
func DefaultConstraints() Constraints {
	return Constraints{
		WasteThreshold:     DefaultWasteThreshold,
		TargetLossRate:     DefaultTargetLossRate,
		TimeLimit:          DefaultTimeLimit,
		MaxWeldingSegments: DefaultMaxWeldingSegments,
	}
}

// Validate checks the constraints and fails closed on any non-positive value.
func (c *Constraints) Validate() error {
	if c.WasteThreshold <= 0 {
		return fmt.Errorf("wasteThreshold must be positive, got %v", c.WasteThreshold)
	}
	if c.MaxWeldingSegments < 1 {
		return fmt.Errorf("maxWeldingSegments must be at least 1, got %d", c.MaxWeldingSegments)
	}
	if c.TimeLimit <= 0 {
		return fmt.Errorf("timeLimit must be positive, got %d", c.TimeLimit)
	}
	return nil
}
