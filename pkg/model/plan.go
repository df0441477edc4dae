package model

import "encoding/json"

// SourceType identifies where a cutting plan's material came from.
type SourceType int

const (
	SourceModule    SourceType = 0 // a fresh module steel from the catalog
	SourceRemainder SourceType = 1 // one or more pooled remainders, welded if >1
)

// String returns the string representation of SourceType.
func (s SourceType) String() string {
	switch s {
	case SourceModule:
		return "module"
	case SourceRemainder:
		return "remainder"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the source type as its string name.
func (s SourceType) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes the source type from its string name.
func (s *SourceType) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v == "remainder" {
		*s = SourceRemainder
	} else {
		*s = SourceModule
	}
	return nil
}

// CuttingPlan is one consumption event: cutting design pieces out of a single
// source (a module steel or a welded remainder combination).
type CuttingPlan struct {
	SourceType     SourceType  `json:"sourceType"`
	SourceID       string      `json:"sourceId"`
	SourceLength   float64     `json:"sourceLength"`
	GroupKey       string      `json:"groupKey"`
	Cuts           []Cut       `json:"cuts"`
	UsedRemainders []Remainder `json:"usedRemainders,omitempty"`
	NewRemainders  []Remainder `json:"newRemainders,omitempty"`
	Waste          float64     `json:"waste"`
	// WeldingCount is the number of source pieces welded end-to-end:
	// 1 for a single module, N for an N-way remainder combination.
	WeldingCount int `json:"weldingCount"`
}

// DesignLength returns the total design length produced by this plan.
func (p *CuttingPlan) DesignLength() float64 {
	var total float64
	for _, c := range p.Cuts {
		total += c.Length * float64(c.Quantity)
	}
	return total
}

// NewRemainderLength returns the total length of retained child remainders.
// Waste-typed children are excluded.
func (p *CuttingPlan) NewRemainderLength() float64 {
	var total float64
	for _, r := range p.NewRemainders {
		if r.Type != RemainderWaste {
			total += r.Length
		}
	}
	return total
}

// Solution is the ordered set of cutting plans for one group, plus group-level
// sums recomputed by the statistics reducer.
type Solution struct {
	GroupKey             string        `json:"groupKey"`
	CuttingPlans         []CuttingPlan `json:"cuttingPlans"`
	TotalModuleUsed      int           `json:"totalModuleUsed"`
	TotalMaterial        float64       `json:"totalMaterial"`
	TotalDesignLength    float64       `json:"totalDesignLength"`
	TotalWaste           float64       `json:"totalWaste"`
	TotalRealRemainder   float64       `json:"totalRealRemainder"`
	TotalPseudoRemainder float64       `json:"totalPseudoRemainder"`
	LossRate             float64       `json:"lossRate"`
	Error                string        `json:"error,omitempty"`
}

// ProcessingStatus stamps a result as safe to present: remainders have been
// finalized and plan-level statuses rewritten.
type ProcessingStatus struct {
	IsCompleted         bool `json:"isCompleted"`
	RemaindersFinalized bool `json:"remaindersFinalized"`
	ReadyForRendering   bool `json:"readyForRendering"`
}

// ModuleUsage aggregates module acquisitions of one length within a group.
type ModuleUsage struct {
	Length      float64 `json:"length"`
	Count       int     `json:"count"`
	TotalLength float64 `json:"totalLength"`
}

// ModuleUsageSummary is the procurement roll-up: per group, per length counts
// plus global totals.
type ModuleUsageSummary struct {
	ByGroup     map[string][]ModuleUsage `json:"byGroup"`
	TotalCount  int                      `json:"totalCount"`
	TotalLength float64                  `json:"totalLength"`
}

// LossRateValidation is the weighted-average cross-check of the global loss
// rate (spec: must match within 0.01 percentage points).
type LossRateValidation struct {
	GlobalLossRate   float64 `json:"globalLossRate"`
	WeightedLossRate float64 `json:"weightedLossRate"`
	Difference       float64 `json:"difference"`
	IsConsistent     bool    `json:"isConsistent"`
}

// UnmetDemand records a design steel whose demand could not be fully satisfied.
type UnmetDemand struct {
	DesignID  string  `json:"designId"`
	GroupKey  string  `json:"groupKey"`
	Length    float64 `json:"length"`
	Required  int     `json:"required"`
	Satisfied int     `json:"satisfied"`
}

// OptimizationResult is the complete output of one engine run.
type OptimizationResult struct {
	Solutions            map[string]*Solution `json:"solutions"`
	TotalLossRate        float64              `json:"totalLossRate"`
	TotalModuleUsed      int                  `json:"totalModuleUsed"`
	TotalMaterial        float64              `json:"totalMaterial"`
	TotalWaste           float64              `json:"totalWaste"`
	TotalRealRemainder   float64              `json:"totalRealRemainder"`
	TotalPseudoRemainder float64              `json:"totalPseudoRemainder"`
	UtilizationRate      float64              `json:"utilizationRate"`
	ExecutionTime        int64                `json:"executionTime"`
	ConstraintValidation *ValidationResult    `json:"constraintValidation,omitempty"`
	LossRateValidation   *LossRateValidation  `json:"lossRateValidation,omitempty"`
	ModuleSteelUsage     *ModuleUsageSummary  `json:"moduleSteelUsage,omitempty"`
	UnmetDemands         []UnmetDemand        `json:"unmetDemands,omitempty"`
	ConsistencyIssues    []string             `json:"consistencyIssues,omitempty"`
	ProcessingStatus     ProcessingStatus     `json:"processingStatus"`
}
