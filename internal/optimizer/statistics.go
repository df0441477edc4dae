package optimizer

import (
	"fmt"
	"math"
	"sort"

	"github.com/steelcut-optimizer/pkg/model"
)

// conservationToleranceMM absorbs floating-point noise in the material
// conservation check.
const conservationToleranceMM = 1.0

// lossRateTolerancePP is the allowed divergence, in percentage points,
// between the global loss rate and its weighted-average cross-check.
const lossRateTolerancePP = 0.01

// round4 rounds to 4 decimal places, the reporting precision for rates.
func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// CorrectExclusivity repairs plans that carry both waste and retained
// children, which must never coexist. The larger term wins: the smaller is
// folded into it. Conflicts that cannot be repaired are reported.
func CorrectExclusivity(plans []model.CuttingPlan, m *RemainderManager) []string {
	var issues []string
	for i := range plans {
		plan := &plans[i]
		retained := plan.NewRemainderLength()
		if plan.Waste <= 0 || retained <= 0 {
			continue
		}

		if plan.Waste >= retained {
			// Fold retained children into waste.
			for j := range plan.NewRemainders {
				ch := &plan.NewRemainders[j]
				if ch.Type != model.RemainderWaste {
					m.MarkWaste(plan.GroupKey, ch.ID)
					ch.Type = model.RemainderWaste
				}
			}
			plan.Waste += retained
			continue
		}

		// Fold waste back into retained children where the pieces clear the
		// threshold; anything shorter cannot be retained and stays a conflict.
		repaired := true
		for j := range plan.NewRemainders {
			ch := &plan.NewRemainders[j]
			if ch.Type != model.RemainderWaste {
				continue
			}
			if ch.Length >= m.WasteThreshold() {
				m.ReclaimWaste(plan.GroupKey, *ch)
				ch.Type = model.RemainderPending
			} else {
				repaired = false
			}
		}
		plan.Waste = 0
		for _, ch := range plan.NewRemainders {
			if ch.Type == model.RemainderWaste {
				plan.Waste += ch.Length
			}
		}
		if !repaired && plan.Waste > 0 {
			issues = append(issues, fmt.Sprintf(
				"plan %s in group %s carries %.0f mm waste alongside %.0f mm retained remainders and could not be repaired",
				plan.SourceID, plan.GroupKey, plan.Waste, retained))
		}
	}
	return issues
}

// RewritePlanStatuses stamps every plan-carried remainder with its finalized
// type from the manager, so the plan record and the manager cannot disagree.
func RewritePlanStatuses(plans []model.CuttingPlan, m *RemainderManager) {
	for i := range plans {
		for j := range plans[i].NewRemainders {
			r := &plans[i].NewRemainders[j]
			if typ, ok := m.LookupType(r.ID); ok {
				r.Type = typ
			}
		}
		for j := range plans[i].UsedRemainders {
			r := &plans[i].UsedRemainders[j]
			if typ, ok := m.LookupType(r.ID); ok {
				r.Type = typ
			}
		}
	}
}

// ReduceSolution computes one group's totals from its plans and the
// finalized real-remainder figure for the group. Any material conservation
// divergence beyond tolerance is reported as a consistency issue.
func ReduceSolution(groupKey string, plans []model.CuttingPlan, realRemainder float64) (*model.Solution, []string) {
	sol := &model.Solution{
		GroupKey:           groupKey,
		CuttingPlans:       plans,
		TotalRealRemainder: realRemainder,
	}

	moduleSeen := make(map[string]struct{})
	for _, p := range plans {
		sol.TotalDesignLength += p.DesignLength()
		sol.TotalWaste += p.Waste

		switch p.SourceType {
		case model.SourceModule:
			if _, ok := moduleSeen[p.SourceID]; !ok {
				moduleSeen[p.SourceID] = struct{}{}
				sol.TotalMaterial += p.SourceLength
			}
		case model.SourceRemainder:
			sol.TotalPseudoRemainder += p.SourceLength
		}
	}
	sol.TotalModuleUsed = len(moduleSeen)

	var issues []string
	derived := sol.TotalMaterial - sol.TotalDesignLength - sol.TotalWaste
	diff := derived - realRemainder
	if math.Abs(diff) > conservationToleranceMM {
		issues = append(issues, fmt.Sprintf(
			"group %s: material conservation off by %.2f mm (material %.0f, design %.0f, waste %.0f, pool remainder %.0f)",
			groupKey, diff, sol.TotalMaterial, sol.TotalDesignLength, sol.TotalWaste, realRemainder))
	}
	if derived < -conservationToleranceMM {
		issues = append(issues, fmt.Sprintf(
			"group %s: derived remainder is negative (%.2f mm), plans account for more material than was acquired",
			groupKey, derived))
	}

	if sol.TotalMaterial > 0 {
		sol.LossRate = round4((sol.TotalWaste + sol.TotalRealRemainder) / sol.TotalMaterial * 100)
	}
	return sol, issues
}

// ReduceResult aggregates group solutions into the global figures. The
// global loss rate is computed on summed numerator and denominator, then
// cross-checked against the material-weighted average of per-group rates.
func ReduceResult(result *model.OptimizationResult) {
	keys := make([]string, 0, len(result.Solutions))
	for k := range result.Solutions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var numerator, denominator, designSum, weightedSum float64
	for _, k := range keys {
		sol := result.Solutions[k]
		result.TotalModuleUsed += sol.TotalModuleUsed
		result.TotalMaterial += sol.TotalMaterial
		result.TotalWaste += sol.TotalWaste
		result.TotalRealRemainder += sol.TotalRealRemainder
		result.TotalPseudoRemainder += sol.TotalPseudoRemainder

		numerator += sol.TotalWaste + sol.TotalRealRemainder
		denominator += sol.TotalMaterial
		designSum += sol.TotalDesignLength
		weightedSum += sol.LossRate * sol.TotalMaterial
	}

	if denominator > 0 {
		result.TotalLossRate = round4(numerator / denominator * 100)
		result.UtilizationRate = round4(designSum / denominator * 100)

		weighted := round4(weightedSum / denominator)
		diff := math.Abs(result.TotalLossRate - weighted)
		result.LossRateValidation = &model.LossRateValidation{
			GlobalLossRate:   result.TotalLossRate,
			WeightedLossRate: weighted,
			Difference:       round4(diff),
			IsConsistent:     diff <= lossRateTolerancePP,
		}
		if !result.LossRateValidation.IsConsistent {
			result.ConsistencyIssues = append(result.ConsistencyIssues, fmt.Sprintf(
				"global loss rate %.4f%% diverges from weighted average %.4f%% by more than %.2f percentage points",
				result.TotalLossRate, weighted, lossRateTolerancePP))
		}
	}
}
