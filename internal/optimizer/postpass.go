package optimizer

import (
	"math"
	"sort"

	"github.com/steelcut-optimizer/pkg/model"
	"github.com/steelcut-optimizer/pkg/utils"
)

// PostPass trades welded multi-segment plans for single large retained
// remainders after a group's demand is satisfied. Each executed swap removes
// at least one weld operation at a bounded material cost.
type PostPass struct {
	groupKey       string
	manager        *RemainderManager
	weldCostMM     float64
	benefitFloorMM float64
	maxIterations  int
	logger         utils.Logger
}

// NewPostPass creates a post-pass for one group. weldCostMM is the material
// surrogate charged per weld eliminated; benefitFloorMM is the minimum net
// benefit a swap must clear to run.
func NewPostPass(groupKey string, manager *RemainderManager, weldCostMM, benefitFloorMM float64, maxIterations int, logger utils.Logger) *PostPass {
	if logger == nil {
		logger = utils.NewNullLogger()
	}
	if maxIterations <= 0 {
		maxIterations = 10
	}
	return &PostPass{
		groupKey:       groupKey,
		manager:        manager,
		weldCostMM:     weldCostMM,
		benefitFloorMM: benefitFloorMM,
		maxIterations:  maxIterations,
		logger:         logger,
	}
}

// swapCandidate pairs a retained remainder (the replacement source) with a
// welded plan it could replace.
type swapCandidate struct {
	remainderID  string
	remainderLen float64
	planIdx      int
	benefit      float64
}

// Run scans for profitable swaps and executes the best one per iteration,
// re-scanning after each because both the pool and the plan list changed.
// Returns the updated plan list and the number of swaps executed.
func (pp *PostPass) Run(plans []model.CuttingPlan) ([]model.CuttingPlan, int) {
	swaps := 0
	for iter := 0; iter < pp.maxIterations; iter++ {
		candidates := pp.scan(plans)
		if len(candidates) == 0 {
			break
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].benefit > candidates[j].benefit })

		best := candidates[0]
		if best.benefit <= pp.benefitFloorMM {
			break
		}

		updated, err := pp.execute(plans, best)
		if err != nil {
			pp.logger.Warn("group %s: swap of plan %d for remainder %s failed: %v",
				pp.groupKey, best.planIdx, best.remainderID, err)
			break
		}
		plans = updated
		swaps++
	}
	return plans, swaps
}

// scan builds the feasible (remainder, welded plan) pairs.
func (pp *PostPass) scan(plans []model.CuttingPlan) []swapCandidate {
	pool := pp.manager.RetainedPool(pp.groupKey)
	if len(pool) == 0 {
		return nil
	}

	var candidates []swapCandidate
	for idx, plan := range plans {
		if plan.SourceType != model.SourceRemainder || plan.WeldingCount <= 1 {
			continue
		}
		if len(plan.Cuts) == 0 || !pp.dissolvable(plan) {
			continue
		}
		target := plan.Cuts[0].Length

		var usedSum float64
		for _, u := range plan.UsedRemainders {
			usedSum += u.Length
		}

		for _, r := range pool {
			if r.Length < target {
				continue
			}
			if isChildOf(plan, r.ID) {
				continue
			}
			if r.Length-target >= pp.manager.WasteThreshold() {
				continue
			}
			benefit := float64(plan.WeldingCount-1)*pp.weldCostMM - math.Abs(r.Length-usedSum)
			if benefit <= 0 {
				continue
			}
			candidates = append(candidates, swapCandidate{
				remainderID:  r.ID,
				remainderLen: r.Length,
				planIdx:      idx,
				benefit:      benefit,
			})
		}
	}
	return candidates
}

// dissolvable reports whether the welded plan can still be undone: its
// retained offcut children must not have been consumed since.
func (pp *PostPass) dissolvable(plan model.CuttingPlan) bool {
	for _, ch := range plan.NewRemainders {
		if ch.Type == model.RemainderWaste {
			continue
		}
		typ, ok := pp.manager.LookupType(ch.ID)
		if !ok || typ == model.RemainderPseudo {
			return false
		}
	}
	return true
}

func isChildOf(plan model.CuttingPlan, id string) bool {
	for _, ch := range plan.NewRemainders {
		if ch.ID == id {
			return true
		}
	}
	return false
}

// execute replaces the welded plan with a single-source plan cut from the
// remainder. The welded plan's segments return to the pool and its offcut
// children are retracted, restoring the pre-weld pool state.
func (pp *PostPass) execute(plans []model.CuttingPlan, c swapCandidate) ([]model.CuttingPlan, error) {
	old := plans[c.planIdx]
	target := old.Cuts[0].Length

	if err := pp.manager.Dissolve(pp.groupKey, old.UsedRemainders, old.NewRemainders); err != nil {
		return plans, err
	}
	mw, err := pp.manager.ConsumeByID(pp.groupKey, c.remainderID)
	if err != nil {
		return plans, err
	}

	replacement := model.CuttingPlan{
		SourceType:     model.SourceRemainder,
		SourceID:       mw.ID,
		SourceLength:   mw.Length,
		GroupKey:       pp.groupKey,
		Cuts:           append([]model.Cut(nil), old.Cuts...),
		UsedRemainders: []model.Remainder{mw.Clone()},
		WeldingCount:   1,
	}

	if offcut := mw.Length - target; offcut > 0 {
		child := pp.manager.NewRemainder(offcut, pp.groupKey, mw.ID, nil)
		pp.manager.EvaluateAndProcess(child, pp.groupKey)
		replacement.NewRemainders = append(replacement.NewRemainders, child.Clone())
		if child.Type == model.RemainderWaste {
			replacement.Waste = offcut
		}
	}

	pp.logger.Debug("group %s: replaced %d-segment weld with remainder %s (benefit %.0f mm)",
		pp.groupKey, old.WeldingCount, mw.ID, c.benefit)

	out := make([]model.CuttingPlan, 0, len(plans))
	out = append(out, plans[:c.planIdx]...)
	out = append(out, plans[c.planIdx+1:]...)
	out = append(out, replacement)
	return out, nil
}
