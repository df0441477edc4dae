package optimizer

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/steelcut-optimizer/pkg/model"
	"github.com/steelcut-optimizer/pkg/utils"
)

// iterationCapFactor bounds the planning loop per demand entry. A demand that
// cannot make progress within 100 iterations per required piece is reported
// as unmet instead of spinning.
const iterationCapFactor = 100

// demandState tracks one design bar through the planning loop.
type demandState struct {
	id        string
	length    float64
	required  int
	remaining int
	// stagedLen is module material staged into the pool for this demand but
	// not yet welded into a piece. It steers the next module acquisition.
	stagedLen float64
}

// PlanResult is the output of one group's planning run.
type PlanResult struct {
	Plans          []model.CuttingPlan
	Unmet          []model.UnmetDemand
	WeldOperations int
	TimedOut       bool
}

// Planner satisfies one group's demand from its private module pool and
// remainder pool. A planner never touches another group's state.
type Planner struct {
	groupKey    string
	manager     *RemainderManager
	modules     *ModulePool
	constraints model.Constraints
	logger      utils.Logger
}

// NewPlanner creates a planner for one group.
func NewPlanner(groupKey string, manager *RemainderManager, modules *ModulePool, constraints model.Constraints, logger utils.Logger) *Planner {
	if logger == nil {
		logger = utils.NewNullLogger()
	}
	return &Planner{
		groupKey:    groupKey,
		manager:     manager,
		modules:     modules,
		constraints: constraints,
		logger:      logger,
	}
}

// Plan runs the demand loop. Long pieces are planned first. The deadline is
// a soft budget: on expiry the loop exits with whatever was planned so far
// and the remaining demand reported as unmet.
func (p *Planner) Plan(ctx context.Context, designs []model.DesignSteel, deadline time.Time) *PlanResult {
	demands := make([]*demandState, 0, len(designs))
	for _, d := range designs {
		demands = append(demands, &demandState{
			id:        d.ID,
			length:    d.Length,
			required:  d.Quantity,
			remaining: d.Quantity,
		})
	}
	sort.Slice(demands, func(i, j int) bool {
		if demands[i].length != demands[j].length {
			return demands[i].length > demands[j].length
		}
		return demands[i].id < demands[j].id
	})

	result := &PlanResult{}
	expired := func() bool {
		if ctx.Err() != nil {
			return true
		}
		return !deadline.IsZero() && time.Now().After(deadline)
	}

	for _, d := range demands {
		if expired() {
			result.TimedOut = true
			p.recordUnmet(result, d)
			continue
		}
		p.planDemand(d, expired, result)
		if d.remaining > 0 {
			p.recordUnmet(result, d)
		}
	}
	return result
}

func (p *Planner) planDemand(d *demandState, expired func() bool, result *PlanResult) {
	if p.infeasible(d) {
		p.logger.Warn("group %s: demand %s (%.0f mm x %d) cannot be covered even with welding",
			p.groupKey, d.id, d.length, d.remaining)
		return
	}

	iterCap := iterationCapFactor * d.required
	for iter := 0; d.remaining > 0 && iter < iterCap; iter++ {
		if expired() {
			result.TimedOut = true
			return
		}

		if p.tryRemainder(d, result) {
			continue
		}
		if !p.tryModule(d, result) {
			p.logger.Error("group %s: no forward progress for demand %s, giving up", p.groupKey, d.id)
			return
		}
	}
}

// infeasible reports demands that welding can never cover: even maxSegments
// of the longest module fall short.
func (p *Planner) infeasible(d *demandState) bool {
	longest := p.modules.LongestLength()
	return float64(p.constraints.MaxWeldingSegments)*longest < d.length
}

// tryRemainder satisfies one piece from the pool, welded if needed.
func (p *Planner) tryRemainder(d *demandState, result *PlanResult) bool {
	comb := p.manager.FindBestCombination(d.length, p.groupKey, p.constraints.MaxWeldingSegments)
	if comb == nil {
		return false
	}

	use, err := p.manager.UseRemainder(comb, d.length, d.id, p.groupKey)
	if err != nil {
		p.logger.Error("group %s: consuming combination for %s failed: %v", p.groupKey, d.id, err)
		return false
	}

	ids := make([]string, 0, len(comb.Remainders))
	for _, r := range comb.Remainders {
		ids = append(ids, r.ID)
	}

	plan := model.CuttingPlan{
		SourceType:     model.SourceRemainder,
		SourceID:       strings.Join(ids, "+"),
		SourceLength:   comb.TotalLength,
		GroupKey:       p.groupKey,
		Cuts:           []model.Cut{{DesignID: d.id, Length: d.length, Quantity: 1}},
		UsedRemainders: use.UsedRemainders,
		NewRemainders:  use.NewRemainders,
		Waste:          use.Waste,
		WeldingCount:   len(comb.Remainders),
	}
	result.Plans = append(result.Plans, plan)
	if plan.WeldingCount >= 2 {
		result.WeldOperations++
	}

	d.remaining--
	d.stagedLen = 0
	return true
}

// tryModule acquires a fresh module. A module long enough for the demand is
// cut directly; a shorter one (nothing longer in the catalog) is staged into
// the remainder pool in full so the combination search can weld it later.
func (p *Planner) tryModule(d *demandState, result *PlanResult) bool {
	required := d.length - d.stagedLen
	if required <= 0 {
		required = d.length
	}

	rec, err := p.modules.Acquire(required)
	if err != nil {
		p.logger.Error("group %s: module acquisition failed: %v", p.groupKey, err)
		return false
	}

	copies := int(rec.Length / d.length)
	if copies > d.remaining {
		copies = d.remaining
	}

	plan := model.CuttingPlan{
		SourceType:   model.SourceModule,
		SourceID:     rec.ID,
		SourceLength: rec.Length,
		GroupKey:     p.groupKey,
		WeldingCount: 1,
	}

	if copies > 0 {
		plan.Cuts = []model.Cut{{DesignID: d.id, Length: d.length, Quantity: copies}}
		d.remaining -= copies
		d.stagedLen = 0
	} else {
		// Staging: welding is required and the whole module enters the pool.
		if p.constraints.MaxWeldingSegments <= 1 {
			return false
		}
		d.stagedLen += rec.Length
	}

	offcut := rec.Length - float64(copies)*d.length
	if offcut > 0 {
		child := p.manager.NewRemainder(offcut, p.groupKey, rec.ID, nil)
		p.manager.EvaluateAndProcess(child, p.groupKey)
		plan.NewRemainders = append(plan.NewRemainders, child.Clone())
		if child.Type == model.RemainderWaste {
			plan.Waste = offcut
		}
	}

	result.Plans = append(result.Plans, plan)
	return true
}

func (p *Planner) recordUnmet(result *PlanResult, d *demandState) {
	if d.remaining <= 0 {
		return
	}
	result.Unmet = append(result.Unmet, model.UnmetDemand{
		DesignID:  d.id,
		GroupKey:  p.groupKey,
		Length:    d.length,
		Required:  d.required,
		Satisfied: d.required - d.remaining,
	})
}
