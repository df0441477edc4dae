package optimizer

import (
	"context"
	"sort"
	"time"

	apperrors "github.com/steelcut-optimizer/pkg/errors"
	"github.com/steelcut-optimizer/pkg/model"
	"github.com/steelcut-optimizer/pkg/parallel"
	"github.com/steelcut-optimizer/pkg/utils"
)

// progressInterval is the cadence of intermediate progress reports while
// groups are planning.
const progressInterval = 200 * time.Millisecond

// EngineOptions are the tunables of one engine instance. Zero values fall
// back to the documented defaults.
type EngineOptions struct {
	// WeldCostMM is the material surrogate charged per weld eliminated by
	// the post-pass.
	WeldCostMM float64
	// WeldBenefitFloorMM is the minimum net benefit a post-pass swap must
	// clear to execute.
	WeldBenefitFloorMM float64
	// PostPassIterations bounds the improvement iterations per group.
	PostPassIterations int
	// MaxParallelGroups bounds concurrent group workers.
	MaxParallelGroups int
	// Progress, when set, is invoked after each group finishes planning.
	Progress func(completed, total int)
}

// Engine runs complete optimization jobs: validation, parallel per-group
// planning, the improvement post-pass, remainder finalization and the
// statistics reduction.
type Engine struct {
	opts   EngineOptions
	logger utils.Logger
}

// NewEngine creates an engine.
func NewEngine(opts EngineOptions, logger utils.Logger) *Engine {
	if opts.WeldCostMM <= 0 {
		opts.WeldCostMM = 50
	}
	if opts.WeldBenefitFloorMM <= 0 {
		opts.WeldBenefitFloorMM = 50
	}
	if opts.PostPassIterations <= 0 {
		opts.PostPassIterations = 10
	}
	if logger == nil {
		logger = utils.NewNullLogger()
	}
	return &Engine{opts: opts, logger: logger}
}

// groupJob is one group's slice of the demand.
type groupJob struct {
	key           string
	specification string
	crossSection  float64
	designs       []model.DesignSteel
}

// groupOutcome is what a group worker hands back for the merge.
type groupOutcome struct {
	plans    []model.CuttingPlan
	unmet    []model.UnmetDemand
	weldOps  int
	usage    []model.ModuleUsage
	manager  *RemainderManager
	timedOut bool
}

// Optimize runs one job end to end. Constraint violations abort before any
// planning; a cancelled context aborts without a result; an expired time
// budget yields a partial result that still passes finalization and
// statistics.
func (e *Engine) Optimize(ctx context.Context, req *model.OptimizeRequest) (*model.OptimizationResult, error) {
	start := time.Now()
	c := req.Constraints

	validation := ValidateConstraints(req.DesignSteels, req.ModuleSteels, c)
	if !validation.IsValid {
		return &model.OptimizationResult{
			Solutions:            map[string]*model.Solution{},
			ConstraintValidation: validation,
			ExecutionTime:        time.Since(start).Milliseconds(),
		}, apperrors.ErrInvalidConstraints
	}

	designs := AssignDisplayIDs(req.DesignSteels)
	jobs := groupDesigns(designs)

	moduleLengths := make([]float64, 0, len(req.ModuleSteels))
	for _, m := range req.ModuleSteels {
		moduleLengths = append(moduleLengths, m.Length)
	}

	var deadline time.Time
	if c.TimeLimit > 0 {
		deadline = start.Add(time.Duration(c.TimeLimit) * time.Millisecond)
	}

	// First progress report marks validation as passed. While the groups are
	// planning, a tracker relays the completed count to the callback on a
	// fixed cadence; workers only increment.
	var tracker *parallel.ProgressTracker
	if e.opts.Progress != nil {
		e.opts.Progress(0, len(jobs))
		tracker = parallel.NewProgressTracker(int64(len(jobs)), func(completed, total int64) {
			e.opts.Progress(int(completed), int(total))
		}, progressInterval)
		tracker.Start(ctx)
		defer tracker.Stop()
	}

	pool := parallel.NewWorkerPool[groupJob, *groupOutcome](
		parallel.DefaultPoolConfig().WithWorkers(e.opts.MaxParallelGroups))
	outcomes := pool.ExecuteFunc(ctx, jobs, func(ctx context.Context, job groupJob) (*groupOutcome, error) {
		out := e.runGroup(ctx, job, moduleLengths, c, deadline)
		if tracker != nil {
			tracker.Increment()
		}
		return out, nil
	})

	if ctx.Err() != nil {
		return nil, apperrors.Wrap(apperrors.CodeCancelled, "optimization aborted", ctx.Err())
	}

	if tracker != nil {
		// Stop the ticker before the final synchronous report so no stale
		// tick lands after it.
		tracker.Stop()
		e.opts.Progress(len(jobs), len(jobs))
	}

	// Single-threaded merge and finalization over the union of group pools.
	shared := NewRemainderManager(c.WasteThreshold)
	result := &model.OptimizationResult{
		Solutions:            make(map[string]*model.Solution, len(jobs)),
		ConstraintValidation: validation,
	}
	usage := &model.ModuleUsageSummary{ByGroup: make(map[string][]model.ModuleUsage, len(jobs))}

	plansByGroup := make(map[string][]model.CuttingPlan, len(jobs))
	timedOut := false
	for _, o := range outcomes {
		job := o.Input
		if o.Error != nil {
			e.logger.Error("group %s failed: %v", job.key, o.Error)
			result.Solutions[job.key] = &model.Solution{GroupKey: job.key, Error: o.Error.Error()}
			continue
		}
		out := o.Result
		if out == nil {
			continue
		}
		shared.MergeFrom(out.manager)
		plansByGroup[job.key] = out.plans
		result.UnmetDemands = append(result.UnmetDemands, out.unmet...)
		timedOut = timedOut || out.timedOut

		usage.ByGroup[job.key] = out.usage
		for _, u := range out.usage {
			usage.TotalCount += u.Count
			usage.TotalLength += u.TotalLength
		}
	}

	for key, plans := range plansByGroup {
		result.ConsistencyIssues = append(result.ConsistencyIssues, CorrectExclusivity(plans, shared)...)
		plansByGroup[key] = plans
	}

	sweep := shared.FinalizeRemainders()

	for key, plans := range plansByGroup {
		RewritePlanStatuses(plans, shared)
		sol, issues := ReduceSolution(key, plans, sweep.RealByGroup[key])
		result.Solutions[key] = sol
		result.ConsistencyIssues = append(result.ConsistencyIssues, issues...)
	}

	ReduceResult(result)
	result.ModuleSteelUsage = usage
	result.ExecutionTime = time.Since(start).Milliseconds()
	result.ProcessingStatus = model.ProcessingStatus{
		IsCompleted:         true,
		RemaindersFinalized: shared.Finalized(),
		ReadyForRendering:   true,
	}

	if timedOut {
		e.logger.Warn("time budget of %d ms exhausted, returning partial solution with %d unmet demand(s)",
			c.TimeLimit, len(result.UnmetDemands))
	}
	if len(result.ConsistencyIssues) > 0 {
		e.logger.Error("optimization completed with %d consistency issue(s)", len(result.ConsistencyIssues))
	}
	return result, nil
}

// runGroup plans one group with a private manager and module pool, then runs
// the weld-saving post-pass.
func (e *Engine) runGroup(ctx context.Context, job groupJob, moduleLengths []float64, c model.Constraints, deadline time.Time) *groupOutcome {
	manager := NewRemainderManager(c.WasteThreshold)
	modules := NewModulePool(job.key, job.specification, job.crossSection, moduleLengths)
	logger := e.logger.WithField("group", job.key)

	planner := NewPlanner(job.key, manager, modules, c, logger)
	planned := planner.Plan(ctx, job.designs, deadline)

	pp := NewPostPass(job.key, manager, e.opts.WeldCostMM, e.opts.WeldBenefitFloorMM, e.opts.PostPassIterations, logger)
	plans, swaps := pp.Run(planned.Plans)
	if swaps > 0 {
		logger.Info("post-pass removed %d weld(s)", swaps)
	}

	return &groupOutcome{
		plans:    plans,
		unmet:    planned.Unmet,
		weldOps:  planned.WeldOperations - swaps,
		usage:    modules.Usage(),
		manager:  manager,
		timedOut: planned.TimedOut,
	}
}

// groupDesigns splits the demand into per-group jobs, keyed by specification
// and rounded cross-section. Job order is deterministic.
func groupDesigns(designs []model.DesignSteel) []groupJob {
	byKey := make(map[string]*groupJob)
	for _, d := range designs {
		key := model.GroupKey(d.Specification, d.CrossSection)
		job, ok := byKey[key]
		if !ok {
			job = &groupJob{key: key, specification: d.Specification, crossSection: d.CrossSection}
			byKey[key] = job
		}
		job.designs = append(job.designs, d)
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	jobs := make([]groupJob, 0, len(keys))
	for _, k := range keys {
		jobs = append(jobs, *byKey[k])
	}
	return jobs
}
