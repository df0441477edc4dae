package optimizer

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/steelcut-optimizer/pkg/model"
)

const (
	// idsPerLetter is how many ids a letter serves before advancing.
	idsPerLetter = 50
	// nearPerfectEfficiency short-circuits the combination search.
	nearPerfectEfficiency = 1.01
	// maxCombinationEfficiency prunes combinations that overshoot badly.
	maxCombinationEfficiency = 2.0
	// dpPoolLimit selects the exact search for small pools.
	dpPoolLimit = 20
	// dpFrontierLimit caps the DP state frontier before pruning.
	dpFrontierLimit = 1000
	// dpFrontierKeep is how many best states survive a pruning pass.
	dpFrontierKeep = 100
)

// Combination is a set of pooled remainders whose lengths jointly cover a
// target length.
type Combination struct {
	Single      bool
	Remainders  []*model.Remainder
	TotalLength float64
	Efficiency  float64
}

// UseResult reports one atomic remainder consumption.
type UseResult struct {
	UsedRemainders []model.Remainder // pseudo-typed audit copies of the consumed remainders
	NewRemainders  []model.Remainder // the child offcut, retained or waste-typed
	Waste          float64
}

// FinalizeSummary is the sweep returned by FinalizeRemainders.
type FinalizeSummary struct {
	RealByGroup  map[string]float64
	WasteByGroup map[string]float64
}

// RemainderManager owns the per-group remainder pools: id allocation, the
// waste-threshold sink, the combination search and the pending→real
// finalization. One manager serves one group during planning; group pools are
// merged into a shared manager before finalization.
type RemainderManager struct {
	wasteThreshold float64
	pools          map[string][]*model.Remainder // ascending by length
	letterIdx      map[string]int
	numberIdx      map[string]int
	wasteTotal     map[string]float64
	index          map[string]*model.Remainder // every remainder ever created, by id
	finalized      bool
}

// NewRemainderManager creates a manager with the given waste threshold.
func NewRemainderManager(wasteThreshold float64) *RemainderManager {
	return &RemainderManager{
		wasteThreshold: wasteThreshold,
		pools:          make(map[string][]*model.Remainder),
		letterIdx:      make(map[string]int),
		numberIdx:      make(map[string]int),
		wasteTotal:     make(map[string]float64),
		index:          make(map[string]*model.Remainder),
	}
}

// NextID allocates the next remainder id for a group. Ids follow the letter
// scheme a1..a50, b1..b50, ... and embed the group key as prefix so they stay
// unique across groups.
func (m *RemainderManager) NextID(groupKey string) string {
	m.numberIdx[groupKey]++
	if m.numberIdx[groupKey] > idsPerLetter {
		m.letterIdx[groupKey]++
		m.numberIdx[groupKey] = 1
	}
	return fmt.Sprintf("%s_%s%d", groupKey, letterName(m.letterIdx[groupKey]), m.numberIdx[groupKey])
}

// letterName maps 0 → "a", 25 → "z", 26 → "aa" and so on.
func letterName(idx int) string {
	name := ""
	idx++
	for idx > 0 {
		idx--
		name = string(rune('a'+idx%26)) + name
		idx /= 26
	}
	return name
}

// NewRemainder creates a remainder owned by this manager and registers it in
// the id index. The caller routes it through EvaluateAndProcess.
func (m *RemainderManager) NewRemainder(length float64, groupKey, parentID string, sourceChain []string) *model.Remainder {
	r := &model.Remainder{
		ID:          m.NextID(groupKey),
		Length:      length,
		GroupKey:    groupKey,
		ParentID:    parentID,
		SourceChain: sourceChain,
		CreatedAt:   time.Now(),
	}
	m.index[r.ID] = r
	return r
}

// EvaluateAndProcess is the single sink for any newly produced offcut. An
// offcut below the waste threshold becomes terminal waste; anything else
// enters the pool as pending, kept in ascending length order.
func (m *RemainderManager) EvaluateAndProcess(r *model.Remainder, groupKey string) {
	if r.Length < m.wasteThreshold {
		r.Type = model.RemainderWaste
		m.wasteTotal[groupKey] += r.Length
		return
	}

	r.Type = model.RemainderPending
	pool := m.pools[groupKey]
	i := sort.Search(len(pool), func(i int) bool { return pool[i].Length >= r.Length })
	pool = append(pool, nil)
	copy(pool[i+1:], pool[i:])
	pool[i] = r
	m.pools[groupKey] = pool
}

// FindBestCombination searches the group pool for the best single remainder
// or welded combination covering targetLength with at most maxSegments
// pieces. It reads the pool without mutating it; consumption is a separate
// call. Returns nil when nothing in the pool can cover the target.
func (m *RemainderManager) FindBestCombination(targetLength float64, groupKey string, maxSegments int) *Combination {
	pool := m.pools[groupKey]
	if len(pool) == 0 || maxSegments < 1 {
		return nil
	}

	var best *Combination
	if len(pool) <= dpPoolLimit || maxSegments <= 2 {
		best = m.searchExact(pool, targetLength, maxSegments)
	} else {
		best = m.searchGreedy(pool, targetLength, maxSegments)
	}

	if best != nil {
		best.Single = len(best.Remainders) == 1
	}
	return best
}

// dpState is one frontier entry of the exact search.
type dpState struct {
	total float64
	items []*model.Remainder
}

// searchExact enumerates combinations by adding one distinct remainder per
// layer, pruning states that overshoot 2x and capping the frontier size.
func (m *RemainderManager) searchExact(pool []*model.Remainder, target float64, maxSegments int) *Combination {
	var best *Combination
	consider := func(s dpState) {
		if s.total < target {
			return
		}
		eff := s.total / target
		if best == nil || eff < best.Efficiency {
			items := append([]*model.Remainder(nil), s.items...)
			best = &Combination{Remainders: items, TotalLength: s.total, Efficiency: eff}
		}
	}

	frontier := []dpState{{}}
	for seg := 0; seg < maxSegments; seg++ {
		var next []dpState
		for _, s := range frontier {
			for _, r := range pool {
				if containsRemainder(s.items, r.ID) {
					continue
				}
				total := s.total + r.Length
				if total/target > maxCombinationEfficiency {
					continue
				}
				ns := dpState{total: total, items: append(append([]*model.Remainder(nil), s.items...), r)}
				consider(ns)
				if best != nil && best.Efficiency <= nearPerfectEfficiency {
					return best
				}
				if total < target {
					next = append(next, ns)
				}
			}
		}
		if len(next) > dpFrontierLimit {
			// Keep the states closest to the target; they have the best
			// chance of a tight final combination.
			sort.Slice(next, func(i, j int) bool { return next[i].total > next[j].total })
			next = next[:dpFrontierKeep]
		}
		frontier = next
		if len(frontier) == 0 {
			break
		}
	}
	return best
}

// searchGreedy approximates the exact search for large pools: for each
// segment budget it descends by length, preferring remainders at most 1.5x
// the remaining need to avoid overshoot, and closing with the smallest
// remainder that covers what is left.
func (m *RemainderManager) searchGreedy(pool []*model.Remainder, target float64, maxSegments int) *Combination {
	var best *Combination

	for segments := 1; segments <= maxSegments; segments++ {
		used := make(map[string]struct{}, segments)
		var items []*model.Remainder
		total := 0.0
		remaining := target

		for i := 0; i < segments && remaining > 0; i++ {
			var pick *model.Remainder
			if i == segments-1 {
				// Last segment: smallest remainder covering the rest.
				for _, r := range pool {
					if _, taken := used[r.ID]; taken {
						continue
					}
					if r.Length >= remaining {
						pick = r
						break
					}
				}
			} else {
				// Earlier segments: largest remainder not overshooting 1.5x.
				for j := len(pool) - 1; j >= 0; j-- {
					r := pool[j]
					if _, taken := used[r.ID]; taken {
						continue
					}
					if r.Length <= remaining*1.5 {
						pick = r
						break
					}
				}
				if pick == nil {
					for _, r := range pool {
						if _, taken := used[r.ID]; !taken {
							pick = r
							break
						}
					}
				}
			}
			if pick == nil {
				break
			}
			used[pick.ID] = struct{}{}
			items = append(items, pick)
			total += pick.Length
			remaining = target - total
		}

		if total < target {
			continue
		}
		eff := total / target
		if eff > maxCombinationEfficiency {
			continue
		}
		if best == nil || eff < best.Efficiency {
			best = &Combination{Remainders: items, TotalLength: total, Efficiency: eff}
			if best.Efficiency <= nearPerfectEfficiency {
				break
			}
		}
	}
	return best
}

func containsRemainder(items []*model.Remainder, id string) bool {
	for _, r := range items {
		if r.ID == id {
			return true
		}
	}
	return false
}

// UseRemainder atomically consumes a combination for one design piece of
// targetLength: the combination's remainders leave the pool as pseudo audit
// copies, and the offcut comes back as a fresh child remainder routed through
// EvaluateAndProcess.
func (m *RemainderManager) UseRemainder(comb *Combination, targetLength float64, designID, groupKey string) (*UseResult, error) {
	pool := m.pools[groupKey]

	indices := make([]int, 0, len(comb.Remainders))
	for _, r := range comb.Remainders {
		found := -1
		for i, p := range pool {
			if p.ID == r.ID {
				found = i
				break
			}
		}
		if found < 0 {
			return nil, fmt.Errorf("remainder %s is no longer in pool %s", r.ID, groupKey)
		}
		indices = append(indices, found)
	}

	// Remove from the highest index down so earlier indices stay valid.
	sort.Sort(sort.Reverse(sort.IntSlice(indices)))
	for _, i := range indices {
		pool = append(pool[:i], pool[i+1:]...)
	}
	m.pools[groupKey] = pool

	result := &UseResult{}
	parentIDs := make([]string, 0, len(comb.Remainders))
	chain := make([]string, 0, len(comb.Remainders))
	for _, r := range comb.Remainders {
		r.Type = model.RemainderPseudo
		r.Consumed = true
		result.UsedRemainders = append(result.UsedRemainders, r.Clone())
		parentIDs = append(parentIDs, r.ID)
		chain = append(chain, r.SourceChain...)
		chain = append(chain, r.ID)
	}

	offcut := comb.TotalLength - targetLength
	if offcut > 0 {
		child := m.NewRemainder(offcut, groupKey, strings.Join(parentIDs, "+"), chain)
		m.EvaluateAndProcess(child, groupKey)
		result.NewRemainders = append(result.NewRemainders, child.Clone())
		if child.Type == model.RemainderWaste {
			result.Waste = offcut
		}
	}

	_ = designID // recorded by the caller on the cutting plan
	return result, nil
}

// ConsumeByID marks one pooled remainder pseudo and removes it from the pool.
// Used by the post-pass when a retained remainder replaces a welded plan.
func (m *RemainderManager) ConsumeByID(groupKey, id string) (*model.Remainder, error) {
	pool := m.pools[groupKey]
	for i, r := range pool {
		if r.ID == id {
			m.pools[groupKey] = append(pool[:i], pool[i+1:]...)
			r.Type = model.RemainderPseudo
			r.Consumed = true
			return r, nil
		}
	}
	return nil, fmt.Errorf("remainder %s not found in pool %s", id, groupKey)
}

// ReAddPending returns previously consumed remainders to the pool as pending.
// Used by the post-pass when a welded plan is dissolved.
func (m *RemainderManager) ReAddPending(groupKey string, remainders []model.Remainder) {
	for _, rem := range remainders {
		r := m.index[rem.ID]
		if r == nil {
			r = &model.Remainder{
				ID:          rem.ID,
				Length:      rem.Length,
				GroupKey:    groupKey,
				ParentID:    rem.ParentID,
				SourceChain: append([]string(nil), rem.SourceChain...),
				CreatedAt:   rem.CreatedAt,
			}
			m.index[r.ID] = r
		}
		r.Type = model.RemainderPending
		r.Consumed = false
		m.EvaluateAndProcess(r, groupKey)
	}
}

// Dissolve undoes one remainder consumption: the consumed remainders return
// to the pool as pending, the consumption's offcut children are retracted
// (retained children leave the pool, waste children are refunded), restoring
// the pool to its pre-consumption state. Fails without side effects when a
// retained child has itself been consumed since.
func (m *RemainderManager) Dissolve(groupKey string, used []model.Remainder, children []model.Remainder) error {
	pool := m.pools[groupKey]
	inPool := func(id string) int {
		for i, r := range pool {
			if r.ID == id {
				return i
			}
		}
		return -1
	}

	for _, ch := range children {
		if ch.Type == model.RemainderWaste {
			continue
		}
		if inPool(ch.ID) < 0 {
			return fmt.Errorf("child remainder %s of group %s was already consumed", ch.ID, groupKey)
		}
	}

	for _, ch := range children {
		if ch.Type == model.RemainderWaste {
			m.wasteTotal[groupKey] -= ch.Length
		} else if i := inPool(ch.ID); i >= 0 {
			pool = append(pool[:i], pool[i+1:]...)
		}
		delete(m.index, ch.ID)
	}
	m.pools[groupKey] = pool

	m.ReAddPending(groupKey, used)
	return nil
}

// ReclaimWaste moves a waste-classified remainder back into the pool as
// pending, refunding its waste charge. Inverse of MarkWaste.
func (m *RemainderManager) ReclaimWaste(groupKey string, rem model.Remainder) {
	m.wasteTotal[groupKey] -= rem.Length
	m.ReAddPending(groupKey, []model.Remainder{rem})
}

// MarkWaste reclassifies a retained remainder as waste, removing it from the
// pool if present. Used by the exclusivity corrector.
func (m *RemainderManager) MarkWaste(groupKey, id string) {
	pool := m.pools[groupKey]
	for i, r := range pool {
		if r.ID == id {
			m.pools[groupKey] = append(pool[:i], pool[i+1:]...)
			break
		}
	}
	if r := m.index[id]; r != nil && r.Type != model.RemainderWaste {
		r.Type = model.RemainderWaste
		m.wasteTotal[groupKey] += r.Length
	}
}

// RetainedPool returns the group's pooled remainders, ascending by length.
func (m *RemainderManager) RetainedPool(groupKey string) []*model.Remainder {
	return m.pools[groupKey]
}

// LookupType returns the current type of a remainder by id.
func (m *RemainderManager) LookupType(id string) (model.RemainderType, bool) {
	r, ok := m.index[id]
	if !ok {
		return 0, false
	}
	return r.Type, true
}

// MergeFrom absorbs another manager's pools, waste totals and id index.
// Group keys are disjoint across per-group managers, so the merge is
// order-independent.
func (m *RemainderManager) MergeFrom(other *RemainderManager) {
	for g, pool := range other.pools {
		m.pools[g] = append(m.pools[g], pool...)
		sort.Slice(m.pools[g], func(i, j int) bool { return m.pools[g][i].Length < m.pools[g][j].Length })
	}
	for g, w := range other.wasteTotal {
		m.wasteTotal[g] += w
	}
	for id, r := range other.index {
		m.index[id] = r
	}
	for g, l := range other.letterIdx {
		if l > m.letterIdx[g] {
			m.letterIdx[g] = l
		}
	}
	for g, n := range other.numberIdx {
		if n > m.numberIdx[g] {
			m.numberIdx[g] = n
		}
	}
}

// FinalizeRemainders promotes every still-pending remainder to real and
// returns the per-group real/waste sweep. Calling it again is a no-op on an
// already finalized manager.
func (m *RemainderManager) FinalizeRemainders() FinalizeSummary {
	if !m.finalized {
		for _, pool := range m.pools {
			for _, r := range pool {
				if r.Type == model.RemainderPending {
					r.Type = model.RemainderReal
				}
			}
		}
		m.finalized = true
	}

	summary := FinalizeSummary{
		RealByGroup:  make(map[string]float64),
		WasteByGroup: make(map[string]float64),
	}
	for g, pool := range m.pools {
		for _, r := range pool {
			if r.Type == model.RemainderReal {
				summary.RealByGroup[g] += r.Length
			}
		}
	}
	for g, w := range m.wasteTotal {
		summary.WasteByGroup[g] = w
	}
	return summary
}

// Finalized reports whether FinalizeRemainders has run.
func (m *RemainderManager) Finalized() bool {
	return m.finalized
}

// RealTotal returns the finalized real remainder length for a group.
func (m *RemainderManager) RealTotal(groupKey string) float64 {
	var total float64
	for _, r := range m.pools[groupKey] {
		if r.Type == model.RemainderReal {
			total += r.Length
		}
	}
	return total
}

// WasteThreshold returns the configured threshold.
func (m *RemainderManager) WasteThreshold() float64 {
	return m.wasteThreshold
}
