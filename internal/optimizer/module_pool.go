package optimizer

import (
	"fmt"
	"sort"
	"time"

	"github.com/steelcut-optimizer/pkg/model"
)

// ModuleRecord is one module steel acquisition, kept for the procurement
// roll-up.
type ModuleRecord struct {
	ID            string
	Specification string
	CrossSection  float64
	Length        float64
	UsedAt        time.Time
}

// ModulePool supplies fresh module steels to one planning group on demand,
// drawing from the catalog of available lengths.
type ModulePool struct {
	groupKey      string
	specification string
	crossSection  float64
	catalog       []float64 // distinct available lengths, ascending
	seq           int
	records       []ModuleRecord
	usage         map[float64]int
}

// NewModulePool creates a pool for one group over the given catalog lengths.
func NewModulePool(groupKey, specification string, crossSection float64, lengths []float64) *ModulePool {
	seen := make(map[float64]struct{}, len(lengths))
	catalog := make([]float64, 0, len(lengths))
	for _, l := range lengths {
		if l <= 0 {
			continue
		}
		if _, ok := seen[l]; !ok {
			seen[l] = struct{}{}
			catalog = append(catalog, l)
		}
	}
	sort.Float64s(catalog)

	return &ModulePool{
		groupKey:      groupKey,
		specification: specification,
		crossSection:  crossSection,
		catalog:       catalog,
		usage:         make(map[float64]int),
	}
}

// Acquire returns a fresh module of the shortest catalog length that covers
// requiredLength. If no catalog length is long enough, the longest available
// length is returned; the caller may still welding-combine it.
func (p *ModulePool) Acquire(requiredLength float64) (ModuleRecord, error) {
	if len(p.catalog) == 0 {
		return ModuleRecord{}, fmt.Errorf("module catalog for group %s is empty", p.groupKey)
	}

	length := p.catalog[len(p.catalog)-1]
	for _, l := range p.catalog {
		if l >= requiredLength {
			length = l
			break
		}
	}

	p.seq++
	rec := ModuleRecord{
		ID:            fmt.Sprintf("%s_M%d", p.groupKey, p.seq),
		Specification: p.specification,
		CrossSection:  p.crossSection,
		Length:        length,
		UsedAt:        time.Now(),
	}
	p.records = append(p.records, rec)
	p.usage[length]++
	return rec, nil
}

// LongestLength returns the longest catalog length, 0 for an empty catalog.
func (p *ModulePool) LongestLength() float64 {
	if len(p.catalog) == 0 {
		return 0
	}
	return p.catalog[len(p.catalog)-1]
}

// Records returns every acquisition made so far, in order.
func (p *ModulePool) Records() []ModuleRecord {
	return p.records
}

// Usage aggregates acquisitions by length, ascending.
func (p *ModulePool) Usage() []model.ModuleUsage {
	lengths := make([]float64, 0, len(p.usage))
	for l := range p.usage {
		lengths = append(lengths, l)
	}
	sort.Float64s(lengths)

	out := make([]model.ModuleUsage, 0, len(lengths))
	for _, l := range lengths {
		n := p.usage[l]
		out = append(out, model.ModuleUsage{
			Length:      l,
			Count:       n,
			TotalLength: l * float64(n),
		})
	}
	return out
}
