package optimizer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/steelcut-optimizer/pkg/model"
)

// AssignDisplayIDs fills in missing display ids: groups sorted
// lexicographically get letters A, B, ... AA, AB, and bars within a group,
// sorted by length ascending, get the letter plus a 1-based index. The
// assignment is stable for identical inputs. Bars that already carry a
// display id keep it; they still occupy their slot in the numbering.
func AssignDisplayIDs(designs []model.DesignSteel) []model.DesignSteel {
	out := append([]model.DesignSteel(nil), designs...)

	byGroup := make(map[string][]int)
	for i, d := range out {
		key := model.GroupKey(d.Specification, d.CrossSection)
		byGroup[key] = append(byGroup[key], i)
	}

	keys := make([]string, 0, len(byGroup))
	for k := range byGroup {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for g, key := range keys {
		indices := byGroup[key]
		sort.SliceStable(indices, func(a, b int) bool {
			if out[indices[a]].Length != out[indices[b]].Length {
				return out[indices[a]].Length < out[indices[b]].Length
			}
			return out[indices[a]].ID < out[indices[b]].ID
		})

		letter := strings.ToUpper(letterName(g))
		for n, idx := range indices {
			if out[idx].DisplayID == "" {
				out[idx].DisplayID = fmt.Sprintf("%s%d", letter, n+1)
			}
		}
	}
	return out
}
