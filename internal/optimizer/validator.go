// Package optimizer implements the cutting-stock optimization engine: the
// constraint validator, the per-group planners with their remainder pools, the
// welding combination search, the MW-CD post-pass and the statistics reducer.
package optimizer

import (
	"fmt"
	"math"

	"github.com/steelcut-optimizer/pkg/model"
)

// standardModuleLengths are the catalog lengths recommended when a demand
// cannot be covered by any available module.
var standardModuleLengths = []float64{6000, 9000, 12000, 15000, 18000}

// ValidateConstraints runs the pre-flight feasibility check of a job. It
// never starts planning work; if IsValid is false the driver short-circuits
// and returns the validation object verbatim.
func ValidateConstraints(designs []model.DesignSteel, modules []model.ModuleSteel, c model.Constraints) *model.ValidationResult {
	result := &model.ValidationResult{
		Violations:  []model.Violation{},
		Suggestions: []model.ResolutionSuggestion{},
		Warnings:    []string{},
	}

	validateStructure(designs, modules, c, result)

	// Structural damage makes the feasibility math meaningless.
	if len(result.Violations) == 0 {
		validateWeldingFeasibility(designs, modules, c, result)
		addAdvisoryWarnings(designs, modules, c, result)
	}

	result.IsValid = len(result.Violations) == 0
	return result
}

func validateStructure(designs []model.DesignSteel, modules []model.ModuleSteel, c model.Constraints, result *model.ValidationResult) {
	if len(designs) == 0 {
		result.Violations = append(result.Violations, model.Violation{
			Type:    model.ViolationEmptyDesign,
			Message: "at least one design steel is required",
		})
	}
	if len(modules) == 0 {
		result.Violations = append(result.Violations, model.Violation{
			Type:    model.ViolationEmptyModule,
			Message: "at least one module steel is required",
		})
	}

	for _, d := range designs {
		if d.Length <= 0 || d.Quantity <= 0 || d.CrossSection <= 0 {
			result.Violations = append(result.Violations, model.Violation{
				Type: model.ViolationInvalidDesign,
				Message: fmt.Sprintf("design steel %s must have positive length, quantity and cross-section (got %v, %d, %v)",
					d.ID, d.Length, d.Quantity, d.CrossSection),
			})
		}
	}
	for _, m := range modules {
		if m.Length <= 0 {
			result.Violations = append(result.Violations, model.Violation{
				Type:    model.ViolationInvalidModule,
				Message: fmt.Sprintf("module steel %s must have positive length (got %v)", m.ID, m.Length),
			})
		}
	}

	if c.WasteThreshold <= 0 {
		result.Violations = append(result.Violations, model.Violation{
			Type:    model.ViolationInvalidConstraint,
			Message: fmt.Sprintf("wasteThreshold must be positive (got %v)", c.WasteThreshold),
		})
	}
	if c.MaxWeldingSegments < 1 {
		result.Violations = append(result.Violations, model.Violation{
			Type:    model.ViolationInvalidConstraint,
			Message: fmt.Sprintf("maxWeldingSegments must be at least 1 (got %d)", c.MaxWeldingSegments),
		})
	}
	if c.TimeLimit <= 0 {
		result.Violations = append(result.Violations, model.Violation{
			Type:    model.ViolationInvalidConstraint,
			Message: fmt.Sprintf("timeLimit must be positive (got %d)", c.TimeLimit),
		})
	}
}

func validateWeldingFeasibility(designs []model.DesignSteel, modules []model.ModuleSteel, c model.Constraints, result *model.ValidationResult) {
	longest := 0.0
	for _, m := range modules {
		if m.Length > longest {
			longest = m.Length
		}
	}

	var conflicts []float64
	for _, d := range designs {
		if d.Length > longest {
			conflicts = append(conflicts, d.Length)
		}
	}
	if len(conflicts) == 0 || c.MaxWeldingSegments > 1 {
		return
	}

	maxConflict := conflicts[0]
	for _, l := range conflicts {
		if l > maxConflict {
			maxConflict = l
		}
	}

	result.Violations = append(result.Violations, model.Violation{
		Type: model.ViolationWelding,
		Message: fmt.Sprintf("%d design steel(s) exceed the longest module (%.0f mm) and welding is disabled",
			len(conflicts), longest),
		ConflictLengths: conflicts,
	})

	result.Suggestions = append(result.Suggestions, model.ResolutionSuggestion{
		Type: model.SuggestionAddModule,
		Message: fmt.Sprintf("add a module steel of at least %.0f mm to the catalog",
			maxConflict),
		RecommendedLengths: recommendStandardLengths(maxConflict, 3),
	})
	result.Suggestions = append(result.Suggestions, model.ResolutionSuggestion{
		Type: model.SuggestionRaiseSegments,
		Message: fmt.Sprintf("raise maxWeldingSegments to %d so the demand can be welded from available modules",
			int(math.Ceil(maxConflict/longest))),
		RecommendedValue: int(math.Ceil(maxConflict / longest)),
	})
}

// recommendStandardLengths returns up to n standard catalog lengths that can
// cover the required length. If no standard length is long enough, the
// required length itself is recommended.
func recommendStandardLengths(required float64, n int) []float64 {
	var out []float64
	for _, l := range standardModuleLengths {
		if l >= required {
			out = append(out, l)
			if len(out) == n {
				break
			}
		}
	}
	if len(out) == 0 {
		out = append(out, math.Ceil(required))
	}
	return out
}

func addAdvisoryWarnings(designs []model.DesignSteel, modules []model.ModuleSteel, c model.Constraints, result *model.ValidationResult) {
	var designSum, moduleSum float64
	totalDemand := 0
	for _, d := range designs {
		designSum += d.Length
		totalDemand += d.Quantity
	}
	for _, m := range modules {
		moduleSum += m.Length
	}
	avgDesign := designSum / float64(len(designs))
	avgModule := moduleSum / float64(len(modules))

	if avgDesign < 0.3*avgModule {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("average design length (%.0f mm) is below 30%% of average module length (%.0f mm); expect elevated loss", avgDesign, avgModule))
	}

	if c.MaxWeldingSegments == 1 && len(distinctLengths(modules)) > 1 {
		result.Warnings = append(result.Warnings,
			"welding is disabled with multiple module sizes available; length mixing opportunities will be missed")
	}

	if totalDemand > 1000 && int64(totalDemand) > c.TimeLimit/1000 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("demand of %d pieces may exceed the %d second time budget; a partial solution is possible", totalDemand, c.TimeLimit/1000))
	}
}

func distinctLengths(modules []model.ModuleSteel) []float64 {
	seen := make(map[float64]struct{}, len(modules))
	var out []float64
	for _, m := range modules {
		if _, ok := seen[m.Length]; !ok {
			seen[m.Length] = struct{}{}
			out = append(out, m.Length)
		}
	}
	return out
}
