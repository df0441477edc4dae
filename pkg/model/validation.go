package model

// Violation kinds reported by the constraint validator.
const (
	ViolationEmptyDesign       = "emptyDesignList"
	ViolationEmptyModule       = "emptyModuleList"
	ViolationInvalidDesign     = "invalidDesignSteel"
	ViolationInvalidModule     = "invalidModuleSteel"
	ViolationInvalidConstraint = "invalidConstraint"
	ViolationWelding           = "weldingConstraintViolation"
)

// Suggestion kinds attached to violations.
const (
	SuggestionAddModule     = "addLongerModule"
	SuggestionRaiseSegments = "raiseWeldingSegments"
)

// Violation is a single blocking problem found by the validator.
type Violation struct {
	Type            string    `json:"type"`
	Message         string    `json:"message"`
	ConflictLengths []float64 `json:"conflictLengths,omitempty"`
}

// ResolutionSuggestion proposes one way to resolve a violation.
type ResolutionSuggestion struct {
	Type               string    `json:"type"`
	Message            string    `json:"message"`
	RecommendedLengths []float64 `json:"recommendedLengths,omitempty"`
	RecommendedValue   int       `json:"recommendedValue,omitempty"`
}

// ValidationResult is the complete output of the constraint validator.
// Warnings are advisory and never block planning.
type ValidationResult struct {
	IsValid     bool                   `json:"isValid"`
	Violations  []Violation            `json:"violations"`
	Suggestions []ResolutionSuggestion `json:"suggestions"`
	Warnings    []string               `json:"warnings"`
}
