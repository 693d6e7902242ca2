package eval

// Badge names granted by the fixed rules.
const (
	BadgeElitePerformer = "Elite Performer"
	BadgeCostEfficient  = "Cost Efficient"
	BadgeFirstRun       = "First Run"
	BadgeTopPlanner     = "Top Planner"
)

// BadgeEngine computes which new badges a user has earned from one judged
// success. It is a pure rule evaluator; persistence of the merged badge set
// is the caller's responsibility.
type BadgeEngine struct{}

// NewBadgeEngine creates a badge engine.
func NewBadgeEngine() *BadgeEngine {
	return &BadgeEngine{}
}

// Evaluate returns the badges newly earned by this judged success, in rule
// precedence order, excluding any badge already present in existing.
// submissionCount is the user's total submission count including the one
// just judged.
func (e *BadgeEngine) Evaluate(existing []string, score, cost float64, submissionCount int, active *Challenge) []string {
	has := make(map[string]bool, len(existing))
	for _, name := range existing {
		has[name] = true
	}

	var earned []string
	grant := func(name string) {
		if name != "" && !has[name] {
			earned = append(earned, name)
			has[name] = true
		}
	}

	if score >= 95 {
		grant(BadgeElitePerformer)
	}
	if cost <= 0.20 && score >= 80 {
		grant(BadgeCostEfficient)
	}
	if submissionCount == 1 {
		grant(BadgeFirstRun)
	}
	if score >= 88 && cost <= 0.25 {
		grant(BadgeTopPlanner)
	}
	if active != nil && score >= active.TargetScore && cost <= active.TargetCost {
		grant(active.BadgeName)
	}

	return earned
}
