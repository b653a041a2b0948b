package extraction

import (
	"MacroChain/internal/domain/models"
	"MacroChain/internal/services/patterns"
)

const degenerateScore = 0.2

// QualityScore rates the structural soundness of a step sequence in [0, 1].
// A sequence made only of triggers scores 0.2. Otherwise it earns 0.3 per
// distinct role, 0.4 when both ends (trigger and outcome) are present and
// 0.3 when any description carries a causal connective.
func QualityScore(lib *patterns.Library, steps []models.CausalStep) float64 {
	if len(steps) == 0 {
		return 0
	}

	roles := make(map[models.StepRole]struct{}, 3)
	for _, s := range steps {
		roles[s.Role] = struct{}{}
	}
	if _, ok := roles[models.RoleTrigger]; ok && len(roles) == 1 {
		return degenerateScore
	}

	score := 0.3 * float64(len(roles))
	_, hasTrigger := roles[models.RoleTrigger]
	_, hasOutcome := roles[models.RoleOutcome]
	if hasTrigger && hasOutcome {
		score += 0.4
	}
	for _, s := range steps {
		if lib.ConnectiveSet().Any(s.Description) {
			score += 0.3
			break
		}
	}
	return clamp01(score)
}
