package extraction

import (
	"sort"

	"MacroChain/internal/domain/models"
	"MacroChain/internal/services/patterns"
)

type candidate struct {
	role   models.StepRole
	text   string
	offset int
}

// collectCandidates runs every role expression over text and returns cleaned
// clauses per role, ordered by position and capped.
func collectCandidates(lib *patterns.Library, text string, o Options) map[models.StepRole][]candidate {
	out := make(map[models.StepRole][]candidate, len(models.Roles))
	for _, role := range models.Roles {
		var found []candidate
		for _, re := range lib.RoleExpressions(role) {
			for _, loc := range re.FindAllStringIndex(text, -1) {
				found = append(found, candidate{role: role, text: text[loc[0]:loc[1]], offset: loc[0]})
			}
		}
		sort.SliceStable(found, func(i, j int) bool { return found[i].offset < found[j].offset })

		seen := make(map[string]struct{})
		for _, c := range found {
			c.text = cleanClause(c.text, o.MaxStepLength)
			if len([]rune(c.text)) <= o.MinStepLength {
				continue
			}
			if _, dup := seen[c.text]; dup {
				continue
			}
			seen[c.text] = struct{}{}
			out[role] = append(out[role], c)
			if len(out[role]) == o.MaxPerRole {
				break
			}
		}
	}

	// total cap: drop from the last role first
	total := 0
	for _, role := range models.Roles {
		total += len(out[role])
	}
	for i := len(models.Roles) - 1; i >= 0 && total > o.MaxCandidates; i-- {
		role := models.Roles[i]
		for len(out[role]) > 0 && total > o.MaxCandidates {
			out[role] = out[role][:len(out[role])-1]
			total--
		}
	}
	return out
}

// AnalyzeStructure builds the ordered step sequence for text: the first
// trigger, then the first intermediate, then the first outcome. A clause
// already placed is skipped in favour of the role's next candidate. The
// result is empty unless a trigger and at least one later role are present.
func AnalyzeStructure(lib *patterns.Library, text string, o Options) []models.CausalStep {
	cands := collectCandidates(lib, text, o)

	used := make(map[string]struct{})
	var picked []candidate
	for _, role := range models.Roles {
		for _, c := range cands[role] {
			if _, dup := used[c.text]; dup {
				continue
			}
			used[c.text] = struct{}{}
			picked = append(picked, c)
			break
		}
	}

	if len(picked) < 2 || picked[0].role != models.RoleTrigger {
		return nil
	}

	steps := make([]models.CausalStep, 0, len(picked))
	for i, c := range picked {
		entity, kind := classifyEntity(lib, c.text)
		steps = append(steps, models.CausalStep{
			Order:           i + 1,
			Role:            c.role,
			Description:     c.text,
			AffectedEntity:  entity,
			EntityKind:      kind,
			ImpactDirection: classifyDirection(lib, c.text),
			Confidence:      stepConfidence(lib, c.text),
		})
	}
	return steps
}
