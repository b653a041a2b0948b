package extraction

import (
	"MacroChain/internal/domain/models"
	"MacroChain/internal/services/patterns"
)

// classifyEntity returns the longest curated entity found in text.
// Ties keep the earlier kind (company, sector, commodity, country, currency).
func classifyEntity(lib *patterns.Library, text string) (string, models.EntityKind) {
	best, kind := "", models.EntitySector
	for _, e := range lib.EntityTerms() {
		if len(e.Term) <= len(best) || !e.Match(text) {
			continue
		}
		best, kind = e.Term, e.Kind
	}
	if best == "" {
		return models.UnidentifiedEntity, models.EntitySector
	}
	return best, kind
}

func classifyDirection(lib *patterns.Library, text string) models.ImpactDirection {
	pos, neg := lib.Positive().Count(text), lib.Negative().Count(text)
	switch {
	case pos > neg:
		return models.ImpactPositive
	case neg > pos:
		return models.ImpactNegative
	default:
		return models.ImpactNeutral
	}
}

// stepConfidence scores certainty language; certainty wins over hedging.
func stepConfidence(lib *patterns.Library, text string) float64 {
	switch {
	case lib.Certain().Any(text):
		return lib.Certainty.CertainScore
	case lib.Hedging().Any(text):
		return lib.Certainty.HedgingScore
	default:
		return lib.Certainty.DefaultScore
	}
}
