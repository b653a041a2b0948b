package extraction

import (
	"fmt"
	"regexp"
	"strings"

	"MacroChain/internal/domain/models"
	"MacroChain/internal/services/patterns"
)

type trackedInstrument struct {
	models.Instrument
	mention *regexp.Regexp
	sectors []string
}

// trackInstruments compiles mention matchers and merges the library sector mapping.
func trackInstruments(lib *patterns.Library, set *models.InstrumentSet) []trackedInstrument {
	if set == nil {
		return nil
	}
	out := make([]trackedInstrument, 0, len(set.Instruments))
	for _, inst := range set.Instruments {
		terms := make([]string, 0, len(inst.Names)+1)
		for _, t := range append([]string{inst.Symbol}, inst.Names...) {
			if t = strings.TrimSpace(t); t != "" {
				terms = append(terms, regexp.QuoteMeta(t))
			}
		}
		if len(terms) == 0 {
			continue
		}
		sectors := append(append([]string(nil), inst.Sectors...), lib.SectorsFor(inst.Symbol)...)
		out = append(out, trackedInstrument{
			Instrument: inst,
			mention:    regexp.MustCompile(`(?i)(?:^|\W)(?:` + strings.Join(terms, "|") + `)(?:\W|$)`),
			sectors:    sectors,
		})
	}
	return out
}

func (t trackedInstrument) displayName() string {
	if len(t.Names) > 0 {
		return t.Names[0]
	}
	return t.Symbol
}

func (t trackedInstrument) inSector(entity string) bool {
	for _, s := range t.sectors {
		if strings.EqualFold(s, entity) {
			return true
		}
	}
	return false
}

// Correlate scores every instrument mentioned in text against the steps.
// The best step wins, later steps winning ties, and instruments below
// minRelevance are dropped.
func Correlate(lib *patterns.Library, steps []models.CausalStep, text string, instruments []trackedInstrument, minRelevance float64) []models.StockCorrelation {
	var out []models.StockCorrelation
	for _, inst := range instruments {
		if !inst.mention.MatchString(text) {
			continue
		}

		best, bestMentions := -1.0, false
		var winner models.CausalStep
		for _, s := range steps {
			mentions := inst.mention.MatchString(s.Description)
			score := 0.0
			if mentions {
				score += 0.8
			}
			if inst.inSector(s.AffectedEntity) {
				score += 0.4
			}
			if s.ImpactDirection != models.ImpactNeutral {
				score += 0.2
			}
			score = clamp01(score)
			if score >= best {
				best, winner, bestMentions = score, s, mentions
			}
		}
		if best < minRelevance {
			continue
		}

		kind := models.CorrelationSector
		switch {
		case bestMentions:
			kind = models.CorrelationDirect
		case lib.Supply().Any(winner.Description):
			kind = models.CorrelationSupplier
		}

		out = append(out, models.StockCorrelation{
			Symbol:            inst.Symbol,
			Name:              inst.displayName(),
			Kind:              kind,
			ExpectedImpact:    expectedImpact(winner.ImpactDirection, best),
			ImpactProbability: best,
			Reasoning: fmt.Sprintf("%s (%s) is tied to the %s step \"%s\" with relevance %.2f.",
				inst.displayName(), inst.Symbol, winner.Role, winner.Description, best),
		})
	}
	return out
}

func expectedImpact(dir models.ImpactDirection, relevance float64) models.ExpectedImpact {
	strong := relevance > 0.7
	switch dir {
	case models.ImpactPositive:
		if strong {
			return models.ExpectStrongPositive
		}
		return models.ExpectPositive
	case models.ImpactNegative:
		if strong {
			return models.ExpectStrongNegative
		}
		return models.ExpectNegative
	default:
		return models.ExpectNeutral
	}
}
