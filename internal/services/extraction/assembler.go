package extraction

import (
	"strings"
	"time"

	"MacroChain/internal/domain/models"
	"MacroChain/internal/services/patterns"
)

const (
	maxTitleLength = 120
	genericThesis  = "Analysis based on macro-trend signals."
	stepSeparator  = " -> "
)

// Assemble builds the chain from validated steps and correlations.
func Assemble(lib *patterns.Library, doc *models.Document, events []models.MacroEvent, steps []models.CausalStep, corrs []models.StockCorrelation, quality float64, now time.Time) *models.CausalChain {
	descs := make([]string, len(steps))
	for i, s := range steps {
		descs[i] = s.Description
	}

	return &models.CausalChain{
		Title:             chainTitle(doc, events),
		Description:       strings.Join(descs, stepSeparator),
		SourceDocumentID:  doc.ID,
		ConfidenceScore:   chainConfidence(steps, corrs),
		QualityScore:      quality,
		PredictionHorizon: predictHorizon(lib, doc.Text(), len(steps)),
		InvestmentThesis:  investmentThesis(steps, corrs),
		Steps:             steps,
		Correlations:      corrs,
		CreatedAt:         now.UTC(),
	}
}

func chainConfidence(steps []models.CausalStep, corrs []models.StockCorrelation) float64 {
	if len(steps) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range steps {
		sum += s.Confidence
	}
	c := sum / float64(len(steps))
	if len(corrs) > 0 {
		c += 0.1
	}
	return clamp01(c)
}

// predictHorizon prefers explicit timing vocabulary and falls back to chain length.
func predictHorizon(lib *patterns.Library, text string, steps int) models.Horizon {
	if h, ok := lib.HorizonOf(text); ok {
		return h
	}
	switch {
	case steps >= 4:
		return models.Horizon6M
	case steps == 3:
		return models.Horizon3M
	default:
		return models.Horizon1M
	}
}

func investmentThesis(steps []models.CausalStep, corrs []models.StockCorrelation) string {
	var parts []string
	if s, ok := firstOfRole(steps, models.RoleTrigger); ok {
		parts = append(parts, "Trigger: "+strings.TrimRight(s.Description, ".")+".")
	}
	if s, ok := firstOfRole(steps, models.RoleOutcome); ok {
		parts = append(parts, "Outcome: "+strings.TrimRight(s.Description, ".")+".")
	}
	if len(parts) == 0 {
		parts = append(parts, genericThesis)
	}

	var bullish []string
	for _, c := range corrs {
		if c.ExpectedImpact.Bullish() {
			bullish = append(bullish, c.Symbol)
		}
	}
	if len(bullish) > 0 {
		parts = append(parts, "Opportunity: "+strings.Join(bullish, ", "))
	}
	return strings.Join(parts, " ")
}

func firstOfRole(steps []models.CausalStep, role models.StepRole) (models.CausalStep, bool) {
	for _, s := range steps {
		if s.Role == role {
			return s, true
		}
	}
	return models.CausalStep{}, false
}

func chainTitle(doc *models.Document, events []models.MacroEvent) string {
	title := strings.TrimSpace(doc.Title)
	if title == "" && len(events) > 0 {
		title = events[0].Title
	}
	if r := []rune(title); len(r) > maxTitleLength {
		title = strings.TrimSpace(string(r[:maxTitleLength]))
	}
	return title
}
