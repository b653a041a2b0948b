package service

import "MacroChain/internal/domain/models"

// Reason explains why an extraction produced no chain.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonNoEvent           Reason = "no_event"
	ReasonInsufficientSteps Reason = "insufficient_steps"
	ReasonLowQuality        Reason = "low_quality"
)

// Outcome is the result of running the pipeline over one document.
// Chain is nil for negative results and Reason says which gate stopped it.
type Outcome struct {
	Chain        *models.CausalChain
	Events       []models.MacroEvent
	QualityScore float64
	Reason       Reason
}

// Extractor turns a document into a causal chain.
type Extractor interface {
	Extract(doc *models.Document) Outcome
}
