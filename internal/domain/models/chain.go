package models

import "time"

type StepRole string

const (
	RoleTrigger      StepRole = "trigger"
	RoleIntermediate StepRole = "intermediate"
	RoleOutcome      StepRole = "outcome"
)

// Roles lists the step roles in chain order.
var Roles = []StepRole{RoleTrigger, RoleIntermediate, RoleOutcome}

type EntityKind string

const (
	EntityCountry   EntityKind = "country"
	EntityCompany   EntityKind = "company"
	EntitySector    EntityKind = "sector"
	EntityCommodity EntityKind = "commodity"
	EntityCurrency  EntityKind = "currency"
)

// UnidentifiedEntity is the affected entity of a step no curated entity matched.
const UnidentifiedEntity = "unidentified"

type ImpactDirection string

const (
	ImpactPositive ImpactDirection = "positive"
	ImpactNegative ImpactDirection = "negative"
	ImpactNeutral  ImpactDirection = "neutral"
)

type CorrelationKind string

const (
	CorrelationDirect     CorrelationKind = "direct"
	CorrelationSupplier   CorrelationKind = "supplier"
	CorrelationCompetitor CorrelationKind = "competitor"
	CorrelationSector     CorrelationKind = "sector"
)

type ExpectedImpact string

const (
	ExpectStrongPositive ExpectedImpact = "strong_positive"
	ExpectPositive       ExpectedImpact = "positive"
	ExpectNeutral        ExpectedImpact = "neutral"
	ExpectNegative       ExpectedImpact = "negative"
	ExpectStrongNegative ExpectedImpact = "strong_negative"
)

// Bullish reports whether the impact is positive or strong_positive.
func (e ExpectedImpact) Bullish() bool {
	return e == ExpectPositive || e == ExpectStrongPositive
}

type Horizon string

const (
	Horizon1W Horizon = "1w"
	Horizon1M Horizon = "1m"
	Horizon3M Horizon = "3m"
	Horizon6M Horizon = "6m"
	Horizon1Y Horizon = "1y"
)

// CausalStep is one node of a cause/effect sequence.
type CausalStep struct {
	Order           int             `json:"order"`
	Role            StepRole        `json:"role"`
	Description     string          `json:"description"`
	AffectedEntity  string          `json:"affected_entity"`
	EntityKind      EntityKind      `json:"entity_kind"`
	ImpactDirection ImpactDirection `json:"impact_direction"`
	Confidence      float64         `json:"confidence"`
}

// StockCorrelation links a chain to one tracked instrument.
type StockCorrelation struct {
	Symbol            string          `json:"symbol"`
	Name              string          `json:"name"`
	Kind              CorrelationKind `json:"kind"`
	ExpectedImpact    ExpectedImpact  `json:"expected_impact"`
	ImpactProbability float64         `json:"impact_probability"`
	Reasoning         string          `json:"reasoning"`
}

// CausalChain is the assembled and validated extraction result.
// ID is assigned by the store on write.
type CausalChain struct {
	ID                string             `json:"id,omitempty"`
	Title             string             `json:"title"`
	Description       string             `json:"description"`
	SourceDocumentID  string             `json:"source_document_id"`
	ConfidenceScore   float64            `json:"confidence_score"`
	QualityScore      float64            `json:"quality_score"`
	PredictionHorizon Horizon            `json:"prediction_horizon"`
	InvestmentThesis  string             `json:"investment_thesis"`
	Steps             []CausalStep       `json:"steps"`
	Correlations      []StockCorrelation `json:"correlations"`
	CreatedAt         time.Time          `json:"created_at"`
}
